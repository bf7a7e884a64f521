// Package extract pulls assistant definitions out of free-text model
// replies.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"assistdeck/internal/assistant"
)

const Sentinel = "__CONFIG__"

var blockRe = regexp.MustCompile(`(?s)` + Sentinel + `(.*?)` + Sentinel)

// Strategy finds a definition in text, or reports that there is none.
type Strategy struct {
	Name string
	Find func(text string) (assistant.Definition, bool)
}

// Strategies are tried in order; the first hit wins.
var Strategies = []Strategy{
	{Name: "sentinel", Find: findSentinel},
	{Name: "brace_span", Find: findBraceSpan},
}

type Result struct {
	Definition assistant.Definition
	Strategy   string
}

func Extract(text string) (Result, bool) {
	for _, s := range Strategies {
		if def, ok := s.Find(text); ok {
			return Result{Definition: def, Strategy: s.Name}, true
		}
	}
	return Result{}, false
}

// StripConfigBlocks removes every sentinel block and trims the rest.
// Removing a block can join marker fragments into a new pair, so it repeats
// until nothing changes.
func StripConfigBlocks(text string) string {
	for {
		next := blockRe.ReplaceAllString(text, "")
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
}

// findSentinel parses sentinel blocks from the last one backwards, so a
// reply that revises its config reports the newest version.
func findSentinel(text string) (assistant.Definition, bool) {
	blocks := blockRe.FindAllStringSubmatch(text, -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		body := stripFence(strings.TrimSpace(blocks[i][1]))
		if !strings.HasPrefix(body, "{") {
			continue
		}
		if def, ok := parse(body); ok {
			return def, true
		}
	}
	return assistant.Definition{}, false
}

func findBraceSpan(text string) (assistant.Definition, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return assistant.Definition{}, false
	}
	return parse(text[start : end+1])
}

// stripFence unwraps a ```json fenced body.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

type payload struct {
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Description  string `json:"description"`
	SystemPrompt string `json:"systemPrompt"`
}

func parse(s string) (assistant.Definition, bool) {
	var p payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return assistant.Definition{}, false
	}
	// Values are kept verbatim; only the emptiness check ignores whitespace.
	if strings.TrimSpace(p.Name+p.Icon+p.Description+p.SystemPrompt) == "" {
		return assistant.Definition{}, false
	}
	return assistant.Definition{
		Name:         p.Name,
		Icon:         p.Icon,
		Description:  p.Description,
		SystemPrompt: p.SystemPrompt,
	}, true
}
