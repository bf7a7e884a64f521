package assistant

import (
	"strings"
	"time"
)

const (
	DefaultIcon        = "🤖"
	DefaultDescription = "Generated Assistant"
)

// Definition is an assistant persona. A draft is a Definition without an
// ID that has not been saved yet.
type Definition struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	Icon         string    `json:"icon"`
	Description  string    `json:"description"`
	SystemPrompt string    `json:"systemPrompt"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
}

// Merge returns d with every non-empty draft field of update applied.
func (d Definition) Merge(update Definition) Definition {
	if update.Name != "" {
		d.Name = update.Name
	}
	if update.Icon != "" {
		d.Icon = update.Icon
	}
	if update.Description != "" {
		d.Description = update.Description
	}
	if update.SystemPrompt != "" {
		d.SystemPrompt = update.SystemPrompt
	}
	return d
}

// Complete reports whether the draft can be saved.
func (d Definition) Complete() bool {
	return strings.TrimSpace(d.Name) != "" && strings.TrimSpace(d.SystemPrompt) != ""
}

func (d Definition) WithDefaults() Definition {
	if strings.TrimSpace(d.Icon) == "" {
		d.Icon = DefaultIcon
	}
	if strings.TrimSpace(d.Description) == "" {
		d.Description = DefaultDescription
	}
	return d
}

type Patch struct {
	Name         *string `json:"name,omitempty"`
	Icon         *string `json:"icon,omitempty"`
	Description  *string `json:"description,omitempty"`
	SystemPrompt *string `json:"systemPrompt,omitempty"`
}

func (d Definition) Apply(p Patch) Definition {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Icon != nil {
		d.Icon = *p.Icon
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.SystemPrompt != nil {
		d.SystemPrompt = *p.SystemPrompt
	}
	return d
}

func NewDraft() Definition {
	return Definition{Icon: DefaultIcon}
}

// Defaults is the list a fresh installation starts with.
func Defaults(now time.Time) []Definition {
	return []Definition{
		{
			ID:           "default-1",
			Name:         "Code Assistant",
			Icon:         "💻",
			Description:  "Expert in programming and debugging across multiple languages.",
			SystemPrompt: "You are an expert programmer with deep knowledge across multiple languages and frameworks. Provide clean, well-commented code examples. Explain complex concepts clearly. Point out potential bugs and security issues. Keep answers concise but thorough.",
			CreatedAt:    now,
		},
		{
			ID:           "default-2",
			Name:         "Writing Helper",
			Icon:         "✍️",
			Description:  "Helps with writing, editing, and improving text content.",
			SystemPrompt: "You are a professional writing assistant. Help users write clear, engaging, and well-structured content. Provide grammar corrections, style improvements, and creative suggestions. Adapt tone based on the context (formal, casual, academic, etc.).",
			CreatedAt:    now,
		},
	}
}
