package providers

// Message is the role/content pair sent on the chat-completions wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Normalize converts a conversation into chat-completions messages. A
// non-empty system instruction becomes the leading system message and model
// turns are re-tagged as assistant. Consecutive turns with the same role are
// kept as they are.
func Normalize(turns []Turn, systemInstruction string) []Message {
	out := make([]Message, 0, len(turns)+1)
	if systemInstruction != "" {
		out = append(out, Message{Role: string(RoleSystem), Content: systemInstruction})
	}
	for _, t := range turns {
		out = append(out, Message{Role: wireRole(t.Role), Content: t.Content})
	}
	return out
}

// NormalizeStrict is the variant for APIs that reject repeated roles and
// carry the system prompt out of band: system turns are dropped, runs of the
// same role are merged with a blank line, and the history never opens with
// an assistant turn.
func NormalizeStrict(turns []Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		role := wireRole(t.Role)
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + t.Content
			continue
		}
		out = append(out, Message{Role: role, Content: t.Content})
	}
	if len(out) > 0 && out[0].Role == string(RoleAssistant) {
		out = out[1:]
	}
	return out
}

func wireRole(r Role) string {
	if r == RoleModel {
		return string(RoleAssistant)
	}
	return string(r)
}
