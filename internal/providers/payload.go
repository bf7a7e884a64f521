package providers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// MaxResponseBytes caps how much of a provider response is read.
const MaxResponseBytes = 4 << 20

// Parsed is the outcome of decoding a provider payload: either a value
// (OK) or unparseable. Decoding never fails loudly.
type Parsed[T any] struct {
	Value T
	OK    bool
}

func ParseJSON[T any](body []byte) Parsed[T] {
	var v T
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Parsed[T]{}
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Parsed[T]{}
	}
	return Parsed[T]{Value: v, OK: true}
}

// APIError is the error object OpenAI-style APIs put under "error". Some
// gateways send a bare string instead, which is accepted as the message.
type APIError struct {
	Message string          `json:"message"`
	Type    string          `json:"type,omitempty"`
	Code    json.RawMessage `json:"code,omitempty"`
	Status  string          `json:"status,omitempty"`
}

func (e *APIError) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		e.Message = s
		return nil
	}
	type plain APIError
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = APIError(p)
	return nil
}

// ErrorEnvelope matches any body of the shape {"error": ...}.
type ErrorEnvelope struct {
	Error *APIError `json:"error"`
}

// ErrorMessage returns error.message from body, or fallback when the body
// is unparseable or carries no message.
func ErrorMessage(body []byte, fallback string) string {
	env := ParseJSON[ErrorEnvelope](body)
	if env.OK && env.Value.Error != nil && strings.TrimSpace(env.Value.Error.Message) != "" {
		return env.Value.Error.Message
	}
	return fallback
}

// StatusPhrase is the reason phrase for the response status.
func StatusPhrase(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(resp.Status)
}

func ReadBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
}

// ContentText flattens a message content that is either a plain string or
// an array of typed parts.
func ContentText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if txt, ok := m["text"].(string); ok {
					parts = append(parts, txt)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
