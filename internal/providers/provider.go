package providers

import (
	"context"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModel     Role = "model"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message of a conversation. Timestamp is unix milliseconds.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

func NewTurn(role Role, content string, at time.Time) Turn {
	return Turn{Role: role, Content: content, Timestamp: at.UnixMilli()}
}

const (
	KindOpenAICompat = "openai_compat"
	KindGemini       = "gemini"
)

// Config is one configured chat endpoint with its credentials.
type Config struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"`
	BaseURL   string    `json:"baseUrl"`
	APIKey    string    `json:"apiKey"`
	ModelName string    `json:"modelName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Patch carries the fields an update may change. Nil fields are left alone.
type Patch struct {
	Name      *string `json:"name,omitempty"`
	Kind      *string `json:"kind,omitempty"`
	BaseURL   *string `json:"baseUrl,omitempty"`
	APIKey    *string `json:"apiKey,omitempty"`
	ModelName *string `json:"modelName,omitempty"`
}

func (c Config) Apply(p Patch) Config {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Kind != nil {
		c.Kind = NormalizeKind(*p.Kind)
	}
	if p.BaseURL != nil {
		c.BaseURL = strings.TrimSpace(*p.BaseURL)
	}
	// A masked key echoed back from a listing means "unchanged".
	if p.APIKey != nil && !IsRedacted(*p.APIKey) {
		c.APIKey = strings.TrimSpace(*p.APIKey)
	}
	if p.ModelName != nil {
		c.ModelName = strings.TrimSpace(*p.ModelName)
	}
	return c
}

// TestResult is the outcome of a connection probe. ResponseTimeMs is nil
// when no request was attempted.
type TestResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Details        string `json:"details,omitempty"`
	ResponseTimeMs *int64 `json:"responseTimeMs,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// Provider talks to one configured endpoint. Neither method returns an
// error: every failure is turned into a display string or a failed result.
type Provider interface {
	Send(ctx context.Context, conversation []Turn, systemInstruction string) string
	Test(ctx context.Context) TestResult
}

func NormalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "openai_compat", "openai-compatible", "openai":
		return KindOpenAICompat
	case "gemini", "google":
		return KindGemini
	default:
		return strings.ToLower(strings.TrimSpace(kind))
	}
}

// RedactKey keeps just enough of an API key to tell keys apart.
func RedactKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 8 {
		return "****"
	}
	return string(r[:3]) + "…" + string(r[len(r)-4:])
}

// IsRedacted reports whether key looks like RedactKey output.
func IsRedacted(key string) bool {
	key = strings.TrimSpace(key)
	return key == "****" || strings.Contains(key, "…")
}
