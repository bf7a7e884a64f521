// Package gemini talks to the Gemini generateContent REST API. The system
// prompt travels in systemInstruction, history in contents with user/model
// roles, and auth in the x-goog-api-key header.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-3-flash-preview"

	MissingKeyReply   = "Error: API Key is missing. Please configure it in Settings."
	EmptyHistoryReply = "Unable to send message: Content is empty or invalid history."
	EmptyReply        = "No response generated."
)

type Config struct {
	Provider   providers.Config
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	cfg.Logger = cfg.Logger.With().
		Str("provider", cfg.Provider.Name).
		Str("kind", providers.KindGemini).
		Logger()
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *providers.APIError `json:"error"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// toContents maps a conversation onto Gemini contents. Gemini rejects
// repeated roles and a leading model turn, so the strict normalization
// applies.
func toContents(conversation []providers.Turn) []content {
	msgs := providers.NormalizeStrict(conversation)
	out := make([]content, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == string(providers.RoleAssistant) {
			role = string(providers.RoleModel)
		}
		out = append(out, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	return out
}

func (c *Client) Send(ctx context.Context, conversation []providers.Turn, systemInstruction string) string {
	if c.cfg.Provider.APIKey == "" {
		c.count("missing_key")
		return MissingKeyReply
	}
	contents := toContents(conversation)
	if len(contents) == 0 {
		c.count("empty_history")
		return EmptyHistoryReply
	}

	req := generateRequest{Contents: contents}
	if systemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	}

	started := time.Now()
	text, outcome := c.send(ctx, req)
	elapsed := time.Since(started)

	c.count(outcome)
	c.cfg.Metrics.DispatchDuration.WithLabelValues(providers.KindGemini).Observe(elapsed.Seconds())
	c.cfg.Logger.Debug().
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Int("contents", len(contents)).
		Msg("generate content finished")
	return text
}

func (c *Client) send(ctx context.Context, req generateRequest) (string, string) {
	resp, raw, err := c.do(ctx, req)
	if err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("generate content request failed")
		return connectError(err.Error()), "transport_error"
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := providers.ErrorMessage(raw, providers.StatusPhrase(resp))
		c.cfg.Logger.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("provider returned error status")
		return connectError(msg), "http_error"
	}

	parsed := providers.ParseJSON[generateResponse](raw)
	if !parsed.OK {
		return connectError("invalid JSON in response body"), "malformed"
	}
	if apiErr := parsed.Value.Error; apiErr != nil {
		return connectError(apiErr.Message), "provider_error"
	}
	text := parsed.Value.text()
	if text == "" {
		return EmptyReply, "empty"
	}
	return text, "ok"
}

func (c *Client) do(ctx context.Context, body generateRequest) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal generate payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointURL(c.cfg.Provider.BaseURL, c.cfg.Provider.ModelName), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.Provider.APIKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := providers.ReadBody(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp, raw, nil
}

func (c *Client) count(outcome string) {
	c.cfg.Metrics.DispatchTotal.WithLabelValues(providers.KindGemini, outcome).Inc()
}

// EndpointURL builds the generateContent URL. Empty base URL and model fall
// back to the public API and the default model.
func EndpointURL(baseURL, model string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = DefaultModel
	}
	return base + "/models/" + url.PathEscape(model) + ":generateContent"
}

func connectError(msg string) string {
	if strings.TrimSpace(msg) == "" {
		msg = "Unknown error"
	}
	return "Error connecting to AI: " + msg
}
