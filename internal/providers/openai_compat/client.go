package openai_compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
)

const (
	MaxTokens   = 4096
	Temperature = 0.7

	MissingKeyReply = "Error: API Key is missing. Please configure it in Settings."
	EmptyReply      = "No response generated. The API returned an empty response."
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
		Str("kind", providers.KindOpenAICompat).
		Logger()
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any    `json:"content"`
			Role    string `json:"role"`
		} `json:"message"`
	} `json:"choices"`
	Error *providers.APIError `json:"error"`
}

// Send dispatches the conversation and returns the reply text. Every
// failure comes back as a display-ready string.
func (c *Client) Send(ctx context.Context, conversation []providers.Turn, systemInstruction string) string {
	if c.cfg.Provider.APIKey == "" {
		c.count("missing_key")
		return MissingKeyReply
	}

	started := time.Now()
	text, outcome := c.send(ctx, conversation, systemInstruction)
	elapsed := time.Since(started)

	c.count(outcome)
	c.cfg.Metrics.DispatchDuration.WithLabelValues(providers.KindOpenAICompat).Observe(elapsed.Seconds())
	c.cfg.Logger.Debug().
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Int("turns", len(conversation)).
		Msg("chat completion finished")
	return text
}

func (c *Client) send(ctx context.Context, conversation []providers.Turn, systemInstruction string) (string, string) {
	temperature := Temperature
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Provider.ModelName,
		Messages:    providers.Normalize(conversation, systemInstruction),
		MaxTokens:   MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return connectError(fmt.Errorf("marshal chat completion payload: %w", err)), "transport_error"
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("chat completion request failed")
		return connectError(err), "transport_error"
	}
	defer resp.Body.Close()

	raw, err := providers.ReadBody(resp)
	if err != nil {
		return connectError(fmt.Errorf("read response body: %w", err)), "transport_error"
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := providers.ErrorMessage(raw, providers.StatusPhrase(resp))
		c.cfg.Logger.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("provider returned error status")
		return fmt.Sprintf("Error connecting to AI provider (%d): %s", resp.StatusCode, msg), "http_error"
	}

	parsed := providers.ParseJSON[chatResponse](raw)
	if !parsed.OK {
		c.cfg.Logger.Debug().Int("bytes", len(raw)).Msg("unparseable chat completion body")
		return connectError(fmt.Errorf("invalid JSON in response body")), "malformed"
	}
	if apiErr := parsed.Value.Error; apiErr != nil {
		msg := apiErr.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "Error from AI provider: " + msg, "provider_error"
	}

	content := ""
	if len(parsed.Value.Choices) > 0 {
		content = providers.ContentText(parsed.Value.Choices[0].Message.Content)
	}
	if content == "" {
		return EmptyReply, "empty"
	}
	return content, "ok"
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointURL(c.cfg.Provider.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Provider.APIKey)
	return c.cfg.HTTPClient.Do(req)
}

func (c *Client) count(outcome string) {
	c.cfg.Metrics.DispatchTotal.WithLabelValues(providers.KindOpenAICompat, outcome).Inc()
}

// EndpointURL appends the chat-completions path to a base URL.
func EndpointURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/chat/completions"
}

func connectError(err error) string {
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	return "Error connecting to AI provider: " + msg
}
