package openai_compat

import (
	"context"
	"encoding/json"
	"time"

	"assistdeck/internal/providers"
)

// Test sends a minimal completion request to check credentials and
// reachability. It is never used on the chat path.
func (c *Client) Test(ctx context.Context) providers.TestResult {
	started := time.Now()
	result := c.test(ctx, started)
	c.cfg.Metrics.ProbeTotal.WithLabelValues(providers.KindOpenAICompat, providers.ConnectionOutcome(result)).Inc()
	c.cfg.Logger.Info().
		Bool("success", result.Success).
		Str("message", result.Message).
		Msg("connection test finished")
	return result
}

func (c *Client) test(ctx context.Context, started time.Time) providers.TestResult {
	if c.cfg.Provider.APIKey == "" {
		return providers.MissingKeyResult(started)
	}

	body, err := json.Marshal(chatRequest{
		Model:     c.cfg.Provider.ModelName,
		Messages:  []providers.Message{{Role: string(providers.RoleUser), Content: providers.ProbeContent}},
		MaxTokens: providers.ProbeMaxTokens,
	})
	if err != nil {
		return providers.NetworkErrorResult(err, time.Since(started), started)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return providers.NetworkErrorResult(err, time.Since(started), started)
	}
	defer resp.Body.Close()
	raw, readErr := providers.ReadBody(resp)
	elapsed := time.Since(started)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.StatusFailureResult(resp.StatusCode, providers.ErrorMessage(raw, providers.StatusPhrase(resp)), elapsed, started)
	}
	if readErr != nil {
		return providers.NetworkErrorResult(readErr, elapsed, started)
	}

	// An unparseable 2xx body still proves the endpoint answered.
	if parsed := providers.ParseJSON[chatResponse](raw); parsed.OK && parsed.Value.Error != nil {
		return providers.APIErrorResult(parsed.Value.Error, elapsed, started)
	}
	return providers.SuccessResult(c.cfg.Provider.Name, elapsed, started)
}
