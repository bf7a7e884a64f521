package gemini

import (
	"context"
	"time"

	"assistdeck/internal/providers"
)

func (c *Client) Test(ctx context.Context) providers.TestResult {
	started := time.Now()
	result := c.test(ctx, started)

	c.cfg.Metrics.ProbeTotal.WithLabelValues(providers.KindGemini, providers.ConnectionOutcome(result)).Inc()
	c.cfg.Logger.Info().Bool("success", result.Success).Str("message", result.Message).Msg("connection test finished")
	return result
}

func (c *Client) test(ctx context.Context, started time.Time) providers.TestResult {
	if c.cfg.Provider.APIKey == "" {
		return providers.MissingKeyResult(started)
	}
	resp, raw, err := c.do(ctx, generateRequest{
		Contents:         []content{{Role: string(providers.RoleUser), Parts: []part{{Text: providers.ProbeContent}}}},
		GenerationConfig: &generationConfig{MaxOutputTokens: providers.ProbeMaxTokens},
	})
	elapsed := time.Since(started)
	if err != nil {
		return providers.NetworkErrorResult(err, elapsed, started)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.StatusFailureResult(resp.StatusCode, providers.ErrorMessage(raw, providers.StatusPhrase(resp)), elapsed, started)
	}
	if parsed := providers.ParseJSON[generateResponse](raw); parsed.OK && parsed.Value.Error != nil {
		return providers.APIErrorResult(parsed.Value.Error, elapsed, started)
	}
	return providers.SuccessResult(c.cfg.Provider.Name, elapsed, started)
}
