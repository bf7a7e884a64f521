package factory

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
	"assistdeck/internal/providers/gemini"
	"assistdeck/internal/providers/openai_compat"
)

type Options struct {
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Build returns the client for cfg's kind. An empty kind is treated as
// OpenAI-compatible.
func Build(cfg providers.Config, opts Options) (providers.Provider, error) {
	switch providers.NormalizeKind(cfg.Kind) {
	case providers.KindOpenAICompat:
		return openai_compat.New(openai_compat.Config{
			Provider:   cfg,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
			Metrics:    opts.Metrics,
		}), nil

	case providers.KindGemini:
		return gemini.New(gemini.Config{
			Provider:   cfg,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
			Metrics:    opts.Metrics,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported provider kind %q", cfg.Kind)
	}
}
