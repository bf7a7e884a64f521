// Package state owns the provider registry and the assistant list. Both are
// mutated only through their methods, and every successful mutation is
// handed to a Persister.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assistdeck/internal/assistant"
	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAssistantNotFound   = errors.New("assistant not found")
	ErrAssistantIncomplete = errors.New("assistant needs a name and a system prompt")
	ErrNoActiveProvider    = errors.New(NoActiveProviderMessage)
)

const NoActiveProviderMessage = "No AI provider configured. Please add a provider in Settings."

// Snapshot is the persisted form of the registry.
type Snapshot struct {
	Providers        []providers.Config `json:"providers"`
	ActiveProviderID *string            `json:"activeProviderId"`
}

type Persister interface {
	SaveRegistry(ctx context.Context, action string, snap Snapshot) error
	SaveAssistants(ctx context.Context, action string, list []assistant.Definition) error
}

type Options struct {
	Persister Persister
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
	NewID     func() string
}

func (o Options) withDefaults() Options {
	if o.Metrics == nil {
		o.Metrics = metrics.Global()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}
