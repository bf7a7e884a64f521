// Package chat sends a conversation with a stored assistant to the active
// provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"assistdeck/internal/providers"
	"assistdeck/internal/state"
)

var ErrEmptyMessage = errors.New("message is empty")

type Config struct {
	Registry   *state.Registry
	Assistants *state.Assistants
	Build      func(providers.Config) (providers.Provider, error)
	Logger     zerolog.Logger
	Now        func() time.Time
}

type Service struct {
	cfg Config
}

func New(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

type Result struct {
	Conversation []providers.Turn `json:"conversation"`
	Reply        providers.Turn   `json:"reply"`
}

// Send appends text as a user turn to history and returns the extended
// conversation together with the model's reply. The caller owns history.
func (s *Service) Send(ctx context.Context, assistantID string, history []providers.Turn, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyMessage
	}
	def, err := s.cfg.Assistants.Get(assistantID)
	if err != nil {
		return Result{}, err
	}
	active, ok := s.cfg.Registry.Active()
	if !ok {
		return Result{}, state.ErrNoActiveProvider
	}
	client, err := s.cfg.Build(active)
	if err != nil {
		return Result{}, fmt.Errorf("build provider: %w", err)
	}

	conversation := make([]providers.Turn, 0, len(history)+2)
	conversation = append(conversation, history...)
	conversation = append(conversation, providers.NewTurn(providers.RoleUser, text, s.cfg.Now()))

	started := time.Now()
	text = client.Send(ctx, conversation, def.SystemPrompt)
	s.cfg.Logger.Info().
		Str("assistant", def.ID).
		Str("provider", active.Name).
		Int("turns", len(conversation)).
		Dur("elapsed", time.Since(started)).
		Msg("chat reply")

	reply := providers.NewTurn(providers.RoleModel, text, s.cfg.Now())
	return Result{Conversation: append(conversation, reply), Reply: reply}, nil
}
