// Package generator runs the conversational assistant builder: the model
// interviews the user and emits assistant configs that are merged into a
// draft until the user saves it.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assistdeck/internal/assistant"
	"assistdeck/internal/extract"
	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
	"assistdeck/internal/session"
	"assistdeck/internal/state"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrDraftIncomplete = errors.New("draft needs at least a name and a system prompt")
	ErrBusy            = errors.New("a message is already being processed for this session")
)

type Config struct {
	Sessions   *session.Store
	Registry   *state.Registry
	Assistants *state.Assistants
	Build      func(providers.Config) (providers.Provider, error)
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
	NewID      func() string
}

type Service struct {
	cfg Config
}

func New(cfg Config) *Service {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{cfg: cfg}
}

// Reply is the outcome of one generator round.
type Reply struct {
	SessionID    string               `json:"sessionId"`
	Turn         providers.Turn       `json:"turn"`
	Display      string               `json:"display"`
	Draft        assistant.Definition `json:"draft"`
	DraftUpdated bool                 `json:"draftUpdated"`
}

func (s *Service) Start(ctx context.Context) (session.Session, error) {
	now := s.cfg.Now()
	sess := session.Session{
		ID:        s.cfg.NewID(),
		Turns:     []providers.Turn{providers.NewTurn(providers.RoleModel, Greeting, now)},
		Draft:     assistant.NewDraft(),
		UpdatedAt: now.UTC(),
	}
	if err := s.cfg.Sessions.Put(ctx, sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (session.Session, error) {
	return s.cfg.Sessions.Get(ctx, id)
}

// Send adds the user's message, asks the active provider for the next
// turn and folds any config in the reply into the draft. Provider failures
// come back as the reply text, like any other answer.
func (s *Service) Send(ctx context.Context, id, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}

	ok, err := s.cfg.Sessions.Acquire(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{}, ErrBusy
	}
	defer func() {
		if err := s.cfg.Sessions.Release(context.WithoutCancel(ctx), id); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("session", id).Msg("release session failed")
		}
	}()

	sess, err := s.cfg.Sessions.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	active, ok := s.cfg.Registry.Active()
	if !ok {
		return Reply{}, state.ErrNoActiveProvider
	}
	client, err := s.cfg.Build(active)
	if err != nil {
		return Reply{}, fmt.Errorf("build provider: %w", err)
	}

	sess.Turns = append(sess.Turns, providers.NewTurn(providers.RoleUser, text, s.cfg.Now()))
	raw := client.Send(ctx, sess.Turns, SystemPrompt)

	updated := false
	if res, found := extract.Extract(raw); found {
		sess.Draft = sess.Draft.Merge(res.Definition)
		updated = true
		s.cfg.Metrics.ConfigExtractions.WithLabelValues(res.Strategy).Inc()
		s.cfg.Logger.Debug().Str("session", id).Str("strategy", res.Strategy).Msg("draft updated from reply")
	} else {
		s.cfg.Logger.Debug().Str("session", id).Msg("no config in reply")
	}

	modelTurn := providers.NewTurn(providers.RoleModel, raw, s.cfg.Now())
	sess.Turns = append(sess.Turns, modelTurn)
	sess.UpdatedAt = s.cfg.Now().UTC()
	if err := s.cfg.Sessions.Put(ctx, sess); err != nil {
		return Reply{}, err
	}

	display := extract.StripConfigBlocks(raw)
	if display == "" && updated {
		display = UpdatedNote
	}
	return Reply{
		SessionID:    id,
		Turn:         modelTurn,
		Display:      display,
		Draft:        sess.Draft,
		DraftUpdated: updated,
	}, nil
}

// UpdateDraft applies manual edits to the draft.
func (s *Service) UpdateDraft(ctx context.Context, id string, patch assistant.Patch) (session.Session, error) {
	sess, err := s.cfg.Sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	sess.Draft = sess.Draft.Apply(patch)
	sess.UpdatedAt = s.cfg.Now().UTC()
	if err := s.cfg.Sessions.Put(ctx, sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// Reset rewinds the conversation to its opening turn. The draft is kept.
func (s *Service) Reset(ctx context.Context, id string) (session.Session, error) {
	sess, err := s.cfg.Sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if len(sess.Turns) > 1 {
		sess.Turns = sess.Turns[:1]
	}
	sess.UpdatedAt = s.cfg.Now().UTC()
	if err := s.cfg.Sessions.Put(ctx, sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Service) Discard(ctx context.Context, id string) error {
	return s.cfg.Sessions.Delete(ctx, id)
}

// Save turns the draft into a stored assistant and closes the session.
func (s *Service) Save(ctx context.Context, id string) (assistant.Definition, error) {
	sess, err := s.cfg.Sessions.Get(ctx, id)
	if err != nil {
		return assistant.Definition{}, err
	}
	if !sess.Draft.Complete() {
		return assistant.Definition{}, ErrDraftIncomplete
	}

	draft := sess.Draft.WithDefaults()
	draft.ID = s.cfg.NewID()
	draft.CreatedAt = s.cfg.Now().UTC()
	saved, err := s.cfg.Assistants.Add(ctx, draft)
	if err != nil {
		return assistant.Definition{}, err
	}
	if err := s.cfg.Sessions.Delete(ctx, id); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		s.cfg.Logger.Warn().Err(err).Str("session", id).Msg("discard saved session failed")
	}
	return saved, nil
}
