package state

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"assistdeck/internal/assistant"
)

type Assistants struct {
	// saveMu orders persistence the same way as Registry.saveMu.
	saveMu sync.Mutex

	mu   sync.Mutex
	list []assistant.Definition
	opts Options
}

func NewAssistants(list []assistant.Definition, opts Options) *Assistants {
	return &Assistants{
		list: append([]assistant.Definition(nil), list...),
		opts: opts.withDefaults(),
	}
}

func (a *Assistants) List() []assistant.Definition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]assistant.Definition{}, a.list...)
}

func (a *Assistants) Get(id string) (assistant.Definition, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexOf(id); i >= 0 {
		return a.list[i], nil
	}
	return assistant.Definition{}, ErrAssistantNotFound
}

// Add puts def at the front of the list, filling in id, creation time and
// display defaults.
func (a *Assistants) Add(ctx context.Context, def assistant.Definition) (assistant.Definition, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	def.Name = strings.TrimSpace(def.Name)
	if !def.Complete() {
		return assistant.Definition{}, ErrAssistantIncomplete
	}
	def = def.WithDefaults()

	a.mu.Lock()
	if def.ID == "" || a.indexOf(def.ID) >= 0 {
		def.ID = a.opts.NewID()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = a.opts.Now().UTC()
	}
	a.list = append([]assistant.Definition{def}, a.list...)
	list := append([]assistant.Definition{}, a.list...)
	a.mu.Unlock()

	return def, a.persist(ctx, "assistant.add", list)
}

func (a *Assistants) Update(ctx context.Context, id string, patch assistant.Patch) (assistant.Definition, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	i := a.indexOf(id)
	if i < 0 {
		a.mu.Unlock()
		return assistant.Definition{}, ErrAssistantNotFound
	}
	updated := a.list[i].Apply(patch)
	if !updated.Complete() {
		a.mu.Unlock()
		return assistant.Definition{}, ErrAssistantIncomplete
	}
	a.list[i] = updated
	list := append([]assistant.Definition{}, a.list...)
	a.mu.Unlock()

	return updated, a.persist(ctx, "assistant.update", list)
}

func (a *Assistants) Delete(ctx context.Context, id string) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	i := a.indexOf(id)
	if i < 0 {
		a.mu.Unlock()
		return ErrAssistantNotFound
	}
	a.list = append(a.list[:i:i], a.list[i+1:]...)
	list := append([]assistant.Definition{}, a.list...)
	a.mu.Unlock()

	return a.persist(ctx, "assistant.delete", list)
}

// Reset replaces the list with the built-in defaults.
func (a *Assistants) Reset(ctx context.Context) ([]assistant.Definition, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	a.list = assistant.Defaults(a.opts.Now().UTC())
	list := append([]assistant.Definition{}, a.list...)
	a.mu.Unlock()

	return list, a.persist(ctx, "assistant.reset", list)
}

func (a *Assistants) persist(ctx context.Context, action string, list []assistant.Definition) error {
	a.opts.Metrics.StateMutations.WithLabelValues(action).Inc()
	if a.opts.Persister == nil {
		return nil
	}
	if err := a.opts.Persister.SaveAssistants(ctx, action, list); err != nil {
		a.opts.Logger.Error().Err(err).Str("action", action).Msg("persist assistants failed")
		return fmt.Errorf("persist assistants: %w", err)
	}
	return nil
}

func (a *Assistants) indexOf(id string) int {
	for i, d := range a.list {
		if d.ID == id {
			return i
		}
	}
	return -1
}
