package state

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"assistdeck/internal/providers"
)

type Registry struct {
	// saveMu serialises mutations from snapshot through persistence so
	// saves land in the order the changes were made. Take it before mu.
	saveMu sync.Mutex

	mu        sync.Mutex
	providers []providers.Config
	activeID  string
	opts      Options
}

// NewRegistry restores a registry from snap. A dangling active id is
// dropped, and when no id is recorded the first provider flagged active is
// adopted. Flags are then rewritten to match the active id.
func NewRegistry(snap Snapshot, opts Options) *Registry {
	r := &Registry{opts: opts.withDefaults()}
	r.providers = append([]providers.Config(nil), snap.Providers...)
	for i := range r.providers {
		r.providers[i].Kind = providers.NormalizeKind(r.providers[i].Kind)
	}

	if snap.ActiveProviderID != nil && r.indexOf(*snap.ActiveProviderID) >= 0 {
		r.activeID = *snap.ActiveProviderID
	} else {
		for _, p := range r.providers {
			if p.IsActive {
				r.activeID = p.ID
				break
			}
		}
	}
	r.syncFlags()
	return r
}

func (r *Registry) Providers() []providers.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]providers.Config(nil), r.providers...)
}

func (r *Registry) Get(id string) (providers.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return providers.Config{}, ErrProviderNotFound
	}
	return r.providers[i], nil
}

// Active resolves the active provider. ok is false when none is set.
func (r *Registry) Active() (providers.Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(r.activeID)
	if r.activeID == "" || i < 0 {
		return providers.Config{}, false
	}
	return r.providers[i], true
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Add validates and appends p. The first provider becomes active.
func (r *Registry) Add(ctx context.Context, p providers.Config) (providers.Config, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.ModelName = strings.TrimSpace(p.ModelName)
	p.Kind = providers.NormalizeKind(p.Kind)
	p.IsActive = false

	r.mu.Lock()
	if p.ID == "" {
		p.ID = r.opts.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.opts.Now().UTC()
	}
	if r.indexOf(p.ID) >= 0 {
		r.mu.Unlock()
		return providers.Config{}, fmt.Errorf("provider id %q already exists", p.ID)
	}
	if err := providers.Validate(p, r.providers); err != nil {
		r.mu.Unlock()
		return providers.Config{}, err
	}

	if len(r.providers) == 0 {
		r.activeID = p.ID
		p.IsActive = true
	}
	r.providers = append(r.providers, p)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	return p, r.persist(ctx, "provider.add", snap)
}

// AddFromPreset adds a provider built from a named preset.
func (r *Registry) AddFromPreset(ctx context.Context, key, apiKey string) (providers.Config, error) {
	preset, ok := providers.LookupPreset(key)
	if !ok {
		return providers.Config{}, fmt.Errorf("unknown preset %q", key)
	}
	return r.Add(ctx, providers.Config{
		Name:      preset.Name,
		Kind:      preset.Kind,
		BaseURL:   preset.BaseURL,
		APIKey:    apiKey,
		ModelName: preset.Model,
	})
}

// Update merges patch into the provider with id. The id, active flag and
// creation time are not patchable.
func (r *Registry) Update(ctx context.Context, id string, patch providers.Patch) (providers.Config, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return providers.Config{}, ErrProviderNotFound
	}
	updated := r.providers[i].Apply(patch)
	if err := providers.Validate(updated, r.providers); err != nil {
		r.mu.Unlock()
		return providers.Config{}, err
	}
	r.providers[i] = updated
	snap := r.snapshotLocked()
	r.mu.Unlock()

	return updated, r.persist(ctx, "provider.update", snap)
}

// Delete removes the provider. Deleting the active one selects the first
// remaining provider, or none.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return ErrProviderNotFound
	}
	r.providers = append(r.providers[:i:i], r.providers[i+1:]...)
	if r.activeID == id {
		r.activeID = ""
		if len(r.providers) > 0 {
			r.activeID = r.providers[0].ID
		}
	}
	r.syncFlags()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	return r.persist(ctx, "provider.delete", snap)
}

func (r *Registry) SetActive(ctx context.Context, id string) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	if r.indexOf(id) < 0 {
		r.mu.Unlock()
		return ErrProviderNotFound
	}
	r.activeID = id
	r.syncFlags()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	return r.persist(ctx, "provider.activate", snap)
}

func (r *Registry) persist(ctx context.Context, action string, snap Snapshot) error {
	r.opts.Metrics.StateMutations.WithLabelValues(action).Inc()
	if r.opts.Persister == nil {
		return nil
	}
	if err := r.opts.Persister.SaveRegistry(ctx, action, snap); err != nil {
		r.opts.Logger.Error().Err(err).Str("action", action).Msg("persist registry failed")
		return fmt.Errorf("persist registry: %w", err)
	}
	return nil
}

func (r *Registry) syncFlags() {
	for i := range r.providers {
		r.providers[i].IsActive = r.activeID != "" && r.providers[i].ID == r.activeID
	}
}

func (r *Registry) indexOf(id string) int {
	for i, p := range r.providers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := Snapshot{Providers: append([]providers.Config{}, r.providers...)}
	if r.activeID != "" {
		id := r.activeID
		snap.ActiveProviderID = &id
	}
	return snap
}
