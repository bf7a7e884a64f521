package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assistdeck/internal/assistant"
	"assistdeck/internal/providers"
	"assistdeck/internal/providers/gemini"
	"assistdeck/internal/storage"
)

const MigratedProviderName = "Gemini (migrated)"

type BlobStore interface {
	GetBlob(ctx context.Context, key string) (storage.Blob, error)
	PutBlob(ctx context.Context, key, value string) error
	DeleteBlob(ctx context.Context, key string) error
	LogAction(ctx context.Context, e storage.AuditEntry) error
}

// Sealer protects API keys at rest. Open must accept unsealed values.
type Sealer interface {
	Seal(value string) (string, error)
	Open(value string) (string, error)
	Reseal(value string) (string, error)
}

// BlobPersister stores the registry and assistant list as JSON blobs and
// writes an audit entry per save.
type BlobPersister struct {
	store  BlobStore
	sealer Sealer
	log    zerolog.Logger
}

func NewBlobPersister(store BlobStore, sealer Sealer, log zerolog.Logger) *BlobPersister {
	return &BlobPersister{store: store, sealer: sealer, log: log}
}

var _ Persister = (*BlobPersister)(nil)

func (p *BlobPersister) SaveRegistry(ctx context.Context, action string, snap Snapshot) error {
	sealed := Snapshot{
		Providers:        make([]providers.Config, 0, len(snap.Providers)),
		ActiveProviderID: snap.ActiveProviderID,
	}
	for _, pc := range snap.Providers {
		key, err := p.sealer.Seal(pc.APIKey)
		if err != nil {
			return fmt.Errorf("seal api key for %s: %w", pc.ID, err)
		}
		pc.APIKey = key
		sealed.Providers = append(sealed.Providers, pc)
	}
	b, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := p.store.PutBlob(ctx, storage.KeyRegistry, string(b)); err != nil {
		return err
	}

	meta := map[string]any{"providers": len(snap.Providers)}
	if snap.ActiveProviderID != nil {
		meta["activeProviderId"] = *snap.ActiveProviderID
	}
	p.audit(ctx, storage.KeyRegistry, action, meta)
	return nil
}

func (p *BlobPersister) SaveAssistants(ctx context.Context, action string, list []assistant.Definition) error {
	if list == nil {
		list = []assistant.Definition{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal assistants: %w", err)
	}
	if err := p.store.PutBlob(ctx, storage.KeyAssistants, string(b)); err != nil {
		return err
	}
	p.audit(ctx, storage.KeyAssistants, action, map[string]any{"assistants": len(list)})
	return nil
}

// audit failures never fail the save.
func (p *BlobPersister) audit(ctx context.Context, subject, action string, meta map[string]any) {
	b, _ := json.Marshal(meta)
	if err := p.store.LogAction(ctx, storage.AuditEntry{Subject: subject, Action: action, MetaJSON: string(b)}); err != nil {
		p.log.Warn().Err(err).Str("action", action).Msg("write audit entry failed")
	}
}

// LoadRegistry reads the registry blob. When it is absent a legacy
// single-key config is migrated into a one-provider registry and saved.
func (p *BlobPersister) LoadRegistry(ctx context.Context, now time.Time) (Snapshot, error) {
	blob, err := p.store.GetBlob(ctx, storage.KeyRegistry)
	switch {
	case err == nil:
		return p.decodeRegistry(blob.Value)
	case !errors.Is(err, storage.ErrNotFound):
		return Snapshot{}, fmt.Errorf("load registry: %w", err)
	}

	snap, ok, err := p.migrateLegacy(ctx, now)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return Snapshot{Providers: []providers.Config{}}, nil
	}
	if err := p.SaveRegistry(ctx, "registry.migrate", snap); err != nil {
		return Snapshot{}, fmt.Errorf("save migrated registry: %w", err)
	}
	// The legacy blob holds the key in plaintext.
	if err := p.store.DeleteBlob(ctx, storage.KeyLegacyAPI); err != nil {
		p.log.Warn().Err(err).Msg("delete legacy api config failed")
	}
	p.log.Info().Str("provider", MigratedProviderName).Msg("migrated legacy api config")
	return snap, nil
}

// RotateKeys re-encrypts every stored API key under the current master key
// without loading the registry. It returns how many keys were rewritten.
func (p *BlobPersister) RotateKeys(ctx context.Context) (int, error) {
	blob, err := p.store.GetBlob(ctx, storage.KeyRegistry)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load registry: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(blob.Value), &snap); err != nil {
		return 0, fmt.Errorf("decode registry: %w", err)
	}

	n := 0
	for i, pc := range snap.Providers {
		if pc.APIKey == "" {
			continue
		}
		key, err := p.sealer.Reseal(pc.APIKey)
		if err != nil {
			return 0, fmt.Errorf("reseal api key for %s: %w", pc.ID, err)
		}
		snap.Providers[i].APIKey = key
		n++
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal registry: %w", err)
	}
	if err := p.store.PutBlob(ctx, storage.KeyRegistry, string(b)); err != nil {
		return 0, err
	}
	p.audit(ctx, storage.KeyRegistry, "registry.rotate_keys", map[string]any{"keys": n})
	return n, nil
}

func (p *BlobPersister) decodeRegistry(raw string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode registry: %w", err)
	}
	for i := range snap.Providers {
		key, err := p.sealer.Open(snap.Providers[i].APIKey)
		if err != nil {
			return Snapshot{}, fmt.Errorf("open api key for %s: %w", snap.Providers[i].ID, err)
		}
		snap.Providers[i].APIKey = key
	}
	return snap, nil
}

type legacyAPIConfig struct {
	APIKey    string          `json:"apiKey"`
	BaseURL   string          `json:"baseUrl"`
	Providers json.RawMessage `json:"providers"`
}

func (p *BlobPersister) migrateLegacy(ctx context.Context, now time.Time) (Snapshot, bool, error) {
	blob, err := p.store.GetBlob(ctx, storage.KeyLegacyAPI)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load legacy api config: %w", err)
	}

	var legacy legacyAPIConfig
	if err := json.Unmarshal([]byte(blob.Value), &legacy); err != nil {
		p.log.Debug().Err(err).Msg("legacy api config unreadable, skipping migration")
		return Snapshot{}, false, nil
	}
	if legacy.Providers != nil {
		return Snapshot{}, false, nil
	}
	key, err := p.sealer.Open(strings.TrimSpace(legacy.APIKey))
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("open legacy api key: %w", err)
	}
	if key == "" {
		return Snapshot{}, false, nil
	}

	base := strings.TrimSpace(legacy.BaseURL)
	if base == "" {
		base = gemini.DefaultBaseURL
	}
	migrated := providers.Config{
		ID:        uuid.NewString(),
		Name:      MigratedProviderName,
		Kind:      providers.KindGemini,
		BaseURL:   base,
		APIKey:    key,
		ModelName: gemini.DefaultModel,
		IsActive:  true,
		CreatedAt: now.UTC(),
	}
	id := migrated.ID
	return Snapshot{Providers: []providers.Config{migrated}, ActiveProviderID: &id}, true, nil
}

// LoadAssistants reads the assistant list, seeding the defaults when
// nothing was stored yet.
func (p *BlobPersister) LoadAssistants(ctx context.Context, now time.Time) ([]assistant.Definition, error) {
	blob, err := p.store.GetBlob(ctx, storage.KeyAssistants)
	if errors.Is(err, storage.ErrNotFound) {
		return assistant.Defaults(now.UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load assistants: %w", err)
	}
	var list []assistant.Definition
	if err := json.Unmarshal([]byte(blob.Value), &list); err != nil {
		return nil, fmt.Errorf("decode assistants: %w", err)
	}
	return list, nil
}

// Open loads both containers and wires them to persist through p.
func Open(ctx context.Context, p *BlobPersister, opts Options) (*Registry, *Assistants, error) {
	opts = opts.withDefaults()
	opts.Persister = p

	snap, err := p.LoadRegistry(ctx, opts.Now())
	if err != nil {
		return nil, nil, err
	}
	list, err := p.LoadAssistants(ctx, opts.Now())
	if err != nil {
		return nil, nil, err
	}
	return NewRegistry(snap, opts), NewAssistants(list, opts), nil
}
