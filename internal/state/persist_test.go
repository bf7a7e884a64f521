package state

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"assistdeck/internal/providers"
	"assistdeck/internal/providers/gemini"
	"assistdeck/internal/secrets"
	"assistdeck/internal/storage"
)

func openPersister(t *testing.T) (*BlobPersister, *storage.Store) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "state.db")
	store, err := storage.Open(context.Background(), "sqlite", dsn, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ring, err := secrets.NewKeyring("k1", map[string][]byte{"k1": make([]byte, 32)})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	return NewBlobPersister(store, ring, zerolog.Nop()), store
}

func TestOpenEmptyStateSeedsDefaults(t *testing.T) {
	p, _ := openPersister(t)
	reg, asst, err := Open(context.Background(), p, testOptions(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(reg.Providers()) != 0 {
		t.Fatalf("expected empty registry")
	}
	if len(asst.List()) != 2 {
		t.Fatalf("expected default assistants, got %d", len(asst.List()))
	}
}

func TestRegistryRoundTripSealsKeys(t *testing.T) {
	ctx := context.Background()
	p, store := openPersister(t)

	reg, _, err := Open(ctx, p, testOptions(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	added, err := reg.Add(ctx, provider("P1"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	blob, err := store.GetBlob(ctx, storage.KeyRegistry)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	if strings.Contains(blob.Value, added.APIKey) || !strings.Contains(blob.Value, secrets.Prefix) {
		t.Fatalf("api key stored unsealed: %s", blob.Value)
	}

	reopened, _, err := Open(ctx, p, testOptions(nil))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	active, ok := reopened.Active()
	if !ok || active.ID != added.ID || active.APIKey != added.APIKey {
		t.Fatalf("unexpected reloaded provider %#v ok=%v", active, ok)
	}

	recs, err := store.RecentActions(ctx, 10)
	if err != nil {
		t.Fatalf("recent actions: %v", err)
	}
	if len(recs) == 0 || recs[0].Action != "provider.add" {
		t.Fatalf("expected provider.add audit entry, got %#v", recs)
	}
}

func TestLegacyConfigMigration(t *testing.T) {
	ctx := context.Background()
	p, store := openPersister(t)
	if err := store.PutBlob(ctx, storage.KeyLegacyAPI, `{"apiKey":"AIza-legacy-key","baseUrl":""}`); err != nil {
		t.Fatalf("put legacy blob: %v", err)
	}

	reg, _, err := Open(ctx, p, testOptions(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	active, ok := reg.Active()
	if !ok {
		t.Fatalf("expected migrated provider to be active")
	}
	if active.Name != MigratedProviderName || active.Kind != providers.KindGemini ||
		active.BaseURL != gemini.DefaultBaseURL || active.ModelName != gemini.DefaultModel ||
		active.APIKey != "AIza-legacy-key" {
		t.Fatalf("unexpected migrated provider %#v", active)
	}
	if _, err := store.GetBlob(ctx, storage.KeyRegistry); err != nil {
		t.Fatalf("migrated registry should be persisted: %v", err)
	}
	if _, err := store.GetBlob(ctx, storage.KeyLegacyAPI); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("legacy blob should be removed after migration, got %v", err)
	}
}

func TestLegacyConfigSkipped(t *testing.T) {
	for _, legacy := range []string{
		`{"apiKey":"","baseUrl":"https://proxy.local"}`,
		`{"providers":[],"activeProviderId":null}`,
		`not json`,
	} {
		ctx := context.Background()
		p, store := openPersister(t)
		if err := store.PutBlob(ctx, storage.KeyLegacyAPI, legacy); err != nil {
			t.Fatalf("put legacy blob: %v", err)
		}
		reg, _, err := Open(ctx, p, testOptions(nil))
		if err != nil {
			t.Fatalf("open with %s: %v", legacy, err)
		}
		if len(reg.Providers()) != 0 {
			t.Fatalf("legacy blob %s should not migrate", legacy)
		}
	}
}

func TestLoadRegistryReadsPlaintextKeys(t *testing.T) {
	ctx := context.Background()
	p, store := openPersister(t)
	raw := `{"providers":[{"id":"a","name":"A","baseUrl":"https://x.test/v1","apiKey":"sk-plain-key","modelName":"m","isActive":true,"createdAt":"2026-01-01T00:00:00Z"}],"activeProviderId":"a"}`
	if err := store.PutBlob(ctx, storage.KeyRegistry, raw); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	snap, err := p.LoadRegistry(ctx, time.Now())
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	if len(snap.Providers) != 1 || snap.Providers[0].APIKey != "sk-plain-key" {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestRotateKeys(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "state.db")
	store, err := storage.Open(ctx, "sqlite", dsn, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	k1 := make([]byte, 32)
	k2 := make([]byte, 32)
	k2[0] = 1
	oldRing, _ := secrets.NewKeyring("k1", map[string][]byte{"k1": k1})
	newRing, _ := secrets.NewKeyring("k2", map[string][]byte{"k1": k1, "k2": k2})

	raw := `{"providers":[` +
		`{"id":"a","name":"A","baseUrl":"https://x.test/v1","apiKey":"sk-plain-key","modelName":"m","isActive":true,"createdAt":"2026-01-01T00:00:00Z"},` +
		`{"id":"b","name":"B","baseUrl":"https://y.test/v1","apiKey":"","modelName":"m","isActive":false,"createdAt":"2026-01-01T00:00:00Z"}` +
		`],"activeProviderId":"a"}`
	if err := store.PutBlob(ctx, storage.KeyRegistry, raw); err != nil {
		t.Fatalf("put blob: %v", err)
	}

	n, err := NewBlobPersister(store, newRing, zerolog.Nop()).RotateKeys(ctx)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 key rotated, got %d", n)
	}
	blob, _ := store.GetBlob(ctx, storage.KeyRegistry)
	if strings.Contains(blob.Value, "sk-plain-key") {
		t.Fatalf("key still in plaintext: %s", blob.Value)
	}

	snap, err := NewBlobPersister(store, newRing, zerolog.Nop()).LoadRegistry(ctx, time.Now())
	if err != nil || snap.Providers[0].APIKey != "sk-plain-key" {
		t.Fatalf("rotated key should open with the new ring: %#v %v", snap, err)
	}
	if _, err := NewBlobPersister(store, oldRing, zerolog.Nop()).LoadRegistry(ctx, time.Now()); err == nil {
		t.Fatalf("old ring should not know the new key id")
	}
}
