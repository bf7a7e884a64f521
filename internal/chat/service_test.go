package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"assistdeck/internal/assistant"
	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
	"assistdeck/internal/providers/factory"
	"assistdeck/internal/state"
)

func newService(t *testing.T, baseURL string) *Service {
	t.Helper()
	m := metrics.New()
	opts := state.Options{Logger: zerolog.Nop(), Metrics: m}
	reg := state.NewRegistry(state.Snapshot{}, opts)
	if baseURL != "" {
		if _, err := reg.Add(context.Background(), providers.Config{
			Name: "Local", BaseURL: baseURL, APIKey: "sk-local-key", ModelName: "m",
		}); err != nil {
			t.Fatalf("add provider: %v", err)
		}
	}
	asst := state.NewAssistants(assistant.Defaults(time.Now()), opts)
	return New(Config{
		Registry:   reg,
		Assistants: asst,
		Build: func(cfg providers.Config) (providers.Provider, error) {
			return factory.Build(cfg, factory.Options{Logger: zerolog.Nop(), Metrics: m})
		},
		Logger: zerolog.Nop(),
	})
}

func TestSendUsesAssistantPrompt(t *testing.T) {
	var req struct {
		Messages []providers.Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Use a map."}}]}`))
	}))
	defer srv.Close()

	svc := newService(t, srv.URL)
	history := []providers.Turn{
		{Role: providers.RoleUser, Content: "hi", Timestamp: 1},
		{Role: providers.RoleModel, Content: "hello", Timestamp: 2},
	}
	res, err := svc.Send(context.Background(), "default-1", history, "How do I dedupe a slice?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Reply.Role != providers.RoleModel || res.Reply.Content != "Use a map." {
		t.Fatalf("unexpected reply %#v", res.Reply)
	}
	if len(res.Conversation) != 4 || res.Conversation[2].Content != "How do I dedupe a slice?" {
		t.Fatalf("unexpected conversation %#v", res.Conversation)
	}
	if len(history) != 2 {
		t.Fatalf("caller history must not be modified")
	}
	if len(req.Messages) != 4 || req.Messages[0].Role != "system" {
		t.Fatalf("unexpected wire messages %#v", req.Messages)
	}
	want := assistant.Defaults(time.Now())[0].SystemPrompt
	if req.Messages[0].Content != want {
		t.Fatalf("assistant system prompt not sent")
	}
}

func TestSendErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, "")

	if _, err := svc.Send(ctx, "default-1", nil, " "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.Send(ctx, "nope", nil, "hi"); !errors.Is(err, state.ErrAssistantNotFound) {
		t.Fatalf("expected ErrAssistantNotFound, got %v", err)
	}
	_, err := svc.Send(ctx, "default-1", nil, "hi")
	if !errors.Is(err, state.ErrNoActiveProvider) || err.Error() != state.NoActiveProviderMessage {
		t.Fatalf("expected ErrNoActiveProvider, got %v", err)
	}
}

func TestSendProviderFailureIsReplyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	res, err := newService(t, srv.URL).Send(context.Background(), "default-2", nil, "hi")
	if err != nil {
		t.Fatalf("provider failures should not be errors: %v", err)
	}
	if res.Reply.Content != "Error connecting to AI provider (401): invalid_api_key" {
		t.Fatalf("unexpected reply %q", res.Reply.Content)
	}
}
