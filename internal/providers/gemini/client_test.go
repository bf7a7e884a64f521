package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
)

func newTestClient(baseURL, apiKey string) *Client {
	return New(Config{
		Provider: providers.Config{
			Name:      "Gemini",
			Kind:      providers.KindGemini,
			BaseURL:   baseURL,
			APIKey:    apiKey,
			ModelName: "gemini-3-flash-preview",
		},
		Logger:  zerolog.Nop(),
		Metrics: metrics.New(),
	})
}

func TestEndpointURL(t *testing.T) {
	got := EndpointURL("", "")
	want := "https://generativelanguage.googleapis.com/v1beta/models/gemini-3-flash-preview:generateContent"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := EndpointURL("https://proxy.local/v1beta/", "models/gemini-pro"); got != "https://proxy.local/v1beta/models/gemini-pro:generateContent" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}

func TestToContentsMergesAndDropsLeadingModel(t *testing.T) {
	got := toContents([]providers.Turn{
		{Role: providers.RoleModel, Content: "greeting"},
		{Role: providers.RoleSystem, Content: "ignored"},
		{Role: providers.RoleUser, Content: "a"},
		{Role: providers.RoleUser, Content: "b"},
		{Role: providers.RoleModel, Content: "c"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 contents, got %#v", got)
	}
	if got[0].Role != "user" || got[0].Parts[0].Text != "a\n\nb" {
		t.Fatalf("unexpected first content %#v", got[0])
	}
	if got[1].Role != "model" || got[1].Parts[0].Text != "c" {
		t.Fatalf("unexpected second content %#v", got[1])
	}
}

func TestSendRequestShape(t *testing.T) {
	var body generateRequest
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-3-flash-preview:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		key = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"},{"text":"lo"}]}}]}`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, "AIza-test").Send(context.Background(), []providers.Turn{
		{Role: providers.RoleUser, Content: "hi"},
	}, "be kind")
	if got != "Hello" {
		t.Fatalf("unexpected reply %q", got)
	}
	if key != "AIza-test" {
		t.Fatalf("unexpected api key header %q", key)
	}
	if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != "be kind" {
		t.Fatalf("system instruction missing: %#v", body.SystemInstruction)
	}
}

func TestSendEmptyHistoryMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	got := newTestClient(srv.URL, "AIza-test").Send(context.Background(), []providers.Turn{
		{Role: providers.RoleModel, Content: "only a greeting"},
	}, "")
	if got != EmptyHistoryReply {
		t.Fatalf("unexpected reply %q", got)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request")
	}
}

func TestSendMissingKey(t *testing.T) {
	got := newTestClient("", "").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if got != MissingKeyReply {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, "AIza-bad").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if got != "Error connecting to AI: API key not valid." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSendNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, "AIza-test").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if got != EmptyReply {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSendMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "AIza-test")
	got := c.Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if !strings.HasPrefix(got, "Error connecting to AI: ") {
		t.Fatalf("unexpected reply %q", got)
	}
	if n := testutil.ToFloat64(c.cfg.Metrics.DispatchTotal.WithLabelValues(providers.KindGemini, "malformed")); n != 1 {
		t.Fatalf("expected one malformed dispatch, got %v", n)
	}
}

func TestProbeAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"bad key","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL, "AIza-test").Test(context.Background())
	if res.Success || res.Message != "Connection failed: bad key" {
		t.Fatalf("unexpected result %#v", res)
	}
	if res.Details != "Authentication failed. Please check that your API Key is correct" {
		t.Fatalf("unexpected details %q", res.Details)
	}
}

func TestProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hi"}]}}]}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL, "AIza-test").Test(context.Background())
	if !res.Success || res.Details != "Successfully connected to Gemini" {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestConnectionTestNetworkErrorLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(url, "AIza-test")
	res := c.Test(context.Background())
	if res.Success || res.Message != "Network error" {
		t.Fatalf("unexpected result %#v", res)
	}
	if n := testutil.ToFloat64(c.cfg.Metrics.ProbeTotal.WithLabelValues(providers.KindGemini, "network_error")); n != 1 {
		t.Fatalf("expected one network_error test, got %v", n)
	}
}
