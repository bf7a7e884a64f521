package openai_compat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
)

func newTestClient(baseURL, apiKey string) *Client {
	return New(Config{
		Provider: providers.Config{
			ID:        "p1",
			Name:      "Test Provider",
			BaseURL:   baseURL,
			APIKey:    apiKey,
			ModelName: "gpt-4o-mini",
		},
		Logger:  zerolog.Nop(),
		Metrics: metrics.New(),
	})
}

func TestEndpointURL(t *testing.T) {
	cases := map[string]string{
		"https://api.openai.com/v1":   "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/":  "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1//": "https://api.openai.com/v1/chat/completions",
	}
	for in, want := range cases {
		if got := EndpointURL(in); got != want {
			t.Fatalf("EndpointURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSendBuildsChatCompletionRequest(t *testing.T) {
	var payload map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL+"/v1/", "sk-test-123")
	now := time.Now()
	got := c.Send(context.Background(), []providers.Turn{
		providers.NewTurn(providers.RoleUser, "hello", now),
		providers.NewTurn(providers.RoleModel, "hey", now),
		providers.NewTurn(providers.RoleUser, "how are you", now),
	}, "Be brief")

	if got != "Hi there" {
		t.Fatalf("unexpected reply %q", got)
	}
	if auth != "Bearer sk-test-123" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if payload["model"] != "gpt-4o-mini" {
		t.Fatalf("expected model gpt-4o-mini, got %#v", payload["model"])
	}
	if payload["max_tokens"] != float64(MaxTokens) {
		t.Fatalf("expected max_tokens %d, got %#v", MaxTokens, payload["max_tokens"])
	}
	if payload["temperature"] != Temperature {
		t.Fatalf("expected temperature %v, got %#v", Temperature, payload["temperature"])
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "Be brief" {
		t.Fatalf("unexpected system message %#v", first)
	}
	second := msgs[2].(map[string]any)
	if second["role"] != "assistant" {
		t.Fatalf("model turn should go out as assistant, got %#v", second["role"])
	}
}

func TestSendOmitsEmptySystemInstruction(t *testing.T) {
	var payload struct {
		Messages []providers.Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "sk-test-123")
	c.Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages %#v", payload.Messages)
	}
}

func TestSendMissingKeyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	got := c.Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if got != MissingKeyReply {
		t.Fatalf("unexpected reply %q", got)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, "sk-wrong").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	want := "Error connecting to AI provider (401): Incorrect API key provided"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSendErrorStatusFallsBackToReasonPhrase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, "sk-test-123").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	want := "Error connecting to AI provider (502): Bad Gateway"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSendErrorInSuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, "sk-test-123").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if got != "Error from AI provider: model overloaded" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSendEmptyContent(t *testing.T) {
	for _, body := range []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":""}}]}`,
		`{"choices":[{"message":{"content":null}}]}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		got := newTestClient(srv.URL, "sk-test-123").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
		srv.Close()
		if got != EmptyReply {
			t.Fatalf("body %s: unexpected reply %q", body, got)
		}
	}
}

func TestSendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	got := newTestClient(url, "sk-test-123").Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
	if !strings.HasPrefix(got, "Error connecting to AI provider: ") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSendMalformedBody(t *testing.T) {
	for _, body := range []string{"not json", "<html>gateway</html>", `{"choices":[`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := newTestClient(srv.URL, "sk-test-123")
		got := c.Send(context.Background(), []providers.Turn{{Role: providers.RoleUser, Content: "hi"}}, "")
		srv.Close()

		if !strings.HasPrefix(got, "Error connecting to AI provider: ") {
			t.Fatalf("body %q: unexpected reply %q", body, got)
		}
		if n := testutil.ToFloat64(c.cfg.Metrics.DispatchTotal.WithLabelValues(providers.KindOpenAICompat, "malformed")); n != 1 {
			t.Fatalf("body %q: expected one malformed dispatch, got %v", body, n)
		}
	}
}

func TestProbeSuccess(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hi"}}]}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL, "sk-test-123").Test(context.Background())
	if !res.Success {
		t.Fatalf("expected success, got %#v", res)
	}
	if res.Message != "Connection successful" || res.Details != "Successfully connected to Test Provider" {
		t.Fatalf("unexpected result %#v", res)
	}
	if res.ResponseTimeMs == nil {
		t.Fatalf("expected response time")
	}
	if payload["max_tokens"] != float64(providers.ProbeMaxTokens) {
		t.Fatalf("unexpected max_tokens %#v", payload["max_tokens"])
	}
	if _, ok := payload["temperature"]; ok {
		t.Fatalf("probe must not send temperature")
	}
}

func TestProbeMissingKey(t *testing.T) {
	res := newTestClient("https://api.openai.com/v1", "").Test(context.Background())
	if res.Success || res.Message != "API Key is missing" {
		t.Fatalf("unexpected result %#v", res)
	}
	if res.ResponseTimeMs != nil {
		t.Fatalf("no request means no response time, got %d", *res.ResponseTimeMs)
	}
}

func TestProbeStatusTable(t *testing.T) {
	cases := []struct {
		status  int
		body    string
		message string
		details string
	}{
		{http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "Connection failed: bad key", "Authentication failed. Please check that your API Key is correct"},
		{http.StatusNotFound, ``, "Connection failed: Not Found", "Endpoint not found. Please verify the Base URL is correct"},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, "Connection failed: slow down", "Rate limit exceeded. Please wait a moment and try again"},
		{http.StatusServiceUnavailable, `{}`, "Connection failed: Service Unavailable", "Server error. The provider is experiencing issues. Please try again later"},
		{http.StatusTeapot, `{}`, "Connection failed: I'm a teapot", "HTTP 418. Please check your configuration and try again"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		res := newTestClient(srv.URL, "sk-test-123").Test(context.Background())
		srv.Close()
		if res.Success {
			t.Fatalf("status %d: expected failure", tc.status)
		}
		if res.Message != tc.message || res.Details != tc.details {
			t.Fatalf("status %d: got (%q, %q), want (%q, %q)", tc.status, res.Message, res.Details, tc.message, tc.details)
		}
	}
}

func TestProbeAPIErrorInSuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL, "sk-test-123").Test(context.Background())
	if res.Success || res.Message != "API Error: quota exhausted" || res.Details != "insufficient_quota" {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestProbeUnparseableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if res := newTestClient(srv.URL, "sk-test-123").Test(context.Background()); !res.Success {
		t.Fatalf("expected success, got %#v", res)
	}
}

func TestProbeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestClient(url, "sk-test-123").Test(context.Background())
	if res.Success || res.Message != "Network error" {
		t.Fatalf("unexpected result %#v", res)
	}
	if res.Details == "" {
		t.Fatalf("expected details")
	}
}
