package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{ChatURL: "localhost:11434/api/chat"},
		{ChatURL: "ftp://localhost/api/chat"},
		{ChatURL: "http:///api/chat"},
		{ChatURL: "http://localhost:11434/api/chat", MaxRetries: -1},
	}
	for _, cfg := range cases {
		if _, err := NewClient(cfg, zaptest.NewLogger(t)); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if c.cfg.ChatURL != DefaultChatURL {
		t.Fatalf("expected default chat URL, got %s", c.cfg.ChatURL)
	}
	if c.cfg.MaxRetries != 0 {
		t.Fatalf("expected no retries by default, got %d", c.cfg.MaxRetries)
	}
	if c.cfg.UpstreamTimeout != 0 {
		t.Fatalf("expected no upstream timeout by default, got %s", c.cfg.UpstreamTimeout)
	}
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()

	var gotReq providerChatRequest
	var gotContentType, gotAccept string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"mistral","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"Hi there"},"done":true,"eval_count":3}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/api/chat", 0)

	text, err := client.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Hi there" {
		t.Fatalf("unexpected text: %q", text)
	}

	if gotContentType != "application/json" || gotAccept != "application/json" {
		t.Fatalf("unexpected headers: content-type=%q accept=%q", gotContentType, gotAccept)
	}
	if gotReq.Model != DefaultModel {
		t.Fatalf("expected model %s, got %s", DefaultModel, gotReq.Model)
	}
	if gotReq.Stream {
		t.Fatalf("stream must be false")
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != RoleUser || gotReq.Messages[0].Content != "Hello" {
		t.Fatalf("unexpected request messages: %#v", gotReq.Messages)
	}
	if gotReq.Options != DefaultOptions() {
		t.Fatalf("unexpected options: %#v", gotReq.Options)
	}
}

func TestGeneratePayloadWireFormat(t *testing.T) {
	t.Parallel()

	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = io.WriteString(w, `{"message":{"content":"ok"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	if _, err := client.Generate(context.Background(), "  keep  whitespace "); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// stream must be present even though it is false
	if v, ok := raw["stream"]; !ok || v != false {
		t.Fatalf("expected explicit stream=false, got %#v", raw["stream"])
	}
	opts, ok := raw["options"].(map[string]any)
	if !ok {
		t.Fatalf("missing options: %#v", raw)
	}
	want := map[string]float64{"temperature": 0.7, "num_predict": 500, "top_k": 40, "top_p": 0.9}
	for k, v := range want {
		if opts[k] != v {
			t.Fatalf("option %s: want %v, got %#v", k, v, opts[k])
		}
	}
	msgs := raw["messages"].([]any)
	if msgs[0].(map[string]any)["content"] != "  keep  whitespace " {
		t.Fatalf("message must be sent verbatim: %#v", msgs[0])
	}
}

func TestGenerateNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"mistral\" not found, try pulling it first"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	_, err := client.Generate(context.Background(), "Hello")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
	if upErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", upErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error should carry status and upstream message: %v", err)
	}
}

func TestGenerateNon2xxPlainBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	_, err := client.Generate(context.Background(), "Hello")
	if err == nil || !strings.Contains(err.Error(), "status 500: upstream exploded") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateMalformedResponses(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"not json":           `<html>oops</html>`,
		"missing message":    `{"done":true}`,
		"missing content":    `{"message":{"role":"assistant"}}`,
		"content wrong type": `{"message":{"content":42}}`,
		"message wrong type": `{"message":"hello"}`,
		"null body":          `null`,
	}

	for name, body := range bodies {
		name, body := name, body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, 0)

			text, err := client.Generate(context.Background(), "Hello")
			if err == nil {
				t.Fatalf("expected error, got text %q", text)
			}
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *UpstreamError, got %T", err)
			}
		})
	}
}

func TestGenerateEmptyContentIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":""}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	text, err := client.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestGenerateConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := newTestClient(t, "http://"+addr+"/api/chat", 0)

	_, err = client.Generate(context.Background(), "Hello")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
	if upErr.StatusCode != 0 {
		t.Fatalf("transport failure should not carry a status, got %d", upErr.StatusCode)
	}
	if err.Error() == "" {
		t.Fatalf("expected descriptive error")
	}
}

func TestGenerateUpstreamTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(Config{
		ChatURL:         srv.URL,
		UpstreamTimeout: 50 * time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.Generate(context.Background(), "Hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGenerateRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"message":{"content":"second time lucky"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2)

	text, err := client.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "second time lucky" {
		t.Fatalf("unexpected text: %q", text)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestGenerateNoRetryByDefault(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	_, err := client.Generate(context.Background(), "Hello")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 upstream error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", calls.Load())
	}
}

func newTestClient(t *testing.T, chatURL string, retries int) *OllamaClient {
	t.Helper()

	client, err := NewClient(Config{
		ChatURL:     chatURL,
		MaxRetries:  retries,
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
