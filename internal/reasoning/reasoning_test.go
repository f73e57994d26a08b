// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reasoning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// stubEngine fails a fixed number of times before succeeding.
type stubEngine struct {
	failures int
	failWith error
	calls    int
}

func (s *stubEngine) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", s.failWith
	}
	return "ok", nil
}

func TestCompleteWithRetryRecoversFromTransient(t *testing.T) {
	engine := &stubEngine{failures: 2, failWith: fmt.Errorf("%w: flaky", ErrUnavailable)}

	text, err := CompleteWithRetry(context.Background(), engine, "p", 3, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if text != "ok" {
		t.Errorf("text = %q, want ok", text)
	}
	if engine.calls != 3 {
		t.Errorf("calls = %d, want 3", engine.calls)
	}
}

func TestCompleteWithRetryExhaustsBudget(t *testing.T) {
	engine := &stubEngine{failures: 10, failWith: fmt.Errorf("%w: down", ErrUnavailable)}

	_, err := CompleteWithRetry(context.Background(), engine, "p", 2, time.Millisecond)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	// Initial attempt plus two retries.
	if engine.calls != 3 {
		t.Errorf("calls = %d, want 3", engine.calls)
	}
}

func TestCompleteWithRetryDoesNotRetryRefusal(t *testing.T) {
	engine := &stubEngine{failures: 10, failWith: fmt.Errorf("%w: policy", ErrRefused)}

	_, err := CompleteWithRetry(context.Background(), engine, "p", 3, time.Millisecond)
	if !errors.Is(err, ErrRefused) {
		t.Errorf("err = %v, want ErrRefused", err)
	}
	if engine.calls != 1 {
		t.Errorf("calls = %d, want 1", engine.calls)
	}
}

func TestCompleteWithRetryHonorsContext(t *testing.T) {
	engine := &stubEngine{failures: 10, failWith: fmt.Errorf("%w: down", ErrUnavailable)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := CompleteWithRetry(ctx, engine, "p", 5, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[1,2]\n```\ntrailing", "[1,2]"},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"surrounding whitespace", "  \n {\"a\":1} \n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- Claude backend ---

func swapClaudeURL(t *testing.T, url string) {
	t.Helper()
	old := claudeAPIURL
	claudeAPIURL = url
	t.Cleanup(func() { claudeAPIURL = old })
}

func TestClaudeBackendComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"completion text"}]}`)
	}))
	defer srv.Close()
	swapClaudeURL(t, srv.URL)

	backend := &ClaudeBackend{APIKey: "sk-test", Model: "claude-test", MaxTokens: 1024}
	text, err := backend.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if text != "completion text" {
		t.Errorf("text = %q", text)
	}
}

func TestClaudeBackendErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"bad request", http.StatusBadRequest, ErrRefused},
		{"unauthorized", http.StatusUnauthorized, ErrRefused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			swapClaudeURL(t, srv.URL)

			backend := &ClaudeBackend{APIKey: "sk-test", Model: "claude-test", MaxTokens: 1024}
			_, err := backend.Complete(context.Background(), "prompt")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewClaudeBackendCarriesTimeout(t *testing.T) {
	backend := NewClaudeBackend(types.ReasoningConfig{Model: "claude-test", Timeout: 5 * time.Second})
	if backend.Client == nil {
		t.Fatal("backend has no HTTP client")
	}
	if backend.Client.Timeout != 5*time.Second {
		t.Errorf("client timeout = %s, want 5s", backend.Client.Timeout)
	}

	backend = NewClaudeBackend(types.ReasoningConfig{Model: "claude-test"})
	if backend.Client == nil || backend.Client.Timeout != 60*time.Second {
		t.Errorf("default client timeout = %v, want 60s", backend.Client)
	}
}

func TestClaudeBackendHungCallIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)
	swapClaudeURL(t, srv.URL)

	backend := &ClaudeBackend{
		APIKey:    "sk-test",
		Model:     "claude-test",
		MaxTokens: 1024,
		Client:    &http.Client{Timeout: 20 * time.Millisecond},
	}
	_, err := backend.Complete(context.Background(), "prompt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClaudeBackendEmptyContentIsRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	}))
	defer srv.Close()
	swapClaudeURL(t, srv.URL)

	backend := &ClaudeBackend{APIKey: "sk-test", Model: "claude-test", MaxTokens: 1024}
	_, err := backend.Complete(context.Background(), "prompt")
	if !errors.Is(err, ErrRefused) {
		t.Errorf("err = %v, want ErrRefused", err)
	}
}
