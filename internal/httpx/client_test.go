package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

func TestDoJSONRetriesServerError(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1)
	var out map[string]any
	if _, err := GetJSON(context.Background(), client, srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
	if atomic.LoadInt32(&count) != 2 {
		t.Fatalf("expected 2 requests, got %d", count)
	}
}

func TestDoJSONDoesNotRetryNotFound(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(2*time.Second, 3)
	_, err := GetJSON(context.Background(), client, srv.URL, nil, &map[string]any{})
	if err == nil {
		t.Fatal("expected not found error")
	}
	cliErr, ok := clierr.As(err)
	if !ok || cliErr.Code != clierr.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected a single request, got %d", count)
	}
}

func TestRateLimitSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 0, WithRateLimit(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := GetJSON(context.Background(), client, srv.URL, nil, &map[string]any{}); err != nil {
			t.Fatalf("GetJSON failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected limiter to space requests, took %s", elapsed)
	}
}
