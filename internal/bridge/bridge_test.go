package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/sinktrace/driver"
)

func TestWebhook_Trigger(t *testing.T) {
	var got driver.TriggerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b := NewWebhook(srv.URL)
	err := b.Trigger(context.Background(), driver.TriggerRequest{
		ContextHandle: "ctx-1",
		URL:           "https://target.example/page",
		Canary:        "XSS_CANARY_42",
	})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if got.ContextHandle != "ctx-1" || got.Canary != "XSS_CANARY_42" {
		t.Errorf("payload: got %+v", got)
	}
}

func TestWebhook_TriggerBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "agent busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewWebhook(srv.URL)
	err := b.Trigger(context.Background(), driver.TriggerRequest{URL: "https://x.example"})
	if err == nil {
		t.Fatal("Trigger: want error for non-2xx status")
	}
}

func TestWebhook_TriggerUnreachable(t *testing.T) {
	b := NewWebhook("http://127.0.0.1:1", WithWebhookClient(&http.Client{Timeout: 200 * time.Millisecond}))
	err := b.Trigger(context.Background(), driver.TriggerRequest{URL: "https://x.example"})
	if err == nil {
		t.Fatal("Trigger: want error for unreachable agent")
	}
}

func TestNavigate_TriggerDispatchesInBackground(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	nav := func(_ context.Context, h driver.ContextHandle, url string) error {
		calls.Add(1)
		close(started)
		if h != "ctx-7" || url != "https://target.example/form" {
			t.Errorf("nav: got %q %q", h, url)
		}
		return errors.New("navigation interrupted by pause")
	}

	b := NewNavigate(nav, nil)
	err := b.Trigger(context.Background(), driver.TriggerRequest{
		ContextHandle: "ctx-7",
		URL:           "https://target.example/form",
	})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("navigation was never dispatched")
	}
	if calls.Load() != 1 {
		t.Errorf("nav calls: got %d, want 1", calls.Load())
	}
}

func TestNavigate_TriggerEmptyURL(t *testing.T) {
	b := NewNavigate(func(context.Context, driver.ContextHandle, string) error { return nil }, nil)
	if err := b.Trigger(context.Background(), driver.TriggerRequest{}); err == nil {
		t.Fatal("Trigger: want error for empty url")
	}
}
