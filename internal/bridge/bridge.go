// Package bridge implements the reproduction bridge: the mechanism that
// makes a page loaded in a fresh browsing context re-execute the path that
// reached the original sink.
//
// Two implementations are provided. Webhook hands the trigger to an external
// reproduction agent over HTTP; Navigate is the built-in best-effort
// fallback that re-loads the sink URL in the target context, which is enough
// to re-fire reflected sinks.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/sinktrace/driver"
)

// Webhook POSTs trigger requests to an external reproduction agent.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// WebhookOption configures a Webhook bridge.
type WebhookOption func(*Webhook)

// WithWebhookClient replaces the HTTP client (tests, custom timeouts).
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook bridge targeting the given agent URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Trigger dispatches the reproduction request. A nil return means the agent
// accepted the trigger, not that the sink fired; the pause listener decides
// the session outcome.
func (w *Webhook) Trigger(ctx context.Context, req driver.TriggerRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bridge: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bridge: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("bridge: trigger: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bridge: trigger: status %d", resp.StatusCode)
	}

	w.logger.Debug("bridge: trigger dispatched",
		"context", req.ContextHandle, "url", req.URL)
	return nil
}

// NavigateFunc drives a browsing context to a URL. The rod driver provides
// it; tests substitute their own.
type NavigateFunc func(ctx context.Context, h driver.ContextHandle, url string) error

// Navigate re-loads the sink URL in the target context. Navigation is
// dispatched in the background: the bridge must return once the trigger is
// underway so the orchestrator can start racing pause against timeout, and
// a paused page never finishes loading anyway.
type Navigate struct {
	nav    NavigateFunc
	logger *slog.Logger
}

// NewNavigate creates the navigation bridge.
func NewNavigate(nav NavigateFunc, logger *slog.Logger) *Navigate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigate{nav: nav, logger: logger}
}

// Trigger starts the navigation and returns immediately.
func (n *Navigate) Trigger(ctx context.Context, req driver.TriggerRequest) error {
	if req.URL == "" {
		return fmt.Errorf("bridge: trigger: sink record has no url")
	}

	go func() {
		if err := n.nav(ctx, req.ContextHandle, req.URL); err != nil {
			n.logger.Debug("bridge: navigation ended",
				"context", req.ContextHandle, "url", req.URL, "error", err)
		}
	}()
	return nil
}
