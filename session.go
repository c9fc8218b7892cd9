package sinktrace

import (
	"context"
	"time"

	"github.com/hazyhaar/sinktrace/driver"
	"github.com/hazyhaar/sinktrace/sinkstore"
)

// Status is the lifecycle state of a debugging session.
// Armed transitions to exactly one of Paused, TimedOut or Failed; Paused
// transitions to Resumed. Resumed, TimedOut and Failed are terminal.
type Status string

const (
	StatusArmed    Status = "armed"
	StatusPaused   Status = "paused"
	StatusResumed  Status = "resumed"
	StatusTimedOut Status = "timed_out"
	StatusFailed   Status = "failed"
)

// timeoutMessage is the canonical callstack error for a session whose
// reproduction never reached a pause within the deadline.
const timeoutMessage = "Timeout waiting for pause"

// Session is one sink occurrence under debugging. It exclusively owns its
// browsing context for its whole lifetime. Handle and Status are mutable
// while the session runs and are read by Sessions() snapshots, so all writes
// go through the tracer mutex.
type Session struct {
	ID     string               `json:"id"`
	Sink   sinkstore.Record     `json:"sink"`
	Handle driver.ContextHandle `json:"context_handle,omitempty"`
	Status Status               `json:"status"`
}

// transition advances the session state. Terminal states never move again.
// Callers synchronize; the tracer routes every transition through its mutex.
func (s *Session) transition(next Status) {
	switch s.Status {
	case StatusResumed, StatusTimedOut, StatusFailed:
		return
	}
	s.Status = next
}

// advance applies a state transition under the registry lock so concurrent
// Sessions() snapshots never observe a torn write.
func (t *Tracer) advance(s *Session, next Status) {
	t.mu.Lock()
	s.transition(next)
	t.mu.Unlock()
}

func (t *Tracer) setHandle(s *Session, h driver.ContextHandle) {
	t.mu.Lock()
	s.Handle = h
	t.mu.Unlock()
}

// processSink runs one isolated debugging session for a matched sink record:
// open context, enable debugger, arm the pause listener, trigger
// reproduction, race pause against timeout, extract, resume.
func (t *Tracer) processSink(ctx context.Context, index int, canary string, rec sinkstore.Record) SessionResult {
	ses := &Session{ID: t.newID(), Sink: rec, Status: StatusArmed}
	t.trackSession(ses)

	res := SessionResult{Index: index, Sink: rec}
	fail := func(err error) SessionResult {
		t.advance(ses, StatusFailed)
		res.Error = err.Error()
		t.logger.Warn("sinktrace: session failed",
			"session", ses.ID, "dedup_key", rec.DedupKey, "error", err)
		return res
	}

	// Step 1: a fresh isolated context, never one that holds the original
	// capture.
	h, err := t.drv.OpenContext(ctx)
	if err != nil {
		return fail(err)
	}
	t.setHandle(ses, h)
	res.ContextHandle = h

	if t.cfg.Trace.CloseContexts {
		defer func() {
			if err := t.drv.CloseContext(ctx, h); err != nil {
				t.logger.Warn("sinktrace: close context", "session", ses.ID, "error", err)
			}
		}()
	}

	// Step 2: debugger on before anything can navigate the context. The
	// driver does not replay missed pause events.
	if err := t.drv.EnableDebugger(ctx, h); err != nil {
		return fail(err)
	}

	// Step 4: single-resolution pause race. The buffered channel with a
	// non-blocking send means a pause arriving after the timeout already
	// produced a result is dropped, never delivered twice.
	pauseCh := make(chan driver.PauseEvent, 1)
	cancelPause, err := t.drv.OnPause(ctx, h, func(ev driver.PauseEvent) {
		select {
		case pauseCh <- ev:
		default:
		}
	})
	if err != nil {
		return fail(err)
	}
	defer cancelPause()

	// The timer starts only after the listener is armed.
	timer := time.NewTimer(t.cfg.Trace.PauseTimeout)
	defer timer.Stop()

	// Step 5: fire the reproduction exactly once. A trigger failure means
	// nothing was armed at the page level, so no debugger interaction is
	// owed.
	trigCanary := rec.Canary
	if trigCanary == "" {
		trigCanary = canary
	}
	if err := t.bridge.Trigger(ctx, driver.TriggerRequest{
		ContextHandle: h,
		URL:           rec.URL,
		Canary:        trigCanary,
	}); err != nil {
		return fail(err)
	}

	// Step 6: the race.
	select {
	case ev := <-pauseCh:
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		t.advance(ses, StatusPaused)
		res.Success = true
		res.Callstack = t.captureAndResume(ctx, ses, ev)
		t.logger.Info("sinktrace: session paused and captured",
			"session", ses.ID, "dedup_key", rec.DedupKey,
			"frames", len(res.Callstack.Frames))

	case <-timer.C:
		t.advance(ses, StatusTimedOut)
		res.Success = true
		res.Callstack = &Callstack{Error: timeoutMessage}
		t.logger.Info("sinktrace: session timed out waiting for pause",
			"session", ses.ID, "dedup_key", rec.DedupKey,
			"timeout", t.cfg.Trace.PauseTimeout)

	case <-ctx.Done():
		return fail(ctx.Err())
	}

	return res
}

// captureAndResume extracts frames from the pause event and releases the
// debugger. Resume is deferred so it runs exactly once, whatever extraction
// does.
func (t *Tracer) captureAndResume(ctx context.Context, ses *Session, ev driver.PauseEvent) *Callstack {
	defer func() {
		if err := t.drv.Resume(ctx, ses.Handle); err != nil {
			t.logger.Warn("sinktrace: resume failed", "session", ses.ID, "error", err)
			return
		}
		t.advance(ses, StatusResumed)
	}()

	frames, err := t.extractor.Extract(ctx, ses.Handle, ev)
	if err != nil {
		return &Callstack{Error: err.Error()}
	}
	return &Callstack{Frames: frames}
}
