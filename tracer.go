// Package sinktrace re-triggers captured sink occurrences under a debugger
// and extracts call stacks correlated to a canary value.
//
// The Tracer is the orchestration core: it queries the sink store for records
// carrying the canary, runs one isolated debugging session per record (fresh
// browsing context, debugger armed before the reproduction fires, pause raced
// against a timeout), and folds the session results into a single Report.
package sinktrace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/sinktrace/callstack"
	"github.com/hazyhaar/sinktrace/driver"
	"github.com/hazyhaar/sinktrace/idgen"
	"github.com/hazyhaar/sinktrace/internal/config"
	"github.com/hazyhaar/sinktrace/sinkstore"
)

// ErrNoSinks reports that the store holds no record matching the canary.
// HTTP and MCP surfaces map it to a not-found response.
var ErrNoSinks = errors.New("no sinks found for canary")

// Tracer coordinates trace runs end to end.
type Tracer struct {
	cfg       *config.Config
	store     sinkstore.Store
	drv       driver.Driver
	bridge    driver.Bridge
	extractor *callstack.Extractor
	newID     idgen.Generator
	logger    *slog.Logger

	mu       sync.Mutex
	sessions []*Session
}

// Option tunes an optional Tracer dependency.
type Option func(*Tracer)

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(t *Tracer) { t.newID = gen }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) { t.logger = l }
}

// NewTracer wires a Tracer over its collaborators. cfg nil takes defaults.
func NewTracer(cfg *config.Config, store sinkstore.Store, drv driver.Driver, bridge driver.Bridge, opts ...Option) *Tracer {
	if cfg == nil {
		cfg = config.Default()
	}
	t := &Tracer{
		cfg:    cfg,
		store:  store,
		drv:    drv,
		bridge: bridge,
		extractor: callstack.New(drv, callstack.Config{
			MaxFrames:    cfg.Trace.MaxFrames,
			MaxScopes:    cfg.Trace.MaxScopes,
			MaxProps:     cfg.Trace.MaxProps,
			SourceWindow: cfg.Trace.SourceWindow,
		}),
		newID:  idgen.Prefixed("ses_", idgen.UUIDv7()),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ProcessSinks runs a full trace for the canary: query matching sink records,
// debug each in its own browsing context, aggregate into a Report.
//
// maxSinks <= 0 takes the configured default. With extractCallstacks false
// the run is discovery-only: records are matched and reported but no browser
// session is opened.
func (t *Tracer) ProcessSinks(ctx context.Context, canary string, maxSinks int, extractCallstacks bool) (*Report, error) {
	if canary == "" {
		return nil, errors.New("sinktrace: canary must not be empty")
	}
	if maxSinks <= 0 {
		maxSinks = t.cfg.Trace.DefaultMaxSinks
	}

	total, err := t.store.CountCanary(ctx, canary)
	if err != nil {
		return nil, fmt.Errorf("sinktrace: count sinks: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("sinktrace: %w: %s", ErrNoSinks, canary)
	}

	recs, err := t.store.QueryCanary(ctx, canary, maxSinks)
	if err != nil {
		return nil, fmt.Errorf("sinktrace: query sinks: %w", err)
	}

	t.logger.Info("sinktrace: trace run starting",
		"canary", canary, "total_found", total, "processing", len(recs),
		"extract_callstacks", extractCallstacks)

	results := make([]SessionResult, len(recs))

	if !extractCallstacks {
		for i, rec := range recs {
			results[i] = SessionResult{Index: i, Success: true, Sink: rec}
		}
		return aggregate(canary, total, results), nil
	}

	if t.cfg.Trace.Concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.cfg.Trace.Concurrency)
		for i, rec := range recs {
			g.Go(func() error {
				results[i] = t.processSink(gctx, i, canary, rec)
				return nil
			})
		}
		// Workers never return errors; failures live inside their result.
		_ = g.Wait()
	} else {
		for i, rec := range recs {
			results[i] = t.processSink(ctx, i, canary, rec)
		}
	}

	rep := aggregate(canary, total, results)
	t.logger.Info("sinktrace: trace run finished",
		"canary", canary, "processed", rep.Processed,
		"successful", rep.Successful, "with_callstack", rep.WithCallstack)
	return rep, nil
}

// Sessions returns a snapshot of every session this Tracer has run, oldest
// first, for inspection of still-open browsing contexts.
func (t *Tracer) Sessions() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Session, len(t.sessions))
	for i, s := range t.sessions {
		out[i] = *s
	}
	return out
}

func (t *Tracer) trackSession(s *Session) {
	t.mu.Lock()
	t.sessions = append(t.sessions, s)
	t.mu.Unlock()
}
