package callstack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/sinktrace/driver"
)

// FrameInspector is the slice of the driver the extractor needs. The full
// driver.Driver satisfies it; tests supply doubles.
type FrameInspector interface {
	EvaluateOnFrame(ctx context.Context, h driver.ContextHandle, callFrameID, expr string) (driver.RemoteObject, error)
	GetProperties(ctx context.Context, h driver.ContextHandle, objectID string, limit int) ([]driver.Property, error)
	GetScriptSource(ctx context.Context, h driver.ContextHandle, scriptID string) (string, error)
}

// Config tunes the extractor. Zero values take the defaults below.
type Config struct {
	// MaxFrames caps how many frames of the pause event are inspected. Default: 5.
	MaxFrames int
	// MaxScopes caps how far up each frame's scope chain to walk. Default: 3.
	MaxScopes int
	// MaxProps caps own properties fetched per scope. Default: 15.
	MaxProps int
	// SourceWindow is the ± line radius of the source excerpt. Default: 5.
	SourceWindow int
	// Expressions are diagnostic expressions evaluated per frame, keyed by
	// output name. Nil takes DefaultExpressions.
	Expressions map[string]string

	Logger *slog.Logger
}

// DefaultExpressions are the diagnostics evaluated in every frame's context.
func DefaultExpressions() map[string]string {
	return map[string]string{
		"location":  `String(window.location && window.location.href)`,
		"arguments": `typeof arguments === 'undefined' ? '<no arguments>' : Array.prototype.slice.call(arguments).map(String).join(', ')`,
	}
}

func (c *Config) defaults() {
	if c.MaxFrames <= 0 {
		c.MaxFrames = 5
	}
	if c.MaxScopes <= 0 {
		c.MaxScopes = 3
	}
	if c.MaxProps <= 0 {
		c.MaxProps = 15
	}
	if c.SourceWindow <= 0 {
		c.SourceWindow = 5
	}
	if c.Expressions == nil {
		c.Expressions = DefaultExpressions()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor builds frame snapshots from pause events.
type Extractor struct {
	insp FrameInspector
	cfg  Config
}

// New creates an Extractor over the given inspector.
func New(insp FrameInspector, cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{insp: insp, cfg: cfg}
}

// Extract snapshots the first MaxFrames frames of the pause event. It fails
// only when the event itself is undecodable (no frames); every per-field
// failure is recorded inline and extraction continues.
func (e *Extractor) Extract(ctx context.Context, h driver.ContextHandle, ev driver.PauseEvent) ([]FrameSnapshot, error) {
	if len(ev.Frames) == 0 {
		return nil, fmt.Errorf("callstack: pause event carries no frames (reason %q)", ev.Reason)
	}

	n := len(ev.Frames)
	if n > e.cfg.MaxFrames {
		n = e.cfg.MaxFrames
	}

	out := make([]FrameSnapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, e.extractFrame(ctx, h, i, ev.Frames[i]))
	}
	return out, nil
}

func (e *Extractor) extractFrame(ctx context.Context, h driver.ContextHandle, index int, frame driver.CallFrame) FrameSnapshot {
	snap := FrameSnapshot{
		FrameIndex:   index,
		FunctionName: frame.FunctionName,
		Location: Location{
			ScriptID: frame.Location.ScriptID,
			// Driver positions are 0-based.
			Line:   frame.Location.Line + 1,
			Column: frame.Location.Column + 1,
		},
		ScopeBindings:        map[string]ScopeBinding{},
		EvaluatedExpressions: map[string]string{},
	}
	if snap.FunctionName == "" {
		snap.FunctionName = "<anonymous>"
	}

	for name, expr := range e.cfg.Expressions {
		obj, err := e.insp.EvaluateOnFrame(ctx, h, frame.CallFrameID, expr)
		if err != nil {
			snap.EvaluatedExpressions[name+"Error"] = err.Error()
			continue
		}
		snap.EvaluatedExpressions[name] = obj.ValueString()
	}

	scopes := frame.ScopeChain
	if len(scopes) > e.cfg.MaxScopes {
		scopes = scopes[:e.cfg.MaxScopes]
	}
	for si, scope := range scopes {
		snap.ScopeBindings[scopeName(scopes, si)] = e.extractScope(ctx, h, scope)
	}

	src, err := e.insp.GetScriptSource(ctx, h, frame.Location.ScriptID)
	switch {
	case err != nil:
		snap.SourceError = err.Error()
	case src == "":
		snap.SourceError = "empty script source"
	default:
		snap.SourceExcerpt = excerpt(src, snap.Location.Line, e.cfg.SourceWindow)
	}

	return snap
}

func (e *Extractor) extractScope(ctx context.Context, h driver.ContextHandle, scope driver.Scope) ScopeBinding {
	if scope.Object.ObjectID == "" {
		return ScopeBinding{Error: "scope object not addressable"}
	}

	props, err := e.insp.GetProperties(ctx, h, scope.Object.ObjectID, e.cfg.MaxProps)
	if err != nil {
		return ScopeBinding{Error: err.Error()}
	}

	vars := make(map[string]VarBinding, len(props))
	for _, p := range props {
		if p.Name == "__proto__" || p.Value == nil {
			continue
		}
		vars[p.Name] = VarBinding{
			Type:      p.Value.Type,
			Value:     p.Value.ValueString(),
			ClassName: p.Value.ClassName,
		}
	}
	return ScopeBinding{Vars: vars}
}

// scopeName keys a scope by its type, disambiguating repeats of the same
// type by chain position (closure, closure#2, ...).
func scopeName(scopes []driver.Scope, index int) string {
	name := scopes[index].Type
	if name == "" {
		name = "unknown"
	}
	nth := 1
	for i := 0; i < index; i++ {
		if scopes[i].Type == scopes[index].Type {
			nth++
		}
	}
	if nth > 1 {
		return fmt.Sprintf("%s#%d", name, nth)
	}
	return name
}
