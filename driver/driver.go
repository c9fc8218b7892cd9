// Package driver defines the boundary between sinktrace and the browsing
// automation layer. The core orchestrator and extractor program against
// these interfaces; the rod/CDP implementation lives in internal/browser
// and test doubles implement them in-package where they are needed.
package driver

import "context"

// ContextHandle addresses one isolated browsing context. Handles are unique
// for the lifetime of the driver; all control-channel requests are routed by
// handle, so no cross-context locking is required.
type ContextHandle string

// PauseHandler receives pause events for one browsing context. The driver
// does not replay missed events: a handler must be installed before anything
// that can trigger a pause.
type PauseHandler func(PauseEvent)

// Driver is the minimal control-channel primitive set sinktrace is built on.
// Every call may suspend on the underlying channel; implementations must
// honour context cancellation.
type Driver interface {
	// OpenContext creates a fresh isolated browsing context and returns its
	// addressable handle.
	OpenContext(ctx context.Context) (ContextHandle, error)

	// EnableDebugger turns on the debugger domain for the context. It must
	// complete before any navigation or reproduction step touches the
	// context, or pause events can be lost.
	EnableDebugger(ctx context.Context, h ContextHandle) error

	// OnPause installs a pause handler on the context. The handler is active
	// before OnPause returns. The returned cancel detaches it.
	OnPause(ctx context.Context, h ContextHandle, fn PauseHandler) (cancel func(), err error)

	// Resume releases a paused context. Safe to call on a context that is
	// not paused.
	Resume(ctx context.Context, h ContextHandle) error

	// EvaluateOnFrame evaluates an expression in the scope of a paused call
	// frame and returns the result by value.
	EvaluateOnFrame(ctx context.Context, h ContextHandle, callFrameID, expr string) (RemoteObject, error)

	// GetProperties fetches up to limit own properties of a remote object,
	// excluding the prototype link.
	GetProperties(ctx context.Context, h ContextHandle, objectID string, limit int) ([]Property, error)

	// GetScriptSource returns the full source text for a script id.
	GetScriptSource(ctx context.Context, h ContextHandle, scriptID string) (string, error)

	// CloseContext disposes the browsing context. Handles stay valid until
	// closed so operators can inspect a context after its session finished.
	CloseContext(ctx context.Context, h ContextHandle) error
}

// TriggerRequest asks the reproduction bridge to make the page loaded in the
// given context re-execute the path that reached the original sink.
type TriggerRequest struct {
	ContextHandle ContextHandle `json:"context_handle"`
	URL           string        `json:"url"`
	Canary        string        `json:"canary"`
}

// Bridge re-triggers a captured sink in a live context. It is invoked exactly
// once per session and is fire-and-forget: a nil return means the trigger was
// dispatched, not that the sink fired.
type Bridge interface {
	Trigger(ctx context.Context, req TriggerRequest) error
}
