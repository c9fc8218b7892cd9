package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/sinktrace/driver"
)

// Driver implements driver.Driver on a Manager's Chrome connection. Every
// OpenContext creates a dedicated incognito browser context, so no two
// sessions ever share page state.
type Driver struct {
	mgr *Manager

	mu    sync.Mutex
	pages map[driver.ContextHandle]*rod.Page
}

// NewDriver creates a Driver over a started Manager.
func NewDriver(mgr *Manager) *Driver {
	return &Driver{
		mgr:   mgr,
		pages: make(map[driver.ContextHandle]*rod.Page),
	}
}

var _ driver.Driver = (*Driver)(nil)

// OpenContext creates a fresh incognito context with a stealth page and
// returns its target id as the addressable handle.
func (d *Driver) OpenContext(ctx context.Context) (driver.ContextHandle, error) {
	b := d.mgr.Browser()
	if b == nil {
		return "", fmt.Errorf("browser: no active browser")
	}

	incognito, err := b.Incognito()
	if err != nil {
		return "", fmt.Errorf("browser: incognito context: %w", err)
	}

	page, err := stealth.Page(incognito.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("browser: create page: %w", err)
	}

	if len(d.mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, d.mgr.cfg.ResourceBlocking); err != nil {
			d.mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	h := driver.ContextHandle(page.TargetID)
	d.mu.Lock()
	d.pages[h] = page
	d.mu.Unlock()

	return h, nil
}

func (d *Driver) page(h driver.ContextHandle) (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	page, ok := d.pages[h]
	if !ok {
		return nil, fmt.Errorf("browser: unknown context handle %q", h)
	}
	return page, nil
}

// EnableDebugger turns on the Debugger domain for the context.
func (d *Driver) EnableDebugger(ctx context.Context, h driver.ContextHandle) error {
	page, err := d.page(h)
	if err != nil {
		return err
	}
	if _, err := (proto.DebuggerEnable{}).Call(page.Context(ctx)); err != nil {
		return fmt.Errorf("browser: enable debugger: %w", err)
	}
	return nil
}

// OnPause subscribes to Debugger.paused events on the context. The CDP
// subscription is active when OnPause returns; the wait loop only drains it.
func (d *Driver) OnPause(ctx context.Context, h driver.ContextHandle, fn driver.PauseHandler) (func(), error) {
	page, err := d.page(h)
	if err != nil {
		return nil, err
	}

	evCtx, cancel := context.WithCancel(ctx)
	wait := page.Context(evCtx).EachEvent(func(ev *proto.DebuggerPaused) {
		fn(convertPause(ev))
	})
	go wait()

	return cancel, nil
}

// Resume releases a paused context. "Can only perform operation while
// paused" failures are swallowed: they mean there is nothing to release.
func (d *Driver) Resume(ctx context.Context, h driver.ContextHandle) error {
	page, err := d.page(h)
	if err != nil {
		return err
	}
	if err := (proto.DebuggerResume{}).Call(page.Context(ctx)); err != nil {
		if strings.Contains(err.Error(), "Can only perform operation while paused") {
			return nil
		}
		return fmt.Errorf("browser: resume: %w", err)
	}
	return nil
}

// EvaluateOnFrame evaluates an expression in a paused call frame, by value.
func (d *Driver) EvaluateOnFrame(ctx context.Context, h driver.ContextHandle, callFrameID, expr string) (driver.RemoteObject, error) {
	page, err := d.page(h)
	if err != nil {
		return driver.RemoteObject{}, err
	}

	res, err := proto.DebuggerEvaluateOnCallFrame{
		CallFrameID:   proto.DebuggerCallFrameID(callFrameID),
		Expression:    expr,
		ReturnByValue: true,
		Silent:        true,
	}.Call(page.Context(ctx))
	if err != nil {
		return driver.RemoteObject{}, fmt.Errorf("browser: evaluate on frame: %w", err)
	}
	if res.ExceptionDetails != nil {
		return driver.RemoteObject{}, fmt.Errorf("browser: evaluate on frame: %s", exceptionText(res.ExceptionDetails))
	}
	return convertRemoteObject(res.Result), nil
}

// GetProperties fetches own properties of a remote object, truncated to limit.
func (d *Driver) GetProperties(ctx context.Context, h driver.ContextHandle, objectID string, limit int) ([]driver.Property, error) {
	page, err := d.page(h)
	if err != nil {
		return nil, err
	}

	res, err := proto.RuntimeGetProperties{
		ObjectID:      proto.RuntimeRemoteObjectID(objectID),
		OwnProperties: true,
	}.Call(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: get properties: %w", err)
	}

	props := make([]driver.Property, 0, len(res.Result))
	for _, p := range res.Result {
		if p == nil || p.Name == "__proto__" {
			continue
		}
		dp := driver.Property{Name: p.Name}
		if p.Value != nil {
			obj := convertRemoteObject(p.Value)
			dp.Value = &obj
		}
		props = append(props, dp)
		if limit > 0 && len(props) >= limit {
			break
		}
	}
	return props, nil
}

// GetScriptSource fetches the full source text of a script.
func (d *Driver) GetScriptSource(ctx context.Context, h driver.ContextHandle, scriptID string) (string, error) {
	page, err := d.page(h)
	if err != nil {
		return "", err
	}

	res, err := proto.DebuggerGetScriptSource{
		ScriptID: proto.RuntimeScriptID(scriptID),
	}.Call(page.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("browser: get script source %s: %w", scriptID, err)
	}
	return res.ScriptSource, nil
}

// Navigate drives the context to a URL. It backs the navigate reproduction
// bridge; it is not part of the driver.Driver surface.
func (d *Driver) Navigate(ctx context.Context, h driver.ContextHandle, url string) error {
	page, err := d.page(h)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// CloseContext disposes the browsing context and forgets the handle.
func (d *Driver) CloseContext(_ context.Context, h driver.ContextHandle) error {
	d.mu.Lock()
	page, ok := d.pages[h]
	delete(d.pages, h)
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("browser: unknown context handle %q", h)
	}
	return page.Close()
}
