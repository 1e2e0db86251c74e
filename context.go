package infuse

import (
	"context"

	"golang.org/x/net/html"

	"github.com/serg-io/infuse.host/lib/compile"
)

// liveContext is the live counterpart of a compiled context: the program
// plus the environment its expressions evaluate against. Exactly one live
// context exists per infused element; its lifetime runs from infusion to
// sweep.
//
// The environment binds "host", "data", "element" and "event", the
// iteration-scope names threaded in by the caller, and the context's own
// constants. Constants are evaluated once, in declaration order, and stay
// immutable for the context's lifetime.
type liveContext struct {
	prog *compile.Context
	env  map[string]any
}

func (rt *Runtime) newLiveContext(ctx context.Context, prog *compile.Context, el *html.Node, host, data any, scope map[string]any) (*liveContext, error) {
	env := make(map[string]any, len(scope)+len(prog.Constants)+4)
	for k, v := range scope {
		env[k] = v
	}
	env["host"] = host
	env["data"] = data
	env["element"] = el
	env["event"] = nil

	tags := rt.tagTable()
	for _, c := range prog.Constants {
		v, err := c.Value.Eval(env, tags)
		if err != nil {
			return nil, err
		}
		// Asynchronous constants resolve before later constants may
		// reference them, preserving declaration order.
		if t, ok := v.(Thenable); ok {
			if v, err = t.Await(ctx); err != nil {
				return nil, err
			}
		}
		env[c.Name] = v
	}
	return &liveContext{prog: prog, env: env}, nil
}

// eval runs one callback with the triggering event bound. First-time
// infusion passes a nil event; re-infusion through a watch passes the
// event that fired.
func (lc *liveContext) eval(cb *compile.Callback, ev *Event, tags map[string]compile.TagFunc) (any, error) {
	if ev == nil {
		lc.env["event"] = nil
	} else {
		lc.env["event"] = ev
	}
	return cb.Eval(lc.env, tags)
}

// constants returns the context's constant values, merged into the scope of
// descendant contexts.
func (lc *liveContext) constants() map[string]any {
	if len(lc.prog.Constants) == 0 {
		return nil
	}
	out := make(map[string]any, len(lc.prog.Constants))
	for _, c := range lc.prog.Constants {
		out[c.Name] = lc.env[c.Name]
	}
	return out
}

// tagTable returns the registered tag functions. Tags register before the
// first infusion; the map is read-only afterwards.
func (rt *Runtime) tagTable() map[string]compile.TagFunc {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.tags
}
