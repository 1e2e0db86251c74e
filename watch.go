package infuse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// watchKey identifies one (target element, event type) pair. All watchers
// of that pair share a single listener.
type watchKey struct {
	el    *html.Node
	event string
}

// watcherReg records what one watching element asked for: which descendants
// of the target may trigger it (selector, empty means any) and which of its
// parts to re-infuse (nil means all).
type watcherReg struct {
	selector string
	sel      cascadia.Sel
	parts    []string
}

// watchEntry fans one listener out to every element watching the same
// target and event. The entry installs its listener on creation and tears
// it down when the last watcher leaves.
type watchEntry struct {
	rt       *Runtime
	el       *html.Node
	event    string
	remove   func()
	watchers map[*html.Node]*watcherReg
}

// watchFor returns the entry for (el, event), creating it and installing
// its listener on first use.
func (rt *Runtime) watchFor(el *html.Node, event string) *watchEntry {
	key := watchKey{el: el, event: event}

	rt.mu.Lock()
	if e, ok := rt.watches[key]; ok {
		rt.mu.Unlock()
		return e
	}
	e := &watchEntry{rt: rt, el: el, event: event, watchers: make(map[*html.Node]*watcherReg)}
	rt.watches[key] = e
	rt.mu.Unlock()

	e.remove = rt.AddEventListener(el, event, e.fire)
	return e
}

func (e *watchEntry) addWatcher(watcher *html.Node, selector string, parts []string) error {
	var sel cascadia.Sel
	if selector != "" {
		s, err := cascadia.Parse(selector)
		if err != nil {
			return fmt.Errorf("%w: selector %q: %v", ErrBadEventSpec, selector, err)
		}
		sel = s
	}

	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()

	if reg, ok := e.watchers[watcher]; ok {
		// A repeat registration widens what re-infuses: nil (all parts)
		// absorbs any list, otherwise the lists merge.
		if reg.parts == nil || parts == nil {
			reg.parts = nil
		} else {
			reg.parts = append(reg.parts, parts...)
		}
		if selector != "" {
			reg.selector, reg.sel = selector, sel
		}
		return nil
	}
	e.watchers[watcher] = &watcherReg{selector: selector, sel: sel, parts: parts}
	return nil
}

func (e *watchEntry) removeWatcher(watcher *html.Node) {
	e.rt.mu.Lock()
	delete(e.watchers, watcher)
	last := len(e.watchers) == 0
	if last {
		delete(e.rt.watches, watchKey{el: e.el, event: e.event})
	}
	remove := e.remove
	e.rt.mu.Unlock()

	if last && remove != nil {
		remove()
	}
}

// fire re-infuses every watcher whose selector matches the event target.
// Failures from individual watchers are joined rather than short-circuited
// so one broken watcher cannot starve the rest.
func (e *watchEntry) fire(ev *Event) error {
	type job struct {
		el    *html.Node
		sel   cascadia.Sel
		parts []string
	}

	e.rt.mu.RLock()
	jobs := make([]job, 0, len(e.watchers))
	for el, reg := range e.watchers {
		jobs = append(jobs, job{el: el, sel: reg.sel, parts: reg.parts})
	}
	e.rt.mu.RUnlock()

	var errs []error
	for _, j := range jobs {
		if j.sel != nil && (ev.Target == nil || !j.sel.Match(ev.Target)) {
			continue
		}
		if err := e.rt.InfuseElement(context.Background(), j.el, j.parts, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// registerWatches evaluates el's watch declarations and subscribes el to
// each resulting event spec. Every subscription queues its own removal on
// el's cleanup queue.
func (rt *Runtime) registerWatches(ctx context.Context, el *html.Node, lc *liveContext) error {
	for name, cb := range lc.prog.Watches {
		target, err := rt.watchTarget(name, lc, el)
		if err != nil {
			return err
		}
		v, err := lc.eval(cb, nil, rt.tagTable())
		if err != nil {
			return err
		}
		if t, ok := v.(Thenable); ok {
			if v, err = t.Await(ctx); err != nil {
				return err
			}
		}
		specs, err := parseEventSpecs(v)
		if err != nil {
			return fmt.Errorf("watch-%s on %s: %w", name, lc.prog.ID, err)
		}
		for _, sp := range specs {
			entry := rt.watchFor(target, sp.event)
			if err := entry.addWatcher(el, sp.selector, sp.parts); err != nil {
				return err
			}
			watcher := el
			rt.OnCleanup(el, func() { entry.removeWatcher(watcher) })
		}
	}
	return nil
}

// watchTarget resolves a watch name to the element whose events to observe.
// "this" and "element" name the watching element itself; any other name
// must resolve through the environment to an element (the host, a constant,
// or an iteration binding).
func (rt *Runtime) watchTarget(name string, lc *liveContext, el *html.Node) (*html.Node, error) {
	if name == "this" || name == "element" {
		return el, nil
	}
	v, ok := lc.env[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not declared", ErrWatchTarget, name)
	}
	n, ok := v.(*html.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an element", ErrWatchTarget, name)
	}
	return n, nil
}

// eventSpec is one parsed entry of a watch value: the event type to listen
// for, an optional selector the event target must match, and the parts to
// re-infuse (nil means all).
type eventSpec struct {
	event    string
	selector string
	parts    []string
}

// parseEventSpecs normalizes the three accepted watch value shapes:
//
//	string:      "click; change .qty" (semicolon-separated entries, each
//	             an event type followed by an optional selector)
//	map:         {"click .qty": ["class", "#0"]} (entry string to the part
//	             keys it re-infuses; a single key may stand alone)
//	list:        any mix of the above
func parseEventSpecs(v any) ([]eventSpec, error) {
	switch spec := v.(type) {
	case string:
		return parseSpecString(spec)
	case map[string]any:
		var out []eventSpec
		for entry, pv := range spec {
			base, err := parseSpecString(entry)
			if err != nil {
				return nil, err
			}
			parts, err := partList(pv)
			if err != nil {
				return nil, err
			}
			for i := range base {
				base[i].parts = parts
			}
			out = append(out, base...)
		}
		return out, nil
	case []any:
		var out []eventSpec
		for _, item := range spec {
			specs, err := parseEventSpecs(item)
			if err != nil {
				return nil, err
			}
			out = append(out, specs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value of type %T", ErrBadEventSpec, v)
	}
}

func parseSpecString(s string) ([]eventSpec, error) {
	var out []eventSpec
	for _, entry := range strings.Split(s, ";") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		out = append(out, eventSpec{
			event:    fields[0],
			selector: strings.Join(fields[1:], " "),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q names no event", ErrBadEventSpec, s)
	}
	return out, nil
}

func partList(v any) ([]string, error) {
	switch parts := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{parts}, nil
	case []string:
		return append([]string(nil), parts...), nil
	case []any:
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s, ok := p.(string)
			if !ok {
				return nil, fmt.Errorf("%w: part key of type %T", ErrBadEventSpec, p)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: part list of type %T", ErrBadEventSpec, v)
	}
}
