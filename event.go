package infuse

import (
	"errors"

	"golang.org/x/net/html"
)

// Event is what flows through the runtime's event bus. The DOM capability
// set this package builds on has no event system of its own, so the runtime
// supplies one: listeners are installed on element records and events
// bubble from the target through its ancestors.
type Event struct {
	// Type is the event name, e.g. "click".
	Type string

	// Target is the element the event originated on. Dispatch fills it
	// in when left nil.
	Target *html.Node

	// Detail carries arbitrary payload data.
	Detail any
}

type listener struct {
	fn func(*Event) error
}

// AddEventListener installs fn for events of the given type on el and
// returns a removal function. Removal is idempotent.
func (rt *Runtime) AddEventListener(el *html.Node, typ string, fn func(*Event) error) (remove func()) {
	l := &listener{fn: fn}

	rt.mu.Lock()
	r := rt.recordLocked(el)
	if r.listeners == nil {
		r.listeners = make(map[string][]*listener)
	}
	r.listeners[typ] = append(r.listeners[typ], l)
	rt.mu.Unlock()

	return func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		ls := r.listeners[typ]
		for i, cand := range ls {
			if cand == l {
				r.listeners[typ] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Dispatch delivers ev to every listener for ev.Type on el and then on each
// of el's ancestors, emulating event bubbling. Listener errors do not stop
// delivery; they are joined and returned.
func (rt *Runtime) Dispatch(el *html.Node, ev *Event) error {
	if ev.Target == nil {
		ev.Target = el
	}

	var errs []error
	for n := el; n != nil; n = n.Parent {
		rt.mu.RLock()
		var fire []*listener
		if r, ok := rt.records[n]; ok {
			fire = append(fire, r.listeners[ev.Type]...)
		}
		rt.mu.RUnlock()

		for _, l := range fire {
			if err := l.fn(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
