package infuse

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/serg-io/infuse.host/lib/compile"
	"github.com/serg-io/infuse.host/lib/directive"
)

// Runtime executes compiled context functions against live elements. It
// owns all per-session mutable state: the compile-time store it reads, the
// registered tag functions, and the per-element records holding live
// contexts, properties, listeners, watch entries and cleanup queues.
//
// Runtimes are independent: two runtimes sharing nothing can serve parallel
// sessions (or parallel test suites) without cross-contamination. All
// methods are safe for concurrent use, though the intended model is a
// single event-loop goroutine plus asynchronous part resolutions.
type Runtime struct {
	mu      sync.RWMutex
	cfg     *directive.Config
	store   *compile.Store
	tags    map[string]compile.TagFunc
	records map[*html.Node]*record
	watches map[watchKey]*watchEntry

	// OnAsyncError, when set, receives failures from asynchronous part
	// resolutions, which have no caller left to propagate to. part is
	// the canonical part key string. Unset, such failures are dropped.
	OnAsyncError func(el *html.Node, part string, err error)
}

// record is the per-element arena entry. Its lifetime runs from first
// contact with the runtime until Sweep; a swept record is never reused, so
// in-flight asynchronous resolutions can check liveness through it.
type record struct {
	el        *html.Node
	ctx       *liveContext
	props     map[string]any
	listeners map[string][]*listener
	cleanups  []func()
	swept     bool
}

// NewRuntime creates a runtime over a compiled store. A nil cfg uses the
// default directive grammar. The store may keep growing (templates walked
// on demand) while runtimes read from it.
func NewRuntime(store *compile.Store, cfg *directive.Config) *Runtime {
	if cfg == nil {
		cfg = directive.DefaultConfig()
	}
	return &Runtime{
		cfg:     cfg,
		store:   store,
		tags:    make(map[string]compile.TagFunc),
		records: make(map[*html.Node]*record),
		watches: make(map[watchKey]*watchEntry),
	}
}

// Store returns the compile-time store this runtime reads.
func (rt *Runtime) Store() *compile.Store { return rt.store }

// Config returns the directive grammar in effect.
func (rt *Runtime) Config() *directive.Config { return rt.cfg }

// RegisterTag installs a tag function for tagged interpolation blocks and
// adds the name to the directive grammar, so blocks prefixed by it tokenize
// as tagged. Registration must happen before the templates using the tag
// are compiled.
func (rt *Runtime) RegisterTag(name string, fn compile.TagFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.tags[name] = fn
	for _, t := range rt.cfg.Tags {
		if t == name {
			return
		}
	}
	rt.cfg.Tags = append(rt.cfg.Tags, name)
}

// Prop reads a property part previously written to el.
func (rt *Runtime) Prop(el *html.Node, name string) (any, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	r, ok := rt.records[el]
	if !ok {
		return nil, false
	}
	v, ok := r.props[name]
	return v, ok
}

// OnCleanup queues fn on el's cleanup queue. Queued functions run in order
// exactly once, when el is swept.
func (rt *Runtime) OnCleanup(el *html.Node, fn func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	r := rt.recordLocked(el)
	r.cleanups = append(r.cleanups, fn)
}

// Sweep tears down el: its cleanup queue is drained in order and the
// element's record is discarded. Sweeping an element that was never infused
// or was already swept is a no-op. A swept element must be re-infused
// before it can be used again; the old queue is never reused.
func (rt *Runtime) Sweep(el *html.Node) {
	rt.mu.Lock()
	r, ok := rt.records[el]
	if !ok {
		rt.mu.Unlock()
		return
	}
	delete(rt.records, el)
	r.swept = true
	fns := r.cleanups
	r.cleanups = nil
	rt.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SweepTree sweeps el and every descendant element, in document order.
// Call it when detaching a whole subtree.
func (rt *Runtime) SweepTree(el *html.Node) {
	rt.Sweep(el)
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			rt.SweepTree(c)
		}
	}
}

// recordLocked returns el's record, creating it on first contact. The
// caller holds rt.mu.
func (rt *Runtime) recordLocked(el *html.Node) *record {
	r, ok := rt.records[el]
	if !ok {
		r = &record{el: el, props: make(map[string]any)}
		rt.records[el] = r
	}
	return r
}

func (rt *Runtime) lookup(el *html.Node) (*record, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	r, ok := rt.records[el]
	return r, ok
}

func (rt *Runtime) asyncError(el *html.Node, part string, err error) {
	rt.mu.RLock()
	hook := rt.OnAsyncError
	rt.mu.RUnlock()
	if hook != nil {
		hook(el, part, err)
	}
}
