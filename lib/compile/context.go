package compile

import (
	"errors"
	"fmt"

	"github.com/serg-io/infuse.host/lib/directive"
)

// ErrEventNotRaw is returned when an event handler value is wrapped in
// expression delimiters. Handler values are raw code; the delimiters belong
// to parts and constants.
var ErrEventNotRaw = errors.New("compile: event handler value must be raw code, not ${ }")

// NamedCallback is an ordered constant declaration.
type NamedCallback struct {
	Name  string    `msgpack:"name"`
	Value *Callback `msgpack:"value"`
}

// PartCallback binds one part key (canonical string form) to its callback.
type PartCallback struct {
	Key   string    `msgpack:"key"`
	Value *Callback `msgpack:"value"`
}

// IterationSpec describes a repeating template root: the binding names from
// its "for" attribute and the collection callback from its "each" attribute.
type IterationSpec struct {
	Value      string    `msgpack:"value,omitempty"`
	Key        string    `msgpack:"key,omitempty"`
	Collection string    `msgpack:"collection,omitempty"`
	Each       *Callback `msgpack:"each,omitempty"`
}

// Context is the compiled program for one element: everything the runtime
// needs to instantiate the element's live context.
//
// Constants evaluate in declaration order; later constants may reference
// earlier ones. Parts preserve extraction order (attributes first, then
// text nodes). Async is true iff a constant or watch expression carries the
// async marker.
type Context struct {
	ID        string               `msgpack:"id"`
	Constants []NamedCallback      `msgpack:"constants,omitempty"`
	Parts     []PartCallback       `msgpack:"parts,omitempty"`
	Events    map[string]*Callback `msgpack:"events,omitempty"`
	Watches   map[string]*Callback `msgpack:"watches,omitempty"`
	Iteration *IterationSpec       `msgpack:"iteration,omitempty"`
	Async     bool                 `msgpack:"async,omitempty"`

	// Scope lists the ancestor-declared names visible to this element,
	// recorded for diagnostics and archive inspection.
	Scope []string `msgpack:"scope,omitempty"`
}

// Part returns the callback for the given part key string.
func (c *Context) Part(key string) (*Callback, bool) {
	for i := range c.Parts {
		if c.Parts[i].Key == key {
			return c.Parts[i].Value, true
		}
	}
	return nil, false
}

// PartKeys returns every part key in initialization order.
func (c *Context) PartKeys() []string {
	keys := make([]string, len(c.Parts))
	for i := range c.Parts {
		keys[i] = c.Parts[i].Key
	}
	return keys
}

// Compile assembles the context program for one extraction result.
// Assembly is purely structural; expression bodies are not checked here and
// malformed code surfaces when the context is first evaluated.
func Compile(res *directive.Result, id string) (*Context, error) {
	ctx := &Context{ID: id, Async: res.Async}

	for _, con := range res.Constants {
		ctx.Constants = append(ctx.Constants, NamedCallback{
			Name:  con.Name,
			Value: constantCallback(con.Value),
		})
	}

	for _, p := range res.Parts {
		cb := &Callback{Instrs: instrs(p.Value.Frags)}
		cb.Await = anyAwait(cb.Instrs)
		ctx.Parts = append(ctx.Parts, PartCallback{Key: p.Key.String(), Value: cb})
	}

	for _, h := range res.Events {
		if h.Value.HasSyntax() {
			return nil, fmt.Errorf("%w: on%s=%q", ErrEventNotRaw, h.Event, h.Value.Raw)
		}
		if ctx.Events == nil {
			ctx.Events = make(map[string]*Callback)
		}
		ctx.Events[h.Event] = &Callback{Instrs: []Instr{{Op: OpEval, Expr: &Expression{Code: h.Value.Raw}}}}
	}

	for _, w := range res.Watches {
		if ctx.Watches == nil {
			ctx.Watches = make(map[string]*Callback)
		}
		ctx.Watches[w.Name] = specCallback(w.Value)
	}

	if it := res.Iteration; it != nil {
		spec := &IterationSpec{Value: it.Value, Key: it.Key, Collection: it.Collection}
		if it.HasEach {
			spec.Each = constantCallback(it.Each)
		}
		ctx.Iteration = spec
	}

	return ctx, nil
}

// constantCallback compiles a constant value: fragments join by
// concatenation, a plain value compiles to the literal string itself.
func constantCallback(v directive.Value) *Callback {
	if !v.HasSyntax() {
		return &Callback{Instrs: []Instr{{Op: OpText, Text: v.Raw}}}
	}
	cb := &Callback{Instrs: instrs(v.Frags)}
	cb.Await = anyAwait(cb.Instrs)
	return cb
}

// specCallback compiles a watch event-spec value. A plain value stays a
// quoted string unless it is shaped like an array or object literal, in
// which case it is preserved verbatim and evaluated.
func specCallback(v directive.Value) *Callback {
	if !v.HasSyntax() {
		if v.Bracketed() {
			return &Callback{Instrs: []Instr{{Op: OpEval, Expr: &Expression{Code: v.Raw}}}}
		}
		return &Callback{Instrs: []Instr{{Op: OpText, Text: v.Raw}}}
	}
	cb := &Callback{Instrs: instrs(v.Frags)}
	cb.Await = anyAwait(cb.Instrs)
	return cb
}
