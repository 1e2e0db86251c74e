package infuse

import (
	"context"
	"fmt"
	"reflect"

	"golang.org/x/net/html"

	"github.com/serg-io/infuse.host/lib/compile"
	"github.com/serg-io/infuse.host/lib/directive"
)

// Collection lets a value supply its own iteration order to a repeating
// template. Values that do not implement it fall back to reflection over
// slices, arrays and maps.
type Collection interface {
	ForEach(fn func(key, value any))
}

// Infuse instantiates tpl: its content is cloned, every compiled context in
// the clone is brought live against host, data and scope, and the clone is
// returned as a document fragment whose children are ready to attach.
//
// The template is compiled on first use; repeat infusions reuse the stored
// programs. A repeating template (one carrying "for"/"each") evaluates its
// collection once, before any cloning, and yields one copy of the content
// per entry with the iteration names bound in that copy's scope.
func (rt *Runtime) Infuse(ctx context.Context, host any, tpl *html.Node, data any, scope map[string]any) (*html.Node, error) {
	if err := rt.ensureCompiled(tpl); err != nil {
		return nil, err
	}

	prog, err := rt.contextOf(tpl)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return rt.infuseContent(ctx, host, tpl, data, scope)
	}

	lc, err := rt.newLiveContext(ctx, prog, tpl, host, data, scope)
	if err != nil {
		return nil, err
	}
	derived := mergeScope(scope, lc.constants())

	it := prog.Iteration
	if it == nil || it.Each == nil {
		return rt.infuseContent(ctx, host, tpl, data, derived)
	}

	coll, err := lc.eval(it.Each, nil, rt.tagTable())
	if err != nil {
		return nil, err
	}
	if t, ok := coll.(Thenable); ok {
		if coll, err = t.Await(ctx); err != nil {
			return nil, err
		}
	}

	frag := &html.Node{Type: html.DocumentNode}
	err = forEach(coll, func(key, value any) error {
		entry := mergeScope(derived, nil)
		if it.Value != "" {
			entry[it.Value] = value
		}
		if it.Key != "" {
			entry[it.Key] = key
		}
		if it.Collection != "" {
			entry[it.Collection] = coll
		}
		one, err := rt.infuseContent(ctx, host, tpl, data, entry)
		if err != nil {
			return err
		}
		for c := one.FirstChild; c != nil; {
			next := c.NextSibling
			one.RemoveChild(c)
			frag.AppendChild(c)
			c = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frag, nil
}

// InfuseByID infuses the stored template with the given identifier.
func (rt *Runtime) InfuseByID(ctx context.Context, host any, id string, data any, scope map[string]any) (*html.Node, error) {
	tpl, ok := rt.store.Template(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return rt.Infuse(ctx, host, tpl, data, scope)
}

// InfuseElement re-evaluates parts of an already infused element against
// its live context. A nil parts slice re-infuses every part; otherwise only
// the named part keys are re-evaluated, in the given order. ev, when
// non-nil, is bound as "event" during evaluation; watches pass the event
// that fired, direct calls usually pass nil.
func (rt *Runtime) InfuseElement(ctx context.Context, el *html.Node, parts []string, ev *Event) error {
	r, ok := rt.lookup(el)
	if !ok || r.ctx == nil {
		return ErrNotInfused
	}
	lc := r.ctx

	if parts == nil {
		for _, pc := range lc.prog.Parts {
			if err := rt.applyPart(ctx, r, lc, pc.Key, pc.Value, ev); err != nil {
				return err
			}
		}
		return nil
	}
	for _, key := range parts {
		cb, ok := lc.prog.Part(key)
		if !ok {
			return fmt.Errorf("%w: %q on context %s", ErrUnknownPart, key, lc.prog.ID)
		}
		if err := rt.applyPart(ctx, r, lc, key, cb, ev); err != nil {
			return err
		}
	}
	return nil
}

// InitializeElement brings a pre-compiled element live without cloning: it
// must already carry a context identifier (markup restored from an archive,
// or cloned by the caller). Constants evaluate, parts write their initial
// values, and event listeners and watches attach.
func (rt *Runtime) InitializeElement(ctx context.Context, el *html.Node, host, data any, scope map[string]any) error {
	cid := attrOf(el, rt.cfg.ContextIDAttr)
	if cid == "" {
		return fmt.Errorf("%w: element carries no %s attribute", ErrUnknownContext, rt.cfg.ContextIDAttr)
	}
	return rt.initElement(ctx, el, cid, host, data, scope)
}

// ensureCompiled walks tpl into the store unless a previous walk already
// did. Walk itself is idempotent; this only skips the re-walk of stored
// templates on every infusion.
func (rt *Runtime) ensureCompiled(tpl *html.Node) error {
	tid := attrOf(tpl, rt.cfg.TemplateIDAttr)
	if tid != "" && rt.store.TemplateState(tid) == compile.Parsed {
		return nil
	}
	return compile.Walk(tpl, rt.cfg, rt.store)
}

// contextOf returns the compiled context of the template root itself, or
// nil when the root declared no directives.
func (rt *Runtime) contextOf(tpl *html.Node) (*compile.Context, error) {
	cid := attrOf(tpl, rt.cfg.ContextIDAttr)
	if cid == "" {
		return nil, nil
	}
	prog, ok := rt.store.Context(cid)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, cid)
	}
	return prog, nil
}

// infuseContent clones the template's children into a fresh fragment and
// wires every context-bearing element in the clone.
func (rt *Runtime) infuseContent(ctx context.Context, host any, tpl *html.Node, data any, scope map[string]any) (*html.Node, error) {
	frag := &html.Node{Type: html.DocumentNode}
	for c := tpl.FirstChild; c != nil; c = c.NextSibling {
		frag.AppendChild(cloneTree(c))
	}
	if err := rt.wire(ctx, frag, host, data, scope); err != nil {
		return nil, err
	}
	return frag, nil
}

func (rt *Runtime) wire(ctx context.Context, n *html.Node, host, data any, scope map[string]any) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if cid := attrOf(c, rt.cfg.ContextIDAttr); cid != "" {
			if err := rt.initElement(ctx, c, cid, host, data, scope); err != nil {
				return err
			}
		}
		if err := rt.wire(ctx, c, host, data, scope); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) initElement(ctx context.Context, el *html.Node, cid string, host, data any, scope map[string]any) error {
	prog, ok := rt.store.Context(cid)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownContext, cid)
	}

	lc, err := rt.newLiveContext(ctx, prog, el, host, data, scope)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	r := rt.recordLocked(el)
	r.ctx = lc
	rt.mu.Unlock()

	for _, pc := range prog.Parts {
		if err := rt.applyPart(ctx, r, lc, pc.Key, pc.Value, nil); err != nil {
			return err
		}
	}

	for typ, cb := range prog.Events {
		remove := rt.AddEventListener(el, typ, rt.handler(el, lc, cb))
		rt.OnCleanup(el, remove)
	}

	return rt.registerWatches(ctx, el, lc)
}

// handler wraps a compiled event callback as a listener. A Thenable result
// resolves on its own goroutine; its error, having no caller left, goes to
// OnAsyncError.
func (rt *Runtime) handler(el *html.Node, lc *liveContext, cb *compile.Callback) func(*Event) error {
	return func(ev *Event) error {
		v, err := lc.eval(cb, ev, rt.tagTable())
		if err != nil {
			return err
		}
		if t, ok := v.(Thenable); ok {
			go func() {
				if _, err := t.Await(context.Background()); err != nil {
					rt.asyncError(el, "", err)
				}
			}()
		}
		return nil
	}
}

// applyPart evaluates one part and writes its value. A Thenable value makes
// the part asynchronous: the write happens on its own goroutine once the
// value resolves, and is dropped if the element was swept in the meantime.
func (rt *Runtime) applyPart(ctx context.Context, r *record, lc *liveContext, key string, cb *compile.Callback, ev *Event) error {
	v, err := lc.eval(cb, ev, rt.tagTable())
	if err != nil {
		return err
	}
	t, ok := v.(Thenable)
	if !ok {
		return rt.writePart(r, key, v)
	}

	go func() {
		res, err := t.Await(ctx)
		if err != nil {
			rt.asyncError(r.el, key, err)
			return
		}
		rt.mu.RLock()
		dead := r.swept
		rt.mu.RUnlock()
		if dead {
			return
		}
		if err := rt.writePart(r, key, res); err != nil {
			rt.asyncError(r.el, key, err)
		}
	}()
	return nil
}

// writePart materializes one resolved part value on the element. Attribute
// parts set the attribute, boolean parts toggle its presence, property
// parts store the raw value on the record, and text parts rewrite the text
// node at the compiled child index.
func (rt *Runtime) writePart(r *record, key string, v any) error {
	pk, err := directive.ParsePartKey(key)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if r.swept {
		return nil
	}

	switch pk.Kind {
	case directive.AttributePart:
		setNodeAttr(r.el, pk.Name, stringify(v))
	case directive.BooleanPart:
		if truthy(v) {
			setNodeAttr(r.el, pk.Name, "")
		} else {
			removeNodeAttr(r.el, pk.Name)
		}
	case directive.PropertyPart:
		r.props[pk.Name] = v
	case directive.TextPart:
		n := childAt(r.el, pk.Index)
		if n == nil || n.Type != html.TextNode {
			return fmt.Errorf("%w: %q has no text node at index %d", ErrUnknownPart, key, pk.Index)
		}
		n.Data = stringify(v)
	}
	return nil
}

// forEach drives fn over coll: a Collection's own order, or reflection over
// slices, arrays (index keys) and maps.
func forEach(coll any, fn func(key, value any) error) error {
	if c, ok := coll.(Collection); ok {
		var inner error
		c.ForEach(func(key, value any) {
			if inner != nil {
				return
			}
			inner = fn(key, value)
		})
		return inner
	}

	rv := reflect.ValueOf(coll)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := fn(i, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if err := fn(iter.Key().Interface(), iter.Value().Interface()); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrNotIterable, coll)
	}
}

// cloneTree deep-copies a node and its subtree. The copy owns its attribute
// slice, so part writes on one infusion never leak into another.
func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		c.AppendChild(cloneTree(k))
	}
	return c
}

func mergeScope(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setNodeAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeNodeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func childAt(n *html.Node, i int) *html.Node {
	c := n.FirstChild
	for ; c != nil && i > 0; i-- {
		c = c.NextSibling
	}
	return c
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	default:
		return !rv.IsZero()
	}
}
