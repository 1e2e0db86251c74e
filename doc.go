// Package infuse compiles HTML templates with embedded expressions into
// reusable programs and keeps the resulting elements reactive: parts of an
// element re-evaluate in place when the events they watch fire, without
// re-rendering the surrounding tree.
//
// Templates are ordinary <template> elements parsed with golang.org/x/net/html.
// Attribute values and text nodes may interpolate expressions with ${ } and
// template blocks with back-ticks; special attributes declare constants
// (const-*), event handlers (on*), watches (watch-*) and iteration
// ("for"/"each"). Compilation happens once per template, either on the
// first Infuse call or ahead of time with compile.Walk; the compiled
// programs live in a compile.Store and can be archived with lib/encoding
// and restored in another process, skipping the parse entirely.
//
// A Runtime binds a store to live elements:
//
//	store := compile.NewStore()
//	rt := infuse.NewRuntime(store, nil)
//	tpl := infuse.MustParseTemplate(src)
//	frag, err := rt.Infuse(ctx, host, tpl, data, nil)
//
// The returned fragment's children carry their initial part values and have
// their listeners and watches attached. Dispatching an event on a watched
// element re-infuses exactly the parts registered for it. When an element
// leaves the tree, Sweep (or SweepTree) drains its cleanup queue, removes
// its listeners and unsubscribes its watches.
//
// Expressions evaluate against an environment with "host", "data",
// "element" and "event" bound, plus declared constants and iteration names.
// An expression may return a Thenable (the Promise type implements it); the
// runtime awaits constants in declaration order and resolves asynchronous
// parts in the background, reporting failures through Runtime.OnAsyncError.
package infuse
