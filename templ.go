package infuse

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
)

// Component adapts an infusion to a templ.Component, so infused templates
// compose with templ layouts and render through the same pipeline. The
// infusion runs when the component renders, once per Render call.
//
// Rendered output is a snapshot: event listeners, watches and property
// parts live on the runtime's node tree, not in the emitted markup.
func (rt *Runtime) Component(host any, tpl *html.Node, data any, scope map[string]any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		frag, err := rt.Infuse(ctx, host, tpl, data, scope)
		if err != nil {
			return err
		}
		return RenderFragment(w, frag)
	})
}

// RenderFragment serializes every child of a document fragment, in order.
func RenderFragment(w io.Writer, frag *html.Node) error {
	for c := frag.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return err
		}
	}
	return nil
}
