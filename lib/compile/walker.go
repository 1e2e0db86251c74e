package compile

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/serg-io/infuse.host/lib/directive"
)

// Walk compiles a template and every descendant element, registering the
// results in the store and mutating the template in place: stable
// identifiers are written back as attributes, directive syntax is stripped,
// and nested templates are spliced out and reinserted as siblings of tpl,
// each leaving a placeholder element carrying its template id.
//
// Walking is idempotent: a template that already carries an identifier and
// is marked parsed short-circuits.
func Walk(tpl *html.Node, cfg *directive.Config, store *Store) error {
	return walkTemplate(tpl, cfg, store, NewScope())
}

func walkTemplate(tpl *html.Node, cfg *directive.Config, store *Store, scope *Scope) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tid := attrVal(tpl, cfg.TemplateIDAttr)
	if tid != "" && store.TemplateState(tid) == Parsed {
		return nil
	}
	if tid == "" {
		tid = store.NextTemplateID()
		setAttr(tpl, cfg.TemplateIDAttr, tid)
	}
	store.SetTemplateState(tid, Parsing)

	// The template root itself may declare constants and iteration
	// bindings; those names become visible to every descendant.
	scope, err := compileElement(tpl, cfg, store, scope, true)
	if err != nil {
		return err
	}

	if err := walkChildren(tpl, tpl, cfg, store, scope); err != nil {
		return err
	}

	if err := store.AddTemplate(tid, tpl); err != nil {
		return err
	}
	store.SetTemplateState(tid, Parsed)
	return nil
}

// walkChildren compiles the element children of n depth first. tpl is the
// template root the walk started from: nested templates are reinserted as
// its next sibling.
func walkChildren(n, tpl *html.Node, cfg *directive.Config, store *Store, scope *Scope) error {
	// Snapshot the child list: splicing mutates it underneath us.
	var kids []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		kids = append(kids, c)
	}

	for _, c := range kids {
		if c.Type != html.ElementNode {
			continue
		}
		if isTemplate(c) {
			if err := walkTemplate(c, cfg, store, scope); err != nil {
				return err
			}
			splice(c, tpl, cfg)
			continue
		}
		if _, err := compileElement(c, cfg, store, scope, false); err != nil {
			return err
		}
		if err := walkChildren(c, tpl, cfg, store, scope); err != nil {
			return err
		}
	}
	return nil
}

// compileElement extracts and compiles one element. Elements with nothing
// to compile are left untouched. Template roots extend the scope with their
// declared names.
func compileElement(el *html.Node, cfg *directive.Config, store *Store, scope *Scope, isRoot bool) (*Scope, error) {
	res, err := directive.Extract(el, cfg)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return scope, nil
	}

	cid := store.NextContextID()
	ctx, err := Compile(res, cid)
	if err != nil {
		return nil, err
	}
	ctx.Scope = scope.Names()
	if err := store.AddContext(ctx); err != nil {
		return nil, err
	}
	setAttr(el, cfg.ContextIDAttr, cid)
	stripAttrs(el, res.ConsumedAttrs)

	if !isRoot {
		return scope, nil
	}
	var constants, iteration []string
	for _, c := range res.Constants {
		constants = append(constants, c.Name)
	}
	if it := res.Iteration; it != nil {
		for _, n := range []string{it.Value, it.Key, it.Collection} {
			if n != "" {
				iteration = append(iteration, n)
			}
		}
	}
	return scope.Child(constants, iteration), nil
}

// splice detaches a walked nested template, leaves a placeholder in its
// position and reinserts the template immediately after the outer one.
func splice(nested, outer *html.Node, cfg *directive.Config) {
	parent := nested.Parent
	ph := &html.Node{
		Type: html.ElementNode,
		Data: cfg.PlaceholderTag,
		Attr: []html.Attribute{{Key: cfg.TemplateIDAttr, Val: attrVal(nested, cfg.TemplateIDAttr)}},
	}
	parent.InsertBefore(ph, nested)
	parent.RemoveChild(nested)
	if outer.Parent != nil {
		outer.Parent.InsertBefore(nested, outer.NextSibling)
	}
}

func isTemplate(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Template || n.Data == "template")
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func stripAttrs(n *html.Node, keys []string) {
	if len(keys) == 0 {
		return
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !drop[a.Key] {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
