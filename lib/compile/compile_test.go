package compile

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/serg-io/infuse.host/lib/directive"
)

func parseTemplate(t *testing.T, markup string) *html.Node {
	t.Helper()
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	var find func(ns []*html.Node) *html.Node
	find = func(ns []*html.Node) *html.Node {
		for _, n := range ns {
			if isTemplate(n) {
				return n
			}
			var kids []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				kids = append(kids, c)
			}
			if t := find(kids); t != nil {
				return t
			}
		}
		return nil
	}
	if tpl := find(nodes); tpl != nil {
		return tpl
	}
	t.Fatalf("no template in %q", markup)
	return nil
}

func mustExtract(t *testing.T, markup string) *directive.Result {
	t.Helper()
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	var el *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			el = n
			break
		}
	}
	res, err := directive.Extract(el, directive.DefaultConfig())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return res
}

func env(total any) map[string]any {
	return map[string]any{"host": map[string]any{"kind": "ok", "total": total}}
}

func TestCallbackEvalSingleExpression(t *testing.T) {
	cb := &Callback{Instrs: []Instr{{Op: OpEval, Expr: &Expression{Code: "host.total"}}}}
	v, err := cb.Eval(env(5), nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != 5 {
		t.Errorf("Eval = %v (%T), want raw 5", v, v)
	}
}

func TestCallbackEvalConcat(t *testing.T) {
	cb := &Callback{Instrs: []Instr{
		{Op: OpText, Text: "btn-"},
		{Op: OpEval, Expr: &Expression{Code: "host.kind"}},
	}}
	v, err := cb.Eval(env(5), nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != "btn-ok" {
		t.Errorf("Eval = %v, want %q", v, "btn-ok")
	}
}

func TestCallbackEvalTaggedBlock(t *testing.T) {
	cb := &Callback{Instrs: []Instr{{
		Op:   OpBlock,
		Tag:  "upper",
		Body: []Instr{{Op: OpText, Text: "x="}, {Op: OpEval, Expr: &Expression{Code: "host.kind"}}},
	}}}

	tags := map[string]TagFunc{
		"upper": func(v any) (any, error) { return strings.ToUpper(v.(string)), nil },
	}
	v, err := cb.Eval(env(5), tags)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != "X=OK" {
		t.Errorf("Eval = %v, want %q", v, "X=OK")
	}

	if _, err := cb.Eval(env(5), nil); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("Eval without tags = %v, want ErrUnknownTag", err)
	}
}

func TestExpressionCompileErrorIsSticky(t *testing.T) {
	e := &Expression{Code: "host..bad"}
	if _, err := e.Eval(env(5)); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := e.Eval(env(5)); err == nil {
		t.Fatal("expected sticky compile error on second evaluation")
	}
}

func TestExpressionAwaitPrefixStripped(t *testing.T) {
	e := &Expression{Code: "await host.total", Await: true}
	v, err := e.Eval(env(7))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != 7 {
		t.Errorf("Eval = %v, want 7", v)
	}
}

func TestCompileConstantLiteral(t *testing.T) {
	res := mustExtract(t, `<p const-foo="bar"></p>`)
	ctx, err := Compile(res, "c1")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := ctx.Constants[0].Value.Eval(nil, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != "bar" {
		t.Errorf("constant = %v, want literal %q", v, "bar")
	}
}

func TestCompileEventRejectsDelimiters(t *testing.T) {
	res := mustExtract(t, `<p onclick="${ host.inc() }"></p>`)
	if _, err := Compile(res, "c1"); !errors.Is(err, ErrEventNotRaw) {
		t.Errorf("Compile = %v, want ErrEventNotRaw", err)
	}
}

func TestCompileWatchSpecForms(t *testing.T) {
	res := mustExtract(t, `<p watch-menu="click .btn" watch-list="{'click': ['class']}"></p>`)
	ctx, err := Compile(res, "c1")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	v, err := ctx.Watches["menu"].Eval(nil, nil)
	if err != nil {
		t.Fatalf("Eval menu: %v", err)
	}
	if v != "click .btn" {
		t.Errorf("menu spec = %v, want quoted string", v)
	}

	v, err = ctx.Watches["list"].Eval(map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Eval list: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("list spec = %T, want verbatim object literal", v)
	}
	if _, ok := m["click"]; !ok {
		t.Errorf("list spec = %v, want click entry", m)
	}
}

func TestWalkAssignsIdentifiers(t *testing.T) {
	tpl := parseTemplate(t, `<template><p class="btn-${host.kind}">${ host.total }</p></template>`)
	store := NewStore()
	if err := Walk(tpl, directive.DefaultConfig(), store); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	cfg := directive.DefaultConfig()
	tid := attrVal(tpl, cfg.TemplateIDAttr)
	if tid == "" {
		t.Fatal("template id not assigned")
	}
	if _, ok := store.Template(tid); !ok {
		t.Fatalf("template %q not stored", tid)
	}

	p := tpl.FirstChild
	cid := attrVal(p, cfg.ContextIDAttr)
	if cid == "" {
		t.Fatal("context id not assigned")
	}
	ctx, ok := store.Context(cid)
	if !ok {
		t.Fatalf("context %q not stored", cid)
	}
	want := []string{"class", "#0"}
	got := ctx.PartKeys()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("part keys = %v, want %v", got, want)
	}
}

func TestWalkIsIdempotent(t *testing.T) {
	tpl := parseTemplate(t, `<template><p>${ host.x }</p></template>`)
	store := NewStore()
	cfg := directive.DefaultConfig()
	if err := Walk(tpl, cfg, store); err != nil {
		t.Fatalf("first Walk: %v", err)
	}
	before, _ := store.Export()
	if err := Walk(tpl, cfg, store); err != nil {
		t.Fatalf("second Walk: %v", err)
	}
	after, _ := store.Export()
	if len(before) != len(after) {
		t.Errorf("re-walk grew contexts: %d -> %d", len(before), len(after))
	}
}

func TestWalkSplicesNestedTemplates(t *testing.T) {
	tpl := parseTemplate(t,
		`<div><template><p>${ host.x }</p><template for="row" each="${ host.rows }"><li>${ row }</li></template></template></div>`)
	cfg := directive.DefaultConfig()
	store := NewStore()
	if err := Walk(tpl, cfg, store); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	// The nested template now sits after the outer one...
	next := tpl.NextSibling
	if next == nil || !isTemplate(next) {
		t.Fatalf("nested template not reinserted after outer, got %+v", next)
	}
	nestedID := attrVal(next, cfg.TemplateIDAttr)
	if _, ok := store.Template(nestedID); !ok {
		t.Errorf("nested template %q not stored", nestedID)
	}

	// ...and a placeholder carrying its id stands in its old position.
	var ph *html.Node
	for c := tpl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == cfg.PlaceholderTag {
			ph = c
		}
	}
	if ph == nil {
		t.Fatal("no placeholder left behind")
	}
	if attrVal(ph, cfg.TemplateIDAttr) != nestedID {
		t.Errorf("placeholder id = %q, want %q", attrVal(ph, cfg.TemplateIDAttr), nestedID)
	}
}

func TestStoreWriteOnce(t *testing.T) {
	store := NewStore()
	if err := store.AddContext(&Context{ID: "c1"}); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := store.AddContext(&Context{ID: "c1"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate AddContext = %v, want ErrDuplicateID", err)
	}
	if id := store.NextContextID(); id != "c2" {
		t.Errorf("NextContextID = %q, want c2 after restoring c1", id)
	}
}
