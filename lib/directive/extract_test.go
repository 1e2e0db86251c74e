package directive

import (
	"regexp"
	"slices"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseEl parses markup as body content and returns its first element.
func parseEl(t *testing.T, markup string) *html.Node {
	t.Helper()
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	t.Fatalf("no element in %q", markup)
	return nil
}

func extract(t *testing.T, markup string) *Result {
	t.Helper()
	res, err := Extract(parseEl(t, markup), DefaultConfig())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return res
}

func TestExtractConstants(t *testing.T) {
	res := extract(t, `<p const-foo="bar" const-page-size="${ host.size }"></p>`)

	if len(res.Constants) != 2 {
		t.Fatalf("got %d constants, want 2", len(res.Constants))
	}
	if res.Constants[0].Name != "foo" || res.Constants[0].Value.HasSyntax() {
		t.Errorf("constants[0] = %+v, want plain %q", res.Constants[0], "bar")
	}
	if res.Constants[1].Name != "pageSize" {
		t.Errorf("constants[1].Name = %q, want %q", res.Constants[1].Name, "pageSize")
	}
	if !res.Constants[1].Value.HasSyntax() {
		t.Error("constants[1] should have fragments")
	}
	if !slices.Contains(res.ConsumedAttrs, "const-foo") {
		t.Errorf("const-foo not consumed: %v", res.ConsumedAttrs)
	}
}

func TestExtractClassification(t *testing.T) {
	res := extract(t, `<input onclick="host.inc()" watch-menu="click .btn"`+
		` .value-as-date="${ host.when }" disabled?="${ host.off }" class="btn-${host.kind}" id="plain">`)

	if len(res.Events) != 1 || res.Events[0].Event != "click" {
		t.Fatalf("events = %+v, want one click handler", res.Events)
	}
	if len(res.Watches) != 1 || res.Watches[0].Name != "menu" {
		t.Fatalf("watches = %+v, want one watch on menu", res.Watches)
	}

	keys := make([]string, 0, len(res.Parts))
	for _, p := range res.Parts {
		keys = append(keys, p.Key.String())
	}
	want := []string{".valueAsDate", "disabled?", "class"}
	if !slices.Equal(keys, want) {
		t.Errorf("part keys = %v, want %v", keys, want)
	}

	// id carries no syntax and matches no rule: untouched.
	if slices.Contains(res.ConsumedAttrs, "id") {
		t.Errorf("id should not be consumed: %v", res.ConsumedAttrs)
	}
}

func TestExtractTextNodes(t *testing.T) {
	el := parseEl(t, `<p>${ host.x }<b>t</b>${ host.y }</p>`)
	cfg := DefaultConfig()
	res, err := Extract(el, cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var textKeys []string
	for _, p := range res.Parts {
		if p.Key.Kind == TextPart {
			textKeys = append(textKeys, p.Key.String())
		}
	}
	if !slices.Equal(textKeys, []string{"#0", "#2"}) {
		t.Errorf("text part keys = %v, want [#0 #2]", textKeys)
	}
	if !slices.Equal(res.ConsumedTexts, []int{0, 2}) {
		t.Errorf("ConsumedTexts = %v, want [0 2]", res.ConsumedTexts)
	}

	// Compiled text nodes are rewritten to the placeholder.
	if el.FirstChild.Data != cfg.Placeholder {
		t.Errorf("first text node = %q, want placeholder", el.FirstChild.Data)
	}
}

func TestExtractShortTextSkipped(t *testing.T) {
	res := extract(t, `<p>${}</p>`)
	if len(res.Parts) != 0 {
		t.Errorf("parts = %+v, want none for text below the minimum length", res.Parts)
	}
}

func TestExtractIteration(t *testing.T) {
	res := extract(t, `<template for="[item, i, all-items]" each="${ host.items }"></template>`)

	it := res.Iteration
	if it == nil {
		t.Fatal("Iteration = nil")
	}
	if it.Value != "item" || it.Key != "i" || it.Collection != "allItems" {
		t.Errorf("bindings = %q/%q/%q, want item/i/allItems", it.Value, it.Key, it.Collection)
	}
	if !it.HasEach || !it.Each.HasSyntax() {
		t.Errorf("each = %+v, want expression", it.Each)
	}
}

func TestExtractIterationBindingsPartial(t *testing.T) {
	res := extract(t, `<template for="row"></template>`)
	it := res.Iteration
	if it == nil || it.Value != "row" || it.Key != "" || it.Collection != "" {
		t.Errorf("Iteration = %+v, want only value bound", it)
	}
}

func TestExtractForOnNonTemplate(t *testing.T) {
	// "for" is a plain attribute outside template roots (as on <label>).
	res := extract(t, `<label for="field-1">text</label>`)
	if res.Iteration != nil {
		t.Errorf("Iteration = %+v, want nil on non-template", res.Iteration)
	}
	if len(res.ConsumedAttrs) != 0 {
		t.Errorf("ConsumedAttrs = %v, want none", res.ConsumedAttrs)
	}
}

func TestExtractTemplateTextNotScanned(t *testing.T) {
	res := extract(t, `<template>${ host.x }</template>`)
	for _, p := range res.Parts {
		if p.Key.Kind == TextPart {
			t.Errorf("template root text compiled: %+v", p)
		}
	}
}

func TestExtractAsyncPropagation(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   bool
	}{
		{"async constant", `<p const-n="${ await host.load() }"></p>`, true},
		{"async part only", `<p class="${ await host.load() }"></p>`, false},
		{"sync", `<p const-n="${ host.n }"></p>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := extract(t, tt.markup); res.Async != tt.want {
				t.Errorf("Async = %v, want %v", res.Async, tt.want)
			}
		})
	}
}

func TestExtractBadRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConstRule = regexp.MustCompile(`^const-`) // no capturing group
	_, err := Extract(parseEl(t, `<p></p>`), cfg)
	if err == nil {
		t.Fatal("Extract accepted a rule without a capturing group")
	}
}

func TestCamelize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"value-as-date", "valueAsDate"},
		{"page-size", "pageSize"},
		{"plain", "plain"},
		{"a--b", "aB"},
	}
	for _, tt := range tests {
		if got := Camelize(tt.in); got != tt.want {
			t.Errorf("Camelize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPartKeyRoundTrip(t *testing.T) {
	keys := []PartKey{AttrKey("class"), BoolKey("hidden"), PropKey("valueAsDate"), TextKey(2)}
	for _, k := range keys {
		got, err := ParsePartKey(k.String())
		if err != nil {
			t.Fatalf("ParsePartKey(%q): %v", k.String(), err)
		}
		if got != k {
			t.Errorf("ParsePartKey(%q) = %+v, want %+v", k.String(), got, k)
		}
	}
	if _, err := ParsePartKey("#x"); err == nil {
		t.Error("ParsePartKey accepted #x")
	}
}
