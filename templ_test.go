package infuse

import (
	"context"
	"strings"
	"testing"
)

func TestComponentRendersInfusedMarkup(t *testing.T) {
	rt := newTestRuntime()
	tpl := MustParseTemplate(`<template><p class="${data.cls}">${data.msg}</p></template>`)

	c := rt.Component(nil, tpl, map[string]any{"cls": "note", "msg": "hello"}, nil)

	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, `class="note"`) {
		t.Errorf("output %q missing class attribute", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output %q missing text part", out)
	}
}

func TestComponentPropagatesErrors(t *testing.T) {
	rt := newTestRuntime()
	tpl := MustParseTemplate(
		`<template for="[item]" each="${data.n}"><li class="${item}"></li></template>`)

	c := rt.Component(nil, tpl, map[string]any{"n": 7}, nil)
	if err := c.Render(context.Background(), &strings.Builder{}); !IsNotIterable(err) {
		t.Fatalf("Render error = %v, want ErrNotIterable", err)
	}
}
