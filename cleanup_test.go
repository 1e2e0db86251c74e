package infuse

import (
	"context"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func TestSweepDrainsCleanupsInOrder(t *testing.T) {
	rt := newTestRuntime()
	el := &html.Node{Type: html.ElementNode, Data: "div"}

	var order []int
	rt.OnCleanup(el, func() { order = append(order, 1) })
	rt.OnCleanup(el, func() { order = append(order, 2) })

	rt.Sweep(el)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("cleanup order = %v, want [1 2]", order)
	}

	// A second sweep must not rerun the queue.
	rt.Sweep(el)
	if len(order) != 2 {
		t.Fatalf("cleanups ran %d times, want 2", len(order))
	}
}

func TestSweepTreeCoversDescendants(t *testing.T) {
	rt := newTestRuntime()
	parent := &html.Node{Type: html.ElementNode, Data: "div"}
	child := &html.Node{Type: html.ElementNode, Data: "span"}
	parent.AppendChild(child)

	swept := map[string]bool{}
	rt.OnCleanup(parent, func() { swept["parent"] = true })
	rt.OnCleanup(child, func() { swept["child"] = true })

	rt.SweepTree(parent)
	if !swept["parent"] || !swept["child"] {
		t.Fatalf("swept = %v, want both parent and child", swept)
	}
}

func TestSweepUninfusedElementIsNoop(t *testing.T) {
	rt := newTestRuntime()
	rt.Sweep(&html.Node{Type: html.ElementNode, Data: "div"})
}

func TestAsyncPartAfterSweepIsDropped(t *testing.T) {
	rt := newTestRuntime()
	called := make(chan struct{}, 1)
	rt.OnAsyncError = func(*html.Node, string, error) { called <- struct{}{} }

	tpl := MustParseTemplate(`<template><p class="${data.p}"></p></template>`)
	p := NewPromise()
	frag, err := rt.Infuse(context.Background(), nil, tpl, map[string]any{"p": p}, nil)
	if err != nil {
		t.Fatalf("Infuse: %v", err)
	}
	el := firstElement(t, frag)

	rt.Sweep(el)
	p.Resolve("late")
	time.Sleep(50 * time.Millisecond)

	rt.mu.RLock()
	got := attrOf(el, "class")
	rt.mu.RUnlock()
	if got != "" {
		t.Fatalf("class = %q, swept element must not receive async writes", got)
	}
	select {
	case <-called:
		t.Fatal("OnAsyncError called for a dropped resolution")
	default:
	}
}

func TestSweptElementIsNotInfused(t *testing.T) {
	rt := newTestRuntime()
	tpl := MustParseTemplate(`<template><p class="${data.cls}"></p></template>`)

	frag, err := rt.Infuse(context.Background(), nil, tpl, map[string]any{"cls": "x"}, nil)
	if err != nil {
		t.Fatalf("Infuse: %v", err)
	}
	el := firstElement(t, frag)

	rt.Sweep(el)
	if err := rt.InfuseElement(context.Background(), el, nil, nil); err != ErrNotInfused {
		t.Fatalf("InfuseElement error = %v, want ErrNotInfused", err)
	}
}
