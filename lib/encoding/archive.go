// Package encoding serializes a compiled store so another process can load
// it and infuse without re-parsing templates. Context programs travel as
// msgpack; templates travel as HTML text and are re-parsed on load, since a
// parsed tree has no portable binary form.
package encoding

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/serg-io/infuse.host/lib/compile"
)

// Version is the archive format version. Load rejects archives written by
// an incompatible future version.
const Version = 1

// ErrVersion is returned by Load when the archive's version does not match.
var ErrVersion = errors.New("encoding: unsupported archive version")

type archive struct {
	Version   int                         `msgpack:"version"`
	Contexts  map[string]*compile.Context `msgpack:"contexts"`
	Templates map[string]string           `msgpack:"templates"`
}

// Save writes the store's contexts and templates to w.
func Save(w io.Writer, store *compile.Store) error {
	contexts, templates := store.Export()

	a := archive{
		Version:   Version,
		Contexts:  contexts,
		Templates: make(map[string]string, len(templates)),
	}
	for id, tpl := range templates {
		var sb strings.Builder
		if err := html.Render(&sb, tpl); err != nil {
			return fmt.Errorf("encoding: render template %s: %w", id, err)
		}
		a.Templates[id] = sb.String()
	}
	return msgpack.NewEncoder(w).Encode(&a)
}

// Load reads an archive from r into a fresh store. Every restored template
// is marked parsed, so infusing it skips the compile walk; identifier
// counters resume past the restored identifiers.
func Load(r io.Reader) (*compile.Store, error) {
	var a archive
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("encoding: decode archive: %w", err)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, a.Version)
	}

	store := compile.NewStore()
	for _, ctx := range a.Contexts {
		if err := store.AddContext(ctx); err != nil {
			return nil, err
		}
	}
	for id, src := range a.Templates {
		tpl, err := parseTemplate(src)
		if err != nil {
			return nil, fmt.Errorf("encoding: template %s: %w", id, err)
		}
		if err := store.AddTemplate(id, tpl); err != nil {
			return nil, err
		}
		store.SetTemplateState(id, compile.Parsed)
	}
	return store, nil
}

func parseTemplate(src string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode && n.Data == "template" {
			return n, nil
		}
	}
	return nil, errors.New("no <template> element")
}
