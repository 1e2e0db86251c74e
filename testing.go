package infuse

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseTemplate parses an HTML fragment and returns the first <template>
// element in it. It exists for tests and small programs; production code
// normally parses whole documents and picks templates out of them.
func ParseTemplate(src string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if tpl := findTemplate(n); tpl != nil {
			return tpl, nil
		}
	}
	return nil, fmt.Errorf("infuse: no <template> element in %q", src)
}

// MustParseTemplate is ParseTemplate that panics on failure.
func MustParseTemplate(src string) *html.Node {
	tpl, err := ParseTemplate(src)
	if err != nil {
		panic(err)
	}
	return tpl
}

func findTemplate(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "template" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if tpl := findTemplate(c); tpl != nil {
			return tpl
		}
	}
	return nil
}
