package directive

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/serg-io/infuse.host/lib/fragment"
)

// Value is one directive value: the raw attribute or text-node string plus
// its fragments. Frags is nil when the string holds no interpolation syntax.
type Value struct {
	Raw   string
	Frags []fragment.Fragment
}

// HasSyntax reports whether tokenization produced fragments.
func (v Value) HasSyntax() bool { return v.Frags != nil }

// Await reports whether any fragment carries the async marker.
func (v Value) Await() bool {
	for _, f := range v.Frags {
		if f.Kind != fragment.Literal && f.Await {
			return true
		}
	}
	return false
}

// Bracketed reports whether the raw value looks like an array or object
// literal. Watch and event values shaped like this are preserved verbatim
// instead of being quoted.
func (v Value) Bracketed() bool {
	s := strings.TrimSpace(v.Raw)
	if len(s) < 2 {
		return false
	}
	return s[0] == '[' && s[len(s)-1] == ']' || s[0] == '{' && s[len(s)-1] == '}'
}

// Constant is one const-<name> declaration.
type Constant struct {
	Name  string
	Value Value
}

// Watch is one watch-<name> declaration: Name resolves to the watched
// element at infusion time, Value evaluates to the event spec.
type Watch struct {
	Name  string
	Value Value
}

// Handler is one on<event> declaration.
type Handler struct {
	Event string
	Value Value
}

// Part is one infusable location and its value.
type Part struct {
	Key   PartKey
	Value Value
}

// Iteration holds the bindings declared by a template root's "for"
// attribute and the collection expression of its "each" attribute.
type Iteration struct {
	Value      string
	Key        string
	Collection string
	Each       Value
	HasEach    bool
}

// Result is the classification of one element's attributes and text nodes.
type Result struct {
	Constants []Constant
	Parts     []Part
	Events    []Handler
	Watches   []Watch
	Iteration *Iteration

	// Async is true iff any constant or watch expression carries the
	// async marker. Event handlers and plain parts do not propagate
	// asynchrony to the context itself.
	Async bool

	// ConsumedAttrs and ConsumedTexts record which directive syntax can
	// be stripped from the source element after compilation.
	ConsumedAttrs []string
	ConsumedTexts []int
}

// Empty reports whether extraction found nothing to compile.
func (r *Result) Empty() bool {
	return len(r.Constants) == 0 && len(r.Parts) == 0 && len(r.Events) == 0 &&
		len(r.Watches) == 0 && r.Iteration == nil
}

// Extract classifies every attribute and child text node of el.
//
// Classification precedence is constant > watch > event > iteration >
// generic part. An attribute is consumed only when it matches a rule or its
// value tokenizes to fragments. Compiled text nodes are rewritten in place
// to the configured placeholder; iteration and each attributes are only
// meaningful on template roots, and text nodes of template roots are never
// scanned (their content belongs to descendants).
func Extract(el *html.Node, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := cfg.Matcher()
	res := &Result{}
	isTemplate := el.Type == html.ElementNode && (el.DataAtom == atom.Template || el.Data == "template")

	for _, attr := range el.Attr {
		key, raw := attr.Key, attr.Val
		v := Value{Raw: raw, Frags: fragment.Tokenize(raw, m)}

		switch {
		case matches(cfg.ConstRule, key):
			name := Camelize(group(cfg.ConstRule, key))
			res.Constants = append(res.Constants, Constant{Name: name, Value: v})
			res.Async = res.Async || v.Await()

		case matches(cfg.WatchRule, key):
			name := Camelize(group(cfg.WatchRule, key))
			res.Watches = append(res.Watches, Watch{Name: name, Value: v})
			res.Async = res.Async || v.Await()

		case matches(cfg.EventRule, key):
			res.Events = append(res.Events, Handler{Event: group(cfg.EventRule, key), Value: v})

		case key == cfg.IterationAttr && isTemplate:
			it := res.iteration()
			it.Value, it.Key, it.Collection = splitBindings(raw)

		case key == cfg.EachAttr && isTemplate:
			it := res.iteration()
			it.Each, it.HasEach = v, true

		default:
			if !v.HasSyntax() {
				continue // plain attribute, not ours
			}
			res.Parts = append(res.Parts, Part{Key: classify(key), Value: v})
		}

		res.ConsumedAttrs = append(res.ConsumedAttrs, key)
	}

	if !isTemplate {
		idx := 0
		for n := el.FirstChild; n != nil; n = n.NextSibling {
			if n.Type == html.TextNode && len(n.Data) >= cfg.MinTextLen {
				if frags := fragment.Tokenize(n.Data, m); frags != nil {
					res.Parts = append(res.Parts, Part{
						Key:   TextKey(idx),
						Value: Value{Raw: n.Data, Frags: frags},
					})
					n.Data = cfg.Placeholder
					res.ConsumedTexts = append(res.ConsumedTexts, idx)
				}
			}
			idx++
		}
	}

	return res, nil
}

// classify maps an attribute name to its part key: ".prop" targets a
// property, "name?" a boolean attribute, anything else a plain attribute.
func classify(key string) PartKey {
	switch {
	case strings.HasPrefix(key, ".") && len(key) > 1:
		return PropKey(Camelize(key[1:]))
	case strings.HasSuffix(key, "?") && len(key) > 1:
		return BoolKey(key[:len(key)-1])
	default:
		return AttrKey(key)
	}
}

// splitBindings parses a "for" attribute value: optional surrounding
// brackets are stripped, the remainder splits on commas, and names are
// assigned positionally to value, key and collection. Extra names are
// ignored; missing names stay empty.
func splitBindings(raw string) (value, key, collection string) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		if s[0] == '[' && s[len(s)-1] == ']' || s[0] == '(' && s[len(s)-1] == ')' {
			s = s[1 : len(s)-1]
		}
	}
	names := strings.Split(s, ",")
	get := func(i int) string {
		if i >= len(names) {
			return ""
		}
		return Camelize(strings.TrimSpace(names[i]))
	}
	return get(0), get(1), get(2)
}

func (r *Result) iteration() *Iteration {
	if r.Iteration == nil {
		r.Iteration = &Iteration{}
	}
	return r.Iteration
}

func matches(rule *regexp.Regexp, key string) bool { return rule.MatchString(key) }

// group returns the first capturing group of rule applied to key. The rule
// is known to match and to have a group; Validate enforced that.
func group(rule *regexp.Regexp, key string) string {
	return rule.FindStringSubmatch(key)[1]
}
