package fragment

import (
	"sort"
	"strings"
)

// asyncPrefix is the marker token that may precede a tag name to request
// asynchronous handling of the tagged block, e.g. "async upper`...`".
const asyncPrefix = "async "

// Matcher detects registered tag names immediately preceding a back-tick
// interpolation block. Tag names are matched longest first so that a
// registered "datetime" wins over a registered "time".
type Matcher struct {
	names []string
}

// NewMatcher builds a Matcher for the given tag names. Empty names are
// ignored.
func NewMatcher(names ...string) *Matcher {
	m := &Matcher{}
	for _, n := range names {
		if n != "" {
			m.names = append(m.names, n)
		}
	}
	sort.Slice(m.names, func(i, j int) bool { return len(m.names[i]) > len(m.names[j]) })
	return m
}

// Names returns the registered tag names, longest first.
func (m *Matcher) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Match reports whether lit ends with a registered tag name, optionally
// preceded by the async marker token. On a match it returns the tag, the
// async flag, and the remaining literal text before the tag token.
func (m *Matcher) Match(lit string) (tag string, await bool, rest string, ok bool) {
	for _, name := range m.names {
		if !strings.HasSuffix(lit, name) {
			continue
		}
		before := lit[:len(lit)-len(name)]
		if trimmed := strings.TrimSuffix(before, asyncPrefix); trimmed != before {
			if boundary(trimmed) {
				return name, true, trimmed, true
			}
			continue
		}
		if boundary(before) {
			return name, false, before, true
		}
	}
	return "", false, "", false
}

// boundary reports whether s may legally precede a tag name: either nothing
// or a non-identifier character, so a registered "upper" does not match the
// tail of "supper".
func boundary(s string) bool {
	if s == "" {
		return true
	}
	c := s[len(s)-1]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_')
}
