// Package directive classifies the attributes and child text nodes of one
// element into constant declarations, event handlers, watch declarations,
// iteration bindings, and infusable parts.
//
// The attribute grammar is configurable: each name rule is a regular
// expression whose first capturing group extracts the declared name. The
// default grammar is:
//
//	const-<name>="<value>"   constant declaration
//	watch-<name>="<spec>"    declarative re-infusion trigger
//	on<event>="<code>"       event handler
//	for="v[, k[, c]]"        iteration bindings (template roots only)
//	each="${ expr }"         iteration collection (template roots only)
//	.<property>="<value>"    property-target part
//	<name>?="<value>"        boolean-attribute-target part
//	<name>="<value>"         generic attribute part
package directive

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/serg-io/infuse.host/lib/fragment"
)

// ErrBadRule is returned when a configured name rule has no capturing
// group, which would make the declared name unrecoverable.
var ErrBadRule = errors.New("directive: name rule requires a capturing group")

// Config holds the directive grammar and the attribute names written back
// into compiled markup. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// ConstRule, WatchRule and EventRule match attribute names. Each must
	// contain at least one capturing group for the declared name.
	ConstRule *regexp.Regexp
	WatchRule *regexp.Regexp
	EventRule *regexp.Regexp

	// IterationAttr and EachAttr are only meaningful on template roots.
	IterationAttr string
	EachAttr      string

	// TemplateIDAttr and ContextIDAttr carry the stable identifiers the
	// walker assigns to templates and compiled elements.
	TemplateIDAttr string
	ContextIDAttr  string

	// PlaceholderTag names the element left behind when a nested template
	// is spliced out of its parent.
	PlaceholderTag string

	// Placeholder replaces the content of compiled text nodes so that
	// serialized templates stay stable until infusion.
	Placeholder string

	// MinTextLen is the shortest text node worth scanning. Shorter nodes
	// cannot hold interpolation syntax and are skipped outright.
	MinTextLen int

	// Tags lists the registered tag names recognized before interpolation
	// blocks.
	Tags []string
}

// DefaultConfig returns the canonical grammar.
func DefaultConfig() *Config {
	return &Config{
		ConstRule:      regexp.MustCompile(`^const-([\w-]+)$`),
		WatchRule:      regexp.MustCompile(`^watch-([\w-]+)$`),
		EventRule:      regexp.MustCompile(`^on(\w+)$`),
		IterationAttr:  "for",
		EachAttr:       "each",
		TemplateIDAttr: "data-tid",
		ContextIDAttr:  "data-cid",
		PlaceholderTag: "infuse-placeholder",
		Placeholder:    "​",
		MinTextLen:     4,
	}
}

// Matcher builds the tag-prefix matcher for the configured tag names.
func (c *Config) Matcher() *fragment.Matcher {
	return fragment.NewMatcher(c.Tags...)
}

// Validate checks that every name rule can extract a name.
func (c *Config) Validate() error {
	for _, r := range []*regexp.Regexp{c.ConstRule, c.WatchRule, c.EventRule} {
		if r == nil {
			return fmt.Errorf("%w: rule is nil", ErrBadRule)
		}
		if r.NumSubexp() < 1 {
			return fmt.Errorf("%w: %q", ErrBadRule, r.String())
		}
	}
	return nil
}
