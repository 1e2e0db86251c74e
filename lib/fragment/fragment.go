// Package fragment splits raw attribute and text-node strings into literal,
// expression, and tagged-block fragments.
//
// A string such as "btn-${ host.kind }" tokenizes into a literal fragment
// ("btn-") followed by an expression fragment (code "host.kind"). Strings
// with no interpolation syntax tokenize to nil, which callers use as the
// signal to skip compilation entirely.
package fragment

import "strings"

// AwaitMarker is the token whose presence inside an expression or block
// marks the fragment as asynchronous. Detection is purely syntactic: the
// marker is searched for as a substring of the span's code, never of the
// surrounding literal text.
const AwaitMarker = "await"

// Kind discriminates the fragment union.
type Kind int

const (
	// Literal is plain text, emitted verbatim.
	Literal Kind = iota

	// Expression is a ${ ... } span. Code holds the trimmed body.
	Expression

	// Block is a back-tick quoted interpolation block, optionally
	// prefixed by a registered tag name.
	Block
)

// Fragment is one token of a mixed literal/expression string.
//
// Text always holds the raw source slice of the fragment, so concatenating
// the Text of every fragment reproduces the input exactly. Code holds the
// processed body for Expression and Block fragments.
type Fragment struct {
	Kind  Kind
	Text  string
	Code  string
	Tag   string
	Await bool
}

// Tokenize scans input left to right and returns its fragments.
//
// It returns nil when the input contains no expression or interpolation
// syntax. Callers rely on the nil sentinel to avoid allocating compiled
// callbacks for plain strings.
//
// The scan tracks three pieces of state: the index of an open back-tick
// block, the index of an open ${ span, and a brace-nesting counter scoped
// to the open span so that object literals inside an expression do not
// close it early. A back-tick preceded by a backslash does not close a
// block. Two adjacent back-ticks with nothing between them are ambiguous
// markup and stay literal. Unterminated spans and blocks also stay literal.
func Tokenize(input string, m *Matcher) []Fragment {
	var (
		frags      []Fragment
		litStart   = 0
		exprStart  = -1 // index of '$' in an open "${"
		braces     = 0
		blockStart = -1 // index of the opening back-tick
		sawSyntax  = false
	)

	for i := 0; i < len(input); i++ {
		c := input[i]

		switch {
		case exprStart >= 0:
			switch c {
			case '{':
				braces++
			case '}':
				braces--
				if braces > 0 {
					continue
				}
				code := strings.TrimSpace(input[exprStart+2 : i])
				if litStart < exprStart {
					frags = append(frags, Fragment{Kind: Literal, Text: input[litStart:exprStart]})
				}
				frags = append(frags, Fragment{
					Kind:  Expression,
					Text:  input[exprStart : i+1],
					Code:  code,
					Await: strings.Contains(code, AwaitMarker),
				})
				sawSyntax = true
				exprStart = -1
				litStart = i + 1
			}

		case blockStart >= 0:
			if c != '`' {
				continue
			}
			if input[i-1] == '\\' {
				continue // escaped back-tick stays inside the block
			}
			if i == blockStart+1 {
				// Doubled back-ticks with no content: ambiguous,
				// leave both characters in the pending literal.
				blockStart = -1
				continue
			}

			code := strings.ReplaceAll(input[blockStart+1:i], "\\`", "`")
			textStart := blockStart
			lit := input[litStart:blockStart]
			var tag string
			var await bool
			if m != nil {
				if t, a, rest, ok := m.Match(lit); ok {
					tag, await = t, a
					textStart = litStart + len(rest)
					lit = rest
				}
			}
			if lit != "" {
				frags = append(frags, Fragment{Kind: Literal, Text: lit})
			}
			frags = append(frags, Fragment{
				Kind:  Block,
				Text:  input[textStart : i+1],
				Code:  code,
				Tag:   tag,
				Await: await || strings.Contains(code, AwaitMarker),
			})
			sawSyntax = true
			blockStart = -1
			litStart = i + 1

		default:
			if c == '$' && i+1 < len(input) && input[i+1] == '{' {
				exprStart = i
				braces = 1
				i++ // consume '{'
			} else if c == '`' {
				blockStart = i
			}
		}
	}

	if !sawSyntax {
		return nil
	}
	if litStart < len(input) {
		frags = append(frags, Fragment{Kind: Literal, Text: input[litStart:]})
	}
	if len(frags) == 1 && frags[0].Kind == Literal {
		return nil
	}
	return frags
}
