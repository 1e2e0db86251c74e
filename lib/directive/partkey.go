package directive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadPartKey is returned when a part-key string cannot be parsed.
var ErrBadPartKey = errors.New("directive: malformed part key")

// PartKind discriminates the four infusable target locations on an element.
type PartKind int

const (
	// AttributePart writes a regular attribute value.
	AttributePart PartKind = iota

	// BooleanPart toggles an attribute's presence on truthiness.
	BooleanPart

	// PropertyPart writes a runtime property, never serialized markup.
	PropertyPart

	// TextPart writes the data of a child text node, addressed by its
	// position in the element's child list.
	TextPart
)

// PartKey identifies one infusable location on an element.
type PartKey struct {
	Kind  PartKind
	Name  string
	Index int
}

// AttrKey returns the key for a regular attribute part.
func AttrKey(name string) PartKey { return PartKey{Kind: AttributePart, Name: name} }

// BoolKey returns the key for a boolean attribute part.
func BoolKey(name string) PartKey { return PartKey{Kind: BooleanPart, Name: name} }

// PropKey returns the key for a property part.
func PropKey(name string) PartKey { return PartKey{Kind: PropertyPart, Name: name} }

// TextKey returns the key for the text node at child index i.
func TextKey(i int) PartKey { return PartKey{Kind: TextPart, Index: i} }

// String renders the key in its canonical string form: "class", "hidden?",
// ".valueAsDate" or "#2". The string form is used in event specs, archive
// files and diagnostics.
func (k PartKey) String() string {
	switch k.Kind {
	case BooleanPart:
		return k.Name + "?"
	case PropertyPart:
		return "." + k.Name
	case TextPart:
		return "#" + strconv.Itoa(k.Index)
	default:
		return k.Name
	}
}

// ParsePartKey parses the canonical string form of a part key.
func ParsePartKey(s string) (PartKey, error) {
	switch {
	case s == "":
		return PartKey{}, fmt.Errorf("%w: empty", ErrBadPartKey)
	case strings.HasPrefix(s, "#"):
		i, err := strconv.Atoi(s[1:])
		if err != nil || i < 0 {
			return PartKey{}, fmt.Errorf("%w: %q", ErrBadPartKey, s)
		}
		return TextKey(i), nil
	case strings.HasPrefix(s, "."):
		if len(s) == 1 {
			return PartKey{}, fmt.Errorf("%w: %q", ErrBadPartKey, s)
		}
		return PropKey(s[1:]), nil
	case strings.HasSuffix(s, "?"):
		if len(s) == 1 {
			return PartKey{}, fmt.Errorf("%w: %q", ErrBadPartKey, s)
		}
		return BoolKey(s[:len(s)-1]), nil
	default:
		return AttrKey(s), nil
	}
}
