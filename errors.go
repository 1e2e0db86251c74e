package infuse

import "errors"

// Sentinel errors for infusion operations.
var (
	// ErrUnknownContext reports an element whose context id has no
	// compiled context function in the store.
	ErrUnknownContext = errors.New("infuse: unknown context id")

	// ErrUnknownTemplate reports a template id with no parsed template.
	ErrUnknownTemplate = errors.New("infuse: unknown template id")

	// ErrUnknownPart reports a requested part key with no compiled
	// callback, typically a typo between a watch's part list and the
	// element's actual parts.
	ErrUnknownPart = errors.New("infuse: unknown part")

	// ErrNotIterable reports an each expression that evaluated to a
	// value that cannot be iterated.
	ErrNotIterable = errors.New("infuse: each expression is not iterable")

	// ErrBadEventSpec reports a watch value that does not follow the
	// event-spec grammar.
	ErrBadEventSpec = errors.New("infuse: malformed event spec")

	// ErrWatchTarget reports a watch whose name does not resolve to an
	// element.
	ErrWatchTarget = errors.New("infuse: watch target is not an element")

	// ErrNotInfused reports an operation on an element that has no live
	// context.
	ErrNotInfused = errors.New("infuse: element has no live context")
)

// IsUnknownPart checks if err is an unknown-part error.
func IsUnknownPart(err error) bool {
	return errors.Is(err, ErrUnknownPart)
}

// IsNotIterable checks if err is a non-iterable collection error.
func IsNotIterable(err error) bool {
	return errors.Is(err, ErrNotIterable)
}
