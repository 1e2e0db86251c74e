package compile

// Scope accumulates the names visible to an element from its ancestor
// templates: constants declared on template roots and iteration binding
// names. Nested compilations reference these names without redeclaring
// them; the walker threads the scope down the template graph.
type Scope struct {
	parent    *Scope
	constants []string
	iteration []string
}

// NewScope returns an empty root scope.
func NewScope() *Scope { return &Scope{} }

// Child derives a scope extended with the given names.
func (s *Scope) Child(constants, iteration []string) *Scope {
	return &Scope{parent: s, constants: constants, iteration: iteration}
}

// Names returns every visible name, outermost first.
func (s *Scope) Names() []string {
	if s == nil {
		return nil
	}
	names := s.parent.Names()
	names = append(names, s.constants...)
	return append(names, s.iteration...)
}
