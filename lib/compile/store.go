package compile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// ErrDuplicateID is returned when a context or template identifier is
// registered twice. Both side tables are write-once per id.
var ErrDuplicateID = errors.New("compile: duplicate identifier")

// State tracks a template through the walk.
type State int

const (
	// Unparsed templates have never been walked.
	Unparsed State = iota

	// Parsing marks a walk in progress, guarding against cycles.
	Parsing

	// Parsed templates short-circuit repeated walks.
	Parsed
)

// Store holds the two compile-time side tables: context programs keyed by
// context id and parsed templates keyed by template id. Together they are
// the load-time contract for an offline-compile, online-run split.
type Store struct {
	mu        sync.RWMutex
	contexts  map[string]*Context
	templates map[string]*html.Node
	states    map[string]State
	nextCID   int
	nextTID   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		contexts:  make(map[string]*Context),
		templates: make(map[string]*html.Node),
		states:    make(map[string]State),
	}
}

// Context looks up a compiled context program.
func (s *Store) Context(id string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[id]
	return c, ok
}

// AddContext registers a compiled context. Ids are write-once.
func (s *Store) AddContext(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[ctx.ID]; ok {
		return fmt.Errorf("%w: context %q", ErrDuplicateID, ctx.ID)
	}
	s.contexts[ctx.ID] = ctx
	s.bump(ctx.ID, "c", &s.nextCID)
	return nil
}

// Template looks up a parsed template by id.
func (s *Store) Template(id string) (*html.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	return t, ok
}

// AddTemplate registers a parsed template. Ids are write-once.
func (s *Store) AddTemplate(id string, tpl *html.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; ok {
		return fmt.Errorf("%w: template %q", ErrDuplicateID, id)
	}
	s.templates[id] = tpl
	s.bump(id, "t", &s.nextTID)
	return nil
}

// NextContextID reserves the next context identifier.
func (s *Store) NextContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCID++
	return "c" + strconv.Itoa(s.nextCID)
}

// NextTemplateID reserves the next template identifier.
func (s *Store) NextTemplateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTID++
	return "t" + strconv.Itoa(s.nextTID)
}

// TemplateState returns the walk state of a template id.
func (s *Store) TemplateState(id string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[id]
}

// SetTemplateState records the walk state of a template id.
func (s *Store) SetTemplateState(id string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = st
	if st != Unparsed {
		s.bump(id, "t", &s.nextTID)
	}
}

// Export returns shallow copies of both side tables, for archiving.
func (s *Store) Export() (map[string]*Context, map[string]*html.Node) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctxs := make(map[string]*Context, len(s.contexts))
	for id, c := range s.contexts {
		ctxs[id] = c
	}
	tpls := make(map[string]*html.Node, len(s.templates))
	for id, t := range s.templates {
		tpls[id] = t
	}
	return ctxs, tpls
}

// bump keeps the id counters ahead of externally assigned ids so that
// restored stores keep allocating fresh identifiers.
func (s *Store) bump(id, prefix string, counter *int) {
	if rest, ok := strings.CutPrefix(id, prefix); ok {
		if n, err := strconv.Atoi(rest); err == nil && n > *counter {
			*counter = n
		}
	}
}
