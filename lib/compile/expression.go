// Package compile turns extraction results into executable context
// programs and walks template graphs, populating the compile-time store.
//
// There is no host eval facility to lean on, so a context program is a
// small tagged-instruction list (literal-push, expression-eval, tagged
// block) interpreted at infusion time. Expression bodies stay opaque: they
// compile once, lazily, into expr-lang programs and run against the
// per-context environment (host, data, constants, iteration bindings and
// the triggering event).
package compile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/serg-io/infuse.host/lib/fragment"
)

// Expression is one opaque expression body. Code is the trimmed source as
// written in the template; Await records the async marker. The underlying
// program compiles on first evaluation and is reused afterwards.
type Expression struct {
	Code  string `msgpack:"code"`
	Await bool   `msgpack:"await,omitempty"`

	once sync.Once
	prog *vm.Program
	err  error
}

// Eval runs the expression against env. Compilation happens on the first
// call; a compile failure is sticky and reported on every evaluation.
func (e *Expression) Eval(env map[string]any) (any, error) {
	e.once.Do(func() {
		code := e.Code
		// The async marker is metadata, not part of the expression
		// language. Only a leading marker is stripped.
		if rest, ok := strings.CutPrefix(code, fragment.AwaitMarker); ok && (rest == "" || rest[0] == ' ') {
			code = strings.TrimSpace(rest)
		}
		e.prog, e.err = expr.Compile(code, expr.AllowUndefinedVariables())
	})
	if e.err != nil {
		return nil, fmt.Errorf("compile %q: %w", e.Code, e.err)
	}
	out, err := expr.Run(e.prog, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", e.Code, err)
	}
	return out, nil
}
