package compile

import (
	"errors"
	"fmt"

	"github.com/serg-io/infuse.host/lib/fragment"
)

// ErrUnknownTag is returned when a compiled block names a tag with no
// registered tag function.
var ErrUnknownTag = errors.New("compile: unknown tag function")

// TagFunc transforms the evaluated value of a tagged interpolation block.
type TagFunc func(value any) (any, error)

// Op is the instruction opcode.
type Op int

const (
	// OpText pushes a literal string.
	OpText Op = iota

	// OpEval evaluates an expression.
	OpEval

	// OpBlock evaluates its body and applies the named tag function, if
	// any.
	OpBlock
)

// Instr is one instruction of a compiled callback.
type Instr struct {
	Op   Op          `msgpack:"op"`
	Text string      `msgpack:"text,omitempty"`
	Expr *Expression `msgpack:"expr,omitempty"`
	Tag  string      `msgpack:"tag,omitempty"`
	Body []Instr     `msgpack:"body,omitempty"`

	// Await marks asynchronous blocks; asynchronous expressions carry
	// the flag on Expr.
	Await bool `msgpack:"await,omitempty"`
}

// Callback is a compiled value: an instruction list plus the async flag of
// any instruction in it. A single-instruction callback yields the raw value
// of that instruction; longer lists concatenate stringified results.
type Callback struct {
	Instrs []Instr `msgpack:"instrs"`
	Await  bool    `msgpack:"await,omitempty"`
}

// Eval interprets the callback against env. tags supplies the registered
// tag functions for OpBlock instructions.
func (c *Callback) Eval(env map[string]any, tags map[string]TagFunc) (any, error) {
	if len(c.Instrs) == 1 {
		return evalInstr(c.Instrs[0], env, tags)
	}
	var b []byte
	for _, in := range c.Instrs {
		v, err := evalInstr(in, env, tags)
		if err != nil {
			return nil, err
		}
		b = append(b, stringify(v)...)
	}
	return string(b), nil
}

func evalInstr(in Instr, env map[string]any, tags map[string]TagFunc) (any, error) {
	switch in.Op {
	case OpText:
		return in.Text, nil
	case OpEval:
		return in.Expr.Eval(env)
	case OpBlock:
		body := Callback{Instrs: in.Body}
		v, err := body.Eval(env, tags)
		if err != nil {
			return nil, err
		}
		if in.Tag == "" {
			return v, nil
		}
		fn, ok := tags[in.Tag]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTag, in.Tag)
		}
		return fn(v)
	default:
		return nil, fmt.Errorf("compile: bad opcode %d", in.Op)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// instrs lowers fragments to instructions. Block bodies are themselves
// tokenized: a block may interleave literal text and ${ } spans.
func instrs(frags []fragment.Fragment) []Instr {
	if len(frags) == 0 {
		return nil
	}
	out := make([]Instr, 0, len(frags))
	for _, f := range frags {
		switch f.Kind {
		case fragment.Literal:
			out = append(out, Instr{Op: OpText, Text: f.Text})
		case fragment.Expression:
			out = append(out, Instr{Op: OpEval, Expr: &Expression{Code: f.Code, Await: f.Await}})
		case fragment.Block:
			body := instrs(fragment.Tokenize(f.Code, nil))
			if body == nil {
				body = []Instr{{Op: OpText, Text: f.Code}}
			}
			out = append(out, Instr{Op: OpBlock, Tag: f.Tag, Body: body, Await: f.Await})
		}
	}
	return out
}

func anyAwait(ins []Instr) bool {
	for _, in := range ins {
		if in.Await || in.Expr != nil && in.Expr.Await || anyAwait(in.Body) {
			return true
		}
	}
	return false
}
