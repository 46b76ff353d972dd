// Package keyexpr evaluates JavaScript sort-key expressions (goja) over a
// client's scheduling attributes. Smaller keys are served first.
//
// Two forms are accepted:
//   - a plain expression:   client.remaining * 2 + client.age
//   - a code block:         ${ if (client.priority === null) return 99; return client.priority; }
package keyexpr

import (
	"fmt"
	"math"
	"strings"

	"github.com/dop251/goja"
)

// Vars is the view of a client exposed to expressions as `client`.
type Vars struct {
	ID        string
	Work      int
	Remaining int
	Served    int
	Arrival   int
	Age       int
	Level     int
	Priority  *int // null in JavaScript when absent
}

func (v Vars) object() map[string]any {
	var prio any
	if v.Priority != nil {
		prio = *v.Priority
	}
	return map[string]any{
		"id":        v.ID,
		"work":      v.Work,
		"remaining": v.Remaining,
		"served":    v.Served,
		"arrival":   v.Arrival,
		"age":       v.Age,
		"level":     v.Level,
		"priority":  prio,
	}
}

// Expr is a compiled key expression. It holds its own runtime and is not
// safe for concurrent use.
type Expr struct {
	src  string
	prog *goja.Program
	vm   *goja.Runtime
}

// Compile parses src.
func Compile(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty key expression")
	}

	code := src
	if strings.HasPrefix(src, "${") && strings.HasSuffix(src, "}") {
		body := strings.TrimSuffix(strings.TrimPrefix(src, "${"), "}")
		code = fmt.Sprintf("(function() { %s })()", strings.TrimSpace(body))
	}

	prog, err := goja.Compile("key", code, true)
	if err != nil {
		return nil, fmt.Errorf("compile key expression %q: %w", src, err)
	}
	return &Expr{src: src, prog: prog, vm: goja.New()}, nil
}

// String returns the expression source.
func (e *Expr) String() string {
	return e.src
}

// Eval computes the key for v. The result must be a finite number.
func (e *Expr) Eval(v Vars) (float64, error) {
	if err := e.vm.Set("client", v.object()); err != nil {
		return 0, fmt.Errorf("set client: %w", err)
	}
	val, err := e.vm.RunProgram(e.prog)
	if err != nil {
		return 0, fmt.Errorf("JavaScript error in %q: %w", e.src, err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return 0, fmt.Errorf("key expression %q returned no value", e.src)
	}

	switch val.Export().(type) {
	case int64, float64:
	default:
		return 0, fmt.Errorf("key expression %q returned %T, want number", e.src, val.Export())
	}
	key := val.ToFloat()
	if math.IsNaN(key) || math.IsInf(key, 0) {
		return 0, fmt.Errorf("key expression %q returned %v", e.src, key)
	}
	return key, nil
}
