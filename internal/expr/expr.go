// Package expr is the typed expression language used by view definitions.
//
// An Expr is a pure description. Bind resolves column references against a
// schema once and returns a closure evaluated per row, so unknown columns
// surface as a SchemaMismatchError before any row is touched.
package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Expr is an unbound expression.
type Expr interface {
	// Bind resolves the expression against schema.
	Bind(schema core.Schema) (Bound, error)
	// Refs returns the column names the expression reads.
	Refs() []string
	String() string
}

// Bound is an expression resolved against a schema.
type Bound struct {
	Eval func(core.Row) core.Value
	Type core.ScalarType
}

// Refs collects the distinct column references of several expressions,
// sorted.
func Refs(exprs ...Expr) []string {
	seen := make(map[string]bool)
	for _, e := range exprs {
		if e == nil {
			continue
		}
		for _, r := range e.Refs() {
			seen[r] = true
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func unknownColumn(name string) error {
	return &core.SchemaMismatchError{Column: name, Reason: "unknown column"}
}

func typeError(e Expr, reason string) error {
	return &core.SchemaMismatchError{Reason: fmt.Sprintf("%s: %s", e.String(), reason)}
}

// --- column reference ---

type colRef struct {
	name string
}

// Col references a column by name.
func Col(name string) Expr {
	return colRef{name: name}
}

func (c colRef) Bind(schema core.Schema) (Bound, error) {
	i := schema.Index(c.name)
	if i < 0 {
		return Bound{}, unknownColumn(c.name)
	}
	return Bound{
		Eval: func(r core.Row) core.Value { return r[i] },
		Type: schema[i].Type,
	}, nil
}

func (c colRef) Refs() []string { return []string{c.name} }
func (c colRef) String() string { return c.name }

// ColumnName returns the referenced name if e is a bare column reference.
func ColumnName(e Expr) (string, bool) {
	c, ok := e.(colRef)
	return c.name, ok
}

// --- literal ---

type literal struct {
	v core.Value
	t core.ScalarType
}

// Lit is a constant. Go ints are widened to int64.
func Lit(v any) Expr {
	switch x := v.(type) {
	case int:
		v = int64(x)
	case int32:
		v = int64(x)
	case float32:
		v = float64(x)
	}
	t, ok := core.TypeOf(v)
	if !ok {
		panic(fmt.Sprintf("expr: unsupported literal %T", v))
	}
	return literal{v: v, t: t}
}

// Null is a typed NULL literal.
func Null(t core.ScalarType) Expr {
	return literal{t: t}
}

func (l literal) Bind(core.Schema) (Bound, error) {
	v := l.v
	return Bound{Eval: func(core.Row) core.Value { return v }, Type: l.t}, nil
}

func (l literal) Refs() []string { return nil }

func (l literal) String() string {
	switch {
	case l.v == nil:
		return "NULL"
	case l.t == core.TypeString:
		return "'" + strings.ReplaceAll(l.v.(string), "'", "''") + "'"
	case l.t == core.TypeDate:
		return "DATE '" + core.Format(l.v) + "'"
	}
	return core.Format(l.v)
}

// --- generic function node ---

// fn is a function over bound arguments. bind validates argument types and
// returns the result type and row evaluator.
type fn struct {
	name string
	args []Expr
	bind func(args []Bound) (Bound, error)
}

func (f fn) Bind(schema core.Schema) (Bound, error) {
	bound := make([]Bound, len(f.args))
	for i, a := range f.args {
		b, err := a.Bind(schema)
		if err != nil {
			return Bound{}, err
		}
		bound[i] = b
	}
	b, err := f.bind(bound)
	if err != nil {
		return Bound{}, typeError(f, err.Error())
	}
	return b, nil
}

func (f fn) Refs() []string { return Refs(f.args...) }

func (f fn) String() string {
	parts := make([]string, len(f.args))
	for i, a := range f.args {
		parts[i] = a.String()
	}
	return f.name + "(" + strings.Join(parts, ", ") + ")"
}

func evalAll(args []Bound, r core.Row) []core.Value {
	out := make([]core.Value, len(args))
	for i, a := range args {
		out[i] = a.Eval(r)
	}
	return out
}
