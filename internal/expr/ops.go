package expr

import (
	"errors"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

var (
	errNumeric = errors.New("operands must be numeric")
	errBool    = errors.New("operands must be boolean")
)

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
)

func (op arithOp) String() string {
	return [...]string{"ADD", "SUB", "MUL"}[op]
}

func arith(op arithOp, a, b Expr) Expr {
	return fn{name: op.String(), args: []Expr{a, b}, bind: func(args []Bound) (Bound, error) {
		l, r := args[0], args[1]
		if !l.Type.Numeric() || !r.Type.Numeric() {
			return Bound{}, errNumeric
		}
		if l.Type == core.TypeInt && r.Type == core.TypeInt {
			return Bound{Type: core.TypeInt, Eval: func(row core.Row) core.Value {
				x, y := l.Eval(row), r.Eval(row)
				if x == nil || y == nil {
					return nil
				}
				a, b := x.(int64), y.(int64)
				switch op {
				case opAdd:
					return a + b
				case opSub:
					return a - b
				default:
					return a * b
				}
			}}, nil
		}
		return Bound{Type: core.TypeFloat, Eval: func(row core.Row) core.Value {
			a, ok1 := core.AsFloat(l.Eval(row))
			b, ok2 := core.AsFloat(r.Eval(row))
			if !ok1 || !ok2 {
				return nil
			}
			switch op {
			case opAdd:
				return a + b
			case opSub:
				return a - b
			default:
				return a * b
			}
		}}, nil
	}}
}

// Add returns a + b. NULL propagates.
func Add(a, b Expr) Expr { return arith(opAdd, a, b) }

// Sub returns a - b.
func Sub(a, b Expr) Expr { return arith(opSub, a, b) }

// Mul returns a * b.
func Mul(a, b Expr) Expr { return arith(opMul, a, b) }

// Sum adds any number of terms left to right.
func Sum(terms ...Expr) Expr {
	if len(terms) == 0 {
		return Lit(int64(0))
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out = Add(out, t)
	}
	return out
}

// Float converts a numeric expression to float.
func Float(e Expr) Expr {
	return fn{name: "FLOAT", args: []Expr{e}, bind: func(args []Bound) (Bound, error) {
		if !args[0].Type.Numeric() {
			return Bound{}, errNumeric
		}
		a := args[0]
		return Bound{Type: core.TypeFloat, Eval: func(r core.Row) core.Value {
			f, ok := core.AsFloat(a.Eval(r))
			if !ok {
				return nil
			}
			return f
		}}, nil
	}}
}

type cmpOp int

const (
	opEq cmpOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
)

func (op cmpOp) String() string {
	return [...]string{"EQ", "NE", "LT", "LE", "GT", "GE"}[op]
}

func compare(op cmpOp, a, b Expr) Expr {
	return fn{name: op.String(), args: []Expr{a, b}, bind: func(args []Bound) (Bound, error) {
		l, r := args[0], args[1]
		if l.Type != r.Type && !(l.Type.Numeric() && r.Type.Numeric()) {
			return Bound{}, errors.New("cannot compare " + string(l.Type) + " with " + string(r.Type))
		}
		return Bound{Type: core.TypeBool, Eval: func(row core.Row) core.Value {
			x, y := l.Eval(row), r.Eval(row)
			if x == nil || y == nil {
				return nil
			}
			c := core.Compare(x, y)
			switch op {
			case opEq:
				return c == 0
			case opNe:
				return c != 0
			case opLt:
				return c < 0
			case opLe:
				return c <= 0
			case opGt:
				return c > 0
			default:
				return c >= 0
			}
		}}, nil
	}}
}

// Eq returns a = b. Comparisons with NULL yield NULL.
func Eq(a, b Expr) Expr { return compare(opEq, a, b) }

// Ne returns a <> b.
func Ne(a, b Expr) Expr { return compare(opNe, a, b) }

// Lt returns a < b.
func Lt(a, b Expr) Expr { return compare(opLt, a, b) }

// Le returns a <= b.
func Le(a, b Expr) Expr { return compare(opLe, a, b) }

// Gt returns a > b.
func Gt(a, b Expr) Expr { return compare(opGt, a, b) }

// Ge returns a >= b.
func Ge(a, b Expr) Expr { return compare(opGe, a, b) }

// And is SQL three-valued conjunction.
func And(terms ...Expr) Expr {
	return fn{name: "AND", args: terms, bind: func(args []Bound) (Bound, error) {
		for _, a := range args {
			if a.Type != core.TypeBool {
				return Bound{}, errBool
			}
		}
		return Bound{Type: core.TypeBool, Eval: func(r core.Row) core.Value {
			sawNull := false
			for _, a := range args {
				switch a.Eval(r) {
				case false:
					return false
				case nil:
					sawNull = true
				}
			}
			if sawNull {
				return nil
			}
			return true
		}}, nil
	}}
}

// Or is SQL three-valued disjunction.
func Or(terms ...Expr) Expr {
	return fn{name: "OR", args: terms, bind: func(args []Bound) (Bound, error) {
		for _, a := range args {
			if a.Type != core.TypeBool {
				return Bound{}, errBool
			}
		}
		return Bound{Type: core.TypeBool, Eval: func(r core.Row) core.Value {
			sawNull := false
			for _, a := range args {
				switch a.Eval(r) {
				case true:
					return true
				case nil:
					sawNull = true
				}
			}
			if sawNull {
				return nil
			}
			return false
		}}, nil
	}}
}

// Not negates a boolean. NOT NULL is NULL.
func Not(e Expr) Expr {
	return fn{name: "NOT", args: []Expr{e}, bind: func(args []Bound) (Bound, error) {
		if args[0].Type != core.TypeBool {
			return Bound{}, errBool
		}
		a := args[0]
		return Bound{Type: core.TypeBool, Eval: func(r core.Row) core.Value {
			v := a.Eval(r)
			if v == nil {
				return nil
			}
			return !v.(bool)
		}}, nil
	}}
}

// IsNull tests for NULL. It never yields NULL itself.
func IsNull(e Expr) Expr {
	return fn{name: "IS_NULL", args: []Expr{e}, bind: func(args []Bound) (Bound, error) {
		a := args[0]
		return Bound{Type: core.TypeBool, Eval: func(r core.Row) core.Value {
			return a.Eval(r) == nil
		}}, nil
	}}
}

// In tests membership in a fixed value list.
func In(e Expr, values ...core.Value) Expr {
	return fn{name: "IN", args: []Expr{e}, bind: func(args []Bound) (Bound, error) {
		a := args[0]
		return Bound{Type: core.TypeBool, Eval: func(r core.Row) core.Value {
			v := a.Eval(r)
			if v == nil {
				return nil
			}
			for _, want := range values {
				if core.Equal(v, want) {
					return true
				}
			}
			return false
		}}, nil
	}}
}
