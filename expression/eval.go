package expression

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/expr-lang/expr/ast"

	"github.com/notargets/DGField/value"
)

// Env binds names for one evaluation. Entries may be a value.Value, a Func,
// or a Go number (int, float64, complex128) or slice ([]float64,
// []complex128).
type Env map[string]any

// operand is either a value or a callable
type operand struct {
	val value.Value
	fn  Func
}

// Eval evaluates the program against env. Names missing from env resolve
// to the builtin functions and constants. A callable result is invoked with
// no arguments.
func (p *Program) Eval(env Env) (value.Value, error) {
	res, err := eval(p.root, env)
	if err != nil {
		return value.Value{}, err
	}
	if res.fn != nil {
		return res.fn()
	}
	return res.val, nil
}

// ToValue converts a Go number, slice or value.Value to a value.Value
func ToValue(x any) (value.Value, bool) {
	switch v := x.(type) {
	case value.Value:
		return v, true
	case *value.Value:
		return *v, true
	case float64:
		return value.Scalar(v), true
	case float32:
		return value.Scalar(float64(v)), true
	case int:
		return value.Scalar(float64(v)), true
	case int64:
		return value.Scalar(float64(v)), true
	case complex128:
		return value.ComplexScalar(v), true
	case []float64:
		return value.Vector(v...), true
	case []complex128:
		return value.New([]int{len(v)}, append([]complex128(nil), v...), true), true
	}
	return value.Value{}, false
}

func toOperand(name string, x any) (operand, error) {
	switch f := x.(type) {
	case Func:
		return operand{fn: f}, nil
	case func(...value.Value) (value.Value, error):
		return operand{fn: f}, nil
	}
	if v, ok := ToValue(x); ok {
		return operand{val: v}, nil
	}
	return operand{}, fmt.Errorf("name %q is bound to unsupported %T", name, x)
}

func lookup(name string, env Env) (operand, error) {
	if x, ok := env[name]; ok {
		return toOperand(name, x)
	}
	if c, ok := constants[name]; ok {
		return operand{val: c}, nil
	}
	if f, ok := builtins[name]; ok {
		return operand{fn: f}, nil
	}
	return operand{}, &UnresolvedNameError{Name: name}
}

func evalValue(node ast.Node, env Env) (value.Value, error) {
	res, err := eval(node, env)
	if err != nil {
		return value.Value{}, err
	}
	if res.fn != nil {
		return value.Value{}, fmt.Errorf("function %s used as a value", node)
	}
	return res.val, nil
}

func eval(node ast.Node, env Env) (operand, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return operand{val: value.Scalar(float64(n.Value))}, nil
	case *ast.FloatNode:
		return operand{val: value.Scalar(n.Value)}, nil
	case *ast.BoolNode:
		return operand{val: value.Scalar(boolToFloat(n.Value))}, nil
	case *ast.ConstantNode:
		return toOperand("constant", n.Value)
	case *ast.IdentifierNode:
		return lookup(n.Value, env)
	case *ast.UnaryNode:
		v, err := evalValue(n.Node, env)
		if err != nil {
			return operand{}, err
		}
		switch n.Operator {
		case "-":
			return operand{val: value.Map(v, func(c complex128) complex128 { return -c })}, nil
		case "+":
			return operand{val: v}, nil
		default:
			return operand{val: value.MapReal(v, func(c complex128) float64 { return boolToFloat(c == 0) })}, nil
		}
	case *ast.BinaryNode:
		return evalBinary(n, env)
	case *ast.CallNode:
		callee := n.Callee.(*ast.IdentifierNode)
		fn, err := lookup(callee.Value, env)
		if err != nil {
			return operand{}, err
		}
		return call(callee.Value, fn, n.Arguments, env)
	case *ast.BuiltinNode:
		fn, err := lookup(n.Name, env)
		if err != nil {
			return operand{}, err
		}
		return call(n.Name, fn, n.Arguments, env)
	case *ast.ArrayNode:
		items := make([]value.Value, len(n.Nodes))
		for i, item := range n.Nodes {
			var err error
			if items[i], err = evalValue(item, env); err != nil {
				return operand{}, err
			}
		}
		v, err := value.Stack(items)
		if err != nil {
			return operand{}, fmt.Errorf("array %s: %w", n, err)
		}
		return operand{val: v}, nil
	case *ast.MemberNode:
		base, err := evalValue(n.Node, env)
		if err != nil {
			return operand{}, err
		}
		idx, err := evalValue(n.Property, env)
		if err != nil {
			return operand{}, err
		}
		if !idx.IsScalar() || idx.IsBatched() {
			return operand{}, fmt.Errorf("index of %s must be a scalar", n)
		}
		v, err := value.Index(base, int(idx.Real()))
		if err != nil {
			return operand{}, fmt.Errorf("%s: %w", n, err)
		}
		return operand{val: v}, nil
	case *ast.ConditionalNode:
		cond, err := evalValue(n.Cond, env)
		if err != nil {
			return operand{}, err
		}
		if cond.IsScalar() && !cond.IsBatched() {
			if cond.Truth() {
				return eval(n.Exp1, env)
			}
			return eval(n.Exp2, env)
		}
		a, err := evalValue(n.Exp1, env)
		if err != nil {
			return operand{}, err
		}
		b, err := evalValue(n.Exp2, env)
		if err != nil {
			return operand{}, err
		}
		v, err := value.Where(cond, a, b)
		if err != nil {
			return operand{}, fmt.Errorf("%s: %w", n, err)
		}
		return operand{val: v}, nil
	}
	return operand{}, fmt.Errorf("%w: %T", ErrUnsupported, node)
}

func call(name string, fn operand, argNodes []ast.Node, env Env) (operand, error) {
	if fn.fn == nil {
		return operand{}, fmt.Errorf("%q is not callable", name)
	}
	args := make([]value.Value, len(argNodes))
	for i, a := range argNodes {
		var err error
		if args[i], err = evalValue(a, env); err != nil {
			return operand{}, err
		}
	}
	v, err := fn.fn(args...)
	if err != nil {
		return operand{}, fmt.Errorf("%s: %w", name, err)
	}
	return operand{val: v}, nil
}

func evalBinary(n *ast.BinaryNode, env Env) (operand, error) {
	a, err := evalValue(n.Left, env)
	if err != nil {
		return operand{}, err
	}
	b, err := evalValue(n.Right, env)
	if err != nil {
		return operand{}, err
	}
	var (
		op      value.BinaryOp
		logical bool
	)
	switch n.Operator {
	case "+":
		op = value.Add
	case "-":
		op = value.Sub
	case "*":
		op = value.Mul
	case "/":
		op = value.Div
	case "**", "^":
		op = pow
	case "%":
		op = func(x, y complex128) complex128 { return complex(math.Mod(real(x), real(y)), 0) }
	case "<":
		op, logical = compare(func(x, y float64) bool { return x < y }), true
	case ">":
		op, logical = compare(func(x, y float64) bool { return x > y }), true
	case "<=":
		op, logical = compare(func(x, y float64) bool { return x <= y }), true
	case ">=":
		op, logical = compare(func(x, y float64) bool { return x >= y }), true
	case "==":
		op, logical = func(x, y complex128) complex128 { return complex(boolToFloat(x == y), 0) }, true
	case "!=":
		op, logical = func(x, y complex128) complex128 { return complex(boolToFloat(x != y), 0) }, true
	case "and", "&&":
		op, logical = func(x, y complex128) complex128 { return complex(boolToFloat(x != 0 && y != 0), 0) }, true
	case "or", "||":
		op, logical = func(x, y complex128) complex128 { return complex(boolToFloat(x != 0 || y != 0), 0) }, true
	default:
		return operand{}, fmt.Errorf("%w: operator %q", ErrUnsupported, n.Operator)
	}
	v, err := value.Apply(op, a, b)
	if err != nil {
		return operand{}, fmt.Errorf("%s: %w", n, err)
	}
	if logical || n.Operator == "%" {
		v.Complex = false
	}
	return operand{val: v}, nil
}

func pow(x, y complex128) complex128 {
	if imag(x) == 0 && imag(y) == 0 {
		return complex(math.Pow(real(x), real(y)), 0)
	}
	return cmplx.Pow(x, y)
}

func compare(cmp func(x, y float64) bool) value.BinaryOp {
	return func(x, y complex128) complex128 {
		return complex(boolToFloat(cmp(real(x), real(y))), 0)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
