package expression

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/notargets/DGField/value"
)

var constants = map[string]value.Value{
	"pi": value.Scalar(math.Pi),
	"e":  value.Scalar(math.E),
	// expr-lang has no imaginary literal; 2*j is 2i
	"j": value.ComplexScalar(1i),
}

var builtins = map[string]Func{
	"sin":     unary(math.Sin, cmplx.Sin),
	"cos":     unary(math.Cos, cmplx.Cos),
	"tan":     unary(math.Tan, cmplx.Tan),
	"arcsin":  unary(math.Asin, cmplx.Asin),
	"arccos":  unary(math.Acos, cmplx.Acos),
	"arctan":  unary(math.Atan, cmplx.Atan),
	"sinh":    unary(math.Sinh, cmplx.Sinh),
	"cosh":    unary(math.Cosh, cmplx.Cosh),
	"tanh":    unary(math.Tanh, cmplx.Tanh),
	"exp":     unary(math.Exp, cmplx.Exp),
	"sqrt":    unary(math.Sqrt, cmplx.Sqrt),
	"log":     unary(math.Log, cmplx.Log),
	"log10":   unary(math.Log10, cmplx.Log10),
	"log2":    unary(math.Log2, func(c complex128) complex128 { return cmplx.Log(c) / math.Ln2 }),
	"conj":    unary(nil, cmplx.Conj),
	"abs":     realUnary(cmplx.Abs),
	"real":    realUnary(func(c complex128) float64 { return real(c) }),
	"imag":    realUnary(func(c complex128) float64 { return imag(c) }),
	"floor":   realUnary(func(c complex128) float64 { return math.Floor(real(c)) }),
	"ceil":    realUnary(func(c complex128) float64 { return math.Ceil(real(c)) }),
	"round":   realUnary(func(c complex128) float64 { return math.RoundToEven(real(c)) }),
	"arctan2": binary(func(y, x complex128) complex128 { return complex(math.Atan2(real(y), real(x)), 0) }, false),
	"min":     binary(func(x, y complex128) complex128 { return pick(real(x) <= real(y), x, y) }, true),
	"max":     binary(func(x, y complex128) complex128 { return pick(real(x) >= real(y), x, y) }, true),
	"array":   array,
	"dot":     dot,
	"vdot":    vdot,
	"cross":   cross,
	"norm":    norm,
}

// Builtins returns the sorted names of the builtin functions and constants
func Builtins() []string {
	names := make([]string, 0, len(builtins)+len(constants))
	for n := range builtins {
		names = append(names, n)
	}
	for n := range constants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is a builtin function or constant
func IsBuiltin(name string) bool {
	_, okF := builtins[name]
	_, okC := constants[name]
	return okF || okC
}

func arity(n int, args []value.Value) error {
	if len(args) != n {
		return fmt.Errorf("takes %d arguments, got %d", n, len(args))
	}
	return nil
}

func unary(re func(float64) float64, c func(complex128) complex128) Func {
	return func(args ...value.Value) (value.Value, error) {
		if err := arity(1, args); err != nil {
			return value.Value{}, err
		}
		return value.MapFunc(args[0], re, c), nil
	}
}

func realUnary(fn func(complex128) float64) Func {
	return func(args ...value.Value) (value.Value, error) {
		if err := arity(1, args); err != nil {
			return value.Value{}, err
		}
		return value.MapReal(args[0], fn), nil
	}
}

func binary(op value.BinaryOp, keepComplex bool) Func {
	return func(args ...value.Value) (value.Value, error) {
		if err := arity(2, args); err != nil {
			return value.Value{}, err
		}
		v, err := value.Apply(op, args[0], args[1])
		if err != nil {
			return value.Value{}, err
		}
		v.Complex = keepComplex && v.Complex
		return v, nil
	}
}

func pick(first bool, x, y complex128) complex128 {
	if first {
		return x
	}
	return y
}

func array(args ...value.Value) (value.Value, error) {
	if len(args) == 1 && !args[0].IsScalar() {
		return args[0].Clone(), nil
	}
	return value.Stack(args)
}

// sumRows reduces every row to the sum of its elements
func sumRows(v value.Value) value.Value {
	out := value.Zeros(v.Rows, nil)
	out.Complex = v.Complex
	n := v.Size()
	for r := 0; r < v.NumRows(); r++ {
		var s complex128
		for _, c := range v.Data[r*n : (r+1)*n] {
			s += c
		}
		out.Data[r] = s
	}
	return out
}

func dot(args ...value.Value) (value.Value, error) {
	if err := arity(2, args); err != nil {
		return value.Value{}, err
	}
	p, err := value.Apply(value.Mul, args[0], args[1])
	if err != nil {
		return value.Value{}, err
	}
	return sumRows(p), nil
}

func vdot(args ...value.Value) (value.Value, error) {
	if err := arity(2, args); err != nil {
		return value.Value{}, err
	}
	return dot(value.Map(args[0], cmplx.Conj), args[1])
}

func norm(args ...value.Value) (value.Value, error) {
	if err := arity(1, args); err != nil {
		return value.Value{}, err
	}
	n := args[0].Norm()
	if args[0].IsBatched() {
		return value.Column(n), nil
	}
	return value.Scalar(n[0]), nil
}

// cross is the 3-D cross product, or the scalar z component for 2-D vectors
func cross(args ...value.Value) (value.Value, error) {
	if err := arity(2, args); err != nil {
		return value.Value{}, err
	}
	a, err := value.Apply(func(x, _ complex128) complex128 { return x }, args[0], args[1])
	if err != nil {
		return value.Value{}, err
	}
	b, err := value.Apply(func(_, y complex128) complex128 { return y }, args[0], args[1])
	if err != nil {
		return value.Value{}, err
	}
	if len(a.Shape) != 1 || (a.Shape[0] != 2 && a.Shape[0] != 3) {
		return value.Value{}, fmt.Errorf("%w: cross needs 2 or 3 component vectors, got %v", value.ErrShape, a.Shape)
	}
	d := a.Shape[0]
	var out value.Value
	if d == 2 {
		out = value.Zeros(a.Rows, nil)
	} else {
		out = value.Zeros(a.Rows, []int{3})
	}
	out.Complex = a.Complex
	for r := 0; r < a.NumRows(); r++ {
		x, y := a.Data[r*d:(r+1)*d], b.Data[r*d:(r+1)*d]
		if d == 2 {
			out.Data[r] = x[0]*y[1] - x[1]*y[0]
			continue
		}
		o := out.Data[r*3 : (r+1)*3]
		o[0] = x[1]*y[2] - x[2]*y[1]
		o[1] = x[2]*y[0] - x[0]*y[2]
		o[2] = x[0]*y[1] - x[1]*y[0]
	}
	return out, nil
}
