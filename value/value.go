package value

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// ErrShape is returned when two shapes cannot be broadcast together
var ErrShape = errors.New("shape mismatch")

// Value is a scalar or fixed-shape array of real or complex numbers. A
// batched Value carries Rows independent entries of the same per-row Shape,
// one per mesh vertex in nodal evaluations. Data is row-major,
// [Rows × prod(Shape)] when batched.
type Value struct {
	Shape   []int // per-row shape, empty for a scalar
	Data    []complex128
	Complex bool
	Rows    int // 0 for an unbatched value
}

// Scalar returns a real scalar
func Scalar(f float64) Value {
	return Value{Data: []complex128{complex(f, 0)}}
}

// ComplexScalar returns a complex scalar
func ComplexScalar(c complex128) Value {
	return Value{Data: []complex128{c}, Complex: true}
}

// Vector returns a real 1-D array
func Vector(vs ...float64) Value {
	v := Value{Shape: []int{len(vs)}, Data: make([]complex128, len(vs))}
	for i, f := range vs {
		v.Data[i] = complex(f, 0)
	}
	return v
}

// New returns an unbatched value of the given shape using data directly
func New(shape []int, data []complex128, isComplex bool) Value {
	return Value{Shape: shape, Data: data, Complex: isComplex}
}

// Batched returns a batched value using data directly
func Batched(rows int, shape []int, data []complex128, isComplex bool) Value {
	return Value{Shape: shape, Data: data, Complex: isComplex, Rows: rows}
}

// Zeros returns a real zero value. rows == 0 gives an unbatched value.
func Zeros(rows int, shape []int) Value {
	n := size(shape)
	if rows > 0 {
		n *= rows
	}
	return Value{Shape: append([]int(nil), shape...), Data: make([]complex128, n), Rows: rows}
}

// Column returns a batched real scalar value, one row per entry of col
func Column(col []float64) Value {
	v := Value{Data: make([]complex128, len(col)), Rows: len(col)}
	for i, f := range col {
		v.Data[i] = complex(f, 0)
	}
	return v
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Size is the number of elements in one row
func (v Value) Size() int { return size(v.Shape) }

// NumRows is the number of rows, 1 for an unbatched value
func (v Value) NumRows() int {
	if v.Rows == 0 {
		return 1
	}
	return v.Rows
}

func (v Value) IsScalar() bool  { return len(v.Shape) == 0 }
func (v Value) IsBatched() bool { return v.Rows > 0 }

// Row returns row r of a batched value as an unbatched view sharing Data
func (v Value) Row(r int) Value {
	if v.Rows == 0 {
		return v
	}
	n := v.Size()
	return Value{Shape: v.Shape, Data: v.Data[r*n : (r+1)*n : (r+1)*n], Complex: v.Complex}
}

// Real returns the real part of the first element
func (v Value) Real() float64 {
	if len(v.Data) == 0 {
		return 0
	}
	return real(v.Data[0])
}

// Float64s returns the real parts of Data
func (v Value) Float64s() []float64 {
	out := make([]float64, len(v.Data))
	for i, c := range v.Data {
		out[i] = real(c)
	}
	return out
}

// Clone returns a deep copy
func (v Value) Clone() Value {
	return Value{
		Shape:   append([]int(nil), v.Shape...),
		Data:    append([]complex128(nil), v.Data...),
		Complex: v.Complex,
		Rows:    v.Rows,
	}
}

// SameShape reports whether the per-row shapes of v and o are equal
func (v Value) SameShape(o Value) bool {
	if len(v.Shape) != len(o.Shape) {
		return false
	}
	for i := range v.Shape {
		if v.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Truth reports whether every element is nonzero
func (v Value) Truth() bool {
	for _, c := range v.Data {
		if c == 0 {
			return false
		}
	}
	return len(v.Data) > 0
}

// HasNaN reports whether any element has a NaN component
func (v Value) HasNaN() bool {
	for _, c := range v.Data {
		if cmplx.IsNaN(c) {
			return true
		}
	}
	return false
}

func (v Value) String() string {
	var sb strings.Builder
	format := func(c complex128) string {
		if v.Complex {
			return fmt.Sprintf("%g", c)
		}
		return fmt.Sprintf("%g", real(c))
	}
	n := v.Size()
	for r := 0; r < v.NumRows(); r++ {
		if r > 0 {
			sb.WriteString("\n")
		}
		row := v.Data[r*n : (r+1)*n]
		if v.IsScalar() {
			sb.WriteString(format(row[0]))
			continue
		}
		sb.WriteString("[")
		for i, c := range row {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(format(c))
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// Norm returns the Euclidean norm of each row
func (v Value) Norm() []float64 {
	n := v.Size()
	out := make([]float64, v.NumRows())
	for r := range out {
		var s float64
		for _, c := range v.Data[r*n : (r+1)*n] {
			a := cmplx.Abs(c)
			s += a * a
		}
		out[r] = math.Sqrt(s)
	}
	return out
}
