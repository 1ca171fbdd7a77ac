package value

import (
	"fmt"
)

// BinaryOp combines two elements
type BinaryOp func(x, y complex128) complex128

// BroadcastShapes aligns a and b on their trailing dimensions. Each aligned
// pair of dimensions must match or one of them must be 1.
func BroadcastShapes(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 1; i <= n; i++ {
		da, db := 1, 1
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db, db == 1:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		default:
			return nil, fmt.Errorf("%w: cannot broadcast %v with %v", ErrShape, a, b)
		}
	}
	return out, nil
}

func broadcastRows(a, b int) (int, error) {
	switch {
	case a == b, b == 0:
		return a, nil
	case a == 0:
		return b, nil
	}
	return 0, fmt.Errorf("%w: %d rows against %d rows", ErrShape, a, b)
}

// sourceIndex maps every element of outShape to the element of shape it is
// broadcast from
func sourceIndex(shape, outShape []int) []int {
	n := size(outShape)
	idx := make([]int, n)
	pad := len(outShape) - len(shape)
	strides := make([]int, len(outShape))
	stride := 1
	for i := len(outShape) - 1; i >= pad; i-- {
		if shape[i-pad] != 1 {
			strides[i] = stride
		}
		stride *= shape[i-pad]
	}
	counter := make([]int, len(outShape))
	for k := 0; k < n; k++ {
		var s int
		for i, c := range counter {
			s += c * strides[i]
		}
		idx[k] = s
		for i := len(counter) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] < outShape[i] {
				break
			}
			counter[i] = 0
		}
	}
	return idx
}

// Broadcast expands v to rows (0 keeps v unbatched) and the per-row shape
func (v Value) Broadcast(rows int, shape []int) (Value, error) {
	outShape, err := BroadcastShapes(v.Shape, shape)
	if err != nil {
		return Value{}, err
	}
	if len(outShape) != len(shape) {
		return Value{}, fmt.Errorf("%w: %v does not fit in %v", ErrShape, v.Shape, shape)
	}
	for i := range shape {
		if outShape[i] != shape[i] {
			return Value{}, fmt.Errorf("%w: %v does not fit in %v", ErrShape, v.Shape, shape)
		}
	}
	if v.Rows > 0 && v.Rows != rows {
		return Value{}, fmt.Errorf("%w: %d rows do not fit in %d", ErrShape, v.Rows, rows)
	}
	out := Zeros(rows, shape)
	out.Complex = v.Complex
	idx := sourceIndex(v.Shape, shape)
	n, m := len(idx), v.Size()
	for r := 0; r < out.NumRows(); r++ {
		src := v.Data
		if v.Rows > 0 {
			src = v.Data[r*m : (r+1)*m]
		}
		for k, s := range idx {
			out.Data[r*n+k] = src[s]
		}
	}
	return out, nil
}

// Apply combines a and b elementwise after broadcasting rows and per-row
// shapes. The result is complex if either operand is.
func Apply(op BinaryOp, a, b Value) (Value, error) {
	rows, err := broadcastRows(a.Rows, b.Rows)
	if err != nil {
		return Value{}, err
	}
	shape, err := BroadcastShapes(a.Shape, b.Shape)
	if err != nil {
		return Value{}, err
	}
	out := Zeros(rows, shape)
	out.Complex = a.Complex || b.Complex
	n, na, nb := size(shape), a.Size(), b.Size()

	// scalars and equal shapes need no index map
	var ia, ib []int
	if !(na == n && a.SameShape(out)) && na != 1 {
		ia = sourceIndex(a.Shape, shape)
	}
	if !(nb == n && b.SameShape(out)) && nb != 1 {
		ib = sourceIndex(b.Shape, shape)
	}
	at := func(v Value, idx []int, nv, r, k int) complex128 {
		off := 0
		if v.Rows > 0 {
			off = r * nv
		}
		switch {
		case nv == 1:
			return v.Data[off]
		case idx == nil:
			return v.Data[off+k]
		default:
			return v.Data[off+idx[k]]
		}
	}
	for r := 0; r < out.NumRows(); r++ {
		for k := 0; k < n; k++ {
			out.Data[r*n+k] = op(at(a, ia, na, r, k), at(b, ib, nb, r, k))
		}
	}
	return out, nil
}

// Map applies fn to every element, keeping the complex flag
func Map(v Value, fn func(complex128) complex128) Value {
	out := v.Clone()
	for i, c := range out.Data {
		out.Data[i] = fn(c)
	}
	return out
}

// MapFunc applies re to real values and c to complex values
func MapFunc(v Value, re func(float64) float64, c func(complex128) complex128) Value {
	if v.Complex || re == nil {
		return Map(v, c)
	}
	out := v.Clone()
	for i, z := range out.Data {
		out.Data[i] = complex(re(real(z)), 0)
	}
	return out
}

// MapReal applies fn to every element; the result is real
func MapReal(v Value, fn func(complex128) float64) Value {
	out := v.Clone()
	out.Complex = false
	for i, c := range out.Data {
		out.Data[i] = complex(fn(c), 0)
	}
	return out
}

// Join assembles unbatched per-row values into one batched value. Rows
// whose shapes differ are broadcast to the common shape first.
func Join(rows []Value) (Value, error) {
	if len(rows) == 0 {
		return Value{}, nil
	}
	shape := rows[0].Shape
	isComplex := false
	for i, r := range rows {
		if r.Rows > 1 {
			return Value{}, fmt.Errorf("%w: row %d is itself batched", ErrShape, i)
		}
		var err error
		if shape, err = BroadcastShapes(shape, r.Shape); err != nil {
			return Value{}, fmt.Errorf("row %d: %w", i, err)
		}
		isComplex = isComplex || r.Complex
	}
	out := Zeros(len(rows), shape)
	out.Complex = isComplex
	n := size(shape)
	for i, r := range rows {
		r.Rows = 0
		if !r.SameShape(out) {
			var err error
			if r, err = r.Broadcast(0, shape); err != nil {
				return Value{}, fmt.Errorf("row %d: %w", i, err)
			}
		}
		copy(out.Data[i*n:(i+1)*n], r.Data)
	}
	return out, nil
}

// Stack places items along a new leading per-row axis. Items are broadcast
// to common rows and shape.
func Stack(items []Value) (Value, error) {
	if len(items) == 0 {
		return Value{Shape: []int{0}}, nil
	}
	rows, shape := items[0].Rows, items[0].Shape
	isComplex := false
	for _, it := range items {
		var err error
		if rows, err = broadcastRows(rows, it.Rows); err != nil {
			return Value{}, err
		}
		if shape, err = BroadcastShapes(shape, it.Shape); err != nil {
			return Value{}, err
		}
		isComplex = isComplex || it.Complex
	}
	outShape := append([]int{len(items)}, shape...)
	out := Zeros(rows, outShape)
	out.Complex = isComplex
	m := size(shape)
	for k, it := range items {
		b, err := it.Broadcast(rows, shape)
		if err != nil {
			return Value{}, err
		}
		for r := 0; r < out.NumRows(); r++ {
			copy(out.Data[(r*len(items)+k)*m:(r*len(items)+k+1)*m], b.Data[r*m:(r+1)*m])
		}
	}
	return out, nil
}

// Index selects entry i along the leading per-row axis. Negative indices
// count from the end.
func Index(v Value, i int) (Value, error) {
	if v.IsScalar() {
		return Value{}, fmt.Errorf("%w: cannot index a scalar", ErrShape)
	}
	d := v.Shape[0]
	if i < 0 {
		i += d
	}
	if i < 0 || i >= d {
		return Value{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrShape, i, d)
	}
	inner := append([]int(nil), v.Shape[1:]...)
	m := size(inner)
	out := Zeros(v.Rows, inner)
	out.Complex = v.Complex
	for r := 0; r < out.NumRows(); r++ {
		copy(out.Data[r*m:(r+1)*m], v.Data[(r*d+i)*m:(r*d+i+1)*m])
	}
	return out, nil
}

// Where selects a where cond is nonzero and b elsewhere. The branch not
// taken is never combined, so Inf or NaN there does not reach the result.
func Where(cond, a, b Value) (Value, error) {
	rows, err := broadcastRows(cond.Rows, a.Rows)
	if err != nil {
		return Value{}, err
	}
	if rows, err = broadcastRows(rows, b.Rows); err != nil {
		return Value{}, err
	}
	shape, err := BroadcastShapes(cond.Shape, a.Shape)
	if err != nil {
		return Value{}, err
	}
	if shape, err = BroadcastShapes(shape, b.Shape); err != nil {
		return Value{}, err
	}
	cb, err := cond.Broadcast(rows, shape)
	if err != nil {
		return Value{}, err
	}
	ab, err := a.Broadcast(rows, shape)
	if err != nil {
		return Value{}, err
	}
	bb, err := b.Broadcast(rows, shape)
	if err != nil {
		return Value{}, err
	}
	out := Zeros(rows, shape)
	out.Complex = a.Complex || b.Complex
	for k, c := range cb.Data {
		if c != 0 {
			out.Data[k] = ab.Data[k]
		} else {
			out.Data[k] = bb.Data[k]
		}
	}
	return out, nil
}

// ScaleRows multiplies row r of a batched value by w[r]
func ScaleRows(v Value, w []float64) (Value, error) {
	if v.NumRows() != len(w) && v.Rows != 0 {
		return Value{}, fmt.Errorf("%w: %d weights for %d rows", ErrShape, len(w), v.Rows)
	}
	out, err := v.Broadcast(len(w), v.Shape)
	if err != nil {
		return Value{}, err
	}
	n := out.Size()
	for r, f := range w {
		for k := r * n; k < (r+1)*n; k++ {
			out.Data[k] *= complex(f, 0)
		}
	}
	return out, nil
}

// DivideRows divides row r by w[r] where w[r] > 0; other rows are unchanged
func DivideRows(v Value, w []float64) (Value, error) {
	if v.Rows != len(w) {
		return Value{}, fmt.Errorf("%w: %d weights for %d rows", ErrShape, len(w), v.Rows)
	}
	out := v.Clone()
	n := out.Size()
	for r, f := range w {
		if f <= 0 {
			continue
		}
		for k := r * n; k < (r+1)*n; k++ {
			out.Data[k] /= complex(f, 0)
		}
	}
	return out, nil
}

// Add, Sub, Mul and Div are the arithmetic BinaryOps
func Add(x, y complex128) complex128 { return x + y }
func Sub(x, y complex128) complex128 { return x - y }
func Mul(x, y complex128) complex128 { return x * y }
func Div(x, y complex128) complex128 {
	if imag(x) == 0 && imag(y) == 0 {
		return complex(real(x)/real(y), 0)
	}
	return x / y
}
