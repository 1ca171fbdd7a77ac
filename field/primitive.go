package field

import (
	"fmt"
	"math"

	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/expression"
	"github.com/notargets/DGField/nodal"
	"github.com/notargets/DGField/value"
)

// Constant is a field with the same value everywhere
type Constant struct {
	base
	v value.Value
}

var _ Field = (*Constant)(nil)

func NewConstant(v value.Value) *Constant {
	return &Constant{base: newBase(v.Complex), v: v}
}

// ConstantOf converts a Go number, slice or value.Value into a Constant
func ConstantOf(x any) (*Constant, error) {
	v, ok := expression.ToValue(x)
	if !ok {
		return nil, fmt.Errorf("cannot make a constant of %T", x)
	}
	return NewConstant(v), nil
}

func (c *Constant) String() string { return fmt.Sprintf("Constant(%v)", c.v) }

func (c *Constant) SetFrame(Frame) {}

func (c *Constant) Evaluate() (value.Value, error) { return c.v, nil }

// Nodal is the constant on every vertex touched by an active element
func (c *Constant) Nodal(ctx *NodalContext) (value.Value, error) {
	return value.ScaleRows(c.v, ctx.Table.ActiveMask())
}

// Coordinate is the physical position, or one 1-indexed component of it
type Coordinate struct {
	base
	comp     int
	fr       Frame
	hasFrame bool
	pos      []float64
}

var _ Field = (*Coordinate)(nil)

// NewCoordinate returns component comp of the position; comp 0 is the full
// position vector
func NewCoordinate(comp int) *Coordinate {
	return &Coordinate{base: newBase(false), comp: comp}
}

func (c *Coordinate) String() string {
	if c.comp == 0 {
		return "Coordinates"
	}
	return fmt.Sprintf("Coordinate(%d)", c.comp)
}

func (c *Coordinate) SetFrame(fr Frame) { c.fr, c.hasFrame = fr, true }

func (c *Coordinate) Evaluate() (value.Value, error) {
	if !c.hasFrame {
		return value.Value{}, ErrNoFrame
	}
	var err error
	if c.pos, err = c.fr.Position(c.pos); err != nil {
		return value.Value{}, err
	}
	if c.comp == 0 {
		return value.Vector(c.pos...), nil
	}
	if c.comp > len(c.pos) {
		return value.Value{}, fmt.Errorf("coordinate %d of a %d-D point", c.comp, len(c.pos))
	}
	return value.Scalar(c.pos[c.comp-1]), nil
}

// Nodal returns the table vertex coordinates directly
func (c *Coordinate) Nodal(ctx *NodalContext) (value.Value, error) {
	coords := ctx.Table.Coordinates()
	if c.comp == 0 {
		return coords, nil
	}
	if c.comp > coords.Size() {
		return value.Value{}, fmt.Errorf("coordinate %d of %d-D vertices", c.comp, coords.Size())
	}
	return value.Index(coords, c.comp-1)
}

// Normal is the outward unit normal of a boundary element, or one
// 1-indexed component of it
type Normal struct {
	base
	comp     int
	fr       Frame
	hasFrame bool
	n        []float64
}

var _ Field = (*Normal)(nil)

func NewNormal(comp int) *Normal {
	return &Normal{base: newBase(false), comp: comp}
}

func (n *Normal) String() string {
	if n.comp == 0 {
		return "SurfaceNormal"
	}
	return fmt.Sprintf("SurfaceNormal(%d)", n.comp)
}

func (n *Normal) SetFrame(fr Frame) { n.fr, n.hasFrame = fr, true }

func (n *Normal) Evaluate() (value.Value, error) {
	if !n.hasFrame || n.fr.Transform == nil {
		return value.Value{}, ErrNoFrame
	}
	var err error
	if n.n, err = element.UnitNormal(n.fr.Transform, n.fr.Point, n.n); err != nil {
		return value.Value{}, fmt.Errorf("normal of entity %d: %w", n.fr.Transform.ElementID(), err)
	}
	return n.pick(value.Vector(n.n...))
}

func (n *Normal) pick(v value.Value) (value.Value, error) {
	if n.comp == 0 {
		return v, nil
	}
	return value.Index(v, n.comp-1)
}

// Nodal accumulates the non-unit normal of every selected boundary element
// at its vertices and renormalizes. Vertices whose contributions cancel
// are NaN.
func (n *Normal) Nodal(ctx *NodalContext) (value.Value, error) {
	nodals, err := vertexNormals(ctx)
	if err != nil {
		return value.Value{}, err
	}
	return n.pick(nodals)
}

func vertexNormals(ctx *NodalContext) (value.Value, error) {
	t := ctx.Table
	if !t.IsBoundary() {
		return value.Value{}, ErrNeedsBoundary
	}
	sdim := ctx.Mesh.SpaceDimension()
	acc := make([]float64, t.NumVertices()*sdim)
	var nor []float64
	for i, b := range t.BdrElements {
		T := ctx.Mesh.BdrTransformation(b)
		for slot, ip := range element.ReferenceVertices(T.Geometry()) {
			var err error
			if nor, err = element.CalcOrtho(T.Jacobian(ip), nor); err != nil {
				return value.Value{}, fmt.Errorf("boundary element %d: %w", b, err)
			}
			idx := t.Inverse[i][slot]
			for d, x := range nor {
				acc[idx*sdim+d] += x
			}
		}
	}
	out := value.Zeros(t.NumVertices(), []int{sdim})
	for r := 0; r < t.NumVertices(); r++ {
		row := acc[r*sdim : (r+1)*sdim]
		var s float64
		for _, x := range row {
			s += x * x
		}
		s = math.Sqrt(s)
		for d, x := range row {
			out.Data[r*sdim+d] = complex(x/s, 0)
		}
	}
	return out, nil
}

// PointFunc is a user function of position and time
type PointFunc func(x []float64, t float64) (value.Value, error)

// Func is a field computed by a Go function of position
type Func struct {
	base
	fn       PointFunc
	fr       Frame
	hasFrame bool
	pos      []float64
}

var _ Field = (*Func)(nil)

func NewFunc(fn PointFunc, opts ...Option) *Func {
	o := applyOptions(opts)
	f := &Func{base: newBase(o.isComplex), fn: fn}
	if o.shape != nil {
		f.shape, f.shapeSet = o.shape, true
	}
	return f
}

func (f *Func) String() string { return "Func" }

func (f *Func) SetFrame(fr Frame) { f.fr, f.hasFrame = fr, true }

func (f *Func) Evaluate() (value.Value, error) {
	if !f.hasFrame {
		return value.Value{}, ErrNoFrame
	}
	var err error
	if f.pos, err = f.fr.Position(f.pos); err != nil {
		return value.Value{}, err
	}
	v, err := f.fn(f.pos, f.fr.Time)
	if err != nil {
		return value.Value{}, err
	}
	return f.fix(v)
}

// Nodal averages fn at the vertices of the active incident elements
func (f *Func) Nodal(ctx *NodalContext) (value.Value, error) {
	var (
		t       = ctx.Table
		nv      = t.NumVertices()
		weights = make([]float64, nv)
		acc     value.Value
		started bool
	)
	for k, elem := range t.Elements {
		if elem == nodal.Inactive {
			continue
		}
		for _, ev := range t.ElemVerts[k] {
			v, err := f.fn(t.Location(ev.Index), ctx.Time)
			if err != nil {
				return value.Value{}, fmt.Errorf("element %d: %w", elem, err)
			}
			if v, err = f.fix(v); err != nil {
				return value.Value{}, err
			}
			if !started {
				acc, started = f.zero(nv), true
			}
			acc.Complex = acc.Complex || v.Complex
			n := acc.Size()
			for i, c := range v.Data {
				acc.Data[ev.Index*n+i] += c
			}
			weights[ev.Index]++
		}
	}
	if !started {
		return f.zero(nv), nil
	}
	for i, w := range weights {
		if w == 0 {
			weights[i] = 1
		}
	}
	return value.DivideRows(acc, weights)
}
