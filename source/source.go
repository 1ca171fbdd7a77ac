// Package source holds finite-element solutions sampled by FE fields. Both
// sources in this package are linear on each simplex: Continuous stores one
// value per mesh vertex, Discontinuous one value per element vertex.
package source

import (
	"errors"
	"fmt"

	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/mesh"
)

// ErrNoData is returned when a source has no values for a request
var ErrNoData = errors.New("no solution data")

// Source is a finite-element solution on a mesh. Components are 1-indexed.
type Source interface {
	// VectorDim is the number of components, 1 for a scalar solution
	VectorDim() int
	// Value samples component comp at ip of the entity mapped by T
	Value(T element.Transformation, ip element.IntPoint, comp int) (float64, error)
	// ElementValues writes the native value of component comp at each local
	// vertex of element elem into dst, grown as needed
	ElementValues(elem, comp int, dst []float64) ([]float64, error)
}

// Deriver transforms a (real, imaginary) solution pair into another pair,
// e.g. its spatial derivative. im may be nil.
type Deriver interface {
	Derive(re, im Source) (Source, Source, error)
}

// DeriverFunc adapts a function to the Deriver interface
type DeriverFunc func(re, im Source) (Source, Source, error)

func (f DeriverFunc) Derive(re, im Source) (Source, Source, error) { return f(re, im) }

func checkComponent(comp, vdim int) error {
	if comp < 1 || comp > vdim {
		return fmt.Errorf("%w: component %d of a %d component solution", ErrNoData, comp, vdim)
	}
	return nil
}

// Continuous is a vertex based (P1) solution, dofs[v*vdim + c]
type Continuous struct {
	m     mesh.Accessor
	vdim  int
	dofs  []float64
	shape []float64
}

var _ Source = (*Continuous)(nil)

func NewContinuous(m mesh.Accessor, vdim int, dofs []float64) (*Continuous, error) {
	if vdim < 1 {
		return nil, fmt.Errorf("vector dimension must be ≥ 1, got %d", vdim)
	}
	if len(dofs) != m.NumVertices()*vdim {
		return nil, fmt.Errorf("%w: %d dofs for %d vertices × %d components",
			ErrNoData, len(dofs), m.NumVertices(), vdim)
	}
	return &Continuous{m: m, vdim: vdim, dofs: dofs}, nil
}

// Interpolate samples fn at every mesh vertex. fn writes vdim components
// into dst.
func Interpolate(m mesh.Accessor, vdim int, fn func(x, dst []float64) error) (*Continuous, error) {
	dofs := make([]float64, m.NumVertices()*vdim)
	for v := 0; v < m.NumVertices(); v++ {
		if err := fn(m.Vertex(v), dofs[v*vdim:(v+1)*vdim]); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", v, err)
		}
	}
	return NewContinuous(m, vdim, dofs)
}

func (c *Continuous) VectorDim() int { return c.vdim }

// DOFs returns the vertex values, not a copy
func (c *Continuous) DOFs() []float64 { return c.dofs }

// entityVertices resolves T to either a volume or a boundary element
func entityVertices(m mesh.Accessor, T element.Transformation) ([]int, error) {
	id := T.ElementID()
	if int(T.Geometry().Dimensions()) == m.Dimension() {
		if id < 0 || id >= m.NumElements() {
			return nil, fmt.Errorf("%w: element %d out of range", ErrNoData, id)
		}
		return m.ElementVertices(id), nil
	}
	if id < 0 || id >= m.NumBdrElements() {
		return nil, fmt.Errorf("%w: boundary element %d out of range", ErrNoData, id)
	}
	return m.BdrElementVertices(id), nil
}

func (c *Continuous) Value(T element.Transformation, ip element.IntPoint, comp int) (float64, error) {
	if err := checkComponent(comp, c.vdim); err != nil {
		return 0, err
	}
	verts, err := entityVertices(c.m, T)
	if err != nil {
		return 0, err
	}
	c.shape = element.Shape(T.Geometry(), ip, c.shape)
	var u float64
	for i, v := range verts {
		u += c.shape[i] * c.dofs[v*c.vdim+comp-1]
	}
	return u, nil
}

func (c *Continuous) ElementValues(elem, comp int, dst []float64) ([]float64, error) {
	if err := checkComponent(comp, c.vdim); err != nil {
		return nil, err
	}
	if elem < 0 || elem >= c.m.NumElements() {
		return nil, fmt.Errorf("%w: element %d out of range", ErrNoData, elem)
	}
	verts := c.m.ElementVertices(elem)
	dst = grow(dst, len(verts))
	for i, v := range verts {
		dst[i] = c.dofs[v*c.vdim+comp-1]
	}
	return dst, nil
}

// Discontinuous is an element local linear solution,
// values[(elem*NVp + local)*vdim + c]
type Discontinuous struct {
	m      mesh.Accessor
	vdim   int
	nvp    int
	values []float64
	shape  []float64
	vals   []float64
}

var _ Source = (*Discontinuous)(nil)

func NewDiscontinuous(m mesh.Accessor, vdim int, values []float64) (*Discontinuous, error) {
	if vdim < 1 {
		return nil, fmt.Errorf("vector dimension must be ≥ 1, got %d", vdim)
	}
	nvp := m.Dimension() + 1
	if len(values) != m.NumElements()*nvp*vdim {
		return nil, fmt.Errorf("%w: %d values for %d elements × %d vertices × %d components",
			ErrNoData, len(values), m.NumElements(), nvp, vdim)
	}
	return &Discontinuous{m: m, vdim: vdim, nvp: nvp, values: values}, nil
}

func (d *Discontinuous) VectorDim() int { return d.vdim }

func (d *Discontinuous) Value(T element.Transformation, ip element.IntPoint, comp int) (float64, error) {
	if err := checkComponent(comp, d.vdim); err != nil {
		return 0, err
	}
	if int(T.Geometry().Dimensions()) != d.m.Dimension() {
		return 0, fmt.Errorf("%w: element local solution sampled on a boundary element", ErrNoData)
	}
	var err error
	if d.vals, err = d.ElementValues(T.ElementID(), comp, d.vals); err != nil {
		return 0, err
	}
	d.shape = element.Shape(T.Geometry(), ip, d.shape)
	var u float64
	for i, f := range d.vals {
		u += d.shape[i] * f
	}
	return u, nil
}

func (d *Discontinuous) ElementValues(elem, comp int, dst []float64) ([]float64, error) {
	if err := checkComponent(comp, d.vdim); err != nil {
		return nil, err
	}
	if elem < 0 || elem >= d.m.NumElements() {
		return nil, fmt.Errorf("%w: element %d out of range", ErrNoData, elem)
	}
	dst = grow(dst, d.nvp)
	for i := 0; i < d.nvp; i++ {
		dst[i] = d.values[(elem*d.nvp+i)*d.vdim+comp-1]
	}
	return dst, nil
}

func grow(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}
