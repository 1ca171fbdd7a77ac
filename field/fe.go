package field

import (
	"fmt"

	"github.com/notargets/DGField/nodal"
	"github.com/notargets/DGField/source"
	"github.com/notargets/DGField/value"
)

// FEField samples a finite-element solution, real + i·imaginary when an
// imaginary part is given
type FEField struct {
	base
	re, im  source.Source
	comp    int
	deriver source.Deriver

	// derived pair, computed on first use
	derived   bool
	deriveErr error
	dre, dim  source.Source

	fr          Frame
	hasFrame    bool
	vals, ivals []float64
}

var _ Field = (*FEField)(nil)

// FEOption configures an FEField
type FEOption func(*FEField)

// WithImaginary sets the imaginary part of the solution
func WithImaginary(im source.Source) FEOption {
	return func(f *FEField) {
		f.im = im
		f.isComplex = im != nil
	}
}

// WithComponent selects one 1-indexed component; 0 keeps every component
func WithComponent(comp int) FEOption {
	return func(f *FEField) { f.comp = comp }
}

// WithDeriver replaces the solution pair by its derived pair on first use
func WithDeriver(d source.Deriver) FEOption {
	return func(f *FEField) { f.deriver = d }
}

func NewFEField(re source.Source, opts ...FEOption) *FEField {
	f := &FEField{base: newBase(false), re: re}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FEField) String() string {
	if f.comp == 0 {
		return "GridFunction (Vector)"
	}
	return fmt.Sprintf("GridFunction (Scalar %d)", f.comp)
}

// sources applies the deriver once and caches the result
func (f *FEField) sources() (source.Source, source.Source, error) {
	if !f.derived {
		f.derived = true
		f.dre, f.dim = f.re, f.im
		if f.deriver != nil {
			f.dre, f.dim, f.deriveErr = f.deriver.Derive(f.re, f.im)
		}
	}
	return f.dre, f.dim, f.deriveErr
}

// components lists the 1-indexed components the field returns
func (f *FEField) components(re source.Source) ([]int, error) {
	vdim := re.VectorDim()
	if f.comp > 0 {
		if f.comp > vdim {
			return nil, fmt.Errorf("%w: component %d of a %d component solution", source.ErrNoData, f.comp, vdim)
		}
		return []int{f.comp}, nil
	}
	comps := make([]int, vdim)
	for i := range comps {
		comps[i] = i + 1
	}
	return comps, nil
}

// scalar reports whether a single component is returned as a scalar
func (f *FEField) scalar(re source.Source) bool {
	return f.comp > 0 || re.VectorDim() == 1
}

func (f *FEField) SetFrame(fr Frame) { f.fr, f.hasFrame = fr, true }

func (f *FEField) Evaluate() (value.Value, error) {
	if !f.hasFrame || f.fr.Transform == nil {
		return value.Value{}, ErrNoFrame
	}
	re, im, err := f.sources()
	if err != nil {
		return value.Value{}, err
	}
	comps, err := f.components(re)
	if err != nil {
		return value.Value{}, err
	}
	data := make([]complex128, len(comps))
	for i, c := range comps {
		u, err := re.Value(f.fr.Transform, f.fr.Point, c)
		if err != nil {
			return value.Value{}, err
		}
		data[i] = complex(u, 0)
		if im != nil {
			ui, err := im.Value(f.fr.Transform, f.fr.Point, c)
			if err != nil {
				return value.Value{}, err
			}
			data[i] += complex(0, ui)
		}
	}
	v := value.New([]int{len(comps)}, data, im != nil)
	if f.scalar(re) {
		v.Shape = nil
	}
	return f.fix(v)
}

// Nodal sums the per-vertex dofs of the active incident elements and
// divides by the vertex weight (one where the weight is zero)
func (f *FEField) Nodal(ctx *NodalContext) (value.Value, error) {
	re, im, err := f.sources()
	if err != nil {
		return value.Value{}, err
	}
	comps, err := f.components(re)
	if err != nil {
		return value.Value{}, err
	}
	t := ctx.Table
	nv, nc := t.NumVertices(), len(comps)
	out := value.Zeros(nv, []int{nc})
	out.Complex = im != nil
	for k, elem := range t.Elements {
		if elem == nodal.Inactive {
			continue
		}
		for i, c := range comps {
			if f.vals, err = re.ElementValues(elem, c, f.vals); err != nil {
				return value.Value{}, err
			}
			if im != nil {
				if f.ivals, err = im.ElementValues(elem, c, f.ivals); err != nil {
					return value.Value{}, err
				}
			}
			for _, ev := range t.ElemVerts[k] {
				u := complex(f.vals[ev.Slot], 0)
				if im != nil {
					u += complex(0, f.ivals[ev.Slot])
				}
				out.Data[ev.Index*nc+i] += u
			}
		}
	}
	if f.scalar(re) {
		out.Shape = nil
	}
	if out, err = value.DivideRows(out, t.Divisor()); err != nil {
		return value.Value{}, err
	}
	return f.fix(out)
}
