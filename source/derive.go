package source

import (
	"fmt"

	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/mesh"
)

// Gradient derives the element-wise constant gradient of a scalar solution.
// The result is a Discontinuous source with SpaceDimension components.
type Gradient struct {
	Mesh mesh.Accessor
}

var _ Deriver = Gradient{}

func (g Gradient) Derive(re, im Source) (Source, Source, error) {
	dre, err := g.derive(re)
	if err != nil {
		return nil, nil, fmt.Errorf("real part: %w", err)
	}
	if im == nil {
		return dre, nil, nil
	}
	dim, err := g.derive(im)
	if err != nil {
		return nil, nil, fmt.Errorf("imaginary part: %w", err)
	}
	return dre, dim, nil
}

func (g Gradient) derive(s Source) (*Discontinuous, error) {
	if s.VectorDim() != 1 {
		return nil, fmt.Errorf("gradient of a %d component solution", s.VectorDim())
	}
	var (
		m    = g.Mesh
		sdim = m.SpaceDimension()
		nvp  = m.Dimension() + 1
		out  = make([]float64, m.NumElements()*nvp*sdim)
		u    []float64
		err  error
	)
	for k := 0; k < m.NumElements(); k++ {
		if u, err = s.ElementValues(k, 1, u); err != nil {
			return nil, err
		}
		T := m.ElementTransformation(k)
		G, err := element.PhysicalGradients(T, element.Centroid(T.Geometry()))
		if err != nil {
			return nil, err
		}
		for d := 0; d < sdim; d++ {
			var du float64
			for i := 0; i < nvp; i++ {
				du += u[i] * G.At(i, d)
			}
			for i := 0; i < nvp; i++ {
				out[(k*nvp+i)*sdim+d] = du
			}
		}
	}
	return NewDiscontinuous(m, sdim, out)
}

// Scaled multiplies every component of a solution by Factor
type Scaled struct {
	Mesh   mesh.Accessor
	Factor float64
}

var _ Deriver = Scaled{}

func (sc Scaled) Derive(re, im Source) (Source, Source, error) {
	scale := func(s Source) (Source, error) {
		vdim := s.VectorDim()
		nvp := sc.Mesh.Dimension() + 1
		out := make([]float64, sc.Mesh.NumElements()*nvp*vdim)
		var vals []float64
		var err error
		for k := 0; k < sc.Mesh.NumElements(); k++ {
			for c := 1; c <= vdim; c++ {
				if vals, err = s.ElementValues(k, c, vals); err != nil {
					return nil, err
				}
				for i, f := range vals {
					out[(k*nvp+i)*vdim+c-1] = sc.Factor * f
				}
			}
		}
		return NewDiscontinuous(sc.Mesh, vdim, out)
	}
	dre, err := scale(re)
	if err != nil {
		return nil, nil, err
	}
	if im == nil {
		return dre, nil, nil
	}
	dim, err := scale(im)
	return dre, dim, err
}
