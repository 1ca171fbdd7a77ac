package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Transformation maps reference coordinates of one mesh entity (element or
// boundary face) to physical space
type Transformation interface {
	// ElementID is the index of the entity in its mesh list
	ElementID() int
	// Attribute is the subdomain (or boundary) identifier of the entity
	Attribute() int
	Geometry() Geometry
	SpaceDimension() int
	// Transform writes the physical position of ip into dst (grown as needed)
	Transform(ip IntPoint, dst []float64) []float64
	// Jacobian returns ∂x/∂ξ at ip as an [sdim × dim] matrix
	Jacobian(ip IntPoint) mat.Matrix
}

// AffineTransform is the linear map of a straight-sided simplex:
//
//	x(ξ) = x0 + Σ_i (x_i - x0) ξ_i
//
// Its Jacobian columns are the edge vectors from vertex 0 and are constant.
type AffineTransform struct {
	id, attr int
	geom     Geometry
	x0       []float64
	jac      *mat.Dense // [sdim × dim]
}

// NewAffineTransform builds the affine map from the physical coordinates of
// the element vertices, listed in reference vertex order
func NewAffineTransform(id, attr int, geom Geometry, verts [][]float64) (*AffineTransform, error) {
	if len(verts) != geom.NumVertices() {
		return nil, fmt.Errorf("%v needs %d vertices, got %d", geom, geom.NumVertices(), len(verts))
	}
	sdim := len(verts[0])
	dim := int(geom.Dimensions())
	if dim > sdim {
		return nil, fmt.Errorf("%v cannot be embedded in %d dimensions", geom, sdim)
	}
	at := &AffineTransform{
		id:   id,
		attr: attr,
		geom: geom,
		x0:   append([]float64(nil), verts[0]...),
	}
	if dim > 0 {
		at.jac = mat.NewDense(sdim, dim, nil)
		for j := 0; j < dim; j++ {
			if len(verts[j+1]) != sdim {
				return nil, fmt.Errorf("vertex %d has %d coordinates, expected %d", j+1, len(verts[j+1]), sdim)
			}
			for i := 0; i < sdim; i++ {
				at.jac.Set(i, j, verts[j+1][i]-verts[0][i])
			}
		}
	}
	return at, nil
}

func (at *AffineTransform) ElementID() int      { return at.id }
func (at *AffineTransform) Attribute() int      { return at.attr }
func (at *AffineTransform) Geometry() Geometry  { return at.geom }
func (at *AffineTransform) SpaceDimension() int { return len(at.x0) }

func (at *AffineTransform) Transform(ip IntPoint, dst []float64) []float64 {
	sdim := len(at.x0)
	if cap(dst) < sdim {
		dst = make([]float64, sdim)
	}
	dst = dst[:sdim]
	copy(dst, at.x0)
	if at.jac == nil {
		return dst
	}
	_, dim := at.jac.Dims()
	for i := 0; i < sdim; i++ {
		for j := 0; j < dim; j++ {
			dst[i] += at.jac.At(i, j) * ip.Coord(j)
		}
	}
	return dst
}

func (at *AffineTransform) Jacobian(_ IntPoint) mat.Matrix {
	if at.jac == nil {
		return nil
	}
	return at.jac
}

// Weight returns the measure scaling |J| (for sdim > dim, sqrt(det(JᵀJ)))
func (at *AffineTransform) Weight() float64 {
	if at.jac == nil {
		return 1
	}
	var jtj mat.Dense
	jtj.Mul(at.jac.T(), at.jac)
	return math.Sqrt(math.Abs(mat.Det(&jtj)))
}

// CalcOrtho computes the (non-unit) vector orthogonal to the columns of an
// [sdim × sdim-1] Jacobian. Its length is the surface measure scaling and its
// orientation follows the right hand rule on the columns.
func CalcOrtho(J mat.Matrix, dst []float64) ([]float64, error) {
	if J == nil {
		return nil, fmt.Errorf("no Jacobian for a point entity")
	}
	sdim, dim := J.Dims()
	if dim != sdim-1 {
		return nil, fmt.Errorf("CalcOrtho requires an [n × n-1] Jacobian, got [%d × %d]", sdim, dim)
	}
	if cap(dst) < sdim {
		dst = make([]float64, sdim)
	}
	dst = dst[:sdim]
	switch sdim {
	case 2:
		dst[0] = J.At(1, 0)
		dst[1] = -J.At(0, 0)
	case 3:
		dst[0] = J.At(1, 0)*J.At(2, 1) - J.At(2, 0)*J.At(1, 1)
		dst[1] = J.At(2, 0)*J.At(0, 1) - J.At(0, 0)*J.At(2, 1)
		dst[2] = J.At(0, 0)*J.At(1, 1) - J.At(1, 0)*J.At(0, 1)
	default:
		return nil, fmt.Errorf("CalcOrtho is not defined in %d dimensions", sdim)
	}
	return dst, nil
}

// UnitNormal returns the unit normal at ip of a boundary transformation
func UnitNormal(T Transformation, ip IntPoint, dst []float64) ([]float64, error) {
	n, err := CalcOrtho(T.Jacobian(ip), dst)
	if err != nil {
		return nil, err
	}
	floats.Scale(1/floats.Norm(n, 2), n)
	return n, nil
}

// PhysicalGradients returns the physical gradients of the linear shape
// functions as an [NVp × sdim] matrix, G·J⁺ where J⁺ is the inverse (or the
// pseudo-inverse (JᵀJ)⁻¹Jᵀ for embedded elements) of the Jacobian
func PhysicalGradients(T Transformation, ip IntPoint) (*mat.Dense, error) {
	G := ShapeGradients(T.Geometry())
	J := T.Jacobian(ip)
	if G == nil || J == nil {
		return nil, fmt.Errorf("no gradients for %v", T.Geometry())
	}
	sdim, dim := J.Dims()
	var pinv mat.Dense
	if sdim == dim {
		if err := pinv.Inverse(J); err != nil {
			return nil, fmt.Errorf("element %d: singular Jacobian: %w", T.ElementID(), err)
		}
	} else {
		var jtj, jtjInv mat.Dense
		jtj.Mul(J.T(), J)
		if err := jtjInv.Inverse(&jtj); err != nil {
			return nil, fmt.Errorf("element %d: degenerate Jacobian: %w", T.ElementID(), err)
		}
		pinv.Mul(&jtjInv, J.T())
	}
	var grad mat.Dense
	grad.Mul(G, &pinv)
	return &grad, nil
}
