package element

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestJacobiGQ_Legendre(t *testing.T) {
	// 3 point Gauss-Legendre: ±sqrt(3/5), 0 with weights 5/9, 8/9, 5/9
	x, w, err := JacobiGQ(0, 0, 2)
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{-math.Sqrt(0.6), 0, math.Sqrt(0.6)}, x, 1.e-12, "")
	assert.InDeltaSlicef(t, []float64{5. / 9, 8. / 9, 5. / 9}, w, 1.e-12, "")

	_, _, err = JacobiGQ(0, 0, -1)
	assert.Error(t, err)
}

func TestRule_Measure(t *testing.T) {
	measures := map[Geometry]float64{
		Segment:     1,
		Triangle:    0.5,
		Tetrahedron: 1. / 6,
	}
	for g, want := range measures {
		for order := 0; order < 5; order++ {
			ips, err := Rule(g, order)
			require.NoError(t, err)
			var sum float64
			for _, ip := range ips {
				sum += ip.Weight
			}
			assert.InDeltaf(t, want, sum, 1.e-12, "%v order %d", g, order)
		}
	}
}

func TestRule_Polynomials(t *testing.T) {
	// ∫_T x^2 y dA = 2!1!/(2+1+2)! = 1/60 over the unit triangle
	ips, err := Rule(Triangle, 3)
	require.NoError(t, err)
	var sum float64
	for _, ip := range ips {
		sum += ip.Weight * ip.X * ip.X * ip.Y
	}
	assert.InDelta(t, 1./60, sum, 1.e-12)

	// ∫_T x y z dV = 1/720 over the unit tetrahedron
	ips, err = Rule(Tetrahedron, 3)
	require.NoError(t, err)
	sum = 0
	for _, ip := range ips {
		sum += ip.Weight * ip.X * ip.Y * ip.Z
	}
	assert.InDelta(t, 1./720, sum, 1.e-12)
}

func TestShape_PartitionOfUnity(t *testing.T) {
	for _, g := range []Geometry{Segment, Triangle, Tetrahedron} {
		ips, err := Rule(g, 2)
		require.NoError(t, err)
		var phi []float64
		for _, ip := range ips {
			phi = Shape(g, ip, phi)
			var sum float64
			for _, p := range phi {
				sum += p
			}
			assert.InDelta(t, 1, sum, 1.e-14)
		}
		// Kronecker property at the vertices
		for i, v := range ReferenceVertices(g) {
			phi = Shape(g, v, phi)
			for j := range phi {
				want := 0.
				if i == j {
					want = 1
				}
				assert.InDelta(t, want, phi[j], 1.e-14)
			}
		}
	}
}

func TestAffineTransform(t *testing.T) {
	T, err := NewAffineTransform(3, 7, Triangle, [][]float64{{1, 1}, {3, 1}, {1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, T.ElementID())
	assert.Equal(t, 7, T.Attribute())
	assert.Equal(t, 2, T.SpaceDimension())

	x := T.Transform(IntPoint{X: 0.5, Y: 0.5}, nil)
	assert.InDeltaSlice(t, []float64{2, 1.5}, x, 1.e-14)
	assert.InDelta(t, 2, T.Weight(), 1.e-14)

	_, err = NewAffineTransform(0, 0, Triangle, [][]float64{{0, 0}, {1, 0}})
	assert.Error(t, err)
}

func TestCalcOrtho_Outward(t *testing.T) {
	// Faces of the reference triangle follow FaceVertices ordering
	refs := ReferenceVertices(Triangle)
	want := [][]float64{{1, 1}, {-1, 0}, {0, -1}}
	for f, fv := range Triangle.FaceVertices() {
		verts := make([][]float64, len(fv))
		for i, lv := range fv {
			verts[i] = refs[lv].Coords(2)
		}
		T, err := NewAffineTransform(f, 1, Segment, verts)
		require.NoError(t, err)
		n, err := CalcOrtho(T.Jacobian(IntPoint{}), nil)
		require.NoError(t, err)
		assert.InDeltaSlicef(t, want[f], n, 1.e-14, "face %d", f)
	}

	_, err := CalcOrtho(mat.NewDense(3, 1, nil), nil)
	assert.Error(t, err)
}

func TestPhysicalGradients(t *testing.T) {
	T, err := NewAffineTransform(0, 1, Triangle, [][]float64{{0, 0}, {2, 0}, {0, 4}})
	require.NoError(t, err)
	grad, err := PhysicalGradients(T, Centroid(Triangle))
	require.NoError(t, err)
	// u = x at the vertices: 0, 2, 0 -> du/dx = 1, du/dy = 0
	u := mat.NewVecDense(3, []float64{0, 2, 0})
	var du mat.VecDense
	du.MulVec(grad.T(), u)
	assert.InDeltaSlice(t, []float64{1, 0}, du.RawVector().Data, 1.e-14)

	// An embedded triangle uses the pseudo-inverse
	T3, err := NewAffineTransform(0, 1, Triangle, [][]float64{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}})
	require.NoError(t, err)
	grad, err = PhysicalGradients(T3, Centroid(Triangle))
	require.NoError(t, err)
	r, c := grad.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 1, grad.At(1, 0), 1.e-14)
	assert.InDelta(t, 0, grad.At(1, 2), 1.e-14)
}

func TestGeometry(t *testing.T) {
	assert.Equal(t, "Triangle", Triangle.String())
	assert.Equal(t, Segment, Triangle.FaceGeometry())
	assert.Equal(t, 4, Tetrahedron.NumVertices())
	g, err := GeometryForDimension(3)
	require.NoError(t, err)
	assert.Equal(t, Tetrahedron, g)
	_, err = GeometryForDimension(4)
	assert.Error(t, err)
	assert.Equal(t, "Tri1", Properties(Triangle).ShortName)
	assert.Equal(t, 3, Properties(Triangle).NFaces)
}
