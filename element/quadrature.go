package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// IntPoint is a point in reference coordinates with its quadrature weight
type IntPoint struct {
	X, Y, Z float64
	Weight  float64
}

// Coord returns reference coordinate i (0=X, 1=Y, 2=Z)
func (ip IntPoint) Coord(i int) float64 {
	switch i {
	case 0:
		return ip.X
	case 1:
		return ip.Y
	case 2:
		return ip.Z
	}
	return 0
}

// Coords returns the first dim reference coordinates as a slice
func (ip IntPoint) Coords(dim int) []float64 {
	c := make([]float64, dim)
	for i := range c {
		c[i] = ip.Coord(i)
	}
	return c
}

// JacobiGQ computes the N+1 Gauss quadrature points and weights for the
// Jacobi weight (1-x)^alpha (1+x)^beta on [-1,1] with the Golub-Welsch
// algorithm: the points are the eigenvalues of the symmetric tridiagonal
// Jacobi matrix and the weights are the squared first eigenvector components
func JacobiGQ(alpha, beta float64, N int) (X, W []float64, err error) {
	if N < 0 {
		return nil, nil, fmt.Errorf("invalid quadrature order N=%d", N)
	}
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)}, []float64{2.}, nil
	}

	n := N + 1
	JJ := mat.NewSymDense(n, nil)
	eps := 1.e-16
	for i := 0; i < n; i++ {
		h1 := 2*float64(i) + alpha + beta
		// main diagonal: -(α²-β²)/((2i+α+β)(2i+α+β+2))
		d0 := (beta*beta - alpha*alpha) / (h1 * (h1 + 2.))
		if i == 0 && alpha+beta < 10*eps {
			d0 = 0.
		}
		JJ.SetSym(i, i, d0)
		if i < N {
			ip1 := float64(i + 1)
			d1 := 2. / (h1 + 2.) * math.Sqrt(
				ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h1+1)/(h1+3))
			JJ.SetSym(i, i+1, d1)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		return nil, nil, fmt.Errorf("eigenvalue decomposition failed for N=%d", N)
	}
	X = eig.Values(nil)

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	g0 := gamma0(alpha, beta)
	W = make([]float64, n)
	for i := range W {
		v := vecs.At(0, i)
		W[i] = v * v * g0
	}
	return X, W, nil
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	return math.Gamma(alpha+1.) * math.Gamma(beta+1.) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// Rule returns a quadrature rule on the reference simplex of g that
// integrates polynomials of the given order. Weights sum to the reference
// measure (1, 1/2, 1/6). Triangles and tetrahedra use collapsed coordinates
// over tensor Gauss-Legendre points.
func Rule(g Geometry, order int) ([]IntPoint, error) {
	if order < 0 {
		return nil, fmt.Errorf("invalid integration order %d", order)
	}
	if g == Point {
		return []IntPoint{{Weight: 1}}, nil
	}
	// Collapsing adds (dim-1) to the degree in the collapsed directions
	np := (order+int(g.Dimensions()))/2 + 1
	x, w, err := JacobiGQ(0, 0, np-1)
	if err != nil {
		return nil, err
	}
	// map to [0,1]
	u := make([]float64, np)
	wu := make([]float64, np)
	for i := range x {
		u[i] = 0.5 * (x[i] + 1)
		wu[i] = 0.5 * w[i]
	}

	var ips []IntPoint
	switch g {
	case Segment:
		for i := range u {
			ips = append(ips, IntPoint{X: u[i], Weight: wu[i]})
		}
	case Triangle:
		for i := range u {
			for j := range u {
				ips = append(ips, IntPoint{
					X:      u[i] * (1 - u[j]),
					Y:      u[j],
					Weight: wu[i] * wu[j] * (1 - u[j]),
				})
			}
		}
	case Tetrahedron:
		for i := range u {
			for j := range u {
				for k := range u {
					oz := 1 - u[k]
					ips = append(ips, IntPoint{
						X:      u[i] * (1 - u[j]) * oz,
						Y:      u[j] * oz,
						Z:      u[k],
						Weight: wu[i] * wu[j] * wu[k] * (1 - u[j]) * oz * oz,
					})
				}
			}
		}
	default:
		return nil, fmt.Errorf("no quadrature rule for %v", g)
	}
	return ips, nil
}
