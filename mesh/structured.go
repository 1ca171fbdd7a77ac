package mesh

import (
	"fmt"
	"math"
)

// Rectangle boundary attributes
const (
	BdrBottom = 1
	BdrRight  = 2
	BdrTop    = 3
	BdrLeft   = 4
)

// AttributeFunc assigns an element attribute from the element centroid
type AttributeFunc func(centroid []float64) int

// NewRectangle triangulates [x0,x1]×[y0,y1] into 2·nx·ny counter-clockwise
// triangles. The exterior edges are tagged BdrBottom, BdrRight, BdrTop and
// BdrLeft. A nil attr assigns attribute 1 to every element.
func NewRectangle(nx, ny int, x0, x1, y0, y1 float64, attr AttributeFunc) (*Simplex, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("%w: rectangle needs nx, ny ≥ 1, got %d, %d", ErrInvalidMesh, nx, ny)
	}
	if x1 <= x0 || y1 <= y0 {
		return nil, fmt.Errorf("%w: empty rectangle [%g,%g]×[%g,%g]", ErrInvalidMesh, x0, x1, y0, y1)
	}
	dx, dy := (x1-x0)/float64(nx), (y1-y0)/float64(ny)
	verts := make([][]float64, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			verts = append(verts, []float64{x0 + float64(i)*dx, y0 + float64(j)*dy})
		}
	}
	id := func(i, j int) int { return j*(nx+1) + i }
	elems := make([][]int, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v01, v11 := id(i, j), id(i+1, j), id(i, j+1), id(i+1, j+1)
			elems = append(elems, []int{v00, v10, v11}, []int{v00, v11, v01})
		}
	}
	var attrs []int
	if attr != nil {
		attrs = make([]int, len(elems))
		for k, ev := range elems {
			c := make([]float64, 2)
			for _, v := range ev {
				c[0] += verts[v][0] / 3
				c[1] += verts[v][1] / 3
			}
			attrs[k] = attr(c)
		}
	}
	m, err := NewSimplex(2, verts, elems, attrs)
	if err != nil {
		return nil, err
	}
	faces := m.ExteriorFaces()
	bdrAttrs := make([]int, len(faces))
	tol := 1.e-9 * math.Max(x1-x0, y1-y0)
	for b, f := range faces {
		pa, pb := m.Vertex(f[0]), m.Vertex(f[1])
		mx, my := 0.5*(pa[0]+pb[0]), 0.5*(pa[1]+pb[1])
		switch {
		case math.Abs(my-y0) < tol:
			bdrAttrs[b] = BdrBottom
		case math.Abs(mx-x1) < tol:
			bdrAttrs[b] = BdrRight
		case math.Abs(my-y1) < tol:
			bdrAttrs[b] = BdrTop
		default:
			bdrAttrs[b] = BdrLeft
		}
	}
	if err = m.SetBoundary(faces, bdrAttrs); err != nil {
		return nil, err
	}
	return m, nil
}
