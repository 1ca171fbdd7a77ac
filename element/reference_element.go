package element

import (
	"gonum.org/v1/gonum/mat"
)

// ElementProperties contains metadata describing a linear simplex element
type ElementProperties struct {
	Name       string         // Full descriptive name (e.g., "Linear Triangle")
	ShortName  string         // Abbreviated name (e.g., "Tri1")
	Type       Geometry       // Element shape
	NVp        int            // Number of vertex nodes (equals number of vertices)
	NFaces     int            // Number of faces in each element
	Dimensions Dimensionality // Reference dimension
}

// Properties returns the metadata of the linear element of geometry g
func Properties(g Geometry) ElementProperties {
	props := ElementProperties{
		Type:       g,
		NVp:        g.NumVertices(),
		NFaces:     len(g.FaceVertices()),
		Dimensions: g.Dimensions(),
	}
	switch g {
	case Point:
		props.Name, props.ShortName = "Point", "Pt"
	case Segment:
		props.Name, props.ShortName = "Linear Segment", "Seg1"
	case Triangle:
		props.Name, props.ShortName = "Linear Triangle", "Tri1"
	case Tetrahedron:
		props.Name, props.ShortName = "Linear Tetrahedron", "Tet1"
	}
	return props
}

// ReferenceVertices returns the vertex coordinates of the reference simplex.
// The reference simplex is the unit simplex with vertex 0 at the origin and
// vertex i at the i-th unit vector.
func ReferenceVertices(g Geometry) []IntPoint {
	switch g {
	case Point:
		return []IntPoint{{}}
	case Segment:
		return []IntPoint{{X: 0}, {X: 1}}
	case Triangle:
		return []IntPoint{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	case Tetrahedron:
		return []IntPoint{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
		}
	}
	return nil
}

// Centroid returns the reference centroid of g
func Centroid(g Geometry) IntPoint {
	c := 1. / float64(g.NumVertices())
	ip := IntPoint{Weight: 1}
	switch g {
	case Segment:
		ip.X = c
	case Triangle:
		ip.X, ip.Y = c, c
	case Tetrahedron:
		ip.X, ip.Y, ip.Z = c, c, c
	}
	return ip
}

// Shape evaluates the linear (barycentric) shape functions of g at ip into
// dst, which is grown as needed
func Shape(g Geometry, ip IntPoint, dst []float64) []float64 {
	nv := g.NumVertices()
	if cap(dst) < nv {
		dst = make([]float64, nv)
	}
	dst = dst[:nv]
	dst[0] = 1
	for i := 0; i < int(g.Dimensions()); i++ {
		r := ip.Coord(i)
		dst[0] -= r
		dst[i+1] = r
	}
	return dst
}

// ShapeGradients returns the reference gradients of the linear shape
// functions as an [NVp × dim] matrix. The gradients are constant over the
// element.
func ShapeGradients(g Geometry) *mat.Dense {
	dim := int(g.Dimensions())
	nv := g.NumVertices()
	if dim == 0 {
		return nil
	}
	G := mat.NewDense(nv, dim, nil)
	for j := 0; j < dim; j++ {
		G.Set(0, j, -1)
		G.Set(j+1, j, 1)
	}
	return G
}
