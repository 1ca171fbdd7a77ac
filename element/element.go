package element

import "fmt"

// Dimensionality represents the topological dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // points (boundary of a 1D mesh)
	D1                       // line segments
	D2                       // triangles
	D3                       // tetrahedra
)

// Geometry identifies the shape of a simplex element
type Geometry uint8

const (
	Point Geometry = iota
	Segment
	Triangle
	Tetrahedron
)

func (g Geometry) String() string {
	switch g {
	case Point:
		return "Point"
	case Segment:
		return "Segment"
	case Triangle:
		return "Triangle"
	case Tetrahedron:
		return "Tetrahedron"
	}
	return fmt.Sprintf("Geometry(%d)", uint8(g))
}

// Dimensions returns the reference dimension of the geometry
func (g Geometry) Dimensions() Dimensionality {
	return Dimensionality(g)
}

// NumVertices returns the number of vertices defining the geometry
func (g Geometry) NumVertices() int {
	return int(g) + 1
}

// GeometryForDimension returns the simplex of a given reference dimension
func GeometryForDimension(dim int) (Geometry, error) {
	if dim < 0 || dim > 3 {
		return 0, fmt.Errorf("no simplex geometry of dimension %d", dim)
	}
	return Geometry(dim), nil
}

// FaceGeometry returns the geometry of the faces of g
func (g Geometry) FaceGeometry() Geometry {
	if g == Point {
		return Point
	}
	return g - 1
}

// FaceVertices lists, per face, the local vertex slots of the face. The
// ordering matches the reference orientation so that CalcOrtho applied to a
// face of a positively oriented element points outward.
func (g Geometry) FaceVertices() [][]int {
	switch g {
	case Segment:
		return [][]int{{0}, {1}}
	case Triangle:
		return [][]int{{1, 2}, {2, 0}, {0, 1}}
	case Tetrahedron:
		return [][]int{{1, 2, 3}, {0, 3, 2}, {0, 1, 3}, {0, 2, 1}}
	}
	return nil
}
