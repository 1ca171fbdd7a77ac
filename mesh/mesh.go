package mesh

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/DGField/element"
)

// ErrInvalidMesh is returned for inconsistent mesh input
var ErrInvalidMesh = errors.New("invalid mesh")

// Accessor is the narrow view of a mesh needed to evaluate fields. Entities
// are referenced by integer id; implementations store topology once.
type Accessor interface {
	Dimension() int      // reference dimension of the volume elements
	SpaceDimension() int // number of vertex coordinates

	NumElements() int
	NumVertices() int
	Vertex(id int) []float64
	ElementVertices(elem int) []int
	ElementAttribute(elem int) int
	ElementGeometry(elem int) element.Geometry
	// VertexElements lists the elements incident to a vertex
	VertexElements(vert int) []int
	ElementTransformation(elem int) element.Transformation

	NumBdrElements() int
	BdrElementVertices(bdr int) []int
	BdrAttribute(bdr int) int
	BdrGeometry(bdr int) element.Geometry
	// BdrElementsByAttribute lists the boundary elements tagged attr
	BdrElementsByAttribute(attr int) []int
	BdrTransformation(bdr int) element.Transformation
}

// MeshProperties summarizes the entity counts of a mesh
type MeshProperties struct {
	NumElements    int
	NumVertices    int
	NumBdrElements int
	Attributes     []int
	BdrAttributes  []int
}

// Simplex is an in-memory straight-sided simplex mesh. Vertices, element
// connectivity and the vertex→element table are stored in flat index
// arrays built once at construction.
type Simplex struct {
	sdim int
	geom element.Geometry

	coords []float64 // [NumVertices*sdim]
	nv     int

	eToV  []int // [NumElements*NVp]
	attrs []int

	// vertex→element table in compressed row form
	v2eOff []int
	v2e    []int

	bToV      []int
	bdrAttrs  []int
	bdrByAttr map[int][]int

	transforms    []*element.AffineTransform
	bdrTransforms []*element.AffineTransform
}

var _ Accessor = (*Simplex)(nil)

// NewSimplex creates a mesh of simplices of dimension dim embedded in
// len(vertices[i]) dimensions. attributes holds one subdomain id per element;
// nil assigns attribute 1 everywhere.
func NewSimplex(dim int, vertices [][]float64, elements [][]int, attributes []int) (*Simplex, error) {
	geom, err := element.GeometryForDimension(dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMesh, err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: volume elements must have dimension ≥ 1", ErrInvalidMesh)
	}
	if len(vertices) == 0 || len(elements) == 0 {
		return nil, fmt.Errorf("%w: mesh needs vertices and elements", ErrInvalidMesh)
	}
	if attributes != nil && len(attributes) != len(elements) {
		return nil, fmt.Errorf("%w: %d attributes for %d elements", ErrInvalidMesh, len(attributes), len(elements))
	}

	sdim := len(vertices[0])
	if sdim < dim {
		return nil, fmt.Errorf("%w: %d-D elements in %d-D space", ErrInvalidMesh, dim, sdim)
	}
	m := &Simplex{
		sdim:      sdim,
		geom:      geom,
		nv:        len(vertices),
		coords:    make([]float64, 0, len(vertices)*sdim),
		bdrByAttr: make(map[int][]int),
	}
	for i, v := range vertices {
		if len(v) != sdim {
			return nil, fmt.Errorf("%w: vertex %d has %d coordinates, expected %d", ErrInvalidMesh, i, len(v), sdim)
		}
		m.coords = append(m.coords, v...)
	}

	nvp := geom.NumVertices()
	m.eToV = make([]int, 0, len(elements)*nvp)
	m.attrs = make([]int, len(elements))
	for k, ev := range elements {
		if len(ev) != nvp {
			return nil, fmt.Errorf("%w: element %d has %d vertices, expected %d", ErrInvalidMesh, k, len(ev), nvp)
		}
		for _, v := range ev {
			if v < 0 || v >= m.nv {
				return nil, fmt.Errorf("%w: element %d references vertex %d (have %d)", ErrInvalidMesh, k, v, m.nv)
			}
		}
		m.eToV = append(m.eToV, ev...)
		m.attrs[k] = 1
		if attributes != nil {
			m.attrs[k] = attributes[k]
		}
	}

	m.buildVertexToElement()

	m.transforms = make([]*element.AffineTransform, len(elements))
	for k := range elements {
		if m.transforms[k], err = element.NewAffineTransform(k, m.attrs[k], geom, m.points(m.ElementVertices(k))); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidMesh, k, err)
		}
	}
	return m, nil
}

// buildVertexToElement fills the compressed vertex→element table
func (m *Simplex) buildVertexToElement() {
	nvp := m.geom.NumVertices()
	m.v2eOff = make([]int, m.nv+1)
	for _, v := range m.eToV {
		m.v2eOff[v+1]++
	}
	for i := 0; i < m.nv; i++ {
		m.v2eOff[i+1] += m.v2eOff[i]
	}
	m.v2e = make([]int, len(m.eToV))
	fill := make([]int, m.nv)
	for i, v := range m.eToV {
		m.v2e[m.v2eOff[v]+fill[v]] = i / nvp
		fill[v]++
	}
}

func (m *Simplex) points(ids []int) [][]float64 {
	pts := make([][]float64, len(ids))
	for i, id := range ids {
		pts[i] = m.Vertex(id)
	}
	return pts
}

// SetBoundary replaces the boundary element list. Faces are listed with the
// vertex ordering that defines their orientation.
func (m *Simplex) SetBoundary(faces [][]int, attributes []int) error {
	if len(attributes) != len(faces) {
		return fmt.Errorf("%w: %d boundary attributes for %d faces", ErrInvalidMesh, len(attributes), len(faces))
	}
	fgeom := m.geom.FaceGeometry()
	nfv := fgeom.NumVertices()
	bToV := make([]int, 0, len(faces)*nfv)
	byAttr := make(map[int][]int)
	transforms := make([]*element.AffineTransform, len(faces))
	for b, fv := range faces {
		if len(fv) != nfv {
			return fmt.Errorf("%w: boundary face %d has %d vertices, expected %d", ErrInvalidMesh, b, len(fv), nfv)
		}
		for _, v := range fv {
			if v < 0 || v >= m.nv {
				return fmt.Errorf("%w: boundary face %d references vertex %d", ErrInvalidMesh, b, v)
			}
		}
		bToV = append(bToV, fv...)
		byAttr[attributes[b]] = append(byAttr[attributes[b]], b)
		T, err := element.NewAffineTransform(b, attributes[b], fgeom, m.points(fv))
		if err != nil {
			return fmt.Errorf("%w: boundary face %d: %v", ErrInvalidMesh, b, err)
		}
		transforms[b] = T
	}
	m.bToV = bToV
	m.bdrAttrs = append([]int(nil), attributes...)
	m.bdrByAttr = byAttr
	m.bdrTransforms = transforms
	return nil
}

// ExteriorFaces finds the faces that belong to exactly one element, oriented
// outward, in element order
func (m *Simplex) ExteriorFaces() [][]int {
	type faceRef struct {
		verts []int
		count int
		order int
	}
	faceMap := make(map[string]*faceRef)
	var order int
	for k := 0; k < m.NumElements(); k++ {
		ev := m.ElementVertices(k)
		for _, lf := range m.geom.FaceVertices() {
			fv := make([]int, len(lf))
			for i, lv := range lf {
				fv[i] = ev[lv]
			}
			key := faceKey(fv)
			if f, found := faceMap[key]; found {
				f.count++
				continue
			}
			faceMap[key] = &faceRef{verts: fv, count: 1, order: order}
			order++
		}
	}
	exterior := make([]*faceRef, 0)
	for _, f := range faceMap {
		if f.count == 1 {
			exterior = append(exterior, f)
		}
	}
	sort.Slice(exterior, func(i, j int) bool { return exterior[i].order < exterior[j].order })
	faces := make([][]int, len(exterior))
	for i, f := range exterior {
		faces[i] = f.verts
	}
	return faces
}

// faceKey builds a canonical signature from the sorted face vertices
func faceKey(fv []int) string {
	s := append([]int(nil), fv...)
	sort.Ints(s)
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "-")
}

func (m *Simplex) Dimension() int      { return int(m.geom.Dimensions()) }
func (m *Simplex) SpaceDimension() int { return m.sdim }
func (m *Simplex) NumElements() int    { return len(m.attrs) }
func (m *Simplex) NumVertices() int    { return m.nv }

func (m *Simplex) Vertex(id int) []float64 {
	return m.coords[id*m.sdim : (id+1)*m.sdim : (id+1)*m.sdim]
}

func (m *Simplex) ElementVertices(elem int) []int {
	nvp := m.geom.NumVertices()
	return m.eToV[elem*nvp : (elem+1)*nvp : (elem+1)*nvp]
}

func (m *Simplex) ElementAttribute(elem int) int { return m.attrs[elem] }

func (m *Simplex) ElementGeometry(int) element.Geometry { return m.geom }

func (m *Simplex) VertexElements(vert int) []int {
	return m.v2e[m.v2eOff[vert]:m.v2eOff[vert+1]:m.v2eOff[vert+1]]
}

func (m *Simplex) ElementTransformation(elem int) element.Transformation {
	return m.transforms[elem]
}

func (m *Simplex) NumBdrElements() int { return len(m.bdrAttrs) }

func (m *Simplex) BdrElementVertices(bdr int) []int {
	nfv := m.geom.FaceGeometry().NumVertices()
	return m.bToV[bdr*nfv : (bdr+1)*nfv : (bdr+1)*nfv]
}

func (m *Simplex) BdrAttribute(bdr int) int { return m.bdrAttrs[bdr] }

func (m *Simplex) BdrGeometry(int) element.Geometry { return m.geom.FaceGeometry() }

func (m *Simplex) BdrElementsByAttribute(attr int) []int { return m.bdrByAttr[attr] }

func (m *Simplex) BdrTransformation(bdr int) element.Transformation {
	return m.bdrTransforms[bdr]
}

// GetMeshProperties returns entity counts and the distinct attributes
func (m *Simplex) GetMeshProperties() MeshProperties {
	return MeshProperties{
		NumElements:    m.NumElements(),
		NumVertices:    m.NumVertices(),
		NumBdrElements: m.NumBdrElements(),
		Attributes:     distinct(m.attrs),
		BdrAttributes:  distinct(m.bdrAttrs),
	}
}

func distinct(ids []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// String returns a summary of the mesh
func (m *Simplex) String() string {
	var sb strings.Builder
	props := m.GetMeshProperties()
	ep := element.Properties(m.geom)
	sb.WriteString("=== Simplex Mesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Element: %s (%s)\n", ep.Name, ep.ShortName))
	sb.WriteString(fmt.Sprintf("  Space dimension: %d\n", m.sdim))
	sb.WriteString(fmt.Sprintf("  Number of elements: %d\n", props.NumElements))
	sb.WriteString(fmt.Sprintf("  Number of vertices: %d\n", props.NumVertices))
	sb.WriteString(fmt.Sprintf("  Number of boundary elements: %d\n", props.NumBdrElements))
	sb.WriteString(fmt.Sprintf("  Attributes: %v\n", props.Attributes))
	sb.WriteString(fmt.Sprintf("  Boundary attributes: %v\n", props.BdrAttributes))
	return sb.String()
}
