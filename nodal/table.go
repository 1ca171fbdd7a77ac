// Package nodal builds the incidence tables used to reconstruct per-vertex
// values from element-local field data.
package nodal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/value"
)

// Inactive marks an incident element that does not contribute
const Inactive = -1

// ErrEmptySelection is returned when a selection references no vertices
var ErrEmptySelection = errors.New("selection references no vertices")

// ElementVertex pairs a local vertex slot of an element with the index of
// that vertex in Table.Vertices
type ElementVertex struct {
	Slot  int
	Index int
}

// Table is the mesh incidence table of a vertex selection
type Table struct {
	// ID distinguishes tables in nodal caches; masked copies get a new ID
	ID uuid.UUID

	// Selection
	Refs        [][]int // entity vertex lists the caller asked about
	BdrElements []int   // selected boundary elements, nil for a domain selection

	// Unique vertices
	Vertices []int      // sorted unique mesh vertex ids
	Inverse  [][]int    // Refs[i][j] == Vertices[Inverse[i][j]]
	Locs     *mat.Dense // [NumVertices × sdim] vertex coordinates
	Weights  []float64  // number of active incident elements per vertex

	// Incident elements, a superset of the selection
	ElementIDs []int             // mesh element ids
	Elements   []int             // mesh element id, or Inactive
	Attributes []int             // element attributes
	ElemVerts  [][]ElementVertex // per element, the selected vertices it touches

	masked bool
	masks  map[string]*Table // masked copies by name
}

// Build preprocesses refs, lists of mesh vertex ids (one list per selected
// entity). Elements incident to the selected vertices for which active
// returns false are kept but marked Inactive. A nil active keeps all.
func Build(m mesh.Accessor, refs [][]int, active func(elem int) bool) (*Table, error) {
	var flat []int
	for _, r := range refs {
		flat = append(flat, r...)
	}
	if len(flat) == 0 {
		return nil, ErrEmptySelection
	}

	// Step 1: unique sorted vertices and the inverse index
	verts := unique(flat)
	t := &Table{
		ID:       uuid.New(),
		Refs:     refs,
		Vertices: verts,
		Inverse:  make([][]int, len(refs)),
		Weights:  make([]float64, len(verts)),
	}
	for i, r := range refs {
		t.Inverse[i] = make([]int, len(r))
		for j, v := range r {
			if v < 0 || v >= m.NumVertices() {
				return nil, fmt.Errorf("%w: vertex %d of entity %d out of range", mesh.ErrInvalidMesh, v, i)
			}
			t.Inverse[i][j] = sort.SearchInts(verts, v)
		}
	}
	sdim := m.SpaceDimension()
	t.Locs = mat.NewDense(len(verts), sdim, nil)
	for i, v := range verts {
		t.Locs.SetRow(i, m.Vertex(v))
	}

	// Step 2: every element touching a selected vertex
	var incident []int
	for _, v := range verts {
		incident = append(incident, m.VertexElements(v)...)
	}
	t.ElementIDs = unique(incident)

	// Step 3: slot correspondence, attributes and weights
	ne := len(t.ElementIDs)
	t.Elements = make([]int, ne)
	t.Attributes = make([]int, ne)
	t.ElemVerts = make([][]ElementVertex, ne)
	for k, elem := range t.ElementIDs {
		t.Attributes[k] = m.ElementAttribute(elem)
		t.Elements[k] = elem
		isActive := active == nil || active(elem)
		if !isActive {
			t.Elements[k] = Inactive
		}
		for slot, v := range m.ElementVertices(elem) {
			idx := sort.SearchInts(verts, v)
			if idx == len(verts) || verts[idx] != v {
				continue
			}
			t.ElemVerts[k] = append(t.ElemVerts[k], ElementVertex{Slot: slot, Index: idx})
			if isActive {
				t.Weights[idx]++
			}
		}
	}
	return t, nil
}

func unique(ids []int) []int {
	s := append([]int(nil), ids...)
	sort.Ints(s)
	out := s[:0]
	for i, id := range s {
		if i == 0 || id != s[i-1] {
			out = append(out, id)
		}
	}
	return out
}

// NewDomainTable selects the elements whose attribute is in attrs. A nil
// attrs selects every element. Incident elements outside the selection are
// inactive.
func NewDomainTable(m mesh.Accessor, attrs []int) (*Table, error) {
	in := func(elem int) bool {
		if attrs == nil {
			return true
		}
		a := m.ElementAttribute(elem)
		for _, id := range attrs {
			if id == a {
				return true
			}
		}
		return false
	}
	var refs [][]int
	for k := 0; k < m.NumElements(); k++ {
		if in(k) {
			refs = append(refs, m.ElementVertices(k))
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("domain attributes %v: %w", attrs, ErrEmptySelection)
	}
	return Build(m, refs, in)
}

// NewBoundaryTable selects the boundary elements tagged with battrs, in
// attribute order. Every incident volume element is active.
func NewBoundaryTable(m mesh.Accessor, battrs []int) (*Table, error) {
	var (
		bdr  []int
		refs [][]int
	)
	for _, a := range battrs {
		for _, b := range m.BdrElementsByAttribute(a) {
			bdr = append(bdr, b)
			refs = append(refs, m.BdrElementVertices(b))
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("boundary attributes %v: %w", battrs, ErrEmptySelection)
	}
	t, err := Build(m, refs, nil)
	if err != nil {
		return nil, err
	}
	t.BdrElements = bdr
	return t, nil
}

func (t *Table) NumVertices() int { return len(t.Vertices) }
func (t *Table) NumElements() int { return len(t.ElementIDs) }

// IsBoundary reports whether the selection is a set of boundary elements
func (t *Table) IsBoundary() bool { return t.BdrElements != nil }

// Location returns the coordinates of unique vertex idx
func (t *Table) Location(idx int) []float64 { return t.Locs.RawRowView(idx) }

// Coordinates returns the batched vertex coordinates, [NumVertices × sdim]
func (t *Table) Coordinates() value.Value {
	n, sdim := t.Locs.Dims()
	v := value.Zeros(n, []int{sdim})
	for i := 0; i < n; i++ {
		for d, x := range t.Locs.RawRowView(i) {
			v.Data[i*sdim+d] = complex(x, 0)
		}
	}
	return v
}

// Mask returns a copy in which the active elements whose attribute fails
// keep become Inactive. Weights are recounted; vertices no active element
// touches get weight 0. name identifies the predicate: the copy is built
// once per name and its ID is derived from the table ID and name, so nodal
// cache entries over it are found again.
func (t *Table) Mask(name string, keep func(attr int) bool) *Table {
	if mt, ok := t.masks[name]; ok {
		return mt
	}
	mt := *t
	mt.ID = uuid.NewSHA1(t.ID, []byte(name))
	mt.masked = true
	mt.masks = nil
	mt.Elements = make([]int, len(t.Elements))
	mt.Weights = make([]float64, len(t.Weights))
	for k, elem := range t.Elements {
		mt.Elements[k] = elem
		if elem == Inactive || !keep(t.Attributes[k]) {
			mt.Elements[k] = Inactive
			continue
		}
		for _, ev := range t.ElemVerts[k] {
			mt.Weights[ev.Index]++
		}
	}
	if t.masks == nil {
		t.masks = make(map[string]*Table)
	}
	t.masks[name] = &mt
	return &mt
}

// ActiveMask is 1 for vertices touched by an active element, 0 otherwise
func (t *Table) ActiveMask() []float64 {
	mask := make([]float64, len(t.Weights))
	for i, w := range t.Weights {
		if w > 0 {
			mask[i] = 1
		}
	}
	return mask
}

// Divisor is Weights with zeros replaced by one
func (t *Table) Divisor() []float64 {
	d := make([]float64, len(t.Weights))
	for i, w := range t.Weights {
		d[i] = w
		if w == 0 {
			d[i] = 1
		}
	}
	return d
}

// Gather selects rows of a per-vertex value by unique vertex index
func Gather(v value.Value, idx []int) (value.Value, error) {
	if !v.IsBatched() {
		return value.Value{}, fmt.Errorf("%w: gather needs a per-vertex value", value.ErrShape)
	}
	n := v.Size()
	out := value.Zeros(len(idx), v.Shape)
	out.Complex = v.Complex
	for r, i := range idx {
		if i < 0 || i >= v.Rows {
			return value.Value{}, fmt.Errorf("%w: row %d of %d", value.ErrShape, i, v.Rows)
		}
		copy(out.Data[r*n:(r+1)*n], v.Data[i*n:(i+1)*n])
	}
	return out, nil
}

// FlatInverse is Inverse flattened in reference order
func (t *Table) FlatInverse() []int {
	var idx []int
	for _, r := range t.Inverse {
		idx = append(idx, r...)
	}
	return idx
}

// Scatter maps a per-vertex value back to the references, one row per
// entry of Refs in order
func (t *Table) Scatter(v value.Value) (value.Value, error) {
	if v.Rows != t.NumVertices() {
		return value.Value{}, fmt.Errorf("%w: %d rows for %d vertices", value.ErrShape, v.Rows, t.NumVertices())
	}
	return Gather(v, t.FlatInverse())
}
