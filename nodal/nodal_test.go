package nodal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/value"
)

// 2---3
// | \ |
// 0---1
func twoTriangles(t *testing.T, attrs []int) *mesh.Simplex {
	m, err := mesh.NewSimplex(2,
		[][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		[][]int{{0, 1, 2}, {1, 3, 2}}, attrs)
	require.NoError(t, err)
	return m
}

func TestBuildSingleTriangle(t *testing.T) {
	m, err := mesh.NewSimplex(2, [][]float64{{0, 0}, {1, 0}, {0, 1}}, [][]int{{0, 1, 2}}, nil)
	require.NoError(t, err)
	tbl, err := NewDomainTable(m, nil)
	require.NoError(t, err)
	require.NoError(t, tbl.Verify())

	assert.Equal(t, []int{0, 1, 2}, tbl.Vertices)
	assert.Equal(t, []float64{1, 1, 1}, tbl.Weights)
	assert.Equal(t, []int{0}, tbl.Elements)
	assert.Equal(t, []ElementVertex{{0, 0}, {1, 1}, {2, 2}}, tbl.ElemVerts[0])
	assert.Equal(t, []float64{1, 0}, tbl.Location(1))
	assert.False(t, tbl.IsBoundary())
}

func TestBuildInverseAndDuplicates(t *testing.T) {
	m := twoTriangles(t, nil)
	refs := [][]int{{3, 1}, {1, 2}}
	tbl, err := Build(m, refs, nil)
	require.NoError(t, err)
	require.NoError(t, tbl.Verify())
	assert.Equal(t, []int{1, 2, 3}, tbl.Vertices)
	assert.Equal(t, [][]int{{2, 0}, {0, 1}}, tbl.Inverse)
	assert.Equal(t, []int{2, 0, 0, 1}, tbl.FlatInverse())
	// both triangles touch vertices 1 and 2
	assert.Equal(t, []int{0, 1}, tbl.ElementIDs)
	assert.Equal(t, []float64{2, 2, 1}, tbl.Weights)

	_, err = Build(m, [][]int{{}}, nil)
	assert.True(t, errors.Is(err, ErrEmptySelection))
	_, err = Build(m, [][]int{{7}}, nil)
	assert.True(t, errors.Is(err, mesh.ErrInvalidMesh))
}

func TestDomainTableMarksOutsideElementsInactive(t *testing.T) {
	m := twoTriangles(t, []int{1, 2})
	tbl, err := NewDomainTable(m, []int{1})
	require.NoError(t, err)
	require.NoError(t, tbl.Verify())

	// element 1 touches selected vertices 1 and 2 but is outside the domain
	assert.Equal(t, []int{0, 1}, tbl.ElementIDs)
	assert.Equal(t, []int{0, Inactive}, tbl.Elements)
	assert.Equal(t, []int{1, 2}, tbl.Attributes)
	assert.Equal(t, []float64{1, 1, 1}, tbl.Weights)
	assert.Len(t, tbl.ElemVerts[1], 2)

	_, err = NewDomainTable(m, []int{9})
	assert.True(t, errors.Is(err, ErrEmptySelection))
}

func TestMask(t *testing.T) {
	m := twoTriangles(t, []int{1, 2})
	tbl, err := NewDomainTable(m, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 1}, tbl.Weights)

	is2 := func(attr int) bool { return attr == 2 }
	mt := tbl.Mask("2", is2)
	require.NoError(t, mt.Verify())
	assert.NotEqual(t, tbl.ID, mt.ID)
	assert.Equal(t, []int{Inactive, 1}, mt.Elements)
	assert.Equal(t, []float64{0, 1, 1, 1}, mt.Weights)
	assert.Equal(t, []float64{0, 1, 1, 1}, mt.ActiveMask())
	assert.Equal(t, []float64{1, 1, 1, 1}, mt.Divisor())
	// the source table is untouched
	assert.Equal(t, []int{0, 1}, tbl.Elements)
	// masked tables may leave vertices without data
	assert.NoError(t, tbl.Mask("none", func(int) bool { return false }).Verify())

	// masks are reused by name and their IDs are stable
	assert.Same(t, mt, tbl.Mask("2", is2))
	again, err := NewDomainTable(m, nil)
	require.NoError(t, err)
	again.ID = tbl.ID
	assert.Equal(t, mt.ID, again.Mask("2", is2).ID)
	assert.NotEqual(t, mt.ID, tbl.Mask("none", nil).ID)
}

func TestBoundaryTable(t *testing.T) {
	m, err := mesh.NewRectangle(2, 2, 0, 1, 0, 1, nil)
	require.NoError(t, err)
	tbl, err := NewBoundaryTable(m, []int{mesh.BdrBottom})
	require.NoError(t, err)
	require.NoError(t, tbl.Verify())
	assert.True(t, tbl.IsBoundary())
	assert.Len(t, tbl.BdrElements, 2)
	assert.Equal(t, []int{0, 1, 2}, tbl.Vertices)
	for _, e := range tbl.Elements {
		assert.NotEqual(t, Inactive, e)
	}
	// the middle bottom vertex belongs to three triangles
	assert.Equal(t, []float64{2, 3, 1}, tbl.Weights)

	_, err = NewBoundaryTable(m, []int{42})
	assert.True(t, errors.Is(err, ErrEmptySelection))
}

func TestScatter(t *testing.T) {
	m := twoTriangles(t, nil)
	tbl, err := Build(m, [][]int{{3, 1}, {1, 2}}, nil)
	require.NoError(t, err)
	out, err := tbl.Scatter(value.Column([]float64{10, 20, 30}))
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 10, 10, 20}, out.Float64s())
	_, err = tbl.Scatter(value.Column([]float64{1}))
	assert.True(t, errors.Is(err, value.ErrShape))

	c := tbl.Coordinates()
	assert.Equal(t, 3, c.Rows)
	assert.Equal(t, []float64{1, 0, 0, 1, 1, 1}, c.Float64s())
}

func TestEdgeDetect(t *testing.T) {
	edges := EdgeDetect([][]int{{0, 1, 2}, {1, 3, 2}})
	assert.Equal(t, []Edge{{0, 1}, {0, 2}, {1, 3}, {2, 3}}, edges)
	assert.Equal(t, []int{0, 1, 0, 2, 1, 3, 2, 3}, EdgeIndices(edges))

	// a shared edge listed three times survives
	edges = EdgeDetect([][]int{{0, 1}, {1, 0}, {0, 1}})
	assert.Equal(t, []Edge{{0, 1}}, edges)
	assert.Empty(t, EdgeDetect(nil))
}
