package field

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/expression"
	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/nodal"
	"github.com/notargets/DGField/source"
	"github.com/notargets/DGField/value"
)

// 2---3
// | \ |
// 0---1
func twoTriangles(t *testing.T) *mesh.Simplex {
	m, err := mesh.NewSimplex(2,
		[][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		[][]int{{0, 1, 2}, {1, 3, 2}}, []int{1, 2})
	require.NoError(t, err)
	return m
}

func domainContext(t *testing.T, m mesh.Accessor, ns Namespace) *NodalContext {
	tbl, err := nodal.NewDomainTable(m, nil)
	require.NoError(t, err)
	return &NodalContext{Table: tbl, Mesh: m, Namespace: ns, Cache: NewNodalCache()}
}

func frameAt(m mesh.Accessor, elem int, ns Namespace) Frame {
	T := m.ElementTransformation(elem)
	return Frame{Transform: T, Point: element.Centroid(T.Geometry()), Namespace: ns}
}

func TestConstantAndCoordinate(t *testing.T) {
	m := twoTriangles(t)
	c, err := ConstantOf(5)
	require.NoError(t, err)
	v, err := c.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 5., v.Real())

	ctx := domainContext(t, m, nil)
	v, err = ctx.Nodal(c)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5, 5}, v.Float64s())

	x := NewCoordinate(1)
	_, err = x.Evaluate()
	assert.True(t, errors.Is(err, ErrNoFrame))
	x.SetFrame(frameAt(m, 0, nil))
	v, err = x.Evaluate()
	require.NoError(t, err)
	assert.InDelta(t, 1./3, v.Real(), 1.e-14)

	v, err = ctx.Nodal(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1}, v.Float64s())

	pos, err := ctx.Nodal(NewCoordinate(0))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, pos.Shape)
	assert.Equal(t, 4, pos.Rows)

	_, err = NewConstant(value.Scalar(1)).Nodal(ctx)
	require.NoError(t, err)
	_, err = ConstantOf("five")
	assert.Error(t, err)
}

func TestExpressionPointAndNodal(t *testing.T) {
	m := twoTriangles(t)
	b, err := ConstantOf(3)
	require.NoError(t, err)
	ns := Namespace{"a": 2., "b": b}
	e, err := NewExpression("a + b", []string{"x", "y"})
	require.NoError(t, err)

	e.SetFrame(frameAt(m, 1, ns))
	v, err := e.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 5., v.Real())

	v, err = domainContext(t, m, ns).Nodal(e)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5, 5}, v.Float64s())
}

func TestNamespaceFuncOverridesParserBuiltin(t *testing.T) {
	m := twoTriangles(t)
	ns := Namespace{"max": expression.Func(func(args ...value.Value) (value.Value, error) {
		return value.Scalar(7), nil
	})}
	e, err := NewExpression("max(x, 1)", []string{"x", "y"})
	require.NoError(t, err)
	e.SetFrame(frameAt(m, 0, ns))
	v, err := e.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 7., v.Real())
}

func TestExpressionCoordinatesBatched(t *testing.T) {
	m := twoTriangles(t)
	e, err := NewExpression("2*x + y", []string{"x", "y"})
	require.NoError(t, err)

	e.SetFrame(frameAt(m, 0, nil))
	v, err := e.Evaluate()
	require.NoError(t, err)
	assert.InDelta(t, 1., v.Real(), 1.e-14)

	v, err = domainContext(t, m, nil).Nodal(e)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 1, 3}, v.Float64s())
}

func TestNodalMatchesPointAtVertices(t *testing.T) {
	m, err := mesh.NewSimplex(2, [][]float64{{0, 0}, {2, 0}, {0, 1}}, [][]int{{0, 1, 2}}, nil)
	require.NoError(t, err)
	u, err := source.Interpolate(m, 1, func(x, dst []float64) error {
		dst[0] = x[0] - 3*x[1]
		return nil
	})
	require.NoError(t, err)
	ns := Namespace{}
	ns.AddCoordinates([]string{"x", "y"})
	ns.AddScalar("u", "", u, nil, nil)
	e, err := NewExpression("u*u + x", []string{"x", "y"})
	require.NoError(t, err)

	nodals, err := domainContext(t, m, ns).Nodal(e)
	require.NoError(t, err)
	require.Equal(t, 3, nodals.Rows)

	T := m.ElementTransformation(0)
	for slot, ip := range element.ReferenceVertices(element.Triangle) {
		e.SetFrame(Frame{Transform: T, Point: ip, Namespace: ns})
		v, err := e.Evaluate()
		require.NoError(t, err)
		assert.InDelta(t, v.Real(), nodals.Row(slot).Real(), 1.e-12)
	}
}

func TestGuardedExpressionMatchesPoint(t *testing.T) {
	m, err := mesh.NewSimplex(2, [][]float64{{0, 0}, {1, 0}, {0, 1}}, [][]int{{0, 1, 2}}, nil)
	require.NoError(t, err)
	e, err := NewExpression("x > 0 ? 1/x : 0", []string{"x", "y"})
	require.NoError(t, err)

	nodals, err := domainContext(t, m, nil).Nodal(e)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, nodals.Float64s())

	T := m.ElementTransformation(0)
	for slot, ip := range element.ReferenceVertices(element.Triangle) {
		e.SetFrame(Frame{Transform: T, Point: ip})
		v, err := e.Evaluate()
		require.NoError(t, err)
		assert.Equal(t, v.Real(), nodals.Row(slot).Real())
	}
}

func TestDomainNodalAveragesSharedVertices(t *testing.T) {
	m := twoTriangles(t)
	d := NewDomain()
	require.NoError(t, d.AddConstant(1, []int{1}))
	require.NoError(t, d.AddConstant(3, []int{2}))

	v, err := domainContext(t, m, nil).Nodal(d)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 3}, v.Float64s())
}

func TestDomainReusesPartitionCache(t *testing.T) {
	m := twoTriangles(t)
	d := NewDomain()
	require.NoError(t, d.AddConstant(1, []int{1}))
	require.NoError(t, d.AddConstant(3, []int{2}))
	ctx := domainContext(t, m, nil)

	_, err := d.Nodal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ctx.Cache.Len())
	v, err := d.Nodal(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 3}, v.Float64s())
	assert.Equal(t, 2, ctx.Cache.Len())
	hits, _ := ctx.Cache.Stats()
	assert.Equal(t, 2, hits)
}

func TestDomainCountsTouchingPartitions(t *testing.T) {
	m := twoTriangles(t)
	d := NewDomain()
	require.NoError(t, d.AddExpression("x", []string{"x", "y"}, []int{1}))
	require.NoError(t, d.AddConstant(5, []int{2}))

	// vertex 2 sits at x = 0, where partition 1 is zero but still counts
	v, err := domainContext(t, m, nil).Nodal(d)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 2.5, 5}, v.Float64s())
}

func TestDomainLastMatchWins(t *testing.T) {
	m := twoTriangles(t)
	d := NewDomain()
	require.NoError(t, d.AddConstant(10, []int{1, 2}))
	require.NoError(t, d.AddConstant(20, []int{2}))
	assert.Len(t, d.Keys(), 2)

	d.SetFrame(frameAt(m, 0, nil))
	v, err := d.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 10., v.Real())

	d.SetFrame(frameAt(m, 1, nil))
	v, err = d.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 20., v.Real())

	// re-adding a key replaces the partition in place
	require.NoError(t, d.AddConstant(30, []int{2}))
	assert.Len(t, d.Keys(), 2)
	d.SetFrame(frameAt(m, 1, nil))
	v, err = d.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 30., v.Real())
}

func TestDomainNoMatchIsZero(t *testing.T) {
	m := twoTriangles(t)
	d := NewDomain()
	require.NoError(t, d.AddConstant(4, []int{1}))
	d.SetFrame(frameAt(m, 1, nil))
	v, err := d.Evaluate()
	require.NoError(t, err)
	assert.True(t, v.IsScalar())
	assert.Equal(t, 0., v.Real())

	var empty Domain
	_, err = empty.Evaluate()
	assert.True(t, errors.Is(err, ErrNoFrame))
}

func TestFEFieldConstantReconstructs(t *testing.T) {
	m, err := mesh.NewRectangle(3, 2, 0, 1, 0, 1, nil)
	require.NoError(t, err)
	dofs := make([]float64, m.NumVertices())
	for i := range dofs {
		dofs[i] = 7
	}
	u, err := source.NewContinuous(m, 1, dofs)
	require.NoError(t, err)
	f := NewFEField(u, WithComponent(1))

	v, err := domainContext(t, m, nil).Nodal(f)
	require.NoError(t, err)
	require.Equal(t, m.NumVertices(), v.Rows)
	for _, x := range v.Float64s() {
		assert.InDelta(t, 7., x, 1.e-14)
	}

	f.SetFrame(frameAt(m, 3, nil))
	p, err := f.Evaluate()
	require.NoError(t, err)
	assert.InDelta(t, 7., p.Real(), 1.e-14)
}

func TestFEFieldComplex(t *testing.T) {
	m := twoTriangles(t)
	re, err := source.NewContinuous(m, 1, []float64{1, 1, 1, 1})
	require.NoError(t, err)
	im, err := source.NewContinuous(m, 1, []float64{2, 2, 2, 2})
	require.NoError(t, err)
	f := NewFEField(re, WithImaginary(im))
	assert.True(t, f.IsComplex())

	f.SetFrame(frameAt(m, 0, nil))
	v, err := f.Evaluate()
	require.NoError(t, err)
	assert.True(t, v.IsScalar())
	assert.InDelta(t, 1., real(v.Data[0]), 1.e-14)
	assert.InDelta(t, 2., imag(v.Data[0]), 1.e-14)
}

func TestFEFieldGradient(t *testing.T) {
	m, err := mesh.NewRectangle(2, 2, 0, 2, 0, 1, nil)
	require.NoError(t, err)
	u, err := source.Interpolate(m, 1, func(x, dst []float64) error {
		dst[0] = 3*x[0] - 2*x[1] + 1
		return nil
	})
	require.NoError(t, err)
	g := NewFEField(u, WithDeriver(source.Gradient{Mesh: m}))

	g.SetFrame(frameAt(m, 5, nil))
	v, err := g.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, []int{2}, v.Shape)
	assert.InDeltaSlice(t, []float64{3, -2}, v.Float64s(), 1.e-12)

	nod, err := domainContext(t, m, nil).Nodal(g)
	require.NoError(t, err)
	for r := 0; r < nod.Rows; r++ {
		assert.InDeltaSlice(t, []float64{3, -2}, nod.Row(r).Float64s(), 1.e-12)
	}
}

func TestBoundaryNormals(t *testing.T) {
	m, err := mesh.NewRectangle(2, 2, 0, 1, 0, 1, nil)
	require.NoError(t, err)
	tbl, err := nodal.NewBoundaryTable(m, []int{mesh.BdrBottom, mesh.BdrRight, mesh.BdrTop, mesh.BdrLeft})
	require.NoError(t, err)
	ctx := &NodalContext{Table: tbl, Mesh: m, Cache: NewNodalCache()}

	v, err := ctx.Nodal(NewNormal(0))
	require.NoError(t, err)
	require.Equal(t, 8, v.Rows)
	s := 1 / math.Sqrt2
	for r := 0; r < v.Rows; r++ {
		x := tbl.Location(r)
		want := []float64{0, 0}
		switch {
		case x[0] == 0:
			want[0] = -1
		case x[0] == 1:
			want[0] = 1
		}
		switch {
		case x[1] == 0:
			want[1] = -1
		case x[1] == 1:
			want[1] = 1
		}
		if want[0] != 0 && want[1] != 0 {
			want[0], want[1] = want[0]*s, want[1]*s
		}
		assert.InDeltaSlicef(t, want, v.Row(r).Float64s(), 1.e-12, "vertex at %v", x)
	}

	_, err = domainContext(t, m, nil).Nodal(NewNormal(1))
	assert.True(t, errors.Is(err, ErrNeedsBoundary))
}

func TestBoundaryNormalsCancel(t *testing.T) {
	m, err := mesh.NewRectangle(2, 1, 0, 2, 0, 1, nil)
	require.NoError(t, err)
	// 0→1 and 2→1 meet at vertex 1 with opposite normals
	require.NoError(t, m.SetBoundary([][]int{{0, 1}, {2, 1}}, []int{1, 1}))
	tbl, err := nodal.NewBoundaryTable(m, []int{1})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, tbl.Vertices)

	v, err := (&NodalContext{Table: tbl, Mesh: m}).Nodal(NewNormal(0))
	require.NoError(t, err)
	for _, x := range v.Row(1).Float64s() {
		assert.True(t, math.IsNaN(x))
	}
	assert.InDeltaSlice(t, []float64{0, -1}, v.Row(0).Float64s(), 1.e-12)
	assert.InDeltaSlice(t, []float64{0, 1}, v.Row(2).Float64s(), 1.e-12)
	assert.True(t, v.HasNaN())
}

func TestSurfaceExpression(t *testing.T) {
	m, err := mesh.NewRectangle(2, 2, 0, 1, 0, 1, nil)
	require.NoError(t, err)
	e, err := NewSurfaceExpression("nx + 2*ny", []string{"x", "y"})
	require.NoError(t, err)

	b := m.BdrElementsByAttribute(mesh.BdrTop)[0]
	T := m.BdrTransformation(b)
	e.SetFrame(Frame{Transform: T, Point: element.Centroid(T.Geometry())})
	v, err := e.Evaluate()
	require.NoError(t, err)
	assert.InDelta(t, 2., v.Real(), 1.e-12)

	tbl, err := nodal.NewBoundaryTable(m, []int{mesh.BdrRight})
	require.NoError(t, err)
	v, err = (&NodalContext{Table: tbl, Mesh: m}).Nodal(e)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 1}, v.Float64s(), 1.e-12)
}

func TestFunc(t *testing.T) {
	m := twoTriangles(t)
	f := NewFunc(func(x []float64, tm float64) (value.Value, error) {
		return value.Scalar(x[0] + x[1] + tm), nil
	})
	ctx := domainContext(t, m, nil)
	ctx.Time = 1
	v, err := ctx.Nodal(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 3}, v.Float64s())

	fr := frameAt(m, 0, nil)
	fr.Time = 2
	f.SetFrame(fr)
	p, err := f.Evaluate()
	require.NoError(t, err)
	assert.InDelta(t, 8./3, p.Real(), 1.e-14)
}

func TestShapeChanged(t *testing.T) {
	m := twoTriangles(t)
	vector := false
	f := NewFunc(func(x []float64, _ float64) (value.Value, error) {
		if vector {
			return value.Vector(x...), nil
		}
		return value.Scalar(x[0]), nil
	})
	f.SetFrame(frameAt(m, 0, nil))
	_, err := f.Evaluate()
	require.NoError(t, err)
	vector = true
	_, err = f.Evaluate()
	assert.True(t, errors.Is(err, ErrShapeChanged))
}

func TestRecursiveExpression(t *testing.T) {
	m := twoTriangles(t)
	ns := Namespace{}
	e, err := NewExpression("a + 1", nil)
	require.NoError(t, err)
	ns["a"] = e

	e.SetFrame(frameAt(m, 0, ns))
	_, err = e.Evaluate()
	assert.True(t, errors.Is(err, ErrRecursive))

	_, err = domainContext(t, m, ns).Nodal(e)
	assert.True(t, errors.Is(err, ErrRecursive))
}

func TestNodalCache(t *testing.T) {
	m := twoTriangles(t)
	u, err := source.NewContinuous(m, 1, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	ns := Namespace{}
	ns.AddScalar("u", "", u, nil, nil)
	require.NoError(t, ns.AddExpression("a", "", nil, "2*u", nil, nil))
	require.NoError(t, ns.AddExpression("b", "", nil, "a + u", nil, nil))
	b, ok := ns.Field("b")
	require.True(t, ok)

	ctx := domainContext(t, m, ns)
	v, err := ctx.Nodal(b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 6, 9, 12}, v.Float64s(), 1.e-12)
	hits, misses := ctx.Cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 3, misses)
	assert.Equal(t, 3, ctx.Cache.Len())

	_, err = ctx.Nodal(b)
	require.NoError(t, err)
	hits, _ = ctx.Cache.Stats()
	assert.Equal(t, 2, hits)

	ctx.Cache.Reset()
	assert.Equal(t, 0, ctx.Cache.Len())
}

func TestCombine(t *testing.T) {
	m := twoTriangles(t)
	two, err := ConstantOf(2)
	require.NoError(t, err)
	f := Mul(two, Add(NewCoordinate(1), NewCoordinate(2)))

	f.SetFrame(frameAt(m, 1, nil))
	v, err := f.Evaluate()
	require.NoError(t, err)
	assert.InDelta(t, 2*(2./3+2./3), v.Real(), 1.e-14)

	v, err = domainContext(t, m, nil).Nodal(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 2, 4}, v.Float64s())
}

func TestNamespace(t *testing.T) {
	m := twoTriangles(t)
	u, err := source.NewContinuous(m, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40})
	require.NoError(t, err)
	ns := Namespace{}
	ns.AddComponents("u", "_1", []string{"x", "y"}, u, nil, nil)
	assert.Equal(t, []string{"u_1", "u_1x", "u_1y"}, ns.Fields())

	uy, ok := ns.Field("u_1y")
	require.True(t, ok)
	v, err := domainContext(t, m, ns).Nodal(uy)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 20, 30, 40}, v.Float64s(), 1.e-12)

	require.NoError(t, ns.AddExpression("eps", "_1", nil, "k*2", []string{"k"}, []int{1}))
	require.NoError(t, ns.AddConstant("eps", "_1", 5, []int{2}))
	d, ok := ns["eps_1"].(*Domain)
	require.True(t, ok)
	p, ok := d.Partition(d.Keys()[0])
	require.True(t, ok)
	assert.True(t, p.(*Expression).Program().References("k_1"))

	err = ns.AddConstant("u", "_1", 1, []int{1})
	assert.Error(t, err)

	c := ns.Clone()
	delete(c, "u_1")
	_, ok = ns.Field("u_1")
	assert.True(t, ok)

	var empty Namespace
	_, ok = empty.Field("u")
	assert.False(t, ok)
}
