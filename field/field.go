// Package field implements the field algebra: fields evaluated at an
// integration point of an element (point mode) or reconstructed at the
// vertices of a nodal.Table (nodal mode).
package field

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/nodal"
	"github.com/notargets/DGField/value"
)

var (
	// ErrNoFrame is returned when a position dependent field is evaluated
	// before SetFrame
	ErrNoFrame = errors.New("field evaluated without a frame")
	// ErrShapeChanged is returned when a field produces a value whose shape
	// differs from its first evaluation
	ErrShapeChanged = errors.New("field shape changed")
	// ErrNeedsBoundary is returned when a surface field is reconstructed
	// over a domain selection
	ErrNeedsBoundary = errors.New("field requires a boundary selection")
	// ErrRecursive is returned when a field depends on itself
	ErrRecursive = errors.New("recursive field definition")
)

// ID identifies a field instance for the lifetime of the field
type ID = uuid.UUID

// Field is a scalar, vector or complex quantity defined over a mesh
type Field interface {
	ID() ID
	IsComplex() bool
	// SetFrame records the evaluation context used by the next Evaluate
	SetFrame(fr Frame)
	// Evaluate returns the value at the last frame
	Evaluate() (value.Value, error)
	// Nodal returns one row per vertex of ctx.Table
	Nodal(ctx *NodalContext) (value.Value, error)
}

// Frame is the context of one point evaluation
type Frame struct {
	Transform element.Transformation
	Point     element.IntPoint
	Namespace Namespace
	Time      float64
}

// Position returns the physical location of the frame point in dst
func (fr Frame) Position(dst []float64) ([]float64, error) {
	if fr.Transform == nil {
		return nil, ErrNoFrame
	}
	return fr.Transform.Transform(fr.Point, dst), nil
}

// NodalContext is the context of one nodal reconstruction
type NodalContext struct {
	Table     *nodal.Table
	Mesh      mesh.Accessor
	Namespace Namespace
	Cache     *NodalCache
	Time      float64
}

// WithTable returns a copy of ctx over a different table
func (ctx *NodalContext) WithTable(t *nodal.Table) *NodalContext {
	c := *ctx
	c.Table = t
	return &c
}

// Nodal reconstructs f through the cache
func (ctx *NodalContext) Nodal(f Field) (value.Value, error) {
	if ctx.Cache == nil {
		return f.Nodal(ctx)
	}
	key := cacheKey{field: f.ID(), table: ctx.Table.ID}
	if v, ok := ctx.Cache.get(key); ok {
		return v, nil
	}
	v, err := f.Nodal(ctx)
	if err != nil {
		return value.Value{}, err
	}
	ctx.Cache.put(key, v)
	return v, nil
}

type cacheKey struct {
	field ID
	table uuid.UUID
}

// NodalCache holds nodal results keyed by field and table. Results are
// shared and must not be modified. Not safe for concurrent use.
type NodalCache struct {
	entries      map[cacheKey]value.Value
	hits, misses int
}

func NewNodalCache() *NodalCache {
	return &NodalCache{entries: make(map[cacheKey]value.Value)}
}

func (c *NodalCache) get(k cacheKey) (value.Value, bool) {
	v, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *NodalCache) put(k cacheKey, v value.Value) { c.entries[k] = v }

// Reset drops every entry
func (c *NodalCache) Reset() {
	c.entries = make(map[cacheKey]value.Value)
	c.hits, c.misses = 0, 0
}

func (c *NodalCache) Len() int { return len(c.entries) }

// Stats returns the hit and miss counts since the last Reset
func (c *NodalCache) Stats() (hits, misses int) { return c.hits, c.misses }

// base carries the identity, complex flag and shape of a field
type base struct {
	id        ID
	isComplex bool
	shape     []int
	shapeSet  bool
}

func newBase(isComplex bool) base {
	return base{id: uuid.New(), isComplex: isComplex}
}

func (b *base) ID() ID          { return b.id }
func (b *base) IsComplex() bool { return b.isComplex }

// fix records the shape of the first result and rejects later changes
func (b *base) fix(v value.Value) (value.Value, error) {
	if !b.shapeSet {
		b.shape = append([]int(nil), v.Shape...)
		b.shapeSet = true
		return v, nil
	}
	if len(v.Shape) != len(b.shape) {
		return value.Value{}, fmt.Errorf("%w: %v, was %v", ErrShapeChanged, v.Shape, b.shape)
	}
	for i := range b.shape {
		if v.Shape[i] != b.shape[i] {
			return value.Value{}, fmt.Errorf("%w: %v, was %v", ErrShapeChanged, v.Shape, b.shape)
		}
	}
	return v, nil
}

// zero is a zero of the recorded shape, or a scalar before the first
// evaluation
func (b *base) zero(rows int) value.Value {
	v := value.Zeros(rows, b.shape)
	v.Complex = b.isComplex
	return v
}

// perVertex broadcasts v to one row per table vertex
func perVertex(v value.Value, t *nodal.Table) (value.Value, error) {
	nv := t.NumVertices()
	if v.Rows == nv {
		return v, nil
	}
	if v.Rows != 0 {
		return value.Value{}, fmt.Errorf("%w: %d rows for %d vertices", value.ErrShape, v.Rows, nv)
	}
	return v.Broadcast(nv, v.Shape)
}

// Option configures Expression, Func and Domain fields
type Option func(*options)

type options struct {
	isComplex bool
	shape     []int
}

// Complex declares the field complex valued
func Complex() Option { return func(o *options) { o.isComplex = true } }

// Shape declares the per-point shape of a Func field
func Shape(dims ...int) Option { return func(o *options) { o.shape = dims } }

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
