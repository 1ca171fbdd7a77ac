// Package evaluator is the entry point for field evaluation: Point
// evaluates a field at one integration point, a Nodal evaluator
// reconstructs fields at the vertices of a domain or boundary selection.
package evaluator

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/notargets/DGField/field"
	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/nodal"
	"github.com/notargets/DGField/partitions"
	"github.com/notargets/DGField/value"
)

// DefaultIndVars names the coordinate components of expressions compiled
// by Eval
var DefaultIndVars = []string{"x", "y", "z"}

// Point sets the frame of f and evaluates it
func Point(f field.Field, fr field.Frame) (value.Value, error) {
	f.SetFrame(fr)
	return f.Evaluate()
}

// Option configures a Nodal evaluator
type Option func(*Nodal)

// WithLogger sets the logger, hclog.NewNullLogger() by default
func WithLogger(l hclog.Logger) Option {
	return func(n *Nodal) { n.log = l }
}

// WithRegisterer registers the evaluator metrics with r
func WithRegisterer(r prometheus.Registerer) Option {
	return func(n *Nodal) { n.reg = r }
}

// WithIndVars sets the coordinate names bound by Eval
func WithIndVars(names ...string) Option {
	return func(n *Nodal) { n.indVars = names }
}

// Nodal reconstructs fields over one vertex selection. The incidence table
// is built once; reconstructions share a cache that is dropped by Reset.
// Not safe for concurrent use.
type Nodal struct {
	mesh    mesh.Accessor
	table   *nodal.Table
	cache   *field.NodalCache
	time    float64
	indVars []string

	log     hclog.Logger
	reg     prometheus.Registerer
	metrics *metrics
}

type metrics struct {
	reconstructions prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	duration        prometheus.Histogram
}

func newMetrics(r prometheus.Registerer, selection string) (*metrics, error) {
	labels := prometheus.Labels{"selection": selection}
	m := &metrics{
		reconstructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dgfield",
			Subsystem:   "nodal",
			Name:        "reconstructions_total",
			Help:        "Number of nodal reconstructions.",
			ConstLabels: labels,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dgfield",
			Subsystem:   "nodal",
			Name:        "cache_hits_total",
			Help:        "Sub-field reconstructions served from the cache.",
			ConstLabels: labels,
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dgfield",
			Subsystem:   "nodal",
			Name:        "cache_misses_total",
			Help:        "Sub-field reconstructions computed.",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dgfield",
			Subsystem:   "nodal",
			Name:        "reconstruct_seconds",
			Help:        "Duration of nodal reconstructions.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1.e-5, 4, 10),
		}),
	}
	if r == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.reconstructions, m.cacheHits, m.cacheMisses, m.duration} {
		if err := r.Register(c); err != nil {
			return nil, fmt.Errorf("registering nodal metrics: %w", err)
		}
	}
	return m, nil
}

// NewDomain builds an evaluator over the elements with attributes in attrs,
// every element when attrs is nil
func NewDomain(m mesh.Accessor, attrs []int, opts ...Option) (*Nodal, error) {
	t, err := nodal.NewDomainTable(m, attrs)
	if err != nil {
		return nil, err
	}
	return newNodal(m, t, "domain", opts)
}

// NewBoundary builds an evaluator over the boundary elements with
// attributes in battrs
func NewBoundary(m mesh.Accessor, battrs []int, opts ...Option) (*Nodal, error) {
	t, err := nodal.NewBoundaryTable(m, battrs)
	if err != nil {
		return nil, err
	}
	return newNodal(m, t, "boundary", opts)
}

func newNodal(m mesh.Accessor, t *nodal.Table, selection string, opts []Option) (*Nodal, error) {
	n := &Nodal{
		mesh:    m,
		table:   t,
		cache:   field.NewNodalCache(),
		indVars: DefaultIndVars,
		log:     hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if len(n.indVars) > m.SpaceDimension() {
		n.indVars = n.indVars[:m.SpaceDimension()]
	}
	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("%s selection: %w", selection, err)
	}
	var err error
	if n.metrics, err = newMetrics(n.reg, selection); err != nil {
		return nil, err
	}
	n.log = n.log.Named(selection)
	n.log.Debug("incidence table built",
		"vertices", t.NumVertices(), "elements", t.NumElements(), "entities", len(t.Refs))
	return n, nil
}

// Table returns the incidence table of the selection
func (n *Nodal) Table() *nodal.Table { return n.table }

// SetTime sets the time passed to time dependent fields
func (n *Nodal) SetTime(t float64) {
	if t != n.time {
		n.cache.Reset()
	}
	n.time = t
}

// Reset drops cached reconstructions, e.g. after the solution changed
func (n *Nodal) Reset() { n.cache.Reset() }

// Vertices reconstructs f, one row per unique vertex of the selection
func (n *Nodal) Vertices(f field.Field, ns field.Namespace) (value.Value, error) {
	start := time.Now()
	h0, m0 := n.cache.Stats()
	if d, ok := f.(*field.Domain); ok {
		n.logCoverage(d)
	}
	ctx := &field.NodalContext{
		Table:     n.table,
		Mesh:      n.mesh,
		Namespace: ns,
		Cache:     n.cache,
		Time:      n.time,
	}
	v, err := ctx.Nodal(f)
	if err != nil {
		return value.Value{}, fmt.Errorf("reconstructing %v: %w", f, err)
	}
	if v, err = perVertex(v, n.table.NumVertices()); err != nil {
		return value.Value{}, fmt.Errorf("reconstructing %v: %w", f, err)
	}
	h1, m1 := n.cache.Stats()
	n.metrics.reconstructions.Inc()
	n.metrics.cacheHits.Add(float64(h1 - h0))
	n.metrics.cacheMisses.Add(float64(m1 - m0))
	n.metrics.duration.Observe(time.Since(start).Seconds())
	if v.HasNaN() {
		n.log.Warn("reconstruction has NaN vertices", "field", fmt.Sprint(f))
	}
	return v, nil
}

// Reconstruct returns the coordinates and values of f at every entry of
// the selection references, rows in reference order
func (n *Nodal) Reconstruct(f field.Field, ns field.Namespace) (coords, values value.Value, err error) {
	v, err := n.Vertices(f, ns)
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	if coords, err = n.table.Scatter(n.table.Coordinates()); err != nil {
		return value.Value{}, value.Value{}, err
	}
	if values, err = n.table.Scatter(v); err != nil {
		return value.Value{}, value.Value{}, err
	}
	return coords, values, nil
}

// EvalOption configures Eval
type EvalOption func(*evalOptions)

type evalOptions struct {
	edgeOnly bool
	fieldOpt []field.Option
}

// EdgeOnly restricts the output to the wireframe of the selection, two
// rows per edge
func EdgeOnly() EvalOption { return func(o *evalOptions) { o.edgeOnly = true } }

// ComplexResult declares the compiled expression complex valued
func ComplexResult() EvalOption {
	return func(o *evalOptions) { o.fieldOpt = append(o.fieldOpt, field.Complex()) }
}

// Eval compiles src, a surface expression on a boundary selection, and
// reconstructs it like Reconstruct
func (n *Nodal) Eval(src string, ns field.Namespace, opts ...EvalOption) (coords, values value.Value, err error) {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	var e *field.Expression
	if n.table.IsBoundary() {
		e, err = field.NewSurfaceExpression(src, n.indVars, o.fieldOpt...)
	} else {
		e, err = field.NewExpression(src, n.indVars, o.fieldOpt...)
	}
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	if !o.edgeOnly {
		return n.Reconstruct(e, ns)
	}
	v, err := n.Vertices(e, ns)
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	idx := nodal.EdgeIndices(nodal.EdgeDetect(n.table.Inverse))
	if coords, err = nodal.Gather(n.table.Coordinates(), idx); err != nil {
		return value.Value{}, value.Value{}, err
	}
	if values, err = nodal.Gather(v, idx); err != nil {
		return value.Value{}, value.Value{}, err
	}
	return coords, values, nil
}

// logCoverage reports the incident elements no partition of d covers
func (n *Nodal) logCoverage(d *field.Domain) {
	if !n.log.IsDebug() {
		return
	}
	layout := partitions.NewLayout(n.table.Attributes, d.Keys())
	if err := layout.ValidateLayout(); err != nil {
		n.log.Debug("partition layout", "error", err)
		return
	}
	// elements each partition wins in point mode
	wins := make([]int, layout.NumPartitions)
	for elem := 0; elem < layout.TotalElements; elem++ {
		if p := layout.GetPartition(elem); p >= 0 {
			wins[p]++
		}
	}
	n.log.Debug("partition coverage",
		"partitions", layout.NumPartitions,
		"elements", layout.TotalElements,
		"uncovered", len(layout.Uncovered()),
		"overlapping", len(layout.Overlapping()),
		"wins", fmt.Sprint(wins))
}

func perVertex(v value.Value, nv int) (value.Value, error) {
	if v.Rows == nv {
		return v, nil
	}
	return v.Broadcast(nv, v.Shape)
}
