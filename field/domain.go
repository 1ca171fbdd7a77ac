package field

import (
	"fmt"
	"strings"

	"github.com/notargets/DGField/partitions"
	"github.com/notargets/DGField/value"
)

type partition struct {
	key partitions.Key
	f   Field
}

// Domain is a piecewise field keyed by sets of element attributes.
// Partitions may overlap: in point mode the last registered partition
// containing the element attribute wins.
type Domain struct {
	base
	parts []partition

	active   Field
	hasFrame bool
}

var _ Field = (*Domain)(nil)

func NewDomain(opts ...Option) *Domain {
	o := applyOptions(opts)
	return &Domain{base: newBase(o.isComplex)}
}

func (d *Domain) String() string {
	parts := make([]string, len(d.parts))
	for i, p := range d.parts {
		parts[i] = fmt.Sprintf("[%v]: %v", p.key, p.f)
	}
	return "Domain(" + strings.Join(parts, ", ") + ")"
}

// Add registers f on the attributes of key. An existing partition with the
// same key is replaced in place.
func (d *Domain) Add(key partitions.Key, f Field) {
	if f.IsComplex() {
		d.isComplex = true
	}
	for i := range d.parts {
		if d.parts[i].key.Equal(key) {
			d.parts[i].f = f
			return
		}
	}
	d.parts = append(d.parts, partition{key: key, f: f})
}

// AddExpression registers an Expression partition on domains
func (d *Domain) AddExpression(src string, indVars []string, domains []int, opts ...Option) error {
	e, err := NewExpression(src, indVars, opts...)
	if err != nil {
		return err
	}
	d.Add(partitions.NewKey(domains...), e)
	return nil
}

// AddConstant registers a Constant partition on domains
func (d *Domain) AddConstant(x any, domains []int) error {
	c, err := ConstantOf(x)
	if err != nil {
		return err
	}
	d.Add(partitions.NewKey(domains...), c)
	return nil
}

// Keys returns the partition keys in registration order
func (d *Domain) Keys() []partitions.Key {
	keys := make([]partitions.Key, len(d.parts))
	for i, p := range d.parts {
		keys[i] = p.key
	}
	return keys
}

// Partition returns the sub-field registered on key
func (d *Domain) Partition(key partitions.Key) (Field, bool) {
	for _, p := range d.parts {
		if p.key.Equal(key) {
			return p.f, true
		}
	}
	return nil, false
}

// SetFrame forwards fr to every partition containing the element attribute
// and makes the last of them active
func (d *Domain) SetFrame(fr Frame) {
	d.active, d.hasFrame = nil, fr.Transform != nil
	if !d.hasFrame {
		return
	}
	attr := fr.Transform.Attribute()
	for _, p := range d.parts {
		if p.key.Contains(attr) {
			p.f.SetFrame(fr)
			d.active = p.f
		}
	}
}

// Evaluate returns the active partition's value, zero when none matched
func (d *Domain) Evaluate() (value.Value, error) {
	if !d.hasFrame {
		return value.Value{}, ErrNoFrame
	}
	if d.active == nil {
		return d.zero(0), nil
	}
	v, err := d.active.Evaluate()
	if err != nil {
		return value.Value{}, err
	}
	return d.fix(v)
}

// Nodal reconstructs every partition over the table masked to its
// attributes and averages partitions that share a vertex. Vertices no
// partition touches are zero.
func (d *Domain) Nodal(ctx *NodalContext) (value.Value, error) {
	t := ctx.Table
	nv := t.NumVertices()
	count := make([]float64, nv)
	sum := d.zero(nv)
	for _, p := range d.parts {
		mt := t.Mask(p.key.String(), p.key.Contains)
		v, err := ctx.WithTable(mt).Nodal(p.f)
		if err != nil {
			return value.Value{}, fmt.Errorf("partition [%v]: %w", p.key, err)
		}
		if v, err = perVertex(v, mt); err != nil {
			return value.Value{}, fmt.Errorf("partition [%v]: %w", p.key, err)
		}
		mask := mt.ActiveMask()
		if v, err = value.ScaleRows(v, mask); err != nil {
			return value.Value{}, err
		}
		if sum, err = value.Apply(value.Add, sum, v); err != nil {
			return value.Value{}, fmt.Errorf("partition [%v]: %w", p.key, err)
		}
		for i, m := range mask {
			count[i] += m
		}
	}
	out, err := value.DivideRows(sum, count)
	if err != nil {
		return value.Value{}, err
	}
	return d.fix(out)
}
