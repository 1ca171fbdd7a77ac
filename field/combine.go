package field

import (
	"fmt"

	"github.com/notargets/DGField/value"
)

// Combined applies a binary operator to the values of two fields evaluated
// at the same frame
type Combined struct {
	base
	name string
	op   value.BinaryOp
	a, b Field
}

var _ Field = (*Combined)(nil)

// Combine returns the field op(a, b). name labels the operator in messages.
func Combine(name string, op value.BinaryOp, a, b Field) *Combined {
	return &Combined{
		base: newBase(a.IsComplex() || b.IsComplex()),
		name: name,
		op:   op,
		a:    a,
		b:    b,
	}
}

func Add(a, b Field) *Combined { return Combine("+", value.Add, a, b) }
func Sub(a, b Field) *Combined { return Combine("-", value.Sub, a, b) }
func Mul(a, b Field) *Combined { return Combine("*", value.Mul, a, b) }
func Div(a, b Field) *Combined { return Combine("/", value.Div, a, b) }

func (c *Combined) String() string { return fmt.Sprintf("(%v %s %v)", c.a, c.name, c.b) }

func (c *Combined) SetFrame(fr Frame) {
	c.a.SetFrame(fr)
	c.b.SetFrame(fr)
}

func (c *Combined) Evaluate() (value.Value, error) {
	va, err := c.a.Evaluate()
	if err != nil {
		return value.Value{}, err
	}
	vb, err := c.b.Evaluate()
	if err != nil {
		return value.Value{}, err
	}
	v, err := value.Apply(c.op, va, vb)
	if err != nil {
		return value.Value{}, fmt.Errorf("%v: %w", c, err)
	}
	return c.fix(v)
}

func (c *Combined) Nodal(ctx *NodalContext) (value.Value, error) {
	va, err := ctx.Nodal(c.a)
	if err != nil {
		return value.Value{}, err
	}
	vb, err := ctx.Nodal(c.b)
	if err != nil {
		return value.Value{}, err
	}
	v, err := value.Apply(c.op, va, vb)
	if err != nil {
		return value.Value{}, fmt.Errorf("%v: %w", c, err)
	}
	return c.fix(v)
}
