package field

import (
	"fmt"

	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/expression"
	"github.com/notargets/DGField/value"
)

// Expression is a field defined by an algebraic expression over the
// independent coordinates, namespace fields and namespace constants
type Expression struct {
	base
	prog    *expression.Program
	indVars []string
	surface bool

	fr       Frame
	hasFrame bool
	busy     bool
	env      expression.Env
	pos, nor []float64
}

var _ Field = (*Expression)(nil)

// NewExpression compiles src. indVars names the coordinate components, e.g.
// x, y, z.
func NewExpression(src string, indVars []string, opts ...Option) (*Expression, error) {
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Expression{
		base:    newBase(o.isComplex),
		prog:    prog,
		indVars: indVars,
		env:     make(expression.Env, len(prog.Names)),
	}, nil
}

// NewSurfaceExpression is an Expression that also binds the boundary normal
// as n and its components as n<indVar>, e.g. nx
func NewSurfaceExpression(src string, indVars []string, opts ...Option) (*Expression, error) {
	e, err := NewExpression(src, indVars, opts...)
	if err != nil {
		return nil, err
	}
	e.surface = true
	return e, nil
}

func (e *Expression) String() string {
	if e.surface {
		return "SurfaceExpression(" + e.prog.Source + ")"
	}
	return "Expression(" + e.prog.Source + ")"
}

// Program returns the compiled expression
func (e *Expression) Program() *expression.Program { return e.prog }

// SetFrame records fr and forwards it to every referenced namespace field
func (e *Expression) SetFrame(fr Frame) {
	e.fr, e.hasFrame = fr, true
	if e.busy {
		return
	}
	e.busy = true
	defer func() { e.busy = false }()
	for _, name := range e.prog.Names {
		if f, ok := fr.Namespace.Field(name); ok && f != Field(e) {
			f.SetFrame(fr)
		}
	}
}

// indVar returns the coordinate index bound to name
func (e *Expression) indVar(name string) (int, bool) {
	for k, v := range e.indVars {
		if v == name {
			return k, true
		}
	}
	return 0, false
}

// normalVar returns the normal component bound to name, -1 for n itself
func (e *Expression) normalVar(name string) (int, bool) {
	if !e.surface {
		return 0, false
	}
	if name == "n" {
		return -1, true
	}
	for k, v := range e.indVars {
		if name == "n"+v {
			return k, true
		}
	}
	return 0, false
}

func (e *Expression) enter() error {
	if e.busy {
		return fmt.Errorf("%w: %s", ErrRecursive, e.prog.Source)
	}
	e.busy = true
	return nil
}

func (e *Expression) Evaluate() (value.Value, error) {
	if !e.hasFrame {
		return value.Value{}, ErrNoFrame
	}
	if err := e.enter(); err != nil {
		return value.Value{}, err
	}
	defer func() { e.busy = false }()

	ns := e.fr.Namespace
	clear(e.env)
	for _, name := range e.prog.Names {
		if f, ok := ns.Field(name); ok {
			v, err := f.Evaluate()
			if err != nil {
				return value.Value{}, fmt.Errorf("%s: %w", name, err)
			}
			e.env[name] = v
			continue
		}
		if k, ok := e.indVar(name); ok {
			var err error
			if e.pos, err = e.fr.Position(e.pos); err != nil {
				return value.Value{}, err
			}
			if k < len(e.pos) {
				e.env[name] = value.Scalar(e.pos[k])
				continue
			}
		}
		if k, ok := e.normalVar(name); ok {
			if e.fr.Transform == nil {
				return value.Value{}, ErrNoFrame
			}
			var err error
			if e.nor, err = element.UnitNormal(e.fr.Transform, e.fr.Point, e.nor); err != nil {
				return value.Value{}, fmt.Errorf("%s: %w", name, err)
			}
			if k < 0 {
				e.env[name] = value.Vector(e.nor...)
			} else if k < len(e.nor) {
				e.env[name] = value.Scalar(e.nor[k])
			}
			continue
		}
		if x, ok := ns[name]; ok {
			e.env[name] = x
		}
	}
	v, err := e.prog.Eval(e.env)
	if err != nil {
		return value.Value{}, fmt.Errorf("evaluating %q: %w", e.prog.Source, err)
	}
	return e.fix(v)
}

// Nodal evaluates the referenced fields' nodal values, then the expression
// once per vertex row. Without field references the expression is
// evaluated once over the coordinate columns.
func (e *Expression) Nodal(ctx *NodalContext) (value.Value, error) {
	if err := e.enter(); err != nil {
		return value.Value{}, err
	}
	defer func() { e.busy = false }()

	var (
		t      = ctx.Table
		ns     = ctx.Namespace
		nv     = t.NumVertices()
		fields = make(map[string]value.Value)
		coords value.Value
		normal value.Value
		err    error
	)
	for _, name := range e.prog.Names {
		if f, ok := ns.Field(name); ok {
			if fields[name], err = ctx.Nodal(f); err != nil {
				return value.Value{}, fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		if _, ok := e.normalVar(name); ok && normal.Rows == 0 {
			if normal, err = vertexNormals(ctx); err != nil {
				return value.Value{}, fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	coords = t.Coordinates()

	// bind fills env for one row, or for all rows when row < 0
	bind := func(env expression.Env, row int) error {
		for _, name := range e.prog.Names {
			if v, ok := fields[name]; ok {
				env[name] = v.Row(row)
				continue
			}
			if k, ok := e.indVar(name); ok && k < coords.Size() {
				col, err := value.Index(coords, k)
				if err != nil {
					return err
				}
				env[name] = pick(col, row)
				continue
			}
			if k, ok := e.normalVar(name); ok {
				n := normal
				if k >= 0 {
					if n, err = value.Index(normal, k); err != nil {
						return err
					}
				}
				env[name] = pick(n, row)
				continue
			}
			if x, ok := ns[name]; ok {
				env[name] = x
			}
		}
		return nil
	}

	var out value.Value
	env := make(expression.Env, len(e.prog.Names))
	if len(fields) == 0 {
		if err = bind(env, -1); err != nil {
			return value.Value{}, err
		}
		if out, err = e.prog.Eval(env); err != nil {
			return value.Value{}, fmt.Errorf("evaluating %q: %w", e.prog.Source, err)
		}
		if out, err = perVertex(out, t); err != nil {
			return value.Value{}, err
		}
	} else {
		rows := make([]value.Value, nv)
		for r := 0; r < nv; r++ {
			clear(env)
			if err = bind(env, r); err != nil {
				return value.Value{}, err
			}
			if rows[r], err = e.prog.Eval(env); err != nil {
				return value.Value{}, fmt.Errorf("evaluating %q at vertex %d: %w", e.prog.Source, t.Vertices[r], err)
			}
		}
		if out, err = value.Join(rows); err != nil {
			return value.Value{}, fmt.Errorf("evaluating %q: %w", e.prog.Source, err)
		}
	}
	if out, err = value.ScaleRows(out, t.ActiveMask()); err != nil {
		return value.Value{}, err
	}
	return e.fix(out)
}

// pick returns row r of a batched value, or v itself when r < 0
func pick(v value.Value, r int) value.Value {
	if r < 0 {
		return v
	}
	return v.Row(r)
}
