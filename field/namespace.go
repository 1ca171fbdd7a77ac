package field

import (
	"fmt"
	"sort"

	"github.com/notargets/DGField/expression"
	"github.com/notargets/DGField/source"
)

// Namespace maps names to fields, constants (Go numbers or value.Value) and
// expression.Func values
type Namespace map[string]any

// Field returns the field bound to name
func (ns Namespace) Field(name string) (Field, bool) {
	f, ok := ns[name].(Field)
	return f, ok
}

// Fields returns the sorted names bound to fields
func (ns Namespace) Fields() []string {
	var names []string
	for n, x := range ns {
		if _, ok := x.(Field); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy
func (ns Namespace) Clone() Namespace {
	c := make(Namespace, len(ns))
	for k, v := range ns {
		c[k] = v
	}
	return c
}

// AddCoordinates binds each independent variable to its coordinate field
func (ns Namespace) AddCoordinates(indVars []string) {
	for k, p := range indVars {
		ns[p] = NewCoordinate(k + 1)
	}
}

// AddSurfaceNormals binds n and n<indVar> to the boundary normal
func (ns Namespace) AddSurfaceNormals(indVars []string) {
	ns["n"] = NewNormal(0)
	for k, p := range indVars {
		ns["n"+p] = NewNormal(k + 1)
	}
}

// AddScalar binds name+suffix to component 1 of a solution
func (ns Namespace) AddScalar(name, suffix string, re, im source.Source, d source.Deriver) {
	ns[name+suffix] = NewFEField(re, WithImaginary(im), WithComponent(1), WithDeriver(d))
}

// AddComponents binds name+suffix to a vector solution and
// name+suffix+indVar to each of its components
func (ns Namespace) AddComponents(name, suffix string, indVars []string, re, im source.Source, d source.Deriver) {
	ns[name+suffix] = NewFEField(re, WithImaginary(im), WithDeriver(d))
	for k, p := range indVars {
		ns[name+suffix+p] = NewFEField(re, WithImaginary(im), WithComponent(k+1), WithDeriver(d))
	}
}

// AddExpression binds name+suffix to src after appending suffix to the
// identifiers listed in vars. With domains the expression becomes one
// partition of a Domain field, created on first use.
func (ns Namespace) AddExpression(name, suffix string, indVars []string, src string, vars []string, domains []int, opts ...Option) error {
	src, err := expression.Suffix(src, suffix, vars)
	if err != nil {
		return fmt.Errorf("%s%s: %w", name, suffix, err)
	}
	if domains == nil {
		e, err := NewExpression(src, indVars, opts...)
		if err != nil {
			return fmt.Errorf("%s%s: %w", name, suffix, err)
		}
		ns[name+suffix] = e
		return nil
	}
	d, err := ns.domain(name + suffix)
	if err != nil {
		return err
	}
	if err = d.AddExpression(src, indVars, domains, opts...); err != nil {
		return fmt.Errorf("%s%s: %w", name, suffix, err)
	}
	return nil
}

// AddConstant binds name+suffix to a constant, or with domains adds a
// constant partition to a Domain field
func (ns Namespace) AddConstant(name, suffix string, x any, domains []int) error {
	if domains == nil {
		c, err := ConstantOf(x)
		if err != nil {
			return fmt.Errorf("%s%s: %w", name, suffix, err)
		}
		ns[name+suffix] = c
		return nil
	}
	d, err := ns.domain(name + suffix)
	if err != nil {
		return err
	}
	if err = d.AddConstant(x, domains); err != nil {
		return fmt.Errorf("%s%s: %w", name, suffix, err)
	}
	return nil
}

func (ns Namespace) domain(name string) (*Domain, error) {
	x, ok := ns[name]
	if !ok {
		d := NewDomain()
		ns[name] = d
		return d, nil
	}
	d, ok := x.(*Domain)
	if !ok {
		return nil, fmt.Errorf("%s is already bound to %T", name, x)
	}
	return d, nil
}
