// Package config loads field evaluation models from YAML. A model names a
// mesh, the finite-element solutions sampled on it, the variables defined
// over them and the evaluations to run.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGField/expression"
	"github.com/notargets/DGField/field"
	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/partitions"
	"github.com/notargets/DGField/source"
)

// Mesh kinds
const (
	MeshRectangle = "rectangle"
	MeshExplicit  = "explicit"
)

// Evaluation selections
const (
	SelectDomain   = "domain"
	SelectBoundary = "boundary"
)

// Model is a complete evaluation model
type Model struct {
	Mesh        MeshConfig         `yaml:"mesh"`
	IndVars     []string           `yaml:"ind_vars"`
	Solutions   []SolutionConfig   `yaml:"solutions"`
	Variables   []VariableConfig   `yaml:"variables"`
	Evaluations []EvaluationConfig `yaml:"evaluations"`
}

// MeshConfig describes either a structured rectangle or an explicit
// simplex mesh
type MeshConfig struct {
	Kind string `yaml:"kind"`

	// Rectangle
	NX      int            `yaml:"nx"`
	NY      int            `yaml:"ny"`
	Bounds  [4]float64     `yaml:"bounds"` // x0, x1, y0, y1
	Regions []RegionConfig `yaml:"regions"`

	// Explicit, boundary defaults to the exterior faces tagged 1
	Dimension          int         `yaml:"dimension"`
	Vertices           [][]float64 `yaml:"vertices"`
	Elements           [][]int     `yaml:"elements"`
	Attributes         []int       `yaml:"attributes"`
	BoundaryFaces      [][]int     `yaml:"boundary_faces"`
	BoundaryAttributes []int       `yaml:"boundary_attributes"`
}

// RegionConfig assigns Attribute to rectangle elements whose centroid lies
// in the box. Later regions override earlier ones; elements outside every
// region get attribute 1.
type RegionConfig struct {
	Attribute int        `yaml:"attribute"`
	Box       [4]float64 `yaml:"box"` // x0, x1, y0, y1
}

// SolutionConfig is a continuous solution interpolated from one expression
// per component. Gradient binds the gradient of a scalar solution instead of
// the solution itself.
type SolutionConfig struct {
	Name      string   `yaml:"name"`
	Suffix    string   `yaml:"suffix"`
	Real      []string `yaml:"real"`
	Imaginary []string `yaml:"imaginary"`
	Gradient  bool     `yaml:"gradient"`
}

// VariableConfig is an expression or constant, optionally restricted to
// element attributes given either as a list or as a key string such as
// "1,3"
type VariableConfig struct {
	Name       string   `yaml:"name"`
	Suffix     string   `yaml:"suffix"`
	Expression string   `yaml:"expression"`
	Value      *float64 `yaml:"value"`
	Vars       []string `yaml:"vars"`
	Domains    []int    `yaml:"domains"`
	Key        string   `yaml:"key"`
	Complex    bool     `yaml:"complex"`
}

// domains returns the attribute restriction, nil when unrestricted
func (v VariableConfig) domains() ([]int, error) {
	if v.Key == "" {
		return v.Domains, nil
	}
	if v.Domains != nil {
		return nil, fmt.Errorf("domains and key are exclusive")
	}
	k, err := partitions.ParseKey(v.Key)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// EvaluationConfig is one nodal reconstruction
type EvaluationConfig struct {
	Name       string `yaml:"name"`
	Selection  string `yaml:"selection"`
	Attributes []int  `yaml:"attributes"`
	Expression string `yaml:"expression"`
	EdgeOnly   bool   `yaml:"edge_only"`
}

// DefaultModel is a unit square of 4×4 cells with coordinates x, y
func DefaultModel() *Model {
	return &Model{
		Mesh: MeshConfig{
			Kind:   MeshRectangle,
			NX:     4,
			NY:     4,
			Bounds: [4]float64{0, 1, 0, 1},
		},
		IndVars: []string{"x", "y"},
	}
}

// Load reads a model file over DefaultModel
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML model over DefaultModel
func Parse(data []byte) (*Model, error) {
	m := DefaultModel()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

// Marshal encodes the model as YAML
func (m *Model) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

// Validate checks the model and reports every problem found
func (m *Model) Validate() error {
	var result error
	switch m.Mesh.Kind {
	case MeshRectangle:
		if m.Mesh.NX < 1 || m.Mesh.NY < 1 {
			result = multierror.Append(result, fmt.Errorf("mesh: nx and ny must be ≥ 1"))
		}
	case MeshExplicit:
		if len(m.Mesh.Vertices) == 0 || len(m.Mesh.Elements) == 0 {
			result = multierror.Append(result, fmt.Errorf("mesh: explicit mesh needs vertices and elements"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("mesh: unknown kind %q", m.Mesh.Kind))
	}
	if len(m.IndVars) == 0 {
		result = multierror.Append(result, fmt.Errorf("ind_vars is required"))
	}

	names := make(map[string]bool)
	claim := func(what, name string) {
		if name == "" {
			result = multierror.Append(result, fmt.Errorf("%s: name is required", what))
			return
		}
		if names[name] {
			result = multierror.Append(result, fmt.Errorf("%s %s: name already defined", what, name))
		}
		names[name] = true
	}
	for _, s := range m.Solutions {
		claim("solution", s.Name+s.Suffix)
		if len(s.Real) == 0 {
			result = multierror.Append(result, fmt.Errorf("solution %s: real is required", s.Name))
		}
		if s.Imaginary != nil && len(s.Imaginary) != len(s.Real) {
			result = multierror.Append(result, fmt.Errorf("solution %s: %d imaginary components for %d real",
				s.Name, len(s.Imaginary), len(s.Real)))
		}
		if s.Gradient && len(s.Real) != 1 {
			result = multierror.Append(result, fmt.Errorf("solution %s: gradient of a vector solution", s.Name))
		}
	}
	for _, v := range m.Variables {
		// domain variables are built up by several entries
		domains, err := v.domains()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("variable %s: %w", v.Name, err))
		}
		if domains == nil && err == nil {
			claim("variable", v.Name+v.Suffix)
		} else if v.Name == "" {
			result = multierror.Append(result, fmt.Errorf("variable: name is required"))
		}
		if (v.Expression == "") == (v.Value == nil) {
			result = multierror.Append(result, fmt.Errorf("variable %s: exactly one of expression and value is required", v.Name))
		}
	}
	for i, e := range m.Evaluations {
		if e.Selection != SelectDomain && e.Selection != SelectBoundary {
			result = multierror.Append(result, fmt.Errorf("evaluation %d: unknown selection %q", i, e.Selection))
		}
		if e.Selection == SelectBoundary && len(e.Attributes) == 0 {
			result = multierror.Append(result, fmt.Errorf("evaluation %d: boundary selection needs attributes", i))
		}
		if e.Expression == "" {
			result = multierror.Append(result, fmt.Errorf("evaluation %d: expression is required", i))
		}
	}
	return result
}

// BuildMesh constructs the model mesh
func (m *Model) BuildMesh() (*mesh.Simplex, error) {
	c := m.Mesh
	switch c.Kind {
	case MeshRectangle:
		var attr mesh.AttributeFunc
		if len(c.Regions) > 0 {
			attr = func(x []float64) int {
				a := 1
				for _, r := range c.Regions {
					if x[0] >= r.Box[0] && x[0] <= r.Box[1] && x[1] >= r.Box[2] && x[1] <= r.Box[3] {
						a = r.Attribute
					}
				}
				return a
			}
		}
		return mesh.NewRectangle(c.NX, c.NY, c.Bounds[0], c.Bounds[1], c.Bounds[2], c.Bounds[3], attr)
	case MeshExplicit:
		sm, err := mesh.NewSimplex(c.Dimension, c.Vertices, c.Elements, c.Attributes)
		if err != nil {
			return nil, err
		}
		faces, battrs := c.BoundaryFaces, c.BoundaryAttributes
		if faces == nil {
			faces = sm.ExteriorFaces()
			battrs = make([]int, len(faces))
			for i := range battrs {
				battrs[i] = 1
			}
		}
		if err = sm.SetBoundary(faces, battrs); err != nil {
			return nil, err
		}
		return sm, nil
	}
	return nil, fmt.Errorf("mesh: unknown kind %q", c.Kind)
}

// BuildNamespace registers coordinates, surface normals, solutions and
// variables over msh. Every registration error is reported; the namespace
// holds whatever registered successfully.
func (m *Model) BuildNamespace(msh mesh.Accessor) (field.Namespace, error) {
	var result error
	ns := field.Namespace{}
	ns.AddCoordinates(m.IndVars)
	ns.AddSurfaceNormals(m.IndVars)

	for _, s := range m.Solutions {
		if err := m.addSolution(ns, msh, s); err != nil {
			result = multierror.Append(result, fmt.Errorf("solution %s: %w", s.Name, err))
		}
	}
	for _, v := range m.Variables {
		var opts []field.Option
		if v.Complex {
			opts = append(opts, field.Complex())
		}
		domains, err := v.domains()
		switch {
		case err != nil:
		case v.Value != nil:
			err = ns.AddConstant(v.Name, v.Suffix, *v.Value, domains)
		default:
			err = ns.AddExpression(v.Name, v.Suffix, m.IndVars, v.Expression, v.Vars, domains, opts...)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("variable %s: %w", v.Name, err))
		}
	}
	return ns, result
}

func (m *Model) addSolution(ns field.Namespace, msh mesh.Accessor, s SolutionConfig) error {
	re, err := m.interpolate(msh, s.Real)
	if err != nil {
		return fmt.Errorf("real part: %w", err)
	}
	var im source.Source
	if s.Imaginary != nil {
		if im, err = m.interpolate(msh, s.Imaginary); err != nil {
			return fmt.Errorf("imaginary part: %w", err)
		}
	}
	var d source.Deriver
	if s.Gradient {
		d = source.Gradient{Mesh: msh}
	}
	if len(s.Real) == 1 && !s.Gradient {
		ns.AddScalar(s.Name, s.Suffix, re, im, d)
		return nil
	}
	ns.AddComponents(s.Name, s.Suffix, m.IndVars[:min(len(m.IndVars), msh.SpaceDimension())], re, im, d)
	return nil
}

// interpolate samples one expression per component at the mesh vertices
func (m *Model) interpolate(msh mesh.Accessor, srcs []string) (*source.Continuous, error) {
	progs := make([]*expression.Program, len(srcs))
	for i, src := range srcs {
		p, err := expression.Compile(src)
		if err != nil {
			return nil, err
		}
		progs[i] = p
	}
	env := make(expression.Env, len(m.IndVars))
	return source.Interpolate(msh, len(srcs), func(x, dst []float64) error {
		for k, name := range m.IndVars {
			if k < len(x) {
				env[name] = x[k]
			}
		}
		for i, p := range progs {
			v, err := p.Eval(env)
			if err != nil {
				return err
			}
			dst[i] = v.Real()
		}
		return nil
	})
}
