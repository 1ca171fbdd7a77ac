// Command fieldeval evaluates field expressions over a model mesh, at the
// vertices of a selection or at element points.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/notargets/DGField/config"
	"github.com/notargets/DGField/element"
	"github.com/notargets/DGField/evaluator"
	"github.com/notargets/DGField/field"
	"github.com/notargets/DGField/mesh"
	"github.com/notargets/DGField/value"
)

const appName = "fieldeval"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	modelPath string
	logLevel  string
}

// session is a loaded model with its mesh and namespace
type session struct {
	model *config.Model
	mesh  *mesh.Simplex
	ns    field.Namespace
	log   hclog.Logger
}

func (g *globals) open(cmd *cobra.Command) (*session, error) {
	log := hclog.New(&hclog.LoggerOptions{
		Name:   appName,
		Level:  hclog.LevelFromString(g.logLevel),
		Output: cmd.ErrOrStderr(),
	})
	model := config.DefaultModel()
	if g.modelPath != "" {
		var err error
		if model, err = config.Load(g.modelPath); err != nil {
			return nil, err
		}
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	msh, err := model.BuildMesh()
	if err != nil {
		return nil, err
	}
	log.Debug("mesh built", "summary", msh.String())
	ns, err := model.BuildNamespace(msh)
	if err != nil {
		return nil, err
	}
	return &session{model: model, mesh: msh, ns: ns, log: log}, nil
}

func rootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Evaluate field expressions over a mesh",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.modelPath, "model", "m", "", "Model file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(nodalCmd(g, false), nodalCmd(g, true), pointCmd(g))
	return cmd
}

// nodalCmd reconstructs at the references of a selection; with edges only
// the wireframe is printed
func nodalCmd(g *globals, edges bool) *cobra.Command {
	var (
		expr     string
		boundary []int
		domains  []int
	)
	use, short := "nodal", "Reconstruct expressions at the vertices of a selection"
	if edges {
		use, short = "edges", "Reconstruct expressions along the wireframe of a selection"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			evals := s.model.Evaluations
			if expr != "" {
				e := config.EvaluationConfig{Name: expr, Selection: config.SelectDomain, Attributes: domains, Expression: expr}
				if boundary != nil {
					e.Selection, e.Attributes = config.SelectBoundary, boundary
				}
				evals = []config.EvaluationConfig{e}
			}
			if len(evals) == 0 {
				return fmt.Errorf("nothing to evaluate: give --expr or model evaluations")
			}
			for _, e := range evals {
				if err := s.runNodal(cmd.OutOrStdout(), e, edges || e.EdgeOnly); err != nil {
					return fmt.Errorf("evaluation %s: %w", e.Name, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "Expression to evaluate instead of the model evaluations")
	cmd.Flags().IntSliceVar(&boundary, "boundary", nil, "Boundary attributes to select")
	cmd.Flags().IntSliceVar(&domains, "domains", nil, "Element attributes to select (default all)")
	return cmd
}

func (s *session) runNodal(w io.Writer, e config.EvaluationConfig, edges bool) error {
	opts := []evaluator.Option{evaluator.WithLogger(s.log), evaluator.WithIndVars(s.model.IndVars...)}
	var (
		n   *evaluator.Nodal
		err error
	)
	if e.Selection == config.SelectBoundary {
		n, err = evaluator.NewBoundary(s.mesh, e.Attributes, opts...)
	} else {
		n, err = evaluator.NewDomain(s.mesh, e.Attributes, opts...)
	}
	if err != nil {
		return err
	}
	var evalOpts []evaluator.EvalOption
	if edges {
		evalOpts = append(evalOpts, evaluator.EdgeOnly())
	}
	coords, values, err := n.Eval(e.Expression, s.ns, evalOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# %s: %s\n", e.Name, e.Expression)
	for r := 0; r < coords.Rows; r++ {
		fmt.Fprintf(w, "%s\t%s\n", formatRow(coords.Row(r)), formatRow(values.Row(r)))
	}
	return nil
}

func pointCmd(g *globals) *cobra.Command {
	var (
		expr  string
		elem  int
		xi    []float64
		tm    float64
		order int
	)
	cmd := &cobra.Command{
		Use:   "point",
		Short: "Evaluate an expression at a reference point of an element",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			if elem < 0 || elem >= s.mesh.NumElements() {
				return fmt.Errorf("element %d out of range [0,%d)", elem, s.mesh.NumElements())
			}
			f, err := field.NewExpression(expr, s.model.IndVars)
			if err != nil {
				return err
			}
			T := s.mesh.ElementTransformation(elem)
			points := []element.IntPoint{element.Centroid(T.Geometry())}
			switch {
			case order > 0:
				if points, err = element.Rule(T.Geometry(), order); err != nil {
					return err
				}
			case xi != nil:
				ip := element.IntPoint{}
				for i, x := range xi {
					switch i {
					case 0:
						ip.X = x
					case 1:
						ip.Y = x
					case 2:
						ip.Z = x
					}
				}
				points = []element.IntPoint{ip}
			}
			var pos []float64
			for _, ip := range points {
				v, err := evaluator.Point(f, field.Frame{Transform: T, Point: ip, Namespace: s.ns, Time: tm})
				if err != nil {
					return err
				}
				pos = T.Transform(ip, pos)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatRow(value.Vector(pos...)), formatRow(v))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "Expression to evaluate")
	cmd.Flags().IntVar(&elem, "element", 0, "Element index")
	cmd.Flags().Float64SliceVar(&xi, "xi", nil, "Reference coordinates (default centroid), ignored with --order")
	cmd.Flags().Float64Var(&tm, "time", 0, "Evaluation time")
	cmd.Flags().IntVar(&order, "order", 0, "Evaluate at every point of a quadrature rule of this order")
	_ = cmd.MarkFlagRequired("expr")
	return cmd
}

// formatRow prints the entries of an unbatched value separated by spaces
func formatRow(v value.Value) string {
	parts := make([]string, len(v.Data))
	for i, c := range v.Data {
		if v.Complex {
			parts[i] = fmt.Sprintf("%g", c)
		} else {
			parts[i] = fmt.Sprintf("%g", real(c))
		}
	}
	return strings.Join(parts, " ")
}
