// Package expression compiles algebraic expressions once and evaluates them
// over real, complex and batched array values. Parsing uses the expr-lang
// grammar; evaluation walks the syntax tree directly so that every operand
// is a value.Value.
package expression

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/notargets/DGField/value"
)

// ErrUnsupported is returned for syntax outside the algebraic subset
var ErrUnsupported = errors.New("unsupported syntax")

// Func is a function callable from an expression
type Func func(args ...value.Value) (value.Value, error)

// SyntaxError reports an expression that failed to compile
type SyntaxError struct {
	Source string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("compiling %q: %v", e.Source, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// UnresolvedNameError reports a name bound neither in the environment nor
// among the builtins
type UnresolvedNameError struct {
	Name string
}

func (e *UnresolvedNameError) Error() string {
	return fmt.Sprintf("name %q is not defined", e.Name)
}

// Program is a compiled expression
type Program struct {
	Source string
	// Names lists the free identifiers in order of first use
	Names []string
	root  ast.Node
}

// Compile parses src and checks that it only uses the algebraic subset:
// numbers, identifiers, arithmetic, comparison and logical operators,
// calls, array literals, indexing and the conditional operator
func Compile(src string) (*Program, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, &SyntaxError{Source: src, Err: err}
	}
	c := &collector{seen: make(map[string]bool)}
	ast.Walk(&tree.Node, c)
	if c.err != nil {
		return nil, &SyntaxError{Source: src, Err: c.err}
	}
	return &Program{Source: src, Names: c.names, root: tree.Node}, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// References reports whether name is a free identifier of the program
func (p *Program) References(name string) bool {
	for _, n := range p.Names {
		if n == name {
			return true
		}
	}
	return false
}

func (p *Program) String() string { return p.Source }

var binaryOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true, "^": true,
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true,
	"and": true, "&&": true, "or": true, "||": true,
}

var unaryOperators = map[string]bool{"-": true, "+": true, "!": true, "not": true}

// collector gathers free names and rejects nodes outside the subset
type collector struct {
	names []string
	seen  map[string]bool
	err   error
}

func (c *collector) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%w: "+format, append([]any{ErrUnsupported}, args...)...)
	}
}

func (c *collector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !c.seen[n.Value] {
			c.seen[n.Value] = true
			c.names = append(c.names, n.Value)
		}
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.ArrayNode, *ast.ConditionalNode:
	case *ast.BinaryNode:
		if !binaryOperators[n.Operator] {
			c.fail("operator %q", n.Operator)
		}
	case *ast.UnaryNode:
		if !unaryOperators[n.Operator] {
			c.fail("operator %q", n.Operator)
		}
	case *ast.CallNode:
		if _, ok := n.Callee.(*ast.IdentifierNode); !ok {
			c.fail("call of %s", n.Callee)
		}
	case *ast.BuiltinNode:
		// the parser claims names such as max and sum; an env entry may
		// define them even when the math table does not
		if !c.seen[n.Name] {
			c.seen[n.Name] = true
			c.names = append(c.names, n.Name)
		}
	case *ast.MemberNode:
		if n.Optional || n.Method {
			c.fail("member access %s", n)
		}
	default:
		c.fail("%T", n)
	}
}
