package expression

import (
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

type renamer func(string) string

func (r renamer) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		id.Value = r(id.Value)
	}
}

// Rename rewrites the identifiers of src through fn and prints the result
func Rename(src string, fn func(name string) string) (string, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return "", &SyntaxError{Source: src, Err: err}
	}
	ast.Walk(&tree.Node, renamer(fn))
	return tree.Node.String(), nil
}

// Suffix renames the identifiers listed in names by appending suffix
func Suffix(src, suffix string, names []string) (string, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return Rename(src, func(name string) string {
		if set[name] {
			return name + suffix
		}
		return name
	})
}
