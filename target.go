package callsite

import (
	"go/ast"
	"go/token"
	"strconv"
)

// TargetOptions selects which binding constructs AssignedNames accepts.
type TargetOptions struct {
	// AllowSingle accepts constructs that bind a single name.
	AllowSingle bool
	// AllowLoops also considers the key and value of range loops.
	AllowLoops bool
}

// AssignedNames finds the nearest ancestor of node that binds names and
// satisfies opts, and returns the bound names in order together with that
// ancestor. Plain assignments (= and :=) and var specs always count; range
// loops count only with AllowLoops. A construct binding one name is skipped
// unless AllowSingle is set.
func (f *SourceFile) AssignedNames(node ast.Node, opts TargetOptions) ([]string, ast.Node, error) {
	for p := f.Parent(node); p != nil; p = f.Parent(p) {
		targets, ok := bindingTargets(p, opts)
		if !ok {
			continue
		}
		names, err := nodeNames(targets)
		if err != nil {
			return nil, nil, err.WithContext(CtxPath, f.Path).WithContext(CtxLine, f.Line(p))
		}
		if len(names) > 1 || opts.AllowSingle {
			return names, p, nil
		}
	}
	return nil, nil, newError(CodeNoBindingFound, "no assignment found").
		WithContext(CtxPath, f.Path).
		WithContext(CtxLine, f.Line(node))
}

func bindingTargets(n ast.Node, opts TargetOptions) ([]ast.Expr, bool) {
	switch n := n.(type) {
	case *ast.AssignStmt:
		if n.Tok != token.ASSIGN && n.Tok != token.DEFINE {
			return nil, false
		}
		return n.Lhs, len(n.Lhs) > 0
	case *ast.ValueSpec:
		targets := make([]ast.Expr, len(n.Names))
		for i, name := range n.Names {
			targets[i] = name
		}
		return targets, len(targets) > 0
	case *ast.RangeStmt:
		if !opts.AllowLoops {
			return nil, false
		}
		var targets []ast.Expr
		for _, t := range []ast.Expr{n.Key, n.Value} {
			if t != nil {
				targets = append(targets, t)
			}
		}
		return targets, len(targets) > 0
	}
	return nil, false
}

func nodeNames(targets []ast.Expr) ([]string, *Error) {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		name, err := nodeName(t)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// nodeName returns the name bound by x: a variable name, a field or
// attribute name, or the string key of an index expression.
func nodeName(x ast.Expr) (string, *Error) {
	switch x := ast.Unparen(x).(type) {
	case *ast.Ident:
		return x.Name, nil
	case *ast.SelectorExpr:
		return x.Sel.Name, nil
	case *ast.IndexExpr:
		if lit, ok := ast.Unparen(x.Index).(*ast.BasicLit); ok && lit.Kind == token.STRING {
			if key, err := strconv.Unquote(lit.Value); err == nil {
				return key, nil
			}
		}
	}
	return "", newError(CodeUnsupportedTarget, "cannot extract a name from %T", x)
}
