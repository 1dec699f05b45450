package compile

import "go/ast"

// Edits is a set of temporary changes applied while compiling, without
// touching the syntax tree itself. A nil *Edits applies nothing.
//
// Each change returns a restore func; callers scope a change with
//
//	restore := edits.AppendArg(call, marker)
//	defer restore()
type Edits struct {
	args    map[*ast.CallExpr][]ast.Expr
	replace map[ast.Node]ast.Node
}

// NewEdits returns an empty edit set.
func NewEdits() *Edits {
	return &Edits{
		args:    make(map[*ast.CallExpr][]ast.Expr),
		replace: make(map[ast.Node]ast.Node),
	}
}

// AppendArg compiles call as if arg were appended to its arguments.
func (e *Edits) AppendArg(call *ast.CallExpr, arg ast.Expr) (restore func()) {
	prev, had := e.args[call]
	extra := make([]ast.Expr, len(prev), len(prev)+1)
	copy(extra, prev)
	e.args[call] = append(extra, arg)
	return func() {
		if had {
			e.args[call] = prev
		} else {
			delete(e.args, call)
		}
	}
}

// Replace compiles repl in place of the statement or declaration old.
func (e *Edits) Replace(old, repl ast.Node) (restore func()) {
	prev, had := e.replace[old]
	e.replace[old] = repl
	return func() {
		if had {
			e.replace[old] = prev
		} else {
			delete(e.replace, old)
		}
	}
}

// Len reports the number of active changes.
func (e *Edits) Len() int {
	if e == nil {
		return 0
	}
	return len(e.args) + len(e.replace)
}

func (e *Edits) callArgs(call *ast.CallExpr) []ast.Expr {
	if e == nil {
		return call.Args
	}
	extra := e.args[call]
	if len(extra) == 0 {
		return call.Args
	}
	args := make([]ast.Expr, 0, len(call.Args)+len(extra))
	args = append(args, call.Args...)
	return append(args, extra...)
}

func (e *Edits) node(n ast.Node) ast.Node {
	if e == nil {
		return n
	}
	if r, ok := e.replace[n]; ok {
		return r
	}
	return n
}
