package callsite

import (
	"go/ast"
	"go/token"
	"strconv"

	"go-callsite/compile"
)

// markerLit returns a fresh string literal holding marker. Each trial gets
// its own node so overlays never share syntax.
func markerLit(marker string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(marker)}
}

// markerStmt returns a statement that only loads marker.
func markerStmt(marker string) ast.Stmt {
	return &ast.ExprStmt{X: markerLit(marker)}
}

// compileRoot compiles the function declaration or file initialiser root
// with edits applied.
func compileRoot(f *SourceFile, root ast.Node, edits *compile.Edits) *compile.Unit {
	if decl, ok := root.(*ast.FuncDecl); ok {
		return compile.FuncDecl(f.Fset, decl, edits)
	}
	return compile.Init(f.Fset, f.AST, edits)
}

// findUnit returns the unit under root identified by id. Candidates share
// the kind, name and first line of id; Index picks among several.
func findUnit(root *compile.Unit, id compile.UnitID) (*compile.Unit, error) {
	var candidates []*compile.Unit
	root.Walk(func(u *compile.Unit) bool {
		if u.ID.Kind == id.Kind && u.ID.Name == id.Name && u.ID.Line == id.Line {
			candidates = append(candidates, u)
		}
		return true
	})
	switch len(candidates) {
	case 0:
		return nil, newError(CodeAmbiguousCallSite, "no compiled unit %s", id).WithContext(CtxUnit, id.String())
	case 1:
		return candidates[0], nil
	}
	for _, u := range candidates {
		if u.ID.Index == id.Index {
			return u, nil
		}
	}
	return nil, newError(CodeAmbiguousCallSite, "%d compiled units match %s", len(candidates), id).
		WithContext(CtxUnit, id.String())
}

// markerLoads returns the indexes of the top-level instructions of u that
// load marker.
func markerLoads(u *compile.Unit, marker string) []int {
	var idx []int
	for i, in := range u.Instructions {
		if in.Op != compile.LoadConst {
			continue
		}
		if s, ok := in.Value.(string); ok && s == marker {
			idx = append(idx, i)
		}
	}
	return idx
}

// callOrdinal returns how many call-class instructions of u precede the
// instruction at index i.
func callOrdinal(u *compile.Unit, i int) int {
	n := 0
	for _, in := range u.Instructions[:i] {
		if in.Op.IsCall() {
			n++
		}
	}
	return n
}

// nextCall returns the index of the first call-class instruction of u at
// or after index i.
func nextCall(u *compile.Unit, i int) (int, bool) {
	for ; i < len(u.Instructions); i++ {
		if u.Instructions[i].Op.IsCall() {
			return i, true
		}
	}
	return 0, false
}
