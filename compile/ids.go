package compile

import (
	"go/ast"
	"go/token"
)

// numbering assigns UnitIDs to function literals, one counter per
// (kind, line) within a root.
type numbering struct {
	fset *token.FileSet
	ids  map[ast.Node]UnitID
	seen map[UnitID]int
}

func newNumbering(fset *token.FileSet) *numbering {
	return &numbering{
		fset: fset,
		ids:  make(map[ast.Node]UnitID),
		seen: make(map[UnitID]int),
	}
}

func (n *numbering) line(p token.Pos) int {
	if !p.IsValid() {
		return 0
	}
	return n.fset.Position(p).Line
}

// root starts a new counter scope and numbers the literals below nodes.
func (n *numbering) root(nodes ...ast.Node) {
	n.seen = make(map[UnitID]int)
	for _, root := range nodes {
		if root == nil {
			continue
		}
		ast.Inspect(root, func(x ast.Node) bool {
			if lit, ok := x.(*ast.FuncLit); ok {
				n.assign(lit, KindFuncLit, "")
			}
			return true
		})
	}
}

func (n *numbering) assign(node ast.Node, kind UnitKind, name string) UnitID {
	if id, ok := n.ids[node]; ok {
		return id
	}
	key := UnitID{Kind: kind, Name: name, Line: n.line(node.Pos())}
	id := key
	id.Index = n.seen[key]
	n.seen[key]++
	n.ids[node] = id
	return id
}

func (n *numbering) file(file *ast.File) {
	n.ids[file] = fileID(n.fset, file)
	var decls []ast.Node
	for _, d := range file.Decls {
		if g, ok := d.(*ast.GenDecl); ok && g.Tok == token.VAR {
			decls = append(decls, g)
		}
	}
	n.root(decls...)
}

func (n *numbering) funcDecl(decl *ast.FuncDecl) {
	n.ids[decl] = UnitID{Kind: KindFunc, Name: FuncName(decl), Line: n.line(decl.Pos())}
	if decl.Body != nil {
		n.root(decl.Body)
	} else {
		n.root()
	}
}

func fileID(fset *token.FileSet, file *ast.File) UnitID {
	return UnitID{Kind: KindFile, Name: file.Name.Name, Line: fset.Position(file.Package).Line}
}

// UnitIDs returns the identity of every unit compiled from file: the file
// initialiser (keyed by the *ast.File), each *ast.FuncDecl and each
// *ast.FuncLit.
func UnitIDs(fset *token.FileSet, file *ast.File) map[ast.Node]UnitID {
	n := newNumbering(fset)
	n.file(file)
	for _, d := range file.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok {
			n.funcDecl(fd)
		}
	}
	return n.ids
}

// FuncName returns the name of decl qualified by its receiver base type,
// e.g. "Parse" or "Resolver.Resolve".
func FuncName(decl *ast.FuncDecl) string {
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		return decl.Name.Name
	}
	if recv := receiverName(decl.Recv.List[0].Type); recv != "" {
		return recv + "." + decl.Name.Name
	}
	return decl.Name.Name
}

func receiverName(x ast.Expr) string {
	switch t := x.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.ParenExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}
