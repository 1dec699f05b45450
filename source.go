package callsite

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"sync"

	"golang.org/x/tools/go/ast/inspector"

	"go-callsite/compile"
)

// NodeID indexes a node in the arena of a SourceFile.
type NodeID int32

const noNode NodeID = -1

// SourceFile is a parsed Go file with parent links and a line index.
// Nodes live in an arena owned by the file; parent links are arena
// indices. A SourceFile is immutable once built and safe for concurrent
// use.
type SourceFile struct {
	Path string
	Src  []byte
	Fset *token.FileSet
	AST  *ast.File

	nodes   []ast.Node
	parents []NodeID
	ids     map[ast.Node]NodeID
	byLine  map[int][]NodeID

	unitsOnce sync.Once
	unitIDs   map[ast.Node]compile.UnitID
	units     map[compile.UnitID]ast.Node

	textOnce sync.Once
	text     textRanges
}

// textRanges maps token positions of one file to byte offsets.
type textRanges struct {
	base       int
	size       int
	lineStarts []int
}

func parseSource(path string, src []byte) (*SourceFile, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, wrapError(err, CodeMalformedSource, "cannot parse source").WithContext(CtxPath, path)
	}

	f := &SourceFile{
		Path:   path,
		Src:    src,
		Fset:   fset,
		AST:    file,
		ids:    make(map[ast.Node]NodeID),
		byLine: make(map[int][]NodeID),
	}
	inspector.New([]*ast.File{file}).WithStack(nil, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		id := NodeID(len(f.nodes))
		parent := noNode
		if len(stack) > 1 {
			parent = f.ids[stack[len(stack)-2]]
		}
		f.nodes = append(f.nodes, n)
		f.parents = append(f.parents, parent)
		f.ids[n] = id

		switch n.(type) {
		case *ast.Comment, *ast.CommentGroup:
			return true
		}
		if n.Pos().IsValid() {
			line := fset.Position(n.Pos()).Line
			f.byLine[line] = append(f.byLine[line], id)
		}
		return true
	})
	return f, nil
}

// Len reports the number of nodes in the arena.
func (f *SourceFile) Len() int { return len(f.nodes) }

// ID returns the arena index of n.
func (f *SourceFile) ID(n ast.Node) (NodeID, bool) {
	id, ok := f.ids[n]
	return id, ok
}

// Node returns the node stored at id.
func (f *SourceFile) Node(id NodeID) ast.Node {
	if id < 0 || int(id) >= len(f.nodes) {
		return nil
	}
	return f.nodes[id]
}

// Parent returns the syntactic parent of n, or nil for the file root and
// for nodes that do not belong to f.
func (f *SourceFile) Parent(n ast.Node) ast.Node {
	id, ok := f.ids[n]
	if !ok {
		return nil
	}
	return f.Node(f.parents[id])
}

// NodesAt returns the nodes whose first line is line, in traversal order.
func (f *SourceFile) NodesAt(line int) []ast.Node {
	ids := f.byLine[line]
	nodes := make([]ast.Node, len(ids))
	for i, id := range ids {
		nodes[i] = f.nodes[id]
	}
	return nodes
}

// Line returns the line n starts on.
func (f *SourceFile) Line(n ast.Node) int {
	if n == nil || !n.Pos().IsValid() {
		return 0
	}
	return f.Fset.Position(n.Pos()).Line
}

func isUnitNode(n ast.Node) bool {
	switch n.(type) {
	case *ast.File, *ast.FuncDecl, *ast.FuncLit:
		return true
	}
	return false
}

// UnitOf returns the file, function declaration or function literal whose
// compiled unit evaluates n. A function literal is evaluated by the unit
// that encloses it, not by its own.
func (f *SourceFile) UnitOf(n ast.Node) ast.Node {
	for p := f.Parent(n); p != nil; p = f.Parent(p) {
		if isUnitNode(p) {
			return p
		}
	}
	return f.AST
}

// Statement returns the statement containing n: the nearest ancestor (or
// n itself) that is a member of a statement list, without leaving the unit
// that evaluates n. Case and comm clauses are not statements.
func (f *SourceFile) Statement(n ast.Node) (ast.Node, bool) {
	for p := n; p != nil; p = f.Parent(p) {
		if p != n && isUnitNode(p) {
			return nil, false
		}
		if f.isListMember(p) {
			return p, true
		}
	}
	return nil, false
}

func (f *SourceFile) isListMember(n ast.Node) bool {
	switch parent := f.Parent(n).(type) {
	case *ast.BlockStmt:
		switch n.(type) {
		case *ast.CaseClause, *ast.CommClause:
			return false
		}
		_, ok := n.(ast.Stmt)
		return ok
	case *ast.CaseClause:
		return indexOf(stmtNodes(parent.Body), n) >= 0
	case *ast.CommClause:
		return indexOf(stmtNodes(parent.Body), n) >= 0
	case *ast.File:
		_, ok := n.(ast.Decl)
		return ok
	}
	return false
}

// Body returns the statement list holding stmt and the index of stmt in it.
func (f *SourceFile) Body(stmt ast.Node) ([]ast.Node, int) {
	var list []ast.Node
	switch parent := f.Parent(stmt).(type) {
	case *ast.BlockStmt:
		list = stmtNodes(parent.List)
	case *ast.CaseClause:
		list = stmtNodes(parent.Body)
	case *ast.CommClause:
		list = stmtNodes(parent.Body)
	case *ast.File:
		list = make([]ast.Node, len(parent.Decls))
		for i, d := range parent.Decls {
			list[i] = d
		}
	}
	return list, indexOf(list, stmt)
}

func stmtNodes(list []ast.Stmt) []ast.Node {
	nodes := make([]ast.Node, len(list))
	for i, s := range list {
		nodes[i] = s
	}
	return nodes
}

func indexOf(list []ast.Node, n ast.Node) int {
	for i, x := range list {
		if x == n {
			return i
		}
	}
	return -1
}

// Root returns the function declaration enclosing n, or the file when n
// is evaluated by the file initialiser.
func (f *SourceFile) Root(n ast.Node) ast.Node {
	if _, ok := n.(*ast.FuncDecl); ok {
		return n
	}
	for p := f.Parent(n); p != nil; p = f.Parent(p) {
		if _, ok := p.(*ast.FuncDecl); ok {
			return p
		}
	}
	return f.AST
}

func (f *SourceFile) buildUnits() {
	f.unitsOnce.Do(func() {
		f.unitIDs = compile.UnitIDs(f.Fset, f.AST)
		f.units = make(map[compile.UnitID]ast.Node, len(f.unitIDs))
		for n, id := range f.unitIDs {
			f.units[id] = n
		}
	})
}

// UnitID returns the identity of the unit compiled from n, which must be
// the file, a function declaration or a function literal.
func (f *SourceFile) UnitID(n ast.Node) (compile.UnitID, bool) {
	f.buildUnits()
	id, ok := f.unitIDs[n]
	return id, ok
}

// UnitByID returns the file, function declaration or function literal
// identified by id.
func (f *SourceFile) UnitByID(id compile.UnitID) (ast.Node, bool) {
	f.buildUnits()
	n, ok := f.units[id]
	return n, ok
}

func (f *SourceFile) ranges() *textRanges {
	f.textOnce.Do(func() {
		f.text.size = len(f.Src)
		if tf := f.Fset.File(f.AST.Pos()); tf != nil {
			f.text.base = tf.Base()
			f.text.size = tf.Size()
		}
		f.text.lineStarts = []int{0}
		for i, b := range f.Src {
			if b == '\n' {
				f.text.lineStarts = append(f.text.lineStarts, i+1)
			}
		}
	})
	return &f.text
}

func (f *SourceFile) offset(p token.Pos) int {
	r := f.ranges()
	off := int(p) - r.base
	switch {
	case off < 0:
		return 0
	case off > len(f.Src):
		return len(f.Src)
	}
	return off
}

// Text returns the source text of n. Nodes without a position, such as
// synthesized ones, have no text.
func (f *SourceFile) Text(n ast.Node) string {
	if n == nil || !n.Pos().IsValid() || !n.End().IsValid() {
		return ""
	}
	start, end := f.offset(n.Pos()), f.offset(n.End())
	if start >= end {
		return ""
	}
	return string(f.Src[start:end])
}

// LineText returns the text of line without its line terminator.
func (f *SourceFile) LineText(line int) string {
	r := f.ranges()
	if line < 1 || line > len(r.lineStarts) {
		return ""
	}
	start := r.lineStarts[line-1]
	end := len(f.Src)
	if line < len(r.lineStarts) {
		end = r.lineStarts[line]
	}
	return string(bytes.TrimRight(f.Src[start:end], "\r\n"))
}
