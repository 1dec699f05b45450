// Package compile lowers Go syntax trees into linear instruction streams.
//
// The lowering is a stack-machine form used to reason about execution
// positions: an executor or tracer reports where it is as a line plus an
// instruction offset within a compiled unit, and the call-site resolver
// recompiles pieces of the same syntax to work out which call expression
// that offset belongs to.
//
// # Units
//
// Each file produces one initialiser unit (package-level var specs in
// declaration order) and one unit per function declaration. Function
// literals become child units of the unit they are evaluated in; the
// parent only sees a MakeClosure instruction. Statements handed to
// Statements are wrapped in a nameless synthetic unit.
//
// # Layout
//
// Every instruction is Width bytes wide and unit offsets start at zero.
// Jump targets and closure indices are operands, never instructions, so a
// run of statements has the same layout wherever it is compiled. This is
// what lets a statement group be recompiled in isolation and compared
// against the unit that is actually running.
//
// Evaluation order follows the Go specification's usual order: for an
// assignment the operands of index expressions and pointer indirections on
// the left come first, then the right-hand side, then the stores; a call
// evaluates the function value, then its arguments, then the call.
package compile

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
)

type frameKind uint8

const (
	loopFrame frameKind = iota
	switchFrame
	selectFrame
)

// frame tracks the pending jumps of one breakable statement.
type frame struct {
	kind      frameKind
	label     string
	breaks    []int
	continues []int
	falls     []int
}

// unitState is the per-unit compilation state.
type unitState struct {
	unit   *Unit
	frames []*frame
	labels map[string]int
	gotos  map[string][]int
	label  string // label waiting for the next loop, switch or select
}

type compiler struct {
	fset  *token.FileSet
	edits *Edits
	ids   *numbering
	st    *unitState
	stack []*unitState
}

// File compiles the initialiser and every function declaration of file.
func File(fset *token.FileSet, file *ast.File, edits *Edits) *Program {
	n := newNumbering(fset)
	n.file(file)
	for _, d := range file.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok {
			n.funcDecl(fd)
		}
	}
	c := &compiler{fset: fset, edits: edits, ids: n}
	p := &Program{Init: c.initUnit(file)}
	for _, d := range file.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok {
			p.Funcs = append(p.Funcs, c.funcDecl(fd))
		}
	}
	return p
}

// Init compiles the package-level variable initialisers of file.
func Init(fset *token.FileSet, file *ast.File, edits *Edits) *Unit {
	n := newNumbering(fset)
	n.file(file)
	c := &compiler{fset: fset, edits: edits, ids: n}
	return c.initUnit(file)
}

// FuncDecl compiles one function declaration and its function literals.
func FuncDecl(fset *token.FileSet, decl *ast.FuncDecl, edits *Edits) *Unit {
	n := newNumbering(fset)
	n.funcDecl(decl)
	c := &compiler{fset: fset, edits: edits, ids: n}
	return c.funcDecl(decl)
}

// Statements compiles sibling statements (or file-level declarations) as
// the body of a nameless synthetic unit.
func Statements(fset *token.FileSet, stmts []ast.Node, edits *Edits) *Unit {
	n := newNumbering(fset)
	n.root(stmts...)
	c := &compiler{fset: fset, edits: edits, ids: n}
	u := &Unit{ID: UnitID{Kind: KindSynthetic}}
	if len(stmts) > 0 {
		u.ID.Line = c.line(stmts[0])
	}
	c.enter(u)
	for _, s := range stmts {
		c.node(s)
	}
	c.leave()
	return u
}

func (c *compiler) initUnit(file *ast.File) *Unit {
	id, ok := c.ids.ids[file]
	if !ok {
		id = fileID(c.fset, file)
	}
	u := &Unit{ID: id, Node: file}
	c.enter(u)
	for _, d := range file.Decls {
		c.decl(d)
	}
	c.leave()
	return u
}

func (c *compiler) funcDecl(decl *ast.FuncDecl) *Unit {
	u := &Unit{ID: c.ids.ids[decl], Node: decl}
	c.enter(u)
	if decl.Body != nil {
		c.stmts(decl.Body.List)
	}
	c.leave()
	return u
}

func (c *compiler) enter(u *Unit) {
	if c.st != nil {
		c.stack = append(c.stack, c.st)
	}
	c.st = &unitState{
		unit:   u,
		labels: make(map[string]int),
		gotos:  make(map[string][]int),
	}
}

func (c *compiler) leave() {
	for name, jumps := range c.st.gotos {
		if off, ok := c.st.labels[name]; ok {
			for _, j := range jumps {
				c.patch(j, off)
			}
		}
	}
	if n := len(c.stack); n > 0 {
		c.st = c.stack[n-1]
		c.stack = c.stack[:n-1]
	} else {
		c.st = nil
	}
}

func (c *compiler) line(n ast.Node) int {
	if n == nil || !n.Pos().IsValid() {
		return 0
	}
	return c.fset.Position(n.Pos()).Line
}

func (c *compiler) emit(op Opcode, arg int, value any, src ast.Node) int {
	u := c.st.unit
	idx := len(u.Instructions)
	u.Instructions = append(u.Instructions, Instruction{
		Op:     op,
		Arg:    arg,
		Offset: idx * Width,
		Line:   c.line(src),
		Value:  value,
		Source: src,
	})
	return idx
}

func (c *compiler) here() int {
	return len(c.st.unit.Instructions) * Width
}

func (c *compiler) patch(idx, target int) {
	c.st.unit.Instructions[idx].Arg = target
}

func (c *compiler) push(kind frameKind) *frame {
	f := &frame{kind: kind, label: c.st.label}
	c.st.label = ""
	c.st.frames = append(c.st.frames, f)
	return f
}

func (c *compiler) pop(f *frame, end, cont int) {
	for _, j := range f.breaks {
		c.patch(j, end)
	}
	if cont >= 0 {
		for _, j := range f.continues {
			c.patch(j, cont)
		}
	}
	c.st.frames = c.st.frames[:len(c.st.frames)-1]
}

func (c *compiler) frameFor(label *ast.Ident, match func(*frame) bool) *frame {
	for i := len(c.st.frames) - 1; i >= 0; i-- {
		f := c.st.frames[i]
		if label != nil {
			if f.label == label.Name {
				return f
			}
			continue
		}
		if match(f) {
			return f
		}
	}
	return nil
}

func (c *compiler) node(n ast.Node) {
	switch n := n.(type) {
	case ast.Stmt:
		c.stmt(n)
	case ast.Decl:
		c.decl(n)
	}
}

func (c *compiler) decl(d ast.Decl) {
	switch d := c.edits.node(d).(type) {
	case *ast.GenDecl:
		if d.Tok != token.VAR {
			return
		}
		for _, spec := range d.Specs {
			if vs, ok := spec.(*ast.ValueSpec); ok {
				c.valueSpec(vs)
			}
		}
	case ast.Stmt:
		c.stmt(d)
	}
}

func (c *compiler) valueSpec(vs *ast.ValueSpec) {
	switch {
	case len(vs.Values) == 0:
		for _, name := range vs.Names {
			if vs.Type != nil {
				c.typeExpr(vs.Type)
			} else {
				c.emit(Nop, 0, nil, name)
			}
			c.emit(StoreName, 0, name.Name, name)
		}
		return
	case len(vs.Values) == len(vs.Names):
		for _, v := range vs.Values {
			c.expr(v)
		}
	default:
		for _, v := range vs.Values {
			c.expr(v)
		}
		c.emit(Unpack, len(vs.Names), nil, vs)
	}
	for i := len(vs.Names) - 1; i >= 0; i-- {
		c.emit(StoreName, 0, vs.Names[i].Name, vs.Names[i])
	}
}

func (c *compiler) stmts(list []ast.Stmt) {
	for _, s := range list {
		c.stmt(s)
	}
}

func (c *compiler) block(b *ast.BlockStmt) {
	if b != nil {
		c.stmts(b.List)
	}
}

func (c *compiler) stmt(s ast.Stmt) {
	if s == nil {
		return
	}
	switch s := c.edits.node(s).(type) {
	case *ast.GenDecl:
		c.decl(s)
	case *ast.BadStmt:
		c.emit(Nop, 0, nil, s)
	case *ast.DeclStmt:
		c.decl(s.Decl)
	case *ast.EmptyStmt:
	case *ast.LabeledStmt:
		c.st.labels[s.Label.Name] = c.here()
		switch s.Stmt.(type) {
		case *ast.ForStmt, *ast.RangeStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
			c.st.label = s.Label.Name
		}
		c.stmt(s.Stmt)
		c.st.label = ""
	case *ast.ExprStmt:
		c.expr(s.X)
		c.emit(Pop, 0, nil, s)
	case *ast.SendStmt:
		c.expr(s.Chan)
		c.expr(s.Value)
		c.emit(Send, 0, nil, s)
	case *ast.IncDecStmt:
		if n := c.targetParts(s.X); n > 0 {
			c.emit(Dup, n, nil, s)
		}
		c.loadTarget(s.X)
		c.emit(LoadConst, 0, "1", s)
		op := token.ADD
		if s.Tok == token.DEC {
			op = token.SUB
		}
		c.emit(Binary, 0, op.String(), s)
		c.storeTarget(s.X)
	case *ast.AssignStmt:
		c.assign(s)
	case *ast.GoStmt:
		c.call(s.Call, Go)
	case *ast.DeferStmt:
		c.call(s.Call, Defer)
	case *ast.ReturnStmt:
		for _, r := range s.Results {
			c.expr(r)
		}
		c.emit(Return, len(s.Results), nil, s)
	case *ast.BranchStmt:
		c.branch(s)
	case *ast.BlockStmt:
		c.block(s)
	case *ast.IfStmt:
		c.ifStmt(s)
	case *ast.ForStmt:
		c.forStmt(s)
	case *ast.RangeStmt:
		c.rangeStmt(s)
	case *ast.SwitchStmt:
		c.switchStmt(s)
	case *ast.TypeSwitchStmt:
		c.typeSwitchStmt(s)
	case *ast.SelectStmt:
		c.selectStmt(s)
	}
}

func (c *compiler) assign(s *ast.AssignStmt) {
	if s.Tok == token.ASSIGN || s.Tok == token.DEFINE {
		for _, l := range s.Lhs {
			c.targetParts(l)
		}
		for _, r := range s.Rhs {
			c.expr(r)
		}
		if len(s.Rhs) != len(s.Lhs) {
			c.emit(Unpack, len(s.Lhs), nil, s)
		}
		for i := len(s.Lhs) - 1; i >= 0; i-- {
			c.storeTarget(s.Lhs[i])
		}
		return
	}

	// op-assignment: x op= y
	lhs := s.Lhs[0]
	if n := c.targetParts(lhs); n > 0 {
		c.emit(Dup, n, nil, s)
	}
	c.loadTarget(lhs)
	c.expr(s.Rhs[0])
	// ADD_ASSIGN..AND_NOT_ASSIGN mirror ADD..AND_NOT in go/token.
	op := s.Tok - token.ADD_ASSIGN + token.ADD
	c.emit(Binary, 0, op.String(), s)
	c.storeTarget(lhs)
}

// targetParts evaluates the operands of an assignment target and reports
// how many values it pushed.
func (c *compiler) targetParts(x ast.Expr) int {
	switch t := ast.Unparen(x).(type) {
	case *ast.IndexExpr:
		c.expr(t.X)
		c.expr(t.Index)
		return 2
	case *ast.SelectorExpr:
		c.expr(t.X)
		return 1
	case *ast.StarExpr:
		c.expr(t.X)
		return 1
	}
	return 0
}

func (c *compiler) loadTarget(x ast.Expr) {
	switch t := ast.Unparen(x).(type) {
	case *ast.Ident:
		c.emit(LoadName, 0, t.Name, t)
	case *ast.IndexExpr:
		c.emit(LoadIndex, 1, nil, t)
	case *ast.SelectorExpr:
		c.emit(LoadAttr, 0, t.Sel.Name, t)
	case *ast.StarExpr:
		c.emit(Deref, 0, nil, t)
	default:
		c.expr(x)
	}
}

func (c *compiler) storeTarget(x ast.Expr) {
	switch t := ast.Unparen(x).(type) {
	case *ast.Ident:
		c.emit(StoreName, 0, t.Name, t)
	case *ast.IndexExpr:
		c.emit(StoreIndex, 0, nil, t)
	case *ast.SelectorExpr:
		c.emit(StoreAttr, 0, t.Sel.Name, t)
	case *ast.StarExpr:
		c.emit(StoreDeref, 0, nil, t)
	default:
		c.emit(Pop, 0, nil, x)
	}
}

func (c *compiler) branch(s *ast.BranchStmt) {
	j := c.emit(Jump, -1, nil, s)
	switch s.Tok {
	case token.BREAK:
		if f := c.frameFor(s.Label, func(*frame) bool { return true }); f != nil {
			f.breaks = append(f.breaks, j)
		}
	case token.CONTINUE:
		if f := c.frameFor(s.Label, func(f *frame) bool { return f.kind == loopFrame }); f != nil {
			f.continues = append(f.continues, j)
		}
	case token.FALLTHROUGH:
		if f := c.frameFor(nil, func(f *frame) bool { return f.kind == switchFrame }); f != nil {
			f.falls = append(f.falls, j)
		}
	case token.GOTO:
		if s.Label == nil {
			return
		}
		if off, ok := c.st.labels[s.Label.Name]; ok {
			c.patch(j, off)
		} else {
			c.st.gotos[s.Label.Name] = append(c.st.gotos[s.Label.Name], j)
		}
	}
}

func (c *compiler) ifStmt(s *ast.IfStmt) {
	c.stmt(s.Init)
	c.expr(s.Cond)
	jf := c.emit(JumpIfFalse, -1, nil, s.Cond)
	c.block(s.Body)
	if s.Else == nil {
		c.patch(jf, c.here())
		return
	}
	j := c.emit(Jump, -1, nil, s)
	c.patch(jf, c.here())
	c.stmt(s.Else)
	c.patch(j, c.here())
}

func (c *compiler) forStmt(s *ast.ForStmt) {
	f := c.push(loopFrame)
	c.stmt(s.Init)
	top := c.here()
	jf := -1
	if s.Cond != nil {
		c.expr(s.Cond)
		jf = c.emit(JumpIfFalse, -1, nil, s.Cond)
	}
	c.block(s.Body)
	cont := c.here()
	c.stmt(s.Post)
	c.emit(Jump, top, nil, s)
	end := c.here()
	if jf >= 0 {
		c.patch(jf, end)
	}
	c.pop(f, end, cont)
}

func (c *compiler) rangeStmt(s *ast.RangeStmt) {
	f := c.push(loopFrame)
	c.expr(s.X)
	c.emit(RangeInit, 0, nil, s)
	top := c.here()
	next := c.emit(RangeNext, -1, nil, s)

	var targets []ast.Expr
	for _, t := range []ast.Expr{s.Key, s.Value} {
		if t != nil {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		c.emit(Pop, 0, nil, s)
	} else {
		for _, t := range targets {
			c.targetParts(t)
		}
		if len(targets) > 1 {
			c.emit(Unpack, len(targets), nil, s)
		}
		for i := len(targets) - 1; i >= 0; i-- {
			c.storeTarget(targets[i])
		}
	}

	c.block(s.Body)
	c.emit(Jump, top, nil, s)
	end := c.here()
	c.patch(next, end)
	c.pop(f, end, top)
}

func (c *compiler) switchStmt(s *ast.SwitchStmt) {
	f := c.push(switchFrame)
	c.stmt(s.Init)
	if s.Tag != nil {
		c.expr(s.Tag)
	}

	clauses := caseClauses(s.Body)
	tests := make([][]int, len(clauses))
	def := -1
	for i, cc := range clauses {
		if cc.List == nil {
			def = i
			continue
		}
		for _, e := range cc.List {
			if s.Tag != nil {
				c.emit(Dup, 1, nil, e)
			}
			c.expr(e)
			if s.Tag != nil {
				c.emit(Binary, 0, token.EQL.String(), e)
			}
			tests[i] = append(tests[i], c.emit(JumpIfTrue, -1, nil, e))
		}
	}
	toDefault := c.emit(Jump, -1, nil, s)

	ends := c.clauseBodies(f, clauses, func(i int, start int) {
		for _, j := range tests[i] {
			c.patch(j, start)
		}
		if i == def {
			c.patch(toDefault, start)
		}
	})
	end := c.here()
	if def < 0 {
		c.patch(toDefault, end)
	}
	for _, j := range ends {
		c.patch(j, end)
	}
	if s.Tag != nil {
		c.emit(Pop, 0, nil, s)
	}
	c.pop(f, end, -1)
}

// clauseBodies compiles case clause bodies in order and returns the jumps
// that leave them. start is called with each body's offset before it is
// compiled.
func (c *compiler) clauseBodies(f *frame, clauses []*ast.CaseClause, start func(i, offset int)) []int {
	var ends []int
	for i, cc := range clauses {
		off := c.here()
		start(i, off)
		for _, j := range f.falls {
			c.patch(j, off)
		}
		f.falls = nil
		c.stmts(cc.Body)
		if !endsInFallthrough(cc.Body) {
			ends = append(ends, c.emit(Jump, -1, nil, cc))
		}
	}
	ends = append(ends, f.falls...)
	f.falls = nil
	return ends
}

func (c *compiler) typeSwitchStmt(s *ast.TypeSwitchStmt) {
	f := c.push(switchFrame)
	c.stmt(s.Init)

	var bind *ast.Ident
	switch a := s.Assign.(type) {
	case *ast.ExprStmt:
		c.typeSwitchSubject(a.X)
	case *ast.AssignStmt:
		if len(a.Rhs) == 1 {
			c.typeSwitchSubject(a.Rhs[0])
		}
		if len(a.Lhs) == 1 {
			bind, _ = a.Lhs[0].(*ast.Ident)
		}
	}
	c.emit(TypeSwitch, 0, nil, s.Assign)

	clauses := caseClauses(s.Body)
	tests := make([][]int, len(clauses))
	def := -1
	for i, cc := range clauses {
		if cc.List == nil {
			def = i
			continue
		}
		for _, e := range cc.List {
			c.emit(Dup, 1, nil, e)
			c.typeExpr(e)
			c.emit(TypeMatch, 0, nil, e)
			tests[i] = append(tests[i], c.emit(JumpIfTrue, -1, nil, e))
		}
	}
	toDefault := c.emit(Jump, -1, nil, s)

	var ends []int
	for i, cc := range clauses {
		start := c.here()
		for _, j := range tests[i] {
			c.patch(j, start)
		}
		if i == def {
			c.patch(toDefault, start)
		}
		if bind != nil {
			c.emit(StoreName, 0, bind.Name, bind)
		}
		c.stmts(cc.Body)
		ends = append(ends, c.emit(Jump, -1, nil, cc))
	}
	end := c.here()
	if def < 0 {
		c.patch(toDefault, end)
	}
	for _, j := range ends {
		c.patch(j, end)
	}
	c.emit(Pop, 0, nil, s)
	c.pop(f, end, -1)
}

func (c *compiler) typeSwitchSubject(x ast.Expr) {
	if ta, ok := ast.Unparen(x).(*ast.TypeAssertExpr); ok {
		c.expr(ta.X)
		return
	}
	c.expr(x)
}

func (c *compiler) selectStmt(s *ast.SelectStmt) {
	clauses := commClauses(s.Body)
	for _, cc := range clauses {
		switch comm := cc.Comm.(type) {
		case *ast.SendStmt:
			c.expr(comm.Chan)
			c.expr(comm.Value)
		case *ast.ExprStmt:
			c.recvOperand(comm.X)
		case *ast.AssignStmt:
			if len(comm.Rhs) == 1 {
				c.recvOperand(comm.Rhs[0])
			}
		}
	}
	f := c.push(selectFrame)
	c.emit(Select, len(clauses), nil, s)

	var ends []int
	for _, cc := range clauses {
		if as, ok := cc.Comm.(*ast.AssignStmt); ok {
			if len(as.Lhs) > 1 {
				c.emit(Unpack, len(as.Lhs), nil, as)
			}
			for i := len(as.Lhs) - 1; i >= 0; i-- {
				c.targetParts(as.Lhs[i])
				c.storeTarget(as.Lhs[i])
			}
		}
		c.stmts(cc.Body)
		ends = append(ends, c.emit(Jump, -1, nil, cc))
	}
	end := c.here()
	for _, j := range ends {
		c.patch(j, end)
	}
	c.pop(f, end, -1)
}

func (c *compiler) recvOperand(x ast.Expr) {
	if u, ok := ast.Unparen(x).(*ast.UnaryExpr); ok && u.Op == token.ARROW {
		c.expr(u.X)
		return
	}
	c.expr(x)
}

func (c *compiler) expr(x ast.Expr) {
	switch x := x.(type) {
	case nil:
	case *ast.BadExpr:
		c.emit(Nop, 0, nil, x)
	case *ast.Ident:
		c.emit(LoadName, 0, x.Name, x)
	case *ast.BasicLit:
		c.emit(LoadConst, 0, literalValue(x), x)
	case *ast.CompositeLit:
		if x.Type != nil {
			c.typeExpr(x.Type)
		}
		for _, e := range x.Elts {
			if kv, ok := e.(*ast.KeyValueExpr); ok {
				c.expr(kv.Key)
				c.expr(kv.Value)
				c.emit(KeyValue, 0, nil, kv)
				continue
			}
			c.expr(e)
		}
		c.emit(MakeComposite, len(x.Elts), nil, x)
	case *ast.FuncLit:
		c.funcLit(x)
	case *ast.ParenExpr:
		c.expr(x.X)
	case *ast.SelectorExpr:
		c.expr(x.X)
		c.emit(LoadAttr, 0, x.Sel.Name, x)
	case *ast.IndexExpr:
		c.expr(x.X)
		c.expr(x.Index)
		c.emit(LoadIndex, 1, nil, x)
	case *ast.IndexListExpr:
		c.expr(x.X)
		for _, i := range x.Indices {
			c.expr(i)
		}
		c.emit(LoadIndex, len(x.Indices), nil, x)
	case *ast.SliceExpr:
		c.expr(x.X)
		bits := 0
		for i, part := range []ast.Expr{x.Low, x.High, x.Max} {
			if part != nil {
				c.expr(part)
				bits |= 1 << i
			}
		}
		c.emit(Slice, bits, nil, x)
	case *ast.TypeAssertExpr:
		c.expr(x.X)
		typ := "type"
		if x.Type != nil {
			typ = types.ExprString(x.Type)
		}
		c.emit(TypeAssert, 0, typ, x)
	case *ast.CallExpr:
		c.call(x, Call)
	case *ast.StarExpr:
		c.expr(x.X)
		c.emit(Deref, 0, nil, x)
	case *ast.UnaryExpr:
		c.expr(x.X)
		switch x.Op {
		case token.AND:
			c.emit(Addr, 0, nil, x)
		case token.ARROW:
			c.emit(Recv, 0, nil, x)
		default:
			c.emit(Unary, 0, x.Op.String(), x)
		}
	case *ast.BinaryExpr:
		c.binary(x)
	case *ast.KeyValueExpr:
		c.expr(x.Key)
		c.expr(x.Value)
		c.emit(KeyValue, 0, nil, x)
	case *ast.ArrayType, *ast.StructType, *ast.FuncType, *ast.InterfaceType,
		*ast.MapType, *ast.ChanType, *ast.Ellipsis:
		c.typeExpr(x)
	default:
		c.emit(Nop, 0, nil, x)
	}
}

func (c *compiler) binary(x *ast.BinaryExpr) {
	switch x.Op {
	case token.LAND, token.LOR:
		c.expr(x.X)
		op := JumpIfFalseOrPop
		if x.Op == token.LOR {
			op = JumpIfTrueOrPop
		}
		j := c.emit(op, -1, nil, x)
		c.expr(x.Y)
		c.patch(j, c.here())
	default:
		c.expr(x.X)
		c.expr(x.Y)
		c.emit(Binary, 0, x.Op.String(), x)
	}
}

func (c *compiler) call(x *ast.CallExpr, op Opcode) {
	c.expr(x.Fun)
	args := c.edits.callArgs(x)
	for _, a := range args {
		c.expr(a)
	}
	if op == Call && x.Ellipsis.IsValid() {
		op = CallSpread
	}
	c.emit(op, len(args), nil, x)
}

func (c *compiler) funcLit(lit *ast.FuncLit) {
	id, ok := c.ids.ids[lit]
	if !ok {
		id = c.ids.assign(lit, KindFuncLit, "")
	}
	child := &Unit{ID: id, Node: lit}
	parent := c.st.unit
	idx := len(parent.Children)
	parent.Children = append(parent.Children, child)

	c.enter(child)
	c.block(lit.Body)
	c.leave()

	c.emit(MakeClosure, idx, nil, lit)
}

func (c *compiler) typeExpr(x ast.Expr) {
	c.emit(LoadType, 0, types.ExprString(x), x)
}

func literalValue(lit *ast.BasicLit) any {
	if lit.Kind == token.STRING {
		if s, err := strconv.Unquote(lit.Value); err == nil {
			return s
		}
	}
	return lit.Value
}

func caseClauses(body *ast.BlockStmt) []*ast.CaseClause {
	if body == nil {
		return nil
	}
	var out []*ast.CaseClause
	for _, s := range body.List {
		if cc, ok := s.(*ast.CaseClause); ok {
			out = append(out, cc)
		}
	}
	return out
}

func commClauses(body *ast.BlockStmt) []*ast.CommClause {
	if body == nil {
		return nil
	}
	var out []*ast.CommClause
	for _, s := range body.List {
		if cc, ok := s.(*ast.CommClause); ok {
			out = append(out, cc)
		}
	}
	return out
}

func endsInFallthrough(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	b, ok := body[len(body)-1].(*ast.BranchStmt)
	return ok && b.Tok == token.FALLTHROUGH
}
