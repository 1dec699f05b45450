package compile

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*token.FileSet, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "x.go", src, parser.SkipObjectResolution)
	require.NoError(t, err)
	return fset, file
}

func ops(u *Unit) []Opcode {
	out := make([]Opcode, len(u.Instructions))
	for i, in := range u.Instructions {
		out[i] = in.Op
	}
	return out
}

func funcUnit(t *testing.T, p *Program, name string) *Unit {
	t.Helper()
	for _, u := range p.Funcs {
		if u.ID.Name == name {
			return u
		}
	}
	t.Fatalf("no unit %s", name)
	return nil
}

func TestAssignmentOrder(t *testing.T) {
	fset, file := parse(t, `package p

func f() {
	m[k()], x = g(), "s"
}
`)
	u := funcUnit(t, File(fset, file, nil), "f")
	want := []Opcode{
		LoadName, LoadName, Call, // m, k()
		LoadName, Call, LoadConst, // g(), "s"
		StoreName, StoreIndex,
	}
	if diff := cmp.Diff(want, ops(u)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s\n%s", diff, u.Disassemble())
	}
	assert.Equal(t, "s", u.Instructions[5].Value)
	for i, in := range u.Instructions {
		assert.Equal(t, i*Width, in.Offset)
		assert.Equal(t, 4, in.Line)
	}
}

func TestCallClassOpcodes(t *testing.T) {
	fset, file := parse(t, `package p

func f(xs []int) {
	defer a()
	go b(xs...)
	c(xs...)
	d()
}
`)
	u := funcUnit(t, File(fset, file, nil), "f")
	var got []Opcode
	for _, in := range u.Calls() {
		got = append(got, in.Op)
		require.IsType(t, &ast.CallExpr{}, in.Source)
	}
	assert.Equal(t, []Opcode{Defer, Go, CallSpread, Call}, got)
	assert.True(t, Go.IsCall())
	assert.False(t, MakeClosure.IsCall())
	assert.True(t, JumpIfFalseOrPop.IsJump())
}

func TestFuncLitUnits(t *testing.T) {
	fset, file := parse(t, `package p

var init1 = func() int { return 1 }

func (r *T[K]) f() {
	a, b := func() { x() }, func() { y() }
	func() {
		func() { z() }()
	}()
}
`)
	p := File(fset, file, nil)
	require.Len(t, p.Init.Children, 1)
	assert.Equal(t, UnitID{Kind: KindFuncLit, Line: 3}, p.Init.Children[0].ID)

	f := funcUnit(t, p, "T.f")
	assert.Equal(t, UnitID{Kind: KindFunc, Name: "T.f", Line: 5}, f.ID)
	require.Len(t, f.Children, 3)
	assert.Equal(t, UnitID{Kind: KindFuncLit, Line: 6, Index: 0}, f.Children[0].ID)
	assert.Equal(t, UnitID{Kind: KindFuncLit, Line: 6, Index: 1}, f.Children[1].ID)
	assert.Equal(t, UnitID{Kind: KindFuncLit, Line: 7}, f.Children[2].ID)
	require.Len(t, f.Children[2].Children, 1)
	assert.Equal(t, UnitID{Kind: KindFuncLit, Line: 8}, f.Children[2].Children[0].ID)

	// Identities agree with the table and with compiling the root alone.
	ids := UnitIDs(fset, file)
	for _, u := range p.Units() {
		assert.Equal(t, ids[u.Node], u.ID)
	}
	alone := FuncDecl(fset, file.Decls[1].(*ast.FuncDecl), nil)
	assert.Equal(t, f.Children[1].ID, alone.Children[1].ID)
	assert.Equal(t, f.Disassemble(), alone.Disassemble())
}

func TestStatementsKeepLayout(t *testing.T) {
	fset, file := parse(t, `package p

func f(xs []int) int {
	n := 0
	for _, x := range xs { if x > 0 { n += g(x) } else { break } }
	switch { case n > 1: n = h(n); fallthrough; default: n-- }
	return n
}
`)
	decl := file.Decls[0].(*ast.FuncDecl)
	full := FuncDecl(fset, decl, nil)

	// The two middle statements start after n := 0.
	start := 2
	group := []ast.Node{decl.Body.List[1], decl.Body.List[2]}
	sub := Statements(fset, group, nil)
	assert.Equal(t, KindSynthetic, sub.ID.Kind)
	assert.Equal(t, 5, sub.ID.Line)

	for i, in := range sub.Instructions {
		orig := full.Instructions[start+i]
		assert.Equal(t, orig.Op, in.Op, "instruction %d", i)
		assert.Equal(t, orig.Source, in.Source, "instruction %d", i)
	}
}

func TestEditsOverlay(t *testing.T) {
	fset, file := parse(t, `package p

func f() {
	a(b())
	c()
}
`)
	decl := file.Decls[0].(*ast.FuncDecl)
	outer := decl.Body.List[0].(*ast.ExprStmt).X.(*ast.CallExpr)
	before := FuncDecl(fset, decl, nil).Disassemble()

	edits := NewEdits()
	restoreArg := edits.AppendArg(outer, &ast.BasicLit{Kind: token.STRING, Value: `"mark"`})
	restoreStmt := edits.Replace(decl.Body.List[1], &ast.ExprStmt{X: &ast.BasicLit{Kind: token.INT, Value: "1"}})
	assert.Equal(t, 2, edits.Len())

	u := FuncDecl(fset, decl, edits)
	want := []Opcode{
		LoadName, LoadName, Call, LoadConst, Call, Pop,
		LoadConst, Pop,
	}
	if diff := cmp.Diff(want, ops(u)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "mark", u.Instructions[3].Value)
	assert.Equal(t, 2, u.Instructions[4].Arg)
	assert.Len(t, outer.Args, 1, "the tree is never modified")

	restoreStmt()
	restoreArg()
	assert.Zero(t, edits.Len())
	assert.Equal(t, before, FuncDecl(fset, decl, edits).Disassemble())
	assert.Zero(t, (*Edits)(nil).Len())
}

func TestJumpsAndLabels(t *testing.T) {
	fset, file := parse(t, `package p

func f(ok bool) {
loop:
	for ok {
		if ok {
			continue loop
		}
		break loop
	}
	goto end
end:
	g()
}
`)
	u := funcUnit(t, File(fset, file, nil), "f")
	for _, in := range u.Instructions {
		if in.Op.IsJump() {
			assert.GreaterOrEqual(t, in.Arg, 0, "unpatched %s\n%s", in, u.Disassemble())
			_, ok := u.At(in.Arg)
			assert.True(t, ok || in.Arg == len(u.Instructions)*Width, "target %d out of range", in.Arg)
		}
	}
	require.Len(t, u.Calls(), 1)
}

func TestInitUnit(t *testing.T) {
	fset, file := parse(t, `package p

const c = 1

var (
	a = f()
	b, d = g()
	e int
)
`)
	u := Init(fset, file, nil)
	assert.Equal(t, UnitID{Kind: KindFile, Name: "p", Line: 1}, u.ID)
	want := []Opcode{
		LoadName, Call, StoreName,
		LoadName, Call, Unpack, StoreName, StoreName,
		LoadType, StoreName,
	}
	if diff := cmp.Diff(want, ops(u)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "d", u.Instructions[6].Value)
}

func TestFuncName(t *testing.T) {
	_, file := parse(t, `package p

func plain() {}
func (s S) value() {}
func (s *S) pointer() {}
func (l *List[T]) generic() {}
func (m *Map[K, V]) pair() {}
`)
	var got []string
	for _, d := range file.Decls {
		got = append(got, FuncName(d.(*ast.FuncDecl)))
	}
	want := []string{"plain", "S.value", "S.pointer", "List.generic", "Map.pair"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}
