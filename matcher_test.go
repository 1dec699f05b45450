package callsite

import (
	"go/ast"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"go-callsite/compile"
)

type fixture struct {
	name string
	src  []byte
}

func loadFixtures(t *testing.T, archive string) []fixture {
	t.Helper()
	a, err := txtar.ParseFile(filepath.Join("testdata", archive))
	require.NoError(t, err)
	var out []fixture
	for _, f := range a.Files {
		if strings.HasSuffix(f.Name, ".go") {
			out = append(out, fixture{name: f.Name, src: f.Data})
		}
	}
	require.NotEmpty(t, out)
	return out
}

func indexFixture(t *testing.T, r *Resolver, archive, name string) *SourceFile {
	t.Helper()
	for _, fx := range loadFixtures(t, archive) {
		if fx.name == name {
			f, err := r.IndexSource(fx.name, fx.src)
			require.NoError(t, err)
			return f
		}
	}
	t.Fatalf("%s has no file %s", archive, name)
	return nil
}

// unitCalls returns the call instructions of the unit compiled from the
// function named fn, and the unit itself.
func unitCalls(t *testing.T, f *SourceFile, fn string) (*compile.Unit, []compile.Instruction) {
	t.Helper()
	for _, u := range compile.File(f.Fset, f.AST, nil).Funcs {
		if u.ID.Name == fn {
			return u, u.Calls()
		}
	}
	t.Fatalf("no function %s", fn)
	return nil, nil
}

func TestResolveRoundTrip(t *testing.T) {
	for _, fx := range loadFixtures(t, "roundtrip.txtar") {
		t.Run(fx.name, func(t *testing.T) {
			r := NewResolver()
			f, err := r.IndexSource(fx.name, fx.src)
			require.NoError(t, err)

			resolved := 0
			for _, u := range compile.File(f.Fset, f.AST, nil).Units() {
				for _, in := range u.Calls() {
					pos := PositionOf(f.Path, u, in)
					site, err := r.Resolve(pos)
					require.NoError(t, err, "%s: %s\n%s", pos, f.LineText(in.Line), u.Disassemble())
					assert.Same(t, in.Source, site.Call, "%s: got %s", pos, f.Text(site.Call))
					resolved++
				}
			}
			assert.NotZero(t, resolved)
		})
	}
}

func TestResolveIdenticalCalls(t *testing.T) {
	r := NewResolver()
	f := indexFixture(t, r, "roundtrip.txtar", "calls.go")
	u, calls := unitCalls(t, f, "identical")
	require.Len(t, calls, 3)

	var columns []int
	for _, in := range calls {
		site, err := r.Resolve(PositionOf(f.Path, u, in))
		require.NoError(t, err)
		assert.Equal(t, "fmt.Println(1)", site.Source(site.Call))
		columns = append(columns, f.Fset.Position(site.Call.Pos()).Column)
	}
	if diff := cmp.Diff([]int{2, 18, 34}, columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveInnerCall(t *testing.T) {
	r := NewResolver()
	f, err := r.IndexSource("inner.go", []byte("package p\n\nfunc main() { g(f()) }\n"))
	require.NoError(t, err)
	u, calls := unitCalls(t, f, "main")
	require.Len(t, calls, 2)

	site, err := r.Resolve(PositionOf(f.Path, u, calls[0]))
	require.NoError(t, err)
	assert.Equal(t, "f()", site.Source(site.Call))

	site, err = r.Resolve(PositionOf(f.Path, u, calls[1]))
	require.NoError(t, err)
	assert.Equal(t, "g(f())", site.Source(site.Call))
}

func TestResolveInfersUnit(t *testing.T) {
	r := NewResolver()
	f := indexFixture(t, r, "roundtrip.txtar", "calls.go")
	u, calls := unitCalls(t, f, "nested")
	require.NotEmpty(t, calls)

	pos := PositionOf(f.Path, u, calls[0])
	pos.Unit = compile.UnitID{}
	site, err := r.Resolve(pos)
	require.NoError(t, err)
	assert.Same(t, calls[0].Source, site.Call)
}

func TestResolveAmbiguous(t *testing.T) {
	r := NewResolver()

	t.Run("different bodies", func(t *testing.T) {
		f := indexFixture(t, r, "ambiguous.txtar", "bodies.go")
		u, calls := unitCalls(t, f, "bodies")
		require.Len(t, calls, 2)
		for _, in := range calls {
			_, err := r.Resolve(PositionOf(f.Path, u, in))
			assert.ErrorIs(t, err, ErrAmbiguousCallSite)
		}
	})

	t.Run("literals share a line", func(t *testing.T) {
		f := indexFixture(t, r, "ambiguous.txtar", "literals.go")
		var lits []*compile.Unit
		for _, u := range compile.File(f.Fset, f.AST, nil).Units() {
			if u.ID.Kind == compile.KindFuncLit {
				lits = append(lits, u)
			}
		}
		require.Len(t, lits, 2)
		assert.Equal(t, 0, lits[0].ID.Index)
		assert.Equal(t, 1, lits[1].ID.Index)

		var sites []*ast.CallExpr
		for _, u := range lits {
			in := u.Calls()[0]
			pos := PositionOf(f.Path, u, in)
			site, err := r.Resolve(pos)
			require.NoError(t, err)
			assert.Same(t, in.Source, site.Call)
			sites = append(sites, site.Call)

			pos.Unit = compile.UnitID{}
			_, err = r.Resolve(pos)
			assert.ErrorIs(t, err, ErrAmbiguousCallSite)
		}
		assert.NotSame(t, sites[0], sites[1])
	})

	t.Run("not a call instruction", func(t *testing.T) {
		f := indexFixture(t, r, "roundtrip.txtar", "calls.go")
		u, calls := unitCalls(t, f, "nested")
		pos := PositionOf(f.Path, u, calls[0])
		pos.Offset = 0
		_, err := r.Resolve(pos)
		assert.ErrorIs(t, err, ErrAmbiguousCallSite)

		pos.Offset = calls[0].Offset + 1
		_, err = r.Resolve(pos)
		assert.ErrorIs(t, err, ErrAmbiguousCallSite)
	})

	t.Run("unknown unit", func(t *testing.T) {
		f := indexFixture(t, r, "roundtrip.txtar", "calls.go")
		u, calls := unitCalls(t, f, "nested")
		pos := PositionOf(f.Path, u, calls[0])
		pos.Unit.Name = "missing"
		_, err := r.Resolve(pos)
		assert.ErrorIs(t, err, ErrAmbiguousCallSite)
	})

	t.Run("marker in source", func(t *testing.T) {
		r := NewResolver(WithMarker("boom"))
		f, err := r.IndexSource("marker.go", []byte("package p\n\nfunc m() {\n\tprintln(\"boom\", f())\n}\n"))
		require.NoError(t, err)
		u, calls := unitCalls(t, f, "m")
		require.Len(t, calls, 2)
		_, err = r.Resolve(PositionOf(f.Path, u, calls[1]))
		assert.ErrorIs(t, err, ErrAmbiguousCallSite)
	})
}

func TestCandidateCallsOrder(t *testing.T) {
	f := parseTest(t, "package p\n\nfunc c() {\n\ta(b(), func() { x() }(), d(e()))\n}\n")
	stmt, ok := f.Statement(findCall(t, f, 4, "a"))
	require.True(t, ok)

	var got []string
	for _, call := range candidateCalls([]ast.Node{stmt}) {
		got = append(got, f.Text(call.Fun))
	}
	// The literal's own body is not searched; the call of the literal is.
	want := []string{"a", "b", "func() { x() }", "d", "e"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}
