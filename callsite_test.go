package callsite

import (
	"go/ast"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-callsite/compile"
)

const siteSrc = `package p

func spell() {
	foo, bar := magic(x+1, "two", other())
	_ = foo + bar
}
`

func TestCallSite(t *testing.T) {
	r := NewResolver()
	f, err := r.IndexSource("site.go", []byte(siteSrc))
	require.NoError(t, err)
	u, calls := unitCalls(t, f, "spell")
	require.Len(t, calls, 2)

	site, err := r.Resolve(PositionOf(f.Path, u, calls[1]))
	require.NoError(t, err)

	assert.Equal(t, `site.go:4: magic(x+1, "two", other())`, site.String())
	if diff := cmp.Diff([]string{"x+1", `"two"`, "other()"}, site.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, `foo, bar := magic(x+1, "two", other())`, site.Source(site.Statement()))

	names, node, err := site.AssignedNames(TargetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, names)
	assert.Same(t, site.Statement(), node)

	inner, err := r.Resolve(PositionOf(f.Path, u, calls[0]))
	require.NoError(t, err)
	assert.Equal(t, "other()", inner.Source(inner.Call))
	assert.Empty(t, inner.Args())
	_, _, err = inner.AssignedNames(TargetOptions{})
	require.NoError(t, err, "the enclosing assignment binds two names")
}

func TestPositionOf(t *testing.T) {
	u := &compile.Unit{ID: compile.UnitID{Kind: compile.KindFunc, Name: "spell", Line: 3}}
	in := compile.Instruction{Op: compile.Call, Offset: 8, Line: 4, Source: &ast.CallExpr{}}

	pos := PositionOf("site.go", u, in)
	assert.Equal(t, Position{Filename: "site.go", Line: 4, Offset: 8, Unit: u.ID}, pos)
	assert.Equal(t, "site.go:4+8 (func spell@3)", pos.String())

	pos.Unit = compile.UnitID{}
	assert.Equal(t, "site.go:4+8", pos.String())
}
