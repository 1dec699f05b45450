package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestChunks(t *testing.T) {
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = map[string]any{"i": i}
	}

	var sizes []int
	for _, c := range chunks(rows, 2) {
		sizes = append(sizes, len(c))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	assert.Len(t, chunks(rows, 0), 1)
	assert.Empty(t, chunks(nil, 10))
}

func TestRows(t *testing.T) {
	pkgs := map[string]*PackageNode{
		"example.com/m/b": {ImportPath: "example.com/m/b", Name: "b", Dir: "b"},
		"example.com/m/a": {ImportPath: "example.com/m/a", Name: "a", Dir: "a"},
	}
	got := packageRows(pkgs)
	want := []map[string]any{
		{"path": "example.com/m/a", "name": "a", "dir": "a"},
		{"path": "example.com/m/b", "name": "b", "dir": "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("package rows mismatch (-want +got):\n%s", diff)
	}

	sites := map[string]*CallSiteNode{
		"m.go:6:8": {Key: "m.go:6:8", Caller: "example.com/m.g", Line: 6, Column: 8, Op: "CALL", Text: "f()"},
	}
	row := callSiteRows(sites)[0]
	assert.Equal(t, "example.com/m.g", row["caller"])
	assert.Equal(t, []string{}, row["args"], "absent lists load as empty")
	assert.Equal(t, []string{}, row["names"])

	edges := callRows([]CallEdge{{SiteKey: "m.go:6:8", CalleeFullName: "example.com/m.f", IsDynamic: true}})
	assert.Equal(t, map[string]any{"site": "m.go:6:8", "callee": "example.com/m.f", "dynamic": true}, edges[0])

	funcs := funcRows(map[string]*FuncNode{
		"example.com/m.T.M": {Name: "M", FullName: "example.com/m.T.M", Receiver: "T", IsMethod: true},
	})
	assert.Equal(t, "T", funcs[0]["receiver"])
	assert.Equal(t, true, funcs[0]["is_method"])
}
