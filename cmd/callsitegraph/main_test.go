package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectModulePath(t *testing.T) {
	dir := t.TempDir()
	_, err := detectModulePath(dir)
	assert.ErrorContains(t, err, "cannot read go.mod")

	gomod := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(gomod, []byte("// app\nmodule example.com/app\n\ngo 1.24\n"), 0o644))
	got, err := detectModulePath(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", got)

	require.NoError(t, os.WriteFile(gomod, []byte("module \"example.com/quoted\" // legacy\n"), 0o644))
	got, err = detectModulePath(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/quoted", got)

	require.NoError(t, os.WriteFile(gomod, []byte("go 1.24\n"), 0o644))
	_, err = detectModulePath(dir)
	assert.ErrorContains(t, err, "module directive not found")
}

func TestRunRejectsBadConfiguration(t *testing.T) {
	t.Setenv("NEO4J_PASSWORD", "")

	err := run([]string{"-dir", t.TempDir()})
	assert.ErrorContains(t, err, "password is required")

	err = run([]string{"-dry-run", "-log-level", "loud"})
	assert.ErrorContains(t, err, "log_level")

	err = run([]string{"-config", filepath.Join(t.TempDir(), "absent.toml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
