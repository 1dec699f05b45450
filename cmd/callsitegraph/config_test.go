package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callsitegraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
dir = "/src/app"
log_level = "debug"

[neo4j]
password = "secret"
batch_size = 50

[resolver]
match_cache_size = 4096
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/src/app", cfg.Dir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, 50, cfg.Neo4j.BatchSize)
	assert.Equal(t, 4096, cfg.Resolver.MatchCacheSize)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, []string{"./..."}, cfg.Patterns)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[neo4j]\nport = 7687\n"))
	assert.ErrorContains(t, err, "unknown keys neo4j.port")

	_, err = LoadConfig(writeConfig(t, "dir = \n"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	assert.ErrorContains(t, err, "password is required")

	cfg.DryRun = true
	assert.NoError(t, cfg.Validate())

	cfg.Patterns = nil
	cfg.LogLevel = "loud"
	cfg.Neo4j.BatchSize = 0
	cfg.Resolver.MaxFileSize = -1
	err = cfg.Validate()
	for _, want := range []string{"patterns", "log_level", "batch_size", "max_file_size"} {
		assert.ErrorContains(t, err, want)
	}
}
