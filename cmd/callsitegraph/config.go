package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the callsitegraph configuration file.
type Config struct {
	Dir      string         `toml:"dir"`
	Patterns []string       `toml:"patterns"`
	LogLevel string         `toml:"log_level"`
	DryRun   bool           `toml:"dry_run"`
	Neo4j    Neo4jConfig    `toml:"neo4j"`
	Resolver ResolverConfig `toml:"resolver"`
}

// Neo4jConfig holds the connection and load settings for the Neo4j sink.
type Neo4jConfig struct {
	URI       string `toml:"uri"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Clean     bool   `toml:"clean"`
	BatchSize int    `toml:"batch_size"`
}

// ResolverConfig tunes the call-site resolver. Zero values keep the
// resolver defaults.
type ResolverConfig struct {
	MatchCacheSize int   `toml:"match_cache_size"`
	MaxFileSize    int64 `toml:"max_file_size"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Dir:      ".",
		Patterns: []string{"./..."},
		LogLevel: "info",
		Neo4j: Neo4jConfig{
			URI:       "bolt://localhost:7687",
			User:      "neo4j",
			BatchSize: 1000,
		},
	}
}

// LoadConfig reads path over the defaults. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate reports every problem with c.
func (c Config) Validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("dir must not be empty"))
	}
	if len(c.Patterns) == 0 {
		errs = append(errs, errors.New("patterns must not be empty"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Neo4j.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("neo4j.batch_size must be positive, got %d", c.Neo4j.BatchSize))
	}
	if c.Resolver.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("resolver.max_file_size must not be negative, got %d", c.Resolver.MaxFileSize))
	}
	if !c.DryRun {
		if c.Neo4j.URI == "" {
			errs = append(errs, errors.New("neo4j.uri is required"))
		}
		if c.Neo4j.Password == "" {
			errs = append(errs, errors.New("neo4j password is required (-neo4j-pass or NEO4J_PASSWORD)"))
		}
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
