// Command callsitegraph resolves every call instruction of a Go module back
// to its call expression and loads the resulting call sites, together with
// their VTA call targets, into Neo4j.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	callsite "go-callsite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("callsitegraph", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "TOML configuration file")
		dir        = fs.String("dir", ".", "Project root directory")
		neo4jURI   = fs.String("neo4j-uri", "bolt://localhost:7687", "Neo4j bolt URI")
		neo4jUser  = fs.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass  = fs.String("neo4j-pass", "", "Neo4j password (default $NEO4J_PASSWORD)")
		clean      = fs.Bool("clean", false, "Clean existing call-site graph data before loading")
		dryRun     = fs.Bool("dry-run", false, "Resolve and report without loading into Neo4j")
		logLevel   = fs.String("log-level", "info", "Log level: debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}
	// Flags given on the command line win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Dir = *dir
		case "neo4j-uri":
			cfg.Neo4j.URI = *neo4jURI
		case "neo4j-user":
			cfg.Neo4j.User = *neo4jUser
		case "neo4j-pass":
			cfg.Neo4j.Password = *neo4jPass
		case "clean":
			cfg.Neo4j.Clean = *clean
		case "dry-run":
			cfg.DryRun = *dryRun
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if cfg.Neo4j.Password == "" {
		cfg.Neo4j.Password = os.Getenv("NEO4J_PASSWORD")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	absDir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return err
	}
	modulePath, err := detectModulePath(absDir)
	if err != nil {
		return fmt.Errorf("cannot detect Go module: %w", err)
	}
	logger.Info("analysing module", "module", modulePath, "dir", absDir)

	logger.Info("loading packages", "patterns", cfg.Patterns)
	pkgCfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypesSizes,
		Dir: absDir,
	}
	pkgs, err := packages.Load(pkgCfg, cfg.Patterns...)
	if err != nil {
		return fmt.Errorf("failed to load packages: %w", err)
	}
	if n := packages.PrintErrors(pkgs); n > 0 {
		logger.Warn("package errors, continuing anyway", "count", n)
	}
	logger.Info("loaded packages", "count", len(pkgs))

	reg := prometheus.NewRegistry()
	opts := []callsite.Option{
		callsite.WithLogger(logger),
		callsite.WithRegisterer(reg),
		callsite.WithMatchCacheSize(cfg.Resolver.MatchCacheSize),
	}
	if cfg.Resolver.MaxFileSize > 0 {
		opts = append(opts, callsite.WithMaxFileSize(cfg.Resolver.MaxFileSize))
	}
	collector := NewCollector(modulePath, absDir, callsite.NewResolver(opts...), logger)

	logger.Info("collecting functions")
	collector.CollectFuncs(pkgs)

	logger.Info("resolving call sites")
	collector.CollectCallSites(pkgs)

	logger.Info("building SSA and call graph (VTA)")
	collector.CollectCallGraph(pkgs)

	s := collector.Stats
	logger.Info("collected",
		"packages", len(collector.Packages),
		"functions", len(collector.Funcs),
		"files", s.Files,
		"calls", s.Calls,
		"resolved", s.Resolved,
		"unresolved", s.Unresolved,
		"mismatched", s.Mismatched,
		"edges", s.Edges,
		"unjoined", s.Unjoined,
	)
	logResolutions(logger, reg)

	if cfg.DryRun {
		logger.Info("dry run, skipping neo4j")
		return nil
	}

	ctx := context.Background()
	loader, err := NewNeo4jLoader(ctx, cfg.Neo4j, logger)
	if err != nil {
		return err
	}
	defer loader.Close()

	if cfg.Neo4j.Clean {
		if err := loader.CleanGraph(); err != nil {
			return err
		}
	}
	steps := []func() error{
		loader.CreateIndexes,
		func() error { return loader.LoadPackages(collector.Packages) },
		func() error { return loader.LoadFuncs(collector.Funcs) },
		func() error { return loader.LoadCallSites(collector.Sites) },
		func() error { return loader.LoadCalls(collector.Calls) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	logger.Info("graph loaded into neo4j")
	fmt.Println("Useful Cypher queries:")
	fmt.Println("  // Call sites of a function, with the names their results are bound to")
	fmt.Println("  MATCH (f:GoFunc {name: 'main'})-[:HAS_CALL_SITE]->(s) RETURN s.line, s.text, s.assigned_names ORDER BY s.line")
	fmt.Println("")
	fmt.Println("  // Functions with most call sites")
	fmt.Println("  MATCH (f:GoFunc)-[:HAS_CALL_SITE]->(s) RETURN f.full_name, count(s) AS sites ORDER BY sites DESC LIMIT 20")
	fmt.Println("")
	fmt.Println("  // Who calls a specific function, and from where")
	fmt.Println("  MATCH (caller:GoFunc)-[:HAS_CALL_SITE]->(s)-[:RESOLVES_TO]->(f:GoFunc {name: 'CreateOrder'}) RETURN caller.full_name, s.key")
	fmt.Println("")
	fmt.Println("  // Dynamic (interface) call sites with more than one target")
	fmt.Println("  MATCH (s:GoCallSite)-[r:RESOLVES_TO {is_dynamic: true}]->(t) WITH s, count(t) AS n WHERE n > 1 RETURN s.key, s.text, n")
	return nil
}

// logResolutions reports the resolver's result counters.
func logResolutions(logger *slog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		if mf.GetName() != "callsite_resolutions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				logger.Debug("resolutions", "result", lp.GetValue(), "count", int(m.GetCounter().GetValue()))
			}
		}
	}
}

// detectModulePath returns the module path declared by the go.mod file in
// dir.
func detectModulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("cannot read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("module directive not found in go.mod")
	}
	return path, nil
}
