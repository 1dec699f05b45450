package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jLoader loads collected call-site data into a Neo4j database using
// batch UNWIND queries.
type Neo4jLoader struct {
	driver    neo4j.DriverWithContext
	ctx       context.Context
	batchSize int
	logger    *slog.Logger
}

// NewNeo4jLoader connects to Neo4j and returns a ready-to-use loader.
func NewNeo4jLoader(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jLoader, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("cannot reach neo4j at %s: %w", cfg.URI, err)
	}
	return &Neo4jLoader{driver: driver, ctx: ctx, batchSize: cfg.BatchSize, logger: logger}, nil
}

// Close releases the underlying Neo4j driver resources.
func (l *Neo4jLoader) Close() {
	l.driver.Close(l.ctx)
}

// runCypher runs a single Cypher statement with optional parameters.
func (l *Neo4jLoader) runCypher(cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(l.ctx, l.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// runBatches runs cypher once per chunk of rows, bound to $batch.
func (l *Neo4jLoader) runBatches(cypher string, rows []map[string]any) error {
	for _, chunk := range chunks(rows, l.batchSize) {
		if err := l.runCypher(cypher, map[string]any{"batch": chunk}); err != nil {
			return err
		}
	}
	return nil
}

func chunks(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = len(rows)
	}
	var out [][]map[string]any
	for len(rows) > 0 {
		n := min(size, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

// CleanGraph removes all previously loaded call-site nodes and relationships.
func (l *Neo4jLoader) CleanGraph() error {
	l.logger.Info("cleaning existing call-site graph")
	queries := []string{
		"MATCH ()-[r:RESOLVES_TO]->() DELETE r",
		"MATCH ()-[r:HAS_CALL_SITE]->() DELETE r",
		"MATCH ()-[r:IN_PACKAGE]->() DELETE r",
		"MATCH (n:GoCallSite) DETACH DELETE n",
		"MATCH (n:GoPackage) DETACH DELETE n",
		"MATCH (n:GoFunc) DETACH DELETE n",
	}
	for _, q := range queries {
		if err := l.runCypher(q, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes ensures the required Neo4j indexes exist.
func (l *Neo4jLoader) CreateIndexes() error {
	l.logger.Info("creating indexes")
	indexes := []string{
		"CREATE INDEX go_pkg_path IF NOT EXISTS FOR (n:GoPackage) ON (n.import_path)",
		"CREATE INDEX go_func_fullname IF NOT EXISTS FOR (n:GoFunc) ON (n.full_name)",
		"CREATE INDEX go_callsite_key IF NOT EXISTS FOR (n:GoCallSite) ON (n.key)",
	}
	for _, q := range indexes {
		if err := l.runCypher(q, nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadPackages upserts GoPackage nodes.
func (l *Neo4jLoader) LoadPackages(pkgs map[string]*PackageNode) error {
	l.logger.Info("loading packages", "count", len(pkgs))
	return l.runBatches(
		`UNWIND $batch AS row
		 MERGE (n:GoPackage {import_path: row.path})
		 SET n.name = row.name, n.dir = row.dir`,
		packageRows(pkgs),
	)
}

// LoadFuncs upserts GoFunc nodes and links them to their packages.
func (l *Neo4jLoader) LoadFuncs(funcs map[string]*FuncNode) error {
	l.logger.Info("loading functions", "count", len(funcs))
	return l.runBatches(
		`UNWIND $batch AS row
		 MERGE (n:GoFunc {full_name: row.fullname})
		 SET n.name = row.name, n.package = row.pkg, n.file = row.file,
		     n.line = row.line, n.exported = row.exported,
		     n.receiver = row.receiver, n.is_method = row.is_method
		 WITH n, row
		 MATCH (p:GoPackage {import_path: row.pkg})
		 MERGE (n)-[:IN_PACKAGE]->(p)`,
		funcRows(funcs),
	)
}

// LoadCallSites upserts GoCallSite nodes and HAS_CALL_SITE edges from the
// enclosing function.
func (l *Neo4jLoader) LoadCallSites(sites map[string]*CallSiteNode) error {
	l.logger.Info("loading call sites", "count", len(sites))
	return l.runBatches(
		`UNWIND $batch AS row
		 MERGE (s:GoCallSite {key: row.key})
		 SET s.package = row.pkg, s.file = row.file, s.line = row.line,
		     s.column = row.column, s.unit = row.unit, s.offset = row.offset,
		     s.op = row.op, s.text = row.text, s.args = row.args,
		     s.assigned_names = row.names
		 MERGE (f:GoFunc {full_name: row.caller})
		 MERGE (f)-[:HAS_CALL_SITE]->(s)`,
		callSiteRows(sites),
	)
}

// LoadCalls upserts RESOLVES_TO relationships from call sites to the
// functions they may invoke.
func (l *Neo4jLoader) LoadCalls(calls []CallEdge) error {
	l.logger.Info("loading call edges", "count", len(calls))
	return l.runBatches(
		`UNWIND $batch AS row
		 MATCH (s:GoCallSite {key: row.site})
		 MERGE (callee:GoFunc {full_name: row.callee})
		 MERGE (s)-[r:RESOLVES_TO]->(callee)
		 SET r.is_dynamic = row.dynamic`,
		callRows(calls),
	)
}

func packageRows(pkgs map[string]*PackageNode) []map[string]any {
	rows := make([]map[string]any, 0, len(pkgs))
	for _, p := range pkgs {
		rows = append(rows, map[string]any{
			"path": p.ImportPath,
			"name": p.Name,
			"dir":  p.Dir,
		})
	}
	sortRows(rows, "path")
	return rows
}

func funcRows(funcs map[string]*FuncNode) []map[string]any {
	rows := make([]map[string]any, 0, len(funcs))
	for _, fn := range funcs {
		rows = append(rows, map[string]any{
			"fullname": fn.FullName, "name": fn.Name, "pkg": fn.Package,
			"file": fn.File, "line": fn.Line, "exported": fn.Exported,
			"receiver": fn.Receiver, "is_method": fn.IsMethod,
		})
	}
	sortRows(rows, "fullname")
	return rows
}

func callSiteRows(sites map[string]*CallSiteNode) []map[string]any {
	rows := make([]map[string]any, 0, len(sites))
	for _, s := range sites {
		rows = append(rows, map[string]any{
			"key": s.Key, "caller": s.Caller, "pkg": s.Package,
			"file": s.File, "line": s.Line, "column": s.Column,
			"unit": s.Unit, "offset": s.Offset, "op": s.Op,
			"text": s.Text, "args": stringsOrEmpty(s.Args), "names": stringsOrEmpty(s.Names),
		})
	}
	sortRows(rows, "key")
	return rows
}

func callRows(calls []CallEdge) []map[string]any {
	rows := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, map[string]any{
			"site":    c.SiteKey,
			"callee":  c.CalleeFullName,
			"dynamic": c.IsDynamic,
		})
	}
	return rows
}

// stringsOrEmpty keeps Neo4j from storing null for an absent list.
func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sortRows(rows []map[string]any, key string) {
	sort.Slice(rows, func(i, j int) bool {
		return fmt.Sprint(rows[i][key]) < fmt.Sprint(rows[j][key])
	})
}
