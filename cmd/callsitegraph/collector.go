package main

import (
	"fmt"
	"go/ast"
	"go/types"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	callsite "go-callsite"
	"go-callsite/compile"
)

// Collector gathers functions, resolved call sites and call targets from
// Go packages.
type Collector struct {
	RootModule string
	RootDir    string

	Packages map[string]*PackageNode
	Funcs    map[string]*FuncNode
	Sites    map[string]*CallSiteNode
	Calls    []CallEdge
	Stats    Stats

	resolver *callsite.Resolver
	logger   *slog.Logger
}

// NewCollector creates a Collector scoped to the given root module path
// and directory. Call sites are resolved with r.
func NewCollector(rootModule, rootDir string, r *callsite.Resolver, logger *slog.Logger) *Collector {
	return &Collector{
		RootModule: rootModule,
		RootDir:    rootDir,
		Packages:   make(map[string]*PackageNode),
		Funcs:      make(map[string]*FuncNode),
		Sites:      make(map[string]*CallSiteNode),
		resolver:   r,
		logger:     logger,
	}
}

// isProjectPackage reports whether pkgPath belongs to the analysed module.
func (c *Collector) isProjectPackage(pkgPath string) bool {
	return pkgPath == c.RootModule || strings.HasPrefix(pkgPath, c.RootModule+"/")
}

// relPath strips the module prefix from a package path, returning a path
// relative to the project root.
func (c *Collector) relPath(pkgPath string) string {
	rest := strings.TrimPrefix(pkgPath, c.RootModule)
	return strings.TrimPrefix(rest, "/")
}

// relFile returns filename relative to the project directory, with forward
// slashes.
func (c *Collector) relFile(filename string) string {
	if rel, err := filepath.Rel(c.RootDir, filename); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(filename)
}

func (c *Collector) siteKey(filename string, line, column int) string {
	return fmt.Sprintf("%s:%d:%d", c.relFile(filename), line, column)
}

// CollectFuncs walks all project packages and records packages, functions
// and methods.
func (c *Collector) CollectFuncs(pkgs []*packages.Package) {
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		if !c.isProjectPackage(pkg.PkgPath) || pkg.Types == nil {
			return
		}

		c.Packages[pkg.PkgPath] = &PackageNode{
			ImportPath: pkg.PkgPath,
			Name:       pkg.Name,
			Dir:        c.relPath(pkg.PkgPath),
		}

		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			switch o := scope.Lookup(name).(type) {
			case *types.Func:
				pos := pkg.Fset.Position(o.Pos())
				c.addFunc(&FuncNode{
					Name:     name,
					FullName: pkg.PkgPath + "." + name,
					Package:  pkg.PkgPath,
					File:     c.relFile(pos.Filename),
					Line:     pos.Line,
					Exported: o.Exported(),
				})
			case *types.TypeName:
				named, ok := o.Type().(*types.Named)
				if !ok {
					continue
				}
				for i := 0; i < named.NumMethods(); i++ {
					m := named.Method(i)
					pos := pkg.Fset.Position(m.Pos())
					c.addFunc(&FuncNode{
						Name:     m.Name(),
						FullName: pkg.PkgPath + "." + name + "." + m.Name(),
						Package:  pkg.PkgPath,
						File:     c.relFile(pos.Filename),
						Line:     pos.Line,
						Exported: m.Exported(),
						Receiver: name,
						IsMethod: true,
					})
				}
			}
		}
	})
}

func (c *Collector) addFunc(fn *FuncNode) {
	if _, ok := c.Funcs[fn.FullName]; !ok {
		c.Funcs[fn.FullName] = fn
	}
}

// CollectCallSites resolves every call instruction in the Go files of the
// project packages.
func (c *Collector) CollectCallSites(pkgs []*packages.Package) {
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		if !c.isProjectPackage(pkg.PkgPath) {
			return
		}
		for _, file := range pkg.GoFiles {
			if err := c.CollectFile(file, pkg.PkgPath); err != nil {
				c.logger.Warn("skipping file", "file", c.relFile(file), "error", err)
			}
		}
	})
}

// CollectFile compiles one file and resolves each of its call instructions
// back to a call expression. Instructions that resolve to a different
// expression than they were compiled from count as mismatched.
func (c *Collector) CollectFile(filename, pkgPath string) error {
	f, err := c.resolver.Index(filename)
	if err != nil {
		return err
	}
	c.Stats.Files++

	prog := compile.File(f.Fset, f.AST, nil)
	roots := append([]*compile.Unit{prog.Init}, prog.Funcs...)
	for _, root := range roots {
		caller := pkgPath + ".init"
		if decl, ok := root.Node.(*ast.FuncDecl); ok {
			caller = pkgPath + "." + compile.FuncName(decl)
		}
		root.Walk(func(u *compile.Unit) bool {
			for _, in := range u.Calls() {
				c.collectCall(f, u, in, caller, pkgPath)
			}
			return true
		})
	}
	return nil
}

func (c *Collector) collectCall(f *callsite.SourceFile, u *compile.Unit, in compile.Instruction, caller, pkgPath string) {
	c.Stats.Calls++
	pos := callsite.PositionOf(f.Path, u, in)
	site, err := c.resolver.Resolve(pos)
	if err != nil {
		c.Stats.Unresolved++
		c.logger.Debug("unresolved call", "position", pos.String(), "code", callsite.CodeOf(err), "error", err)
		return
	}
	if site.Call != in.Source {
		c.Stats.Mismatched++
		c.logger.Warn("call resolved to a different expression",
			"position", pos.String(),
			"want", f.Text(in.Source),
			"got", site.Source(site.Call),
		)
		return
	}
	c.Stats.Resolved++

	lparen := f.Fset.Position(site.Call.Lparen)
	node := &CallSiteNode{
		Key:     c.siteKey(f.Path, lparen.Line, lparen.Column),
		Caller:  caller,
		Package: pkgPath,
		File:    c.relFile(f.Path),
		Line:    lparen.Line,
		Column:  lparen.Column,
		Unit:    u.ID.String(),
		Offset:  in.Offset,
		Op:      in.Op.String(),
		Text:    site.Source(site.Call),
		Args:    site.Args(),
	}
	if names, _, err := site.AssignedNames(callsite.TargetOptions{AllowSingle: true, AllowLoops: true}); err == nil {
		node.Names = names
	}
	c.Sites[node.Key] = node
}

// CollectCallGraph builds SSA, runs VTA, and attaches each call edge to the
// call site it originates from.
func (c *Collector) CollectCallGraph(pkgs []*packages.Package) {
	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	for _, p := range ssaPkgs {
		if p != nil {
			p.Build()
		}
	}

	// VTA (Variable Type Analysis) balances precision and speed.
	cg := vta.CallGraph(ssautil.AllFunctions(prog), nil)

	callgraph.GraphVisitEdges(cg, func(edge *callgraph.Edge) error {
		if edge.Site == nil {
			return nil
		}
		caller := edge.Caller.Func
		callee := edge.Callee.Func
		if caller.Pkg == nil || !c.isProjectPackage(caller.Pkg.Pkg.Path()) {
			return nil
		}

		pos := prog.Fset.Position(edge.Site.Common().Pos())
		if !pos.IsValid() {
			return nil
		}
		key := c.siteKey(pos.Filename, pos.Line, pos.Column)
		if _, ok := c.Sites[key]; !ok {
			c.Stats.Unjoined++
			return nil
		}

		calleeName := buildSSAFuncName(callee)
		c.Calls = append(c.Calls, CallEdge{
			SiteKey:        key,
			CalleeFullName: calleeName,
			IsDynamic:      edge.Site.Common().IsInvoke(),
		})
		c.Stats.Edges++

		if callee.Pkg != nil && c.isProjectPackage(callee.Pkg.Pkg.Path()) {
			c.addFunc(&FuncNode{
				Name:     callee.Name(),
				FullName: calleeName,
				Package:  callee.Pkg.Pkg.Path(),
				Exported: callee.Object() != nil && callee.Object().Exported(),
			})
		}
		return nil
	})
}

// buildSSAFuncName derives a full name for an SSA function that matches
// the naming convention used by FuncNode.FullName.
func buildSSAFuncName(fn *ssa.Function) string {
	if fn.Pkg == nil {
		return fn.String()
	}
	pkgPath := fn.Pkg.Pkg.Path()

	// Method: (*Type).Method or Type.Method
	if recv := fn.Signature.Recv(); recv != nil {
		recvType := recv.Type()
		if ptr, ok := recvType.(*types.Pointer); ok {
			recvType = ptr.Elem()
		}
		if named, ok := recvType.(*types.Named); ok {
			return pkgPath + "." + named.Obj().Name() + "." + fn.Name()
		}
	}
	return pkgPath + "." + fn.Name()
}
