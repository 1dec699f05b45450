package callsite

import (
	"go/ast"
	"go/token"
	"log/slog"
	"sort"

	"go-callsite/compile"
)

// matcher finds the call expression behind one execution position by
// sentinel-marker differential matching: the statements on the line are
// recompiled once as they are and once per candidate call with a marker
// argument appended, and the candidate whose call instruction lands on
// the same ordinal as the executing instruction wins.
type matcher struct {
	file    *SourceFile
	marker  string
	logger  *slog.Logger
	metrics *metrics
}

func (m *matcher) ambiguous(pos Position, format string, args ...any) *Error {
	return newError(CodeAmbiguousCallSite, format, args...).
		WithContext(CtxPath, m.file.Path).
		WithContext(CtxLine, pos.Line).
		WithContext(CtxOffset, pos.Offset)
}

func (m *matcher) match(pos Position) (*ast.CallExpr, error) {
	unit, id, err := m.unit(pos)
	if err != nil {
		return nil, err
	}
	stmts, err := m.statements(pos, unit)
	if err != nil {
		return nil, err
	}

	start, err := m.stmtOffset(pos, stmts[0], unit, id)
	if err != nil {
		return nil, err
	}
	rel := pos.Offset - start

	base := compile.Statements(m.file.Fset, stmts, nil)
	m.metrics.compiled()
	in, ok := base.At(rel)
	if !ok || !in.Op.IsCall() {
		return nil, m.ambiguous(pos, "no call instruction at relative offset %d", rel)
	}
	target := callOrdinal(base, rel/compile.Width)

	edits := compile.NewEdits()
	for _, call := range candidateCalls(stmts) {
		ordinal, found, err := m.trial(pos, edits, stmts, call)
		if err != nil {
			return nil, err
		}
		m.logger.Debug("call-site trial",
			"path", m.file.Path,
			"line", pos.Line,
			"call", m.file.Text(call),
			"ordinal", ordinal,
			"target", target,
			"found", found,
		)
		if found && ordinal == target {
			return call, nil
		}
	}
	return nil, m.ambiguous(pos, "no call expression matches call #%d", target)
}

// trial compiles stmts with marker appended to the arguments of call and
// returns the ordinal of the call instruction that consumes it.
func (m *matcher) trial(pos Position, edits *compile.Edits, stmts []ast.Node, call *ast.CallExpr) (int, bool, error) {
	restore := edits.AppendArg(call, markerLit(m.marker))
	defer restore()

	u := compile.Statements(m.file.Fset, stmts, edits)
	m.metrics.compiled()
	loads := markerLoads(u, m.marker)
	switch len(loads) {
	case 0:
		return 0, false, nil
	case 1:
	default:
		return 0, false, m.ambiguous(pos, "marker loaded %d times", len(loads))
	}
	i, ok := nextCall(u, loads[0])
	if !ok {
		return 0, false, nil
	}
	return callOrdinal(u, i), true, nil
}

// unit returns the syntax of the unit executing at pos. A zero pos.Unit is
// inferred from the statements on the line.
func (m *matcher) unit(pos Position) (ast.Node, compile.UnitID, error) {
	if !pos.Unit.IsZero() {
		n, ok := m.file.UnitByID(pos.Unit)
		if !ok {
			return nil, pos.Unit, m.ambiguous(pos, "no unit %s", pos.Unit).WithContext(CtxUnit, pos.Unit.String())
		}
		return n, pos.Unit, nil
	}

	var units []ast.Node
	for _, n := range m.file.NodesAt(pos.Line) {
		stmt, ok := m.file.Statement(n)
		if !ok || !m.executes(stmt) {
			continue
		}
		u := m.file.UnitOf(n)
		if indexOf(units, u) < 0 {
			units = append(units, u)
		}
	}
	switch len(units) {
	case 0:
		return nil, pos.Unit, m.ambiguous(pos, "no statement on line")
	case 1:
		id, _ := m.file.UnitID(units[0])
		return units[0], id, nil
	}
	return nil, pos.Unit, m.ambiguous(pos, "%d units execute on line", len(units))
}

// executes reports whether stmt is compiled at all. At file level only var
// declarations run.
func (m *matcher) executes(stmt ast.Node) bool {
	if _, ok := m.file.Parent(stmt).(*ast.File); ok {
		g, ok := stmt.(*ast.GenDecl)
		return ok && g.Tok == token.VAR
	}
	return true
}

// statements returns the statements of unit that start on or contain the
// first node of pos.Line, ordered as in their common body. Statements
// nested in another statement of the group fold into it.
func (m *matcher) statements(pos Position, unit ast.Node) ([]ast.Node, error) {
	var stmts []ast.Node
	for _, n := range m.file.NodesAt(pos.Line) {
		if m.file.UnitOf(n) != unit {
			continue
		}
		stmt, ok := m.file.Statement(n)
		if !ok || !m.executes(stmt) || indexOf(stmts, stmt) >= 0 {
			continue
		}
		stmts = append(stmts, stmt)
	}
	stmts = m.outermost(stmts)
	if len(stmts) == 0 {
		return nil, m.ambiguous(pos, "no statement on line")
	}

	body, _ := m.file.Body(stmts[0])
	for _, s := range stmts[1:] {
		if indexOf(body, s) < 0 {
			return nil, m.ambiguous(pos, "statements on line belong to different bodies")
		}
	}
	sort.Slice(stmts, func(i, j int) bool {
		return indexOf(body, stmts[i]) < indexOf(body, stmts[j])
	})
	return stmts, nil
}

func (m *matcher) outermost(stmts []ast.Node) []ast.Node {
	var out []ast.Node
	for _, s := range stmts {
		nested := false
		for _, other := range stmts {
			if other != s && m.encloses(other, s) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, s)
		}
	}
	return out
}

func (m *matcher) encloses(outer, n ast.Node) bool {
	for p := m.file.Parent(n); p != nil; p = m.file.Parent(p) {
		if p == outer {
			return true
		}
	}
	return false
}

// stmtOffset returns the offset of first within the executing unit. The
// enclosing root is recompiled with first replaced by a marker load.
func (m *matcher) stmtOffset(pos Position, first, unit ast.Node, id compile.UnitID) (int, error) {
	edits := compile.NewEdits()
	restore := edits.Replace(first, markerStmt(m.marker))
	defer restore()

	root := compileRoot(m.file, m.file.Root(unit), edits)
	m.metrics.compiled()
	u, err := findUnit(root, id)
	if err != nil {
		return 0, err
	}
	loads := markerLoads(u, m.marker)
	if len(loads) != 1 {
		return 0, m.ambiguous(pos, "statement marker loaded %d times in %s", len(loads), id)
	}
	return u.Instructions[loads[0]].Offset, nil
}

// candidateCalls returns the call expressions of stmts in source pre-order,
// outer before inner. Function literal bodies run in their own units and
// are skipped.
func candidateCalls(stmts []ast.Node) []*ast.CallExpr {
	var calls []*ast.CallExpr
	for _, s := range stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.FuncLit:
				return false
			case *ast.CallExpr:
				calls = append(calls, n)
			}
			return true
		})
	}
	return calls
}
