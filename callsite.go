// Package callsite resolves execution positions in Go source to the call
// expressions that produced them, and call expressions to the names their
// results are assigned to.
//
// An execution position is a file, a line, an instruction offset and the
// identity of the compiled unit that is running, as reported against the
// lowering in package compile. A Resolver parses each file once and
// matches positions by recompiling the statements on the line with a
// marker argument appended to one candidate call at a time.
package callsite

import (
	"fmt"
	"go/ast"

	"go-callsite/compile"
)

// Position is an execution position: the instruction at Offset within the
// compiled unit Unit, attributed to Line of Filename. A zero Unit is
// inferred from the line.
type Position struct {
	Filename string
	Line     int
	Offset   int
	Unit     compile.UnitID
}

// PositionOf returns the position of the instruction in in unit u.
func PositionOf(filename string, u *compile.Unit, in compile.Instruction) Position {
	return Position{
		Filename: filename,
		Line:     in.Line,
		Offset:   in.Offset,
		Unit:     u.ID,
	}
}

func (p Position) String() string {
	if p.Unit.IsZero() {
		return fmt.Sprintf("%s:%d+%d", p.Filename, p.Line, p.Offset)
	}
	return fmt.Sprintf("%s:%d+%d (%s)", p.Filename, p.Line, p.Offset, p.Unit)
}

// CallSite is a resolved call: the call expression, the position it was
// resolved from and the file it lives in.
type CallSite struct {
	Call     *ast.CallExpr
	Position Position
	File     *SourceFile
}

// Source returns the source text of any node in the call's file.
func (c *CallSite) Source(n ast.Node) string {
	return c.File.Text(n)
}

// Statement returns the statement containing the call.
func (c *CallSite) Statement() ast.Node {
	stmt, _ := c.File.Statement(c.Call)
	return stmt
}

// AssignedNames returns the names the call's result is assigned to.
func (c *CallSite) AssignedNames(opts TargetOptions) ([]string, ast.Node, error) {
	return c.File.AssignedNames(c.Call, opts)
}

// Args returns the source text of each argument of the call.
func (c *CallSite) Args() []string {
	args := make([]string, len(c.Call.Args))
	for i, a := range c.Call.Args {
		args[i] = c.File.Text(a)
	}
	return args
}

func (c *CallSite) String() string {
	return fmt.Sprintf("%s:%d: %s", c.File.Path, c.File.Line(c.Call), c.File.Text(c.Call))
}
