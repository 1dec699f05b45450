package compile

import (
	"fmt"
	"go/ast"
	"strings"
)

// Width is the size in bytes of every instruction.
const Width = 2

// UnitKind classifies compiled units.
type UnitKind uint8

// Unit kinds.
const (
	// KindUnknown is the zero kind.
	KindUnknown UnitKind = iota
	// KindFile holds the package-level variable initialisers of one file.
	KindFile
	// KindFunc is a function or method declaration.
	KindFunc
	// KindFuncLit is a function literal.
	KindFuncLit
	// KindSynthetic is a nameless wrapper around a statement subset.
	KindSynthetic
)

func (k UnitKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFunc:
		return "func"
	case KindFuncLit:
		return "funclit"
	case KindSynthetic:
		return "synthetic"
	}
	return "unknown"
}

// UnitID identifies a compiled unit structurally. Function literals have
// no name; Index tells apart literals of the same kind that start on the
// same line within one root (function declaration or file initialiser),
// counted in source order.
type UnitID struct {
	Kind  UnitKind
	Name  string
	Line  int
	Index int
}

// IsZero reports whether id is the zero UnitID.
func (id UnitID) IsZero() bool { return id == UnitID{} }

func (id UnitID) String() string {
	if id.Name != "" {
		return fmt.Sprintf("%s %s@%d", id.Kind, id.Name, id.Line)
	}
	return fmt.Sprintf("%s@%d#%d", id.Kind, id.Line, id.Index)
}

// Instruction is one step of a compiled unit.
type Instruction struct {
	Op     Opcode
	Arg    int
	Offset int
	Line   int
	Value  any

	// Source is the syntax the instruction was lowered from. For call
	// instructions it is the *ast.CallExpr.
	Source ast.Node
}

func (in Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d %4d %s", in.Line, in.Offset, in.Op)
	if in.Op.IsCall() || in.Op.IsJump() || in.Arg != 0 {
		fmt.Fprintf(&b, " %d", in.Arg)
	}
	if in.Value != nil {
		fmt.Fprintf(&b, " (%v)", in.Value)
	}
	return b.String()
}

// Unit is the compiled form of one function body, file initialiser or
// synthetic wrapper.
type Unit struct {
	ID           UnitID
	Node         ast.Node
	Instructions []Instruction
	Children     []*Unit
}

// Calls returns the call instructions of u in order.
func (u *Unit) Calls() []Instruction {
	var calls []Instruction
	for _, in := range u.Instructions {
		if in.Op.IsCall() {
			calls = append(calls, in)
		}
	}
	return calls
}

// At returns the instruction at offset.
func (u *Unit) At(offset int) (Instruction, bool) {
	if offset < 0 || offset%Width != 0 || offset/Width >= len(u.Instructions) {
		return Instruction{}, false
	}
	return u.Instructions[offset/Width], true
}

// Walk calls fn for u and every nested unit, depth first in source order.
// Returning false from fn skips the children of that unit.
func (u *Unit) Walk(fn func(*Unit) bool) {
	if !fn(u) {
		return
	}
	for _, c := range u.Children {
		c.Walk(fn)
	}
}

// Disassemble renders the instructions of u, one per line.
func (u *Unit) Disassemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", u.ID)
	for _, in := range u.Instructions {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Program holds every root unit compiled from one file.
type Program struct {
	Init  *Unit
	Funcs []*Unit
}

// Units returns every unit of p, roots and nested, in source order.
func (p *Program) Units() []*Unit {
	var all []*Unit
	collect := func(u *Unit) bool {
		all = append(all, u)
		return true
	}
	if p.Init != nil {
		p.Init.Walk(collect)
	}
	for _, f := range p.Funcs {
		f.Walk(collect)
	}
	return all
}
