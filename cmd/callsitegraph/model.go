package main

// PackageNode represents a Go package in the call-site graph.
type PackageNode struct {
	ImportPath string
	Name       string
	Dir        string
}

// FuncNode represents a Go function or method.
type FuncNode struct {
	Name     string
	FullName string // package.ReceiverType.Method or package.Func
	Package  string
	File     string
	Line     int
	Exported bool
	Receiver string // empty for standalone functions
	IsMethod bool
}

// CallSiteNode is one call expression resolved from its call instruction.
type CallSiteNode struct {
	Key     string // file:line:column of the call's opening parenthesis
	Caller  string // full name of the enclosing function, or package.init
	Package string
	File    string
	Line    int
	Column  int
	Unit    string // compiled unit executing the call
	Offset  int
	Op      string
	Text    string
	Args    []string
	Names   []string // names the result is assigned to, if any
}

// CallEdge links a call site to a function it may invoke.
type CallEdge struct {
	SiteKey        string
	CalleeFullName string
	IsDynamic      bool // dispatched via interface
}

// Stats counts what a collection pass saw.
type Stats struct {
	Files      int
	Calls      int
	Resolved   int
	Unresolved int
	Mismatched int
	Edges      int
	Unjoined   int
}
