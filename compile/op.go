package compile

import "fmt"

// Opcode identifies the operation an Instruction performs.
type Opcode uint8

const (
	Nop Opcode = iota

	// Loads and stores.
	LoadConst  // push Value
	LoadName   // push variable Value
	LoadAttr   // pop x; push x.Value
	LoadIndex  // pop x, Arg indices; push x[...]
	LoadType   // push the type spelled Value
	StoreName  // pop v; Value = v
	StoreAttr  // pop v, x; x.Value = v
	StoreIndex // pop v, x, i; x[i] = v
	StoreDeref // pop v, p; *p = v

	// Expressions.
	Unary      // Value is the operator token
	Binary     // Value is the operator token
	Deref      // pop p; push *p
	Addr       // pop x; push &x
	Recv       // pop ch; push <-ch
	Slice      // Arg is a bit set of present low/high/max operands
	TypeAssert // Value is the asserted type
	TypeMatch  // compare the switch subject against a case type
	KeyValue   // pop v, k; push k:v
	MakeComposite
	MakeClosure // Arg is the child unit index
	Dup
	Pop
	Unpack // Arg is the number of values

	// Calls. Arg is the argument count.
	Call
	CallSpread
	Go
	Defer

	// Control flow. Arg is a target offset, or -1 when unresolved.
	Jump
	JumpIfFalse
	JumpIfTrue
	JumpIfFalseOrPop
	JumpIfTrueOrPop
	RangeInit
	RangeNext
	TypeSwitch
	Select // Arg is the clause count
	Send
	Return // Arg is the result count
)

var opNames = [...]string{
	Nop:              "NOP",
	LoadConst:        "LOAD_CONST",
	LoadName:         "LOAD_NAME",
	LoadAttr:         "LOAD_ATTR",
	LoadIndex:        "LOAD_INDEX",
	LoadType:         "LOAD_TYPE",
	StoreName:        "STORE_NAME",
	StoreAttr:        "STORE_ATTR",
	StoreIndex:       "STORE_INDEX",
	StoreDeref:       "STORE_DEREF",
	Unary:            "UNARY",
	Binary:           "BINARY",
	Deref:            "DEREF",
	Addr:             "ADDR",
	Recv:             "RECV",
	Slice:            "SLICE",
	TypeAssert:       "TYPE_ASSERT",
	TypeMatch:        "TYPE_MATCH",
	KeyValue:         "KEY_VALUE",
	MakeComposite:    "MAKE_COMPOSITE",
	MakeClosure:      "MAKE_CLOSURE",
	Dup:              "DUP",
	Pop:              "POP",
	Unpack:           "UNPACK",
	Call:             "CALL",
	CallSpread:       "CALL_SPREAD",
	Go:               "GO",
	Defer:            "DEFER",
	Jump:             "JUMP",
	JumpIfFalse:      "JUMP_IF_FALSE",
	JumpIfTrue:       "JUMP_IF_TRUE",
	JumpIfFalseOrPop: "JUMP_IF_FALSE_OR_POP",
	JumpIfTrueOrPop:  "JUMP_IF_TRUE_OR_POP",
	RangeInit:        "RANGE_INIT",
	RangeNext:        "RANGE_NEXT",
	TypeSwitch:       "TYPE_SWITCH",
	Select:           "SELECT",
	Send:             "SEND",
	Return:           "RETURN",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// IsCall reports whether op performs a call.
func (op Opcode) IsCall() bool {
	switch op {
	case Call, CallSpread, Go, Defer:
		return true
	}
	return false
}

// IsJump reports whether the Arg of op is a jump target.
func (op Opcode) IsJump() bool {
	switch op {
	case Jump, JumpIfFalse, JumpIfTrue, JumpIfFalseOrPop, JumpIfTrueOrPop, RangeNext:
		return true
	}
	return false
}
