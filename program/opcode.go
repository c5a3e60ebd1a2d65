//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package program

import (
	"fmt"
)

// Opcode defines the instruction operation.
type Opcode uint8

// Opcodes.
const (
	OpNop Opcode = iota
	OpPush
	OpPop
	OpDup
	OpLoad
	OpStore
	OpLoadSig
	OpStoreSig
	OpCreate
	OpLoadCmp
	OpStoreCmp
	OpCall
	OpReturn
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIntDiv
	OpMod
	OpPow
	OpNeg
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNeq
	OpAnd
	OpOr
	OpNot
	OpBand
	OpBor
	OpBxor
	OpBnot
	OpShl
	OpShr
	OpIf
	OpJump
	OpJumpZ
	OpAssert
	OpLog
)

var opcodes = map[Opcode]string{
	OpNop:      "nop",
	OpPush:     "push",
	OpPop:      "pop",
	OpDup:      "dup",
	OpLoad:     "load",
	OpStore:    "store",
	OpLoadSig:  "loadsig",
	OpStoreSig: "storesig",
	OpCreate:   "create",
	OpLoadCmp:  "loadcmp",
	OpStoreCmp: "storecmp",
	OpCall:     "call",
	OpReturn:   "return",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpDiv:      "div",
	OpIntDiv:   "intdiv",
	OpMod:      "mod",
	OpPow:      "pow",
	OpNeg:      "neg",
	OpLt:       "lt",
	OpLe:       "le",
	OpGt:       "gt",
	OpGe:       "ge",
	OpEq:       "eq",
	OpNeq:      "neq",
	OpAnd:      "and",
	OpOr:       "or",
	OpNot:      "not",
	OpBand:     "band",
	OpBor:      "bor",
	OpBxor:     "bxor",
	OpBnot:     "bnot",
	OpShl:      "shl",
	OpShr:      "shr",
	OpIf:       "if",
	OpJump:     "jump",
	OpJumpZ:    "jumpz",
	OpAssert:   "assert",
	OpLog:      "log",
}

var opcodeNames map[string]Opcode

func init() {
	opcodeNames = make(map[string]Opcode)
	for op, name := range opcodes {
		opcodeNames[name] = op
	}
}

func (op Opcode) String() string {
	name, ok := opcodes[op]
	if ok {
		return name
	}
	return fmt.Sprintf("{Opcode %d}", op)
}

// Binary tests if the opcode is a binary operator that pops two values
// and pushes the result.
func (op Opcode) Binary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpIntDiv, OpMod, OpPow,
		OpLt, OpLe, OpGt, OpGe, OpEq, OpNeq, OpAnd, OpOr,
		OpBand, OpBor, OpBxor, OpShl, OpShr:
		return true
	default:
		return false
	}
}

// Unary tests if the opcode is a unary operator.
func (op Opcode) Unary() bool {
	switch op {
	case OpNeg, OpNot, OpBnot:
		return true
	default:
		return false
	}
}

// Dyn flags tell which operands an instruction pops from the stack.
type Dyn uint8

// Dynamic operand flags.
const (
	// DynIndex takes the variable or signal array index from the
	// stack.
	DynIndex Dyn = 1 << iota

	// DynComponent takes the component array index from the stack.
	DynComponent
)

// Instr is one instruction. The meaning of the arguments depends on
// the opcode:
//
//	push      Arg: constant index
//	load      Arg: variable
//	store     Arg: variable
//	loadsig   Arg: signal
//	storesig  Arg: signal
//	create    Arg: subcomponent
//	loadcmp   Arg: subcomponent, Arg2: signal of the subcomponent
//	storecmp  Arg: subcomponent, Arg2: signal of the subcomponent
//	call      Arg: function
//	if        Arg: else branch, Arg2: end of the statement
//	jump      Arg: target
//	jumpz     Arg: target
//
// Dynamic indices are pushed before the value of a store; the
// component index before the signal index.
type Instr struct {
	Op   Opcode `cbor:"1,keyasint"`
	Arg  int    `cbor:"2,keyasint,omitempty"`
	Arg2 int    `cbor:"3,keyasint,omitempty"`
	Dyn  Dyn    `cbor:"4,keyasint,omitempty"`
	Msg  string `cbor:"5,keyasint,omitempty"`
}

func (i Instr) String() string {
	var suffix string
	if i.Dyn&DynComponent != 0 {
		suffix += " cmp[]"
	}
	if i.Dyn&DynIndex != 0 {
		suffix += " []"
	}
	switch i.Op {
	case OpPush, OpLoad, OpStore, OpLoadSig, OpStoreSig, OpCreate, OpCall,
		OpJump, OpJumpZ:
		return fmt.Sprintf("%s %d%s", i.Op, i.Arg, suffix)

	case OpLoadCmp, OpStoreCmp, OpIf:
		return fmt.Sprintf("%s %d %d%s", i.Op, i.Arg, i.Arg2, suffix)

	case OpAssert, OpLog:
		if len(i.Msg) > 0 {
			return fmt.Sprintf("%s %s", i.Op, i.Msg)
		}
		return i.Op.String()

	default:
		return i.Op.String()
	}
}
