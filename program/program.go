//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package program defines the circuit programs the virtual machine
// executes. A program consists of templates, which own signals and
// subcomponents, and functions, which compute over local variables
// only. The instructions are executed by a stack machine.
package program

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
)

// SignalKind defines the signal kind.
type SignalKind uint8

// Signal kinds.
const (
	Output SignalKind = iota
	Input
	Intermediate
)

var signalKinds = map[SignalKind]string{
	Output:       "output",
	Input:        "input",
	Intermediate: "signal",
}

func (k SignalKind) String() string {
	name, ok := signalKinds[k]
	if ok {
		return name
	}
	return fmt.Sprintf("{SignalKind %d}", k)
}

// Signal declares a template signal or signal array.
type Signal struct {
	Name   string     `cbor:"1,keyasint"`
	Kind   SignalKind `cbor:"2,keyasint"`
	Size   int        `cbor:"3,keyasint,omitempty"`
	Public bool       `cbor:"4,keyasint,omitempty"`

	// Offset is the signal's offset from the beginning of the
	// template's signal block. It is set by Link.
	Offset int `cbor:"-"`
}

// Len returns the number of signal slots.
func (s Signal) Len() int {
	if s.Size <= 0 {
		return 1
	}
	return s.Size
}

func (s Signal) String() string {
	var public string
	if s.Public {
		public = " public"
	}
	if s.Size > 0 {
		return fmt.Sprintf("%s %s[%d]%s", s.Kind, s.Name, s.Size, public)
	}
	return fmt.Sprintf("%s %s%s", s.Kind, s.Name, public)
}

// Subcomponent declares a subcomponent or an array of subcomponents.
type Subcomponent struct {
	Name     string `cbor:"1,keyasint"`
	Template int    `cbor:"2,keyasint"`
	Size     int    `cbor:"3,keyasint,omitempty"`

	// Offset is the offset of the first instance's signal block from
	// the beginning of the owner's signal block. It is set by Link.
	Offset int `cbor:"-"`
}

// Len returns the number of component instances.
func (s Subcomponent) Len() int {
	if s.Size <= 0 {
		return 1
	}
	return s.Size
}

// Template defines a circuit template.
type Template struct {
	Name          string         `cbor:"1,keyasint"`
	Signals       []Signal       `cbor:"2,keyasint,omitempty"`
	Subcomponents []Subcomponent `cbor:"3,keyasint,omitempty"`
	NumVars       int            `cbor:"4,keyasint,omitempty"`
	Code          []Instr        `cbor:"5,keyasint,omitempty"`

	// Set by Link.
	size      int
	numInputs int
}

// Size returns the number of signals of the template, including the
// signals of its subcomponents.
func (t *Template) Size() int {
	return t.size
}

// NumInputs returns the number of input signal slots.
func (t *Template) NumInputs() int {
	return t.numInputs
}

// Signal finds the signal by name.
func (t *Template) Signal(name string) (int, bool) {
	for idx, s := range t.Signals {
		if s.Name == name {
			return idx, true
		}
	}
	return 0, false
}

// Function defines a function. The parameters are stored in the first
// variables of the function frame.
type Function struct {
	Name      string  `cbor:"1,keyasint"`
	NumParams int     `cbor:"2,keyasint,omitempty"`
	NumVars   int     `cbor:"3,keyasint,omitempty"`
	Code      []Instr `cbor:"4,keyasint,omitempty"`
}

// Program defines a circuit program.
type Program struct {
	Prime     string      `cbor:"1,keyasint"`
	Consts    []string    `cbor:"2,keyasint,omitempty"`
	Templates []*Template `cbor:"3,keyasint"`
	Functions []*Function `cbor:"4,keyasint,omitempty"`
	Main      int         `cbor:"5,keyasint"`

	field  *field.Field
	consts []field.Element
	linked bool
}

// Field returns the program's field. It is set by Link.
func (p *Program) Field() *field.Field {
	return p.field
}

// Const returns the constant idx. It is set by Link.
func (p *Program) Const(idx int) field.Element {
	return p.consts[idx]
}

// Linked tests if the program is linked.
func (p *Program) Linked() bool {
	return p.linked
}

// MainTemplate returns the main template.
func (p *Program) MainTemplate() *Template {
	return p.Templates[p.Main]
}

// NumSignals returns the number of witness signals: the constant one
// signal and the main template's signals.
func (p *Program) NumSignals() int {
	return 1 + p.MainTemplate().size
}

// Template finds the template by name.
func (p *Program) Template(name string) (int, bool) {
	for idx, t := range p.Templates {
		if t.Name == name {
			return idx, true
		}
	}
	return 0, false
}

// Function finds the function by name.
func (p *Program) Function(name string) (int, bool) {
	for idx, f := range p.Functions {
		if f.Name == name {
			return idx, true
		}
	}
	return 0, false
}

// Link resolves the program field and constants, computes the signal
// layout, and validates the program. Within a template the signals are
// laid out as outputs, public inputs, private inputs, and intermediate
// signals, followed by the subcomponent blocks. Signal 0 of the
// witness is the constant one and the main template starts at signal
// 1.
func (p *Program) Link() error {
	if p.linked {
		return nil
	}
	f, err := field.ByName(p.Prime)
	if err != nil {
		return err
	}
	p.field = f

	p.consts = make([]field.Element, len(p.Consts))
	for idx, c := range p.Consts {
		p.consts[idx], err = f.SetString(c)
		if err != nil {
			return errors.Wrapf(err, "constant %d", idx)
		}
	}

	if p.Main < 0 || p.Main >= len(p.Templates) {
		return errors.Newf("invalid main template %d", p.Main)
	}

	state := make([]int, len(p.Templates))
	for idx := range p.Templates {
		if err := p.layout(idx, state); err != nil {
			return err
		}
	}
	for _, t := range p.Templates {
		if err := p.validate(t.Name, t.Code, t.NumVars, t); err != nil {
			return err
		}
	}
	for _, fn := range p.Functions {
		if fn.NumParams > fn.NumVars {
			return errors.Newf("function %s: %d parameters, %d variables",
				fn.Name, fn.NumParams, fn.NumVars)
		}
		if err := p.validate(fn.Name, fn.Code, fn.NumVars, nil); err != nil {
			return err
		}
	}
	p.linked = true
	return nil
}

const (
	unvisited = iota
	visiting
	done
)

func (p *Program) layout(idx int, state []int) error {
	t := p.Templates[idx]
	switch state[idx] {
	case done:
		return nil
	case visiting:
		return errors.Newf("template %s includes itself", t.Name)
	}
	state[idx] = visiting

	var offset int
	place := func(match func(s Signal) bool) {
		for i := range t.Signals {
			if match(t.Signals[i]) {
				t.Signals[i].Offset = offset
				offset += t.Signals[i].Len()
			}
		}
	}
	for i, s := range t.Signals {
		if s.Public && s.Kind != Input {
			return errors.Newf("template %s: %s can't be public", t.Name, s)
		}
		if s.Size < 0 {
			return errors.Newf("template %s: invalid signal size %d",
				t.Name, s.Size)
		}
		for j := 0; j < i; j++ {
			if t.Signals[j].Name == s.Name {
				return errors.Newf("template %s: signal %s redeclared",
					t.Name, s.Name)
			}
		}
	}
	place(func(s Signal) bool { return s.Kind == Output })
	place(func(s Signal) bool { return s.Kind == Input && s.Public })
	place(func(s Signal) bool { return s.Kind == Input && !s.Public })
	place(func(s Signal) bool { return s.Kind == Intermediate })

	t.numInputs = 0
	for _, s := range t.Signals {
		if s.Kind == Input {
			t.numInputs += s.Len()
		}
	}

	for i := range t.Subcomponents {
		sub := &t.Subcomponents[i]
		if sub.Template < 0 || sub.Template >= len(p.Templates) {
			return errors.Newf("template %s: subcomponent %s: invalid template %d",
				t.Name, sub.Name, sub.Template)
		}
		if err := p.layout(sub.Template, state); err != nil {
			return err
		}
		sub.Offset = offset
		offset += sub.Len() * p.Templates[sub.Template].size
	}
	t.size = offset
	state[idx] = done
	return nil
}

// validate checks the instruction arguments. The template is nil for
// function code.
func (p *Program) validate(name string, code []Instr, numVars int,
	t *Template) error {

	fail := func(pc int, format string, args ...interface{}) error {
		return errors.Newf("%s:%d: %s: %s", name, pc, code[pc],
			fmt.Sprintf(format, args...))
	}
	for pc, instr := range code {
		switch instr.Op {
		case OpPush:
			if instr.Arg < 0 || instr.Arg >= len(p.consts) {
				return fail(pc, "invalid constant")
			}

		case OpLoad, OpStore:
			if instr.Arg < 0 || instr.Arg >= numVars {
				return fail(pc, "invalid variable")
			}

		case OpLoadSig, OpStoreSig:
			if t == nil {
				return fail(pc, "signal access in function")
			}
			if instr.Arg < 0 || instr.Arg >= len(t.Signals) {
				return fail(pc, "invalid signal")
			}

		case OpCreate, OpLoadCmp, OpStoreCmp:
			if t == nil {
				return fail(pc, "component access in function")
			}
			if instr.Arg < 0 || instr.Arg >= len(t.Subcomponents) {
				return fail(pc, "invalid subcomponent")
			}
			if instr.Op == OpCreate {
				break
			}
			sub := p.Templates[t.Subcomponents[instr.Arg].Template]
			if instr.Arg2 < 0 || instr.Arg2 >= len(sub.Signals) {
				return fail(pc, "invalid subcomponent signal")
			}
			kind := sub.Signals[instr.Arg2].Kind
			if instr.Op == OpStoreCmp && kind != Input {
				return fail(pc, "storing to %s signal", kind)
			}
			if instr.Op == OpLoadCmp && kind == Intermediate {
				return fail(pc, "loading intermediate signal")
			}

		case OpCall:
			if instr.Arg < 0 || instr.Arg >= len(p.Functions) {
				return fail(pc, "invalid function")
			}

		case OpReturn:
			if t != nil {
				return fail(pc, "return in template")
			}

		case OpIf:
			if instr.Arg <= pc || instr.Arg2 < instr.Arg ||
				instr.Arg2 > len(code) {
				return fail(pc, "invalid branch targets")
			}

		case OpJump, OpJumpZ:
			if instr.Arg < 0 || instr.Arg > len(code) {
				return fail(pc, "invalid jump target")
			}

		default:
			if _, ok := opcodes[instr.Op]; !ok {
				return fail(pc, "invalid opcode")
			}
		}
	}
	return nil
}
