//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package program

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	reParts  = regexp.MustCompilePOSIX("[[:space:]]+")
	reLabel  = regexp.MustCompilePOSIX(`^([a-zA-Z_][a-zA-Z0-9_]*):$`)
	reName   = regexp.MustCompilePOSIX(`^([a-zA-Z_][a-zA-Z0-9_]*)(\[([0-9]*)\])?$`)
	reCmpSig = regexp.MustCompilePOSIX(
		`^([a-zA-Z_][a-zA-Z0-9_]*)(\[\])?\.([a-zA-Z_][a-zA-Z0-9_]*)(\[\])?$`)
)

type labelRef struct {
	pc    int
	arg2  bool
	label string
	line  int
}

type block struct {
	code   *[]Instr
	labels map[string]int
	refs   []labelRef
	tmpl   *Template
}

type parser struct {
	in     *bufio.Reader
	line   int
	p      *Program
	consts map[string]int
	main   string
	fixups []func() error
}

// Parse parses a program in the assembler syntax:
//
//	prime bn254
//	main Main
//
//	function square 1 1
//	    load 0
//	    load 0
//	    mul
//	    return
//	end
//
//	template Main
//	    input x
//	    output y
//	    loadsig x
//	    call square
//	    storesig y
//	end
//
// Lines starting with '#' are comments. The function header lists the
// number of parameters and variables. Templates declare their signals
// with input, output, and signal, subcomponents with component, and
// variables with vars. Signals and components must be declared before
// the instructions using them. Branch targets are labels of the form
// 'name:'. The parsed program is linked.
func Parse(in io.Reader) (*Program, error) {
	p := &parser{
		in: bufio.NewReader(in),
		p: &Program{
			Prime: "bn254",
		},
		consts: make(map[string]int),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	if err := p.p.Link(); err != nil {
		return nil, err
	}
	return p.p, nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.Newf("%d: %s", p.line, fmt.Sprintf(format, args...))
}

// readLine returns the next non-empty line split into fields.
func (p *parser) readLine() ([]string, error) {
	for {
		line, err := p.in.ReadString('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			return nil, err
		}
		p.line++
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return reParts.Split(line, -1), nil
	}
}

func (p *parser) parse() error {
	for {
		parts, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		switch parts[0] {
		case "prime":
			if len(parts) != 2 {
				return p.errorf("syntax: prime NAME")
			}
			p.p.Prime = parts[1]

		case "main":
			if len(parts) != 2 {
				return p.errorf("syntax: main TEMPLATE")
			}
			p.main = parts[1]

		case "function":
			if err := p.parseFunction(parts); err != nil {
				return err
			}

		case "template":
			if err := p.parseTemplate(parts); err != nil {
				return err
			}

		default:
			return p.errorf("unexpected '%s'", parts[0])
		}
	}
	if len(p.main) == 0 {
		return errors.New("main template not specified")
	}
	idx, ok := p.p.Template(p.main)
	if !ok {
		return errors.Newf("main template %s not defined", p.main)
	}
	p.p.Main = idx

	for _, fixup := range p.fixups {
		if err := fixup(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseFunction(parts []string) error {
	if len(parts) != 4 {
		return p.errorf("syntax: function NAME PARAMS VARS")
	}
	if _, ok := p.p.Function(parts[1]); ok {
		return p.errorf("function %s redefined", parts[1])
	}
	params, err := strconv.Atoi(parts[2])
	if err != nil {
		return p.errorf("invalid parameter count: %s", parts[2])
	}
	vars, err := strconv.Atoi(parts[3])
	if err != nil {
		return p.errorf("invalid variable count: %s", parts[3])
	}
	fn := &Function{
		Name:      parts[1],
		NumParams: params,
		NumVars:   vars,
	}
	p.p.Functions = append(p.p.Functions, fn)

	b := &block{
		code:   &fn.Code,
		labels: make(map[string]int),
	}
	for {
		parts, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				return p.errorf("function %s: unexpected EOF", fn.Name)
			}
			return err
		}
		if parts[0] == "end" {
			return p.resolveLabels(b)
		}
		if err := p.parseInstr(b, parts); err != nil {
			return err
		}
	}
}

func (p *parser) parseTemplate(parts []string) error {
	if len(parts) != 2 {
		return p.errorf("syntax: template NAME")
	}
	if _, ok := p.p.Template(parts[1]); ok {
		return p.errorf("template %s redefined", parts[1])
	}
	t := &Template{
		Name: parts[1],
	}
	p.p.Templates = append(p.p.Templates, t)

	b := &block{
		code:   &t.Code,
		labels: make(map[string]int),
		tmpl:   t,
	}
	for {
		parts, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				return p.errorf("template %s: unexpected EOF", t.Name)
			}
			return err
		}
		switch parts[0] {
		case "end":
			return p.resolveLabels(b)

		case "input", "output", "signal":
			if err := p.parseSignal(t, parts); err != nil {
				return err
			}

		case "component":
			if err := p.parseComponent(t, parts); err != nil {
				return err
			}

		case "vars":
			if len(parts) != 2 {
				return p.errorf("syntax: vars COUNT")
			}
			t.NumVars, err = strconv.Atoi(parts[1])
			if err != nil {
				return p.errorf("invalid variable count: %s", parts[1])
			}

		default:
			if err := p.parseInstr(b, parts); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseSignal(t *Template, parts []string) error {
	var kind SignalKind
	switch parts[0] {
	case "input":
		kind = Input
	case "output":
		kind = Output
	default:
		kind = Intermediate
	}
	if len(parts) < 2 || len(parts) > 3 {
		return p.errorf("syntax: %s NAME[SIZE] [public]", parts[0])
	}
	m := reName.FindStringSubmatch(parts[1])
	if m == nil {
		return p.errorf("invalid signal name: %s", parts[1])
	}
	s := Signal{
		Name: m[1],
		Kind: kind,
	}
	if len(m[2]) > 0 {
		size, err := strconv.Atoi(m[3])
		if err != nil || size <= 0 {
			return p.errorf("invalid signal size: %s", parts[1])
		}
		s.Size = size
	}
	if len(parts) == 3 {
		if parts[2] != "public" || kind != Input {
			return p.errorf("unexpected '%s'", parts[2])
		}
		s.Public = true
	}
	t.Signals = append(t.Signals, s)
	return nil
}

func (p *parser) parseComponent(t *Template, parts []string) error {
	if len(parts) != 3 {
		return p.errorf("syntax: component NAME TEMPLATE[SIZE]")
	}
	m := reName.FindStringSubmatch(parts[2])
	if m == nil {
		return p.errorf("invalid component template: %s", parts[2])
	}
	sub := Subcomponent{
		Name: parts[1],
	}
	if len(m[2]) > 0 {
		size, err := strconv.Atoi(m[3])
		if err != nil || size <= 0 {
			return p.errorf("invalid component size: %s", parts[2])
		}
		sub.Size = size
	}
	idx := len(t.Subcomponents)
	t.Subcomponents = append(t.Subcomponents, sub)

	line := p.line
	name := m[1]
	p.fixups = append(p.fixups, func() error {
		tmpl, ok := p.p.Template(name)
		if !ok {
			return errors.Newf("%d: undefined template %s", line, name)
		}
		t.Subcomponents[idx].Template = tmpl
		return nil
	})
	return nil
}

// operand parses an operand with an optional dynamic index suffix.
func operand(s string) (string, bool) {
	if strings.HasSuffix(s, "[]") {
		return s[:len(s)-2], true
	}
	return s, false
}

func (p *parser) parseInstr(b *block, parts []string) error {
	if m := reLabel.FindStringSubmatch(parts[0]); m != nil && len(parts) == 1 {
		if _, ok := b.labels[m[1]]; ok {
			return p.errorf("label %s redefined", m[1])
		}
		b.labels[m[1]] = len(*b.code)
		return nil
	}
	op, ok := opcodeNames[parts[0]]
	if !ok {
		return p.errorf("unknown instruction '%s'", parts[0])
	}
	instr := Instr{
		Op: op,
	}
	pc := len(*b.code)
	args := parts[1:]

	argc := func(n int) error {
		if len(args) != n {
			return p.errorf("%s: expected %d arguments, got %d",
				op, n, len(args))
		}
		return nil
	}

	switch op {
	case OpPush:
		if err := argc(1); err != nil {
			return err
		}
		idx, ok := p.consts[args[0]]
		if !ok {
			idx = len(p.p.Consts)
			p.p.Consts = append(p.p.Consts, args[0])
			p.consts[args[0]] = idx
		}
		instr.Arg = idx

	case OpLoad, OpStore:
		if err := argc(1); err != nil {
			return err
		}
		v, dyn := operand(args[0])
		n, err := strconv.Atoi(v)
		if err != nil {
			return p.errorf("%s: invalid variable: %s", op, args[0])
		}
		instr.Arg = n
		if dyn {
			instr.Dyn |= DynIndex
		}

	case OpLoadSig, OpStoreSig:
		if err := argc(1); err != nil {
			return err
		}
		if b.tmpl == nil {
			return p.errorf("%s: signal access in function", op)
		}
		name, dyn := operand(args[0])
		idx, ok := b.tmpl.Signal(name)
		if !ok {
			return p.errorf("%s: undefined signal %s", op, name)
		}
		instr.Arg = idx
		if dyn {
			instr.Dyn |= DynIndex
		}

	case OpCreate:
		if err := argc(1); err != nil {
			return err
		}
		if b.tmpl == nil {
			return p.errorf("%s: component in function", op)
		}
		name, dyn := operand(args[0])
		idx, err := p.subcomponent(b.tmpl, name)
		if err != nil {
			return err
		}
		instr.Arg = idx
		if dyn {
			instr.Dyn |= DynComponent
		}

	case OpLoadCmp, OpStoreCmp:
		if err := argc(1); err != nil {
			return err
		}
		if b.tmpl == nil {
			return p.errorf("%s: component in function", op)
		}
		m := reCmpSig.FindStringSubmatch(args[0])
		if m == nil {
			return p.errorf("%s: invalid operand: %s", op, args[0])
		}
		idx, err := p.subcomponent(b.tmpl, m[1])
		if err != nil {
			return err
		}
		instr.Arg = idx
		if len(m[2]) > 0 {
			instr.Dyn |= DynComponent
		}
		if len(m[4]) > 0 {
			instr.Dyn |= DynIndex
		}
		t := b.tmpl
		code := b.code
		line := p.line
		sig := m[3]
		p.fixups = append(p.fixups, func() error {
			sub := p.p.Templates[t.Subcomponents[idx].Template]
			s, ok := sub.Signal(sig)
			if !ok {
				return errors.Newf("%d: template %s has no signal %s",
					line, sub.Name, sig)
			}
			(*code)[pc].Arg2 = s
			return nil
		})

	case OpCall:
		if err := argc(1); err != nil {
			return err
		}
		code := b.code
		line := p.line
		name := args[0]
		p.fixups = append(p.fixups, func() error {
			idx, ok := p.p.Function(name)
			if !ok {
				return errors.Newf("%d: undefined function %s", line, name)
			}
			(*code)[pc].Arg = idx
			return nil
		})

	case OpIf:
		if err := argc(2); err != nil {
			return err
		}
		b.refs = append(b.refs, labelRef{
			pc:    pc,
			label: args[0],
			line:  p.line,
		}, labelRef{
			pc:    pc,
			arg2:  true,
			label: args[1],
			line:  p.line,
		})

	case OpJump, OpJumpZ:
		if err := argc(1); err != nil {
			return err
		}
		b.refs = append(b.refs, labelRef{
			pc:    pc,
			label: args[0],
			line:  p.line,
		})

	case OpAssert, OpLog:
		instr.Msg = strings.Join(args, " ")

	default:
		if err := argc(0); err != nil {
			return err
		}
	}
	*b.code = append(*b.code, instr)
	return nil
}

func (p *parser) subcomponent(t *Template, name string) (int, error) {
	for idx, sub := range t.Subcomponents {
		if sub.Name == name {
			return idx, nil
		}
	}
	return 0, p.errorf("undefined component %s", name)
}

func (p *parser) resolveLabels(b *block) error {
	for _, ref := range b.refs {
		target, ok := b.labels[ref.label]
		if !ok {
			return errors.Newf("%d: undefined label %s", ref.line, ref.label)
		}
		if ref.arg2 {
			(*b.code)[ref.pc].Arg2 = target
		} else {
			(*b.code)[ref.pc].Arg = target
		}
	}
	return nil
}
