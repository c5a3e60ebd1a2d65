//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package vm

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/program"
)

const (
	maxDepth = 1024
	maxIndex = 1 << 30
)

// frame is an execution frame of a template instance or a function
// call. Frames live in the machine's frame arena and link to their
// callers by index.
type frame struct {
	parent int
	name   string
	inst   *instance
	code   []program.Instr
	vars   []Value
	stack  []Value
	pc     int
	ret    *Value

	// guard is the secret condition under which the frame executes
	// inside shared branches. It is nil outside shared branches.
	guard *accel.Node
}

func (fr *frame) push(v Value) {
	fr.stack = append(fr.stack, v)
}

func (fr *frame) pop() (Value, error) {
	if len(fr.stack) == 0 {
		return Value{}, errors.New("stack underflow")
	}
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v, nil
}

func (fr *frame) peek() (Value, error) {
	if len(fr.stack) == 0 {
		return Value{}, errors.New("stack underflow")
	}
	return fr.stack[len(fr.stack)-1], nil
}

// state is a snapshot of the mutable frame state.
type state struct {
	vars  []Value
	stack []Value
	ret   *Value
}

func (fr *frame) save() state {
	return state{
		vars:  append([]Value(nil), fr.vars...),
		stack: append([]Value(nil), fr.stack...),
		ret:   fr.ret,
	}
}

func (fr *frame) restore(s state) {
	fr.vars = append(fr.vars[:0], s.vars...)
	fr.stack = append(fr.stack[:0], s.stack...)
	fr.ret = s.ret
}

// pushFrame allocates a frame from the arena.
func (m *Machine) pushFrame(name string, code []program.Instr,
	numVars int) (*frame, error) {

	if m.top >= maxDepth {
		return nil, errors.Newf("%s: call depth exceeded", name)
	}
	if m.top == len(m.frames) {
		m.frames = append(m.frames, new(frame))
	}
	fr := m.frames[m.top]
	vars := fr.vars[:0]
	for i := 0; i < numVars; i++ {
		vars = append(vars, Value{})
	}
	*fr = frame{
		parent: m.top - 1,
		name:   name,
		code:   code,
		vars:   vars,
		stack:  fr.stack[:0],
	}
	m.top++
	return fr, nil
}

func (m *Machine) popFrame() {
	m.top--
	m.frames[m.top].ret = nil
}

// trace returns the call trace of the active frames.
func (m *Machine) trace() string {
	var result string
	for idx := m.top - 1; idx >= 0; idx = m.frames[idx].parent {
		fr := m.frames[idx]
		if len(result) > 0 {
			result += " < "
		}
		result += fmt.Sprintf("%s:%d", fr.name, fr.pc)
	}
	return result
}

// instance is a template instance. An instance is invoked when all its
// input signals are bound.
type instance struct {
	id      int
	name    string
	tmpl    *program.Template
	base    int
	unbound int
	invoked bool
}

type instKey struct {
	owner int
	sub   int
	index int
}

func (m *Machine) newInstance(t *program.Template, base int,
	name string) *instance {

	inst := &instance{
		id:      len(m.instances),
		name:    name,
		tmpl:    t,
		base:    base,
		unbound: t.NumInputs(),
	}
	m.instances = append(m.instances, inst)
	return inst
}

// create creates the component instance idx of the subcomponent
// declaration sub. Components without inputs are invoked immediately.
func (m *Machine) create(ctx context.Context, fr *frame, sub, idx int) error {
	decl := fr.inst.tmpl.Subcomponents[sub]
	if idx >= decl.Len() {
		return errors.Newf("component %s[%d] out of range", decl.Name, idx)
	}
	key := instKey{
		owner: fr.inst.id,
		sub:   sub,
		index: idx,
	}
	if _, ok := m.instIndex[key]; ok {
		return errors.Newf("component %s[%d] created twice", decl.Name, idx)
	}
	t := m.prog.Templates[decl.Template]
	name := fmt.Sprintf("%s.%s", fr.inst.name, decl.Name)
	if decl.Size > 0 {
		name += fmt.Sprintf("[%d]", idx)
	}
	inst := m.newInstance(t, fr.inst.base+decl.Offset+idx*t.Size(), name)
	m.instIndex[key] = inst.id

	m.log.Trace().Str("component", name).Str("template", t.Name).
		Int("base", inst.base).Msg("create")

	if inst.unbound == 0 {
		return m.invoke(ctx, inst)
	}
	return nil
}

func (m *Machine) lookup(fr *frame, sub, idx int) (*instance, error) {
	decl := fr.inst.tmpl.Subcomponents[sub]
	id, ok := m.instIndex[instKey{
		owner: fr.inst.id,
		sub:   sub,
		index: idx,
	}]
	if !ok {
		return nil, errors.Newf("component %s[%d] not created", decl.Name, idx)
	}
	return m.instances[id], nil
}

// slot returns the witness index of the signal idx of the instance.
func (m *Machine) slot(inst *instance, sig, idx int) (int, error) {
	s := inst.tmpl.Signals[sig]
	if idx >= s.Len() {
		return 0, errors.Newf("signal %s.%s[%d] out of range",
			inst.name, s.Name, idx)
	}
	return inst.base + s.Offset + idx, nil
}

func (m *Machine) signalName(inst *instance, sig, idx int) string {
	s := inst.tmpl.Signals[sig]
	if s.Size > 0 {
		return fmt.Sprintf("%s.%s[%d]", inst.name, s.Name, idx)
	}
	return fmt.Sprintf("%s.%s", inst.name, s.Name)
}

// assign assigns the signal. Signals are assigned exactly once.
func (m *Machine) assign(inst *instance, sig, idx int, v Value) error {
	slot, err := m.slot(inst, sig, idx)
	if err != nil {
		return err
	}
	if m.assigned[slot] {
		return errors.Newf("signal %s assigned twice",
			m.signalName(inst, sig, idx))
	}
	m.signals[slot] = v
	m.assigned[slot] = true
	return nil
}

func (m *Machine) read(inst *instance, sig, idx int) (Value, error) {
	slot, err := m.slot(inst, sig, idx)
	if err != nil {
		return Value{}, err
	}
	if !m.assigned[slot] {
		return Value{}, errors.Newf("signal %s read before assignment",
			m.signalName(inst, sig, idx))
	}
	return m.signals[slot], nil
}

// bind binds the input signal of the component instance and invokes
// the instance when it has all its inputs.
func (m *Machine) bind(ctx context.Context, inst *instance, sig, idx int,
	v Value) error {

	if inst.invoked {
		return errors.Newf("component %s already computed", inst.name)
	}
	if err := m.assign(inst, sig, idx, v); err != nil {
		return err
	}
	inst.unbound--
	if inst.unbound == 0 {
		return m.invoke(ctx, inst)
	}
	return nil
}

// invoke runs the template code of the instance.
func (m *Machine) invoke(ctx context.Context, inst *instance) error {
	inst.invoked = true
	m.stats.Components++

	t := inst.tmpl
	fr, err := m.pushFrame(t.Name, t.Code, t.NumVars)
	if err != nil {
		return err
	}
	fr.inst = inst
	defer m.popFrame()

	m.log.Trace().Str("component", inst.name).Msg("invoke")

	return m.runFrame(ctx, fr)
}

// call calls the function idx. The arguments are popped from the
// caller's stack and the return value is pushed to it.
func (m *Machine) call(ctx context.Context, caller *frame, idx int) error {
	fn := m.prog.Functions[idx]
	m.stats.Calls++

	fr, err := m.pushFrame(fn.Name, fn.Code, fn.NumVars)
	if err != nil {
		return err
	}
	defer m.popFrame()

	fr.inst = caller.inst
	fr.guard = caller.guard
	for i := fn.NumParams - 1; i >= 0; i-- {
		v, err := caller.pop()
		if err != nil {
			return err
		}
		fr.vars[i] = v
	}
	if err := m.runFrame(ctx, fr); err != nil {
		return err
	}
	if fr.ret == nil {
		return errors.Newf("function %s returned no value", fn.Name)
	}
	caller.push(*fr.ret)
	return nil
}

func (m *Machine) runFrame(ctx context.Context, fr *frame) error {
	_, err := m.exec(ctx, fr, 0, len(fr.code))
	if err != nil {
		return errors.Wrapf(err, "%s:%d", fr.name, fr.pc)
	}
	return nil
}
