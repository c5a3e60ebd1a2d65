//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package vm implements the virtual machine that executes circuit
// programs over secret-shared values. Every party runs its own
// machine over the same program and the machines stay synchronized
// by executing the same secure operations in the same order.
//
// Public values are computed locally with the plaintext operators.
// Secret values live in the accelerator which batches independent
// multiplications; the comparisons, conversions, and other composite
// operations flush the accelerator and run in the protocol engine.
//
// A component instance runs when all its input signals are bound. An
// if statement with a secret condition runs both arms and merges the
// results with conditional selection. Loops must have public
// conditions.
package vm

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/input"
	"github.com/markkurossi/covm/program"
	"github.com/markkurossi/covm/rep3"
	"github.com/markkurossi/tabulate"
	"github.com/rs/zerolog"
)

// Stats contains execution statistics.
type Stats struct {
	Instrs     map[program.Opcode]uint64
	Components int
	Calls      uint64
	Branches   uint64
	Asserts    uint64
}

// Machine executes a circuit program.
type Machine struct {
	prog   *program.Program
	f      *field.Field
	acc    *accel.Accelerator
	log    zerolog.Logger
	timing *Timing
	stats  Stats

	signals   []Value
	assigned  []bool
	instances []*instance
	instIndex map[instKey]int

	frames []*frame
	top    int
}

// New creates a machine for the linked program. The machine computes
// over secret values with the accelerator acc. A machine without an
// accelerator evaluates programs in plaintext.
func New(prog *program.Program, acc *accel.Accelerator) (*Machine, error) {
	if !prog.Linked() {
		if err := prog.Link(); err != nil {
			return nil, err
		}
	}
	m := &Machine{
		prog: prog,
		f:    prog.Field(),
		acc:  acc,
		log:  zerolog.Nop(),
	}
	if acc != nil {
		e := acc.Engine()
		if e.Field().Name() != m.f.Name() {
			return nil, errors.Newf("field mismatch: program %s, engine %s",
				m.f.Name(), e.Field().Name())
		}
		m.log = e.Logger().With().Str("module", "vm").Logger()
	}
	return m, nil
}

// Stats returns the execution statistics of the last run.
func (m *Machine) Stats() Stats {
	return m.stats
}

// Timing returns the timing samples of the last run.
func (m *Machine) Timing() *Timing {
	return m.timing
}

func (m *Machine) reset() {
	n := m.prog.NumSignals()
	m.signals = make([]Value, n)
	m.assigned = make([]bool, n)
	m.signals[0] = public(m.f.One())
	m.assigned[0] = true
	m.instances = nil
	m.instIndex = make(map[instKey]int)
	m.top = 0
	m.stats = Stats{
		Instrs: make(map[program.Opcode]uint64),
	}
	m.timing = NewTiming()
}

// bindInputs binds the input signals of the main instance. The lookup
// function returns the values of an input signal.
func (m *Machine) bindInputs(inst *instance, names []string,
	lookup func(s program.Signal) ([]Value, error)) error {

	known := make(map[string]bool)
	for sig, s := range inst.tmpl.Signals {
		if s.Kind != program.Input {
			continue
		}
		known[s.Name] = true
		vals, err := lookup(s)
		if err != nil {
			return err
		}
		if len(vals) != s.Len() {
			return errors.Newf("input %s: %d values, expected %d",
				s.Name, len(vals), s.Len())
		}
		for idx, v := range vals {
			if err := m.assign(inst, sig, idx, v); err != nil {
				return err
			}
		}
		inst.unbound -= len(vals)
	}
	for _, name := range names {
		if !known[name] {
			return errors.Newf("unknown input %s", name)
		}
	}
	return nil
}

// execute binds the inputs and runs the main template.
func (m *Machine) execute(ctx context.Context, names []string,
	lookup func(s program.Signal) ([]Value, error)) error {

	m.reset()
	main := m.prog.MainTemplate()
	inst := m.newInstance(main, 1, main.Name)

	if err := m.bindInputs(inst, names, lookup); err != nil {
		return err
	}
	m.timing.Sample("Inputs", nil)

	if err := m.invoke(ctx, inst); err != nil {
		return err
	}
	m.log.Debug().Int("components", m.stats.Components).
		Uint64("branches", m.stats.Branches).Msg("executed")
	return nil
}

// Run executes the program over the shared inputs of this party and
// returns the party's witness. The outputs of the main template are
// revealed to all parties. All parties must call Run with the same
// program and inputs with the same names.
func (m *Machine) Run(ctx context.Context, in *input.Shared) (
	*input.Witness, error) {

	if m.acc == nil {
		return nil, errors.New("vm: no accelerator")
	}
	start := time.Now()
	e := m.acc.Engine()
	xfer := e.Stats()

	sample := func(label string) *Sample {
		stats := e.Stats()
		diff := stats.Sent + stats.Recvd - xfer.Sent - xfer.Recvd
		xfer = stats
		return m.timing.Sample(label, []string{FileSize(diff).String()})
	}

	err := m.execute(ctx, in.Names(), func(s program.Signal) ([]Value, error) {
		if shares, ok := in.Shared[s.Name]; ok {
			if s.Public {
				return nil, errors.Newf("public input %s is shared", s.Name)
			}
			vals := make([]Value, len(shares))
			for i, share := range shares {
				vals[i] = secret(m.acc.Share(share))
			}
			return vals, nil
		}
		pub, ok := in.Public[s.Name]
		if !ok {
			return nil, errors.Newf("input %s not set", s.Name)
		}
		vals := make([]Value, len(pub))
		for i, v := range pub {
			vals[i] = public(v)
		}
		return vals, nil
	})
	if err != nil {
		return nil, err
	}
	accStats := m.acc.Stats()
	sample("Execute").AbsSubSample("Flush", accStats.Elapsed)

	w, err := m.witness(ctx)
	if err != nil {
		return nil, err
	}
	sample("Witness")

	if err := e.Verify(ctx); err != nil {
		return nil, err
	}
	sample("Verify")

	m.log.Debug().Dur("elapsed", time.Since(start)).
		Int("signals", len(w.Shares)).Msg("witness ready")

	return w, nil
}

// numPublic returns the number of public witness signals: the
// constant one, the outputs, and the public inputs of the main
// template. They are the leading signals of the witness.
func (m *Machine) numPublic() int {
	n := 1
	for _, s := range m.prog.MainTemplate().Signals {
		if s.Kind == program.Output || s.Public {
			n += s.Len()
		}
	}
	return n
}

// witness resolves the signals and reveals the outputs.
func (m *Machine) witness(ctx context.Context) (*input.Witness, error) {
	nodes := make([]*accel.Node, len(m.signals))
	for i, v := range m.signals {
		nodes[i] = m.node(v)
	}
	shares, err := m.acc.ResolveMany(ctx, nodes)
	if err != nil {
		return nil, err
	}

	public := make([]field.Element, m.numPublic())
	var reveal []int
	var open []rep3.Share
	for i := range public {
		if m.signals[i].Secret() {
			reveal = append(reveal, i)
			open = append(open, shares[i])
		} else {
			public[i] = m.signals[i].pub
		}
	}
	if len(open) > 0 {
		vals, err := m.acc.Engine().OpenMany(ctx, open)
		if err != nil {
			return nil, err
		}
		for i, idx := range reveal {
			public[idx] = vals[i]
		}
	}
	return &input.Witness{
		Public: public,
		Shares: shares,
	}, nil
}

// RunPlain executes the program over plaintext inputs and returns the
// plaintext witness.
func (m *Machine) RunPlain(ctx context.Context,
	in map[string][]field.Element) ([]field.Element, error) {

	var names []string
	for name := range in {
		names = append(names, name)
	}
	err := m.execute(ctx, names, func(s program.Signal) ([]Value, error) {
		pub, ok := in[s.Name]
		if !ok {
			return nil, errors.Newf("input %s not set", s.Name)
		}
		vals := make([]Value, len(pub))
		for i, v := range pub {
			vals[i] = public(v)
		}
		return vals, nil
	})
	if err != nil {
		return nil, err
	}
	m.timing.Sample("Execute", nil)

	result := make([]field.Element, len(m.signals))
	for i, v := range m.signals {
		if v.Secret() {
			return nil, errors.Newf("signal %d is secret", i)
		}
		result[i] = v.pub
	}
	return result, nil
}

// Run executes the program with the accelerator and returns the
// party's witness.
func Run(ctx context.Context, acc *accel.Accelerator, prog *program.Program,
	in *input.Shared) (*input.Witness, error) {

	m, err := New(prog, acc)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, in)
}

// RunPlain executes the program over plaintext inputs.
func RunPlain(prog *program.Program, in map[string][]field.Element) (
	[]field.Element, error) {

	m, err := New(prog, nil)
	if err != nil {
		return nil, err
	}
	return m.RunPlain(context.Background(), in)
}

// PrintStats prints the instruction statistics.
func (m *Machine) PrintStats(w io.Writer) {
	type count struct {
		op    program.Opcode
		count uint64
	}
	var counts []count
	var total uint64
	for op, c := range m.stats.Instrs {
		counts = append(counts, count{
			op:    op,
			count: c,
		})
		total += c
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].op < counts[j].op
	})

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Instr").SetAlign(tabulate.ML)
	tab.Header("Count").SetAlign(tabulate.MR)
	tab.Header("%").SetAlign(tabulate.MR)

	for _, c := range counts {
		row := tab.Row()
		row.Column(c.op.String())
		row.Column(fmt.Sprintf("%d", c.count))
		row.Column(fmt.Sprintf("%.2f%%", float64(c.count)/float64(total)*100))
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtBold)
	row.Column(fmt.Sprintf("%d", total)).SetFormat(tabulate.FmtBold)
	row.Column("")

	tab.Print(w)

	fmt.Fprintf(w, "components=%d calls=%d branches=%d asserts=%d\n",
		m.stats.Components, m.stats.Calls, m.stats.Branches,
		m.stats.Asserts)
}
