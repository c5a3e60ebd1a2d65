//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package vm

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/plain"
	"github.com/markkurossi/covm/program"
)

// branch executes an if statement with a secret condition. Both arms
// run on copies of the frame state and the results are merged with
// the condition: merged = c*(then-else)+else. The arms run under a
// guard so assertions of the untaken arm hold.
func (m *Machine) branch(ctx context.Context, fr *frame, pc int,
	instr program.Instr, cond Value) (bool, error) {

	m.stats.Branches++

	c, err := m.truth(ctx, cond)
	if err != nil {
		return false, err
	}
	outer := fr.guard

	guardThen := c
	guardElse := m.acc.Sub(m.one(), c)
	if outer != nil {
		guardThen, err = m.acc.Mul(ctx, outer, c)
		if err != nil {
			return false, err
		}
		guardElse = m.acc.Sub(outer, guardThen)
	}

	saved := fr.save()

	fr.guard = guardThen
	retThen, err := m.exec(ctx, fr, pc+1, instr.Arg)
	if err != nil {
		return false, err
	}
	then := fr.save()

	fr.restore(saved)
	fr.guard = guardElse
	retElse, err := m.exec(ctx, fr, instr.Arg, instr.Arg2)
	if err != nil {
		return false, err
	}
	fr.guard = outer

	if retThen != retElse {
		return false, unsupportedf("return in one arm of a shared if")
	}
	if len(then.stack) != len(fr.stack) {
		return false, unsupportedf("unbalanced stack in shared if: %d/%d",
			len(then.stack), len(fr.stack))
	}
	for i := range fr.vars {
		fr.vars[i], err = m.merge(ctx, c, then.vars[i], fr.vars[i])
		if err != nil {
			return false, err
		}
	}
	for i := range fr.stack {
		fr.stack[i], err = m.merge(ctx, c, then.stack[i], fr.stack[i])
		if err != nil {
			return false, err
		}
	}
	if retThen {
		ret, err := m.merge(ctx, c, *then.ret, *fr.ret)
		if err != nil {
			return false, err
		}
		fr.ret = &ret
	}
	return retThen, nil
}

// merge selects a if the boolean c is one and b otherwise.
func (m *Machine) merge(ctx context.Context, c *accel.Node, a, b Value) (
	Value, error) {

	if a.Secret() && a.node == b.node {
		return a, nil
	}
	if !a.Secret() && !b.Secret() && m.f.Equal(a.pub, b.pub) {
		return a, nil
	}
	n, err := m.acc.CMux(ctx, c, m.node(a), m.node(b))
	if err != nil {
		return Value{}, err
	}
	return Value{
		node:    n,
		boolean: m.isBool(a) && m.isBool(b),
	}, nil
}

// assert checks the assertion condition. Secret conditions and
// assertions inside shared branches are revealed: the parties learn
// whether the assertion holds under the branch guard and nothing
// else.
func (m *Machine) assert(ctx context.Context, fr *frame,
	instr program.Instr, cond Value) error {

	m.stats.Asserts++

	if !cond.Secret() && fr.guard == nil {
		if plain.Truth(m.f, cond.pub) {
			return nil
		}
		return m.assertionFailed(fr, instr)
	}
	ok, err := m.truth(ctx, cond)
	if err != nil {
		return err
	}
	if fr.guard != nil {
		// ok = 1 - guard*(1-cond)
		prod, err := m.acc.Mul(ctx, fr.guard, m.acc.Sub(m.one(), ok))
		if err != nil {
			return err
		}
		ok = m.acc.Sub(m.one(), prod)
	}
	s, err := m.acc.Resolve(ctx, ok)
	if err != nil {
		return err
	}
	v, err := m.acc.Engine().Open(ctx, s)
	if err != nil {
		return err
	}
	if m.f.IsZero(v) {
		return m.assertionFailed(fr, instr)
	}
	return nil
}

func (m *Machine) assertionFailed(fr *frame, instr program.Instr) error {
	msg := instr.Msg
	if len(msg) == 0 {
		msg = fr.inst.name
	}
	m.log.Warn().Str("at", m.trace()).Msg(msg)
	return errors.Wrapf(ErrAssertionFailed, "%s", msg)
}
