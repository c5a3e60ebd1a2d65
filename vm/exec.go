//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package vm

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/plain"
	"github.com/markkurossi/covm/program"
)

// index returns the dynamic index operand of the instruction or 0 if
// the instruction does not have the operand.
func (m *Machine) index(fr *frame, instr program.Instr,
	flag program.Dyn) (int, error) {

	if instr.Dyn&flag == 0 {
		return 0, nil
	}
	v, err := fr.pop()
	if err != nil {
		return 0, err
	}
	if v.Secret() {
		return 0, unsupportedf("%s: secret index", instr.Op)
	}
	idx, ok := m.f.Uint64(v.pub)
	if !ok || idx >= maxIndex {
		return 0, errors.Newf("%s: index %s out of range", instr.Op,
			m.f.Format(v.pub))
	}
	return int(idx), nil
}

func (m *Machine) variable(fr *frame, instr program.Instr) (int, error) {
	idx, err := m.index(fr, instr, program.DynIndex)
	if err != nil {
		return 0, err
	}
	addr := instr.Arg + idx
	if addr >= len(fr.vars) {
		return 0, errors.Newf("%s: variable %d out of range", instr.Op, addr)
	}
	return addr, nil
}

func (m *Machine) shared(fr *frame, instr program.Instr) error {
	if fr.guard != nil {
		return unsupportedf("%s in a shared branch", instr.Op)
	}
	return nil
}

// exec executes the instructions [start, end) of the frame. Jumps must
// stay within the range and the jump to end leaves the block. The
// function returns true if the frame returned.
func (m *Machine) exec(ctx context.Context, fr *frame, start, end int) (
	bool, error) {

	code := fr.code

	for pc := start; pc < end; {
		instr := code[pc]
		fr.pc = pc
		m.stats.Instrs[instr.Op]++
		next := pc + 1

		switch instr.Op {
		case program.OpNop:

		case program.OpPush:
			fr.push(public(m.prog.Const(instr.Arg)))

		case program.OpPop:
			if _, err := fr.pop(); err != nil {
				return false, err
			}

		case program.OpDup:
			v, err := fr.peek()
			if err != nil {
				return false, err
			}
			fr.push(v)

		case program.OpLoad:
			addr, err := m.variable(fr, instr)
			if err != nil {
				return false, err
			}
			fr.push(fr.vars[addr])

		case program.OpStore:
			v, err := fr.pop()
			if err != nil {
				return false, err
			}
			addr, err := m.variable(fr, instr)
			if err != nil {
				return false, err
			}
			fr.vars[addr] = v

		case program.OpLoadSig:
			idx, err := m.index(fr, instr, program.DynIndex)
			if err != nil {
				return false, err
			}
			v, err := m.read(fr.inst, instr.Arg, idx)
			if err != nil {
				return false, err
			}
			fr.push(v)

		case program.OpStoreSig:
			if err := m.shared(fr, instr); err != nil {
				return false, err
			}
			v, err := fr.pop()
			if err != nil {
				return false, err
			}
			idx, err := m.index(fr, instr, program.DynIndex)
			if err != nil {
				return false, err
			}
			if fr.inst.tmpl.Signals[instr.Arg].Kind == program.Input {
				return false, errors.Newf("assignment to input signal %s",
					m.signalName(fr.inst, instr.Arg, idx))
			}
			if err := m.assign(fr.inst, instr.Arg, idx, v); err != nil {
				return false, err
			}

		case program.OpCreate:
			if err := m.shared(fr, instr); err != nil {
				return false, err
			}
			idx, err := m.index(fr, instr, program.DynComponent)
			if err != nil {
				return false, err
			}
			if err := m.create(ctx, fr, instr.Arg, idx); err != nil {
				return false, err
			}

		case program.OpLoadCmp:
			sidx, err := m.index(fr, instr, program.DynIndex)
			if err != nil {
				return false, err
			}
			cidx, err := m.index(fr, instr, program.DynComponent)
			if err != nil {
				return false, err
			}
			inst, err := m.lookup(fr, instr.Arg, cidx)
			if err != nil {
				return false, err
			}
			kind := inst.tmpl.Signals[instr.Arg2].Kind
			if kind == program.Output && !inst.invoked {
				return false, errors.Newf("component %s not computed",
					inst.name)
			}
			v, err := m.read(inst, instr.Arg2, sidx)
			if err != nil {
				return false, err
			}
			fr.push(v)

		case program.OpStoreCmp:
			if err := m.shared(fr, instr); err != nil {
				return false, err
			}
			v, err := fr.pop()
			if err != nil {
				return false, err
			}
			sidx, err := m.index(fr, instr, program.DynIndex)
			if err != nil {
				return false, err
			}
			cidx, err := m.index(fr, instr, program.DynComponent)
			if err != nil {
				return false, err
			}
			inst, err := m.lookup(fr, instr.Arg, cidx)
			if err != nil {
				return false, err
			}
			if err := m.bind(ctx, inst, instr.Arg2, sidx, v); err != nil {
				return false, err
			}

		case program.OpCall:
			if err := m.call(ctx, fr, instr.Arg); err != nil {
				return false, err
			}

		case program.OpReturn:
			v, err := fr.pop()
			if err != nil {
				return false, err
			}
			fr.ret = &v
			return true, nil

		case program.OpAdd, program.OpSub, program.OpMul, program.OpDiv,
			program.OpIntDiv, program.OpMod, program.OpPow,
			program.OpLt, program.OpLe, program.OpGt, program.OpGe,
			program.OpEq, program.OpNeq, program.OpAnd, program.OpOr,
			program.OpBand, program.OpBor, program.OpBxor,
			program.OpShl, program.OpShr:
			b, err := fr.pop()
			if err != nil {
				return false, err
			}
			a, err := fr.pop()
			if err != nil {
				return false, err
			}
			r, err := m.binary(ctx, instr.Op, fr.guard, a, b)
			if err != nil {
				return false, err
			}
			fr.push(r)

		case program.OpNeg, program.OpNot, program.OpBnot:
			a, err := fr.pop()
			if err != nil {
				return false, err
			}
			r, err := m.unary(ctx, instr.Op, a)
			if err != nil {
				return false, err
			}
			fr.push(r)

		case program.OpIf:
			cond, err := fr.pop()
			if err != nil {
				return false, err
			}
			var ret bool
			if cond.Secret() {
				ret, err = m.branch(ctx, fr, pc, instr, cond)
			} else if plain.Truth(m.f, cond.pub) {
				ret, err = m.exec(ctx, fr, pc+1, instr.Arg)
			} else {
				ret, err = m.exec(ctx, fr, instr.Arg, instr.Arg2)
			}
			if err != nil || ret {
				return ret, err
			}
			next = instr.Arg2

		case program.OpJump:
			next = instr.Arg

		case program.OpJumpZ:
			cond, err := fr.pop()
			if err != nil {
				return false, err
			}
			if cond.Secret() {
				return false, unsupportedf("%s: secret condition", instr.Op)
			}
			if !plain.Truth(m.f, cond.pub) {
				next = instr.Arg
			}

		case program.OpAssert:
			cond, err := fr.pop()
			if err != nil {
				return false, err
			}
			if err := m.assert(ctx, fr, instr, cond); err != nil {
				return false, err
			}

		case program.OpLog:
			m.log.Info().Str("component", fr.inst.name).Str("at", m.trace()).
				Msg(instr.Msg)

		default:
			return false, errors.Newf("invalid instruction %s", instr)
		}

		if next < start || next > end {
			return false, errors.Newf("%s: jump out of block [%d,%d)",
				instr, start, end)
		}
		if next <= pc {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		pc = next
	}
	return false, nil
}
