//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package vm

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/plain"
	"github.com/markkurossi/covm/program"
	"github.com/markkurossi/covm/rep3"
)

// resolve returns the shares of the values. Pending multiplications
// are flushed first.
func (m *Machine) resolve(ctx context.Context, vals ...Value) (
	[]rep3.Share, error) {

	nodes := make([]*accel.Node, len(vals))
	for i, v := range vals {
		nodes[i] = m.node(v)
	}
	return m.acc.ResolveMany(ctx, nodes)
}

func (m *Machine) share(s []rep3.Share) Value {
	return secret(m.acc.Share(s[0]))
}

func (m *Machine) shareBool(s []rep3.Share) Value {
	return secretBool(m.acc.Share(s[0]))
}

func (m *Machine) one() *accel.Node {
	return m.acc.Public(m.f.One())
}

// not returns 1-v for the boolean value v.
func (m *Machine) not(v Value) Value {
	return secretBool(m.acc.Sub(m.one(), m.node(v)))
}

// truth returns the boolean node of the value: 1 if the value is
// non-zero and 0 otherwise.
func (m *Machine) truth(ctx context.Context, v Value) (*accel.Node, error) {
	if !v.Secret() {
		if plain.Truth(m.f, v.pub) {
			return m.one(), nil
		}
		return m.acc.Public(m.f.Zero()), nil
	}
	if v.boolean {
		return v.node, nil
	}
	s, err := m.resolve(ctx, v)
	if err != nil {
		return nil, err
	}
	r, err := m.acc.Engine().Bool(ctx, s)
	if err != nil {
		return nil, err
	}
	return m.acc.Share(r[0]), nil
}

func (m *Machine) lt(ctx context.Context, a, b Value) (Value, error) {
	s, err := m.resolve(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	r, err := m.acc.Engine().Lt(ctx, s[:1], s[1:])
	if err != nil {
		return Value{}, err
	}
	return m.shareBool(r), nil
}

func (m *Machine) eq(ctx context.Context, a, b Value) (Value, error) {
	s, err := m.resolve(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	r, err := m.acc.Engine().Eq(ctx, s[:1], s[1:])
	if err != nil {
		return Value{}, err
	}
	return m.shareBool(r), nil
}

// pow computes base^exp for the public exponent with square and
// multiply. The multiplications are batched by the accelerator.
func (m *Machine) pow(ctx context.Context, base *accel.Node, exp *big.Int) (
	*accel.Node, error) {

	var result *accel.Node
	var err error

	sq := base
	for i := 0; i < exp.BitLen(); i++ {
		if exp.Bit(i) == 1 {
			if result == nil {
				result = sq
			} else {
				result, err = m.acc.Mul(ctx, result, sq)
				if err != nil {
					return nil, err
				}
			}
		}
		if i+1 < exp.BitLen() {
			sq, err = m.acc.Mul(ctx, sq, sq)
			if err != nil {
				return nil, err
			}
		}
	}
	if result == nil {
		return m.one(), nil
	}
	return result, nil
}

func (m *Machine) divMod(ctx context.Context, op program.Opcode,
	guard *accel.Node, a, b Value) (Value, error) {

	e := m.acc.Engine()

	var q, r []rep3.Share
	if b.Secret() {
		var err error
		if guard != nil {
			b, err = m.nonZeroDivisor(ctx, op, guard, b)
			if err != nil {
				return Value{}, err
			}
		}
		s, err := m.resolve(ctx, a, b)
		if err != nil {
			return Value{}, err
		}
		if guard != nil {
			q, r, err = e.DivModNonZero(ctx, s[:1], s[1:])
		} else {
			q, r, err = e.DivMod(ctx, s[:1], s[1:])
		}
		if err != nil {
			return Value{}, err
		}
	} else {
		if m.f.IsZero(b.pub) {
			return Value{}, errors.Wrapf(rep3.ErrDivisionByZero, "%s", op)
		}
		s, err := m.resolve(ctx, a)
		if err != nil {
			return Value{}, err
		}
		q, r, err = e.DivModPublic(ctx, s, b.pub)
		if err != nil {
			return Value{}, err
		}
	}
	if op == program.OpIntDiv {
		return m.share(q), nil
	}
	return m.share(r), nil
}

// divisionCheck reveals whether a zero divisor is reached on the
// taken path of a shared branch and fails with ErrDivisionByZero if it
// is. The secret boolean z tells if the divisor is zero; a nil z is a
// public zero divisor.
func (m *Machine) divisionCheck(ctx context.Context, op program.Opcode,
	guard, z *accel.Node) error {

	taken := guard
	if z != nil {
		var err error
		taken, err = m.acc.Mul(ctx, guard, z)
		if err != nil {
			return err
		}
	}
	s, err := m.acc.Resolve(ctx, taken)
	if err != nil {
		return err
	}
	v, err := m.acc.Engine().Open(ctx, s)
	if err != nil {
		return err
	}
	if !m.f.IsZero(v) {
		return errors.Wrapf(rep3.ErrDivisionByZero, "%s", op)
	}
	return nil
}

// nonZeroDivisor returns the secret divisor b+IsZero(b) for a division
// inside a shared branch. The result is never zero, so the division
// reveals nothing in the arm that is not taken. A zero divisor on the
// taken path fails with ErrDivisionByZero.
func (m *Machine) nonZeroDivisor(ctx context.Context, op program.Opcode,
	guard *accel.Node, b Value) (Value, error) {

	s, err := m.resolve(ctx, b)
	if err != nil {
		return Value{}, err
	}
	r, err := m.acc.Engine().IsZero(ctx, s)
	if err != nil {
		return Value{}, err
	}
	z := m.acc.Share(r[0])
	if err := m.divisionCheck(ctx, op, guard, z); err != nil {
		return Value{}, err
	}
	return secret(m.acc.Add(b.node, z)), nil
}

func isDivision(op program.Opcode) bool {
	return op == program.OpDiv || op == program.OpIntDiv || op == program.OpMod
}

// binary evaluates the binary operator. At least one of the operands
// must be secret if the machine has an accelerator. The guard is the
// condition of the enclosing shared branch or nil.
func (m *Machine) binary(ctx context.Context, op program.Opcode,
	guard *accel.Node, a, b Value) (Value, error) {

	if guard != nil && isDivision(op) && !b.Secret() && m.f.IsZero(b.pub) {
		if err := m.divisionCheck(ctx, op, guard, nil); err != nil {
			return Value{}, err
		}
		return public(m.f.Zero()), nil
	}
	if !a.Secret() && !b.Secret() {
		r, err := plain.Binary(m.f, op, a.pub, b.pub)
		if err != nil {
			return Value{}, err
		}
		return public(r), nil
	}
	acc := m.acc
	e := acc.Engine()

	switch op {
	case program.OpAdd:
		return secret(acc.Add(m.node(a), m.node(b))), nil

	case program.OpSub:
		return secret(acc.Sub(m.node(a), m.node(b))), nil

	case program.OpMul:
		n, err := acc.Mul(ctx, m.node(a), m.node(b))
		if err != nil {
			return Value{}, err
		}
		return Value{
			node:    n,
			boolean: m.isBool(a) && m.isBool(b),
		}, nil

	case program.OpDiv:
		if !b.Secret() {
			inv, err := m.f.Inverse(b.pub)
			if err != nil {
				return Value{}, errors.Wrap(rep3.ErrDivisionByZero, "div")
			}
			return secret(acc.MulPublic(a.node, inv)), nil
		}
		if guard != nil {
			var err error
			b, err = m.nonZeroDivisor(ctx, op, guard, b)
			if err != nil {
				return Value{}, err
			}
		}
		s, err := m.resolve(ctx, b)
		if err != nil {
			return Value{}, err
		}
		inv, err := e.Inverse(ctx, s)
		if err != nil {
			return Value{}, err
		}
		n, err := acc.Mul(ctx, m.node(a), acc.Share(inv[0]))
		if err != nil {
			return Value{}, err
		}
		return secret(n), nil

	case program.OpIntDiv, program.OpMod:
		return m.divMod(ctx, op, guard, a, b)

	case program.OpPow:
		if !b.Secret() {
			n, err := m.pow(ctx, a.node, m.f.Big(b.pub))
			if err != nil {
				return Value{}, err
			}
			return secret(n), nil
		}
		var r []rep3.Share
		if !a.Secret() {
			s, err := m.resolve(ctx, b)
			if err != nil {
				return Value{}, err
			}
			r, err = e.PowPublicBase(ctx, a.pub, s)
			if err != nil {
				return Value{}, err
			}
		} else {
			s, err := m.resolve(ctx, a, b)
			if err != nil {
				return Value{}, err
			}
			r, err = e.PowSecret(ctx, s[:1], s[1:])
			if err != nil {
				return Value{}, err
			}
		}
		return m.share(r), nil

	case program.OpLt:
		return m.lt(ctx, a, b)

	case program.OpGt:
		return m.lt(ctx, b, a)

	case program.OpLe:
		r, err := m.lt(ctx, b, a)
		if err != nil {
			return Value{}, err
		}
		return m.not(r), nil

	case program.OpGe:
		r, err := m.lt(ctx, a, b)
		if err != nil {
			return Value{}, err
		}
		return m.not(r), nil

	case program.OpEq:
		return m.eq(ctx, a, b)

	case program.OpNeq:
		r, err := m.eq(ctx, a, b)
		if err != nil {
			return Value{}, err
		}
		return m.not(r), nil

	case program.OpAnd, program.OpOr:
		if !a.Secret() {
			a, b = b, a
		}
		if !b.Secret() {
			t := plain.Truth(m.f, b.pub)
			if op == program.OpAnd && !t {
				return public(m.f.Zero()), nil
			}
			if op == program.OpOr && t {
				return public(m.f.One()), nil
			}
			n, err := m.truth(ctx, a)
			if err != nil {
				return Value{}, err
			}
			return secretBool(n), nil
		}
		x, err := m.truth(ctx, a)
		if err != nil {
			return Value{}, err
		}
		y, err := m.truth(ctx, b)
		if err != nil {
			return Value{}, err
		}
		xy, err := acc.Mul(ctx, x, y)
		if err != nil {
			return Value{}, err
		}
		if op == program.OpAnd {
			return secretBool(xy), nil
		}
		return secretBool(acc.Sub(acc.Add(x, y), xy)), nil

	case program.OpBand, program.OpBor, program.OpBxor:
		s, err := m.resolve(ctx, a, b)
		if err != nil {
			return Value{}, err
		}
		var r []rep3.Share
		switch op {
		case program.OpBand:
			r, err = e.BitAnd(ctx, s[:1], s[1:])
		case program.OpBor:
			r, err = e.BitOr(ctx, s[:1], s[1:])
		default:
			r, err = e.BitXor(ctx, s[:1], s[1:])
		}
		if err != nil {
			return Value{}, err
		}
		return m.share(r), nil

	case program.OpShl, program.OpShr:
		if b.Secret() {
			return Value{}, unsupportedf("%s: secret shift amount", op)
		}
		dir, n := plain.Shift(m.f, op, b.pub)
		s, err := m.resolve(ctx, a)
		if err != nil {
			return Value{}, err
		}
		var r []rep3.Share
		if dir == program.OpShl {
			r, err = e.Shl(ctx, s, n)
		} else {
			r, err = e.Shr(ctx, s, n)
		}
		if err != nil {
			return Value{}, err
		}
		return m.share(r), nil

	default:
		return Value{}, errors.Newf("invalid binary operator %s", op)
	}
}

func (m *Machine) unary(ctx context.Context, op program.Opcode, a Value) (
	Value, error) {

	if !a.Secret() {
		r, err := plain.Unary(m.f, op, a.pub)
		if err != nil {
			return Value{}, err
		}
		return public(r), nil
	}
	switch op {
	case program.OpNeg:
		return secret(m.acc.Neg(a.node)), nil

	case program.OpNot:
		if a.boolean {
			return m.not(a), nil
		}
		s, err := m.resolve(ctx, a)
		if err != nil {
			return Value{}, err
		}
		r, err := m.acc.Engine().IsZero(ctx, s)
		if err != nil {
			return Value{}, err
		}
		return m.shareBool(r), nil

	case program.OpBnot:
		s, err := m.resolve(ctx, a)
		if err != nil {
			return Value{}, err
		}
		r, err := m.acc.Engine().BitNot(ctx, s)
		if err != nil {
			return Value{}, err
		}
		return m.share(r), nil

	default:
		return Value{}, errors.Newf("invalid unary operator %s", op)
	}
}
