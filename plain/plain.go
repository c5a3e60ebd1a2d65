//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package plain implements the circuit operators over public field
// elements. Comparisons use the signed view of the field where the
// values above (p-1)/2 are negative. Integer division, modulo and the
// bitwise operators work on the canonical values and the bitwise
// operators are limited to the bit length of the prime.
package plain

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/program"
	"github.com/markkurossi/covm/rep3"
)

func boolean(f *field.Field, v bool) field.Element {
	if v {
		return f.One()
	}
	return f.Zero()
}

func mask(f *field.Field) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(f.Bits()))
	return m.Sub(m, big.NewInt(1))
}

// Shift resolves the shift amount k of the shift operator op. Amounts
// above (p-1)/2 shift to the opposite direction by p-k. The function
// returns the effective direction and the amount, limited to the bit
// length of the prime.
func Shift(f *field.Field, op program.Opcode, k field.Element) (
	program.Opcode, int) {

	n := f.Big(k)
	if n.Cmp(f.Half()) > 0 {
		n.Sub(f.Modulus(), n)
		if op == program.OpShl {
			op = program.OpShr
		} else {
			op = program.OpShl
		}
	}
	if n.Cmp(big.NewInt(int64(f.Bits()))) > 0 {
		return op, f.Bits()
	}
	return op, int(n.Int64())
}

// Binary evaluates the binary operator op.
func Binary(f *field.Field, op program.Opcode, a, b field.Element) (
	field.Element, error) {

	switch op {
	case program.OpAdd:
		return f.Add(a, b), nil

	case program.OpSub:
		return f.Sub(a, b), nil

	case program.OpMul:
		return f.Mul(a, b), nil

	case program.OpDiv:
		if f.IsZero(b) {
			return field.Element{}, errors.Wrap(rep3.ErrDivisionByZero, "div")
		}
		return f.Div(a, b)

	case program.OpIntDiv, program.OpMod:
		if f.IsZero(b) {
			return field.Element{}, errors.Wrapf(rep3.ErrDivisionByZero,
				"%s", op)
		}
		q, r := new(big.Int).DivMod(f.Big(a), f.Big(b), new(big.Int))
		if op == program.OpIntDiv {
			return f.FromBig(q), nil
		}
		return f.FromBig(r), nil

	case program.OpPow:
		return f.Exp(a, f.Big(b)), nil

	case program.OpLt:
		return boolean(f, f.Signed(a).Cmp(f.Signed(b)) < 0), nil
	case program.OpLe:
		return boolean(f, f.Signed(a).Cmp(f.Signed(b)) <= 0), nil
	case program.OpGt:
		return boolean(f, f.Signed(a).Cmp(f.Signed(b)) > 0), nil
	case program.OpGe:
		return boolean(f, f.Signed(a).Cmp(f.Signed(b)) >= 0), nil
	case program.OpEq:
		return boolean(f, f.Equal(a, b)), nil
	case program.OpNeq:
		return boolean(f, !f.Equal(a, b)), nil

	case program.OpAnd:
		return boolean(f, !f.IsZero(a) && !f.IsZero(b)), nil
	case program.OpOr:
		return boolean(f, !f.IsZero(a) || !f.IsZero(b)), nil

	case program.OpBand:
		return f.FromBig(new(big.Int).And(f.Big(a), f.Big(b))), nil
	case program.OpBor:
		return f.FromBig(new(big.Int).Or(f.Big(a), f.Big(b))), nil
	case program.OpBxor:
		return f.FromBig(new(big.Int).Xor(f.Big(a), f.Big(b))), nil

	case program.OpShl, program.OpShr:
		dir, n := Shift(f, op, b)
		x := f.Big(a)
		if dir == program.OpShr {
			return f.FromBig(x.Rsh(x, uint(n))), nil
		}
		x.Lsh(x, uint(n))
		return f.FromBig(x.And(x, mask(f))), nil

	default:
		return field.Element{}, errors.Newf("invalid binary operator %s", op)
	}
}

// Unary evaluates the unary operator op.
func Unary(f *field.Field, op program.Opcode, a field.Element) (
	field.Element, error) {

	switch op {
	case program.OpNeg:
		return f.Neg(a), nil

	case program.OpNot:
		return boolean(f, f.IsZero(a)), nil

	case program.OpBnot:
		return f.FromBig(new(big.Int).Xor(f.Big(a), mask(f))), nil

	default:
		return field.Element{}, errors.Newf("invalid unary operator %s", op)
	}
}

// Truth tests if the value is true, i.e. non-zero.
func Truth(f *field.Field, a field.Element) bool {
	return !f.IsZero(a)
}
