//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package plain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/program"
	"github.com/markkurossi/covm/rep3"
	"github.com/stretchr/testify/require"
)

func TestBinary(t *testing.T) {
	f := field.BN254
	v := f.FromInt64

	tests := []struct {
		op       program.Opcode
		a, b     int64
		expected int64
	}{
		{program.OpAdd, 2, 3, 5},
		{program.OpSub, 2, 3, -1},
		{program.OpMul, -2, 3, -6},
		{program.OpDiv, 6, 3, 2},
		{program.OpIntDiv, 17, 5, 3},
		{program.OpMod, 17, 5, 2},
		{program.OpPow, 3, 4, 81},
		{program.OpPow, 0, 0, 1},
		{program.OpLt, -1, 0, 1},
		{program.OpLt, 0, -1, 0},
		{program.OpLe, 2, 2, 1},
		{program.OpGt, 2, -5, 1},
		{program.OpGe, -5, 2, 0},
		{program.OpEq, 7, 7, 1},
		{program.OpNeq, 7, 7, 0},
		{program.OpAnd, 7, 0, 0},
		{program.OpAnd, 7, -1, 1},
		{program.OpOr, 0, 0, 0},
		{program.OpOr, 0, 3, 1},
		{program.OpBand, 12, 10, 8},
		{program.OpBor, 12, 10, 14},
		{program.OpBxor, 12, 10, 6},
		{program.OpShl, 3, 2, 12},
		{program.OpShr, 12, 2, 3},
		{program.OpShr, 3, -2, 12},
		{program.OpShl, 12, -2, 3},
		{program.OpShr, 12, 300, 0},
		{program.OpShl, 12, 300, 0},
	}
	for _, test := range tests {
		r, err := Binary(f, test.op, v(test.a), v(test.b))
		require.NoError(t, err, "%s", test.op)
		require.True(t, f.Equal(v(test.expected), r),
			"%d %s %d: got %s", test.a, test.op, test.b, f.Format(r))
	}

	// -1 is p-1 in integer division.
	r, err := Binary(f, program.OpIntDiv, v(-1), v(2))
	require.NoError(t, err)
	require.True(t, f.Equal(f.FromBig(f.Half()), r))

	// Left shift is limited to the bit length of the prime.
	r, err = Binary(f, program.OpShl, v(1), v(int64(f.Bits()-1)))
	require.NoError(t, err)
	require.Equal(t, f.Bits(), f.Big(r).BitLen())
}

func TestDivisionByZero(t *testing.T) {
	f := field.BN254
	for _, op := range []program.Opcode{
		program.OpDiv, program.OpIntDiv, program.OpMod,
	} {
		_, err := Binary(f, op, f.One(), f.Zero())
		require.Error(t, err)
		require.True(t, errors.Is(err, rep3.ErrDivisionByZero), "%s", op)
	}
}

func TestUnary(t *testing.T) {
	f := field.BN254

	r, err := Unary(f, program.OpNeg, f.NewElement(5))
	require.NoError(t, err)
	require.True(t, f.Equal(f.FromInt64(-5), r))

	r, err = Unary(f, program.OpNot, f.Zero())
	require.NoError(t, err)
	require.True(t, f.Equal(f.One(), r))

	r, err = Unary(f, program.OpNot, f.NewElement(9))
	require.NoError(t, err)
	require.True(t, f.IsZero(r))

	// ~0 is 2^bits-1 reduced modulo p.
	r, err = Unary(f, program.OpBnot, f.Zero())
	require.NoError(t, err)
	require.True(t, f.Equal(f.FromBig(mask(f)), r))

	_, err = Unary(f, program.OpAdd, f.Zero())
	require.Error(t, err)
}

func TestShift(t *testing.T) {
	f := field.BN254

	op, n := Shift(f, program.OpShl, f.NewElement(3))
	require.Equal(t, program.OpShl, op)
	require.Equal(t, 3, n)

	op, n = Shift(f, program.OpShl, f.FromInt64(-3))
	require.Equal(t, program.OpShr, op)
	require.Equal(t, 3, n)

	op, n = Shift(f, program.OpShr, f.FromBig(f.Half()))
	require.Equal(t, program.OpShr, op)
	require.Equal(t, f.Bits(), n)
}
