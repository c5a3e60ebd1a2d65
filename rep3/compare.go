//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"context"
	"math/big"
)

// orReduce computes the OR of the low bits bits of every value into
// bit position 0. Each halving level costs one AND round.
func (e *Engine) orReduce(ctx context.Context, x []BinaryShare, bits int) (
	[]BinaryShare, error) {

	for bits > 1 {
		half := (bits + 1) / 2
		lo := andPublic(x, mask(half))
		hi := shrShares(x, half)

		and, err := e.AndMany(ctx, lo, hi, half)
		if err != nil {
			return nil, err
		}
		// a|b = a^b^(a&b)
		x = xorShares(xorShares(lo, hi), and)
		bits = half
	}
	return andPublic(x, big.NewInt(1)), nil
}

// IsZeroBinary returns binary shares of the bit telling if the
// arithmetic shared value is zero.
func (e *Engine) IsZeroBinary(ctx context.Context, s []Share) (
	[]BinaryShare, error) {

	if len(s) == 0 {
		return nil, nil
	}
	xb, err := e.A2B(ctx, s)
	if err != nil {
		return nil, err
	}
	nonZero, err := e.orReduce(ctx, xb, e.f.Bits())
	if err != nil {
		return nil, err
	}
	return e.xorPublic(nonZero, big.NewInt(1)), nil
}

// IsZero returns shares of 1 for values that are zero and shares of 0
// for all other values.
func (e *Engine) IsZero(ctx context.Context, s []Share) ([]Share, error) {
	bits, err := e.IsZeroBinary(ctx, s)
	if err != nil {
		return nil, err
	}
	return e.BitInject(ctx, bits)
}

// Eq returns shares of 1 where a equals b and 0 elsewhere.
func (e *Engine) Eq(ctx context.Context, a, b []Share) ([]Share, error) {
	diff := make([]Share, len(a))
	for i := range a {
		diff[i] = e.Sub(a[i], b[i])
	}
	return e.IsZero(ctx, diff)
}

// LtBinary compares the values in the signed view of the field, where
// values above (p-1)/2 are negative, and returns binary shares of the
// bit telling if a < b. Both operands are shifted by (p-1)/2, which
// maps the signed order to the unsigned order of canonical values, and
// compared with a subtraction whose sign bit is the result.
func (e *Engine) LtBinary(ctx context.Context, a, b []Share) (
	[]BinaryShare, error) {

	if len(a) == 0 {
		return nil, nil
	}
	half := e.f.FromBig(e.f.Half())
	shifted := make([]Share, 0, 2*len(a))
	for i := range a {
		shifted = append(shifted, e.AddPublic(a[i], half))
	}
	for i := range b {
		shifted = append(shifted, e.AddPublic(b[i], half))
	}
	xb, err := e.A2B(ctx, shifted)
	if err != nil {
		return nil, err
	}
	n := len(a)
	bits := e.f.Bits() + 1

	// a-b = a + ^b + 1
	notB := e.xorPublic(xb[n:], mask(bits))
	d, err := e.add(ctx, xb[:n], notB, true, bits)
	if err != nil {
		return nil, err
	}
	return bitShares(d, bits-1), nil
}

// Lt returns shares of 1 where a < b in the signed view of the field
// and 0 elsewhere.
func (e *Engine) Lt(ctx context.Context, a, b []Share) ([]Share, error) {
	bits, err := e.LtBinary(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return e.BitInject(ctx, bits)
}
