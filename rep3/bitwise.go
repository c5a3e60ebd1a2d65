//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Bitwise operations work on the canonical values as Field().Bits()
// wide bit vectors. The results are reduced modulo the prime.

func (e *Engine) binaryPair(ctx context.Context, a, b []Share) (
	[]BinaryShare, []BinaryShare, error) {

	if len(a) != len(b) {
		return nil, nil, errors.Newf("bitwise: vector length mismatch: %d,%d",
			len(a), len(b))
	}
	all := append(append([]Share{}, a...), b...)
	r, err := e.A2B(ctx, all)
	if err != nil {
		return nil, nil, err
	}
	return r[:len(a)], r[len(a):], nil
}

// BitAnd computes a&b.
func (e *Engine) BitAnd(ctx context.Context, a, b []Share) ([]Share, error) {
	if len(a) == 0 {
		return nil, nil
	}
	x, y, err := e.binaryPair(ctx, a, b)
	if err != nil {
		return nil, err
	}
	r, err := e.AndMany(ctx, x, y, e.f.Bits())
	if err != nil {
		return nil, err
	}
	return e.B2A(ctx, r)
}

// BitOr computes a|b.
func (e *Engine) BitOr(ctx context.Context, a, b []Share) ([]Share, error) {
	if len(a) == 0 {
		return nil, nil
	}
	x, y, err := e.binaryPair(ctx, a, b)
	if err != nil {
		return nil, err
	}
	and, err := e.AndMany(ctx, x, y, e.f.Bits())
	if err != nil {
		return nil, err
	}
	return e.B2A(ctx, xorShares(xorShares(x, y), and))
}

// BitXor computes a^b.
func (e *Engine) BitXor(ctx context.Context, a, b []Share) ([]Share, error) {
	if len(a) == 0 {
		return nil, nil
	}
	x, y, err := e.binaryPair(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return e.B2A(ctx, xorShares(x, y))
}

// BitNot complements the Field().Bits() low bits of the values.
func (e *Engine) BitNot(ctx context.Context, a []Share) ([]Share, error) {
	if len(a) == 0 {
		return nil, nil
	}
	x, err := e.A2B(ctx, a)
	if err != nil {
		return nil, err
	}
	return e.B2A(ctx, e.xorPublic(x, mask(e.f.Bits())))
}

// Shl shifts the values left by n bits. Bits shifted past
// Field().Bits() are dropped.
func (e *Engine) Shl(ctx context.Context, a []Share, n int) ([]Share, error) {
	if n < 0 {
		return nil, errors.Newf("shl: negative shift %d", n)
	}
	if len(a) == 0 {
		return nil, nil
	}
	bits := e.f.Bits()
	if n >= bits {
		return e.zeros(len(a)), nil
	}
	x, err := e.A2B(ctx, a)
	if err != nil {
		return nil, err
	}
	return e.B2A(ctx, shlShares(x, n, bits))
}

// Shr shifts the values right by n bits.
func (e *Engine) Shr(ctx context.Context, a []Share, n int) ([]Share, error) {
	if n < 0 {
		return nil, errors.Newf("shr: negative shift %d", n)
	}
	if len(a) == 0 {
		return nil, nil
	}
	if n >= e.f.Bits() {
		return e.zeros(len(a)), nil
	}
	x, err := e.A2B(ctx, a)
	if err != nil {
		return nil, err
	}
	return e.B2A(ctx, shrShares(x, n))
}

// Bool maps the values to 0 or 1, where 1 marks a non-zero value.
func (e *Engine) Bool(ctx context.Context, a []Share) ([]Share, error) {
	z, err := e.IsZero(ctx, a)
	if err != nil {
		return nil, err
	}
	for i := range z {
		z[i] = e.AddPublic(e.Neg(z[i]), e.f.One())
	}
	return z, nil
}

func (e *Engine) zeros(n int) []Share {
	result := make([]Share, n)
	for i := range result {
		result[i] = e.Promote(e.f.Zero())
	}
	return result
}
