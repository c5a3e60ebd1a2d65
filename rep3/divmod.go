//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
)

func zeroBinary(n int) []BinaryShare {
	result := make([]BinaryShare, n)
	for i := range result {
		result[i] = BinaryShare{
			A: new(big.Int),
			B: new(big.Int),
		}
	}
	return result
}

// divModBinary runs the restoring division of the binary shared
// canonical values x by the non-zero divisors d. Each quotient bit
// costs one subtraction and one selection.
func (e *Engine) divModBinary(ctx context.Context, x, d []BinaryShare) (
	q, r []BinaryShare, err error) {

	bits := e.f.Bits()
	// The partial remainder stays below 2d and needs one sign bit.
	width := bits + 2
	notD := e.xorPublic(d, mask(width))

	q = zeroBinary(len(x))
	r = zeroBinary(len(x))

	for i := bits - 1; i >= 0; i-- {
		r = xorShares(shlShares(r, 1, width), bitShares(x, i))

		t, err := e.add(ctx, r, notD, true, width)
		if err != nil {
			return nil, nil, err
		}
		// Sign bit set: r < d, keep r.
		r, err = e.mux(ctx, t, width-1, r, t, width)
		if err != nil {
			return nil, nil, err
		}
		qi := e.xorPublic(bitShares(t, width-1), big.NewInt(1))
		q = xorShares(q, shlShares(qi, i, bits))
	}
	return q, andPublic(r, mask(bits)), nil
}

// checkDivisors fails with ErrDivisionByZero if any of the secret
// divisors is zero. Only the zero test result is revealed.
func (e *Engine) checkDivisors(ctx context.Context, d []Share) error {
	z, err := e.IsZeroBinary(ctx, d)
	if err != nil {
		return err
	}
	vals, err := e.OpenBinaryMany(ctx, z, 1)
	if err != nil {
		return err
	}
	for i, v := range vals {
		if v.Sign() != 0 {
			return errors.Wrapf(ErrDivisionByZero, "divisor %d", i)
		}
	}
	return nil
}

// DivMod computes the integer quotients and remainders of the canonical
// values of x and the secret divisors d. A zero divisor fails every
// party with ErrDivisionByZero.
func (e *Engine) DivMod(ctx context.Context, x, d []Share) (
	q, r []Share, err error) {

	if len(x) != len(d) {
		return nil, nil, errors.Newf("divmod: vector length mismatch: %d/%d",
			len(x), len(d))
	}
	if len(x) == 0 {
		return nil, nil, nil
	}
	if err := e.checkDivisors(ctx, d); err != nil {
		return nil, nil, err
	}
	return e.DivModNonZero(ctx, x, d)
}

// DivModNonZero computes the integer quotients and remainders like
// DivMod but does not test the divisors. The caller must guarantee
// that the divisors are not zero; a zero divisor gives undefined
// results.
func (e *Engine) DivModNonZero(ctx context.Context, x, d []Share) (
	q, r []Share, err error) {

	if len(x) != len(d) {
		return nil, nil, errors.Newf("divmod: vector length mismatch: %d/%d",
			len(x), len(d))
	}
	if len(x) == 0 {
		return nil, nil, nil
	}
	all := append(append([]Share{}, x...), d...)
	b, err := e.A2B(ctx, all)
	if err != nil {
		return nil, nil, err
	}
	n := len(x)
	return e.divModFinish(ctx, b[:n], b[n:])
}

// DivModPublic computes the integer quotients and remainders of the
// canonical values of x and the public divisor d.
func (e *Engine) DivModPublic(ctx context.Context, x []Share,
	d field.Element) (q, r []Share, err error) {

	if e.f.IsZero(d) {
		return nil, nil, errors.Wrap(ErrDivisionByZero, "public divisor")
	}
	if len(x) == 0 {
		return nil, nil, nil
	}
	xb, err := e.A2B(ctx, x)
	if err != nil {
		return nil, nil, err
	}
	db := make([]BinaryShare, len(x))
	for i := range db {
		db[i] = PromoteBinary(e.id, e.f.Big(d))
	}
	return e.divModFinish(ctx, xb, db)
}

func (e *Engine) divModFinish(ctx context.Context, x, d []BinaryShare) (
	q, r []Share, err error) {

	qb, rb, err := e.divModBinary(ctx, x, d)
	if err != nil {
		return nil, nil, err
	}
	arith, err := e.B2A(ctx, append(qb, rb...))
	if err != nil {
		return nil, nil, err
	}
	n := len(x)
	return arith[:n], arith[n:], nil
}
