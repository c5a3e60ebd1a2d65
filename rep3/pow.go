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

func (e *Engine) ones(n int) []Share {
	result := make([]Share, n)
	for i := range result {
		result[i] = e.Promote(e.f.One())
	}
	return result
}

// Pow raises the shares to the public exponent with square-and-multiply.
// The squaring and the multiplication of one exponent bit share a
// round.
func (e *Engine) Pow(ctx context.Context, base []Share, exp *big.Int) (
	[]Share, error) {

	if exp.Sign() < 0 {
		return nil, errors.Newf("pow: negative exponent %v", exp)
	}
	n := len(base)
	var result []Share
	acc := base

	for i := 0; i < exp.BitLen(); i++ {
		bit := exp.Bit(i) == 1
		square := i+1 < exp.BitLen()
		multiply := bit && result != nil
		if bit && result == nil {
			result = acc
		}

		var xs, ys []Share
		if multiply {
			xs = append(xs, result...)
			ys = append(ys, acc...)
		}
		if square {
			xs = append(xs, acc...)
			ys = append(ys, acc...)
		}
		if len(xs) == 0 {
			continue
		}
		r, err := e.MulMany(ctx, xs, ys)
		if err != nil {
			return nil, err
		}
		if multiply {
			result = r[:n]
			r = r[n:]
		}
		if square {
			acc = r
		}
	}
	if result == nil {
		return e.ones(n), nil
	}
	return result, nil
}

// product multiplies the rows of factors together with a balanced
// multiplication tree. All rows are processed in the same rounds.
func (e *Engine) product(ctx context.Context, factors [][]Share) (
	[]Share, error) {

	rows := make([][]Share, len(factors))
	copy(rows, factors)

	for {
		var xs, ys []Share
		done := true
		for _, row := range rows {
			if len(row) > 1 {
				done = false
			}
			for i := 0; i+1 < len(row); i += 2 {
				xs = append(xs, row[i])
				ys = append(ys, row[i+1])
			}
		}
		if done {
			break
		}
		r, err := e.MulMany(ctx, xs, ys)
		if err != nil {
			return nil, err
		}
		for v, row := range rows {
			next := make([]Share, 0, (len(row)+1)/2)
			for i := 0; i+1 < len(row); i += 2 {
				next = append(next, r[0])
				r = r[1:]
			}
			if len(row)%2 == 1 {
				next = append(next, row[len(row)-1])
			}
			rows[v] = next
		}
	}

	result := make([]Share, len(rows))
	for v, row := range rows {
		if len(row) == 0 {
			result[v] = e.Promote(e.f.One())
		} else {
			result[v] = row[0]
		}
	}
	return result, nil
}

// PowSecret raises the shares to secret exponents. The exponents are
// decomposed into bits and every bit selects between one and the
// matching square of the base. The selected factors are multiplied in
// a tree.
func (e *Engine) PowSecret(ctx context.Context, base, exp []Share) (
	[]Share, error) {

	if len(base) != len(exp) {
		return nil, errors.Newf("pow: vector length mismatch: %d**%d",
			len(base), len(exp))
	}
	if len(base) == 0 {
		return nil, nil
	}
	bits, err := e.Bits(ctx, exp)
	if err != nil {
		return nil, err
	}
	width := e.f.Bits()
	n := len(base)

	powers := make([][]Share, width)
	powers[0] = base
	for i := 1; i < width; i++ {
		powers[i], err = e.MulMany(ctx, powers[i-1], powers[i-1])
		if err != nil {
			return nil, err
		}
	}

	one := e.f.One()
	xs := make([]Share, 0, n*width)
	ys := make([]Share, 0, n*width)
	for v := 0; v < n; v++ {
		for i := 0; i < width; i++ {
			xs = append(xs, bits[v][i])
			ys = append(ys, e.AddPublic(powers[i][v], e.f.Neg(one)))
		}
	}
	sel, err := e.MulMany(ctx, xs, ys)
	if err != nil {
		return nil, err
	}
	factors := make([][]Share, n)
	for v := 0; v < n; v++ {
		factors[v] = make([]Share, width)
		for i := 0; i < width; i++ {
			factors[v][i] = e.AddPublic(sel[v*width+i], one)
		}
	}
	return e.product(ctx, factors)
}

// PowPublicBase raises the public base to the secret exponents. The
// powers of the base are public so the factor selection is local.
func (e *Engine) PowPublicBase(ctx context.Context, base field.Element,
	exp []Share) ([]Share, error) {

	if len(exp) == 0 {
		return nil, nil
	}
	bits, err := e.Bits(ctx, exp)
	if err != nil {
		return nil, err
	}
	f := e.f
	width := f.Bits()
	one := f.One()

	pw := base
	diffs := make([]field.Element, width)
	for i := 0; i < width; i++ {
		diffs[i] = f.Sub(pw, one)
		pw = f.Mul(pw, pw)
	}
	factors := make([][]Share, len(exp))
	for v := range exp {
		factors[v] = make([]Share, width)
		for i := 0; i < width; i++ {
			factors[v][i] = e.AddPublic(e.MulPublic(bits[v][i], diffs[i]), one)
		}
	}
	return e.product(ctx, factors)
}
