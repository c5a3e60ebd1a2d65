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

// carries computes the carry vector of an addition from the generate
// and propagate vectors with a Kogge-Stone parallel prefix network.
// Bit i of the result is the carry out of position i. Generate and
// propagate of one group are never both set, so the group OR is
// computed with XOR. Each level costs one AND round.
func (e *Engine) carries(ctx context.Context, g, p []BinaryShare, bits int) (
	[]BinaryShare, error) {

	n := len(g)
	for d := 1; d < bits; d <<= 1 {
		last := d<<1 >= bits

		xs := append([]BinaryShare{}, p...)
		ys := shlShares(g, d, bits)
		if !last {
			xs = append(xs, p...)
			ys = append(ys, shlShares(p, d, bits)...)
		}
		r, err := e.AndMany(ctx, xs, ys, bits)
		if err != nil {
			return nil, err
		}
		g = xorShares(g, r[:n])
		if !last {
			p = r[n:]
		}
	}
	return g, nil
}

// sum combines the propagate vector and the carries into the sum. With
// carry-in the constant one is added to bit 0.
func (e *Engine) sum(p, c []BinaryShare, cin bool, bits int) []BinaryShare {
	s := xorShares(p, shlShares(c, 1, bits))
	if cin {
		s = e.xorPublic(s, big.NewInt(1))
	}
	return s
}

// withCarryIn folds a carry-in of one into the generate vector: the
// carry out of bit 0 becomes g0|p0, which equals g0^p0 since the two
// are exclusive.
func withCarryIn(g, p []BinaryShare) []BinaryShare {
	return xorShares(g, andPublic(p, big.NewInt(1)))
}

// add computes x+y mod 2^bits for binary shared x and y.
func (e *Engine) add(ctx context.Context, x, y []BinaryShare, cin bool,
	bits int) ([]BinaryShare, error) {

	g, err := e.AndMany(ctx, x, y, bits)
	if err != nil {
		return nil, err
	}
	p := xorShares(x, y)
	if cin {
		g = withCarryIn(g, p)
	}
	c, err := e.carries(ctx, g, p, bits)
	if err != nil {
		return nil, err
	}
	return e.sum(p, c, cin, bits), nil
}

// addPublic computes x+c mod 2^bits for binary shared x and the public
// constant c. The generate vector is local.
func (e *Engine) addPublic(ctx context.Context, x []BinaryShare, c *big.Int,
	cin bool, bits int) ([]BinaryShare, error) {

	g := andPublic(x, c)
	p := e.xorPublic(x, c)
	if cin {
		g = withCarryIn(g, p)
	}
	carry, err := e.carries(ctx, g, p, bits)
	if err != nil {
		return nil, err
	}
	return e.sum(p, carry, cin, bits), nil
}

// csa is a carry-save adder: it reduces three summands into two with
// the same sum in one AND round.
func (e *Engine) csa(ctx context.Context, a, b, c []BinaryShare, bits int) (
	s, carry []BinaryShare, err error) {

	ab := xorShares(a, b)
	s = xorShares(ab, c)

	xs := append(append([]BinaryShare{}, a...), c...)
	ys := append(append([]BinaryShare{}, b...), ab...)
	r, err := e.AndMany(ctx, xs, ys, bits)
	if err != nil {
		return nil, nil, err
	}
	n := len(a)
	// maj(a,b,c) = (a&b) ^ (c&(a^b))
	carry = shlShares(xorShares(r[:n], r[n:]), 1, bits)
	return s, carry, nil
}

// mux selects a where the bit sel of the selector is set and b
// otherwise.
func (e *Engine) mux(ctx context.Context, selector []BinaryShare, sel int,
	a, b []BinaryShare, bits int) ([]BinaryShare, error) {

	m := broadcastBit(selector, sel, bits)
	r, err := e.AndMany(ctx, m, xorShares(a, b), bits)
	if err != nil {
		return nil, err
	}
	return xorShares(b, r), nil
}

// reduce reduces binary shared values below the field prime. The
// multiples lists the multiples of the prime, in decreasing order,
// that are conditionally subtracted. The values must be smaller than
// twice the first multiple times the prime and bits must have room for
// the sign bit.
func (e *Engine) reduce(ctx context.Context, v []BinaryShare,
	multiples []int64, bits int) ([]BinaryShare, error) {

	modulus := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	for _, k := range multiples {
		kp := new(big.Int).Mul(e.f.Modulus(), big.NewInt(k))
		neg := new(big.Int).Sub(modulus, kp)

		d, err := e.addPublic(ctx, v, neg, false, bits)
		if err != nil {
			return nil, err
		}
		// Sign bit set: v < kp, keep v.
		v, err = e.mux(ctx, d, bits-1, v, d, bits)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// sumMod computes the sum of the summand vectors modulo the field
// prime. Each summand must be smaller than 2^fieldBits.
func (e *Engine) sumMod(ctx context.Context, terms [][]BinaryShare) (
	[]BinaryShare, error) {

	// Four summands stay below 4*2^fieldBits < 8p.
	bits := e.f.Bits() + 4
	multiples := []int64{4, 2, 1}
	if len(terms) <= 3 {
		multiples = []int64{2, 1}
	}

	for len(terms) > 2 {
		s, c, err := e.csa(ctx, terms[0], terms[1], terms[2], bits)
		if err != nil {
			return nil, err
		}
		terms = append([][]BinaryShare{s, c}, terms[3:]...)
	}
	v, err := e.add(ctx, terms[0], terms[1], false, bits)
	if err != nil {
		return nil, err
	}
	v, err = e.reduce(ctx, v, multiples, bits)
	if err != nil {
		return nil, err
	}
	return andPublic(v, mask(e.f.Bits())), nil
}
