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

// components returns this party's trivial binary sharings of the three
// additive components of the arithmetic shares. Component j is known
// to parties j and j+1.
func (e *Engine) components(s []Share) [NumParties][]BinaryShare {
	var result [NumParties][]BinaryShare
	for j := 0; j < NumParties; j++ {
		result[j] = make([]BinaryShare, len(s))
	}
	for i := range s {
		own := e.f.Big(s[i].A)
		prev := e.f.Big(s[i].B)
		for j := 0; j < NumParties; j++ {
			c := BinaryShare{
				A: new(big.Int),
				B: new(big.Int),
			}
			switch PartyID(j) {
			case e.id:
				c.A.Set(own)
			case e.id.Prev():
				c.B.Set(prev)
			}
			result[j][i] = c
		}
	}
	return result
}

// A2B converts arithmetic shares to binary shares of the canonical
// value. The result is Field().Bits() wide. The parties binary-share
// the additive components, add them with a carry-save adder and a
// parallel prefix adder, and reduce the sum modulo the prime.
func (e *Engine) A2B(ctx context.Context, s []Share) ([]BinaryShare, error) {
	if len(s) == 0 {
		return nil, nil
	}
	c := e.components(s)
	return e.sumMod(ctx, [][]BinaryShare{c[0], c[1], c[2]})
}

// B2A converts binary shares of values below 2^Field().Bits() to
// arithmetic shares of the values modulo the prime. The parties add a
// random arithmetic mask in binary form, reveal the masked value, and
// remove the mask arithmetically.
func (e *Engine) B2A(ctx context.Context, x []BinaryShare) ([]Share, error) {
	if len(x) == 0 {
		return nil, nil
	}
	nonce := e.Reserve(1)
	masks := make([]Share, len(x))
	for i := range masks {
		masks[i] = e.RandShare(Tag{Nonce: nonce, Index: uint32(i)})
	}
	c := e.components(masks)

	bits := e.f.Bits()
	z, err := e.sumMod(ctx, [][]BinaryShare{andPublic(x, mask(bits)),
		c[0], c[1], c[2]})
	if err != nil {
		return nil, err
	}
	masked, err := e.OpenBinaryMany(ctx, z, bits)
	if err != nil {
		return nil, err
	}
	result := make([]Share, len(x))
	for i := range result {
		result[i] = e.AddPublic(e.Neg(masks[i]), e.f.FromBig(masked[i]))
	}
	return result, nil
}

// BitInject converts binary shares of single bits, in bit position 0,
// to arithmetic shares of 0 or 1. It xors the three components
// arithmetically with x^y = x+y-2xy in two multiplication rounds.
func (e *Engine) BitInject(ctx context.Context, x []BinaryShare) (
	[]Share, error) {

	if len(x) == 0 {
		return nil, nil
	}
	f := e.f
	var d [NumParties][]Share
	for j := 0; j < NumParties; j++ {
		d[j] = make([]Share, len(x))
	}
	for i := range x {
		own := f.NewElement(uint64(x[i].A.Bit(0)))
		prev := f.NewElement(uint64(x[i].B.Bit(0)))
		for j := 0; j < NumParties; j++ {
			s := Share{
				A: f.Zero(),
				B: f.Zero(),
			}
			switch PartyID(j) {
			case e.id:
				s.A = own
			case e.id.Prev():
				s.B = prev
			}
			d[j][i] = s
		}
	}

	two := f.NewElement(2)
	xor := func(a, b []Share) ([]Share, error) {
		prod, err := e.MulMany(ctx, a, b)
		if err != nil {
			return nil, err
		}
		result := make([]Share, len(a))
		for i := range a {
			result[i] = e.Sub(e.Add(a[i], b[i]), e.MulPublic(prod[i], two))
		}
		return result, nil
	}
	t, err := xor(d[0], d[1])
	if err != nil {
		return nil, err
	}
	return xor(t, d[2])
}

// Bits decomposes the shares into binary shared bits. The result is
// indexed by value and bit position, least significant bit first, and
// every bit is an arithmetic share of 0 or 1.
func (e *Engine) Bits(ctx context.Context, s []Share) ([][]Share, error) {
	xb, err := e.A2B(ctx, s)
	if err != nil {
		return nil, err
	}
	bits := e.f.Bits()
	flat := make([]BinaryShare, 0, len(s)*bits)
	for i := 0; i < bits; i++ {
		flat = append(flat, bitShares(xb, i)...)
	}
	inj, err := e.BitInject(ctx, flat)
	if err != nil {
		return nil, err
	}
	result := make([][]Share, len(s))
	for v := range s {
		result[v] = make([]Share, bits)
		for i := 0; i < bits; i++ {
			result[v][i] = inj[i*len(s)+v]
		}
	}
	return result, nil
}
