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
)

// Local operations on binary share vectors. None of them modify their
// arguments.

func xorShares(x, y []BinaryShare) []BinaryShare {
	result := make([]BinaryShare, len(x))
	for i := range x {
		result[i] = BinaryShare{
			A: new(big.Int).Xor(x[i].A, y[i].A),
			B: new(big.Int).Xor(x[i].B, y[i].B),
		}
	}
	return result
}

// xorPublic xors the public constant c into every share.
func (e *Engine) xorPublic(x []BinaryShare, c *big.Int) []BinaryShare {
	result := make([]BinaryShare, len(x))
	for i := range x {
		p := PromoteBinary(e.id, c)
		result[i] = BinaryShare{
			A: p.A.Xor(p.A, x[i].A),
			B: p.B.Xor(p.B, x[i].B),
		}
	}
	return result
}

// andPublic ands every share with the public constant c.
func andPublic(x []BinaryShare, c *big.Int) []BinaryShare {
	result := make([]BinaryShare, len(x))
	for i := range x {
		result[i] = BinaryShare{
			A: new(big.Int).And(x[i].A, c),
			B: new(big.Int).And(x[i].B, c),
		}
	}
	return result
}

func shlShares(x []BinaryShare, n, bits int) []BinaryShare {
	m := mask(bits)
	result := make([]BinaryShare, len(x))
	for i := range x {
		a := new(big.Int).Lsh(x[i].A, uint(n))
		b := new(big.Int).Lsh(x[i].B, uint(n))
		result[i] = BinaryShare{
			A: a.And(a, m),
			B: b.And(b, m),
		}
	}
	return result
}

func shrShares(x []BinaryShare, n int) []BinaryShare {
	result := make([]BinaryShare, len(x))
	for i := range x {
		result[i] = BinaryShare{
			A: new(big.Int).Rsh(x[i].A, uint(n)),
			B: new(big.Int).Rsh(x[i].B, uint(n)),
		}
	}
	return result
}

// bitShares extracts bit n of every share into bit position 0.
func bitShares(x []BinaryShare, n int) []BinaryShare {
	result := make([]BinaryShare, len(x))
	for i := range x {
		result[i] = BinaryShare{
			A: big.NewInt(int64(x[i].A.Bit(n))),
			B: big.NewInt(int64(x[i].B.Bit(n))),
		}
	}
	return result
}

// broadcastBit spreads bit n of every share over bits positions. Since
// XOR sharing is bitwise, the result shares all-ones or zero.
func broadcastBit(x []BinaryShare, n, bits int) []BinaryShare {
	m := mask(bits)
	result := make([]BinaryShare, len(x))
	for i := range x {
		var s BinaryShare
		s.A = new(big.Int)
		if x[i].A.Bit(n) != 0 {
			s.A.Set(m)
		}
		s.B = new(big.Int)
		if x[i].B.Bit(n) != 0 {
			s.B.Set(m)
		}
		result[i] = s
	}
	return result
}

func encodeBits(vals []*big.Int, bits int) []byte {
	n := (bits + 7) / 8
	buf := make([]byte, len(vals)*n)
	for i, v := range vals {
		v.FillBytes(buf[i*n : (i+1)*n])
	}
	return buf
}

func decodeBits(data []byte, count, bits int) ([]*big.Int, error) {
	n := (bits + 7) / 8
	if len(data) != count*n {
		return nil, faultf("invalid bit vector length %d", len(data))
	}
	result := make([]*big.Int, count)
	for i := 0; i < count; i++ {
		v := new(big.Int).SetBytes(data[i*n : (i+1)*n])
		if v.BitLen() > bits {
			return nil, faultf("bit vector %d wider than %d bits", i, bits)
		}
		result[i] = v
	}
	return result, nil
}

// AndMany computes the bitwise AND of the bits-wide binary share
// vectors in one round.
func (e *Engine) AndMany(ctx context.Context, x, y []BinaryShare, bits int) (
	[]BinaryShare, error) {

	if len(x) != len(y) {
		return nil, errors.Newf("and: vector length mismatch: %d&%d",
			len(x), len(y))
	}
	if len(x) == 0 {
		return nil, nil
	}
	nonce := e.Reserve(1)
	z := make([]*big.Int, len(x))
	for i := range x {
		v := new(big.Int).And(x[i].A, y[i].A)
		v.Xor(v, new(big.Int).And(x[i].A, y[i].B))
		v.Xor(v, new(big.Int).And(x[i].B, y[i].A))

		own, prev := e.prf.bitsPair(Tag{Nonce: nonce, Index: uint32(i)}, bits)
		v.Xor(v, own)
		v.Xor(v, prev)
		z[i] = v
	}
	data, err := e.exchange(ctx, encodeBits(z, bits), nil,
		len(z)*((bits+7)/8), -1)
	if err != nil {
		return nil, err
	}
	prev, err := decodeBits(data[linkPrev], len(z), bits)
	if err != nil {
		return nil, err
	}
	result := make([]BinaryShare, len(z))
	for i := range result {
		result[i] = BinaryShare{
			A: z[i],
			B: prev[i],
		}
	}
	e.stats.Ands += uint64(len(z))
	return result, nil
}

// OpenBinaryMany reveals the values of the bits-wide binary shares to
// all parties.
func (e *Engine) OpenBinaryMany(ctx context.Context, s []BinaryShare,
	bits int) ([]*big.Int, error) {

	if len(s) == 0 {
		return nil, nil
	}
	as := make([]*big.Int, len(s))
	bs := make([]*big.Int, len(s))
	for i := range s {
		as[i] = s[i].A
		bs[i] = s[i].B
	}
	n := len(s) * ((bits + 7) / 8)
	data, err := e.exchange(ctx, encodeBits(bs, bits), encodeBits(as, bits),
		n, n)
	if err != nil {
		return nil, err
	}
	fromPrev, err := decodeBits(data[linkPrev], len(s), bits)
	if err != nil {
		return nil, err
	}
	fromNext, err := decodeBits(data[linkNext], len(s), bits)
	if err != nil {
		return nil, err
	}
	result := make([]*big.Int, len(s))
	for i := range s {
		if fromPrev[i].Cmp(fromNext[i]) != 0 {
			return nil, faultf("open: bit vector %d: %v and %v disagree",
				i, e.id.Prev(), e.id.Next())
		}
		v := new(big.Int).Xor(s[i].A, s[i].B)
		result[i] = v.Xor(v, fromPrev[i])
	}
	e.stats.Opens += uint64(len(s))
	return result, nil
}
