//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package rep3 implements the three-party replicated secret sharing
// protocol engine. A secret x is split into components x0+x1+x2 and
// party i holds the pair (x_i, x_{i-1}). Arithmetic shares use field
// addition and binary shares use XOR over fixed width bit vectors.
package rep3

import (
	"io"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/text/superscript"
)

// NumParties is the number of parties in the protocol.
const NumParties = 3

// PartyID identifies a party.
type PartyID int

// Next returns the next party in the ring.
func (id PartyID) Next() PartyID {
	return (id + 1) % NumParties
}

// Prev returns the previous party in the ring.
func (id PartyID) Prev() PartyID {
	return (id + NumParties - 1) % NumParties
}

// Valid tests if the ID is a valid party ID.
func (id PartyID) Valid() bool {
	return id >= 0 && id < NumParties
}

func (id PartyID) String() string {
	return "P" + superscript.Itoa(int(id))
}

// Share is one party's arithmetic share: A is the party's own
// component and B is the component of the previous party.
type Share struct {
	A field.Element
	B field.Element
}

// Split splits x into three replicated shares. The first two
// components are random masks and the third is x minus the masks. The
// result is indexed by party ID.
func Split(f *field.Field, x field.Element, rand io.Reader) ([3]Share, error) {
	var result [3]Share

	x0, err := f.Random(rand)
	if err != nil {
		return result, err
	}
	x1, err := f.Random(rand)
	if err != nil {
		return result, err
	}
	x2 := f.Sub(f.Sub(x, x0), x1)

	c := [3]field.Element{x0, x1, x2}
	for i := 0; i < NumParties; i++ {
		result[i] = Share{
			A: c[i],
			B: c[PartyID(i).Prev()],
		}
	}
	return result, nil
}

// Reconstruct reconstructs the value from all parties' shares. It
// verifies that the replicated components agree and fails with an
// error marked as ErrProtocolFault if they don't.
func Reconstruct(f *field.Field, shares [3]Share) (field.Element, error) {
	sum := f.Zero()
	for i := 0; i < NumParties; i++ {
		prev := PartyID(i).Prev()
		if !f.Equal(shares[i].B, shares[prev].A) {
			return field.Element{}, errors.Mark(
				errors.Newf("share of %v inconsistent with %v", PartyID(i), prev),
				ErrProtocolFault)
		}
		sum = f.Add(sum, shares[i].A)
	}
	return sum, nil
}

// Promote returns party id's share of the trivial sharing of the
// public value x: (x, 0) for party 0, (0, x) for party 1, and (0, 0)
// for party 2.
func Promote(f *field.Field, id PartyID, x field.Element) Share {
	switch id {
	case 0:
		return Share{A: x, B: f.Zero()}
	case 1:
		return Share{A: f.Zero(), B: x}
	default:
		return Share{A: f.Zero(), B: f.Zero()}
	}
}

// BinaryShare is one party's XOR share of a bit vector. A is the
// party's own component and B the component of the previous party.
type BinaryShare struct {
	A *big.Int
	B *big.Int
}

func mask(bits int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return m.Sub(m, big.NewInt(1))
}

func randomBits(rand io.Reader, bits int) (*big.Int, error) {
	buf := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return nil, errors.Wrap(err, "sampling bits")
	}
	v := new(big.Int).SetBytes(buf)
	return v.And(v, mask(bits)), nil
}

// SplitBinary splits the bits-wide value x into three replicated XOR
// shares.
func SplitBinary(x *big.Int, bits int, rand io.Reader) ([3]BinaryShare, error) {
	var result [3]BinaryShare
	if x.Sign() < 0 || x.BitLen() > bits {
		return result, errors.Newf("value does not fit in %d bits", bits)
	}
	x0, err := randomBits(rand, bits)
	if err != nil {
		return result, err
	}
	x1, err := randomBits(rand, bits)
	if err != nil {
		return result, err
	}
	x2 := new(big.Int).Xor(x, x0)
	x2.Xor(x2, x1)

	c := [3]*big.Int{x0, x1, x2}
	for i := 0; i < NumParties; i++ {
		result[i] = BinaryShare{
			A: c[i],
			B: c[PartyID(i).Prev()],
		}
	}
	return result, nil
}

// ReconstructBinary reconstructs the value from all parties' binary
// shares.
func ReconstructBinary(shares [3]BinaryShare) (*big.Int, error) {
	result := new(big.Int)
	for i := 0; i < NumParties; i++ {
		prev := PartyID(i).Prev()
		if shares[i].B.Cmp(shares[prev].A) != 0 {
			return nil, errors.Mark(
				errors.Newf("binary share of %v inconsistent with %v",
					PartyID(i), prev),
				ErrProtocolFault)
		}
		result.Xor(result, shares[i].A)
	}
	return result, nil
}

// PromoteBinary returns party id's share of the trivial XOR sharing of
// the public value x.
func PromoteBinary(id PartyID, x *big.Int) BinaryShare {
	switch id {
	case 0:
		return BinaryShare{A: new(big.Int).Set(x), B: new(big.Int)}
	case 1:
		return BinaryShare{A: new(big.Int), B: new(big.Int).Set(x)}
	default:
		return BinaryShare{A: new(big.Int), B: new(big.Int)}
	}
}
