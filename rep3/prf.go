//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"encoding/binary"
	"math/big"

	"github.com/markkurossi/covm/field"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

const (
	seedSize = 32

	domainField = "github.com/markkurossi/covm rep3 field masks"
	domainBits  = "github.com/markkurossi/covm rep3 binary masks"
)

// Tag identifies the randomness of one secure operation element. The
// nonce is reserved from the engine in program order and the index
// selects the element within a vector operation.
type Tag struct {
	Nonce uint64
	Index uint32
}

// correlated implements the pairwise pseudo-random functions. Party i
// shares its own key k_i with the next party and learns k_{i-1} from
// the previous party.
type correlated struct {
	fieldOwn  [32]byte
	fieldPrev [32]byte
	bitsOwn   [32]byte
	bitsPrev  [32]byte
}

func newCorrelated(own, prev []byte) *correlated {
	c := new(correlated)
	blake3.DeriveKey(domainField, own, c.fieldOwn[:])
	blake3.DeriveKey(domainField, prev, c.fieldPrev[:])
	blake3.DeriveKey(domainBits, own, c.bitsOwn[:])
	blake3.DeriveKey(domainBits, prev, c.bitsPrev[:])
	return c
}

func stream(key *[32]byte, tag Tag, n int) []byte {
	var nonce [chacha20.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[0:], tag.Nonce)
	binary.BigEndian.PutUint32(nonce[8:], tag.Index)

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	buf := make([]byte, n)
	cipher.XORKeyStream(buf, buf)
	return buf
}

// fieldPair returns the PRF outputs F(k_i, tag) and F(k_{i-1}, tag).
func (c *correlated) fieldPair(f *field.Field, tag Tag) (
	own, prev field.Element) {

	own = f.FromUniformBytes(stream(&c.fieldOwn, tag, f.UniformLen()))
	prev = f.FromUniformBytes(stream(&c.fieldPrev, tag, f.UniformLen()))
	return
}

// bitsPair returns the bits-wide PRF outputs G(k_i, tag) and
// G(k_{i-1}, tag).
func (c *correlated) bitsPair(tag Tag, bits int) (own, prev *big.Int) {
	n := (bits + 7) / 8
	m := mask(bits)

	own = new(big.Int).SetBytes(stream(&c.bitsOwn, tag, n))
	own.And(own, m)
	prev = new(big.Int).SetBytes(stream(&c.bitsPrev, tag, n))
	prev.And(prev, m)
	return
}
