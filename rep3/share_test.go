//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/field"
	"github.com/stretchr/testify/require"
)

func TestPartyID(t *testing.T) {
	for i := 0; i < NumParties; i++ {
		id := PartyID(i)
		require.True(t, id.Valid())
		require.Equal(t, id, id.Next().Prev())
		require.Equal(t, id, id.Next().Next().Next())
	}
	require.False(t, PartyID(3).Valid())
	require.False(t, PartyID(-1).Valid())
	require.NotEqual(t, PartyID(0).String(), PartyID(1).String())
}

func TestSplitReconstruct(t *testing.T) {
	f := field.BN254
	rand := env.SeededRand([]byte("split"))

	values := []field.Element{
		f.Zero(),
		f.One(),
		f.Neg(f.One()),
		f.FromBig(f.Half()),
	}
	for i := 0; i < 16; i++ {
		v, err := f.Random(rand)
		require.NoError(t, err)
		values = append(values, v)
	}
	for _, v := range values {
		shares, err := Split(f, v, rand)
		require.NoError(t, err)
		got, err := Reconstruct(f, shares)
		require.NoError(t, err)
		require.True(t, f.Equal(v, got), "%v != %v", v, got)
	}
}

func TestReconstructInconsistent(t *testing.T) {
	f := field.BN254
	shares, err := Split(f, f.NewElement(42), env.SeededRand([]byte("bad")))
	require.NoError(t, err)

	shares[1].B = f.Add(shares[1].B, f.One())
	_, err = Reconstruct(f, shares)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProtocolFault))
}

func TestPromote(t *testing.T) {
	f := field.BN254
	x := f.NewElement(7)

	var shares [3]Share
	for i := 0; i < NumParties; i++ {
		shares[i] = Promote(f, PartyID(i), x)
	}
	got, err := Reconstruct(f, shares)
	require.NoError(t, err)
	require.True(t, f.Equal(x, got))
}

func TestSplitBinary(t *testing.T) {
	rand := env.SeededRand([]byte("binary"))

	for _, v := range []int64{0, 1, 0x5a5a, 0xffff} {
		x := big.NewInt(v)
		shares, err := SplitBinary(x, 16, rand)
		require.NoError(t, err)
		got, err := ReconstructBinary(shares)
		require.NoError(t, err)
		require.Zero(t, x.Cmp(got), "%v != %v", x, got)
	}
	_, err := SplitBinary(big.NewInt(0x10000), 16, rand)
	require.Error(t, err)

	var shares [3]BinaryShare
	for i := 0; i < NumParties; i++ {
		shares[i] = PromoteBinary(PartyID(i), big.NewInt(0x1234))
	}
	got, err := ReconstructBinary(shares)
	require.NoError(t, err)
	require.Equal(t, int64(0x1234), got.Int64())
}
