//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package field

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/markkurossi/covm/env"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"bn254", "BN128", "bls12-381", "bls12381"} {
		f, err := ByName(name)
		require.NoError(t, err, name)
		require.Equal(t, 32, f.ByteLen(), name)
	}
	_, err := ByName("goldilocks")
	require.Error(t, err)
}

func TestArithmeticMatchesGnark(t *testing.T) {
	f := BN254
	rand := env.SeededRand([]byte("field"))

	for i := 0; i < 64; i++ {
		a, err := f.Random(rand)
		require.NoError(t, err)
		b, err := f.Random(rand)
		require.NoError(t, err)

		var ga, gb, gr bn254.Element
		ga.SetBigInt(f.Big(a))
		gb.SetBigInt(f.Big(b))

		gr.Mul(&ga, &gb)
		requireBig(t, gr.BigInt(new(big.Int)), f.Big(f.Mul(a, b)))

		gr.Add(&ga, &gb)
		requireBig(t, gr.BigInt(new(big.Int)), f.Big(f.Add(a, b)))

		gr.Sub(&ga, &gb)
		requireBig(t, gr.BigInt(new(big.Int)), f.Big(f.Sub(a, b)))

		inv, err := f.Inverse(a)
		require.NoError(t, err)
		gr.Inverse(&ga)
		requireBig(t, gr.BigInt(new(big.Int)), f.Big(inv))
	}
}

func TestInverseOfZero(t *testing.T) {
	_, err := BLS12381.Inverse(BLS12381.Zero())
	require.Error(t, err)

	_, err = BLS12381.Div(BLS12381.One(), Element{})
	require.Error(t, err)
}

func TestZeroValue(t *testing.T) {
	f := BN254
	var z Element
	require.True(t, f.IsZero(z))
	require.True(t, f.Equal(z, f.Zero()))
	require.True(t, f.Equal(f.Add(z, f.One()), f.One()))
}

func TestEncoding(t *testing.T) {
	f := BN254
	rand := env.SeededRand([]byte("encoding"))

	for i := 0; i < 16; i++ {
		a, err := f.Random(rand)
		require.NoError(t, err)
		data := f.Bytes(a)
		require.Len(t, data, f.ByteLen())

		b, err := f.FromBytes(data)
		require.NoError(t, err)
		require.True(t, f.Equal(a, b))
	}

	// Wrong length.
	_, err := f.FromBytes(make([]byte, f.ByteLen()-1))
	require.True(t, errors.Is(err, ErrInvalidElement))

	// Unreduced value.
	_, err = f.FromBytes(f.Modulus().FillBytes(make([]byte, f.ByteLen())))
	require.True(t, errors.Is(err, ErrInvalidElement))

	all := bytes.Repeat([]byte{0xff}, f.ByteLen())
	_, err = f.FromBytes(all)
	require.True(t, errors.Is(err, ErrInvalidElement))
}

func TestSetString(t *testing.T) {
	f := BN254

	tests := []struct {
		in  string
		out *big.Int
	}{
		{"0", big.NewInt(0)},
		{"42", big.NewInt(42)},
		{"0x2a", big.NewInt(42)},
		{"-1", new(big.Int).Sub(f.Modulus(), big.NewInt(1))},
		{"-0x10", new(big.Int).Sub(f.Modulus(), big.NewInt(16))},
	}
	for _, test := range tests {
		e, err := f.SetString(test.in)
		require.NoError(t, err, test.in)
		requireBig(t, test.out, f.Big(e), test.in)
	}

	for _, in := range []string{"", "-", "0x", "12a", "abc"} {
		_, err := f.SetString(in)
		require.True(t, errors.Is(err, ErrInvalidElement), in)
	}
}

func TestSigned(t *testing.T) {
	f := BLS12381

	requireBig(t, big.NewInt(-1), f.Signed(f.FromInt64(-1)))
	requireBig(t, big.NewInt(7), f.Signed(f.NewElement(7)))
	requireBig(t, f.Half(), f.Signed(f.FromBig(f.Half())))

	above := new(big.Int).Add(f.Half(), big.NewInt(1))
	require.Equal(t, -1, f.Signed(f.FromBig(above)).Sign())
}

func TestExp(t *testing.T) {
	f := BN254
	a := f.NewElement(3)
	requireBig(t, big.NewInt(81), f.Big(f.Exp(a, big.NewInt(4))))
	require.True(t, f.Equal(f.One(), f.Exp(a, big.NewInt(0))))

	// Fermat: a^(p-1) = 1
	pm1 := new(big.Int).Sub(f.Modulus(), big.NewInt(1))
	require.True(t, f.Equal(f.One(), f.Exp(a, pm1)))
}

func requireBig(t *testing.T, expected, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.Zero(t, expected.Cmp(got), msgAndArgs...)
}
