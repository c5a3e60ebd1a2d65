//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package input

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/rep3"
	"github.com/stretchr/testify/require"
)

func requireValues(t *testing.T, f *field.Field, expected []int64,
	got []field.Element) {

	t.Helper()
	require.Len(t, got, len(expected))
	for i, v := range expected {
		require.True(t, f.Equal(f.FromInt64(v), got[i]),
			"value %d: expected %d, got %s", i, v, f.Format(got[i]))
	}
}

func TestParseJSON(t *testing.T) {
	f := field.BN254
	in := `{
  "a": 3,
  "b": "-1",
  "c": ["0x10", 2, [3, "4"]],
  "d": 21888242871839275222246405745257275088548364400416034343698204186575808495616,
  "e": true
}`
	values, err := ParseJSON(f, strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, values, 5)

	requireValues(t, f, []int64{3}, values["a"])
	requireValues(t, f, []int64{-1}, values["b"])
	requireValues(t, f, []int64{16, 2, 3, 4}, values["c"])
	requireValues(t, f, []int64{-1}, values["d"])
	requireValues(t, f, []int64{1}, values["e"])

	for _, bad := range []string{
		`{"a": "x"}`,
		`{"a": 1.5}`,
		`{"a": {"b": 1}}`,
		`{"a": null}`,
		`[1, 2]`,
	} {
		_, err := ParseJSON(f, strings.NewReader(bad))
		require.Error(t, err, bad)
	}
	_, err = ParseJSON(f, strings.NewReader(`{"a": "0xq"}`))
	require.True(t, errors.Is(err, field.ErrInvalidElement))

	w, err := ParseWitnessJSON(f, strings.NewReader(`[1, "-2", [3]]`))
	require.NoError(t, err)
	requireValues(t, f, []int64{1, -2, 3}, w)

	_, err = ParseWitnessJSON(f, strings.NewReader(`{"a": 1}`))
	require.Error(t, err)
}

func TestSplitMerge(t *testing.T) {
	f := field.BN254
	rand := env.SeededRand([]byte(t.Name()))

	// Party 0 owns a and the public x, party 1 owns b.
	own0 := map[string][]field.Element{
		"a": {f.NewElement(5), f.NewElement(6)},
		"x": {f.NewElement(7)},
	}
	own1 := map[string][]field.Element{
		"b": {f.FromInt64(-3)},
	}
	parts0, err := Split(f, own0, map[string]bool{"x": true}, rand)
	require.NoError(t, err)
	parts1, err := Split(f, own1, nil, rand)
	require.NoError(t, err)

	var merged [rep3.NumParties]*Shared
	for i := 0; i < rep3.NumParties; i++ {
		merged[i], err = Merge(parts0[i], parts1[i])
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "x"}, merged[i].Names())
		require.Len(t, merged[i].Public, 1)
	}

	values, err := Reconstruct(f, merged)
	require.NoError(t, err)
	requireValues(t, f, []int64{5, 6}, values["a"])
	requireValues(t, f, []int64{-3}, values["b"])
	requireValues(t, f, []int64{7}, values["x"])

	// The same input can't come from two owners.
	_, err = Merge(parts0[0], parts0[1])
	require.Error(t, err)
}

func TestSharedFile(t *testing.T) {
	f := field.BN254
	parts, err := Split(f, map[string][]field.Element{
		"a": {f.NewElement(1), f.NewElement(2)},
		"p": {f.NewElement(3)},
	}, map[string]bool{"p": true}, env.SeededRand([]byte(t.Name())))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, parts[1].Marshal(&buf, f))
	data := buf.Bytes()

	s, err := Unmarshal(bytes.NewReader(data), f)
	require.NoError(t, err)
	require.Equal(t, parts[1].Names(), s.Names())
	for i, share := range parts[1].Shared["a"] {
		require.True(t, f.Equal(share.A, s.Shared["a"][i].A))
		require.True(t, f.Equal(share.B, s.Shared["a"][i].B))
	}
	require.True(t, f.Equal(f.NewElement(3), s.Public["p"][0]))

	_, err = Unmarshal(bytes.NewReader(data), field.BLS12381)
	require.Error(t, err)
}

func TestWitness(t *testing.T) {
	f := field.BN254
	values := []field.Element{
		f.One(), f.NewElement(42), f.NewElement(7), f.FromInt64(-9),
	}
	parts, err := SplitWitness(f, values, 2, env.SeededRand([]byte(t.Name())))
	require.NoError(t, err)
	for _, w := range parts {
		require.Len(t, w.Public, 2)
		require.Len(t, w.Shares, 4)
	}

	for i, w := range parts {
		var buf bytes.Buffer
		require.NoError(t, w.Marshal(&buf, f))
		parts[i], err = UnmarshalWitness(&buf, f)
		require.NoError(t, err)
	}
	result, err := ReconstructWitness(f, parts)
	require.NoError(t, err)
	requireValues(t, f, []int64{1, 42, 7, -9}, result)

	_, err = SplitWitness(f, values, 5, env.SeededRand(nil))
	require.Error(t, err)
}

func TestExchange(t *testing.T) {
	f := field.BN254
	owners := []Owner{
		{Name: "a", Party: 0, Size: 1},
		{Name: "b", Party: 1, Size: 2},
		{Name: "c", Party: 2, Size: 1},
	}
	own := [rep3.NumParties]map[string][]field.Element{
		{"a": {f.NewElement(10)}},
		{"b": {f.NewElement(20), f.NewElement(21)}},
		{"c": {f.NewElement(30)}},
	}

	var cfgs [rep3.NumParties]*env.Config
	for i := range cfgs {
		cfgs[i] = &env.Config{
			Rand:         env.SeededRand([]byte(fmt.Sprintf("%s-%d", t.Name(), i))),
			RoundTimeout: 10 * time.Second,
		}
	}
	var parts [rep3.NumParties]*Shared
	err := rep3.RunLocal(context.Background(), f, cfgs,
		func(ctx context.Context, e *rep3.Engine) error {
			s, err := Exchange(ctx, e, owners, own[e.ID()])
			parts[e.ID()] = s
			return err
		})
	require.NoError(t, err)

	values, err := Reconstruct(f, parts)
	require.NoError(t, err)
	requireValues(t, f, []int64{10}, values["a"])
	requireValues(t, f, []int64{20, 21}, values["b"])
	requireValues(t, f, []int64{30}, values["c"])
}
