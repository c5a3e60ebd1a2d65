//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/input"
	"github.com/markkurossi/covm/rep3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const sumProgram = `
main Sum
template Sum
    input a
    input b
    input c
    output out
    loadsig a
    loadsig b
    add
    loadsig c
    add
    storesig out
end
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, []byte(data), 0644))
	return file
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	require.Nil(t, splitList(""))
	require.Equal(t, "x/in.2.cbor", partyFile("x/in", 2))
}

func TestCommands(t *testing.T) {
	log = zerolog.Nop()
	dir := t.TempDir()
	f := field.BN254

	prog := writeFile(t, dir, "sum.casm", sumProgram)
	require.NoError(t, cmdCompile([]string{prog}))
	compiled := filepath.Join(dir, "sum.cbor")

	// Each input owner splits its own inputs.
	in1 := writeFile(t, dir, "in1.json", `{"a": 11}`)
	in2 := writeFile(t, dir, "in2.json", `{"b": 22, "c": "-3"}`)
	require.NoError(t, cmdSplitInput([]string{
		"-o", filepath.Join(dir, "p1"), in1,
	}))
	require.NoError(t, cmdSplitInput([]string{
		"-o", filepath.Join(dir, "p2"), in2,
	}))

	var inputs []string
	for i := 0; i < rep3.NumParties; i++ {
		name := partyFile(filepath.Join(dir, "in"), i)
		require.NoError(t, cmdMergeInput([]string{
			"-o", name,
			partyFile(filepath.Join(dir, "p1"), i),
			partyFile(filepath.Join(dir, "p2"), i),
		}))
		inputs = append(inputs, name)
	}

	for _, file := range []string{prog, compiled} {
		out := filepath.Join(dir, "w")
		args := []string{"-local", "-seed", t.Name(), "-o", out, file}
		require.NoError(t, cmdRun(append(args, inputs...)))

		var parts [rep3.NumParties]*input.Witness
		for i := range parts {
			w, err := input.LoadWitness(partyFile(out, i), f)
			require.NoError(t, err)
			parts[i] = w
		}
		values, err := input.ReconstructWitness(f, parts)
		require.NoError(t, err)
		require.Len(t, values, 5)
		require.True(t, f.Equal(f.FromInt64(30), values[1]))
		require.True(t, f.Equal(f.FromInt64(30), parts[0].Public[1]))
		require.True(t, f.Equal(f.FromInt64(-3), values[4]))
	}

	// Missing input file.
	require.Error(t, cmdRun([]string{"-local", prog, inputs[0]}))
}

func TestWitnessCommands(t *testing.T) {
	log = zerolog.Nop()
	dir := t.TempDir()
	f := field.BN254

	file := writeFile(t, dir, "w.json", `[1, 30, 11, 22, -3]`)
	out := filepath.Join(dir, "w")
	require.NoError(t, cmdSplitWitness([]string{
		"-public", "2", "-o", out, file,
	}))

	var parts [rep3.NumParties]*input.Witness
	for i := range parts {
		w, err := input.LoadWitness(partyFile(out, i), f)
		require.NoError(t, err)
		require.Len(t, w.Public, 2)
		parts[i] = w
	}
	values, err := input.ReconstructWitness(f, parts)
	require.NoError(t, err)
	for i, v := range []int64{1, 30, 11, 22, -3} {
		require.True(t, f.Equal(f.FromInt64(v), values[i]), "value %d", i)
	}
}
