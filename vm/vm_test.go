//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package vm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/input"
	"github.com/markkurossi/covm/program"
	"github.com/markkurossi/covm/rep3"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *program.Program {
	t.Helper()
	prog, err := program.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return prog
}

func values(f *field.Field, v ...int64) []field.Element {
	result := make([]field.Element, len(v))
	for i, val := range v {
		result[i] = f.FromInt64(val)
	}
	return result
}

func requireValues(t *testing.T, f *field.Field, expected,
	got []field.Element) {

	t.Helper()
	require.Len(t, got, len(expected))
	for i := range expected {
		require.True(t, f.Equal(expected[i], got[i]),
			"signal %d: expected %s, got %s", i,
			f.Format(expected[i]), f.Format(got[i]))
	}
}

type result struct {
	witness  [rep3.NumParties]*input.Witness
	machines [rep3.NumParties]*Machine
	stats    [rep3.NumParties]rep3.Stats
	errs     [rep3.NumParties]error
}

func configs(name string, unbatched bool) [rep3.NumParties]*env.Config {
	var cfgs [rep3.NumParties]*env.Config
	for i := range cfgs {
		cfgs[i] = &env.Config{
			Rand:         env.SeededRand([]byte(fmt.Sprintf("%s-%d", name, i))),
			RoundTimeout: 10 * time.Second,
			Unbatched:    unbatched,
		}
	}
	return cfgs
}

// runParts runs the program on the three parties with their shared
// inputs.
func runParts(name string, prog *program.Program,
	parts [rep3.NumParties]*input.Shared, unbatched bool) *result {

	r := new(result)
	rep3.RunLocal(context.Background(), prog.Field(), configs(name, unbatched),
		func(ctx context.Context, e *rep3.Engine) error {
			id := e.ID()
			m, err := New(prog, accel.New(e))
			if err != nil {
				r.errs[id] = err
				return err
			}
			r.machines[id] = m
			r.witness[id], r.errs[id] = m.Run(ctx, parts[id])
			r.stats[id] = e.Stats()
			return r.errs[id]
		})
	return r
}

// runShared splits the plaintext inputs and runs the program.
func runShared(t *testing.T, prog *program.Program,
	in map[string][]field.Element, public map[string]bool,
	unbatched bool) *result {

	t.Helper()
	parts, err := input.Split(prog.Field(), in, public,
		env.SeededRand([]byte(t.Name()+"-input")))
	require.NoError(t, err)
	return runParts(t.Name(), prog, parts, unbatched)
}

func (r *result) requireWitness(t *testing.T, f *field.Field,
	expected []field.Element) {

	t.Helper()
	for i, err := range r.errs {
		require.NoError(t, err, "party %d", i)
	}
	got, err := input.ReconstructWitness(f, r.witness)
	require.NoError(t, err)
	requireValues(t, f, expected, got)
	for _, w := range r.witness {
		for i, v := range w.Public {
			require.True(t, f.Equal(expected[i], v), "public %d", i)
		}
	}
}

func (r *result) requireError(t *testing.T, target error) {
	t.Helper()
	for i, err := range r.errs {
		require.Error(t, err, "party %d", i)
		require.True(t, errors.Is(err, target), "party %d: %v", i, err)
	}
}

// requireEquivalent runs the program in plaintext and over shares and
// checks that the witnesses are equal.
func requireEquivalent(t *testing.T, prog *program.Program,
	in map[string][]field.Element, public map[string]bool) *result {

	t.Helper()
	expected, err := RunPlain(prog, in)
	require.NoError(t, err)
	r := runShared(t, prog, in, public, false)
	r.requireWitness(t, prog.Field(), expected)
	return r
}

const sum = `
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

func TestSumOfPrivateInputs(t *testing.T) {
	prog := parse(t, sum)
	f := prog.Field()

	owners := []input.Owner{
		{Name: "a", Party: 0, Size: 1},
		{Name: "b", Party: 1, Size: 1},
		{Name: "c", Party: 2, Size: 1},
	}
	own := [rep3.NumParties]map[string][]field.Element{
		{"a": values(f, 11)},
		{"b": values(f, 22)},
		{"c": values(f, -3)},
	}

	var witness [rep3.NumParties]*input.Witness
	err := rep3.RunLocal(context.Background(), f, configs(t.Name(), false),
		func(ctx context.Context, e *rep3.Engine) error {
			in, err := input.Exchange(ctx, e, owners, own[e.ID()])
			if err != nil {
				return err
			}
			witness[e.ID()], err = Run(ctx, accel.New(e), prog, in)
			return err
		})
	require.NoError(t, err)

	got, err := input.ReconstructWitness(f, witness)
	require.NoError(t, err)
	requireValues(t, f, values(f, 1, 30, 11, 22, -3), got)
	for _, w := range witness {
		require.Len(t, w.Public, 2)
		require.True(t, f.Equal(f.NewElement(30), w.Public[1]))
	}
}

const check = `
main Check
template Check
    input a
    input b
    output out
    loadsig a
    loadsig b
    eq
    assert a must equal b
    loadsig a
    storesig out
end
`

func TestAssertion(t *testing.T) {
	prog := parse(t, check)
	f := prog.Field()

	r := runShared(t, prog, map[string][]field.Element{
		"a": values(f, 5),
		"b": values(f, 6),
	}, nil, false)
	r.requireError(t, ErrAssertionFailed)
	for _, err := range r.errs {
		require.Contains(t, err.Error(), "a must equal b")
	}

	r = runShared(t, prog, map[string][]field.Element{
		"a": values(f, 5),
		"b": values(f, 5),
	}, nil, false)
	r.requireWitness(t, f, values(f, 1, 5, 5, 5))

	_, err := RunPlain(prog, map[string][]field.Element{
		"a": values(f, 1),
		"b": values(f, 2),
	})
	require.True(t, errors.Is(err, ErrAssertionFailed))
}

const branch = `
main Branch

function absdiff 2 2
    load 0
    load 1
    lt
    if ge done
    load 1
    load 0
    sub
    return
ge:
    load 0
    load 1
    sub
    return
done:
end

template Branch
    input x
    input y
    output out
    output d
    output acc
    vars 3
    push 0
    store 0
    push 1
    store 1
    loadsig x
    loadsig y
    lt
    if else fi
    loadsig x
    loadsig y
    mul
    store 0
    push 2
    store 1
    loadsig x
    loadsig y
    lt
    assert x less than y
    loadsig x
    push 0
    eq
    if nz nzend
    push 100
    store 0
nz:
nzend:
else:
    loadsig y
    loadsig x
    sub
    store 0
fi:
    load 0
    load 1
    add
    storesig out
    loadsig x
    loadsig y
    call absdiff
    storesig d
    push 0
    store 2
    push 0
    store 0
loop:
    load 2
    push 3
    lt
    jumpz loopdone
    load 0
    load 2
    loadsig x
    mul
    add
    store 0
    load 2
    push 1
    add
    store 2
    jump loop
loopdone:
    load 0
    storesig acc
end
`

var branchInputs = [][2]int64{
	{3, 10},
	{10, 3},
	{0, 5},
	{-4, 2},
	{5, 5},
}

func TestBranchEquivalence(t *testing.T) {
	prog := parse(t, branch)
	f := prog.Field()

	for _, xy := range branchInputs {
		t.Run(fmt.Sprintf("%d,%d", xy[0], xy[1]), func(t *testing.T) {
			r := requireEquivalent(t, prog, map[string][]field.Element{
				"x": values(f, xy[0]),
				"y": values(f, xy[1]),
			}, nil)
			stats := r.machines[0].Stats()
			require.Equal(t, uint64(3), stats.Branches)
			require.Equal(t, uint64(1), stats.Calls)
		})
	}

	expected, err := RunPlain(prog, map[string][]field.Element{
		"x": values(f, 0),
		"y": values(f, 5),
	})
	require.NoError(t, err)
	// out, d, acc, x, y
	requireValues(t, f, values(f, 1, 102, 5, 0, 0, 5), expected)
}

func TestBatchingTransparency(t *testing.T) {
	prog := parse(t, branch)
	f := prog.Field()
	in := map[string][]field.Element{
		"x": values(f, -4),
		"y": values(f, 2),
	}
	parts, err := input.Split(f, in, nil, env.SeededRand([]byte("inputs")))
	require.NoError(t, err)

	batched := runParts(t.Name(), prog, parts, false)
	unbatched := runParts(t.Name(), prog, parts, true)

	for i := 0; i < rep3.NumParties; i++ {
		require.NoError(t, batched.errs[i])
		require.NoError(t, unbatched.errs[i])

		w1 := batched.witness[i]
		w2 := unbatched.witness[i]
		require.Len(t, w2.Shares, len(w1.Shares))
		for j := range w1.Shares {
			require.True(t, f.Equal(w1.Shares[j].A, w2.Shares[j].A),
				"party %d signal %d", i, j)
			require.True(t, f.Equal(w1.Shares[j].B, w2.Shares[j].B),
				"party %d signal %d", i, j)
		}
		require.Less(t, batched.stats[i].Rounds, unbatched.stats[i].Rounds)
	}
}

type opcase struct {
	a, b, op string
}

var opcases = []opcase{
	{"x", "y", "add"},
	{"x", "y", "sub"},
	{"x", "y", "mul"},
	{"x", "y", "div"},
	{"x", "y", "intdiv"},
	{"x", "y", "mod"},
	{"x", "y", "lt"},
	{"x", "y", "le"},
	{"x", "y", "gt"},
	{"x", "y", "ge"},
	{"x", "y", "eq"},
	{"x", "x", "eq"},
	{"x", "y", "neq"},
	{"x", "y", "and"},
	{"x", "0", "and"},
	{"x", "y", "or"},
	{"0", "y", "or"},
	{"x", "y", "band"},
	{"x", "y", "bor"},
	{"x", "y", "bxor"},
	{"x", "3", "shl"},
	{"x", "2", "shr"},
	{"x", "-1", "shl"},
	{"x", "3", "pow"},
	{"x", "0", "pow"},
	{"3", "y", "pow"},
	{"y", "5", "sub"},
	{"x", "", "neg"},
	{"x", "", "not"},
	{"x", "", "bnot"},
}

func opsProgram() string {
	operand := func(s string) string {
		if s == "x" || s == "y" {
			return "loadsig " + s
		}
		return "push " + s
	}

	var b strings.Builder
	fmt.Fprintf(&b, "main Ops\ntemplate Ops\n    input x\n    input y\n")
	fmt.Fprintf(&b, "    output o[%d]\n", len(opcases))
	for i, c := range opcases {
		fmt.Fprintf(&b, "    push %d\n    %s\n", i, operand(c.a))
		if len(c.b) > 0 {
			fmt.Fprintf(&b, "    %s\n", operand(c.b))
		}
		fmt.Fprintf(&b, "    %s\n    storesig o[]\n", c.op)
	}
	fmt.Fprintf(&b, "end\n")
	return b.String()
}

func TestOperators(t *testing.T) {
	prog := parse(t, opsProgram())
	f := prog.Field()

	publics := []map[string]bool{
		nil,
		{"x": true},
		{"y": true},
	}
	for _, xy := range [][2]int64{{13, 5}, {-7, 3}} {
		for _, public := range publics {
			name := fmt.Sprintf("%d,%d,%v", xy[0], xy[1], public)
			t.Run(name, func(t *testing.T) {
				requireEquivalent(t, prog, map[string][]field.Element{
					"x": values(f, xy[0]),
					"y": values(f, xy[1]),
				}, public)
			})
		}
	}
}

const multiplier = `
prime bn254
main Main

function square 1 1
    load 0
    load 0
    mul
    return
end

template Mul
    input a
    input b
    output c
    loadsig a
    loadsig b
    mul
    storesig c
end

template Main
    input x public
    input y[2]
    output out
    signal tmp
    component m Mul[2]
    vars 1
    push 0
    store 0
loop:
    load 0
    push 2
    lt
    jumpz done
    load 0
    create m[]
    load 0
    load 0
    loadsig y[]
    storecmp m[].a
    load 0
    loadsig x
    storecmp m[].b
    load 0
    push 1
    add
    store 0
    jump loop
done:
    push 0
    loadcmp m[].c
    push 1
    loadcmp m[].c
    add
    storesig tmp
    loadsig tmp
    call square
    storesig out
    loadsig x
    push 0
    eq
    if notzero fi
    log x is zero
notzero:
    loadsig out
    push 0
    neq
    assert out must not be zero
fi:
end
`

func TestComponents(t *testing.T) {
	prog := parse(t, multiplier)
	f := prog.Field()
	public := map[string]bool{"x": true}

	r := requireEquivalent(t, prog, map[string][]field.Element{
		"x": values(f, 3),
		"y": values(f, 2, 5),
	}, public)
	require.Equal(t, 3, r.machines[0].Stats().Components)

	w := r.witness[1]
	require.Len(t, w.Public, 3)
	require.True(t, f.Equal(f.NewElement(441), w.Public[1]))
	require.True(t, f.Equal(f.NewElement(3), w.Public[2]))

	requireEquivalent(t, prog, map[string][]field.Element{
		"x": values(f, 0),
		"y": values(f, 2, 5),
	}, public)

	// The public input can't be shared.
	parts, err := input.Split(f, map[string][]field.Element{
		"x": values(f, 3),
		"y": values(f, 2, 5),
	}, nil, env.SeededRand(nil))
	require.NoError(t, err)
	r = runParts(t.Name(), prog, parts, false)
	for _, err := range r.errs {
		require.Error(t, err)
	}
}

const lazy = `
main Lazy

template Const
    output c
    push 7
    storesig c
end

template Add
    input a
    input b
    output c
    loadsig a
    loadsig b
    add
    storesig c
end

template Lazy
    input x
    output out
    component k Const
    component s Add[2]
    create k
    push 0
    create s[]
    push 1
    create s[]
    push 0
    loadsig x
    storecmp s[].a
    push 0
    loadcmp k.c
    storecmp s[].b
    push 1
    loadsig x
    storecmp s[].a
    push 0
    loadcmp s[].c
    storesig out
end
`

func TestLazyComponents(t *testing.T) {
	prog := parse(t, lazy)
	f := prog.Field()

	in := map[string][]field.Element{
		"x": values(f, 4),
	}
	expected, err := RunPlain(prog, in)
	require.NoError(t, err)
	requireValues(t, f, values(f, 1, 11, 4, 7, 11, 4, 7, 0, 4, 0), expected)

	r := runShared(t, prog, in, nil, false)
	r.requireWitness(t, f, expected)
	require.Equal(t, 3, r.machines[0].Stats().Components)
}

func TestRuntimeErrors(t *testing.T) {
	tests := map[string]string{
		"uncomputed component": `main M
template C
    input a
    output b
    loadsig a
    storesig b
end
template M
    input x
    output y
    component c C
    create c
    loadcmp c.b
    storesig y
end`,
		"assigned twice": `main M
template M
    input x
    output y
    loadsig x
    storesig y
    loadsig x
    storesig y
end`,
		"read before assignment": `main M
template M
    input x
    output y
    signal z
    loadsig z
    storesig y
end`,
		"index out of range": `main M
template M
    input x[2]
    output y
    push 2
    loadsig x[]
    storesig y
end`,
		"jump out of block": `main M
template M
    input x
    output y
    loadsig x
    if e f
    jump out
e:
f:
out:
end`,
		"division by zero": `main M
template M
    input x
    output y
    loadsig x
    push 0
    intdiv
    storesig y
end`,
		"stack underflow": `main M
template M
    input x
    output y
    add
end`,
		"created twice": `main M
template C
    output a
    push 1
    storesig a
end
template M
    input x
    output y
    component c C
    create c
    create c
end`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			prog := parse(t, src)
			f := prog.Field()
			_, err := RunPlain(prog, map[string][]field.Element{
				"x": values(f, 1, 1)[:prog.MainTemplate().NumInputs()],
			})
			require.Error(t, err)
		})
	}

	prog := parse(t, sum)
	f := prog.Field()
	_, err := RunPlain(prog, map[string][]field.Element{
		"a": values(f, 1),
		"b": values(f, 2),
	})
	require.Error(t, err)

	_, err = RunPlain(prog, map[string][]field.Element{
		"a": values(f, 1),
		"b": values(f, 2),
		"c": values(f, 3),
		"d": values(f, 4),
	})
	require.Error(t, err)
}

func TestUnsupported(t *testing.T) {
	tests := map[string]string{
		"secret shift": `main M
template M
    input x
    input y
    output z
    loadsig x
    loadsig y
    shl
    storesig z
end`,
		"secret loop": `main M
template M
    input x
    input y
    output z
    loadsig x
    jumpz done
done:
    loadsig y
    storesig z
end`,
		"secret index": `main M
template M
    input x
    input y[2]
    output z
    loadsig x
    loadsig y[]
    storesig z
end`,
		"signal in shared branch": `main M
template M
    input x
    input y
    output z
    loadsig x
    loadsig y
    lt
    if e f
    loadsig x
    storesig z
e:
f:
end`,
		"return in one arm": `main M
function f 1 1
    load 0
    push 0
    lt
    if a b
    push 1
    return
a:
b:
    push 2
    return
end
template M
    input x
    input y
    output z
    loadsig x
    call f
    storesig z
end`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			prog := parse(t, src)
			f := prog.Field()
			in := map[string][]field.Element{
				"x": values(f, 1),
				"y": values(f, 0, 1)[:prog.MainTemplate().NumInputs()-1],
			}
			_, err := RunPlain(prog, in)
			if name != "secret loop" && name != "secret index" {
				require.NoError(t, err)
			}
			runShared(t, prog, in, nil, false).requireError(t, ErrUnsupported)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	f := field.BN254
	for _, op := range []string{"div", "intdiv", "mod"} {
		t.Run(op, func(t *testing.T) {
			prog := parse(t, fmt.Sprintf(`main M
template M
    input x
    input y
    output z
    loadsig x
    loadsig y
    %s
    storesig z
end`, op))
			in := map[string][]field.Element{
				"x": values(f, 7),
				"y": values(f, 0),
			}
			runShared(t, prog, in, nil, false).
				requireError(t, rep3.ErrDivisionByZero)
			runShared(t, prog, in, map[string]bool{"y": true}, false).
				requireError(t, rep3.ErrDivisionByZero)
		})
	}
}

const isZero = `
main IsZero
template IsZero
    input in
    output out
    signal inv
    loadsig in
    push 0
    neq
    if zero done
    push 1
    loadsig in
    div
zero:
    push 0
done:
    storesig inv
    push 0
    loadsig in
    sub
    loadsig inv
    mul
    push 1
    add
    storesig out
    loadsig in
    loadsig out
    mul
    push 0
    eq
    assert in*out == 0
end
`

func TestIsZeroTemplate(t *testing.T) {
	prog := parse(t, isZero)
	f := prog.Field()

	for _, in := range []int64{0, 5, -1} {
		t.Run(fmt.Sprintf("%d", in), func(t *testing.T) {
			r := requireEquivalent(t, prog, map[string][]field.Element{
				"in": values(f, in),
			}, nil)
			require.Equal(t, uint64(1), r.machines[0].Stats().Branches)
		})
	}

	expected, err := RunPlain(prog, map[string][]field.Element{
		"in": values(f, 0),
	})
	require.NoError(t, err)
	// out, in, inv
	requireValues(t, f, values(f, 1, 1, 0, 0), expected)
}

// The divisions run only when c is non-zero.
const guardedDivision = `
main M
template M
    input c
    input x
    input y
    output z
    loadsig c
    if skip done
    loadsig x
    loadsig y
    %s
skip:
    push 0
done:
    storesig z
end
`

func TestGuardedDivision(t *testing.T) {
	f := field.BN254

	for _, op := range []string{"div", "intdiv", "mod"} {
		prog := parse(t, fmt.Sprintf(guardedDivision, op))

		t.Run(op, func(t *testing.T) {
			for _, public := range []map[string]bool{
				nil,
				{"y": true},
				{"x": true, "y": true},
			} {
				// Untaken arm with a zero divisor.
				requireEquivalent(t, prog, map[string][]field.Element{
					"c": values(f, 0),
					"x": values(f, 7),
					"y": values(f, 0),
				}, public)

				// Taken arm with a non-zero divisor.
				requireEquivalent(t, prog, map[string][]field.Element{
					"c": values(f, 1),
					"x": values(f, 7),
					"y": values(f, 2),
				}, public)

				// Taken arm with a zero divisor.
				in := map[string][]field.Element{
					"c": values(f, 3),
					"x": values(f, 7),
					"y": values(f, 0),
				}
				_, err := RunPlain(prog, in)
				require.True(t, errors.Is(err, rep3.ErrDivisionByZero))
				runShared(t, prog, in, public, false).
					requireError(t, rep3.ErrDivisionByZero)
			}
		})
	}
}

func TestReport(t *testing.T) {
	prog := parse(t, branch)
	f := prog.Field()
	r := runShared(t, prog, map[string][]field.Element{
		"x": values(f, 1),
		"y": values(f, 2),
	}, nil, false)
	require.NoError(t, r.errs[0])

	m := r.machines[0]
	var buf bytes.Buffer
	m.Timing().Print(&buf, r.stats[0])
	require.Contains(t, buf.String(), "Execute")
	require.Contains(t, buf.String(), "Total")

	buf.Reset()
	m.PrintStats(&buf)
	require.Contains(t, buf.String(), "loadsig")

	require.Equal(t, "999B", FileSize(999).String())
	require.Equal(t, "1MB", FileSize(1500000).String())
}
