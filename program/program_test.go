//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package program

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const multiplier = `
# Multiplies inputs and squares the product.
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

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(multiplier))
	require.NoError(t, err)
	require.True(t, p.Linked())
	require.Equal(t, "bn254", p.Field().Name())

	main := p.MainTemplate()
	require.Equal(t, "Main", main.Name)

	mul := p.Templates[0]
	require.Equal(t, 3, mul.Size())
	require.Equal(t, 2, mul.NumInputs())

	// out, x (public), y[2], tmp, then two Mul blocks.
	offsets := map[string]int{
		"out": 0,
		"x":   1,
		"y":   2,
		"tmp": 4,
	}
	for name, offset := range offsets {
		idx, ok := main.Signal(name)
		require.True(t, ok, name)
		require.Equal(t, offset, main.Signals[idx].Offset, name)
	}
	require.Equal(t, 5, main.Subcomponents[0].Offset)
	require.Equal(t, 11, main.Size())
	require.Equal(t, 12, p.NumSignals())
	require.Equal(t, 3, main.NumInputs())

	// Mul's output is laid out first.
	c, ok := mul.Signal("c")
	require.True(t, ok)
	require.Equal(t, 0, mul.Signals[c].Offset)

	var found bool
	for _, instr := range main.Code {
		if instr.Op == OpStoreCmp {
			require.Equal(t, DynComponent, instr.Dyn)
			found = true
		}
		if instr.Op == OpIf {
			require.Less(t, instr.Arg, instr.Arg2)
		}
		if instr.Op == OpAssert {
			require.Equal(t, "out must not be zero", instr.Msg)
		}
	}
	require.True(t, found)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"undefined label": `main M
template M
    jump nowhere
end`,
		"undefined signal": `main M
template M
    loadsig x
end`,
		"undefined template": `main M
template M
    component c Missing
end`,
		"undefined function": `main M
template M
    call f
end`,
		"recursive template": `main M
template M
    component c M
end`,
		"unknown instruction": `main M
template M
    frobnicate
end`,
		"public output": `main M
template M
    output x public
end`,
		"missing main": `template M
end`,
		"return in template": `main M
template M
    return
end`,
		"unterminated": `main M
template M
`,
	}
	for name, src := range tests {
		_, err := Parse(strings.NewReader(src))
		require.Error(t, err, name)
	}
}

func TestLinkValidation(t *testing.T) {
	p := &Program{
		Prime: "bn254",
		Templates: []*Template{
			{
				Name: "M",
				Code: []Instr{
					{Op: OpJump, Arg: 5},
				},
			},
		},
	}
	require.Error(t, p.Link())

	p.Templates[0].Code[0] = Instr{Op: OpLoad, Arg: 0}
	require.Error(t, p.Link())

	p.Templates[0].NumVars = 1
	require.NoError(t, p.Link())

	p = &Program{
		Prime: "goldilocks",
		Templates: []*Template{
			{Name: "M"},
		},
	}
	require.Error(t, p.Link())
}

func TestMarshal(t *testing.T) {
	p, err := Parse(strings.NewReader(multiplier))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Marshal(&buf))

	q, err := Unmarshal(&buf)
	require.NoError(t, err)

	var d1, d2 bytes.Buffer
	p.Dump(&d1)
	q.Dump(&d2)
	require.Equal(t, d1.String(), d2.String())
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "storecmp", OpStoreCmp.String())
	require.Equal(t, "{Opcode 200}", Opcode(200).String())
	require.True(t, OpShl.Binary())
	require.True(t, OpBnot.Unary())
	require.False(t, OpIf.Binary())
}
