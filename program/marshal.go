//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package program

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
)

// Marshal encodes the program in CBOR.
func (p *Program) Marshal(w io.Writer) error {
	return cbor.NewEncoder(w).Encode(p)
}

// Unmarshal decodes a CBOR encoded program and links it.
func Unmarshal(r io.Reader) (*Program, error) {
	p := new(Program)
	if err := cbor.NewDecoder(r).Decode(p); err != nil {
		return nil, errors.Wrap(err, "decoding program")
	}
	if err := p.Link(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load loads a program from the file. Files with the .casm suffix are
// parsed as assembler and all other files are decoded as CBOR.
func Load(file string) (*Program, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(file, ".casm") {
		p, err := Parse(f)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", file)
		}
		return p, nil
	}
	return Unmarshal(f)
}

// Dump prints the program in a human readable form.
func (p *Program) Dump(w io.Writer) {
	fmt.Fprintf(w, "prime %s\n", p.Prime)
	if p.Main >= 0 && p.Main < len(p.Templates) {
		fmt.Fprintf(w, "main %s\n", p.Templates[p.Main].Name)
	}
	for _, fn := range p.Functions {
		fmt.Fprintf(w, "\nfunction %s %d %d\n", fn.Name, fn.NumParams,
			fn.NumVars)
		dumpCode(w, fn.Code)
		fmt.Fprintln(w, "end")
	}
	for _, t := range p.Templates {
		fmt.Fprintf(w, "\ntemplate %s\t# %d signals\n", t.Name, t.size)
		for _, s := range t.Signals {
			fmt.Fprintf(w, "    %s\t# @%d\n", s, s.Offset)
		}
		for _, sub := range t.Subcomponents {
			var size string
			if sub.Size > 0 {
				size = fmt.Sprintf("[%d]", sub.Size)
			}
			var name string
			if sub.Template >= 0 && sub.Template < len(p.Templates) {
				name = p.Templates[sub.Template].Name
			}
			fmt.Fprintf(w, "    component %s %s%s\t# @%d\n",
				sub.Name, name, size, sub.Offset)
		}
		if t.NumVars > 0 {
			fmt.Fprintf(w, "    vars %d\n", t.NumVars)
		}
		dumpCode(w, t.Code)
		fmt.Fprintln(w, "end")
	}
}

func dumpCode(w io.Writer, code []Instr) {
	for pc, instr := range code {
		fmt.Fprintf(w, "%4d\t%s\n", pc, instr)
	}
}
