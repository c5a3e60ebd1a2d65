//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/input"
	"github.com/markkurossi/covm/rep3"
	"github.com/markkurossi/text/superscript"
)

func cmdCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "output file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("expected one program file")
	}
	file := fs.Arg(0)
	prog, err := loadProgram(file)
	if err != nil {
		return err
	}
	name := *out
	if len(name) == 0 {
		name = strings.TrimSuffix(file, ".casm") + ".cbor"
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := prog.Marshal(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.Parse(args)

	for _, file := range fs.Args() {
		prog, err := loadProgram(file)
		if err != nil {
			return err
		}
		prog.Dump(os.Stdout)
	}
	return nil
}

func cmdSplitInput(args []string) error {
	fs := flag.NewFlagSet("split-input", flag.ExitOnError)
	prime := fs.String("field", "bn254", "prime field")
	public := fs.String("public", "", "comma-separated list of public inputs")
	out := fs.String("o", "input", "output file prefix")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("expected one JSON input file")
	}
	f, err := field.ByName(*prime)
	if err != nil {
		return err
	}
	file, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	values, err := input.ParseJSON(f, file)
	file.Close()
	if err != nil {
		return err
	}
	pub := make(map[string]bool)
	for _, name := range splitList(*public) {
		if _, ok := values[name]; !ok {
			return errors.Newf("public input %s not defined", name)
		}
		pub[name] = true
	}

	var cfg env.Config
	parts, err := input.Split(f, values, pub, cfg.GetRandom())
	if err != nil {
		return err
	}
	for i, part := range parts {
		name := partyFile(*out, i)
		if err := part.Save(name, f); err != nil {
			return err
		}
		log.Debug().Str("file", name).Msgf("input of P%s", superscript.Itoa(i))
	}
	return nil
}

func cmdMergeInput(args []string) error {
	fs := flag.NewFlagSet("merge-input", flag.ExitOnError)
	prime := fs.String("field", "bn254", "prime field")
	out := fs.String("o", "", "output file")
	fs.Parse(args)

	if len(*out) == 0 {
		return errors.New("no output file")
	}
	f, err := field.ByName(*prime)
	if err != nil {
		return err
	}
	var parts []*input.Shared
	for _, file := range fs.Args() {
		part, err := input.Load(file, f)
		if err != nil {
			return err
		}
		parts = append(parts, part)
	}
	merged, err := input.Merge(parts...)
	if err != nil {
		return err
	}
	return merged.Save(*out, f)
}

func cmdSplitWitness(args []string) error {
	fs := flag.NewFlagSet("split-witness", flag.ExitOnError)
	prime := fs.String("field", "bn254", "prime field")
	numPublic := fs.Int("public", 1, "number of public witness values")
	out := fs.String("o", "witness", "output file prefix")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("expected one JSON witness file")
	}
	f, err := field.ByName(*prime)
	if err != nil {
		return err
	}
	file, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	values, err := input.ParseWitnessJSON(f, file)
	file.Close()
	if err != nil {
		return err
	}

	var cfg env.Config
	parts, err := input.SplitWitness(f, values, *numPublic, cfg.GetRandom())
	if err != nil {
		return err
	}
	for i, part := range parts {
		if err := part.Save(partyFile(*out, i), f); err != nil {
			return err
		}
	}
	return nil
}

func cmdMergeWitness(args []string) error {
	fs := flag.NewFlagSet("merge-witness", flag.ExitOnError)
	prime := fs.String("field", "bn254", "prime field")
	fs.Parse(args)

	if fs.NArg() != rep3.NumParties {
		return errors.Newf("expected %d witness files", rep3.NumParties)
	}
	f, err := field.ByName(*prime)
	if err != nil {
		return err
	}
	var parts [rep3.NumParties]*input.Witness
	for i := range parts {
		parts[i], err = input.LoadWitness(fs.Arg(i), f)
		if err != nil {
			return err
		}
	}
	values, err := input.ReconstructWitness(f, parts)
	if err != nil {
		return err
	}
	fmt.Print("[")
	for i, v := range values {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Printf("%q", f.Format(v))
	}
	fmt.Println("]")
	return nil
}
