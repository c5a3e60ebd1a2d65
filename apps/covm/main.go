//
// main.go
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
	"sort"
	"strings"
	"time"

	"github.com/markkurossi/covm/program"
	"github.com/rs/zerolog"
)

type command struct {
	usage string
	run   func(args []string) error
}

var commands = map[string]command{
	"compile": {
		usage: "compile a program to its binary form",
		run:   cmdCompile,
	},
	"dump": {
		usage: "print a program",
		run:   cmdDump,
	},
	"split-input": {
		usage: "split a plaintext JSON input into party input files",
		run:   cmdSplitInput,
	},
	"merge-input": {
		usage: "merge the input files of one party",
		run:   cmdMergeInput,
	},
	"split-witness": {
		usage: "split a plaintext JSON witness into party witness files",
		run:   cmdSplitWitness,
	},
	"merge-witness": {
		usage: "reconstruct a witness from party witness files",
		run:   cmdMergeWitness,
	},
	"run": {
		usage: "run a program over shared inputs",
		run:   cmdRun,
	},
	"relay": {
		usage: "run a message relay server",
		run:   cmdRelay,
	},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: covm [options] command [command options]\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")

	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, commands[name].usage)
	}
}

var (
	verbose bool
	log     zerolog.Logger
)

func main() {
	fVerbose := flag.Bool("v", false, "verbose output")
	fTrace := flag.Bool("trace", false, "trace protocol rounds")
	flag.Usage = usage
	flag.Parse()

	verbose = *fVerbose

	level := zerolog.InfoLevel
	if *fTrace {
		level = zerolog.TraceLevel
	} else if verbose {
		level = zerolog.DebugLevel
	}
	log = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Logger()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command '%s'\n", args[0])
		usage()
		os.Exit(1)
	}
	if err := cmd.run(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		if verbose {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
		os.Exit(1)
	}
}

// loadProgram loads a program from its assembler (.casm) or binary
// form.
func loadProgram(file string) (*program.Program, error) {
	return program.Load(file)
}

// partyFile returns the name of the party's file with the prefix.
func partyFile(prefix string, party int) string {
	return fmt.Sprintf("%s.%d.cbor", prefix, party)
}

// splitList splits a comma-separated list.
func splitList(s string) []string {
	var result []string
	for _, el := range strings.Split(s, ",") {
		el = strings.TrimSpace(el)
		if len(el) > 0 {
			result = append(result, el)
		}
	}
	return result
}
