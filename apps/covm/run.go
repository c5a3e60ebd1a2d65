//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/input"
	"github.com/markkurossi/covm/messenger"
	"github.com/markkurossi/covm/p2p"
	"github.com/markkurossi/covm/program"
	"github.com/markkurossi/covm/rep3"
	"github.com/markkurossi/covm/vm"
	"github.com/markkurossi/text/superscript"
	"golang.org/x/sync/errgroup"
)

type runParams struct {
	prog      *program.Program
	out       string
	stats     bool
	unbatched bool
	timeout   time.Duration
	seed      string
}

func (params *runParams) config(party int) *env.Config {
	cfg := &env.Config{
		RoundTimeout: params.timeout,
		Logger:       &log,
		Unbatched:    params.unbatched,
	}
	if len(params.seed) > 0 {
		cfg.Rand = env.SeededRand([]byte(fmt.Sprintf("%s-%d",
			params.seed, party)))
	}
	return cfg
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	local := fs.Bool("local", false, "run all three parties in this process")
	party := fs.Int("party", 0, "party ID")
	peers := fs.String("peers", "",
		"comma-separated list of the parties' TCP addresses")
	relay := fs.String("relay", "", "relay server address")
	session := fs.String("session", "", "relay session ID")
	out := fs.String("o", "", "witness output file prefix")
	stats := fs.Bool("stats", false, "print execution statistics")
	unbatched := fs.Bool("unbatched", false, "disable multiplication batching")
	timeout := fs.Duration("timeout", env.DefaultRoundTimeout,
		"protocol round timeout")
	seed := fs.String("seed", "", "deterministic randomness seed (testing only)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("no program file")
	}
	prog, err := loadProgram(fs.Arg(0))
	if err != nil {
		return err
	}
	params := &runParams{
		prog:      prog,
		out:       *out,
		stats:     *stats,
		unbatched: *unbatched,
		timeout:   *timeout,
		seed:      *seed,
	}
	files := fs.Args()[1:]

	if *local {
		if len(files) != rep3.NumParties {
			return errors.Newf("expected %d input files", rep3.NumParties)
		}
		return runLocal(params, files)
	}
	if len(files) != 1 {
		return errors.New("expected one input file")
	}
	if *party < 0 || *party >= rep3.NumParties {
		return errors.Newf("invalid party %d", *party)
	}
	in, err := input.Load(files[0], prog.Field())
	if err != nil {
		return err
	}

	ctx := context.Background()
	var nw rep3.Network

	if len(*relay) > 0 {
		if len(*session) == 0 {
			return errors.New("no relay session")
		}
		client, err := messenger.Connect(*relay, log)
		if err != nil {
			return err
		}
		defer client.Close()
		nw = client.Join(*session, *party)
	} else {
		addrs := splitList(*peers)
		if len(addrs) != rep3.NumParties {
			return errors.Newf("expected %d peer addresses", rep3.NumParties)
		}
		tcp, err := p2p.NewNetwork(addrs[*party], *party, log)
		if err != nil {
			return err
		}
		defer tcp.Close()

		connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
		for id, addr := range addrs {
			if id == *party {
				continue
			}
			if err := tcp.AddPeer(connectCtx, addr, id); err != nil {
				cancel()
				return err
			}
		}
		cancel()
		nw = tcp
	}

	e, err := rep3.NewEngine(ctx, params.config(*party), prog.Field(),
		rep3.PartyID(*party), nw)
	if err != nil {
		return err
	}
	w, m, err := runParty(ctx, params, e, in)
	if err != nil {
		return err
	}
	report(params, e, m, w)

	if len(params.out) > 0 {
		return w.Save(partyFile(params.out, *party), prog.Field())
	}
	return nil
}

func runParty(ctx context.Context, params *runParams, e *rep3.Engine,
	in *input.Shared) (*input.Witness, *vm.Machine, error) {

	m, err := vm.New(params.prog, accel.New(e))
	if err != nil {
		return nil, nil, err
	}
	w, err := m.Run(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return w, m, nil
}

func runLocal(params *runParams, files []string) error {
	f := params.prog.Field()

	var inputs [rep3.NumParties]*input.Shared
	var cfgs [rep3.NumParties]*env.Config
	for i := range inputs {
		var err error
		inputs[i], err = input.Load(files[i], f)
		if err != nil {
			return err
		}
		cfgs[i] = params.config(i)
	}

	var witnesses [rep3.NumParties]*input.Witness
	var machines [rep3.NumParties]*vm.Machine
	var engines [rep3.NumParties]*rep3.Engine

	err := rep3.RunLocal(context.Background(), f, cfgs,
		func(ctx context.Context, e *rep3.Engine) error {
			id := int(e.ID())
			w, m, err := runParty(ctx, params, e, inputs[id])
			if err != nil {
				return err
			}
			witnesses[id] = w
			machines[id] = m
			engines[id] = e
			return nil
		})
	if err != nil {
		return err
	}
	report(params, engines[0], machines[0], witnesses[0])

	if len(params.out) > 0 {
		var g errgroup.Group
		for i, w := range witnesses {
			g.Go(func() error {
				return w.Save(partyFile(params.out, i), f)
			})
		}
		return g.Wait()
	}
	return nil
}

// report prints the outputs of the main template and the run
// statistics.
func report(params *runParams, e *rep3.Engine, m *vm.Machine,
	w *input.Witness) {

	f := params.prog.Field()
	party := superscript.Itoa(int(e.ID()))

	main := params.prog.MainTemplate()
	for _, s := range main.Signals {
		if s.Kind != program.Output {
			continue
		}
		for idx := 0; idx < s.Len(); idx++ {
			name := s.Name
			if s.Size > 0 {
				name = fmt.Sprintf("%s[%d]", s.Name, idx)
			}
			fmt.Printf("%s%s: %s\n", name, party,
				f.Format(w.Public[1+s.Offset+idx]))
		}
	}
	if params.stats {
		m.Timing().Print(os.Stdout, e.Stats())
		m.PrintStats(os.Stdout)
	}
}
