//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/p2p"
	"golang.org/x/sync/errgroup"
)

// PartyFunc is the computation of one party in a local run.
type PartyFunc func(ctx context.Context, e *Engine) error

// RunLocal runs the three parties in this process over an in-memory
// network. The configurations are indexed by party ID and nil entries
// use the defaults. A failing party closes its links so the peers
// blocked on it fail too. The function returns the error of the
// lowest failing party.
func RunLocal(ctx context.Context, f *field.Field,
	cfgs [NumParties]*env.Config, fn PartyFunc) error {

	var log = cfgs[0].GetLogger()
	nws := p2p.PipeMesh(NumParties, log)

	var errs [NumParties]error
	var g errgroup.Group

	for i := 0; i < NumParties; i++ {
		g.Go(func() error {
			id := PartyID(i)
			e, err := NewEngine(ctx, cfgs[i], f, id, nws[i])
			if err == nil {
				err = fn(ctx, e)
			}
			if err != nil {
				errs[i] = errors.Wrapf(err, "%v", id)
				nws[i].Close()
			}
			return nil
		})
	}
	g.Wait()

	for _, nw := range nws {
		nw.Close()
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
