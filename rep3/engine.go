//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/markkurossi/covm/env"
	"github.com/markkurossi/covm/field"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

// Network moves opaque messages between this party and its peers. It
// must deliver messages between each pair of parties exactly once and
// in order.
type Network interface {
	// Send sends data to the party to.
	Send(ctx context.Context, to int, data []byte) error

	// Receive receives the next message from the party from.
	Receive(ctx context.Context, from int) ([]byte, error)
}

// Links of one party.
const (
	linkNext = iota
	linkPrev
	numLinks
)

const roundHeaderSize = 8

// Stats contains engine statistics.
type Stats struct {
	Rounds uint64
	Sent   uint64
	Recvd  uint64
	Muls   uint64
	Ands   uint64
	Opens  uint64
}

// Engine implements one party of the protocol engine. An engine is
// not safe for concurrent use; all parties must call the same
// operations in the same order.
type Engine struct {
	id    PartyID
	f     *field.Field
	net   Network
	cfg   *env.Config
	log   zerolog.Logger
	prf   *correlated
	nonce uint64
	round uint64
	stats Stats

	sent  [numLinks]*blake3.Hasher
	recvd [numLinks]*blake3.Hasher
}

// NewEngine creates a protocol engine for party id over the network.
// The function runs the setup round, where each party sends its PRF
// seed to the next party.
func NewEngine(ctx context.Context, cfg *env.Config, f *field.Field,
	id PartyID, nw Network) (*Engine, error) {

	if !id.Valid() {
		return nil, faultf("invalid party ID %d", id)
	}
	if cfg == nil {
		cfg = new(env.Config)
	}
	e := &Engine{
		id:  id,
		f:   f,
		net: nw,
		cfg: cfg,
	}
	e.log = cfg.GetLogger().With().Str("party", id.String()).Logger()
	for i := 0; i < numLinks; i++ {
		e.sent[i] = blake3.New()
		e.recvd[i] = blake3.New()
	}

	start := time.Now()

	var seed [seedSize]byte
	if _, err := io.ReadFull(cfg.GetRandom(), seed[:]); err != nil {
		return nil, fault(err, "sampling seed")
	}
	data, err := e.exchange(ctx, seed[:], nil, seedSize, -1)
	if err != nil {
		return nil, err
	}
	e.prf = newCorrelated(seed[:], data[linkPrev])

	e.log.Debug().Str("field", f.Name()).Dur("elapsed", time.Since(start)).
		Msg("engine ready")

	return e, nil
}

// ID returns the engine's party ID.
func (e *Engine) ID() PartyID {
	return e.id
}

// Field returns the engine's field.
func (e *Engine) Field() *field.Field {
	return e.f
}

// Config returns the engine configuration.
func (e *Engine) Config() *env.Config {
	return e.cfg
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zerolog.Logger {
	return &e.log
}

// Stats returns the engine statistics.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Reserve reserves n consecutive randomness nonces and returns the
// first one.
func (e *Engine) Reserve(n int) uint64 {
	result := e.nonce
	e.nonce += uint64(n)
	return result
}

func (e *Engine) peer(link int) PartyID {
	if link == linkNext {
		return e.id.Next()
	}
	return e.id.Prev()
}

type linkResult struct {
	link int
	data []byte
	err  error
}

// exchange runs one communication round. It sends toNext and toPrev to
// the neighbours, skipping nil messages, and receives from the
// neighbours whose expected payload length is not negative. Sends and
// receives run concurrently so large rounds can't deadlock the ring.
// On failure the function returns without waiting for blocked
// transfers; the caller must abort the computation and close the
// network.
func (e *Engine) exchange(ctx context.Context, toNext, toPrev []byte,
	fromPrev, fromNext int) ([numLinks][]byte, error) {

	var result [numLinks][]byte

	if timeout := e.cfg.GetRoundTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	round := e.round
	e.round++
	e.stats.Rounds++

	ch := make(chan linkResult, 2*numLinks)
	var pending int

	sends := [numLinks][]byte{toNext, toPrev}
	for link, msg := range sends {
		if msg == nil {
			continue
		}
		frame := make([]byte, roundHeaderSize+len(msg))
		binary.BigEndian.PutUint64(frame, round)
		copy(frame[roundHeaderSize:], msg)
		e.sent[link].Write(frame)
		e.stats.Sent += uint64(len(frame))

		pending++
		go func(link int, to PartyID, frame []byte) {
			err := e.net.Send(ctx, int(to), frame)
			ch <- linkResult{link: link, err: err}
		}(link, e.peer(link), frame)
	}

	expect := [numLinks]int{fromNext, fromPrev}
	for link, n := range expect {
		if n < 0 {
			continue
		}
		pending++
		go func(link int, from PartyID) {
			data, err := e.net.Receive(ctx, int(from))
			ch <- linkResult{link: link, data: data, err: err}
		}(link, e.peer(link))
	}

	received := make(map[int][]byte)
	for i := 0; i < pending; i++ {
		select {
		case r := <-ch:
			if r.err != nil {
				return result, fault(r.err, "round %d with %v", round,
					e.peer(r.link))
			}
			if r.data != nil {
				received[r.link] = r.data
			}
		case <-ctx.Done():
			return result, fault(ctx.Err(), "round %d", round)
		}
	}

	for link, n := range expect {
		if n < 0 {
			continue
		}
		frame, ok := received[link]
		if !ok || len(frame) < roundHeaderSize {
			return result, faultf("round %d: short frame from %v",
				round, e.peer(link))
		}
		got := binary.BigEndian.Uint64(frame)
		if got != round {
			return result, faultf("round %d: frame from %v has round %d",
				round, e.peer(link), got)
		}
		if len(frame)-roundHeaderSize != n {
			return result, faultf("round %d: %v sent %d bytes, expected %d",
				round, e.peer(link), len(frame)-roundHeaderSize, n)
		}
		e.recvd[link].Write(frame)
		e.stats.Recvd += uint64(len(frame))
		result[link] = frame[roundHeaderSize:]
	}

	e.log.Trace().Uint64("round", round).Msg("round complete")

	return result, nil
}

// Verify checks that the parties agree on their communication
// transcripts. Each party sends the digests of the data it has sent
// to its neighbours and compares the neighbours' digests with the
// digests of the data it has received. A mismatch is a protocol
// fault.
func (e *Engine) Verify(ctx context.Context) error {
	sentNext := e.sent[linkNext].Sum(nil)
	sentPrev := e.sent[linkPrev].Sum(nil)
	recvdPrev := e.recvd[linkPrev].Sum(nil)
	recvdNext := e.recvd[linkNext].Sum(nil)

	data, err := e.exchange(ctx, sentNext, sentPrev, len(recvdPrev),
		len(recvdNext))
	if err != nil {
		return err
	}
	if !bytes.Equal(data[linkPrev], recvdPrev) {
		return faultf("transcript with %v differs", e.id.Prev())
	}
	if !bytes.Equal(data[linkNext], recvdNext) {
		return faultf("transcript with %v differs", e.id.Next())
	}
	e.log.Debug().Uint64("rounds", e.stats.Rounds).
		Uint64("sent", e.stats.Sent).Uint64("recvd", e.stats.Recvd).
		Msg("transcript verified")
	return nil
}
