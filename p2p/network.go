//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/text/superscript"
	"github.com/rs/zerolog"
)

// ErrUnknownPeer is returned when sending to or receiving from a party
// that is not connected to the network.
var ErrUnknownPeer = errors.New("unknown peer")

// Network implements peer-to-peer network. The network delivers
// length-framed messages in order between numbered parties.
type Network struct {
	id       int
	m        sync.Mutex
	c        *sync.Cond
	peers    map[int]*Peer
	listener net.Listener
	log      zerolog.Logger
	closed   bool
}

func newNetwork(id int, log zerolog.Logger) *Network {
	nw := &Network{
		id:    id,
		peers: make(map[int]*Peer),
		log:   log.With().Int("party", id).Logger(),
	}
	nw.c = sync.NewCond(&nw.m)
	return nw
}

// NewNetwork creates a new TCP peer-to-peer network for the party id,
// listening for peer connections at addr.
func NewNetwork(addr string, id int, log zerolog.Logger) (*Network, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	nw := newNetwork(id, log)
	nw.listener = listener

	go nw.acceptLoop()
	return nw, nil
}

// ID returns the party ID of this network endpoint.
func (nw *Network) ID() int {
	return nw.id
}

// Addr returns the listener address of the network.
func (nw *Network) Addr() net.Addr {
	if nw.listener == nil {
		return nil
	}
	return nw.listener.Addr()
}

// Close closes the network and all peer connections.
func (nw *Network) Close() error {
	nw.m.Lock()
	nw.closed = true
	peers := nw.peers
	nw.peers = make(map[int]*Peer)
	nw.c.Broadcast()
	nw.m.Unlock()

	var result error
	if nw.listener != nil {
		result = nw.listener.Close()
	}
	for _, peer := range peers {
		result = errors.CombineErrors(result, peer.Close())
	}
	return result
}

// AddPeer adds the party id at addr to the network. The party with the
// smaller ID dials and the other waits for the inbound connection, so
// every pair ends up with exactly one connection. Dial failures are
// retried until the context is done.
func (nw *Network) AddPeer(ctx context.Context, addr string, id int) error {
	if id == nw.id {
		return errors.Newf("can't add self as peer %d", id)
	}
	if id < nw.id {
		return nw.waitPeer(ctx, id)
	}

	var dialer net.Dialer
	for {
		nw.log.Debug().Msgf("connecting to P%s at %s", superscript.Itoa(id), addr)
		nc, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrapf(ctx.Err(), "connect to peer %d", id)
			}
			delay := time.Second
			nw.log.Debug().Err(err).Msgf("connect to %s failed, retrying in %s",
				addr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "connect to peer %d", id)
			}
			continue
		}
		conn := NewConn(nc)

		if err := conn.SendUint32(nw.id); err != nil {
			conn.Close()
			return err
		}
		if err := conn.Flush(); err != nil {
			conn.Close()
			return err
		}
		return nw.newPeer(conn, nc, id)
	}
}

func (nw *Network) waitPeer(ctx context.Context, id int) error {
	stop := context.AfterFunc(ctx, func() {
		nw.m.Lock()
		nw.c.Broadcast()
		nw.m.Unlock()
	})
	defer stop()

	nw.m.Lock()
	defer nw.m.Unlock()
	for {
		if _, ok := nw.peers[id]; ok {
			return nil
		}
		if nw.closed {
			return errors.Newf("network closed while waiting for peer %d", id)
		}
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "waiting for peer %d", id)
		}
		nw.c.Wait()
	}
}

func (nw *Network) acceptLoop() {
	for {
		nc, err := nw.listener.Accept()
		if err != nil {
			nw.log.Debug().Err(err).Msg("accept loop terminated")
			return
		}
		conn := NewConn(nc)

		// Read peer ID.
		id, err := conn.ReceiveUint32()
		if err != nil {
			nw.log.Warn().Err(err).Msg("peer handshake failed")
			conn.Close()
			continue
		}

		err = nw.newPeer(conn, nc, id)
		if err != nil {
			nw.log.Warn().Err(err).Msg("inbound connection rejected")
		}
	}
}

func (nw *Network) newPeer(conn *Conn, nc net.Conn, id int) error {
	nw.m.Lock()
	_, ok := nw.peers[id]
	if ok || nw.closed {
		nw.m.Unlock()
		conn.Close()
		return errors.Newf("peer %d already connected", id)
	}
	nw.peers[id] = &Peer{
		id:   id,
		conn: conn,
		nc:   nc,
	}
	nw.c.Broadcast()
	nw.m.Unlock()

	nw.log.Debug().Msgf("P%s connected to P%s",
		superscript.Itoa(nw.id), superscript.Itoa(id))
	return nil
}

func (nw *Network) peer(id int) (*Peer, error) {
	nw.m.Lock()
	defer nw.m.Unlock()
	peer, ok := nw.peers[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPeer, "party %d", id)
	}
	return peer, nil
}

// Send sends data to the party to.
func (nw *Network) Send(ctx context.Context, to int, data []byte) error {
	peer, err := nw.peer(to)
	if err != nil {
		return err
	}
	return peer.Send(ctx, data)
}

// Receive receives the next message from the party from.
func (nw *Network) Receive(ctx context.Context, from int) ([]byte, error) {
	peer, err := nw.peer(from)
	if err != nil {
		return nil, err
	}
	return peer.Receive(ctx)
}

// Stats returns the I/O stats from the network.
func (nw *Network) Stats() IOStats {
	nw.m.Lock()
	defer nw.m.Unlock()

	result := NewIOStats()
	for _, peer := range nw.peers {
		result = result.Add(peer.conn.Stats)
	}
	return result
}

// Peer implements a peer in the peer-to-peer network.
type Peer struct {
	id     int
	conn   *Conn
	nc     net.Conn
	sendMu sync.Mutex
	recvMu sync.Mutex
}

// Close closes the peer connection.
func (peer *Peer) Close() error {
	return peer.conn.Close()
}

// Send sends a data frame to the peer and flushes the connection.
func (peer *Peer) Send(ctx context.Context, data []byte) error {
	peer.sendMu.Lock()
	defer peer.sendMu.Unlock()

	if peer.nc != nil {
		if deadline, ok := ctx.Deadline(); ok {
			peer.nc.SetWriteDeadline(deadline)
			defer peer.nc.SetWriteDeadline(time.Time{})
		}
	}
	if err := peer.conn.SendData(data); err != nil {
		return errors.Wrapf(err, "send to peer %d", peer.id)
	}
	if err := peer.conn.Flush(); err != nil {
		return errors.Wrapf(err, "send to peer %d", peer.id)
	}
	return nil
}

// Receive receives the next data frame from the peer.
func (peer *Peer) Receive(ctx context.Context) ([]byte, error) {
	peer.recvMu.Lock()
	defer peer.recvMu.Unlock()

	if peer.nc != nil {
		if deadline, ok := ctx.Deadline(); ok {
			peer.nc.SetReadDeadline(deadline)
			defer peer.nc.SetReadDeadline(time.Time{})
		}
	}
	data, err := peer.conn.ReceiveData()
	if err != nil {
		return nil, errors.Wrapf(err, "receive from peer %d", peer.id)
	}
	return data, nil
}
