//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package messenger

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/text/superscript"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a connection to a relay server.
type Client struct {
	conn *grpc.ClientConn
	log  zerolog.Logger
}

// Connect connects to the relay server at addr.
func Connect(addr string, log zerolog.Logger) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(codec{}),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", addr)
	}
	return &Client{
		conn: conn,
		log:  log.With().Str("module", "messenger").Logger(),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// NewSession creates a new relay session for the number of parties.
func (c *Client) NewSession(ctx context.Context, parties int) (string, error) {
	var resp Session
	err := c.conn.Invoke(ctx, methodNewSession, &SessionRequest{
		Parties: parties,
	}, &resp)
	if err != nil {
		return "", errors.Wrap(err, "new session")
	}
	return resp.ID, nil
}

// Join returns the network endpoint of the party id in the session.
func (c *Client) Join(session string, id int) *Endpoint {
	return &Endpoint{
		client:  c,
		session: session,
		id:      id,
		log: c.log.With().Str("session", session).Int("party", id).
			Logger(),
		nsend: make(map[int]uint64),
		nrecv: make(map[int]uint64),
	}
}

// Endpoint is one party's view of a relay session. It implements the
// network interface of the protocol engine.
type Endpoint struct {
	client  *Client
	session string
	id      int
	log     zerolog.Logger

	m     sync.Mutex
	nsend map[int]uint64
	nrecv map[int]uint64
}

// ID returns the party ID of the endpoint.
func (ep *Endpoint) ID() int {
	return ep.id
}

// Session returns the session ID of the endpoint.
func (ep *Endpoint) Session() string {
	return ep.session
}

// Send posts data to the inbox of the party to.
func (ep *Endpoint) Send(ctx context.Context, to int, data []byte) error {
	ep.m.Lock()
	seq := ep.nsend[to]
	ep.nsend[to]++
	ep.m.Unlock()

	var ack Ack
	err := ep.client.conn.Invoke(ctx, methodInbox, &Message{
		Session: ep.session,
		From:    ep.id,
		To:      to,
		Seq:     seq,
		Data:    data,
	}, &ack)
	if err != nil {
		return errors.Wrapf(err, "send to P%s: seq=%d",
			superscript.Itoa(to), seq)
	}
	ep.log.Trace().Int("to", to).Uint64("seq", seq).Int("size", ack.Size).
		Msg("sent")
	return nil
}

// Receive fetches the next message from the party from. It blocks
// until the message arrives or the context is done.
func (ep *Endpoint) Receive(ctx context.Context, from int) ([]byte, error) {
	ep.m.Lock()
	seq := ep.nrecv[from]
	ep.m.Unlock()

	var msg Message
	err := ep.client.conn.Invoke(ctx, methodOutbox, &Message{
		Session: ep.session,
		From:    from,
		To:      ep.id,
		Seq:     seq,
	}, &msg)
	if err != nil {
		return nil, errors.Wrapf(err, "receive from P%s: seq=%d",
			superscript.Itoa(from), seq)
	}

	ep.m.Lock()
	ep.nrecv[from]++
	ep.m.Unlock()

	ep.log.Trace().Int("from", from).Uint64("seq", seq).
		Int("size", len(msg.Data)).Msg("received")

	return msg.Data, nil
}
