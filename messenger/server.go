//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package messenger implements a store-and-forward message relay for
// parties that can't connect to each other directly. The parties
// connect to the relay over gRPC, join a session, and post messages
// to the inboxes of their peers. Messages are addressed by session,
// sender, recipient and sequence number, so every link delivers its
// messages in order.
package messenger

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxMessageSize is the maximum size of a relayed message.
const MaxMessageSize = 1048576 * 32

const (
	// DefaultExpiration is the default lifetime of idle sessions and
	// undelivered messages.
	DefaultExpiration = 10 * time.Minute

	// DefaultMaxWait is the default time an Outbox request waits for
	// its message.
	DefaultMaxWait = time.Minute
)

type service interface {
	NewSession(ctx context.Context, req *SessionRequest) (*Session, error)
	Inbox(ctx context.Context, msg *Message) (*Ack, error)
	Outbox(ctx context.Context, query *Message) (*Message, error)
}

func handler[Req any, Resp any](method string,
	call func(service, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {

	return func(srv any, ctx context.Context, dec func(any) error,
		interceptor grpc.UnaryServerInterceptor) (any, error) {

		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(service), ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		return interceptor(ctx, req, info,
			func(ctx context.Context, req any) (any, error) {
				return call(srv.(service), ctx, req.(*Req))
			})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*service)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "NewSession",
			Handler:    handler(methodNewSession, service.NewSession),
		},
		{
			MethodName: "Inbox",
			Handler:    handler(methodInbox, service.Inbox),
		},
		{
			MethodName: "Outbox",
			Handler:    handler(methodOutbox, service.Outbox),
		},
	},
	Metadata: "messenger",
}

// Server implements the relay service.
type Server struct {
	log      zerolog.Logger
	maxWait  time.Duration
	sessions *cache.Cache
	mailbox  *cache.Cache
	grpc     *grpc.Server

	m       sync.Mutex
	waiters map[string][]chan struct{}
}

// NewServer creates a relay server. Sessions and messages expire
// after being idle for the expiration time.
func NewServer(expiration time.Duration, log zerolog.Logger) *Server {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	srv := &Server{
		log:      log.With().Str("module", "messenger").Logger(),
		maxWait:  DefaultMaxWait,
		sessions: cache.New(expiration, expiration/2),
		mailbox:  cache.New(expiration, expiration/2),
		waiters:  make(map[string][]chan struct{}),
	}
	srv.grpc = grpc.NewServer(
		grpc.ForceServerCodec(codec{}),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	)
	srv.grpc.RegisterService(&serviceDesc, srv)
	return srv
}

// Serve serves relay clients from the listener until Stop is called.
func (srv *Server) Serve(listener net.Listener) error {
	srv.log.Info().Str("addr", listener.Addr().String()).Msg("serving")
	return srv.grpc.Serve(listener)
}

// Stop stops the server and cancels all pending requests.
func (srv *Server) Stop() {
	srv.grpc.Stop()
}

func mailboxKey(session string, from, to int, seq uint64) string {
	return fmt.Sprintf("%s/%d/%d/%d", session, from, to, seq)
}

// NewSession implements the NewSession method.
func (srv *Server) NewSession(ctx context.Context, req *SessionRequest) (
	*Session, error) {

	if req.Parties < 2 {
		return nil, status.Errorf(codes.InvalidArgument,
			"invalid number of parties: %d", req.Parties)
	}
	id := uuid.NewString()
	srv.sessions.Set(id, req.Parties, cache.DefaultExpiration)

	srv.log.Debug().Str("session", id).Int("parties", req.Parties).
		Msg("new session")

	return &Session{
		ID: id,
	}, nil
}

// checkSession checks the message header and refreshes the session
// expiration.
func (srv *Server) checkSession(msg *Message) error {
	v, ok := srv.sessions.Get(msg.Session)
	if !ok {
		return status.Errorf(codes.NotFound, "unknown session %s",
			msg.Session)
	}
	parties := v.(int)
	if msg.From < 0 || msg.From >= parties || msg.To < 0 ||
		msg.To >= parties || msg.From == msg.To {
		return status.Errorf(codes.InvalidArgument,
			"invalid link %d->%d in session of %d parties",
			msg.From, msg.To, parties)
	}
	srv.sessions.Set(msg.Session, parties, cache.DefaultExpiration)
	return nil
}

// Inbox implements the Inbox method. It stores the message and wakes
// up the recipient waiting for it.
func (srv *Server) Inbox(ctx context.Context, msg *Message) (*Ack, error) {
	if err := srv.checkSession(msg); err != nil {
		return nil, err
	}
	key := mailboxKey(msg.Session, msg.From, msg.To, msg.Seq)

	srv.m.Lock()
	err := srv.mailbox.Add(key, msg.Data, cache.DefaultExpiration)
	if err == nil {
		for _, w := range srv.waiters[key] {
			close(w)
		}
		delete(srv.waiters, key)
	}
	srv.m.Unlock()

	if err != nil {
		return nil, status.Errorf(codes.AlreadyExists,
			"duplicate message %d->%d seq %d", msg.From, msg.To, msg.Seq)
	}
	srv.log.Trace().Str("session", msg.Session).Int("from", msg.From).
		Int("to", msg.To).Uint64("seq", msg.Seq).Int("size", len(msg.Data)).
		Msg("inbox")

	return &Ack{
		Size: len(msg.Data),
	}, nil
}

// Outbox implements the Outbox method. It waits until the queried
// message arrives and removes it from the mailbox.
func (srv *Server) Outbox(ctx context.Context, query *Message) (
	*Message, error) {

	if err := srv.checkSession(query); err != nil {
		return nil, err
	}
	key := mailboxKey(query.Session, query.From, query.To, query.Seq)

	timeout := time.NewTimer(srv.maxWait)
	defer timeout.Stop()

	for {
		srv.m.Lock()
		v, ok := srv.mailbox.Get(key)
		if ok {
			srv.mailbox.Delete(key)
			srv.m.Unlock()

			return &Message{
				Session: query.Session,
				From:    query.From,
				To:      query.To,
				Seq:     query.Seq,
				Data:    v.([]byte),
			}, nil
		}
		w := make(chan struct{})
		srv.waiters[key] = append(srv.waiters[key], w)
		srv.m.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			srv.removeWaiter(key, w)
			return nil, status.FromContextError(ctx.Err()).Err()
		case <-timeout.C:
			srv.removeWaiter(key, w)
			return nil, status.Errorf(codes.DeadlineExceeded,
				"message %d->%d seq %d not received in %s",
				query.From, query.To, query.Seq, srv.maxWait)
		}
	}
}

func (srv *Server) removeWaiter(key string, w chan struct{}) {
	srv.m.Lock()
	defer srv.m.Unlock()

	waiters := srv.waiters[key]
	for i, ww := range waiters {
		if ww == w {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(srv.waiters, key)
	} else {
		srv.waiters[key] = waiters
	}
}
