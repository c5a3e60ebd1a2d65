//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package messenger

import (
	"github.com/fxamacker/cbor/v2"
)

// ServiceName is the gRPC service name of the relay.
const ServiceName = "covm.Messenger"

const (
	methodNewSession = "/" + ServiceName + "/NewSession"
	methodInbox      = "/" + ServiceName + "/Inbox"
	methodOutbox     = "/" + ServiceName + "/Outbox"
)

// SessionRequest requests a new relay session.
type SessionRequest struct {
	Parties int `cbor:"1,keyasint"`
}

// Session identifies a relay session.
type Session struct {
	ID string `cbor:"1,keyasint"`
}

// Message is one relayed message. An Outbox query carries the
// message header without data.
type Message struct {
	Session string `cbor:"1,keyasint"`
	From    int    `cbor:"2,keyasint"`
	To      int    `cbor:"3,keyasint"`
	Seq     uint64 `cbor:"4,keyasint"`
	Data    []byte `cbor:"5,keyasint,omitempty"`
}

// Ack acknowledges a stored message.
type Ack struct {
	Size int `cbor:"1,keyasint"`
}

// codec encodes the relay messages with CBOR. The relay does not use
// generated protocol buffer types.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

func (codec) Name() string {
	return "cbor"
}
