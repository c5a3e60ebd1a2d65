//
// protocol_test.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func pattern(n int) []byte {
	result := make([]byte, n)
	for i := range result {
		result[i] = byte(i * 7)
	}
	return result
}

var tests = []interface{}{
	uint32(44),
	uint32(0xffffffff),
	[]byte("Hello, world!"),
	[]byte{},
	pattern(1024),
	pattern(writeBufSize + 17),
	pattern(2*readBufSize + 3),
}

func writer(c *Conn) {
	for _, test := range tests {
		switch d := test.(type) {
		case uint32:
			if err := c.SendUint32(int(d)); err != nil {
				fmt.Printf("SendUint32: %v\n", err)
			}

		case []byte:
			if err := c.SendData(d); err != nil {
				fmt.Printf("SendData [%v]byte: %v\n", len(d), err)
			}

		default:
			fmt.Printf("writer: invalid data: %v(%T)\n", test, test)
		}
	}
	if err := c.Flush(); err != nil {
		fmt.Printf("Flush: %v\n", err)
	}
}

func TestProtocol(t *testing.T) {
	cw, c := Pipe()

	go writer(cw)

	for _, test := range tests {
		switch d := test.(type) {
		case uint32:
			v, err := c.ReceiveUint32()
			if err != nil {
				t.Fatalf("ReceiveUint32: %v", err)
			}
			if v != int(d) {
				t.Errorf("ReceiveUint32: got %v, expected %v", v, d)
			}

		case []byte:
			v, err := c.ReceiveData()
			if err != nil {
				t.Fatalf("ReceiveData: %v", err)
			}
			if !bytes.Equal(v, d) {
				t.Errorf("ReceiveData: [%v]byte content mismatch", len(d))
			}

		default:
			t.Errorf("invalid value: %v(%T)", test, test)
		}
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// ring sends a message from every party to the next party and checks
// the message received from the previous party.
func ring(ctx context.Context, nws []*Network) error {
	n := len(nws)
	g, ctx := errgroup.WithContext(ctx)
	for _, nw := range nws {
		nw := nw
		g.Go(func() error {
			next := (nw.ID() + 1) % n
			prev := (nw.ID() + n - 1) % n

			msg := []byte(fmt.Sprintf("from %d", nw.ID()))
			if err := nw.Send(ctx, next, msg); err != nil {
				return err
			}
			data, err := nw.Receive(ctx, prev)
			if err != nil {
				return err
			}
			expected := fmt.Sprintf("from %d", prev)
			if string(data) != expected {
				return fmt.Errorf("party %d: got %q, expected %q",
					nw.ID(), data, expected)
			}
			return nil
		})
	}
	return g.Wait()
}

func TestPipeMesh(t *testing.T) {
	nws := PipeMesh(3, zerolog.Nop())
	defer func() {
		for _, nw := range nws {
			nw.Close()
		}
	}()

	if err := ring(context.Background(), nws); err != nil {
		t.Fatalf("ring: %v", err)
	}
	for _, nw := range nws {
		if nw.Stats().Sum() == 0 {
			t.Errorf("party %d: no I/O recorded", nw.ID())
		}
	}

	_, err := nws[0].Receive(context.Background(), 7)
	if err == nil {
		t.Fatalf("receive from unknown peer succeeded")
	}
}

func TestPipeMeshClose(t *testing.T) {
	nws := PipeMesh(2, zerolog.Nop())
	defer nws[0].Close()

	nws[1].Close()
	if _, err := nws[0].Receive(context.Background(), 1); err == nil {
		t.Fatalf("receive from closed peer succeeded")
	}
}

func TestTCPNetwork(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var nws []*Network
	for i := 0; i < 3; i++ {
		nw, err := NewNetwork("127.0.0.1:0", i, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewNetwork: %v", err)
		}
		defer nw.Close()
		nws = append(nws, nw)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, nw := range nws {
		for _, peer := range nws {
			if peer == nw {
				continue
			}
			nw := nw
			peer := peer
			g.Go(func() error {
				return nw.AddPeer(gctx, peer.Addr().String(), peer.ID())
			})
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := ring(ctx, nws); err != nil {
		t.Fatalf("ring: %v", err)
	}
}
