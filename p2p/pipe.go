//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"io"

	"github.com/rs/zerolog"
)

// Pipe implements the Conn interface as a bidirectional communication
// pipe. Anything send to the first endpoint can be received from the
// second and vice versa.
func Pipe() (*Conn, *Conn) {
	var p0, p1 pipe

	p0.r, p1.w = io.Pipe()
	p1.r, p0.w = io.Pipe()

	return NewConn(&p0), NewConn(&p1)
}

// PipeMesh creates an in-memory network of n parties where every pair
// of parties is connected with a Pipe. The returned networks are
// indexed by party ID.
func PipeMesh(n int, log zerolog.Logger) []*Network {
	result := make([]*Network, n)
	for i := 0; i < n; i++ {
		result[i] = newNetwork(i, log)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ci, cj := Pipe()
			result[i].peers[j] = &Peer{
				id:   j,
				conn: ci,
			}
			result[j].peers[i] = &Peer{
				id:   i,
				conn: cj,
			}
		}
	}
	return result
}

type pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipe) Close() error {
	// Closing the reader fails the peer's pending writes and closing
	// the writer gives the peer's reads io.EOF.
	if err := p.r.Close(); err != nil {
		return err
	}
	return p.w.Close()
}

func (p *pipe) Read(data []byte) (n int, err error) {
	return p.r.Read(data)
}

func (p *pipe) Write(data []byte) (n int, err error) {
	return p.w.Write(data)
}
