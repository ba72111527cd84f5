//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"io"
)

// Pipe creates a bidirectional in-memory connection. Anything sent
// to the first endpoint can be received from the second and vice
// versa.
func Pipe() (*Conn, *Conn) {
	var e0, e1 endpoint

	e0.r, e1.w = io.Pipe()
	e1.r, e0.w = io.Pipe()

	return NewConn(&e0), NewConn(&e1)
}

type endpoint struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (e *endpoint) Close() error {
	e.r.Close()
	return e.w.Close()
}

func (e *endpoint) Read(data []byte) (n int, err error) {
	return e.r.Read(data)
}

func (e *endpoint) Write(data []byte) (n int, err error) {
	return e.w.Write(data)
}
