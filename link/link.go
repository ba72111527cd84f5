//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package link implements the communication context between the
// protocol participants: ranked point-to-point exchange, all-to-one
// gather, and sub-context spawning. Every frame carries the tag of
// the exchange it belongs to; a frame arriving under an unexpected
// tag means the participants have diverged from the lockstep call
// order and the exchange fails fast.
package link

import (
	"errors"
	"fmt"

	"github.com/magic-hya/spu/p2p"
)

var (
	// ErrProtocol is returned when a received frame does not match
	// the expected exchange.
	ErrProtocol = errors.New("link: protocol error")

	// ErrRank is returned when a peer rank is out of range.
	ErrRank = errors.New("link: invalid rank")
)

// Context is a communication context between ranked participants.
// A context is owned by a single goroutine; concurrent calls on one
// context require external synchronization.
type Context interface {
	// Rank returns the rank of this participant.
	Rank() int

	// WorldSize returns the number of participants.
	WorldSize() int

	// Send sends data to the argument participant under the tag.
	Send(to int, tag string, data []byte) error

	// Recv receives data from the argument participant. The received
	// frame must carry the argument tag.
	Recv(from int, tag string) ([]byte, error)

	// Gather collects one data blob per participant at the root,
	// ordered by rank. The root's return value contains its own
	// contribution; all other participants return nil data.
	Gather(root int, tag string, data []byte) ([][]byte, error)

	// Spawn creates an independent child context over the same
	// participants. All participants must spawn in lockstep.
	Spawn() (Context, error)

	// Stats returns the I/O statistics of the context connections.
	Stats() p2p.IOStats

	// Close closes the context.
	Close() error
}

// frames implements the tagged frame exchange over per-peer protocol
// connections. Both the in-process and the TCP contexts embed it.
type frames struct {
	rank  int
	conns []*p2p.Conn
}

func (f *frames) Rank() int {
	return f.rank
}

func (f *frames) WorldSize() int {
	return len(f.conns)
}

func (f *frames) conn(peer int) (*p2p.Conn, error) {
	if peer < 0 || peer >= len(f.conns) || peer == f.rank {
		return nil, fmt.Errorf("%w: peer %d", ErrRank, peer)
	}
	return f.conns[peer], nil
}

func (f *frames) Send(to int, tag string, data []byte) error {
	conn, err := f.conn(to)
	if err != nil {
		return err
	}
	if err := conn.SendString(tag); err != nil {
		return err
	}
	if err := conn.SendData(data); err != nil {
		return err
	}
	return conn.Flush()
}

func (f *frames) Recv(from int, tag string) ([]byte, error) {
	conn, err := f.conn(from)
	if err != nil {
		return nil, err
	}
	got, err := conn.ReceiveString()
	if err != nil {
		return nil, err
	}
	if got != tag {
		return nil, fmt.Errorf("%w: rank %d sent tag %q, expected %q",
			ErrProtocol, from, got, tag)
	}
	return conn.ReceiveData()
}

func (f *frames) Gather(root int, tag string, data []byte) ([][]byte, error) {
	if root < 0 || root >= len(f.conns) {
		return nil, fmt.Errorf("%w: root %d", ErrRank, root)
	}
	if f.rank != root {
		return nil, f.Send(root, tag, data)
	}
	result := make([][]byte, len(f.conns))
	own := make([]byte, len(data))
	copy(own, data)
	result[f.rank] = own

	for rank := 0; rank < len(f.conns); rank++ {
		if rank == root {
			continue
		}
		buf, err := f.Recv(rank, tag)
		if err != nil {
			return nil, err
		}
		result[rank] = buf
	}
	return result, nil
}

func (f *frames) Stats() p2p.IOStats {
	result := p2p.NewIOStats()
	for _, conn := range f.conns {
		if conn != nil {
			result = result.Add(conn.Stats)
		}
	}
	return result
}

func (f *frames) Close() error {
	var err error
	for _, conn := range f.conns {
		if conn != nil {
			if e := conn.Close(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}
