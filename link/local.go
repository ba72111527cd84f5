//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package link

import (
	"sync"

	"github.com/magic-hya/spu/p2p"
)

// Local implements an in-process communication context over memory
// pipes. It is used by the test suites and by single-process
// multi-party deployments.
type Local struct {
	frames
	net *localNet
}

// localNet owns the state shared by the party contexts of one
// in-process network: the lazily created child networks for spawned
// contexts. Spawns are aligned by their per-rank call index so that
// lockstep Spawn calls on all parties land in the same child.
type localNet struct {
	mu       sync.Mutex
	ctxs     []*Local
	children []*localNet
	spawned  []int
}

// NewLocal creates an in-process network of n participant contexts.
func NewLocal(n int) []Context {
	net := newLocalNet(n)
	result := make([]Context, n)
	for i, ctx := range net.ctxs {
		result[i] = ctx
	}
	return result
}

func newLocalNet(n int) *localNet {
	net := &localNet{
		ctxs:    make([]*Local, n),
		spawned: make([]int, n),
	}
	for rank := 0; rank < n; rank++ {
		net.ctxs[rank] = &Local{
			frames: frames{
				rank:  rank,
				conns: make([]*p2p.Conn, n),
			},
			net: net,
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c0, c1 := p2p.Pipe()
			net.ctxs[i].conns[j] = c0
			net.ctxs[j].conns[i] = c1
		}
	}
	return net
}

// Spawn creates an independent child context. The child networks are
// created lazily and indexed by the spawn call sequence: the i'th
// Spawn call of every rank returns a context of the same child
// network.
func (l *Local) Spawn() (Context, error) {
	l.net.mu.Lock()
	defer l.net.mu.Unlock()

	idx := l.net.spawned[l.rank]
	l.net.spawned[l.rank]++

	for len(l.net.children) <= idx {
		l.net.children = append(l.net.children,
			newLocalNet(len(l.net.ctxs)))
	}
	return l.net.children[idx].ctxs[l.rank], nil
}
