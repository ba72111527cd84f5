//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package link

import (
	"github.com/magic-hya/spu/p2p"
)

// TCP implements a communication context over a TCP connection mesh.
type TCP struct {
	frames
	mesh *p2p.Mesh
}

// NewTCP creates a TCP context for the party rank. The addrs
// argument lists the listen addresses of all parties, ordered by
// rank. The call blocks until the mesh is fully connected.
func NewTCP(rank int, addrs []string, session string) (*TCP, error) {
	mesh, err := p2p.NewMesh(rank, addrs, session)
	if err != nil {
		return nil, err
	}
	return newTCP(mesh), nil
}

func newTCP(mesh *p2p.Mesh) *TCP {
	return &TCP{
		frames: frames{
			rank:  mesh.Rank(),
			conns: mesh.Conns,
		},
		mesh: mesh,
	}
}

// Spawn creates an independent child context with its own mesh
// connections. All parties must spawn in lockstep.
func (t *TCP) Spawn() (Context, error) {
	child, err := t.mesh.Spawn()
	if err != nil {
		return nil, err
	}
	return newTCP(child), nil
}

// Close closes the mesh connections.
func (t *TCP) Close() error {
	return t.mesh.Close()
}
