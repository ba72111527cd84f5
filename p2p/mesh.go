//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

const dialRetryDelay = 5 * time.Second

// Mesh implements a TCP connection mesh between ranked parties. Each
// party listens on its own address; for every pair of parties, the
// lower rank dials the higher rank. The connection handshake carries
// the dialer's rank and the mesh session name so that spawned
// sub-meshes can share the parent's listener.
type Mesh struct {
	rank    int
	addrs   []string
	session string
	acc     *acceptor
	root    bool
	spawns  int
	Conns   []*Conn
}

// NewMesh creates a TCP mesh for the party rank. The addrs argument
// lists the listen addresses of all parties, ordered by rank. The
// call blocks until the party is connected to all its peers.
func NewMesh(rank int, addrs []string, session string) (*Mesh, error) {
	if rank < 0 || rank >= len(addrs) {
		return nil, fmt.Errorf("p2p: invalid rank %d of %d", rank, len(addrs))
	}
	listener, err := net.Listen("tcp", addrs[rank])
	if err != nil {
		return nil, err
	}
	acc := &acceptor{
		listener: listener,
		pending:  make(map[string]chan *Conn),
	}
	go acc.acceptLoop()

	mesh := &Mesh{
		rank:    rank,
		addrs:   addrs,
		session: session,
		acc:     acc,
		root:    true,
	}
	if err := mesh.connect(); err != nil {
		mesh.Close()
		return nil, err
	}
	return mesh, nil
}

// Rank returns the party rank in the mesh.
func (mesh *Mesh) Rank() int {
	return mesh.rank
}

// Size returns the number of parties in the mesh.
func (mesh *Mesh) Size() int {
	return len(mesh.addrs)
}

// Conn returns the connection to the argument peer.
func (mesh *Mesh) Conn(peer int) *Conn {
	return mesh.Conns[peer]
}

// Spawn creates an independent sub-mesh between the same parties.
// All parties must spawn in the same order; the sub-mesh session
// names are derived from the spawn sequence so that matching calls
// connect to each other.
func (mesh *Mesh) Spawn() (*Mesh, error) {
	session := fmt.Sprintf("%s.%d", mesh.session, mesh.spawns)
	mesh.spawns++

	child := &Mesh{
		rank:    mesh.rank,
		addrs:   mesh.addrs,
		session: session,
		acc:     mesh.acc,
	}
	if err := child.connect(); err != nil {
		child.Close()
		return nil, err
	}
	return child, nil
}

// Stats returns the I/O statistics of the mesh connections.
func (mesh *Mesh) Stats() IOStats {
	result := NewIOStats()
	for _, conn := range mesh.Conns {
		if conn != nil {
			result = result.Add(conn.Stats)
		}
	}
	return result
}

// Close closes the mesh connections. The listener is closed only by
// the mesh that created it; spawned sub-meshes leave it open.
func (mesh *Mesh) Close() error {
	var err error
	for _, conn := range mesh.Conns {
		if conn != nil {
			if e := conn.Close(); e != nil && err == nil {
				err = e
			}
		}
	}
	if mesh.root {
		if e := mesh.acc.listener.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (mesh *Mesh) connect() error {
	mesh.Conns = make([]*Conn, len(mesh.addrs))
	for peer := 0; peer < len(mesh.addrs); peer++ {
		if peer == mesh.rank {
			continue
		}
		var conn *Conn
		var err error
		if mesh.rank < peer {
			conn, err = mesh.dial(peer)
		} else {
			conn, err = mesh.acc.wait(mesh.session, peer)
		}
		if err != nil {
			return err
		}
		mesh.Conns[peer] = conn
	}
	return nil
}

func (mesh *Mesh) dial(peer int) (*Conn, error) {
	for {
		nc, err := net.Dial("tcp", mesh.addrs[peer])
		if err != nil {
			log.Printf("mesh %d: connect to %s failed, retrying in %s",
				mesh.rank, mesh.addrs[peer], dialRetryDelay)
			<-time.After(dialRetryDelay)
			continue
		}
		conn := NewConn(nc)
		if err := conn.SendUint32(mesh.rank); err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.SendString(mesh.session); err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.Flush(); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// acceptor routes inbound connections to the meshes sharing the
// listener, keyed by the handshake (session, rank).
type acceptor struct {
	listener net.Listener
	mu       sync.Mutex
	pending  map[string]chan *Conn
}

func (acc *acceptor) channel(session string, rank int) chan *Conn {
	key := fmt.Sprintf("%s/%d", session, rank)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	ch, ok := acc.pending[key]
	if !ok {
		ch = make(chan *Conn, 1)
		acc.pending[key] = ch
	}
	return ch
}

func (acc *acceptor) wait(session string, rank int) (*Conn, error) {
	conn, ok := <-acc.channel(session, rank)
	if !ok || conn == nil {
		return nil, fmt.Errorf("p2p: accept failed for peer %d", rank)
	}
	return conn, nil
}

func (acc *acceptor) acceptLoop() {
	for {
		nc, err := acc.listener.Accept()
		if err != nil {
			return
		}
		conn := NewConn(nc)

		rank, err := conn.ReceiveUint32()
		if err != nil {
			log.Printf("mesh: handshake failed: %s", err)
			conn.Close()
			continue
		}
		session, err := conn.ReceiveString()
		if err != nil {
			log.Printf("mesh: handshake failed: %s", err)
			conn.Close()
			continue
		}
		acc.channel(session, rank) <- conn
	}
}
