//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package beaver

import (
	"encoding/binary"
	"fmt"

	"github.com/magic-hya/spu/prg"
	"github.com/magic-hya/spu/ring"
)

// permState is the state of one permutation pair exchange.
type permState byte

// The exchange proceeds LocalGenerate, AwaitVector, Adjust, Done.
// AwaitVector is the only suspension point: it is entered only by
// the aggregator when the permutation owner is a different
// participant, and by the owner, which sends its vector and moves
// on. Adjust is entered only by the aggregator.
const (
	permLocalGenerate permState = iota
	permAwaitVector
	permAdjust
	permDone
)

func (s permState) String() string {
	switch s {
	case permLocalGenerate:
		return "LocalGenerate"
	case permAwaitVector:
		return "AwaitVector"
	case permAdjust:
		return "Adjust"
	case permDone:
		return "Done"
	default:
		return fmt.Sprintf("{permState %d}", byte(s))
	}
}

// permExchange runs one permutation pair generation for one
// participant.
type permExchange struct {
	g     *Generator
	r     ring.Ring
	shape ring.Shape
	owner int
	vec   []int64
	state permState
	descs []prg.Desc
	pair  Pair
}

func (p *permExchange) run() (Pair, error) {
	for p.state != permDone {
		p.g.Debugf("G%s: perm: %v\n", p.g.IDString(), p.state)

		var err error
		switch p.state {
		case permLocalGenerate:
			err = p.localGenerate()

		case permAwaitVector:
			err = p.awaitVector()

		case permAdjust:
			err = p.adjust()
		}
		if err != nil {
			return Pair{}, err
		}
	}
	return p.pair, nil
}

// localGenerate generates the local shares of the pair. Every
// participant runs this state.
func (p *permExchange) localGenerate() error {
	p.descs = make([]prg.Desc, 2)

	a, err := p.g.newArray(p.r, p.shape, &p.descs[0])
	if err != nil {
		return err
	}
	b, err := p.g.newArray(p.r, p.shape, &p.descs[1])
	if err != nil {
		return err
	}
	p.pair = Pair{A: a, B: b}

	switch {
	case p.g.dealer != nil && p.owner != p.g.Rank():
		p.state = permAwaitVector
	case p.g.dealer != nil:
		// Aggregator owns the vector: no exchange.
		p.state = permAdjust
	case p.owner == p.g.Rank():
		p.state = permAwaitVector
	default:
		p.state = permDone
	}
	return nil
}

// awaitVector transfers the plaintext permutation vector from its
// owner to the aggregator. The owner sends and is done; the
// aggregator blocks until the vector arrives.
func (p *permExchange) awaitVector() error {
	if p.g.dealer != nil {
		buf, err := p.g.lctx.Recv(p.owner, tagPerm)
		if err != nil {
			return fmt.Errorf("beaver: perm vector: %w", err)
		}
		p.vec, err = decodePermVec(buf)
		if err != nil {
			return err
		}
		p.state = permAdjust
		return nil
	}

	err := p.g.lctx.Send(aggregatorRank, tagPerm, encodePermVec(p.vec))
	if err != nil {
		return fmt.Errorf("beaver: perm vector: %w", err)
	}
	p.state = permDone
	return nil
}

// adjust folds the permutation correction into the aggregator's b
// share.
func (p *permExchange) adjust() error {
	adjust, err := p.g.dealer.adjustPerm(p.descs, p.vec)
	if err != nil {
		return err
	}
	if err := p.pair.B.AddAssign(adjust); err != nil {
		return err
	}
	p.state = permDone
	return nil
}

func encodePermVec(vec []int64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.BigEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

func decodePermVec(buf []byte) ([]int64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("%w: %d vector bytes", ErrDescs, len(buf))
	}
	vec := make([]int64, len(buf)/8)
	for i := range vec {
		vec[i] = int64(binary.BigEndian.Uint64(buf[i*8:]))
	}
	return vec, nil
}
