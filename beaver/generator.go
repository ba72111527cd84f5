//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package beaver generates the correlated randomness consumed by
// semi-honest MPC evaluation: Beaver triples and related
// secret-shared correlations. Every party runs a deterministic
// pseudorandom generator over its own seed; rank 0 additionally acts
// as the trusted aggregator which knows every party's seed and
// corrects its own shares so that the reconstructed values satisfy
// the primitive's algebraic identity.
//
// The aggregator's possession of all seeds is a deliberate
// semi-honest trust assumption, not an oversight: this generator
// provides no security against a dishonest rank 0.
package beaver

import (
	"errors"
	"fmt"

	"github.com/markkurossi/text/superscript"

	"github.com/magic-hya/spu/link"
	"github.com/magic-hya/spu/prg"
	"github.com/magic-hya/spu/ring"
)

// Exchange tags of the generator protocol.
const (
	tagSyncSeeds = "BEAVER_TFP:SYNC_SEEDS"
	tagPerm      = "BEAVER_TFP:PERM"
)

// aggregatorRank is the rank of the trusted aggregator. The role is
// fixed by the protocol and not configurable.
const aggregatorRank = 0

var (
	// ErrBits is returned when a shift amount does not fit the ring.
	ErrBits = errors.New("beaver: invalid bit count")

	// ErrDim is returned when a dot dimension is non-positive.
	ErrDim = errors.New("beaver: invalid dimension")
)

// Triple contains this party's shares of one triple correlation.
type Triple struct {
	A ring.Array
	B ring.Array
	C ring.Array
}

// Pair contains this party's shares of one pair correlation.
type Pair struct {
	A ring.Array
	B ring.Array
}

// Generator generates correlated randomness for one participant. A
// generator is exclusively owned by its participant: it is not safe
// for concurrent use. All participants must invoke the generation
// operations in the same order with the same parameters; the seed
// counters advance in lockstep and are never reset.
type Generator struct {
	Verbose bool
	lctx    link.Context
	seed    prg.Seed
	counter uint64
	dealer  *Dealer
}

// New creates a generator bound to the argument communication
// context. Each participant draws a fresh seed; the seeds are
// collected at the aggregator with a one-time gather. No generation
// operation may run before New returns.
func New(lctx link.Context) (*Generator, error) {
	seed, err := prg.NewSeed()
	if err != nil {
		return nil, err
	}
	bufs, err := lctx.Gather(aggregatorRank, tagSyncSeeds, seed[:])
	if err != nil {
		return nil, fmt.Errorf("beaver: seed synchronization: %w", err)
	}
	gen := &Generator{
		lctx: lctx,
		seed: seed,
	}
	if lctx.Rank() == aggregatorRank {
		gen.dealer, err = NewDealer(bufs)
		if err != nil {
			return nil, err
		}
	}
	return gen, nil
}

// Rank returns the participant rank.
func (g *Generator) Rank() int {
	return g.lctx.Rank()
}

// WorldSize returns the number of participants.
func (g *Generator) WorldSize() int {
	return g.lctx.WorldSize()
}

// Counter returns the generator's element counter.
func (g *Generator) Counter() uint64 {
	return g.counter
}

// IDString returns the participant rank as string.
func (g *Generator) IDString() string {
	return superscript.Itoa(g.lctx.Rank())
}

// Debugf prints a debugging message if verbose output is enabled.
func (g *Generator) Debugf(format string, a ...interface{}) {
	if !g.Verbose {
		return
	}
	fmt.Printf(format, a...)
}

// newArray generates one pseudorandom array and records its
// descriptor, advancing the counter.
func (g *Generator) newArray(r ring.Ring, shape ring.Shape,
	desc *prg.Desc) (ring.Array, error) {

	arr, d, err := prg.NewArray(g.seed, r, shape, &g.counter)
	if err != nil {
		return ring.Array{}, err
	}
	*desc = d
	return arr, nil
}

func checkShape(r ring.Ring, shape ring.Shape) error {
	if !r.Valid() {
		return ring.ErrUnsupportedRing
	}
	if !shape.Valid() {
		return fmt.Errorf("%w: %v", ring.ErrShape, shape)
	}
	return nil
}

// Mul generates shares of a multiplication triple: the reconstructed
// c is the elementwise product of the reconstructed a and b.
func (g *Generator) Mul(r ring.Ring, shape ring.Shape) (Triple, error) {
	if err := checkShape(r, shape); err != nil {
		return Triple{}, err
	}
	descs := make([]prg.Desc, 3)

	a, err := g.newArray(r, shape, &descs[0])
	if err != nil {
		return Triple{}, err
	}
	b, err := g.newArray(r, shape, &descs[1])
	if err != nil {
		return Triple{}, err
	}
	c, err := g.newArray(r, shape, &descs[2])
	if err != nil {
		return Triple{}, err
	}

	if g.dealer != nil {
		adjust, err := g.dealer.adjustMul(descs)
		if err != nil {
			return Triple{}, err
		}
		if err := c.AddAssign(adjust); err != nil {
			return Triple{}, err
		}
	}
	g.Debugf("G%s: Mul %v %v\n", g.IDString(), r, shape)

	return Triple{A: a, B: b, C: c}, nil
}

// Dot generates shares of a matrix product triple: a is (m,k), b is
// (k,n), and the reconstructed c (m,n) is the matrix product of the
// reconstructed operands.
func (g *Generator) Dot(r ring.Ring, m, n, k int) (Triple, error) {
	if !r.Valid() {
		return Triple{}, ring.ErrUnsupportedRing
	}
	if m <= 0 || n <= 0 || k <= 0 {
		return Triple{}, fmt.Errorf("%w: m=%d, n=%d, k=%d", ErrDim, m, n, k)
	}
	descs := make([]prg.Desc, 3)

	a, err := g.newArray(r, ring.Shape{m, k}, &descs[0])
	if err != nil {
		return Triple{}, err
	}
	b, err := g.newArray(r, ring.Shape{k, n}, &descs[1])
	if err != nil {
		return Triple{}, err
	}
	c, err := g.newArray(r, ring.Shape{m, n}, &descs[2])
	if err != nil {
		return Triple{}, err
	}

	if g.dealer != nil {
		adjust, err := g.dealer.adjustDot(descs)
		if err != nil {
			return Triple{}, err
		}
		if err := c.AddAssign(adjust); err != nil {
			return Triple{}, err
		}
	}
	g.Debugf("G%s: Dot %v m=%d, n=%d, k=%d\n", g.IDString(), r, m, n, k)

	return Triple{A: a, B: b, C: c}, nil
}

// And generates shares of a boolean AND triple: the xor-reconstructed
// c is the bitwise AND of the xor-reconstructed a and b.
func (g *Generator) And(r ring.Ring, shape ring.Shape) (Triple, error) {
	if err := checkShape(r, shape); err != nil {
		return Triple{}, err
	}
	descs := make([]prg.Desc, 3)

	a, err := g.newArray(r, shape, &descs[0])
	if err != nil {
		return Triple{}, err
	}
	b, err := g.newArray(r, shape, &descs[1])
	if err != nil {
		return Triple{}, err
	}
	c, err := g.newArray(r, shape, &descs[2])
	if err != nil {
		return Triple{}, err
	}

	if g.dealer != nil {
		adjust, err := g.dealer.adjustAnd(descs)
		if err != nil {
			return Triple{}, err
		}
		if err := c.XorAssign(adjust); err != nil {
			return Triple{}, err
		}
	}
	g.Debugf("G%s: And %v %v\n", g.IDString(), r, shape)

	return Triple{A: a, B: b, C: c}, nil
}

// Trunc generates shares of a truncation pair: the reconstructed b
// is the reconstructed a arithmetically shifted right by bits.
func (g *Generator) Trunc(r ring.Ring, shape ring.Shape, bits uint) (
	Pair, error) {

	if err := checkShape(r, shape); err != nil {
		return Pair{}, err
	}
	if bits >= r.Width() {
		return Pair{}, fmt.Errorf("%w: %d bits in %v", ErrBits, bits, r)
	}
	descs := make([]prg.Desc, 2)

	a, err := g.newArray(r, shape, &descs[0])
	if err != nil {
		return Pair{}, err
	}
	b, err := g.newArray(r, shape, &descs[1])
	if err != nil {
		return Pair{}, err
	}

	if g.dealer != nil {
		adjust, err := g.dealer.adjustTrunc(descs, bits)
		if err != nil {
			return Pair{}, err
		}
		if err := b.AddAssign(adjust); err != nil {
			return Pair{}, err
		}
	}
	g.Debugf("G%s: Trunc %v %v bits=%d\n", g.IDString(), r, shape, bits)

	return Pair{A: a, B: b}, nil
}

// TruncPr generates shares of a probabilistic truncation triple
// (r, rc, rb): rc reconstructs to the truncation of r with the sign
// bit cleared, and rb reconstructs to the sign bit of r. Together
// they let the consuming protocol truncate with a probabilistic
// rounding error of at most one unit in the last place.
func (g *Generator) TruncPr(r ring.Ring, shape ring.Shape, bits uint) (
	Triple, error) {

	if err := checkShape(r, shape); err != nil {
		return Triple{}, err
	}
	if bits >= r.Width() {
		return Triple{}, fmt.Errorf("%w: %d bits in %v", ErrBits, bits, r)
	}
	descs := make([]prg.Desc, 3)

	rnd, err := g.newArray(r, shape, &descs[0])
	if err != nil {
		return Triple{}, err
	}
	rc, err := g.newArray(r, shape, &descs[1])
	if err != nil {
		return Triple{}, err
	}
	rb, err := g.newArray(r, shape, &descs[2])
	if err != nil {
		return Triple{}, err
	}

	if g.dealer != nil {
		adjustC, adjustB, err := g.dealer.adjustTruncPr(descs, bits)
		if err != nil {
			return Triple{}, err
		}
		if err := rc.AddAssign(adjustC); err != nil {
			return Triple{}, err
		}
		if err := rb.AddAssign(adjustB); err != nil {
			return Triple{}, err
		}
	}
	g.Debugf("G%s: TruncPr %v %v bits=%d\n", g.IDString(), r, shape, bits)

	return Triple{A: rnd, B: rc, C: rb}, nil
}

// RandBit generates shares of a random bit array: every element
// reconstructs to 0 or 1 in the ring representation.
func (g *Generator) RandBit(r ring.Ring, shape ring.Shape) (
	ring.Array, error) {

	if err := checkShape(r, shape); err != nil {
		return ring.Array{}, err
	}
	descs := make([]prg.Desc, 1)

	a, err := g.newArray(r, shape, &descs[0])
	if err != nil {
		return ring.Array{}, err
	}

	if g.dealer != nil {
		adjust, err := g.dealer.adjustRandBit(descs)
		if err != nil {
			return ring.Array{}, err
		}
		if err := a.AddAssign(adjust); err != nil {
			return ring.Array{}, err
		}
	}
	g.Debugf("G%s: RandBit %v %v\n", g.IDString(), r, shape)

	return a, nil
}

// Eqz generates shares of a zero-test pair: a is an arithmetic
// share and the xor-reconstructed b is 1 where the reconstructed a
// is 0 mod ring, 0 elsewhere.
func (g *Generator) Eqz(r ring.Ring, shape ring.Shape) (Pair, error) {
	if err := checkShape(r, shape); err != nil {
		return Pair{}, err
	}
	descs := make([]prg.Desc, 2)

	a, err := g.newArray(r, shape, &descs[0])
	if err != nil {
		return Pair{}, err
	}
	b, err := g.newArray(r, shape, &descs[1])
	if err != nil {
		return Pair{}, err
	}

	if g.dealer != nil {
		adjust, err := g.dealer.adjustEqz(descs)
		if err != nil {
			return Pair{}, err
		}
		if err := b.XorAssign(adjust); err != nil {
			return Pair{}, err
		}
	}
	g.Debugf("G%s: Eqz %v %v\n", g.IDString(), r, shape)

	return Pair{A: a, B: b}, nil
}

// PermPair generates shares of a permutation pair: the reconstructed
// b is the reconstructed a reordered by the owner's permutation
// vector. Only the owner supplies permVec; the vector travels to the
// aggregator over a tagged point-to-point exchange and is never
// revealed to the other participants.
func (g *Generator) PermPair(r ring.Ring, shape ring.Shape, permRank int,
	permVec []int64) (Pair, error) {

	if err := checkShape(r, shape); err != nil {
		return Pair{}, err
	}
	if permRank < 0 || permRank >= g.lctx.WorldSize() {
		return Pair{}, fmt.Errorf("%w: owner %d", link.ErrRank, permRank)
	}
	if g.lctx.Rank() == permRank && len(permVec) != shape.Numel() {
		return Pair{}, fmt.Errorf("%w: %d indices for %d elements",
			ring.ErrPermutation, len(permVec), shape.Numel())
	}
	exch := &permExchange{
		g:     g,
		r:     r,
		shape: shape,
		owner: permRank,
		vec:   permVec,
	}
	pair, err := exch.run()
	if err != nil {
		return Pair{}, err
	}
	g.Debugf("G%s: PermPair %v %v owner=%d\n", g.IDString(), r, shape,
		permRank)

	return pair, nil
}

// Spawn creates a structurally independent child generator over a
// sub-context of the communication layer. The child draws its own
// seed and starts from a zero counter; parent and child share no
// mutable state.
func (g *Generator) Spawn() (*Generator, error) {
	sub, err := g.lctx.Spawn()
	if err != nil {
		return nil, err
	}
	return New(sub)
}
