//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package beaver

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/magic-hya/spu/prg"
	"github.com/magic-hya/spu/ring"
)

var (
	// ErrSeedList is returned when the gathered seed list is
	// incomplete or malformed.
	ErrSeedList = errors.New("beaver: invalid seed list")

	// ErrDescs is returned when the array descriptors of one
	// correlation are inconsistent.
	ErrDescs = errors.New("beaver: inconsistent descriptors")
)

// Dealer implements the trusted-party role of the generator: it
// holds every participant's seed and computes the corrections that
// make the reconstructed shares satisfy the primitive identities.
// Only the aggregator's generator holds a Dealer; the adjustment
// routines are unreachable from any other participant.
type Dealer struct {
	seeds []prg.Seed
}

// NewDealer creates a dealer from the gathered seed list, ordered by
// participant rank.
func NewDealer(bufs [][]byte) (*Dealer, error) {
	if len(bufs) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrSeedList)
	}
	seeds := make([]prg.Seed, len(bufs))
	for rank, buf := range bufs {
		if len(buf) != prg.SeedSize {
			return nil, fmt.Errorf("%w: rank %d sent %d seed bytes",
				ErrSeedList, rank, len(buf))
		}
		copy(seeds[rank][:], buf)
	}
	return &Dealer{
		seeds: seeds,
	}, nil
}

// NumParties returns the number of seeds the dealer holds.
func (d *Dealer) NumParties() int {
	return len(d.seeds)
}

// reconstruct re-derives every participant's array from the
// descriptor, substituting each rank's seed, and combines them with
// the argument reconstruction operation.
func (d *Dealer) reconstruct(op ring.RecOp, desc prg.Desc) (
	ring.Array, error) {

	shares := make([]ring.Array, len(d.seeds))
	for rank, seed := range d.seeds {
		arr, err := prg.ReplayWith(seed, desc)
		if err != nil {
			return ring.Array{}, err
		}
		shares[rank] = arr
	}
	return ring.Reconstruct(op, shares...)
}

// check validates the descriptor count and ring consistency of one
// correlation. If sameShape is set, all descriptors must also agree
// on the shape.
func check(descs []prg.Desc, count int, sameShape bool) error {
	if len(descs) != count {
		return fmt.Errorf("%w: %d descriptors, expected %d", ErrDescs,
			len(descs), count)
	}
	for _, desc := range descs[1:] {
		if desc.R != descs[0].R {
			return fmt.Errorf("%w: rings %v and %v", ErrDescs,
				descs[0].R, desc.R)
		}
		if sameShape && !desc.Shape.Equal(descs[0].Shape) {
			return fmt.Errorf("%w: shapes %v and %v", ErrDescs,
				descs[0].Shape, desc.Shape)
		}
	}
	return nil
}

// adjustMul computes the correction for an elementwise
// multiplication triple: R(a)*R(b) - R(c).
func (d *Dealer) adjustMul(descs []prg.Desc) (ring.Array, error) {
	if err := check(descs, 3, true); err != nil {
		return ring.Array{}, err
	}
	ra, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecAdd, descs[1])
	if err != nil {
		return ring.Array{}, err
	}
	rc, err := d.reconstruct(ring.RecAdd, descs[2])
	if err != nil {
		return ring.Array{}, err
	}
	prod, err := ring.Mul(ra, rb)
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Sub(prod, rc)
}

// adjustDot computes the correction for a matrix product triple:
// R(a) x R(b) - R(c).
func (d *Dealer) adjustDot(descs []prg.Desc) (ring.Array, error) {
	if err := check(descs, 3, false); err != nil {
		return ring.Array{}, err
	}
	if len(descs[0].Shape) != 2 || len(descs[1].Shape) != 2 ||
		len(descs[2].Shape) != 2 ||
		descs[0].Shape[1] != descs[1].Shape[0] ||
		descs[0].Shape[0] != descs[2].Shape[0] ||
		descs[1].Shape[1] != descs[2].Shape[1] {
		return ring.Array{}, fmt.Errorf("%w: dot shapes %v, %v, %v",
			ErrDescs, descs[0].Shape, descs[1].Shape, descs[2].Shape)
	}
	ra, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecAdd, descs[1])
	if err != nil {
		return ring.Array{}, err
	}
	rc, err := d.reconstruct(ring.RecAdd, descs[2])
	if err != nil {
		return ring.Array{}, err
	}
	prod, err := ring.Dot(ra, rb)
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Sub(prod, rc)
}

// adjustAnd computes the correction for a boolean AND triple:
// (R(a) & R(b)) ^ R(c) under xor reconstruction.
func (d *Dealer) adjustAnd(descs []prg.Desc) (ring.Array, error) {
	if err := check(descs, 3, true); err != nil {
		return ring.Array{}, err
	}
	ra, err := d.reconstruct(ring.RecXor, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecXor, descs[1])
	if err != nil {
		return ring.Array{}, err
	}
	rc, err := d.reconstruct(ring.RecXor, descs[2])
	if err != nil {
		return ring.Array{}, err
	}
	and, err := ring.And(ra, rb)
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Xor(and, rc)
}

// adjustTrunc computes the correction for a truncation pair:
// arshift(R(a), bits) - R(b).
func (d *Dealer) adjustTrunc(descs []prg.Desc, bits uint) (
	ring.Array, error) {

	if err := check(descs, 2, true); err != nil {
		return ring.Array{}, err
	}
	ra, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecAdd, descs[1])
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Sub(ring.Arshift(ra, bits), rb)
}

// adjustTruncPr computes the two corrections of the probabilistic
// truncation triple (r, rc, rb): the first makes rc reconstruct to
// (R(r)<<1)>>(bits+1), the truncation of r with the sign bit
// cleared; the second makes rb reconstruct to the sign bit of R(r).
func (d *Dealer) adjustTruncPr(descs []prg.Desc, bits uint) (
	ring.Array, ring.Array, error) {

	if err := check(descs, 3, true); err != nil {
		return ring.Array{}, ring.Array{}, err
	}
	rr, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, ring.Array{}, err
	}
	rc, err := d.reconstruct(ring.RecAdd, descs[1])
	if err != nil {
		return ring.Array{}, ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecAdd, descs[2])
	if err != nil {
		return ring.Array{}, ring.Array{}, err
	}
	adjustC, err := ring.Sub(ring.Rshift(ring.Lshift(rr, 1), bits+1), rc)
	if err != nil {
		return ring.Array{}, ring.Array{}, err
	}
	adjustB, err := ring.Sub(ring.Msb(rr), rb)
	if err != nil {
		return ring.Array{}, ring.Array{}, err
	}
	return adjustC, adjustB, nil
}

// adjustRandBit computes the correction for a random bit array: a
// fresh secret 0/1 array minus R(a).
func (d *Dealer) adjustRandBit(descs []prg.Desc) (ring.Array, error) {
	if err := check(descs, 1, true); err != nil {
		return ring.Array{}, err
	}
	ra, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	bits, err := randomBits(descs[0].R, descs[0].Shape)
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Sub(bits, ra)
}

// adjustPerm computes the correction for a permutation pair:
// permute(R(a), pv) - R(b).
func (d *Dealer) adjustPerm(descs []prg.Desc, pv []int64) (
	ring.Array, error) {

	if err := check(descs, 2, true); err != nil {
		return ring.Array{}, err
	}
	ra, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecAdd, descs[1])
	if err != nil {
		return ring.Array{}, err
	}
	perm, err := ring.Permute(ra, pv)
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Sub(perm, rb)
}

// adjustEqz computes the correction for a zero-test pair: the zero
// indicator of R(a) xored with the xor-reconstruction of b.
func (d *Dealer) adjustEqz(descs []prg.Desc) (ring.Array, error) {
	if err := check(descs, 2, true); err != nil {
		return ring.Array{}, err
	}
	ra, err := d.reconstruct(ring.RecAdd, descs[0])
	if err != nil {
		return ring.Array{}, err
	}
	rb, err := d.reconstruct(ring.RecXor, descs[1])
	if err != nil {
		return ring.Array{}, err
	}
	return ring.Xor(ring.EqualZero(ra), rb)
}

// randomBits draws a cryptographically secure 0/1 array.
func randomBits(r ring.Ring, shape ring.Shape) (ring.Array, error) {
	result, err := ring.New(r, shape)
	if err != nil {
		return ring.Array{}, err
	}
	buf := make([]byte, len(result.Elems))
	if _, err := rand.Read(buf); err != nil {
		return ring.Array{}, err
	}
	for i, b := range buf {
		result.Elems[i] = uint64(b & 1)
	}
	return result, nil
}
