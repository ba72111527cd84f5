//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package prg implements a deterministic pseudorandom generator for
// ring-valued arrays. The generator is a pure function of (seed,
// counter, ring, shape): identical inputs always produce identical
// arrays, so any holder of a party's seed can replay the party's
// generation from the array descriptor alone.
package prg

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20"

	"github.com/magic-hya/spu/ring"
)

// SeedSize is the seed size in bytes.
const SeedSize = chacha20.KeySize

var (
	// ErrCounterOverflow is returned when the counter position
	// exceeds the keystream length.
	ErrCounterOverflow = errors.New("prg: counter overflow")
)

// Seed is a pseudorandom generator seed.
type Seed [SeedSize]byte

// NewSeed draws a cryptographically secure random seed.
func NewSeed() (Seed, error) {
	var seed Seed
	_, err := rand.Read(seed[:])
	if err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// Desc describes one generated array: the generating seed, the ring
// and shape of the array, and the counter position at which the
// generation started. The counter range consumed is Counter to
// Counter+Shape.Numel().
type Desc struct {
	Seed    Seed
	R       ring.Ring
	Shape   ring.Shape
	Counter uint64
}

// NewArray generates a pseudorandom array of the argument ring and
// shape from the seed and counter position. It returns the array and
// its descriptor, and advances the counter by the number of elements
// generated.
func NewArray(seed Seed, r ring.Ring, shape ring.Shape, counter *uint64) (
	ring.Array, Desc, error) {

	desc := Desc{
		Seed:    seed,
		R:       r,
		Shape:   shape.Clone(),
		Counter: *counter,
	}
	arr, err := expand(seed, r, shape, *counter)
	if err != nil {
		return ring.Array{}, Desc{}, err
	}
	*counter += uint64(shape.Numel())

	return arr, desc, nil
}

// Replay recomputes the array the descriptor describes.
func Replay(desc Desc) (ring.Array, error) {
	return expand(desc.Seed, desc.R, desc.Shape, desc.Counter)
}

// ReplayWith recomputes the array the descriptor describes, but with
// the argument seed. It is used by the trusted party to re-derive
// other parties' arrays: all parties share the counter trajectory
// and differ only in their seeds.
func ReplayWith(seed Seed, desc Desc) (ring.Array, error) {
	return expand(seed, desc.R, desc.Shape, desc.Counter)
}

// expand generates shape.Numel() ring elements from the keystream,
// starting at the byte position counter*r.Bytes().
func expand(seed Seed, r ring.Ring, shape ring.Shape, counter uint64) (
	ring.Array, error) {

	arr, err := ring.New(r, shape)
	if err != nil {
		return ring.Array{}, err
	}

	// ChaCha20 counts 64-byte blocks; the element counter maps to a
	// byte offset into the keystream.
	const blockSize = 64
	size := r.Bytes()
	offset := counter * uint64(size)
	block := offset / blockSize
	skip := int(offset % blockSize)
	if block > math.MaxUint32 {
		return ring.Array{}, fmt.Errorf("%w: counter %d", ErrCounterOverflow,
			counter)
	}

	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		return ring.Array{}, err
	}
	cipher.SetCounter(uint32(block))

	buf := make([]byte, skip+shape.Numel()*size)
	cipher.XORKeyStream(buf, buf)
	buf = buf[skip:]

	mask := r.Mask()
	for i := range arr.Elems {
		var v uint64
		if r == ring.R32 {
			v = uint64(binary.LittleEndian.Uint32(buf[i*size:]))
		} else {
			v = binary.LittleEndian.Uint64(buf[i*size:])
		}
		arr.Elems[i] = v & mask
	}
	return arr, nil
}
