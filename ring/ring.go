//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package ring implements fixed-width modular integer arithmetic
// over shaped arrays. Arithmetic shares live in Z_{2^w} and boolean
// shares in the same domain under xor; all operations mask their
// results to the ring width.
package ring

import (
	"errors"
	"fmt"
	"strings"
)

// Ring specifies the element width of a ring.
type Ring byte

// Supported rings.
const (
	R32 Ring = iota
	R64
)

var (
	// ErrUnsupportedRing is returned when the ring is not supported.
	ErrUnsupportedRing = errors.New("ring: unsupported ring")

	// ErrShape is returned when a shape has non-positive dimensions.
	ErrShape = errors.New("ring: invalid shape")

	// ErrMismatch is returned when operand rings or shapes disagree.
	ErrMismatch = errors.New("ring: operand mismatch")

	// ErrPermutation is returned when an index vector is not a
	// permutation of the array indices.
	ErrPermutation = errors.New("ring: invalid permutation")
)

// Valid tests if the ring is supported.
func (r Ring) Valid() bool {
	switch r {
	case R32, R64:
		return true
	default:
		return false
	}
}

// Width returns the ring element width in bits.
func (r Ring) Width() uint {
	switch r {
	case R32:
		return 32
	default:
		return 64
	}
}

// Bytes returns the ring element width in bytes.
func (r Ring) Bytes() int {
	return int(r.Width() / 8)
}

// Mask returns the bitmask covering one ring element.
func (r Ring) Mask() uint64 {
	if r == R64 {
		return 0xffffffffffffffff
	}
	return 1<<r.Width() - 1
}

func (r Ring) String() string {
	switch r {
	case R32:
		return "R32"
	case R64:
		return "R64"
	default:
		return fmt.Sprintf("{Ring %d}", byte(r))
	}
}

// Shape specifies the dimensions of an array of ring elements.
type Shape []int

// Valid tests if all shape dimensions are positive.
func (s Shape) Valid() bool {
	if len(s) == 0 {
		return false
	}
	for _, d := range s {
		if d <= 0 {
			return false
		}
	}
	return true
}

// Numel returns the number of elements the shape contains.
func (s Shape) Numel() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal tests if the shapes are equal.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i, d := range s {
		if d != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	result := make(Shape, len(s))
	copy(result, s)
	return result
}

func (s Shape) String() string {
	var sb strings.Builder
	sb.WriteRune('(')
	for i, d := range s {
		if i > 0 {
			sb.WriteRune(',')
		}
		fmt.Fprintf(&sb, "%d", d)
	}
	sb.WriteRune(')')
	return sb.String()
}
