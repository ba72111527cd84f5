//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package ring

import (
	"fmt"
)

// Array is a shaped array of ring elements. Elements are stored
// masked to the ring width.
type Array struct {
	R     Ring
	Shape Shape
	Elems []uint64
}

// New creates a zero array of the argument ring and shape.
func New(r Ring, shape Shape) (Array, error) {
	if !r.Valid() {
		return Array{}, ErrUnsupportedRing
	}
	if !shape.Valid() {
		return Array{}, fmt.Errorf("%w: %v", ErrShape, shape)
	}
	return Array{
		R:     r,
		Shape: shape.Clone(),
		Elems: make([]uint64, shape.Numel()),
	}, nil
}

// Clone returns an independent copy of the array.
func (a Array) Clone() Array {
	elems := make([]uint64, len(a.Elems))
	copy(elems, a.Elems)
	return Array{
		R:     a.R,
		Shape: a.Shape.Clone(),
		Elems: elems,
	}
}

func (a Array) compat(b Array) error {
	if a.R != b.R {
		return fmt.Errorf("%w: rings %v and %v", ErrMismatch, a.R, b.R)
	}
	if !a.Shape.Equal(b.Shape) {
		return fmt.Errorf("%w: shapes %v and %v", ErrMismatch,
			a.Shape, b.Shape)
	}
	return nil
}

// Add computes the elementwise sum a+b mod ring.
func Add(a, b Array) (Array, error) {
	if err := a.compat(b); err != nil {
		return Array{}, err
	}
	result := a.Clone()
	mask := a.R.Mask()
	for i, v := range b.Elems {
		result.Elems[i] = (result.Elems[i] + v) & mask
	}
	return result, nil
}

// Sub computes the elementwise difference a-b mod ring.
func Sub(a, b Array) (Array, error) {
	if err := a.compat(b); err != nil {
		return Array{}, err
	}
	result := a.Clone()
	mask := a.R.Mask()
	for i, v := range b.Elems {
		result.Elems[i] = (result.Elems[i] - v) & mask
	}
	return result, nil
}

// Mul computes the elementwise product a*b mod ring.
func Mul(a, b Array) (Array, error) {
	if err := a.compat(b); err != nil {
		return Array{}, err
	}
	result := a.Clone()
	mask := a.R.Mask()
	for i, v := range b.Elems {
		result.Elems[i] = (result.Elems[i] * v) & mask
	}
	return result, nil
}

// Xor computes the elementwise xor of a and b.
func Xor(a, b Array) (Array, error) {
	if err := a.compat(b); err != nil {
		return Array{}, err
	}
	result := a.Clone()
	for i, v := range b.Elems {
		result.Elems[i] ^= v
	}
	return result, nil
}

// And computes the elementwise bitwise and of a and b.
func And(a, b Array) (Array, error) {
	if err := a.compat(b); err != nil {
		return Array{}, err
	}
	result := a.Clone()
	for i, v := range b.Elems {
		result.Elems[i] &= v
	}
	return result, nil
}

// AddAssign adds b into a in-place, mod ring.
func (a Array) AddAssign(b Array) error {
	if err := a.compat(b); err != nil {
		return err
	}
	mask := a.R.Mask()
	for i, v := range b.Elems {
		a.Elems[i] = (a.Elems[i] + v) & mask
	}
	return nil
}

// XorAssign xors b into a in-place.
func (a Array) XorAssign(b Array) error {
	if err := a.compat(b); err != nil {
		return err
	}
	for i, v := range b.Elems {
		a.Elems[i] ^= v
	}
	return nil
}

// Neg computes the elementwise negation -a mod ring.
func Neg(a Array) Array {
	result := a.Clone()
	mask := a.R.Mask()
	for i, v := range result.Elems {
		result.Elems[i] = (-v) & mask
	}
	return result
}

// Lshift shifts each element left by bits, mod ring.
func Lshift(a Array, bits uint) Array {
	result := a.Clone()
	mask := a.R.Mask()
	for i, v := range result.Elems {
		result.Elems[i] = (v << bits) & mask
	}
	return result
}

// Rshift shifts each element logically right by bits.
func Rshift(a Array, bits uint) Array {
	result := a.Clone()
	for i, v := range result.Elems {
		result.Elems[i] = v >> bits
	}
	return result
}

// Arshift shifts each element arithmetically right by bits. The sign
// bit is the most significant bit of the ring width.
func Arshift(a Array, bits uint) Array {
	result := a.Clone()
	mask := a.R.Mask()
	if a.R == R32 {
		for i, v := range result.Elems {
			result.Elems[i] = uint64(uint32(int32(uint32(v))>>bits)) & mask
		}
	} else {
		for i, v := range result.Elems {
			result.Elems[i] = uint64(int64(v)>>bits) & mask
		}
	}
	return result
}

// Msb extracts the most significant bit of each element.
func Msb(a Array) Array {
	return Rshift(a, a.R.Width()-1)
}

// Dot computes the matrix product of a (m,k) and b (k,n), mod ring.
func Dot(a, b Array) (Array, error) {
	if a.R != b.R {
		return Array{}, fmt.Errorf("%w: rings %v and %v", ErrMismatch,
			a.R, b.R)
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 || a.Shape[1] != b.Shape[0] {
		return Array{}, fmt.Errorf("%w: dot shapes %v and %v", ErrMismatch,
			a.Shape, b.Shape)
	}
	m := a.Shape[0]
	k := a.Shape[1]
	n := b.Shape[1]

	result, err := New(a.R, Shape{m, n})
	if err != nil {
		return Array{}, err
	}
	mask := a.R.Mask()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum uint64
			for l := 0; l < k; l++ {
				sum += a.Elems[i*k+l] * b.Elems[l*n+j]
			}
			result.Elems[i*n+j] = sum & mask
		}
	}
	return result, nil
}

// Permute reorders the rank-1 array a by the index vector pv so that
// result[i] = a[pv[i]]. The vector must be a permutation of the
// array indices.
func Permute(a Array, pv []int64) (Array, error) {
	n := a.Shape.Numel()
	if len(pv) != n {
		return Array{}, fmt.Errorf("%w: %d indices for %d elements",
			ErrPermutation, len(pv), n)
	}
	seen := make([]bool, n)
	for _, idx := range pv {
		if idx < 0 || idx >= int64(n) || seen[idx] {
			return Array{}, fmt.Errorf("%w: index %d", ErrPermutation, idx)
		}
		seen[idx] = true
	}
	result := a.Clone()
	for i, idx := range pv {
		result.Elems[i] = a.Elems[idx]
	}
	return result, nil
}

// EqualZero computes the elementwise zero indicator: 1 where the
// element is 0 mod ring, 0 elsewhere.
func EqualZero(a Array) Array {
	result := a.Clone()
	for i, v := range result.Elems {
		if v == 0 {
			result.Elems[i] = 1
		} else {
			result.Elems[i] = 0
		}
	}
	return result
}

// RecOp specifies the share reconstruction operation.
type RecOp byte

// Reconstruction operations for arithmetic and boolean shares.
const (
	RecAdd RecOp = iota
	RecXor
)

// Reconstruct combines the argument shares into the secret value:
// the elementwise sum for arithmetic shares, xor for boolean shares.
func Reconstruct(op RecOp, shares ...Array) (Array, error) {
	if len(shares) == 0 {
		return Array{}, fmt.Errorf("%w: no shares", ErrMismatch)
	}
	result := shares[0].Clone()
	for _, share := range shares[1:] {
		var err error
		switch op {
		case RecAdd:
			err = result.AddAssign(share)
		case RecXor:
			err = result.XorAssign(share)
		default:
			err = fmt.Errorf("%w: reconstruct op %d", ErrMismatch, op)
		}
		if err != nil {
			return Array{}, err
		}
	}
	return result, nil
}
