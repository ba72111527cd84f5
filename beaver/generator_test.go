//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package beaver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magic-hya/spu/link"
	"github.com/magic-hya/spu/ring"
)

// newGenerators constructs one generator per party over an
// in-process network. Construction runs in parallel since the seed
// gather blocks the aggregator until every party has contributed.
func newGenerators(t *testing.T, n int) []*Generator {
	t.Helper()

	ctxs := link.NewLocal(n)
	gens := make([]*Generator, n)

	parallel(t, n, func(rank int) error {
		g, err := New(ctxs[rank])
		if err != nil {
			return err
		}
		gens[rank] = g
		return nil
	})
	return gens
}

func parallel(t *testing.T, n int, fn func(rank int) error) {
	t.Helper()

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = fn(rank)
		}(i)
	}
	wg.Wait()
	for rank, err := range errs {
		require.NoError(t, err, "party %d", rank)
	}
}

func reconstruct(t *testing.T, op ring.RecOp, shares []ring.Array) ring.Array {
	t.Helper()
	result, err := ring.Reconstruct(op, shares...)
	require.NoError(t, err)
	return result
}

func column(triples []Triple, sel func(Triple) ring.Array) []ring.Array {
	result := make([]ring.Array, len(triples))
	for i, triple := range triples {
		result[i] = sel(triple)
	}
	return result
}

func TestMul(t *testing.T) {
	for _, r := range []ring.Ring{ring.R32, ring.R64} {
		for _, n := range []int{1, 2, 3} {
			gens := newGenerators(t, n)
			triples := make([]Triple, n)

			parallel(t, n, func(rank int) error {
				triple, err := gens[rank].Mul(r, ring.Shape{3, 4})
				triples[rank] = triple
				return err
			})

			ra := reconstruct(t, ring.RecAdd,
				column(triples, func(tr Triple) ring.Array { return tr.A }))
			rb := reconstruct(t, ring.RecAdd,
				column(triples, func(tr Triple) ring.Array { return tr.B }))
			rc := reconstruct(t, ring.RecAdd,
				column(triples, func(tr Triple) ring.Array { return tr.C }))

			prod, err := ring.Mul(ra, rb)
			require.NoError(t, err)
			require.Equal(t, prod.Elems, rc.Elems,
				"ring %v, %d parties", r, n)
		}
	}
}

func TestMulManyTrials(t *testing.T) {
	const trials = 1000

	gens := newGenerators(t, 2)
	triples := make([]Triple, 2)

	for trial := 0; trial < trials; trial++ {
		parallel(t, 2, func(rank int) error {
			triple, err := gens[rank].Mul(ring.R64, ring.Shape{4})
			triples[rank] = triple
			return err
		})
		ra, err := ring.Add(triples[0].A, triples[1].A)
		require.NoError(t, err)
		rb, err := ring.Add(triples[0].B, triples[1].B)
		require.NoError(t, err)
		rc, err := ring.Add(triples[0].C, triples[1].C)
		require.NoError(t, err)

		prod, err := ring.Mul(ra, rb)
		require.NoError(t, err)
		require.Equal(t, prod.Elems, rc.Elems, "trial %d", trial)
	}
}

func TestDot(t *testing.T) {
	const m, n, k = 3, 5, 4

	gens := newGenerators(t, 3)
	triples := make([]Triple, 3)

	parallel(t, 3, func(rank int) error {
		triple, err := gens[rank].Dot(ring.R64, m, n, k)
		triples[rank] = triple
		return err
	})

	ra := reconstruct(t, ring.RecAdd,
		column(triples, func(tr Triple) ring.Array { return tr.A }))
	rb := reconstruct(t, ring.RecAdd,
		column(triples, func(tr Triple) ring.Array { return tr.B }))
	rc := reconstruct(t, ring.RecAdd,
		column(triples, func(tr Triple) ring.Array { return tr.C }))

	require.Equal(t, ring.Shape{m, k}, ra.Shape)
	require.Equal(t, ring.Shape{k, n}, rb.Shape)
	require.Equal(t, ring.Shape{m, n}, rc.Shape)

	prod, err := ring.Dot(ra, rb)
	require.NoError(t, err)
	require.Equal(t, prod.Elems, rc.Elems)
}

func TestAnd(t *testing.T) {
	gens := newGenerators(t, 3)
	triples := make([]Triple, 3)

	parallel(t, 3, func(rank int) error {
		triple, err := gens[rank].And(ring.R64, ring.Shape{16})
		triples[rank] = triple
		return err
	})

	ra := reconstruct(t, ring.RecXor,
		column(triples, func(tr Triple) ring.Array { return tr.A }))
	rb := reconstruct(t, ring.RecXor,
		column(triples, func(tr Triple) ring.Array { return tr.B }))
	rc := reconstruct(t, ring.RecXor,
		column(triples, func(tr Triple) ring.Array { return tr.C }))

	and, err := ring.And(ra, rb)
	require.NoError(t, err)
	require.Equal(t, and.Elems, rc.Elems)
}

func TestTrunc(t *testing.T) {
	const bits = 13

	for _, r := range []ring.Ring{ring.R32, ring.R64} {
		gens := newGenerators(t, 2)
		pairs := make([]Pair, 2)

		parallel(t, 2, func(rank int) error {
			pair, err := gens[rank].Trunc(r, ring.Shape{8}, bits)
			pairs[rank] = pair
			return err
		})

		ra, err := ring.Add(pairs[0].A, pairs[1].A)
		require.NoError(t, err)
		rb, err := ring.Add(pairs[0].B, pairs[1].B)
		require.NoError(t, err)

		require.Equal(t, ring.Arshift(ra, bits).Elems, rb.Elems,
			"ring %v", r)
	}
}

func TestTruncPr(t *testing.T) {
	const bits = 7

	gens := newGenerators(t, 3)
	triples := make([]Triple, 3)

	parallel(t, 3, func(rank int) error {
		triple, err := gens[rank].TruncPr(ring.R64, ring.Shape{8}, bits)
		triples[rank] = triple
		return err
	})

	rr := reconstruct(t, ring.RecAdd,
		column(triples, func(tr Triple) ring.Array { return tr.A }))
	rc := reconstruct(t, ring.RecAdd,
		column(triples, func(tr Triple) ring.Array { return tr.B }))
	rb := reconstruct(t, ring.RecAdd,
		column(triples, func(tr Triple) ring.Array { return tr.C }))

	// rc is the truncation of r with the sign bit cleared, rb the
	// sign bit of r.
	require.Equal(t, ring.Rshift(ring.Lshift(rr, 1), bits+1).Elems,
		rc.Elems)
	require.Equal(t, ring.Msb(rr).Elems, rb.Elems)
}

func TestRandBit(t *testing.T) {
	const trials = 20

	gens := newGenerators(t, 3)
	arrs := make([]ring.Array, 3)

	for trial := 0; trial < trials; trial++ {
		parallel(t, 3, func(rank int) error {
			arr, err := gens[rank].RandBit(ring.R64, ring.Shape{32})
			arrs[rank] = arr
			return err
		})
		rec := reconstruct(t, ring.RecAdd, arrs)
		for i, v := range rec.Elems {
			require.LessOrEqual(t, v, uint64(1),
				"trial %d, element %d", trial, i)
		}
	}
}

func TestEqz(t *testing.T) {
	gens := newGenerators(t, 3)
	pairs := make([]Pair, 3)

	parallel(t, 3, func(rank int) error {
		pair, err := gens[rank].Eqz(ring.R64, ring.Shape{16})
		pairs[rank] = pair
		return err
	})

	var as, bs []ring.Array
	for _, pair := range pairs {
		as = append(as, pair.A)
		bs = append(bs, pair.B)
	}
	ra := reconstruct(t, ring.RecAdd, as)
	rb := reconstruct(t, ring.RecXor, bs)

	require.Equal(t, ring.EqualZero(ra).Elems, rb.Elems)
}

func testPermPair(t *testing.T, owner int) {
	const n = 3

	// Reversal permutation of 8 elements.
	pv := []int64{7, 6, 5, 4, 3, 2, 1, 0}

	gens := newGenerators(t, n)
	pairs := make([]Pair, n)

	parallel(t, n, func(rank int) error {
		var vec []int64
		if rank == owner {
			vec = pv
		}
		pair, err := gens[rank].PermPair(ring.R64, ring.Shape{8},
			owner, vec)
		pairs[rank] = pair
		return err
	})

	var as, bs []ring.Array
	for _, pair := range pairs {
		as = append(as, pair.A)
		bs = append(bs, pair.B)
	}
	ra := reconstruct(t, ring.RecAdd, as)
	rb := reconstruct(t, ring.RecAdd, bs)

	perm, err := ring.Permute(ra, pv)
	require.NoError(t, err)
	require.Equal(t, perm.Elems, rb.Elems)
}

func TestPermPairAggregatorOwner(t *testing.T) {
	testPermPair(t, 0)
}

func TestPermPairRemoteOwner(t *testing.T) {
	testPermPair(t, 2)
}

func TestCounterMonotonic(t *testing.T) {
	gens := newGenerators(t, 2)

	parallel(t, 2, func(rank int) error {
		g := gens[rank]
		require.Equal(t, uint64(0), g.Counter())

		_, err := g.Mul(ring.R64, ring.Shape{3, 4})
		if err != nil {
			return err
		}
		require.Equal(t, uint64(3*12), g.Counter())

		_, err = g.Trunc(ring.R64, ring.Shape{5}, 2)
		if err != nil {
			return err
		}
		require.Equal(t, uint64(3*12+2*5), g.Counter())

		_, err = g.RandBit(ring.R32, ring.Shape{7})
		if err != nil {
			return err
		}
		require.Equal(t, uint64(3*12+2*5+7), g.Counter())
		return nil
	})
}

func TestSpawn(t *testing.T) {
	const n = 2

	gens := newGenerators(t, n)
	children := make([]*Generator, n)
	parents := make([]Triple, n)
	spawned := make([]Triple, n)

	parallel(t, n, func(rank int) error {
		child, err := gens[rank].Spawn()
		if err != nil {
			return err
		}
		children[rank] = child

		parents[rank], err = gens[rank].Mul(ring.R64, ring.Shape{8})
		if err != nil {
			return err
		}
		spawned[rank], err = child.Mul(ring.R64, ring.Shape{8})
		if err != nil {
			return err
		}

		// The child's calls do not advance the parent's counter.
		before := gens[rank].Counter()
		_, err = child.RandBit(ring.R64, ring.Shape{4})
		if err != nil {
			return err
		}
		require.Equal(t, before, gens[rank].Counter())
		return nil
	})

	for rank := 0; rank < n; rank++ {
		// Independent seeds: the corresponding arrays never match.
		require.NotEqual(t, parents[rank].A.Elems, spawned[rank].A.Elems)
	}

	// The spawned generators still produce valid triples.
	var as, bs, cs []ring.Array
	for _, triple := range spawned {
		as = append(as, triple.A)
		bs = append(bs, triple.B)
		cs = append(cs, triple.C)
	}
	ra := reconstruct(t, ring.RecAdd, as)
	rb := reconstruct(t, ring.RecAdd, bs)
	rc := reconstruct(t, ring.RecAdd, cs)

	prod, err := ring.Mul(ra, rb)
	require.NoError(t, err)
	require.Equal(t, prod.Elems, rc.Elems)
}

func TestValidation(t *testing.T) {
	gens := newGenerators(t, 2)

	parallel(t, 2, func(rank int) error {
		g := gens[rank]

		_, err := g.Mul(ring.R64, ring.Shape{0, 4})
		require.ErrorIs(t, err, ring.ErrShape)

		_, err = g.Mul(ring.Ring(99), ring.Shape{4})
		require.ErrorIs(t, err, ring.ErrUnsupportedRing)

		_, err = g.Dot(ring.R64, 3, -1, 4)
		require.ErrorIs(t, err, ErrDim)

		_, err = g.Trunc(ring.R32, ring.Shape{4}, 32)
		require.ErrorIs(t, err, ErrBits)

		_, err = g.TruncPr(ring.R64, ring.Shape{4}, 64)
		require.ErrorIs(t, err, ErrBits)

		_, err = g.PermPair(ring.R64, ring.Shape{4}, 7, nil)
		require.ErrorIs(t, err, link.ErrRank)

		if g.Rank() == 0 {
			_, err = g.PermPair(ring.R64, ring.Shape{4}, 0,
				[]int64{0, 1})
			require.ErrorIs(t, err, ring.ErrPermutation)
		}

		// Failed validation does not advance the counter.
		require.Equal(t, uint64(0), g.Counter())
		return nil
	})
}
