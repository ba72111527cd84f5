//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Command beaverd generates Beaver correlations either for all
// parties inside one process or as one party of a TCP mesh:
//
//	beaverd -n 3 -count 100
//	beaverd -rank 0 -peers :8080,:8081 -count 100
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/magic-hya/spu/beaver"
	"github.com/magic-hya/spu/link"
	"github.com/magic-hya/spu/ring"
)

var verbose bool

func main() {
	n := flag.Int("n", 3, "number of in-process parties")
	count := flag.Int("count", 10, "number of generation rounds")
	size := flag.Int("size", 1024, "number of elements per array")
	ringName := flag.String("ring", "r64", "ring (r32, r64)")
	rank := flag.Int("rank", -1, "party rank in TCP mode")
	peers := flag.String("peers", "", "comma-separated peer addresses")
	fVerbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	verbose = *fVerbose

	var r ring.Ring
	switch *ringName {
	case "r32":
		r = ring.R32
	case "r64":
		r = ring.R64
	default:
		log.Fatalf("unknown ring: %s", *ringName)
	}

	if len(*peers) > 0 {
		addrs := strings.Split(*peers, ",")
		if *rank < 0 || *rank >= len(addrs) {
			log.Fatalf("invalid rank %d for %d peers", *rank, len(addrs))
		}
		lctx, err := link.NewTCP(*rank, addrs, "beaverd")
		if err != nil {
			log.Fatalf("connect: %s", err)
		}
		defer lctx.Close()

		if err := run(lctx, r, *count, *size); err != nil {
			log.Fatalf("run: %s", err)
		}
		return
	}

	// In-process mode: all parties in one process over memory pipes.
	ctxs := link.NewLocal(*n)

	var wg sync.WaitGroup
	for i := 0; i < *n; i++ {
		wg.Add(1)
		go func(lctx link.Context) {
			defer wg.Done()
			if err := run(lctx, r, *count, *size); err != nil {
				log.Fatalf("party %d: %s", lctx.Rank(), err)
			}
		}(ctxs[i])
	}
	wg.Wait()
}

func run(lctx link.Context, r ring.Ring, count, size int) error {
	gen, err := beaver.New(lctx)
	if err != nil {
		return err
	}
	gen.Verbose = verbose

	timing := beaver.NewTiming()
	shape := ring.Shape{size}
	elements := fmt.Sprintf("%d", count*size)

	for i := 0; i < count; i++ {
		if _, err := gen.Mul(r, shape); err != nil {
			return err
		}
	}
	timing.Sample("Mul", []string{elements})

	for i := 0; i < count; i++ {
		if _, err := gen.Dot(r, 16, 16, size/16+1); err != nil {
			return err
		}
	}
	timing.Sample("Dot", []string{elements})

	for i := 0; i < count; i++ {
		if _, err := gen.And(r, shape); err != nil {
			return err
		}
	}
	timing.Sample("And", []string{elements})

	for i := 0; i < count; i++ {
		if _, err := gen.Trunc(r, shape, 13); err != nil {
			return err
		}
	}
	timing.Sample("Trunc", []string{elements})

	for i := 0; i < count; i++ {
		if _, err := gen.TruncPr(r, shape, 13); err != nil {
			return err
		}
	}
	timing.Sample("TruncPr", []string{elements})

	for i := 0; i < count; i++ {
		if _, err := gen.RandBit(r, shape); err != nil {
			return err
		}
	}
	timing.Sample("RandBit", []string{elements})

	owner := lctx.WorldSize() - 1
	pv := make([]int64, size)
	for i := range pv {
		pv[i] = int64(size - 1 - i)
	}
	for i := 0; i < count; i++ {
		var vec []int64
		if lctx.Rank() == owner {
			vec = pv
		}
		if _, err := gen.PermPair(r, shape, owner, vec); err != nil {
			return err
		}
	}
	timing.Sample("PermPair", []string{elements})

	for i := 0; i < count; i++ {
		if _, err := gen.Eqz(r, shape); err != nil {
			return err
		}
	}
	timing.Sample("Eqz", []string{elements})

	if lctx.Rank() == 0 {
		fmt.Printf("%d parties, ring %v, %d rounds of %d elements\n",
			lctx.WorldSize(), r, count, size)
		timing.Print(lctx.Stats())
	}
	return nil
}
