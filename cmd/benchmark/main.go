package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ilfeat/internal/adapter/cache"
	"ilfeat/internal/adapter/descriptor"
	"ilfeat/internal/adapter/geometry"
	"ilfeat/internal/adapter/memstore"
	"ilfeat/internal/domain"
	"ilfeat/internal/usecase"
)

var (
	cations = []string{
		"CC[n+]1ccn(C)c1",
		"CCCC[n+]1ccn(C)c1",
		"CCCCCC[n+]1ccn(C)c1",
		"CCCC[n+]1ccccc1",
		"CCCC[N+]1(C)CCCC1",
		"CCCC[N+](C)(C)C",
	}
	anions = []string{
		"[Cl-]",
		"[B-](F)(F)(F)F",
		"O=S(=O)([N-]S(=O)(=O)C(F)(F)F)C(F)(F)F",
		"CC(=O)[O-]",
	}
)

func main() {
	generators := flag.String("g", strings.Join(descriptor.DefaultGenerators, ","), "Comma-separated generators")
	workers := flag.Int("w", 4, "Parallel workers")
	rounds := flag.Int("n", 2, "Passes over the ion pairs (the first is cold)")
	flag.Parse()

	if *rounds < 1 {
		fmt.Println("Usage: go run cmd/benchmark/main.go -g topological,geometric -w 4 -n 2")
		os.Exit(1)
	}

	reg, err := descriptor.NewRegistry(descriptor.RegistryConfig{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building generators: %v\n", err)
		os.Exit(1)
	}
	store := memstore.NewMemoryStore()
	extractor, err := usecase.NewExtractor(reg,
		cache.NewDescriptorCache(store),
		geometry.NewBuilder(geometry.NewDistanceGeometry()),
		nil,
		usecase.Options{Seed: usecase.DefaultSeed, Workers: *workers})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building extractor: %v\n", err)
		os.Exit(1)
	}

	sel := usecase.Selections(strings.Split(*generators, ","), false)
	var reqs []usecase.Request
	for _, c := range cations {
		for _, a := range anions {
			reqs = append(reqs, usecase.Request{Cation: c, Anion: a, Mixture: domain.Mixture{"ratio": 1}, Selections: sel})
		}
	}

	fmt.Println("DESCRIPTOR PIPELINE BENCHMARK")
	fmt.Printf("Pairs: %d  Generators: %s  Workers: %d\n\n", len(reqs), *generators, *workers)

	var cold time.Duration
	for round := 1; round <= *rounds; round++ {
		start := time.Now()
		results := extractor.ExtractBatch(context.Background(), reqs, nil)
		elapsed := time.Since(start)

		failed, unavailable := 0, 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				continue
			}
			unavailable += len(r.Row.Unavailable)
		}

		label := "warm"
		if round == 1 {
			label = "cold"
			cold = elapsed
		}
		fmt.Printf("Pass %d (%s): %v  %.1f rows/s  failed=%d unavailable=%d",
			round, label, elapsed.Round(time.Millisecond), float64(len(reqs))/elapsed.Seconds(), failed, unavailable)
		if round > 1 && elapsed > 0 {
			fmt.Printf("  speedup x%.1f", float64(cold)/float64(elapsed))
		}
		fmt.Println()
	}
	stats, _ := store.Stats()
	for key, n := range stats {
		fmt.Printf("\nCached %s: %d", key, n)
	}
	fmt.Println()
}
