package main

import (
	"fmt"
	"log"
	"os"

	hnsw "github.com/trailmarker/hnswix"
)

func main() {
	ix, err := hnsw.NewBuilder(3).
		WithM(16).
		WithEfConstruction(200).
		WithEfSearch(64).
		WithMetric(hnsw.EuclideanDistance).
		Build()
	if err != nil {
		log.Fatalf("failed to build index: %v", err)
	}

	vectors := map[uint64][]float32{
		1: {1, 1, 1},
		2: {1, -1, 0.999},
		3: {1, 0, -0.5},
		4: {0.2, 0.2, 0.2},
		5: {5, 5, 5},
	}
	for extID, vec := range vectors {
		if err := ix.Insert(vec, extID); err != nil {
			log.Fatalf("failed to insert %d: %v", extID, err)
		}
	}

	results, err := ix.Search([]float32{0.5, 0.5, 0.5}, 2)
	if err != nil {
		log.Fatalf("failed to search: %v", err)
	}
	fmt.Println("nearest to (0.5, 0.5, 0.5):")
	for _, r := range results {
		fmt.Printf("  ext_id=%d dist=%.4f\n", r.ExtID, r.Dist)
	}

	if ix.Delete(5) {
		fmt.Println("deleted ext_id=5")
	}

	evicted, _ := ix.EvictLRUUntil(intPtr(3), nil)
	fmt.Printf("evicted %d node(s) to keep at most 3 vectors\n", evicted)

	stats := ix.Stats()
	fmt.Printf("stats: len=%d max_level=%d total_bytes=%d\n", stats.Len, stats.MaxLevel, stats.TotalBytes)

	path := os.TempDir() + "/hnswix-example.snapshot"
	if err := ix.ExportFile(path); err != nil {
		log.Fatalf("failed to export: %v", err)
	}
	defer os.Remove(path)

	reloaded, err := hnsw.NewBuilder(3).Build()
	if err != nil {
		log.Fatalf("failed to build reloaded index: %v", err)
	}
	if _, err := reloaded.ImportFile(path); err != nil {
		log.Fatalf("failed to import: %v", err)
	}
	fmt.Printf("reloaded index holds %d vector(s)\n", reloaded.Len())

	an := ix.Analyzer()
	fmt.Printf("height=%d topography=%v\n", an.Height(), an.Topography())
}

func intPtr(v int) *int {
	return &v
}
