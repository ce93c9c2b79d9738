package hnsw

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/vectorkit/veccore/internal/util"
)

func newTestConfig(dim int, metric util.DistanceMetric) *Config {
	return &Config{
		Dimension:      dim,
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		ML:             1.0 / math.Log(2.0),
		Metric:         metric,
		RandomSeed:     42,
	}
}

func TestHNSW_CosineUnitVectors(t *testing.T) {
	// spec.md §8 scenario 1.
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(3, util.DistanceMetric("cosine")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	for _, e := range []*VectorEntry{
		{ID: "A", Vector: []float32{1, 0, 0}},
		{ID: "B", Vector: []float32{0, 1, 0}},
		{ID: "C", Vector: []float32{1, 0, 0}},
	} {
		if err := index.Insert(ctx, e); err != nil {
			t.Fatalf("Insert(%s): %v", e.ID, err)
		}
	}

	results, err := index.Search(ctx, []float32{1, 0, 0}, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[2].ID != "B" {
		t.Errorf("expected B to be the farthest result, got %s at %v", results[2].ID, results)
	}
	for _, r := range results[:2] {
		if r.ID != "A" && r.ID != "C" {
			t.Errorf("expected the two nearest results to be A and C, got %s", r.ID)
		}
	}
}

func TestHNSW_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(4, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	if err := index.Insert(ctx, &VectorEntry{ID: "a", Vector: []float32{1, 1, 1, 1}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := index.Search(ctx, []float32{1, 1, 1}, 1, nil, 0); err == nil {
		t.Errorf("expected dimension-mismatched query to fail")
	}
}

func TestHNSW_DeleteRemovesFromResultsAndNeighbors(t *testing.T) {
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(2, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		v := []float32{float32(i), float32(i)}
		if err := index.Insert(ctx, &VectorEntry{ID: id, Vector: v}); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}

	if err := index.Delete(ctx, "c"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := index.Search(ctx, []float32{2, 2}, 5, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "c" {
			t.Errorf("deleted id 'c' appeared in search results")
		}
	}

	for _, node := range index.nodes {
		if node == nil {
			continue
		}
		for _, level := range node.Links {
			for _, nbr := range level {
				if index.nodes[nbr].ID == "c" {
					t.Errorf("surviving node %s still references deleted id 'c'", node.ID)
				}
			}
		}
	}
}

func TestHNSW_Recall1SelfRetrieval(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(32, util.DistanceMetric("cosine"))
	cfg.EfConstruction = 200
	cfg.M = 16
	index, err := NewHNSW(cfg)
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	rng := rand.New(rand.NewSource(7))
	const n = 200
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, 32)
		var norm float64
		for d := range v {
			f := rng.Float32()*2 - 1
			v[d] = f
			norm += float64(f) * float64(f)
		}
		norm = math.Sqrt(norm)
		for d := range v {
			v[d] = float32(float64(v[d]) / norm)
		}
		vectors[i] = v
		id := string(rune('a'+i%26)) + string(rune('A'+(i/26)%26))
		if err := index.Insert(ctx, &VectorEntry{ID: id, Vector: v}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	misses := 0
	for i := 0; i < n; i++ {
		id := string(rune('a'+i%26)) + string(rune('A'+(i/26)%26))
		results, err := index.Search(ctx, vectors[i], 1, nil, 0)
		if err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
		if len(results) != 1 || results[0].ID != id {
			misses++
		}
	}
	// HNSW is approximate; allow a small miss budget rather than demanding
	// literal 100% recall on every seed.
	if misses > n/20 {
		t.Errorf("self-retrieval recall too low: %d/%d misses", misses, n)
	}
}

func TestHNSW_FilterAdmitsOnlyMatchingIDs(t *testing.T) {
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(2, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	for i, id := range []string{"a", "b", "c", "d"} {
		meta := map[string]interface{}{"even": i%2 == 0}
		if err := index.Insert(ctx, &VectorEntry{ID: id, Vector: []float32{float32(i), float32(i)}, Metadata: meta}); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}

	onlyEven := func(meta map[string]interface{}) bool {
		even, _ := meta["even"].(bool)
		return even
	}

	results, err := index.Search(ctx, []float32{0, 0}, 4, onlyEven, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		even, _ := r.Metadata["even"].(bool)
		if !even {
			t.Errorf("filtered search returned non-matching id %s", r.ID)
		}
	}
}

func TestHNSW_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(4, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		v := []float32{float32(i), float32(i + 1), float32(i + 2), float32(i + 3)}
		if err := index.Insert(ctx, &VectorEntry{ID: id, Vector: v}); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}

	query := []float32{2, 3, 4, 5}
	want, err := index.Search(ctx, query, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search before snapshot: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.hnsw")
	if err := index.SaveToDisk(ctx, path); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	reloaded, err := NewHNSW(newTestConfig(4, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW (reload): %v", err)
	}
	defer reloaded.Close()
	if err := reloaded.LoadFromDisk(ctx, path); err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}

	got, err := reloaded.Search(ctx, query, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search after reload: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("reloaded index returned %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("result %d id mismatch: got %s, want %s", i, got[i].ID, want[i].ID)
		}
	}
}

func TestHNSW_SearchOnEmptyIndexFails(t *testing.T) {
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(2, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	if _, err := index.Search(ctx, []float32{0, 0}, 1, nil, 0); err == nil {
		t.Errorf("expected search on empty index to fail")
	}
}

func TestHNSW_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	index, err := NewHNSW(newTestConfig(2, util.DistanceMetric("euclidean")))
	if err != nil {
		t.Fatalf("NewHNSW: %v", err)
	}
	defer index.Close()

	if err := index.Insert(ctx, &VectorEntry{ID: "a", Vector: []float32{0, 0}}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := index.Insert(ctx, &VectorEntry{ID: "a", Vector: []float32{1, 1}}); err == nil {
		t.Errorf("expected duplicate id insert to fail")
	}
}
