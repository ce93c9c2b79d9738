package flat

import (
	"context"
	"testing"

	"github.com/vectorkit/veccore/internal/util"
)

func TestFlat_EuclideanBruteForce(t *testing.T) {
	// spec.md §8 scenario 2.
	ctx := context.Background()
	index, err := NewFlat(&Config{Dimension: 4, Metric: util.DistanceMetric("euclidean")})
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	entries := []*VectorEntry{
		{ID: "X", Vector: []float32{1, 1, 1, 1}},
		{ID: "Y", Vector: []float32{2, 2, 2, 2}},
		{ID: "Z", Vector: []float32{5, 5, 5, 5}},
	}
	for _, e := range entries {
		if err := index.Insert(ctx, e); err != nil {
			t.Fatalf("Insert(%s): %v", e.ID, err)
		}
	}

	results, err := index.Search(ctx, []float32{1, 1, 1, 1}, 2, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "X" || results[0].Score != 0 {
		t.Errorf("expected X with distance 0 first, got %s (%v)", results[0].ID, results[0].Score)
	}
	if results[1].ID != "Y" {
		t.Errorf("expected Y second, got %s", results[1].ID)
	}
}

func TestFlat_DimensionMismatchRejected(t *testing.T) {
	ctx := context.Background()
	index, err := NewFlat(&Config{Dimension: 4, Metric: util.DistanceMetric("euclidean")})
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	if err := index.Insert(ctx, &VectorEntry{ID: "a", Vector: []float32{1, 2, 3}}); err == nil {
		t.Errorf("expected dimension-mismatched insert to fail")
	}
}

func TestFlat_FilterAppliedAsPrefilter(t *testing.T) {
	ctx := context.Background()
	index, err := NewFlat(&Config{Dimension: 2, Metric: util.DistanceMetric("euclidean")})
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	for i, id := range []string{"a", "b", "c"} {
		meta := map[string]interface{}{"keep": id != "b"}
		if err := index.Insert(ctx, &VectorEntry{ID: id, Vector: []float32{float32(i), float32(i)}, Metadata: meta}); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}

	keep := func(meta map[string]interface{}) bool {
		k, _ := meta["keep"].(bool)
		return k
	}

	results, err := index.Search(ctx, []float32{0, 0}, 3, keep, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "b" {
			t.Errorf("filtered-out id 'b' present in results")
		}
	}
}

func TestFlat_DeleteRemovesFromResults(t *testing.T) {
	ctx := context.Background()
	index, err := NewFlat(&Config{Dimension: 2, Metric: util.DistanceMetric("euclidean")})
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	for i, id := range []string{"a", "b", "c"} {
		if err := index.Insert(ctx, &VectorEntry{ID: id, Vector: []float32{float32(i), float32(i)}}); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}
	if err := index.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := index.Search(ctx, []float32{1, 1}, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "b" {
			t.Errorf("deleted id 'b' present in search results")
		}
	}
	if index.Size() != 2 {
		t.Errorf("expected size 2 after delete, got %d", index.Size())
	}
}
