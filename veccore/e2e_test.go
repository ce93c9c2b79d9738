package veccore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(WithStoragePath(filepath.Join(t.TempDir(), "data")), WithMetrics(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestE2E_CosineOnUnitVectors(t *testing.T) {
	// spec.md §8 scenario 1.
	ctx := context.Background()
	db := newTestDB(t)

	col, err := db.CreateCollection(ctx, "unit-vecs",
		WithDimension(3), WithMetric(CosineDistance), WithFlatIndex())
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	if err := col.Insert(ctx, "A", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("Insert A: %v", err)
	}
	if err := col.Insert(ctx, "B", []float32{0, 1, 0}, nil); err != nil {
		t.Fatalf("Insert B: %v", err)
	}
	if err := col.Insert(ctx, "C", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("Insert C: %v", err)
	}

	results, err := col.Search(ctx, []float32{1, 0, 0}, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results.Results))
	}
	if results.Results[0].ID != "A" || results.Results[1].ID != "C" {
		t.Errorf("expected A before C with tied distance, got %s, %s",
			results.Results[0].ID, results.Results[1].ID)
	}
	if results.Results[2].ID != "B" {
		t.Errorf("expected B last, got %s", results.Results[2].ID)
	}
}

func TestE2E_EuclideanBruteForce(t *testing.T) {
	// spec.md §8 scenario 2.
	ctx := context.Background()
	db := newTestDB(t)

	col, err := db.CreateCollection(ctx, "euclid-vecs",
		WithDimension(4), WithMetric(L2Distance), WithFlatIndex())
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	for id, v := range map[string][]float32{
		"X": {1, 1, 1, 1}, "Y": {2, 2, 2, 2}, "Z": {5, 5, 5, 5},
	} {
		if err := col.Insert(ctx, id, v, nil); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	results, err := col.Search(ctx, []float32{1, 1, 1, 1}, 2, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Results) != 2 || results.Results[0].ID != "X" {
		t.Fatalf("expected X first, got %+v", results.Results)
	}
	if results.Results[1].ID != "Y" {
		t.Errorf("expected Y second, got %s", results.Results[1].ID)
	}
}

func TestE2E_FilterSemantics(t *testing.T) {
	// spec.md §8 scenario 4.
	ctx := context.Background()
	db := newTestDB(t)

	col, err := db.CreateCollection(ctx, "filtered-vecs",
		WithDimension(2), WithMetric(L2Distance), WithFlatIndex())
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	records := []struct {
		id   string
		v    []float32
		meta map[string]interface{}
	}{
		{"r1", []float32{0, 0}, map[string]interface{}{"type": "A", "year": 2023}},
		{"r2", []float32{1, 1}, map[string]interface{}{"type": "A", "year": 2024}},
		{"r3", []float32{2, 2}, map[string]interface{}{"type": "B", "year": 2024}},
	}
	for _, r := range records {
		if err := col.Insert(ctx, r.id, r.v, r.meta); err != nil {
			t.Fatalf("Insert %s: %v", r.id, err)
		}
	}

	results, err := col.Query(ctx).
		WithVector([]float32{0, 0}).
		Eq("type", "A").
		Gte("year", 2024).
		Limit(3).
		Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results.Results) != 1 || results.Results[0].ID != "r2" {
		t.Fatalf("expected exactly r2 to match, got %+v", results.Results)
	}
}

func TestE2E_InvalidCollectionNameRejected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, name := range []string{"ab", "system", "has space", "root"} {
		if _, err := db.CreateCollection(ctx, name, WithDimension(4)); err == nil {
			t.Errorf("expected collection name %q to be rejected", name)
		}
	}
}

func TestE2E_DeleteThenSearchOmitsRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	col, err := db.CreateCollection(ctx, "del-vecs",
		WithDimension(2), WithMetric(L2Distance), WithFlatIndex())
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	for i, id := range []string{"a", "b", "c"} {
		if err := col.Insert(ctx, id, []float32{float32(i), float32(i)}, nil); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	if err := col.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := col.Get(ctx, "b"); err == nil {
		t.Errorf("expected Get on deleted id to fail")
	}

	results, err := col.Search(ctx, []float32{1, 1}, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results.Results {
		if r.ID == "b" {
			t.Errorf("deleted id present in search results")
		}
	}
}

func TestE2E_HNSWSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	snapshotPath := filepath.Join(t.TempDir(), "index.snap")

	col, err := db.CreateCollection(ctx, "snap-vecs",
		WithDimension(4), WithMetric(L2Distance), WithIndexPersistence(snapshotPath))
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		v := []float32{float32(i), float32(i + 1), float32(i + 2), float32(i + 3)}
		if err := col.Insert(ctx, id, v, nil); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	if err := col.SnapshotIndex(ctx); err != nil {
		t.Fatalf("SnapshotIndex: %v", err)
	}

	col2, err := db.CreateCollection(ctx, "snap-vecs-2",
		WithDimension(4), WithMetric(L2Distance), WithIndexPersistence(snapshotPath))
	if err != nil {
		t.Fatalf("CreateCollection (restore target): %v", err)
	}
	results, err := col2.Search(ctx, []float32{2, 3, 4, 5}, 3, nil, 0)
	if err != nil {
		t.Fatalf("Search on restored index: %v", err)
	}
	if len(results.Results) != 3 {
		t.Errorf("expected 3 results from restored snapshot, got %d", len(results.Results))
	}
}
