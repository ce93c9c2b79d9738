package metric

import (
	"math"
	"testing"

	"github.com/vectorkit/veccore/internal/errs"
)

func approxEqual(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestKernel_Distance_DimensionMismatch(t *testing.T) {
	_, err := Distance(Euclidean, []float32{1, 2}, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !errs.IsCode(err, errs.DimensionMismatch) {
		t.Errorf("expected DimensionMismatch code, got %v", err)
	}
}

func TestKernel_Distance_UnknownMetric(t *testing.T) {
	_, err := Distance(Name("nonexistent"), []float32{1}, []float32{1})
	if err == nil {
		t.Fatal("expected unknown metric error")
	}
	if !errs.IsCode(err, errs.UnknownMetric) {
		t.Errorf("expected UnknownMetric code, got %v", err)
	}
}

func TestKernel_Euclidean(t *testing.T) {
	d, err := Distance(Euclidean, []float32{0, 0}, []float32{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(d, 5.0, 1e-6) {
		t.Errorf("expected 5.0, got %f", d)
	}
}

func TestKernel_Cosine_IdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3, 4}
	d, err := Distance(Cosine, v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(d, 0, 1e-6) {
		t.Errorf("expected cosine distance ~0 for identical vectors, got %f", d)
	}
}

func TestKernel_Cosine_ZeroNorm(t *testing.T) {
	d, err := Distance(Cosine, []float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 1 {
		t.Errorf("expected fallback distance of 1 for zero-norm vector, got %f", d)
	}
}

func TestKernel_Hamming(t *testing.T) {
	d, err := Distance(Hamming, []float32{1, -1, 1, -1}, []float32{1, 1, -1, -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(d, 0.5, 1e-6) {
		t.Errorf("expected 0.5 mismatch ratio, got %f", d)
	}
}

func TestKernel_Jaccard(t *testing.T) {
	d, err := Distance(Jaccard, []float32{1, 2, 3}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(d, 0, 1e-6) {
		t.Errorf("expected 0 for identical vectors, got %f", d)
	}
}

func TestKernel_BatchDistance(t *testing.T) {
	query := []float32{0, 0}
	candidates := [][]float32{{3, 4}, {0, 0}, {1, 0}}
	distances, err := BatchDistance(Euclidean, query, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{5, 0, 1}
	for i := range want {
		if !approxEqual(distances[i], want[i], 1e-6) {
			t.Errorf("index %d: expected %f, got %f", i, want[i], distances[i])
		}
	}
}

func TestKernel_BatchDistance_MismatchedCandidate(t *testing.T) {
	_, err := BatchDistance(Euclidean, []float32{0, 0}, [][]float32{{1, 1}, {1, 1, 1}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestKernel_ScoreFromDistance_Cosine(t *testing.T) {
	score, err := ScoreFromDistance(Cosine, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 1 {
		t.Errorf("expected score 1 for zero cosine distance, got %f", score)
	}
}

func TestKernel_RegisterCustomMetric(t *testing.T) {
	k := New()
	err := k.Register(Name("always-one"), func(a, b []float32) float64 { return 1 }, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	d, err := k.Distance(Name("always-one"), []float32{1}, []float32{2})
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d != 1 {
		t.Errorf("expected 1, got %f", d)
	}
}

func TestKernel_RegisterCannotOverrideBuiltin(t *testing.T) {
	k := New()
	if err := k.Register(Cosine, func(a, b []float32) float64 { return 0 }, nil); err == nil {
		t.Error("expected error overriding a built-in metric")
	}
}

func TestKernel_RegisterDuplicateCustom(t *testing.T) {
	k := New()
	f := func(a, b []float32) float64 { return 0 }
	if err := k.Register(Name("custom"), f, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := k.Register(Name("custom"), f, nil); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)
	got := math.Sqrt(float64(n[0]*n[0] + n[1]*n[1]))
	if !approxEqual(got, 1.0, 1e-5) {
		t.Errorf("expected unit norm, got %f", got)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	n := Normalize(v)
	for i, x := range n {
		if x != 0 {
			t.Errorf("index %d: expected 0, got %f", i, x)
		}
	}
}

func TestFastPath_MatchesScalarPath_Euclidean(t *testing.T) {
	// Vectors with D >= 16 exercise the unrolled loop; D < 16 exercises the
	// scalar tail. Both must agree since they compute the same formula.
	small := make([]float32, 8)
	large := make([]float32, 32)
	for i := range large {
		large[i] = float32(i)
	}
	for i := range small {
		small[i] = float32(i)
	}
	if _, err := Distance(Euclidean, small, small); err != nil {
		t.Fatalf("small vector distance: %v", err)
	}
	d, err := Distance(Euclidean, large, make([]float32, 32))
	if err != nil {
		t.Fatalf("large vector distance: %v", err)
	}
	if d <= 0 {
		t.Errorf("expected positive distance between distinct vectors, got %f", d)
	}
	var sumSq float64
	for _, v := range large {
		sumSq += float64(v) * float64(v)
	}
	if want := math.Sqrt(sumSq); !approxEqual(d, want, 1e-9) {
		t.Errorf("unrolled distance %f does not match scalar computation %f", d, want)
	}
}
