package quant

import (
	"context"
	"testing"

	"github.com/vectorkit/veccore/internal/errs"
	"github.com/vectorkit/veccore/internal/metric"
)

func TestProductQuantizer_Configure(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{name: "valid config", config: &Config{Type: ProductQuantization, Subspaces: 4, Centroids: 16, TrainRatio: 1.0}},
		{name: "nil config", config: nil, expectError: true},
		{name: "wrong type", config: &Config{Type: ScalarQuantization, Bits: 8, TrainRatio: 1.0}, expectError: true},
		{name: "zero subspaces", config: &Config{Type: ProductQuantization, Subspaces: 0, Centroids: 16, TrainRatio: 1.0}, expectError: true},
		{name: "too many centroids", config: &Config{Type: ProductQuantization, Subspaces: 4, Centroids: 300, TrainRatio: 1.0}, expectError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq := NewProductQuantizer()
			err := pq.Configure(tt.config)
			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestProductQuantizer_InsufficientTraining(t *testing.T) {
	pq := NewProductQuantizer()
	cfg := &Config{Type: ProductQuantization, Subspaces: 2, Centroids: 16, MaxIterations: 10, TrainRatio: 1.0}
	if err := pq.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	vectors := randomVectors(4, 8, 10) // fewer vectors than centroids
	err := pq.Train(context.Background(), vectors)
	if err == nil {
		t.Fatal("expected insufficient training error")
	}
	if !errs.IsCode(err, errs.InsufficientTraining) {
		t.Errorf("expected InsufficientTraining code, got %v", err)
	}
}

func TestProductQuantizer_TrainCompressDecompress(t *testing.T) {
	for _, initMethod := range []InitMethod{RandomInit, KMeansPlusPlus} {
		t.Run(map[InitMethod]string{RandomInit: "random", KMeansPlusPlus: "kmeans++"}[initMethod], func(t *testing.T) {
			pq := NewProductQuantizer()
			cfg := &Config{
				Type:                 ProductQuantization,
				Subspaces:            4,
				Centroids:            8,
				MaxIterations:        25,
				InitMethod:           initMethod,
				ConvergenceThreshold: 1e-6,
				Metric:               metric.Euclidean,
				TrainRatio:           1.0,
				Seed:                 42,
			}
			if err := pq.Configure(cfg); err != nil {
				t.Fatalf("configure: %v", err)
			}
			vectors := randomVectors(200, 16, 7)
			if err := pq.Train(context.Background(), vectors); err != nil {
				t.Fatalf("train: %v", err)
			}
			if !pq.IsTrained() {
				t.Fatal("expected trained=true")
			}

			compressed, err := pq.Compress(vectors[0])
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if len(compressed) != pqHeaderSize+cfg.Subspaces {
				t.Fatalf("expected %d bytes, got %d", pqHeaderSize+cfg.Subspaces, len(compressed))
			}
			decoded, err := pq.Decompress(compressed)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if len(decoded) != 16 {
				t.Fatalf("expected 16 dims, got %d", len(decoded))
			}
		})
	}
}

func TestProductQuantizer_DistanceToQuery(t *testing.T) {
	pq := NewProductQuantizer()
	cfg := &Config{
		Type:          ProductQuantization,
		Subspaces:     2,
		Centroids:     4,
		MaxIterations: 20,
		InitMethod:    KMeansPlusPlus,
		Metric:        metric.Euclidean,
		TrainRatio:    1.0,
		Seed:          7,
	}
	if err := pq.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	vectors := randomVectors(64, 8, 11)
	if err := pq.Train(context.Background(), vectors); err != nil {
		t.Fatalf("train: %v", err)
	}

	compressed, err := pq.Compress(vectors[0])
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	d, err := pq.DistanceToQuery(compressed, vectors[0])
	if err != nil {
		t.Fatalf("distance to query: %v", err)
	}
	if d < 0 {
		t.Errorf("expected non-negative euclidean distance, got %f", d)
	}

	farQuery := make([]float32, 8)
	for i := range farQuery {
		farQuery[i] = vectors[0][i] + 1000
	}
	farDist, err := pq.DistanceToQuery(compressed, farQuery)
	if err != nil {
		t.Fatalf("distance to far query: %v", err)
	}
	if farDist <= d {
		t.Errorf("expected distance to far query (%f) to exceed distance to self (%f)", farDist, d)
	}
}

func TestProductQuantizer_DimensionNotDivisible(t *testing.T) {
	pq := NewProductQuantizer()
	cfg := &Config{Type: ProductQuantization, Subspaces: 3, Centroids: 4, TrainRatio: 1.0}
	if err := pq.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	vectors := randomVectors(32, 8, 5) // 8 not divisible by 3
	if err := pq.Train(context.Background(), vectors); err == nil {
		t.Error("expected error for non-divisible dimension")
	}
}
