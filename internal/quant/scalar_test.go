package quant

import (
	"context"
	"testing"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := newTestRand(seed)
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(r.Float64()*20 - 10)
		}
		out[i] = v
	}
	return out
}

func TestScalarQuantizer_Configure(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{name: "valid per-dimension config", config: &Config{Type: ScalarQuantization, Bits: 8, Strategy: PerDimension, TrainRatio: 1.0}},
		{name: "nil config", config: nil, expectError: true},
		{name: "wrong type", config: &Config{Type: ProductQuantization, Bits: 8, Subspaces: 2, Centroids: 4}, expectError: true},
		{name: "invalid bits", config: &Config{Type: ScalarQuantization, Bits: 0, TrainRatio: 1.0}, expectError: true},
		{name: "invalid train ratio", config: &Config{Type: ScalarQuantization, Bits: 8, TrainRatio: 1.5}, expectError: true},
		{name: "adaptive bits skips bit validation", config: &Config{Type: ScalarQuantization, AdaptiveBits: true, TrainRatio: 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sq := NewScalarQuantizer()
			err := sq.Configure(tt.config)
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestScalarQuantizer_CompressDecompress_RoundTrip(t *testing.T) {
	strategies := []ScalarStrategy{Uniform, PerDimension, Percentile}
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			sq := NewScalarQuantizer()
			cfg := &Config{
				Type:           ScalarQuantization,
				Bits:           8,
				Strategy:       strategy,
				PercentileLow:  0.01,
				PercentileHigh: 0.99,
				TrainRatio:     1.0,
			}
			if err := sq.Configure(cfg); err != nil {
				t.Fatalf("configure: %v", err)
			}
			vectors := randomVectors(64, 16, 1)
			if err := sq.Train(context.Background(), vectors); err != nil {
				t.Fatalf("train: %v", err)
			}

			compressed, err := sq.Compress(vectors[0])
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if len(compressed) < scalarHeaderSize {
				t.Fatalf("compressed payload shorter than header: %d bytes", len(compressed))
			}

			decoded, err := sq.Decompress(compressed)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if len(decoded) != len(vectors[0]) {
				t.Fatalf("expected %d dims, got %d", len(vectors[0]), len(decoded))
			}
			for d, v := range decoded {
				diff := float64(v - vectors[0][d])
				if diff < 0 {
					diff = -diff
				}
				if diff > 1.0 {
					t.Errorf("dimension %d: decoded %f too far from original %f", d, v, vectors[0][d])
				}
			}
		})
	}
}

func TestScalarQuantizer_DimensionMismatch(t *testing.T) {
	sq := NewScalarQuantizer()
	cfg := DefaultScalarConfig()
	if err := sq.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := sq.Train(context.Background(), randomVectors(32, 8, 2)); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := sq.Compress(make([]float32, 4)); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestScalarQuantizer_AdaptiveBits(t *testing.T) {
	cases := []struct {
		name       string
		std        float64
		spread     float64
		wantAtLeast int
	}{
		{"tight loss", 0.0001, 1, 16},
		{"moderate loss", 0.03, 1, 8},
		{"loose loss", 0.5, 1, 4},
		{"wide spread forces high precision", 0.5, 2000, 12},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := adaptiveBits(c.std, c.spread)
			if b < 4 || b > 16 {
				t.Fatalf("bits %d out of range", b)
			}
			if b < c.wantAtLeast {
				t.Errorf("expected at least %d bits, got %d", c.wantAtLeast, b)
			}
		})
	}
}

func TestScalarQuantizer_QualityGate(t *testing.T) {
	sq := NewScalarQuantizer()
	cfg := &Config{
		Type:             ScalarQuantization,
		Bits:             1,
		Strategy:         PerDimension,
		MaxPrecisionLoss: 1e-9,
		TrainRatio:       1.0,
	}
	if err := sq.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	vectors := randomVectors(32, 32, 3)
	if err := sq.Train(context.Background(), vectors); err != nil {
		t.Fatalf("train: %v", err)
	}
	if err := sq.ValidateQuality(vectors[0]); err == nil {
		t.Error("expected quality gate to reject 1-bit quantization against a near-zero loss threshold")
	}
}

func TestPackUnpackCodesMSBFirst(t *testing.T) {
	codes := []uint32{0, 1, 255, 128, 7}
	for _, bits := range []int{4, 8, 12} {
		max := uint32(1)<<uint(bits) - 1
		clamped := make([]uint32, len(codes))
		for i, c := range codes {
			if c > max {
				c = max
			}
			clamped[i] = c
		}
		packed := packCodesMSBFirst(clamped, bits)
		unpacked := unpackCodesMSBFirst(packed, len(clamped), bits)
		for i := range clamped {
			if unpacked[i] != clamped[i] {
				t.Errorf("bits=%d index=%d: expected %d, got %d", bits, i, clamped[i], unpacked[i])
			}
		}
	}
}
