// Package quant implements the compression codecs: scalar quantization
// (uniform / per-dimension / percentile bounds) and product quantization
// (k-means codebook training with asymmetric lookup-table distance).
package quant

import (
	"context"

	"github.com/vectorkit/veccore/internal/errs"
	"github.com/vectorkit/veccore/internal/metric"
)

// Type identifies which codec a configuration targets.
type Type int

const (
	ScalarQuantization Type = iota
	ProductQuantization
)

func (t Type) String() string {
	switch t {
	case ScalarQuantization:
		return "scalar"
	case ProductQuantization:
		return "product"
	default:
		return "unknown"
	}
}

// ScalarStrategy selects how encode bounds are derived.
type ScalarStrategy int

const (
	Uniform ScalarStrategy = iota
	PerDimension
	Percentile
)

func (s ScalarStrategy) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case PerDimension:
		return "per-dimension"
	case Percentile:
		return "percentile"
	default:
		return "unknown"
	}
}

// InitMethod selects how product-quantization centroids are seeded.
type InitMethod int

const (
	RandomInit InitMethod = iota
	KMeansPlusPlus
)

// Config holds every parameter either codec reads. Scalar-only and
// PQ-only fields are grouped and ignored by the codec that doesn't use
// them, mirroring how the source keeps one config struct per quantizer
// family but lets each Configure validate only its own subset.
type Config struct {
	Type Type

	// Scalar parameters.
	Bits                 int // 1..16; ignored if AdaptiveBits is true
	Strategy             ScalarStrategy
	AdaptiveBits         bool
	PercentileLow        float64 // default 0.01
	PercentileHigh       float64 // default 0.99
	MaxPrecisionLoss     float64 // quality gate threshold; 0 disables the gate
	ValidateQuality      bool

	// Product-quantization parameters.
	Subspaces             int // M; must divide D
	Centroids             int // K; <= 256
	MaxIterations         int
	InitMethod            InitMethod
	ConvergenceThreshold  float64
	TrainingVectorsCap    int
	Metric                metric.Name // distance used for asymmetric scoring
	Seed                  int64       // 0 means "use the package default seed"

	TrainRatio float64
}

// Validate checks structural invariants shared across both codecs plus
// the family-specific ones.
func (c *Config) Validate() error {
	switch c.Type {
	case ScalarQuantization:
		if !c.AdaptiveBits && (c.Bits < 1 || c.Bits > 16) {
			return errs.New(errs.InvalidFormat, "scalar bits must be in [1,16], got %d", c.Bits)
		}
	case ProductQuantization:
		if c.Subspaces < 1 {
			return errs.New(errs.InvalidFormat, "subspaces (M) must be positive, got %d", c.Subspaces)
		}
		if c.Centroids < 1 || c.Centroids > 256 {
			return errs.New(errs.InvalidFormat, "centroids (K) must be in [1,256], got %d", c.Centroids)
		}
	default:
		return errs.New(errs.InvalidFormat, "unsupported quantization type %v", c.Type)
	}
	if c.TrainRatio < 0 || c.TrainRatio > 1 {
		return errs.New(errs.InvalidFormat, "train_ratio must be in [0,1], got %f", c.TrainRatio)
	}
	return nil
}

// DefaultScalarConfig returns a sane default for scalar quantization.
func DefaultScalarConfig() *Config {
	return &Config{
		Type:             ScalarQuantization,
		Bits:             8,
		Strategy:         PerDimension,
		PercentileLow:    0.01,
		PercentileHigh:   0.99,
		MaxPrecisionLoss: 0.01,
		TrainRatio:       1.0,
	}
}

// DefaultProductConfig returns a sane default for product quantization.
func DefaultProductConfig(dimension int) *Config {
	subspaces := dimension
	for _, m := range []int{8, 4, 2, 1} {
		if dimension%m == 0 {
			subspaces = m
			break
		}
	}
	return &Config{
		Type:                 ProductQuantization,
		Subspaces:            subspaces,
		Centroids:            256,
		MaxIterations:        100,
		InitMethod:           KMeansPlusPlus,
		ConvergenceThreshold: 1e-6,
		Metric:               metric.Euclidean,
		TrainRatio:           1.0,
	}
}

// Quantizer is the codec contract shared by scalar and product quantization.
type Quantizer interface {
	Configure(config *Config) error
	Train(ctx context.Context, vectors [][]float32) error
	Compress(vector []float32) ([]byte, error)
	Decompress(data []byte) ([]float32, error)
	Distance(compressed1, compressed2 []byte) (float32, error)
	DistanceToQuery(compressed []byte, query []float32) (float32, error)
	CompressionRatio() float32
	MemoryUsage() int64
	IsTrained() bool
	Config() *Config
}

// Factory builds a Quantizer for the types it supports.
type Factory interface {
	Create(config *Config) (Quantizer, error)
	Supports(t Type) bool
	Name() string
}
