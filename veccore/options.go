package veccore

import (
	"fmt"

	"github.com/vectorkit/veccore/internal/quant"
)

// Option represents a database configuration option
type Option func(*Config) error

// WithStoragePath sets the storage path for the database
func WithStoragePath(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("storage path cannot be empty")
		}
		c.StoragePath = path
		return nil
	}
}

// WithMetrics enables or disables metrics collection
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}

// WithTracing enables or disables distributed tracing
func WithTracing(enabled bool) Option {
	return func(c *Config) error {
		c.TracingEnabled = enabled
		return nil
	}
}

// WithMaxCollections sets the maximum number of collections
func WithMaxCollections(max int) Option {
	return func(c *Config) error {
		if max <= 0 {
			return fmt.Errorf("max collections must be positive")
		}
		c.MaxCollections = max
		return nil
	}
}

// WithStorageBackend selects which storage.Engine implementation backs the
// database: BackendLSM (default) uses the hand-rolled WAL engine,
// BackendBadger uses an embedded BadgerDB instance.
func WithStorageBackend(backend StorageBackend) Option {
	return func(c *Config) error {
		c.StorageBackend = backend
		return nil
	}
}

// CollectionOption represents a collection configuration option
type CollectionOption func(*CollectionConfig) error

// WithDimension sets the vector dimension for the collection
func WithDimension(dim int) CollectionOption {
	return func(c *CollectionConfig) error {
		if dim <= 0 {
			return fmt.Errorf("dimension must be positive")
		}
		c.Dimension = dim
		return nil
	}
}

// WithMetric sets the distance metric for the collection
func WithMetric(metric DistanceMetric) CollectionOption {
	return func(c *CollectionConfig) error {
		c.Metric = metric
		return nil
	}
}

// WithHNSW configures HNSW index parameters
func WithHNSW(m, efConstruction, efSearch int) CollectionOption {
	return func(c *CollectionConfig) error {
		if m <= 0 || efConstruction <= 0 || efSearch <= 0 {
			return fmt.Errorf("HNSW parameters must be positive")
		}
		c.IndexType = HNSW
		c.M = m
		c.EfConstruction = efConstruction
		c.EfSearch = efSearch
		return nil
	}
}

// WithIndexPersistence points the collection at a path to load its index
// graph from at startup and to save it to via Collection.SnapshotIndex.
// An empty path disables snapshotting; the WAL remains the durable store
// either way.
func WithIndexPersistence(path string) CollectionOption {
	return func(c *CollectionConfig) error {
		c.IndexSnapshotPath = path
		return nil
	}
}

// WithFlatIndex selects brute-force scanning instead of HNSW, trading
// search speed for exactness. Appropriate for small collections or ones
// still accumulating enough vectors to make an approximate index worthwhile.
func WithFlatIndex() CollectionOption {
	return func(c *CollectionConfig) error {
		c.IndexType = Flat
		return nil
	}
}

// WithScalarQuantization compresses every vector down to bits-per-dimension
// once enough vectors have been seen to calibrate bounds. adaptive, when
// true, ignores bits and instead picks a width per collection based on the
// observed value range.
func WithScalarQuantization(bits int, adaptive bool) CollectionOption {
	return func(c *CollectionConfig) error {
		if !adaptive && (bits < 1 || bits > 16) {
			return fmt.Errorf("scalar quantization bits must be between 1 and 16")
		}
		c.Quantization = &quant.Config{
			Type:           quant.ScalarQuantization,
			Bits:           bits,
			Strategy:       quant.PerDimension,
			AdaptiveBits:   adaptive,
			PercentileLow:  0.01,
			PercentileHigh: 0.99,
		}
		return nil
	}
}

// WithProductQuantization splits each vector into subspaces codebooks,
// trained by k-means once the index has buffered max(1000, 256*subspaces)
// vectors; the k-means sample is capped at 10000 vectors.
// subspaces must evenly divide the collection's dimension.
func WithProductQuantization(subspaces, centroids int) CollectionOption {
	return func(c *CollectionConfig) error {
		if subspaces <= 0 {
			return fmt.Errorf("product quantization subspaces must be positive")
		}
		if centroids <= 0 || centroids > 256 {
			return fmt.Errorf("product quantization centroids must be between 1 and 256")
		}
		c.Quantization = &quant.Config{
			Type:                 quant.ProductQuantization,
			Subspaces:            subspaces,
			Centroids:            centroids,
			MaxIterations:        25,
			InitMethod:           quant.KMeansPlusPlus,
			ConvergenceThreshold: 1e-4,
			TrainingVectorsCap:   10000,
		}
		return nil
	}
}
