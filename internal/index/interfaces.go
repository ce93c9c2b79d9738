package index

import (
	"context"
	"time"

	"github.com/vectorkit/veccore/internal/index/flat"
	"github.com/vectorkit/veccore/internal/index/hnsw"
	"github.com/vectorkit/veccore/internal/quant"
	"github.com/vectorkit/veccore/internal/util"
)

// MetaFilter reports whether a candidate's metadata satisfies a compiled
// predicate. A nil MetaFilter admits every candidate. It is the index
// package's view of internal/filter.Predicate, kept as a plain function
// type here so index doesn't import filter for a single method signature.
type MetaFilter func(map[string]interface{}) bool

// Index defines the interface for vector indexes
type Index interface {
	Insert(ctx context.Context, entry *VectorEntry) error
	// Search finds the k nearest neighbors to query. ef <= 0 requests the
	// index's configured default beam width; graph-based indexes clamp it
	// to at least k, brute-force indexes ignore it.
	Search(ctx context.Context, query []float32, k int, filter MetaFilter, ef int) ([]*SearchResult, error)
	Delete(ctx context.Context, id string) error
	Size() int
	MemoryUsage() int64
	Close() error

	SaveToDisk(ctx context.Context, path string) error
	LoadFromDisk(ctx context.Context, path string) error
	GetPersistenceMetadata() *PersistenceMetadata
}

// VectorEntry represents a vector entry (avoid circular imports)
type VectorEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchResult represents a search result (avoid circular imports)
type SearchResult struct {
	ID       string
	Score    float32
	Vector   []float32
	Metadata map[string]interface{}
}

// PersistenceMetadata holds metadata about persisted index
type PersistenceMetadata struct {
	Version       uint32    `json:"version"`
	NodeCount     int       `json:"node_count"`
	Dimension     int       `json:"dimension"`
	MaxLevel      int       `json:"max_level"`
	IndexType     string    `json:"index_type"`
	CreatedAt     time.Time `json:"created_at"`
	ChecksumCRC32 uint32    `json:"checksum_crc32"`
	FileSize      int64     `json:"file_size"`
}

// IndexType represents different index algorithms. The registry only
// builds HNSW and Flat: the spec's namespace descriptor is restricted to
// none (no index, scan-only) | bruteforce | hnsw.
type IndexType int

const (
	IndexTypeHNSW IndexType = iota
	IndexTypeFlat
)

// String returns the string representation of the index type
func (it IndexType) String() string {
	switch it {
	case IndexTypeHNSW:
		return "HNSW"
	case IndexTypeFlat:
		return "Flat"
	default:
		return "Unknown"
	}
}

// HNSWConfig holds configuration for HNSW index
type HNSWConfig struct {
	Dimension      int
	M              int
	EfConstruction int
	EfSearch       int
	ML             float64
	Metric         util.DistanceMetric
	RandomSeed     int64
	Quantization   *quant.Config
}

// FlatConfig holds configuration for Flat index
type FlatConfig struct {
	Dimension    int
	Metric       util.DistanceMetric
	Quantization *quant.Config
}

// hnswWrapper wraps the HNSW index to adapt between interface types
type hnswWrapper struct {
	index *hnsw.Index
}

func (w *hnswWrapper) Insert(ctx context.Context, entry *VectorEntry) error {
	hnswEntry := &hnsw.VectorEntry{ID: entry.ID, Vector: entry.Vector, Metadata: entry.Metadata}
	return w.index.Insert(ctx, hnswEntry)
}

func (w *hnswWrapper) Search(ctx context.Context, query []float32, k int, filter MetaFilter, ef int) ([]*SearchResult, error) {
	hnswResults, err := w.index.Search(ctx, query, k, filter, ef)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, len(hnswResults))
	for i, r := range hnswResults {
		results[i] = &SearchResult{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata}
	}
	return results, nil
}

func (w *hnswWrapper) Delete(ctx context.Context, id string) error { return w.index.Delete(ctx, id) }
func (w *hnswWrapper) Size() int                                   { return w.index.Size() }
func (w *hnswWrapper) MemoryUsage() int64                          { return w.index.MemoryUsage() }
func (w *hnswWrapper) Close() error                                { return w.index.Close() }

func (w *hnswWrapper) SaveToDisk(ctx context.Context, path string) error {
	return w.index.SaveToDisk(ctx, path)
}

func (w *hnswWrapper) LoadFromDisk(ctx context.Context, path string) error {
	return w.index.LoadFromDisk(ctx, path)
}

func (w *hnswWrapper) GetPersistenceMetadata() *PersistenceMetadata {
	hnswMeta := w.index.GetPersistenceMetadata()
	if hnswMeta == nil {
		return nil
	}
	return &PersistenceMetadata{
		Version:       hnswMeta.Version,
		NodeCount:     hnswMeta.NodeCount,
		Dimension:     hnswMeta.Dimension,
		MaxLevel:      hnswMeta.MaxLevel,
		IndexType:     "HNSW",
		CreatedAt:     hnswMeta.CreatedAt,
		ChecksumCRC32: hnswMeta.ChecksumCRC32,
		FileSize:      hnswMeta.FileSize,
	}
}

// NewHNSW creates a new HNSW index
func NewHNSW(config *HNSWConfig) (Index, error) {
	hnswConfig := &hnsw.Config{
		Dimension:      config.Dimension,
		M:              config.M,
		EfConstruction: config.EfConstruction,
		EfSearch:       config.EfSearch,
		ML:             config.ML,
		Metric:         config.Metric,
		RandomSeed:     config.RandomSeed,
		Quantization:   config.Quantization,
	}

	hnswIndex, err := hnsw.NewHNSW(hnswConfig)
	if err != nil {
		return nil, err
	}

	return &hnswWrapper{index: hnswIndex}, nil
}

// flatWrapper wraps the Flat index to adapt between interface types
type flatWrapper struct {
	index *flat.Index
}

func (w *flatWrapper) Insert(ctx context.Context, entry *VectorEntry) error {
	flatEntry := &flat.VectorEntry{ID: entry.ID, Vector: entry.Vector, Metadata: entry.Metadata}
	return w.index.Insert(ctx, flatEntry)
}

func (w *flatWrapper) Search(ctx context.Context, query []float32, k int, filter MetaFilter, ef int) ([]*SearchResult, error) {
	flatResults, err := w.index.Search(ctx, query, k, filter, ef)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, len(flatResults))
	for i, r := range flatResults {
		results[i] = &SearchResult{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata}
	}
	return results, nil
}

func (w *flatWrapper) Delete(ctx context.Context, id string) error { return w.index.Delete(ctx, id) }
func (w *flatWrapper) Size() int                                   { return w.index.Size() }
func (w *flatWrapper) MemoryUsage() int64                          { return w.index.MemoryUsage() }
func (w *flatWrapper) Close() error                                { return w.index.Close() }

func (w *flatWrapper) SaveToDisk(ctx context.Context, path string) error {
	return w.index.SaveToDisk(ctx, path)
}

func (w *flatWrapper) LoadFromDisk(ctx context.Context, path string) error {
	return w.index.LoadFromDisk(ctx, path)
}

func (w *flatWrapper) GetPersistenceMetadata() *PersistenceMetadata {
	flatMeta := w.index.GetPersistenceMetadata()
	if flatMeta == nil {
		return nil
	}
	return &PersistenceMetadata{
		Version:       flatMeta.Version,
		NodeCount:     flatMeta.NodeCount,
		Dimension:     flatMeta.Dimension,
		MaxLevel:      flatMeta.MaxLevel,
		IndexType:     "Flat",
		CreatedAt:     flatMeta.CreatedAt,
		ChecksumCRC32: flatMeta.ChecksumCRC32,
		FileSize:      flatMeta.FileSize,
	}
}

// NewFlat creates a new Flat index
func NewFlat(config *FlatConfig) (Index, error) {
	flatConfig := &flat.Config{Dimension: config.Dimension, Metric: config.Metric, Quantization: config.Quantization}

	flatIndex, err := flat.NewFlat(flatConfig)
	if err != nil {
		return nil, err
	}

	return &flatWrapper{index: flatIndex}, nil
}
