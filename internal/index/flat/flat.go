package flat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vectorkit/veccore/internal/quant"
	"github.com/vectorkit/veccore/internal/util"
)

// VectorEntry represents a vector entry in the flat index
type VectorEntry struct {
	ID       string                 `json:"id"`
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SearchResult represents a search result from the flat index
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Config holds configuration for the flat index
type Config struct {
	Dimension    int                       `json:"dimension"`
	Metric       util.DistanceMetric       `json:"metric"`
	Quantization *quant.Config `json:"quantization,omitempty"`
}

// PersistenceMetadata holds metadata about persisted flat index
type PersistenceMetadata struct {
	Version       uint32    `json:"version"`
	NodeCount     int       `json:"node_count"`
	Dimension     int       `json:"dimension"`
	MaxLevel      int       `json:"max_level"` // Always 0 for flat index
	IndexType     string    `json:"index_type"`
	CreatedAt     time.Time `json:"created_at"`
	ChecksumCRC32 uint32    `json:"checksum_crc32"`
	FileSize      int64     `json:"file_size"`
}

// node is the stored form of an entry: either a raw vector or, once the
// index's quantizer has been trained, a compressed payload exactly as HNSW
// stores it - so the two index types share the same memory/accuracy
// tradeoff for the same QuantizationConfig.
type node struct {
	ID         string
	Vector     []float32
	Compressed []byte
	Metadata   map[string]interface{}
}

// Index implements a brute-force vector index: every Search scans the full
// set, so there is no approximation error, at the cost of O(n) query time.
// A collection uses it when created with veccore.WithFlatIndex; the index
// type is fixed at creation and queries are not routed by collection size.
type Index struct {
	config              *Config
	entries             []*node
	idToIndex           map[string]int
	quantizer           quant.Quantizer
	distance            util.DistanceFunc
	trainingVectors     [][]float32
	quantizationTrained bool
	mu                  sync.RWMutex
}

// NewFlat creates a new flat index
func NewFlat(config *Config) (*Index, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", config.Dimension)
	}

	distanceFunc, err := util.GetDistanceFunc(config.Metric)
	if err != nil {
		return nil, fmt.Errorf("unsupported distance metric: %w", err)
	}

	index := &Index{
		config:    config,
		entries:   make([]*node, 0),
		idToIndex: make(map[string]int),
		distance:  distanceFunc,
	}

	if config.Quantization != nil {
		index.quantizer, err = quant.Create(config.Quantization)
		if err != nil {
			return nil, fmt.Errorf("failed to create quantizer: %w", err)
		}
	}

	return index, nil
}

func (idx *Index) trainingThreshold() int {
	if idx.config.Quantization == nil {
		return 0
	}
	switch idx.config.Quantization.Type {
	case quant.ProductQuantization:
		return max(1000, idx.config.Quantization.Subspaces*256)
	case quant.ScalarQuantization:
		return max(100, idx.config.Dimension*10)
	default:
		return 1000
	}
}

func (idx *Index) trainQuantizer(ctx context.Context) error {
	trainRatio := idx.config.Quantization.TrainRatio
	if trainRatio <= 0 || trainRatio > 1 {
		trainRatio = 0.1
	}
	trainCount := int(float64(len(idx.trainingVectors)) * trainRatio)
	if trainCount < 1 {
		trainCount = len(idx.trainingVectors)
	}
	if err := idx.quantizer.Train(ctx, idx.trainingVectors[:trainCount]); err != nil {
		return fmt.Errorf("quantizer training failed: %w", err)
	}
	idx.quantizationTrained = true
	idx.trainingVectors = nil
	return nil
}

// Insert adds a vector to the index
func (idx *Index) Insert(ctx context.Context, entry *VectorEntry) error {
	if len(entry.Vector) != idx.config.Dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d",
			idx.config.Dimension, len(entry.Vector))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.quantizer != nil && !idx.quantizationTrained {
		vectorCopy := make([]float32, len(entry.Vector))
		copy(vectorCopy, entry.Vector)
		idx.trainingVectors = append(idx.trainingVectors, vectorCopy)
		if len(idx.trainingVectors) >= idx.trainingThreshold() {
			if err := idx.trainQuantizer(ctx); err != nil {
				return fmt.Errorf("failed to train quantizer: %w", err)
			}
		}
	}

	n := &node{ID: entry.ID, Metadata: copyMetadata(entry.Metadata)}
	if idx.quantizer != nil && idx.quantizationTrained {
		compressed, err := idx.quantizer.Compress(entry.Vector)
		if err != nil {
			return fmt.Errorf("failed to compress vector: %w", err)
		}
		n.Compressed = compressed
	} else {
		n.Vector = make([]float32, len(entry.Vector))
		copy(n.Vector, entry.Vector)
	}

	if existing, exists := idx.idToIndex[entry.ID]; exists {
		idx.entries[existing] = n
		return nil
	}
	idx.idToIndex[entry.ID] = len(idx.entries)
	idx.entries = append(idx.entries, n)
	return nil
}

// Search performs brute-force search across every vector that passes
// metaFilter (a nil metaFilter admits everything), returning the k closest
// matches in ascending distance order.
func (idx *Index) Search(ctx context.Context, query []float32, k int, metaFilter func(map[string]interface{}) bool, ef int) ([]*SearchResult, error) {
	// ef is a beam-width hint meaningful only to graph-based indexes; a
	// brute-force scan visits every candidate regardless, so it is unused here.
	_ = ef
	if len(query) != idx.config.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d",
			idx.config.Dimension, len(query))
	}
	if k <= 0 {
		return []*SearchResult{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return []*SearchResult{}, nil
	}

	best := util.NewMaxHeap(k)
	byID := make(map[uint32]*node, len(idx.entries))

	for i, n := range idx.entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if metaFilter != nil && !metaFilter(n.Metadata) {
			continue
		}

		d, err := idx.distanceTo(query, n)
		if err != nil {
			return nil, fmt.Errorf("failed to compute distance: %w", err)
		}

		id := uint32(i)
		byID[id] = n
		best.PushCandidate(&util.Candidate{ID: id, Distance: d})
	}

	ordered := best.Sorted()

	results := make([]*SearchResult, 0, len(ordered))
	for _, c := range ordered {
		n := byID[c.ID]
		vec, err := idx.vectorOf(n)
		if err != nil {
			vec = nil
		}
		results = append(results, &SearchResult{
			ID:       n.ID,
			Score:    c.Distance,
			Vector:   vec,
			Metadata: n.Metadata,
		})
	}
	return results, nil
}

func (idx *Index) distanceTo(query []float32, n *node) (float32, error) {
	if n.Compressed != nil && idx.quantizer != nil {
		d, err := idx.quantizer.DistanceToQuery(n.Compressed, query)
		if err == nil {
			return d, nil
		}
	}
	vec, err := idx.vectorOf(n)
	if err != nil {
		return 0, err
	}
	return idx.distance(query, vec), nil
}

func (idx *Index) vectorOf(n *node) ([]float32, error) {
	if n.Vector != nil {
		return n.Vector, nil
	}
	if n.Compressed != nil && idx.quantizer != nil {
		return idx.quantizer.Decompress(n.Compressed)
	}
	return nil, fmt.Errorf("node %s has no recoverable vector", n.ID)
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Delete removes a vector from the index
func (idx *Index) Delete(ctx context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	index, exists := idx.idToIndex[id]
	if !exists {
		return fmt.Errorf("vector with ID %s not found", id)
	}

	idx.entries = append(idx.entries[:index], idx.entries[index+1:]...)
	delete(idx.idToIndex, id)
	for i := index; i < len(idx.entries); i++ {
		idx.idToIndex[idx.entries[i].ID] = i
	}

	return nil
}

// Size returns the number of vectors in the index
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// MemoryUsage estimates the memory usage of the index
func (idx *Index) MemoryUsage() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var usage int64
	for _, n := range idx.entries {
		if n.Compressed != nil {
			usage += int64(len(n.Compressed))
		} else {
			usage += int64(len(n.Vector)) * 4
		}
		usage += int64(len(n.ID)) + 20
		for k, v := range n.Metadata {
			usage += int64(len(k)) + estimateValueSize(v)
		}
	}
	usage += int64(len(idx.idToIndex)) * 32
	if idx.quantizer != nil {
		usage += idx.quantizer.MemoryUsage()
	}
	return usage
}

// Close cleans up the index resources
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = nil
	idx.idToIndex = nil
	idx.quantizer = nil

	return nil
}

// persistedEntry is the on-disk shape of a node: a raw vector when the
// index carries no quantizer, a compressed payload otherwise.
type persistedEntry struct {
	ID         string                 `json:"id"`
	Vector     []float32              `json:"vector,omitempty"`
	Compressed []byte                 `json:"compressed,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// SaveToDisk persists the index to disk
func (idx *Index) SaveToDisk(ctx context.Context, path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]persistedEntry, len(idx.entries))
	for i, n := range idx.entries {
		entries[i] = persistedEntry{ID: n.ID, Vector: n.Vector, Compressed: n.Compressed, Metadata: n.Metadata}
	}

	data := struct {
		Config   *Config              `json:"config"`
		Entries  []persistedEntry     `json:"entries"`
		Metadata *PersistenceMetadata `json:"metadata"`
	}{
		Config:  idx.config,
		Entries: entries,
		Metadata: &PersistenceMetadata{
			Version:   1,
			NodeCount: len(idx.entries),
			Dimension: idx.config.Dimension,
			IndexType: "Flat",
			CreatedAt: time.Now(),
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("failed to encode index data: %w", err)
	}
	return nil
}

// LoadFromDisk loads the index from disk
func (idx *Index) LoadFromDisk(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data struct {
		Config   *Config              `json:"config"`
		Entries  []persistedEntry     `json:"entries"`
		Metadata *PersistenceMetadata `json:"metadata"`
	}
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode index data: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.config = data.Config
	distanceFunc, err := util.GetDistanceFunc(idx.config.Metric)
	if err != nil {
		return fmt.Errorf("unsupported distance metric: %w", err)
	}
	idx.distance = distanceFunc

	idx.entries = make([]*node, len(data.Entries))
	idx.idToIndex = make(map[string]int, len(data.Entries))
	for i, e := range data.Entries {
		idx.entries[i] = &node{ID: e.ID, Vector: e.Vector, Compressed: e.Compressed, Metadata: e.Metadata}
		idx.idToIndex[e.ID] = i
	}

	if idx.config.Quantization != nil {
		idx.quantizer, err = quant.Create(idx.config.Quantization)
		if err != nil {
			return fmt.Errorf("failed to recreate quantizer: %w", err)
		}
		idx.quantizationTrained = true
	}

	return nil
}

// GetPersistenceMetadata returns metadata about the persisted index
func (idx *Index) GetPersistenceMetadata() *PersistenceMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return &PersistenceMetadata{
		Version:   1,
		NodeCount: len(idx.entries),
		Dimension: idx.config.Dimension,
		IndexType: "Flat",
		CreatedAt: time.Now(),
	}
}

// GetConfig returns the index configuration
func (idx *Index) GetConfig() *Config {
	return idx.config
}

// estimateValueSize estimates the memory size of a metadata value
func estimateValueSize(v interface{}) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val))
	case int, int32, int64, float32, float64:
		return 8
	case bool:
		return 1
	case []interface{}:
		size := int64(0)
		for _, item := range val {
			size += estimateValueSize(item)
		}
		return size
	case map[string]interface{}:
		size := int64(0)
		for k, val := range val {
			size += int64(len(k)) + estimateValueSize(val)
		}
		return size
	default:
		return 16
	}
}
