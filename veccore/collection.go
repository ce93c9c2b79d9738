package veccore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vectorkit/veccore/internal/index"
	"github.com/vectorkit/veccore/internal/metric"
	"github.com/vectorkit/veccore/internal/obs"
	"github.com/vectorkit/veccore/internal/quant"
	"github.com/vectorkit/veccore/internal/storage"
	"github.com/vectorkit/veccore/internal/storage/lsm"
)

// Collection represents a named collection of vectors with a specific schema
type Collection struct {
	mu      sync.RWMutex
	name    string
	config  *CollectionConfig
	index   index.Index
	storage storage.Collection
	metrics *obs.Metrics
	closed  bool

	// records holds the full data-model record (magnitude, normalized
	// flag, access-tracking counters) for every inserted id, keyed
	// separately from the index/storage payloads those components need.
	// recordsMu is distinct from mu so concurrent readers (permitted to
	// run in parallel under the collection's RLock) can still update
	// access-tracking counters without contending on the writer lock.
	records   map[string]*VectorEntry
	recordsMu sync.Mutex
}

// CollectionConfig holds collection-specific configuration
type CollectionConfig struct {
	Dimension int
	Metric    DistanceMetric
	IndexType IndexType
	// HNSW specific parameters
	M              int     // Max connections per node
	EfConstruction int     // Size of dynamic candidate list during construction
	EfSearch       int     // Size of dynamic candidate list during search
	ML             float64 // Level generation factor

	// IndexSnapshotPath, when non-empty, is where the in-memory index graph
	// is loaded from at creation time (if present) and saved to by
	// Collection.SnapshotIndex. The WAL/LSM layer is the durable source of
	// truth. The path is not part of the stored collection config: a
	// collection reopened through Database.GetCollection rebuilds its index
	// from storage and does not load the snapshot.
	IndexSnapshotPath string

	// Quantization, when non-nil, compresses every inserted vector with
	// the configured codec once enough training vectors have accumulated.
	// Searches and distance computations fall back to quantized,
	// asymmetric comparisons transparently; see internal/quant.
	Quantization *quant.Config
}

// DistanceMetric defines the distance function to use
type DistanceMetric int

const (
	L2Distance DistanceMetric = iota
	InnerProduct
	CosineDistance
	ManhattanDistance
	HammingDistance
	JaccardDistance
)

// IndexType defines the index algorithm to use
type IndexType int

const (
	HNSW IndexType = iota
	Flat
)

// metricName maps the public DistanceMetric enum onto the internal metric
// kernel's registry key.
func (m DistanceMetric) metricName() metric.Name {
	switch m {
	case InnerProduct:
		return metric.Dot
	case CosineDistance:
		return metric.Cosine
	case ManhattanDistance:
		return metric.Manhattan
	case HammingDistance:
		return metric.Hamming
	case JaccardDistance:
		return metric.Jaccard
	default:
		return metric.Euclidean
	}
}

// newCollection creates a new collection instance
func newCollection(name string, storageEngine storage.Engine, metrics *obs.Metrics, opts ...CollectionOption) (*Collection, error) {
	config := &CollectionConfig{
		Dimension:      768, // Default for common embeddings
		Metric:         CosineDistance,
		IndexType:      HNSW,
		M:              32,
		EfConstruction: 200,
		EfSearch:       50,
		ML:             1.0 / math.Log(2.0),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply collection option: %w", err)
		}
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid collection config: %w", err)
	}
	if config.Quantization != nil {
		config.Quantization.Metric = config.Metric.metricName()
	}

	// Create storage for this collection. The storage engine persists its
	// own config shape (lsm.CollectionConfig), not the public one.
	storedConfig := &lsm.CollectionConfig{
		Dimension:      config.Dimension,
		Metric:         int(config.Metric),
		IndexType:      int(config.IndexType),
		M:              config.M,
		EfConstruction: config.EfConstruction,
		EfSearch:       config.EfSearch,
		ML:             config.ML,
		Quantization:   config.Quantization,
	}
	collectionStorage, err := storageEngine.CreateCollection(name, storedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection storage: %w", err)
	}

	// Create index
	var idx index.Index
	switch config.IndexType {
	case HNSW:
		idx, err = index.NewHNSW(&index.HNSWConfig{
			Dimension:      config.Dimension,
			M:              config.M,
			EfConstruction: config.EfConstruction,
			EfSearch:       config.EfSearch,
			ML:             config.ML,
			Metric:         config.Metric.metricName(),
			Quantization:   config.Quantization,
		})
	case Flat:
		idx, err = index.NewFlat(&index.FlatConfig{
			Dimension:    config.Dimension,
			Metric:       config.Metric.metricName(),
			Quantization: config.Quantization,
		})
	default:
		return nil, fmt.Errorf("unsupported index type: %v", config.IndexType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	if config.IndexSnapshotPath != "" {
		if err := idx.LoadFromDisk(context.Background(), config.IndexSnapshotPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load index snapshot: %w", err)
			}
		}
	}

	return &Collection{
		name:    name,
		config:  config,
		index:   idx,
		storage: collectionStorage,
		metrics: metrics,
		records: make(map[string]*VectorEntry),
	}, nil
}

// SnapshotIndex persists the in-memory index graph to the collection's
// configured snapshot path. A collection later created with the same
// path (WithIndexPersistence) loads that graph; one reopened through
// newCollectionFromStorage replays storage instead.
func (c *Collection) SnapshotIndex(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrCollectionClosed
	}
	if c.config.IndexSnapshotPath == "" {
		return fmt.Errorf("collection %q has no configured index snapshot path", c.name)
	}
	return c.index.SaveToDisk(ctx, c.config.IndexSnapshotPath)
}

// newCollectionFromStorage rebuilds a Collection wrapper around a
// collection the storage engine already has on disk: the index is
// reconstructed in memory by replaying every persisted entry, since only
// the WAL/LSM layer itself is durable.
func newCollectionFromStorage(name string, storageCollection storage.Collection, metrics *obs.Metrics, storedConfig *lsm.CollectionConfig) (*Collection, error) {
	config := &CollectionConfig{
		Dimension:      storedConfig.Dimension,
		Metric:         DistanceMetric(storedConfig.Metric),
		IndexType:      IndexType(storedConfig.IndexType),
		M:              storedConfig.M,
		EfConstruction: storedConfig.EfConstruction,
		EfSearch:       storedConfig.EfSearch,
		ML:             storedConfig.ML,
		Quantization:   storedConfig.Quantization,
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid stored collection config: %w", err)
	}

	var idx index.Index
	var err error
	switch config.IndexType {
	case Flat:
		idx, err = index.NewFlat(&index.FlatConfig{
			Dimension:    config.Dimension,
			Metric:       config.Metric.metricName(),
			Quantization: config.Quantization,
		})
	default:
		idx, err = index.NewHNSW(&index.HNSWConfig{
			Dimension:      config.Dimension,
			M:              config.M,
			EfConstruction: config.EfConstruction,
			EfSearch:       config.EfSearch,
			ML:             config.ML,
			Metric:         config.Metric.metricName(),
			Quantization:   config.Quantization,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	c := &Collection{
		name:    name,
		config:  config,
		index:   idx,
		storage: storageCollection,
		metrics: metrics,
		records: make(map[string]*VectorEntry),
	}

	iterable, ok := storageCollection.(interface {
		Iterate(context.Context, func(*index.VectorEntry) error) error
	})
	if !ok {
		return c, nil
	}
	ctx := context.Background()
	now := time.Now()
	err = iterable.Iterate(ctx, func(entry *index.VectorEntry) error {
		if insertErr := idx.Insert(ctx, entry); insertErr != nil {
			return insertErr
		}
		mag := magnitudeOf(entry.Vector)
		c.records[entry.ID] = &VectorEntry{
			ID:             entry.ID,
			Vector:         entry.Vector,
			Metadata:       entry.Metadata,
			Dimension:      config.Dimension,
			Magnitude:      mag,
			Normalized:     math.Abs(float64(mag)-1) <= normalizedTolerance,
			CreatedAt:      now,
			LastAccessedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild index from storage: %w", err)
	}

	return c, nil
}

// Insert adds or updates a vector in the collection. The record's
// magnitude and normalized flag are derived from the raw vector and
// cached on the entry; AccessCount starts at zero and LastAccessedAt at
// the insert time, and after that only Search/Get update them.
func (c *Collection) Insert(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCollectionClosed
	}

	// Validate input
	if len(vector) != c.config.Dimension {
		return fmt.Errorf("vector dimension %d does not match collection dimension %d",
			len(vector), c.config.Dimension)
	}

	mag := magnitudeOf(vector)
	now := time.Now()
	record := &VectorEntry{
		ID:             id,
		Vector:         vector,
		Metadata:       metadata,
		Dimension:      c.config.Dimension,
		Magnitude:      mag,
		Normalized:     math.Abs(float64(mag)-1) <= normalizedTolerance,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	c.records[id] = record

	indexEntry := &index.VectorEntry{ID: id, Vector: vector, Metadata: metadata}

	// Insert into index
	if err := c.index.Insert(ctx, indexEntry); err != nil {
		delete(c.records, id)
		return fmt.Errorf("failed to insert into index: %w", err)
	}

	// Write to storage (WAL)
	if err := c.storage.Insert(ctx, indexEntry); err != nil {
		if delErr := c.index.Delete(ctx, id); delErr != nil {
			return fmt.Errorf("failed to write to storage: %w (rollback also failed: %v)", err, delErr)
		}
		delete(c.records, id)
		return fmt.Errorf("failed to write to storage: %w", err)
	}

	// Update metrics
	if c.metrics != nil {
		c.metrics.VectorInserts.Inc()
	}

	return nil
}

// Get retrieves a vector record by id, bumping its access-tracking fields.
func (c *Collection) Get(ctx context.Context, id string) (*VectorEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrCollectionClosed
	}

	c.recordsMu.Lock()
	defer c.recordsMu.Unlock()
	record, ok := c.records[id]
	if !ok {
		return nil, fmt.Errorf("vector %q: %w", id, ErrVectorNotFound)
	}
	record.LastAccessedAt = time.Now()
	record.AccessCount++
	cp := *record
	return &cp, nil
}

// Delete removes a vector from both the index and the storage layer. The
// index node is removed first so no concurrent search can return the id
// once storage acknowledges the delete.
func (c *Collection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCollectionClosed
	}

	if _, ok := c.records[id]; !ok {
		return fmt.Errorf("vector %q: %w", id, ErrVectorNotFound)
	}

	if err := c.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from index: %w", err)
	}
	if err := c.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from storage: %w", err)
	}
	delete(c.records, id)

	if c.metrics != nil {
		c.metrics.VectorDeletes.Inc()
	}
	return nil
}

// Search performs a vector similarity search. metaFilter, when non-nil,
// restricts which candidates may occupy a result slot without blocking
// graph traversal through non-matching nodes. ef <= 0 requests the
// collection's configured default beam width.
func (c *Collection) Search(ctx context.Context, vector []float32, k int, metaFilter index.MetaFilter, ef int) (*SearchResults, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrCollectionClosed
	}

	// Validate input
	if len(vector) != c.config.Dimension {
		return nil, fmt.Errorf("query vector dimension %d does not match collection dimension %d",
			len(vector), c.config.Dimension)
	}

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// Start timing
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		}
	}()

	// Search index
	indexResults, err := c.index.Search(ctx, vector, k, metaFilter, ef)
	if err != nil {
		if c.metrics != nil {
			c.metrics.SearchErrors.Inc()
		}
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	// Update metrics
	if c.metrics != nil {
		c.metrics.SearchQueries.Inc()
	}

	metricName := c.config.Metric.metricName()
	results := make([]*SearchResult, len(indexResults))
	now := time.Now()
	c.recordsMu.Lock()
	for i, r := range indexResults {
		score, scoreErr := metric.ScoreFromDistance(metricName, float64(r.Score))
		if scoreErr != nil {
			score = float64(r.Score)
		}
		results[i] = &SearchResult{ID: r.ID, Distance: r.Score, Score: float32(score), Vector: r.Vector, Metadata: r.Metadata}
		if record, ok := c.records[r.ID]; ok {
			record.LastAccessedAt = now
			record.AccessCount++
		}
	}
	c.recordsMu.Unlock()

	// The index already returns candidates in ascending-distance order, but
	// ties aren't guaranteed to break consistently across heap pops; a
	// stable re-sort on (distance, id) pins down the tie-breaking rule.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	return &SearchResults{
		Results: results,
		Took:    time.Since(start),
		Total:   len(results),
	}, nil
}

// Query returns a new query builder for this collection
func (c *Collection) Query(ctx context.Context) *QueryBuilder {
	return &QueryBuilder{
		ctx:        ctx,
		collection: c,
		limit:      10, // default
	}
}

// Stats returns collection statistics
func (c *Collection) Stats() *CollectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &CollectionStats{
		Name:        c.name,
		VectorCount: c.index.Size(),
		Dimension:   c.config.Dimension,
		IndexType:   c.config.IndexType.String(),
		MemoryUsage: c.index.MemoryUsage(),
	}
}

// Close shuts down the collection
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var errors []error

	if err := c.index.Close(); err != nil {
		errors = append(errors, err)
	}

	if err := c.storage.Close(); err != nil {
		errors = append(errors, err)
	}

	c.closed = true

	if len(errors) > 0 {
		return fmt.Errorf("errors during collection shutdown: %v", errors)
	}

	return nil
}

// validate checks if the collection configuration is valid
func (config *CollectionConfig) validate() error {
	if config.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", config.Dimension)
	}

	if config.M <= 0 {
		return fmt.Errorf("M must be positive, got %d", config.M)
	}

	if config.EfConstruction <= 0 {
		return fmt.Errorf("EfConstruction must be positive, got %d", config.EfConstruction)
	}

	if config.EfSearch <= 0 {
		return fmt.Errorf("EfSearch must be positive, got %d", config.EfSearch)
	}

	if q := config.Quantization; q != nil && q.Type == quant.ProductQuantization && q.Subspaces > 0 {
		if config.Dimension%q.Subspaces != 0 {
			return fmt.Errorf("product quantization subspaces (%d) must divide dimension (%d)", q.Subspaces, config.Dimension)
		}
	}

	return nil
}
