// Package veccore provides an embedded vector similarity search engine
// optimized for Go applications with HNSW indexing and LSM storage.
package veccore

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/vectorkit/veccore/internal/errs"
	"github.com/vectorkit/veccore/internal/obs"
	"github.com/vectorkit/veccore/internal/storage"
	"github.com/vectorkit/veccore/internal/storage/badgerstore"
	"github.com/vectorkit/veccore/internal/storage/lsm" // Direct import here
)

// StorageBackend selects which storage.Engine implementation a Database
// uses to persist collections.
type StorageBackend int

const (
	// BackendLSM is the default: the teacher's hand-rolled WAL + in-memory
	// cache engine.
	BackendLSM StorageBackend = iota
	// BackendBadger uses an embedded BadgerDB instance for transactional,
	// crash-safe persistence.
	BackendBadger
)

// configAwareEngine is satisfied by any storage.Engine that can also
// recover a collection's persisted configuration, letting GetCollection
// lazily rebuild a Collection after a restart regardless of which
// backend created it.
type configAwareEngine interface {
	GetCollectionWithConfig(name string) (storage.Collection, *lsm.CollectionConfig, error)
}

// namePattern is the allowed shape for a collection name: 3 to 64
// characters drawn from letters, digits, underscore and hyphen.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// reservedNames can never be used as a collection name; they're set aside
// for internal/administrative use.
var reservedNames = map[string]bool{
	"root":    true,
	"system":  true,
	"default": true,
	"admin":   true,
}

// validateCollectionName enforces the naming contract every collection
// must satisfy before it's created.
func validateCollectionName(name string) error {
	if !namePattern.MatchString(name) {
		return errs.NewInvalidNamespaceName(name)
	}
	if reservedNames[name] {
		return errs.NewInvalidNamespaceName(name).WithContext("reason", "reserved name")
	}
	return nil
}

// Database represents the main vector database instance
type Database struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	storage     storage.Engine
	metrics     *obs.Metrics
	health      *obs.HealthChecker
	config      *Config
	closed      bool
}

// Config holds database-wide configuration
type Config struct {
	StoragePath    string
	MetricsEnabled bool
	TracingEnabled bool
	MaxCollections int
	StorageBackend StorageBackend
}

// New creates a new Database instance with the given options
func New(opts ...Option) (*Database, error) {
	config := &Config{
		StoragePath:    "./data",
		MetricsEnabled: true,
		TracingEnabled: false,
		MaxCollections: 100,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Initialize storage engine DIRECTLY - no more NewLSM wrapper
	var storageEngine storage.Engine
	var err error
	switch config.StorageBackend {
	case BackendBadger:
		storageEngine, err = badgerstore.New(config.StoragePath)
	default:
		storageEngine, err = lsm.New(config.StoragePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize observability
	var metrics *obs.Metrics
	if config.MetricsEnabled {
		metrics = obs.NewMetrics()
	}

	db := &Database{
		collections: make(map[string]*Collection),
		storage:     storageEngine,
		metrics:     metrics,
		config:      config,
	}

	// Initialize health checker
	db.health = obs.NewHealthChecker(db)

	// Load existing collections from storage
	if err := db.loadExistingCollections(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load existing collections: %w", err)
	}

	return db, nil
}

// CreateCollection creates a new collection with the specified options
func (db *Database) CreateCollection(ctx context.Context, name string, opts ...CollectionOption) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}

	if err := validateCollectionName(name); err != nil {
		return nil, err
	}

	if _, exists := db.collections[name]; exists {
		return nil, errs.NewNamespaceExists(name)
	}

	if len(db.collections) >= db.config.MaxCollections {
		return nil, ErrTooManyCollections
	}

	collection, err := newCollection(name, db.storage, db.metrics, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	db.collections[name] = collection
	return collection, nil
}

// GetCollection retrieves an existing collection by name
func (db *Database) GetCollection(name string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}

	// Check if collection is already loaded
	collection, exists := db.collections[name]
	if exists {
		return collection, nil
	}

	// Try to load collection from storage with configuration
	if aware, ok := db.storage.(configAwareEngine); ok {
		storageCollection, config, err := aware.GetCollectionWithConfig(name)
		if err != nil {
			return nil, fmt.Errorf("collection %s not found", name)
		}

		// Create Collection wrapper with stored configuration
		collection, err = newCollectionFromStorage(name, storageCollection, db.metrics, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create collection from storage: %w", err)
		}
	} else {
		return nil, fmt.Errorf("collection %s not found", name)
	}

	// Cache the collection
	db.collections[name] = collection

	return collection, nil
}

// ListCollections returns the names of all collections
func (db *Database) ListCollections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	return names
}

// Health returns the current health status
func (db *Database) Health(ctx context.Context) (*obs.HealthStatus, error) {
	return db.health.Check(ctx)
}

// Stats returns database statistics
func (db *Database) Stats() *DatabaseStats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stats := &DatabaseStats{
		CollectionCount: len(db.collections),
		Collections:     make(map[string]*CollectionStats),
	}

	var totalMemory int64
	for name, collection := range db.collections {
		collectionStats := collection.Stats()
		stats.Collections[name] = collectionStats
		totalMemory += collectionStats.MemoryUsage
	}

	stats.MemoryUsage = totalMemory
	return stats
}

// loadExistingCollections discovers and loads existing collections from storage
func (db *Database) loadExistingCollections(ctx context.Context) error {
	// This is a simplified approach - we'll need to discover collections
	// from the storage layer. For now, we'll implement a basic version
	// that works with the LSM storage engine.

	// The LSM engine already loads existing collections internally,
	// but we need to create Collection wrappers for them at the database level.
	// This is a design issue that should be addressed in a future refactor.

	// For now, we'll implement lazy loading in GetCollection instead
	return nil
}

// Close gracefully shuts down the database
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}

	var errors []error

	// Close all collections
	for _, collection := range db.collections {
		if err := collection.Close(); err != nil {
			errors = append(errors, err)
		}
	}

	// Close storage
	if err := db.storage.Close(); err != nil {
		errors = append(errors, err)
	}

	db.closed = true

	if len(errors) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errors)
	}

	return nil
}
