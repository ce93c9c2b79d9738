// Package badgerstore implements storage.Engine on top of BadgerDB, an
// embedded, transactional LSM-tree key-value store. It is an alternative
// to internal/storage/lsm's hand-rolled WAL engine for callers who want
// BadgerDB's crash recovery, compaction, and transaction guarantees
// instead of managing a bespoke log format.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/vectorkit/veccore/internal/index"
	"github.com/vectorkit/veccore/internal/storage"
	"github.com/vectorkit/veccore/internal/storage/lsm"
)

// Engine wraps a single BadgerDB instance shared across every collection
// it serves; each collection's keys are namespaced by its name so one
// database file backs the whole veccore.Database.
type Engine struct {
	mu          sync.RWMutex
	db          *badger.DB
	collections map[string]*Collection
	closed      bool
}

// New opens (or creates) a BadgerDB store at basePath.
func New(basePath string) (storage.Engine, error) {
	opts := badger.DefaultOptions(basePath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	engine := &Engine{db: db, collections: make(map[string]*Collection)}
	if err := engine.loadExistingCollections(); err != nil {
		db.Close()
		return nil, err
	}
	return engine, nil
}

// collectionMetaKey/recordKey give every collection's keys a private
// namespace within the shared database: a single metadata record plus
// one record key per vector, both prefixed by the collection name.
func collectionMetaKey(name string) []byte {
	return []byte("meta\x00" + name)
}

func recordKey(collection, id string) []byte {
	return []byte("rec\x00" + collection + "\x00" + id)
}

func recordPrefix(collection string) []byte {
	return []byte("rec\x00" + collection + "\x00")
}

func (e *Engine) loadExistingCollections() error {
	return e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("meta\x00")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := string(it.Item().Key()[len(prefix):])
			e.collections[name] = &Collection{engine: e, name: name}
		}
		return nil
	})
}

// CreateCollection registers a new collection; config, if non-nil, is
// persisted verbatim as JSON so it can be recovered by a later process.
func (e *Engine) CreateCollection(name string, config interface{}) (storage.Collection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.collections[name]; exists {
		return nil, fmt.Errorf("collection %s already exists", name)
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection config: %w", err)
	}

	if err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collectionMetaKey(name), payload)
	}); err != nil {
		return nil, fmt.Errorf("failed to persist collection metadata: %w", err)
	}

	collection := &Collection{engine: e, name: name}
	e.collections[name] = collection
	return collection, nil
}

// GetCollection retrieves an existing collection by name.
func (e *Engine) GetCollection(name string) (storage.Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	collection, exists := e.collections[name]
	if !exists {
		return nil, fmt.Errorf("collection %s not found", name)
	}
	return collection, nil
}

// GetCollectionWithConfig retrieves an existing collection and its
// configuration. It shares lsm.CollectionConfig as the stored-config
// shape so callers (veccore.Database) can treat either storage backend
// interchangeably when rebuilding a Collection after a restart.
func (e *Engine) GetCollectionWithConfig(name string) (storage.Collection, *lsm.CollectionConfig, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	collection, exists := e.collections[name]
	if !exists {
		return nil, nil, fmt.Errorf("collection %s not found", name)
	}

	var config lsm.CollectionConfig
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(collectionMetaKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &config)
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load collection config: %w", err)
	}
	return collection, &config, nil
}

// Close shuts down the underlying BadgerDB handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.collections = nil
	return e.db.Close()
}

// Collection is a named view over the shared BadgerDB keyspace.
type Collection struct {
	engine *Engine
	name   string
	closed bool
}

// Insert writes a vector entry inside a single BadgerDB transaction.
func (c *Collection) Insert(ctx context.Context, entry *index.VectorEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal vector entry: %w", err)
	}
	return c.engine.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(c.name, entry.ID), payload)
	})
}

// Get reads back a single vector entry.
func (c *Collection) Get(ctx context.Context, id string) (*index.VectorEntry, error) {
	var entry index.VectorEntry
	err := c.engine.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(c.name, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("entry %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes a vector entry.
func (c *Collection) Delete(ctx context.Context, id string) error {
	key := recordKey(c.name, id)
	return c.engine.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("entry %s does not exist", id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// Iterate calls fn for every vector entry currently stored in this
// collection, in BadgerDB key order.
func (c *Collection) Iterate(ctx context.Context, fn func(*index.VectorEntry) error) error {
	return c.engine.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := recordPrefix(c.name)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry index.VectorEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			if err := fn(&entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close marks the collection closed; the shared BadgerDB handle is only
// actually closed by Engine.Close.
func (c *Collection) Close() error {
	c.closed = true
	return nil
}
