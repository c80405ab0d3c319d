package tindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/tindex/internal/index"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/query"
)

type registered struct {
	def   IndexDefinition
	store index.Store
}

// Engine is a temporal secondary-index engine on top of a kv.Store.
//
// The engine keeps only index definitions in memory; all cells live in the
// store. It is safe for concurrent use. Concurrency of transactions is
// whatever the kv.Store provides.
type Engine struct {
	store   kv.Store
	opts    options
	catalog catalog
	logger  *Logger
	metrics MetricsCollector

	mu         sync.RWMutex
	indexes    map[string]*registered
	byProperty map[string]*registered

	closed atomic.Bool
}

// Open creates an engine on store and loads the index catalog.
//
// The engine does not own store: Close leaves it open.
func Open(ctx context.Context, store kv.Store, optFns ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if err := validCatalogTable(o.catalogTable); err != nil {
		return nil, err
	}

	e := &Engine{
		store:      store,
		opts:       o,
		catalog:    catalog{table: o.catalogTable, codec: o.codec},
		logger:     o.logger,
		metrics:    o.metricsCollector,
		indexes:    make(map[string]*registered),
		byProperty: make(map[string]*registered),
	}

	var defs []IndexDefinition
	err := store.View(ctx, func(tx kv.Txn) error {
		var err error
		defs, err = e.catalog.load(tx)
		return err
	})
	if err != nil {
		return nil, translateError("open", "", err)
	}
	for _, def := range defs {
		if err := e.register(def); err != nil {
			return nil, translateError("open", def.ID, err)
		}
	}
	e.logger.InfoContext(ctx, "engine opened", "indexes", len(defs))
	return e, nil
}

// Close marks the engine closed. Further calls fail with ErrClosed.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.closed.Store(true)
	return nil
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (e *Engine) register(def IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	st, err := index.New(def.ID, def.Kind, e.opts.indexOptions())
	if err != nil {
		return err
	}
	r := &registered{def: def, store: st}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[def.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrIndexExists, def.ID)
	}
	if other, ok := e.byProperty[def.Property]; ok {
		return fmt.Errorf("%w: property %s is indexed by %s", ErrIndexExists, def.Property, other.def.ID)
	}
	e.indexes[def.ID] = r
	e.byProperty[def.Property] = r
	return nil
}

func (e *Engine) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.indexes[id]; ok {
		delete(e.indexes, id)
		delete(e.byProperty, r.def.Property)
	}
}

func (e *Engine) lookup(id string) (*registered, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.indexes[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrIndexNotFound, id)
	}
	return r, nil
}

func (e *Engine) lookupProperty(property string) (*registered, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.byProperty[property]
	if !ok {
		return nil, fmt.Errorf("%w: property %s", ErrIndexNotFound, property)
	}
	return r, nil
}

// CreateIndex registers and persists a new index definition.
func (e *Engine) CreateIndex(ctx context.Context, def IndexDefinition) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	err := e.createIndex(ctx, def)
	e.logger.LogCatalog(ctx, "create", def, err)
	return translateError("create index", def.ID, err)
}

func (e *Engine) createIndex(ctx context.Context, def IndexDefinition) error {
	if err := e.register(def); err != nil {
		return err
	}
	err := e.store.Update(ctx, func(tx kv.Txn) error {
		return e.catalog.put(tx, def)
	})
	if err != nil {
		e.unregister(def.ID)
	}
	return err
}

// DropIndex removes an index definition and all of its data.
func (e *Engine) DropIndex(ctx context.Context, id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	r, err := e.lookup(id)
	if err != nil {
		return translateError("drop index", id, err)
	}
	err = e.store.Update(ctx, func(tx kv.Txn) error {
		if err := r.store.Clear(tx); err != nil {
			return err
		}
		return e.catalog.delete(tx, id)
	})
	if err == nil {
		e.unregister(id)
	}
	e.logger.LogCatalog(ctx, "drop", r.def, err)
	return translateError("drop index", id, err)
}

// Indexes returns all index definitions sorted by id.
func (e *Engine) Indexes() []IndexDefinition {
	e.mu.RLock()
	defs := make([]IndexDefinition, 0, len(e.indexes))
	for _, r := range e.indexes {
		defs = append(defs, r.def)
	}
	e.mu.RUnlock()
	sortDefinitions(defs)
	return defs
}

// Index returns the definition of id.
func (e *Engine) Index(id string) (IndexDefinition, bool) {
	r, err := e.lookup(id)
	if err != nil {
		return IndexDefinition{}, false
	}
	return r.def, true
}

// Update runs fn in a read-write transaction. The transaction commits if fn
// returns nil and is discarded otherwise.
func (e *Engine) Update(ctx context.Context, fn func(*Tx) error) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.store.Update(ctx, func(tx kv.Txn) error {
		return fn(&Tx{ctx: ctx, engine: e, kv: tx})
	})
}

// View runs fn in a read-only transaction.
func (e *Engine) View(ctx context.Context, fn func(*Tx) error) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.store.View(ctx, func(tx kv.Txn) error {
		return fn(&Tx{ctx: ctx, engine: e, kv: tx})
	})
}

// Insert runs Tx.Insert in its own transaction.
func (e *Engine) Insert(ctx context.Context, indexID, keyspace string, value query.Value, entity string, validFrom int64) error {
	return e.Update(ctx, func(tx *Tx) error {
		return tx.Insert(indexID, keyspace, value, entity, validFrom)
	})
}

// TerminateValidity runs Tx.TerminateValidity in its own transaction.
func (e *Engine) TerminateValidity(ctx context.Context, indexID, keyspace string, value query.Value, entity string, instant, assumedLower int64) (bool, error) {
	var changed bool
	err := e.Update(ctx, func(tx *Tx) error {
		var err error
		changed, err = tx.TerminateValidity(indexID, keyspace, value, entity, instant, assumedLower)
		return err
	})
	return changed, err
}

// Rollback runs Tx.Rollback in its own transaction.
func (e *Engine) Rollback(ctx context.Context, indexID string, instant int64, entities ...string) (RollbackStats, error) {
	var stats RollbackStats
	err := e.Update(ctx, func(tx *Tx) error {
		var err error
		stats, err = tx.Rollback(indexID, instant, entities...)
		return err
	})
	return stats, err
}

// Scan runs Tx.Scan in a read-only transaction.
func (e *Engine) Scan(ctx context.Context, spec query.Spec, keyspace string, instant int64, mode ScanMode) (Result, error) {
	var res Result
	err := e.View(ctx, func(tx *Tx) error {
		var err error
		res, err = tx.Scan(spec, keyspace, instant, mode)
		return err
	})
	return res, err
}
