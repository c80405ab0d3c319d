package tindex

import (
	"context"
	"time"

	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/query"
)

// Tx is an engine transaction. A Tx is only valid inside the Update or View
// callback that created it and must not be used concurrently.
type Tx struct {
	ctx    context.Context
	engine *Engine
	kv     kv.Txn
}

// Writable reports whether the transaction accepts mutations.
func (tx *Tx) Writable() bool { return tx.kv.Writable() }

func (tx *Tx) index(op, id string) (*registered, error) {
	if err := tx.ctx.Err(); err != nil {
		return nil, translateError(op, id, err)
	}
	r, err := tx.engine.lookup(id)
	if err != nil {
		return nil, translateError(op, id, err)
	}
	return r, nil
}

// Insert opens validity [validFrom, Forever) for value of entity in keyspace.
//
// If the latest interval is still open the call is a no-op.
func (tx *Tx) Insert(indexID, keyspace string, value query.Value, entity string, validFrom int64) error {
	return tx.InsertRange(indexID, keyspace, value, entity, validFrom, Forever)
}

// InsertRange opens validity [validFrom, validTo).
func (tx *Tx) InsertRange(indexID, keyspace string, value query.Value, entity string, validFrom, validTo int64) error {
	r, err := tx.index("insert", indexID)
	if err != nil {
		return err
	}
	start := time.Now()
	err = r.store.Insert(tx.kv, keyspace, value, entity, validFrom, validTo)
	tx.engine.metrics.RecordInsert(time.Since(start), err)
	tx.engine.logger.LogInsert(tx.ctx, indexID, keyspace, entity, validFrom, err)
	return translateError("insert", indexID, err)
}

// TerminateValidity closes the validity of value for entity at instant.
//
// When no interval is stored the value is treated as inherited and the
// history [assumedLower, instant) is written. The result reports whether the
// index changed.
func (tx *Tx) TerminateValidity(indexID, keyspace string, value query.Value, entity string, instant, assumedLower int64) (bool, error) {
	r, err := tx.index("terminate", indexID)
	if err != nil {
		return false, err
	}
	start := time.Now()
	changed, err := r.store.Terminate(tx.kv, keyspace, value, entity, instant, assumedLower)
	tx.engine.metrics.RecordTerminate(time.Since(start), changed, err)
	tx.engine.logger.LogTerminate(tx.ctx, indexID, keyspace, entity, instant, changed, err)
	return changed, translateError("terminate", indexID, err)
}

// Rollback rewrites the index to its state at instant across all keyspaces.
// When entities are given only their cells are touched.
func (tx *Tx) Rollback(indexID string, instant int64, entities ...string) (RollbackStats, error) {
	r, err := tx.index("rollback", indexID)
	if err != nil {
		return RollbackStats{}, err
	}
	start := time.Now()
	stats, err := r.store.Rollback(tx.kv, instant, entities)
	tx.engine.metrics.RecordRollback(time.Since(start), stats, err)
	tx.engine.logger.LogRollback(tx.ctx, indexID, instant, stats, err)
	return stats, translateError("rollback", indexID, err)
}

// Scan evaluates spec against the index of spec.Property in keyspace.
func (tx *Tx) Scan(spec query.Spec, keyspace string, instant int64, mode ScanMode) (Result, error) {
	if err := tx.ctx.Err(); err != nil {
		return Result{}, translateError("scan", "", err)
	}
	r, err := tx.engine.lookupProperty(spec.Property)
	if err != nil {
		return Result{}, translateError("scan", "", err)
	}
	start := time.Now()
	res, err := r.store.Scan(tx.kv, spec, keyspace, instant, mode)
	tx.engine.metrics.RecordScan(time.Since(start), len(res.Entries), err)
	tx.engine.logger.LogScan(tx.ctx, spec.String(), keyspace, instant, len(res.Entries), err)
	return res, translateError("scan", r.def.ID, err)
}

// AllEntries passes every physical table of the index on property in
// keyspace to fn: the exact table and, for text indexes, the folded one.
func (tx *Tx) AllEntries(keyspace, property string, fn Consumer) error {
	if err := tx.ctx.Err(); err != nil {
		return translateError("entries", "", err)
	}
	r, err := tx.engine.lookupProperty(property)
	if err != nil {
		return translateError("entries", "", err)
	}
	return translateError("entries", r.def.ID, r.store.AllEntries(tx.kv, keyspace, fn))
}

// Keyspaces lists the keyspaces that hold data of the index.
func (tx *Tx) Keyspaces(indexID string) ([]string, error) {
	r, err := tx.index("keyspaces", indexID)
	if err != nil {
		return nil, err
	}
	ks, err := r.store.Keyspaces(tx.kv)
	return ks, translateError("keyspaces", indexID, err)
}

// Intervals returns the stored validity of value for entity.
func (tx *Tx) Intervals(indexID, keyspace string, value query.Value, entity string) (Intervals, bool, error) {
	r, err := tx.index("intervals", indexID)
	if err != nil {
		return nil, false, err
	}
	l, ok, err := r.store.Load(tx.kv, keyspace, value, entity)
	return l, ok, translateError("intervals", indexID, err)
}

// PutIntervals replaces the stored validity of value for entity. An empty
// list removes the cell.
func (tx *Tx) PutIntervals(indexID, keyspace string, value query.Value, entity string, l Intervals) error {
	r, err := tx.index("put", indexID)
	if err != nil {
		return err
	}
	return translateError("put", indexID, r.store.Put(tx.kv, keyspace, value, entity, l))
}

// DeleteValue removes value for entity from the index.
func (tx *Tx) DeleteValue(indexID, keyspace string, value query.Value, entity string) error {
	r, err := tx.index("delete", indexID)
	if err != nil {
		return err
	}
	return translateError("delete", indexID, r.store.Delete(tx.kv, keyspace, value, entity))
}

// Clear removes all data of the given indexes, keeping their definitions.
// Without ids every index is cleared.
func (tx *Tx) Clear(indexIDs ...string) error {
	if len(indexIDs) == 0 {
		for _, def := range tx.engine.Indexes() {
			indexIDs = append(indexIDs, def.ID)
		}
	}
	for _, id := range indexIDs {
		r, err := tx.index("clear", id)
		if err != nil {
			return err
		}
		if err := r.store.Clear(tx.kv); err != nil {
			return translateError("clear", id, err)
		}
	}
	return nil
}
