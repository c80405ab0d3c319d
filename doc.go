// Package tindex provides temporal secondary indexes for embedded
// bitemporal databases.
//
// An index maps (value, entity) pairs of one property to the list of
// half-open time intervals during which the entity held that value. Indexes
// live in a transactional ordered key-value store (see package kv) and are
// queried for the entities whose value satisfies a condition at an instant.
//
// # Quick Start
//
//	ctx := context.Background()
//	store := memkv.New()
//	eng, _ := tindex.Open(ctx, store)
//	_ = eng.CreateIndex(ctx, tindex.IndexDefinition{ID: "1", Property: "price", Kind: query.KindFloat})
//
//	_ = eng.Insert(ctx, "1", "main", query.Float(3.1415), "k1", 1000)
//	_, _ = eng.TerminateValidity(ctx, "1", "main", query.Float(3.1415), "k1", 2000, 0)
//
//	res, _ := eng.Scan(ctx, query.Eq("price", query.Float(3.1415)), "main", 1500, tindex.ModeContains)
//	for _, e := range res.Entries {
//	    fmt.Println(e.Entity, e.Value)
//	}
//
// # Transactions
//
// Update and View run a callback inside one store transaction. All
// mutations of the callback commit together; a returned error discards them:
//
//	err := eng.Update(ctx, func(tx *tindex.Tx) error {
//	    if err := tx.Insert("1", "main", query.Float(1.5), "k2", 100); err != nil {
//	        return err
//	    }
//	    _, err := tx.Rollback("1", 50)
//	    return err
//	})
//
// # Validity
//
// Intervals are [Lower, Upper) in caller-defined int64 time units. Upper
// equal to Forever marks an interval that is still open. Insert opens a new
// interval, TerminateValidity closes the open one and Rollback rewrites
// history to its state at an instant.
//
// # Queries
//
// Scans take a query.Spec. Equality and range operators walk the index in
// key order and stop at the first mismatch. Text operators walk the whole
// table unless a prefix bounds them. Text indexes keep a case-folded
// companion table for case-insensitive queries.
//
// # Storage
//
// Three kv.Store implementations are provided: kv/memkv (in-memory B-trees),
// kv/badgerkv (Badger) and kv/sqlitekv (SQLite).
package tindex
