package tindex

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/tindex/codec"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/query"
)

// IndexDefinition describes one secondary index.
type IndexDefinition struct {
	// ID identifies the index in table names and mutations.
	ID string `json:"id"`

	// Property is the indexed property. Scans address indexes by property.
	Property string `json:"property"`

	// Kind is the value type of the index.
	Kind query.Kind `json:"kind"`
}

// Validate checks the definition.
func (d IndexDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty index id", ErrPrecondition)
	}
	if d.Property == "" {
		return fmt.Errorf("%w: index %s has no property", ErrPrecondition, d.ID)
	}
	switch d.Kind {
	case query.KindInt, query.KindFloat, query.KindString:
		return nil
	}
	return fmt.Errorf("%w: index %s has invalid kind %s", ErrPrecondition, d.ID, d.Kind)
}

// catalog persists index definitions in one kv table. Each value is the
// codec name, length-prefixed, followed by the encoded definition.
type catalog struct {
	table string
	codec codec.Codec
}

func (c catalog) encode(def IndexDefinition) ([]byte, error) {
	name := c.codec.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("codec name %q too long", name)
	}
	payload, err := c.codec.Marshal(def)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+len(name)+len(payload))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	return append(buf, payload...), nil
}

func (c catalog) decode(data []byte) (IndexDefinition, error) {
	var def IndexDefinition
	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return def, fmt.Errorf("%w: truncated catalog entry", ErrInvariant)
	}
	name := string(data[1 : 1+int(data[0])])
	cd, ok := codec.ByName(name)
	if !ok {
		return def, fmt.Errorf("%w: unknown catalog codec %q", ErrInvariant, name)
	}
	if err := cd.Unmarshal(data[1+len(name):], &def); err != nil {
		return def, fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	return def, nil
}

func (c catalog) load(tx kv.Txn) ([]IndexDefinition, error) {
	tbl, err := tx.OpenTable(c.table)
	if errors.Is(err, kv.ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cur, err := tbl.Cursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var defs []IndexDefinition
	for ok := cur.First(); ok; ok = cur.Next() {
		v, err := cur.Value()
		if err != nil {
			return nil, err
		}
		def, err := c.decode(v)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", cur.Key(), err)
		}
		defs = append(defs, def)
	}
	return defs, cur.Err()
}

func (c catalog) put(tx kv.Txn, def IndexDefinition) error {
	tbl, err := tx.CreateTable(c.table)
	if err != nil {
		return err
	}
	data, err := c.encode(def)
	if err != nil {
		return err
	}
	return tbl.Put([]byte(def.ID), data)
}

func (c catalog) delete(tx kv.Txn, id string) error {
	tbl, err := tx.OpenTable(c.table)
	if errors.Is(err, kv.ErrTableNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tbl.Delete([]byte(id))
}

func sortDefinitions(defs []IndexDefinition) {
	slices.SortFunc(defs, func(a, b IndexDefinition) int { return strings.Compare(a.ID, b.ID) })
}

func validCatalogTable(name string) error {
	if strings.HasPrefix(name, keycodec.TablePrefix) {
		return fmt.Errorf("%w: catalog table %q collides with index tables", ErrPrecondition, name)
	}
	return nil
}
