// Package backup exports index contents to a blobstore and restores them.
//
// A backup is a set of blobs below a UUID prefix: one compressed record
// stream per index plus a JSON manifest. After a successful export the ID is
// written to the CURRENT blob, so Restore without an ID picks the latest
// backup. Stores such as s3.DDBCommitStore give CURRENT compare-and-swap
// semantics.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"path"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/blobstore"
	"github.com/hupe1980/tindex/codec"
	"github.com/hupe1980/tindex/internal/resource"
	"golang.org/x/sync/errgroup"
)

// ErrDefinitionMismatch is returned by Restore when an index exists with a
// different definition than the backup.
var ErrDefinitionMismatch = errors.New("backup: index definition differs from backup")

// DefaultBatchSize is the number of rows Restore writes per transaction.
const DefaultBatchSize = 1000

type options struct {
	compression Compression
	parallelism int
	batchSize   int
	rowsPerSec  float64
	burst       int
	codec       codec.Codec
	logger      *tindex.Logger
	indexes     []string
	commit      bool
}

func defaultOptions() options {
	return options{
		compression: CompressionZstd,
		parallelism: 4,
		batchSize:   DefaultBatchSize,
		codec:       codec.Default,
		logger:      tindex.NoopLogger(),
		commit:      true,
	}
}

// Option configures Export and Restore.
type Option func(*options)

// WithCompression sets the stream compression of exported indexes.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithParallelism sets how many indexes are processed concurrently.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithBatchSize sets the rows per restore transaction.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithRateLimit throttles export and restore to rowsPerSecond rows across
// all indexes. Zero disables throttling.
func WithRateLimit(rowsPerSecond float64, burst int) Option {
	return func(o *options) {
		o.rowsPerSec = max(rowsPerSecond, 0)
		o.burst = burst
	}
}

// WithIndexes restricts the operation to the given index IDs.
func WithIndexes(ids ...string) Option {
	return func(o *options) { o.indexes = ids }
}

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *tindex.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithoutCommit skips updating CURRENT after an export.
func WithoutCommit() Option {
	return func(o *options) { o.commit = false }
}

func (o *options) selected(defs []tindex.IndexDefinition) ([]tindex.IndexDefinition, error) {
	if len(o.indexes) == 0 {
		return defs, nil
	}
	var out []tindex.IndexDefinition
	for _, id := range o.indexes {
		i := slices.IndexFunc(defs, func(d tindex.IndexDefinition) bool { return d.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: id %s", tindex.ErrIndexNotFound, id)
		}
		out = append(out, defs[i])
	}
	return out, nil
}

func (o *options) controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MaxWorkers: int64(o.parallelism),
		RowsPerSec: o.rowsPerSec,
		RowBurst:   o.burst,
	})
}

// run calls fn for every item on at most parallelism workers.
func run[T any](ctx context.Context, ctl *resource.Controller, items []T, fn func(context.Context, int, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			if err := ctl.AcquireWorker(gctx); err != nil {
				return err
			}
			defer ctl.ReleaseWorker()
			return fn(gctx, i, item)
		})
	}
	return g.Wait()
}

type aborter interface {
	Abort() error
}

// Export writes the selected indexes of eng to store. Each index is read in
// its own read-only transaction.
func Export(ctx context.Context, eng *tindex.Engine, store blobstore.Store, opts ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	c, err := ParseCompression(string(o.compression))
	if err != nil {
		return nil, err
	}
	o.compression = c
	defs, err := o.selected(eng.Indexes())
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Compression: o.compression,
		Indexes:     make([]IndexManifest, len(defs)),
	}

	ctl := o.controller()
	err = run(ctx, ctl, defs, func(ctx context.Context, i int, def tindex.IndexDefinition) error {
		im, err := exportIndex(ctx, eng, store, ctl, m, def)
		m.Indexes[i] = im
		return err
	})
	if err != nil {
		cleanup(ctx, store, m.ID)
		o.logger.ErrorContext(ctx, "backup export failed", "backup", m.ID, "error", err)
		return nil, err
	}

	if err := writeManifest(ctx, store, o.codec, m); err != nil {
		cleanup(ctx, store, m.ID)
		return nil, err
	}
	if o.commit {
		if err := store.Put(ctx, blobstore.CurrentName, []byte(m.ID)); err != nil {
			return m, fmt.Errorf("backup: commit %s: %w", m.ID, err)
		}
	}
	o.logger.InfoContext(ctx, "backup exported",
		"backup", m.ID,
		"indexes", len(m.Indexes),
		"rows", m.Rows(),
		"compression", m.Compression.String(),
	)
	return m, nil
}

func cleanup(ctx context.Context, store blobstore.Store, id string) {
	names, err := store.List(context.WithoutCancel(ctx), id+"/")
	if err != nil {
		return
	}
	for _, name := range names {
		_ = store.Delete(context.WithoutCancel(ctx), name)
	}
}

func exportIndex(ctx context.Context, eng *tindex.Engine, store blobstore.Store, ctl *resource.Controller, m *Manifest, def tindex.IndexDefinition) (IndexManifest, error) {
	im := IndexManifest{
		Definition: def,
		Blob:       path.Join(m.ID, url.PathEscape(def.ID)+".tib"+m.Compression.Extension()),
	}

	w, err := store.Create(ctx, im.Blob)
	if err != nil {
		return im, err
	}
	err = writeIndex(ctx, eng, w, ctl, m.Compression, &im)
	if err != nil {
		if a, ok := w.(aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
			_ = store.Delete(context.WithoutCancel(ctx), im.Blob)
		}
		return im, fmt.Errorf("backup: export index %s: %w", def.ID, err)
	}
	if err := w.Close(); err != nil {
		return im, fmt.Errorf("backup: export index %s: %w", def.ID, err)
	}
	return im, nil
}

func writeIndex(ctx context.Context, eng *tindex.Engine, w io.Writer, ctl *resource.Controller, c Compression, im *IndexManifest) error {
	cw, err := c.newWriter(w)
	if err != nil {
		return err
	}
	rw, err := newRecordWriter(cw)
	if err != nil {
		_ = cw.Close()
		return err
	}

	def := im.Definition
	err = eng.View(ctx, func(tx *tindex.Tx) error {
		spaces, err := tx.Keyspaces(def.ID)
		if err != nil {
			return err
		}
		im.Keyspaces = spaces
		for _, ks := range spaces {
			err := tx.AllEntries(ks, def.Property, func(tbl tindex.Table, rows iter.Seq2[tindex.Row, error]) error {
				// Folded rows are rebuilt from the exact table on restore.
				if tbl.Folded {
					return nil
				}
				for row, err := range rows {
					if err != nil {
						return err
					}
					if err := ctl.WaitRows(ctx); err != nil {
						return err
					}
					if err := rw.write(record{Keyspace: ks, Value: row.Value, Entity: row.Entity, Intervals: row.Intervals}); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		err = rw.finish()
	}
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	im.Rows = rw.count
	return err
}

// Restore replaces the contents of the indexes in backup id with the backup.
// An empty id restores the backup named by CURRENT. Missing index definitions
// are created; existing ones must match.
//
// Every selected stream is read and verified in full before anything is
// written, so a corrupt backup leaves the engine untouched. Each index is then
// cleared and rewritten in batches of transactions; a storage or
// cancellation error during that phase can leave an index partially restored.
func Restore(ctx context.Context, eng *tindex.Engine, store blobstore.Store, id string, opts ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if id == "" {
		var err error
		if id, err = Latest(ctx, store); err != nil {
			return nil, err
		}
	}
	m, err := ReadManifest(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if _, err := ParseCompression(string(m.Compression)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var ims []IndexManifest
	for _, im := range m.Indexes {
		if len(o.indexes) > 0 && !slices.Contains(o.indexes, im.Definition.ID) {
			continue
		}
		ims = append(ims, im)
	}

	ctl := o.controller()
	err = run(ctx, ctl, ims, func(ctx context.Context, _ int, im IndexManifest) error {
		if err := verifyIndex(ctx, store, m.Compression, im); err != nil {
			return fmt.Errorf("backup: verify index %s: %w", im.Definition.ID, err)
		}
		return nil
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "backup verification failed", "backup", m.ID, "error", err)
		return nil, err
	}

	for _, im := range ims {
		if err := ensureIndex(ctx, eng, im.Definition); err != nil {
			return nil, err
		}
	}

	err = run(ctx, ctl, ims, func(ctx context.Context, _ int, im IndexManifest) error {
		if err := restoreIndex(ctx, eng, store, ctl, o.batchSize, m.Compression, im); err != nil {
			return fmt.Errorf("backup: restore index %s: %w", im.Definition.ID, err)
		}
		return nil
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "backup restore failed", "backup", m.ID, "error", err)
		return nil, err
	}
	o.logger.InfoContext(ctx, "backup restored", "backup", m.ID, "indexes", len(ims))
	return m, nil
}

func ensureIndex(ctx context.Context, eng *tindex.Engine, def tindex.IndexDefinition) error {
	existing, ok := eng.Index(def.ID)
	if !ok {
		return eng.CreateIndex(ctx, def)
	}
	if existing != def {
		return fmt.Errorf("%w: index %s is %s/%s, backup has %s/%s", ErrDefinitionMismatch,
			def.ID, existing.Property, existing.Kind, def.Property, def.Kind)
	}
	return nil
}

// openStream opens the record stream of im. close releases the blob.
func openStream(ctx context.Context, store blobstore.Store, c Compression, im IndexManifest) (rr *recordReader, closeFn func(), err error) {
	r, err := blobstore.NewReader(ctx, store, im.Blob)
	if err != nil {
		return nil, nil, err
	}
	dr, err := c.newReader(r)
	if err != nil {
		_ = r.Close()
		return nil, nil, err
	}
	closeFn = func() {
		_ = dr.Close()
		_ = r.Close()
	}
	if rr, err = newRecordReader(dr); err != nil {
		closeFn()
		return nil, nil, err
	}
	return rr, closeFn, nil
}

// verifyIndex decodes the whole stream of im, including its trailer, and
// checks the row count against the manifest.
func verifyIndex(ctx context.Context, store blobstore.Store, c Compression, im IndexManifest) error {
	rr, closeFn, err := openStream(ctx, store, c, im)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := rr.next(); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}
	}
	if rr.count != im.Rows {
		return fmt.Errorf("%w: stream holds %d rows, manifest %d", ErrCorrupt, rr.count, im.Rows)
	}
	return nil
}

func restoreIndex(ctx context.Context, eng *tindex.Engine, store blobstore.Store, ctl *resource.Controller, batchSize int, c Compression, im IndexManifest) error {
	rr, closeFn, err := openStream(ctx, store, c, im)
	if err != nil {
		return err
	}
	defer closeFn()

	id := im.Definition.ID
	cleared := false
	batch := make([]record, 0, batchSize)
	flush := func() error {
		err := eng.Update(ctx, func(tx *tindex.Tx) error {
			if !cleared {
				if err := tx.Clear(id); err != nil {
					return err
				}
			}
			for _, rec := range batch {
				if err := tx.PutIntervals(id, rec.Keyspace, rec.Value, rec.Entity, rec.Intervals); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		cleared = true
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := rr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := ctl.WaitRows(ctx); err != nil {
			return err
		}
		batch = append(batch, rec)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 || !cleared {
		if err := flush(); err != nil {
			return err
		}
	}
	if rr.count != im.Rows {
		return fmt.Errorf("%w: stream holds %d rows, manifest %d", ErrCorrupt, rr.count, im.Rows)
	}
	return nil
}
