package backup

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/blobstore"
	"github.com/hupe1980/tindex/codec"
)

// ManifestName is the blob name of a backup manifest below its ID.
const ManifestName = "manifest.json"

// Manifest describes one backup.
type Manifest struct {
	// ID is the backup identifier (a UUID) and the blob name prefix.
	ID string `json:"id"`

	CreatedAt   time.Time       `json:"created_at"`
	Compression Compression     `json:"compression"`
	Indexes     []IndexManifest `json:"indexes"`
}

// IndexManifest describes the stream of one index.
type IndexManifest struct {
	Definition tindex.IndexDefinition `json:"definition"`
	Blob       string                 `json:"blob"`
	Keyspaces  []string               `json:"keyspaces"`
	Rows       uint64                 `json:"rows"`
}

// Rows returns the total row count.
func (m *Manifest) Rows() uint64 {
	var n uint64
	for _, im := range m.Indexes {
		n += im.Rows
	}
	return n
}

func manifestPath(id string) string {
	return path.Join(id, ManifestName)
}

func writeManifest(ctx context.Context, store blobstore.Store, c codec.Codec, m *Manifest) error {
	data, err := c.Marshal(m)
	if err != nil {
		return fmt.Errorf("backup: encode manifest: %w", err)
	}
	return store.Put(ctx, manifestPath(m.ID), data)
}

// ReadManifest loads the manifest of backup id.
func ReadManifest(ctx context.Context, store blobstore.Store, id string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, manifestPath(id))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %v", ErrCorrupt, id, err)
	}
	if m.ID != id {
		return nil, fmt.Errorf("%w: manifest %s names backup %q", ErrCorrupt, id, m.ID)
	}
	return &m, nil
}

// Latest returns the ID recorded in the CURRENT blob.
func Latest(ctx context.Context, store blobstore.Store) (string, error) {
	data, err := blobstore.ReadAll(ctx, store, blobstore.CurrentName)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("%w: empty %s", ErrCorrupt, blobstore.CurrentName)
	}
	return id, nil
}

// List returns the manifests in store, oldest first.
func List(ctx context.Context, store blobstore.Store) ([]*Manifest, error) {
	names, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []*Manifest
	for _, name := range names {
		dir, file := path.Split(name)
		if file != ManifestName || dir == "" || strings.Count(dir, "/") != 1 {
			continue
		}
		m, err := ReadManifest(ctx, store, strings.TrimSuffix(dir, "/"))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sortManifests(out)
	return out, nil
}

func sortManifests(ms []*Manifest) {
	slices.SortFunc(ms, func(a, b *Manifest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
