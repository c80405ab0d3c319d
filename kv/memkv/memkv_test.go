package memkv

import (
	"context"
	"testing"

	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return New(WithDegree(4))
	})
}

func TestViewSeesSnapshotDuringLaterUpdate(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Update(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.CreateTable("t")
		if err != nil {
			return err
		}
		return tbl.Put([]byte("a"), []byte("1"))
	}))

	var before *tree
	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.OpenTable("t")
		if err != nil {
			return err
		}
		before = tbl.(*table).tree
		return nil
	}))

	require.NoError(t, s.Update(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.OpenTable("t")
		if err != nil {
			return err
		}
		return tbl.Put([]byte("b"), []byte("2"))
	}))

	assert.Equal(t, 1, before.Len())
}

func TestClosed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	err := s.View(context.Background(), func(kv.Txn) error { return nil })
	assert.ErrorIs(t, err, kv.ErrClosed)
	err = s.Update(context.Background(), func(kv.Txn) error { return nil })
	assert.ErrorIs(t, err, kv.ErrClosed)
}

func TestCancelledContext(t *testing.T) {
	s := New()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Update(ctx, func(kv.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
