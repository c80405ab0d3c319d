package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})

	require.NoError(t, c.AcquireWorker(t.Context()))
	require.NoError(t, c.AcquireWorker(t.Context()))
	assert.False(t, c.TryAcquireWorker())

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)
}

func TestController_DefaultWorkers(t *testing.T) {
	c := NewController(Config{})
	assert.True(t, c.TryAcquireWorker())
	assert.False(t, c.TryAcquireWorker())
	assert.False(t, c.Throttled())
}

func TestController_Rows(t *testing.T) {
	c := NewController(Config{RowsPerSec: 100, RowBurst: 1})
	assert.True(t, c.Throttled())

	start := time.Now()
	for range 4 {
		require.NoError(t, c.WaitRows(t.Context()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Error(t, c.WaitRows(ctx))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireWorker(t.Context()))
	assert.True(t, c.TryAcquireWorker())
	c.ReleaseWorker()
	require.NoError(t, c.WaitRows(t.Context()))
	assert.False(t, c.Throttled())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Error(t, c.AcquireWorker(ctx))
}
