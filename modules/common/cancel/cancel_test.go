package cancel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCancelsWhenFlagRaised(t *testing.T) {
	var flag atomic.Bool
	ctx, stop := Watch(context.Background(), CheckerFunc(func(string) bool { return flag.Load() }), "job-1", 10*time.Millisecond)
	defer stop()

	assert.False(t, Cancelled(ctx))
	flag.Store(true)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled")
	}
	assert.True(t, Cancelled(ctx))
	assert.ErrorIs(t, context.Cause(ctx), ErrCancelled)
}

func TestWatchAlreadyCancelled(t *testing.T) {
	ctx, stop := Watch(context.Background(), CheckerFunc(func(string) bool { return true }), "job-2", time.Hour)
	defer stop()
	require.Error(t, ctx.Err())
	assert.True(t, Cancelled(ctx))
}

func TestStopIsNotUserCancellation(t *testing.T) {
	ctx, stop := Watch(context.Background(), CheckerFunc(func(string) bool { return false }), "job-3", time.Hour)
	stop()
	require.Error(t, ctx.Err())
	assert.False(t, Cancelled(ctx))
}

func TestParentCancellationIsNotUserCancellation(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, stop := Watch(parent, CheckerFunc(func(string) bool { return false }), "job-4", time.Hour)
	defer stop()
	cancelParent()
	<-ctx.Done()
	assert.False(t, Cancelled(ctx))
}
