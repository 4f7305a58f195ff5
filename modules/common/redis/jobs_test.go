package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio-server/modules/common/model"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestQueueRoundTrip(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	n, err := EnqueueJob(ctx, rdb, "a", []byte(`{"prompt":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = EnqueueJob(ctx, rdb, "b", []byte(`{"prompt":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	status, err := GetJobStatus(ctx, rdb, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)

	first, err := DequeueJob(ctx, rdb, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", first, "queue is FIFO")

	payload, err := LoadJob(ctx, rdb, first)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prompt":"a"}`, string(payload))

	second, err := DequeueJob(ctx, rdb, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", second)
}

func TestMissingJob(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	_, err := LoadJob(ctx, rdb, "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = GetJobStatus(ctx, rdb, "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = GetJobResult(ctx, rdb, "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStatusResultAndCancel(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJobStatus(ctx, rdb, "j", model.StatusCompleted))
	require.NoError(t, SetJobResult(ctx, rdb, "j", []byte(`{"ok":true}`)))

	status, err := GetJobStatus(ctx, rdb, "j")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, status)

	result, err := GetJobResult(ctx, rdb, "j")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))

	assert.False(t, IsJobCancelled(rdb, "j"))
	require.NoError(t, SetJobCancelled(rdb, "j"))
	assert.True(t, IsJobCancelled(rdb, "j"))
}

func TestProgressPubSub(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	sub := SubscribeProgress(ctx, rdb, "j")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, PublishProgress(ctx, rdb, "j", []byte(`{"stage":"generate"}`)))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, ProgressChannel("j"), msg.Channel)
		assert.JSONEq(t, `{"stage":"generate"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no progress message received")
	}
}
