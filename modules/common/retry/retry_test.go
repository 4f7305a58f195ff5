package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio-server/modules/common/apperr"
)

func noSleepPolicy(delays *[]time.Duration) Policy {
	p := DefaultPolicy()
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestDoRetriesTransientUpToThreeAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	_, err := Do(context.Background(), noSleepPolicy(&delays), "judge", func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", &apperr.TransientServiceError{Service: "judge", StatusCode: 429, Err: errors.New("slow down")}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, delays, 2)
	// 1s, 2s with ±20% jitter
	assert.InDelta(t, float64(time.Second), float64(delays[0]), float64(200*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(delays[1]), float64(400*time.Millisecond))

	var transient *apperr.TransientServiceError
	assert.True(t, errors.As(err, &transient))
}

func TestDoDoesNotRetryMalformed(t *testing.T) {
	var delays []time.Duration
	calls := 0
	_, err := Do(context.Background(), noSleepPolicy(&delays), "judge", func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, apperr.Malformed("judge", "{oops", errors.New("unexpected EOF"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoSucceedsAfterTransient(t *testing.T) {
	var delays []time.Duration
	got, err := Do(context.Background(), noSleepPolicy(&delays), "gen", func(ctx context.Context, attempt int) (int, error) {
		if attempt < 2 {
			return 0, errors.New("Error 503, Service Unavailable")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Len(t, delays, 1)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var delays []time.Duration
	_, err := Do(ctx, noSleepPolicy(&delays), "gen", func(ctx context.Context, attempt int) (int, error) {
		return 0, &apperr.TransientServiceError{Service: "gen", Err: errors.New("reset")}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
