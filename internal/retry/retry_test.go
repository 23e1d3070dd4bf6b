package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlocking_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	v, err := Blocking(context.Background(), 3, StaticBackoff(time.Millisecond), nil, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, fmt.Errorf("transient: %w", ErrRetry)
		}
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestBlocking_BoundedAttempts(t *testing.T) {
	calls := 0
	_, err := Blocking(context.Background(), 2, StaticBackoff(0), func(error) bool { return true }, func() (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 2, calls)
}

func TestBlocking_NonRetryableStops(t *testing.T) {
	calls := 0
	_, err := Blocking(context.Background(), 5, StaticBackoff(0), nil, func() (string, error) {
		calls++
		return "", errors.New("fatal")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBlocking_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Blocking(ctx, 3, StaticBackoff(time.Hour), nil, func() (int, error) {
		calls++
		return 0, ErrRetry
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrRetry)
	assert.Equal(t, 1, calls)
}
