package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/smartreader/store"
)

func TestError(t *testing.T) {
	cause := errors.New("disk full")
	err := &Error{Op: "progress.ApplyUpdate", Kind: ErrStorage, Message: "storage unavailable", Err: cause}

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "progress.ApplyUpdate: storage unavailable: disk full", err.Error())

	limited := &Error{Op: "verification.Issue", Kind: ErrRateLimited, Message: "slow down", RetryAfter: 42 * time.Second}
	assert.Equal(t, 42*time.Second, RetryAfter(limited))
	assert.Zero(t, RetryAfter(cause))
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries a store failure once", func(t *testing.T) {
		calls := 0
		v, err := withRetry(ctx, "op", func() (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("database is locked")
			}
			return 7, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 7, v)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after the second failure", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, "op", func() (int, error) {
			calls++
			return 0, errors.New("database is locked")
		})
		assert.ErrorIs(t, err, ErrStorage)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry domain errors", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, "op", func() (int, error) {
			calls++
			return 0, validationError("op", "bad")
		})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 1, calls)
	})

	t.Run("maps missing records to not found", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, "op", func() (int, error) {
			calls++
			return 0, store.ErrNotFound
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("does not retry after cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		_, err := withRetry(cctx, "op", func() (int, error) {
			calls++
			return 0, errors.New("conn closed")
		})
		assert.ErrorIs(t, err, ErrStorage)
		assert.Equal(t, 1, calls)
	})
}
