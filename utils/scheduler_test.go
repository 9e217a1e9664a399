package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCleaner(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewCleaner(zap.New(core))

	var runs int32
	require.NoError(t, c.Every("count", 50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	require.NoError(t, c.Every("broken", 50*time.Millisecond, func(ctx context.Context) error {
		return errors.New("boom")
	}))
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2 && logs.FilterMessage("cleanup job failed").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)
}
