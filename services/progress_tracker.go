package services

import (
	"context"
	"math"
	"strconv"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/utils"
)

// MaxTimeDelta caps the reading time a single ping may add, in seconds.
const MaxTimeDelta = 24 * 60 * 60

// ProgressUpdate is one reading ping for a single item.
type ProgressUpdate struct {
	Percentage int
	Position   int
	TimeDelta  int64 // seconds
}

// ProgressTracker applies progress pings while keeping the high-water mark,
// accumulated time and completion latch monotonic.
type ProgressTracker struct {
	store ProgressStore
	clock utils.Clock
	locks *utils.KeyedMutex
}

// NewProgressTracker creates a ProgressTracker.
func NewProgressTracker(store ProgressStore, clock utils.Clock, locks *utils.KeyedMutex) *ProgressTracker {
	return &ProgressTracker{store: store, clock: clock, locks: locks}
}

// ApplyUpdate records u against (userID, itemID). The bool is true only on
// the update that flips the record to completed.
func (t *ProgressTracker) ApplyUpdate(ctx context.Context, userID, itemID uint, u ProgressUpdate) (*models.ReadingProgress, bool, error) {
	const op = "progress.ApplyUpdate"
	switch {
	case u.Percentage < 0 || u.Percentage > 100:
		return nil, false, validationError(op, "percentage must be between 0 and 100")
	case u.Position < 0:
		return nil, false, validationError(op, "position must not be negative")
	case u.TimeDelta < 0:
		return nil, false, validationError(op, "time delta must not be negative")
	case u.TimeDelta > MaxTimeDelta:
		return nil, false, validationError(op, "time delta must be at most "+strconv.Itoa(MaxTimeDelta))
	}

	unlock := t.locks.Lock(progressKey(userID, itemID))
	defer unlock()

	var justCompleted bool
	rec, err := withRetry(ctx, op, func() (*models.ReadingProgress, error) {
		justCompleted = false
		now := t.clock.Now()
		return t.store.Update(ctx, userID, itemID, now, func(p *models.ReadingProgress) error {
			if p.TimeSpent > math.MaxInt64-u.TimeDelta {
				return validationError(op, "accumulated reading time would overflow")
			}
			p.ScrollPercentage = u.Percentage
			p.LastPosition = u.Position
			if u.Percentage > p.MaxScrollPercentage {
				p.MaxScrollPercentage = u.Percentage
			}
			p.TimeSpent += u.TimeDelta
			if !p.IsCompleted && (p.MaxScrollPercentage >= models.CompletionThreshold || u.Percentage >= 100) {
				p.IsCompleted = true
				p.CompletedAt = &now
				justCompleted = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return rec, justCompleted, nil
}

func progressKey(userID, itemID uint) string {
	return "progress:" + strconv.FormatUint(uint64(userID), 10) + ":" + strconv.FormatUint(uint64(itemID), 10)
}
