package services

import (
	"context"
	"strconv"
	"time"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/utils"
)

// StreakTracker counts consecutive UTC reading days per user.
type StreakTracker struct {
	store StreakStore
	locks *utils.KeyedMutex
}

// NewStreakTracker creates a StreakTracker.
func NewStreakTracker(store StreakStore, locks *utils.KeyedMutex) *StreakTracker {
	return &StreakTracker{store: store, locks: locks}
}

// RecordActivity counts today for the user. Repeated calls for the same day change nothing.
// The bool reports whether a new day was counted.
func (t *StreakTracker) RecordActivity(ctx context.Context, userID uint, today time.Time) (*models.ReadingStreak, bool, error) {
	const op = "streak.RecordActivity"
	day := utils.CalendarDay(today)

	unlock := t.locks.Lock(streakKey(userID))
	defer unlock()

	var counted bool
	rec, err := withRetry(ctx, op, func() (*models.ReadingStreak, error) {
		counted = false
		return t.store.Update(ctx, userID, func(s *models.ReadingStreak) (bool, error) {
			if s.LastReadDate == nil {
				s.CurrentStreak = 1
			} else {
				switch gap := utils.DaysBetween(*s.LastReadDate, day); {
				case gap < 0:
					return false, validationError(op, "activity date is before the last counted day")
				case gap == 0:
					return false, nil
				case gap == 1:
					s.CurrentStreak++
				default:
					s.CurrentStreak = 1
				}
			}
			if s.CurrentStreak > s.LongestStreak {
				s.LongestStreak = s.CurrentStreak
			}
			s.LastReadDate = &day
			s.TotalReadingDays++
			counted = true
			return true, nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return rec, counted, nil
}

func streakKey(userID uint) string {
	return "streak:" + strconv.FormatUint(uint64(userID), 10)
}
