package services

import (
	"context"
	"strconv"
	"time"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/utils"
)

// Stats are the aggregates achievement rules are checked against.
type Stats struct {
	CompletedCount   int64 `json:"completed_count"`
	StreakDays       int64 `json:"streak_days"`
	TotalTimeSeconds int64 `json:"total_time_seconds"`
}

// Value returns the stat a requirement type refers to.
func (s Stats) Value(requirement string) (int64, bool) {
	switch requirement {
	case models.RequirementCompletedCount:
		return s.CompletedCount, true
	case models.RequirementStreakDays:
		return s.StreakDays, true
	case models.RequirementTotalTime:
		return s.TotalTimeSeconds, true
	}
	return 0, false
}

// AchievementEvaluator awards catalog achievements once their threshold is met. Awards are never revoked.
type AchievementEvaluator struct {
	store AchievementStore
	clock utils.Clock
	locks *utils.KeyedMutex
}

// NewAchievementEvaluator creates an AchievementEvaluator.
func NewAchievementEvaluator(store AchievementStore, clock utils.Clock, locks *utils.KeyedMutex) *AchievementEvaluator {
	return &AchievementEvaluator{store: store, clock: clock, locks: locks}
}

// Evaluate awards every unearned achievement the stats satisfy and returns the newly awarded ones.
// Concurrent calls for the same user award each achievement exactly once.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, userID uint, stats Stats) ([]UnlockedAchievement, error) {
	const op = "achievement.Evaluate"
	unlock := e.locks.Lock(achievementKey(userID))
	defer unlock()

	return withRetry(ctx, op, func() ([]UnlockedAchievement, error) {
		catalog, err := e.store.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		earned, err := e.store.Earned(ctx, userID)
		if err != nil {
			return nil, err
		}
		have := make(map[string]bool, len(earned))
		for _, ua := range earned {
			have[ua.AchievementID] = true
		}

		var unlocked []UnlockedAchievement
		now := e.clock.Now()
		for _, a := range catalog {
			if have[a.ID] {
				continue
			}
			v, ok := stats.Value(a.RequirementType)
			if !ok || v < a.RequirementValue {
				continue
			}
			created, err := e.store.Award(ctx, userID, a.ID, now)
			if err != nil {
				return nil, err
			}
			if created {
				unlocked = append(unlocked, unlockedView(a, now))
			}
		}
		return unlocked, nil
	})
}

func unlockedView(a models.Achievement, earnedAt time.Time) UnlockedAchievement {
	return UnlockedAchievement{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Icon:        a.Icon,
		BadgeColor:  a.BadgeColor,
		EarnedAt:    earnedAt,
	}
}

func achievementKey(userID uint) string {
	return "achievements:" + strconv.FormatUint(uint64(userID), 10)
}
