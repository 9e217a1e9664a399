package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadingStreak_BadgeLevel(t *testing.T) {
	cases := map[int]string{
		0:   BadgeNone,
		6:   BadgeNone,
		7:   BadgeBronze,
		29:  BadgeBronze,
		30:  BadgeSilver,
		90:  BadgeGold,
		149: BadgeGold,
		150: BadgePlatinum,
	}
	for days, want := range cases {
		assert.Equal(t, want, ReadingStreak{TotalReadingDays: days}.BadgeLevel(), "days=%d", days)
	}
}

func TestVerificationCode_IsExpired(t *testing.T) {
	exp := time.Date(2024, 3, 5, 9, 10, 0, 0, time.UTC)
	c := VerificationCode{ExpiresAt: exp}
	assert.False(t, c.IsExpired(exp.Add(-time.Second)))
	assert.False(t, c.IsExpired(exp))
	assert.True(t, c.IsExpired(exp.Add(time.Nanosecond)))
}

func TestDefaultAchievements(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range DefaultAchievements {
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
		assert.Positive(t, a.RequirementValue)
		assert.Contains(t, []string{RequirementCompletedCount, RequirementStreakDays, RequirementTotalTime}, a.RequirementType)
	}
	assert.Len(t, DefaultAchievements, 8)
}
