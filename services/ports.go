// Package services implements the reader engagement engine: progress tracking,
// daily streaks, achievement unlocks and one-time email verification codes.
package services

import (
	"context"
	"time"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/store"
)

// ProgressStore persists per (user, item) progress.
type ProgressStore interface {
	Update(ctx context.Context, userID, itemID uint, now time.Time, fn func(p *models.ReadingProgress) error) (*models.ReadingProgress, error)
	Get(ctx context.Context, userID, itemID uint) (*models.ReadingProgress, error)
	Totals(ctx context.Context, userID uint) (store.ProgressTotals, error)
	CompletedSince(ctx context.Context, userID uint, since time.Time) (int64, error)
}

// StreakStore persists per user streaks.
type StreakStore interface {
	Update(ctx context.Context, userID uint, fn func(s *models.ReadingStreak) (bool, error)) (*models.ReadingStreak, error)
	Get(ctx context.Context, userID uint) (*models.ReadingStreak, error)
}

// AchievementStore persists the catalog and awards.
type AchievementStore interface {
	Catalog(ctx context.Context) ([]models.Achievement, error)
	Earned(ctx context.Context, userID uint) ([]models.UserAchievement, error)
	Award(ctx context.Context, userID uint, achievementID string, at time.Time) (bool, error)
	SeedCatalog(ctx context.Context, catalog []models.Achievement) error
}

// CodeStore persists verification codes.
type CodeStore interface {
	Replace(ctx context.Context, code *models.VerificationCode) (int64, error)
	Latest(ctx context.Context, email string) (*models.VerificationCode, error)
	Consume(ctx context.Context, id string, at time.Time) (bool, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Directory answers questions about users and content owned elsewhere.
type Directory interface {
	UserExists(ctx context.Context, userID uint) (bool, error)
	ArticleExists(ctx context.Context, articleID uint) (bool, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
	Contact(ctx context.Context, userID uint) (store.Contact, error)
}
