package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/smartreader/models"
)

// ProgressTotals aggregates a user's progress rows.
type ProgressTotals struct {
	CompletedCount   int64
	TotalTimeSeconds int64
}

// ProgressStore persists ReadingProgress rows keyed by (user, article).
type ProgressStore struct {
	db *gorm.DB
}

// NewProgressStore creates a ProgressStore.
func NewProgressStore(db *gorm.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Update loads or creates the row for (userID, articleID) under a row lock, lets fn mutate it and saves it.
// A concurrent first insert from another process fails on the unique index and can be retried.
func (s *ProgressStore) Update(ctx context.Context, userID, articleID uint, now time.Time, fn func(p *models.ReadingProgress) error) (*models.ReadingProgress, error) {
	var out models.ReadingProgress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.ReadingProgress
		err := tx.Clauses(forUpdate).
			Where("user_id = ? AND article_id = ?", userID, articleID).
			First(&p).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			p = models.ReadingProgress{UserID: userID, ArticleID: articleID, StartedAt: now}
		}

		if err := fn(&p); err != nil {
			return err
		}
		p.LastReadAt = now

		if isNew {
			err = tx.Create(&p).Error
		} else {
			err = tx.Save(&p).Error
		}
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the row for (userID, articleID).
func (s *ProgressStore) Get(ctx context.Context, userID, articleID uint) (*models.ReadingProgress, error) {
	var p models.ReadingProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND article_id = ?", userID, articleID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Totals returns the completed article count and the summed reading time of a user.
func (s *ProgressStore) Totals(ctx context.Context, userID uint) (ProgressTotals, error) {
	var totals ProgressTotals
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.ReadingProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&totals.CompletedCount).Error; err != nil {
		return ProgressTotals{}, err
	}
	if err := db.Model(&models.ReadingProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(time_spent), 0)").
		Scan(&totals.TotalTimeSeconds).Error; err != nil {
		return ProgressTotals{}, err
	}
	return totals, nil
}

// CompletedSince counts the articles a user completed at or after since.
func (s *ProgressStore) CompletedSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ReadingProgress{}).
		Where("user_id = ? AND is_completed = ? AND completed_at >= ?", userID, true, since).
		Count(&n).Error
	return n, err
}
