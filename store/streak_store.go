package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/smartreader/models"
)

// StreakStore persists one ReadingStreak row per user.
type StreakStore struct {
	db *gorm.DB
}

// NewStreakStore creates a StreakStore.
func NewStreakStore(db *gorm.DB) *StreakStore {
	return &StreakStore{db: db}
}

// Update locks (or starts) the user's streak row and hands it to fn.
// The row is written only when fn reports a change.
func (s *StreakStore) Update(ctx context.Context, userID uint, fn func(st *models.ReadingStreak) (bool, error)) (*models.ReadingStreak, error) {
	var out models.ReadingStreak
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.ReadingStreak
		err := tx.Clauses(forUpdate).Where("user_id = ?", userID).First(&st).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			st = models.ReadingStreak{UserID: userID}
		}

		changed, err := fn(&st)
		if err != nil {
			return err
		}
		if changed {
			if isNew {
				err = tx.Create(&st).Error
			} else {
				err = tx.Save(&st).Error
			}
			if err != nil {
				return err
			}
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the streak row of a user.
func (s *StreakStore) Get(ctx context.Context, userID uint) (*models.ReadingStreak, error) {
	var st models.ReadingStreak
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}
