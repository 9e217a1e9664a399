package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/smartreader/models"
)

// AchievementStore persists the catalog and the per-user awards.
type AchievementStore struct {
	db *gorm.DB
}

// NewAchievementStore creates an AchievementStore.
func NewAchievementStore(db *gorm.DB) *AchievementStore {
	return &AchievementStore{db: db}
}

// SeedCatalog inserts or refreshes catalog entries by id.
func (s *AchievementStore) SeedCatalog(ctx context.Context, catalog []models.Achievement) error {
	if len(catalog) == 0 {
		return nil
	}
	rows := make([]models.Achievement, len(catalog))
	copy(rows, catalog)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "badge_color", "requirement_type", "requirement_value"}),
	}).Create(&rows).Error
}

// Catalog lists every achievement ordered by id.
func (s *AchievementStore) Catalog(ctx context.Context) ([]models.Achievement, error) {
	var list []models.Achievement
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Earned lists a user's awards, oldest first.
func (s *AchievementStore) Earned(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var list []models.UserAchievement
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at, id").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Award creates the (user, achievement) row unless it already exists.
// It reports true only for the call that actually inserted the row.
func (s *AchievementStore) Award(ctx context.Context, userID uint, achievementID string, at time.Time) (bool, error) {
	row := models.UserAchievement{UserID: userID, AchievementID: achievementID, EarnedAt: at}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
