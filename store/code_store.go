package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/smartreader/models"
)

// CodeStore persists verification codes. At most one live code exists per email.
type CodeStore struct {
	db *gorm.DB
}

// NewCodeStore creates a CodeStore.
func NewCodeStore(db *gorm.DB) *CodeStore {
	return &CodeStore{db: db}
}

// Replace drops every earlier code for the email and stores code in its place.
// It returns how many earlier codes were superseded.
func (s *CodeStore) Replace(ctx context.Context, code *models.VerificationCode) (int64, error) {
	var superseded int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("email = ?", code.Email).Delete(&models.VerificationCode{})
		if res.Error != nil {
			return res.Error
		}
		superseded = res.RowsAffected
		return tx.Create(code).Error
	})
	return superseded, err
}

// Latest returns the newest code issued for the email.
func (s *CodeStore) Latest(ctx context.Context, email string) (*models.VerificationCode, error) {
	var c models.VerificationCode
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Consume flips the consumed flag. It reports false when another caller got there first.
func (s *CodeStore) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.VerificationCode{}).
		Where("id = ? AND consumed = ?", id, false).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PurgeExpired deletes codes that expired before the cutoff.
func (s *CodeStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.VerificationCode{})
	return res.RowsAffected, res.Error
}
