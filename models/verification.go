package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationCode is a one-time email code. Only a bcrypt hash of the digits is stored.
// Expired rows are kept for audit until the cleanup job purges them.
type VerificationCode struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Email      string     `gorm:"size:255;not null;index" json:"email"`
	CodeHash   string     `gorm:"size:100;not null" json:"-"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	Consumed   bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at"`
}

// BeforeCreate assigns a random id when the caller did not.
func (c *VerificationCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the code is past its expiry at now.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
