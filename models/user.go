package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the account owned by the registration collaborator; the engine reads it only.
// Soft-deleted users are treated as unknown.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"size:64;not null" json:"username"`
	Email     string         `gorm:"size:255;index" json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
