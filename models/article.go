package models

import "time"

// Article is the readable content item. The engine only needs to know it exists.
type Article struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Slug        string    `gorm:"size:200;uniqueIndex" json:"slug"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
