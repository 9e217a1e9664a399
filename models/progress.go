package models

import "time"

// CompletionThreshold is the highest-reached percentage at which an article counts as read.
const CompletionThreshold = 90

// ReadingProgress tracks how far a user got in one article.
// MaxScrollPercentage and TimeSpent only ever grow; IsCompleted never reverts.
type ReadingProgress struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"not null;uniqueIndex:idx_progress_user_article,priority:1" json:"user_id"`
	ArticleID           uint       `gorm:"not null;uniqueIndex:idx_progress_user_article,priority:2" json:"article_id"`
	LastPosition        int        `gorm:"not null;default:0" json:"last_position"`
	ScrollPercentage    int        `gorm:"not null;default:0" json:"scroll_percentage"`
	MaxScrollPercentage int        `gorm:"not null;default:0" json:"max_scroll_percentage"`
	TimeSpent           int64      `gorm:"not null;default:0" json:"time_spent"` // seconds
	IsCompleted         bool       `gorm:"not null;default:false;index" json:"is_completed"`
	CompletedAt         *time.Time `json:"completed_at"`
	StartedAt           time.Time  `json:"started_at"`
	LastReadAt          time.Time  `json:"last_read_at"`
}

// TableName pins the table name used by the stores.
func (ReadingProgress) TableName() string {
	return "reading_progress"
}
