package models

import "time"

// ReadingStreak is the per-user daily reading streak. LastReadDate is a UTC calendar day.
type ReadingStreak struct {
	UserID           uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastReadDate     *time.Time `json:"last_read_date"`
	TotalReadingDays int        `gorm:"not null;default:0" json:"total_reading_days"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Badge levels derived from the number of counted reading days.
const (
	BadgeNone     = "none"
	BadgeBronze   = "bronze"
	BadgeSilver   = "silver"
	BadgeGold     = "gold"
	BadgePlatinum = "platinum"
)

// BadgeLevel maps total reading days onto the badge ladder.
func (s ReadingStreak) BadgeLevel() string {
	switch days := s.TotalReadingDays; {
	case days >= 150:
		return BadgePlatinum
	case days >= 90:
		return BadgeGold
	case days >= 30:
		return BadgeSilver
	case days >= 7:
		return BadgeBronze
	default:
		return BadgeNone
	}
}
