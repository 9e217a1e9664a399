package models

import "time"

// Requirement kinds an achievement can be measured against.
const (
	RequirementCompletedCount = "completed_count"
	RequirementStreakDays     = "streak_days"
	RequirementTotalTime      = "total_time_seconds"
)

// Achievement is an entry of the static unlock catalog.
type Achievement struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"size:255" json:"description"`
	Icon             string    `gorm:"size:50" json:"icon"`
	BadgeColor       string    `gorm:"size:7;default:'#fbbf24'" json:"badge_color"`
	RequirementType  string    `gorm:"size:32;not null" json:"requirement_type"`
	RequirementValue int64     `gorm:"not null" json:"requirement_value"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserAchievement records that a user earned an achievement. Rows are never updated or removed.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID string    `gorm:"size:64;not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	EarnedAt      time.Time `gorm:"not null" json:"earned_at"`
}

// DefaultAchievements is the catalog installed on a fresh database.
var DefaultAchievements = []Achievement{
	{ID: "first_article", Name: "First Article", Description: "Complete your first article", Icon: "fa-star", BadgeColor: "#10b981", RequirementType: RequirementCompletedCount, RequirementValue: 1},
	{ID: "bookworm", Name: "Bookworm", Description: "Complete 5 articles", Icon: "fa-book", BadgeColor: "#3b82f6", RequirementType: RequirementCompletedCount, RequirementValue: 5},
	{ID: "scholar", Name: "Scholar", Description: "Complete 10 articles", Icon: "fa-graduation-cap", BadgeColor: "#8b5cf6", RequirementType: RequirementCompletedCount, RequirementValue: 10},
	{ID: "master_reader", Name: "Master Reader", Description: "Complete 25 articles", Icon: "fa-crown", BadgeColor: "#f59e0b", RequirementType: RequirementCompletedCount, RequirementValue: 25},
	{ID: "century_reader", Name: "Century Reader", Description: "Complete 100 articles", Icon: "fa-award", BadgeColor: "#ef4444", RequirementType: RequirementCompletedCount, RequirementValue: 100},
	{ID: "week_warrior", Name: "Week Warrior", Description: "Maintain a 7-day reading streak", Icon: "fa-fire", BadgeColor: "#ef4444", RequirementType: RequirementStreakDays, RequirementValue: 7},
	{ID: "month_master", Name: "Month Master", Description: "Maintain a 30-day reading streak", Icon: "fa-medal", BadgeColor: "#cd7f32", RequirementType: RequirementStreakDays, RequirementValue: 30},
	{ID: "dedicated_reader", Name: "Dedicated Reader", Description: "Spend 1 hour reading", Icon: "fa-clock", BadgeColor: "#6366f1", RequirementType: RequirementTotalTime, RequirementValue: 3600},
}
