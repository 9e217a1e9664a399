package services

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct validates req and folds every field failure into one validation error.
func checkStruct(op string, req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationError(op, err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return validationError(op, strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	field := e.Field()
	if field == "" {
		field = strings.ToLower(e.StructField())
	}
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min", "gte":
		return field + " must be at least " + e.Param()
	case "max", "lte":
		return field + " must be at most " + e.Param()
	case "len":
		return field + " must be exactly " + e.Param() + " characters"
	case "numeric":
		return field + " must be numeric"
	default:
		return field + " is invalid"
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SubmitProgressRequest is one progress ping from a reader.
type SubmitProgressRequest struct {
	UserID     uint  `json:"-" validate:"required"`
	ItemID     uint  `json:"item_id" binding:"required" validate:"required"`
	Percentage *int  `json:"percentage" binding:"required" validate:"required,min=0,max=100"`
	Position   int   `json:"position" validate:"min=0"`
	TimeDelta  int64 `json:"time_delta" validate:"min=0,max=86400"`
}

// SubmitProgressResponse reports the progress state after a ping.
type SubmitProgressResponse struct {
	ItemID            uint                  `json:"item_id"`
	CurrentPercentage int                   `json:"current_percentage"`
	MaxPercentage     int                   `json:"max_percentage"`
	TimeSpent         int64                 `json:"time_spent"`
	IsCompleted       bool                  `json:"is_completed"`
	JustCompleted     bool                  `json:"just_completed"`
	CurrentStreak     int                   `json:"current_streak"`
	NewAchievements   []UnlockedAchievement `json:"new_achievements"`

	// Weekly goal: articles completed in the last seven days against the target.
	ThisWeekReads      int64 `json:"this_week_reads"`
	ReadingGoal        int   `json:"reading_goal"`
	WeeklyGoalAchieved bool  `json:"weekly_goal_achieved"`
}

// StreakView is the streak summary of a user.
type StreakView struct {
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
	TotalDays    int        `json:"total_days"`
	LastReadDate *time.Time `json:"last_read_date"`
	Badge        string     `json:"badge"`
}

// UnlockedAchievement is an earned catalog entry.
type UnlockedAchievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	BadgeColor  string    `json:"badge_color"`
	EarnedAt    time.Time `json:"earned_at"`
}

// LockedAchievement is a catalog entry not earned yet, with the user's current standing.
type LockedAchievement struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	RequirementType string `json:"requirement_type"`
	Required        int64  `json:"required"`
	Current         int64  `json:"current"`
}

// AchievementOverview lists both sides of the catalog for one user.
type AchievementOverview struct {
	Unlocked []UnlockedAchievement `json:"unlocked"`
	Locked   []LockedAchievement   `json:"locked"`
	Stats    Stats                 `json:"stats"`
}

// IssueCodeRequest asks for a verification code.
type IssueCodeRequest struct {
	Email         string `json:"email" binding:"required" validate:"required,email,max=255"`
	CaptchaID     string `json:"captcha_id"`
	CaptchaAnswer string `json:"captcha_answer"`
}

// IssueResult reports whether a code went out.
type IssueResult struct {
	Issued    bool       `json:"issued"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// VerifyCodeRequest submits a code for an email.
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required" validate:"required,email,max=255"`
	Code  string `json:"code" binding:"required" validate:"required,numeric"`
}

// VerifyResult carries the verification outcome.
type VerifyResult struct {
	Outcome Outcome `json:"outcome"`
}

// EmailStatus tells whether an address already belongs to an account.
type EmailStatus struct {
	Email      string `json:"email"`
	Registered bool   `json:"registered"`
}
