package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/smartreader/utils"
)

// StreakMilestones are the streak lengths that trigger a congratulation mail.
var StreakMilestones = []int{7, 30, 100, 365}

// IsStreakMilestone reports whether streak is one of StreakMilestones.
func IsStreakMilestone(streak int) bool {
	for _, m := range StreakMilestones {
		if m == streak {
			return true
		}
	}
	return false
}

// MilestoneNotifier mails users when their streak reaches a milestone.
// Delivery is best effort and never fails the caller.
type MilestoneNotifier struct {
	directory Directory
	mailer    utils.Mailer
	logger    *zap.Logger
	timeout   time.Duration
}

// NewMilestoneNotifier creates a MilestoneNotifier.
func NewMilestoneNotifier(directory Directory, mailer utils.Mailer, logger *zap.Logger) *MilestoneNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MilestoneNotifier{directory: directory, mailer: mailer, logger: logger, timeout: 10 * time.Second}
}

// StreakReached sends the milestone mail for streak. It reports whether a mail went out.
func (n *MilestoneNotifier) StreakReached(ctx context.Context, userID uint, streak int) bool {
	if !IsStreakMilestone(streak) {
		return false
	}
	log := n.logger.With(zap.Uint("user_id", userID), zap.Int("streak", streak))

	contact, err := n.directory.Contact(ctx, userID)
	if err != nil {
		log.Warn("milestone mail skipped, contact lookup failed", zap.Error(err))
		return false
	}
	if contact.Email == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	name := utils.StripHTML(contact.Username)
	if name == "" {
		name = "reader"
	}
	subject := fmt.Sprintf("%d-day reading streak!", streak)
	body := fmt.Sprintf("Congratulations %s!\n\nYou have read for %d days in a row. Keep it going!\n", name, streak)
	if err := n.mailer.Send(ctx, contact.Email, subject, body); err != nil {
		log.Warn("milestone mail failed", zap.Error(err))
		return false
	}
	log.Info("milestone mail sent")
	return true
}
