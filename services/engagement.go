package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/store"
	"github.com/cppla/smartreader/utils"
)

// EngagementDeps groups what the engagement engine is assembled from.
type EngagementDeps struct {
	Directory    Directory
	Progress     ProgressStore
	Streaks      StreakStore
	Achievements AchievementStore
	Mailer       utils.Mailer
	Clock        utils.Clock
	Locks        *utils.KeyedMutex
	Logger       *zap.Logger
	// WeeklyGoal is the number of articles a reader aims to complete in seven days.
	WeeklyGoal int
}

// DefaultWeeklyGoal applies when EngagementDeps.WeeklyGoal is not set.
const DefaultWeeklyGoal = 5

const goalWindow = 7 * 24 * time.Hour

// EngagementService is the entry point for progress pings and the read side of
// streaks and achievements. A ping flows progress -> streak -> achievements.
type EngagementService struct {
	directory    Directory
	progress     ProgressStore
	streaks      StreakStore
	achievements AchievementStore
	tracker      *ProgressTracker
	streak       *StreakTracker
	evaluator    *AchievementEvaluator
	notifier     *MilestoneNotifier
	clock        utils.Clock
	logger       *zap.Logger
	weeklyGoal   int
}

// NewEngagementService wires the trackers around the given stores.
func NewEngagementService(d EngagementDeps) *EngagementService {
	if d.Clock == nil {
		d.Clock = utils.SystemClock{}
	}
	if d.Locks == nil {
		d.Locks = utils.NewKeyedMutex()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.WeeklyGoal <= 0 {
		d.WeeklyGoal = DefaultWeeklyGoal
	}
	svc := &EngagementService{
		directory:    d.Directory,
		progress:     d.Progress,
		streaks:      d.Streaks,
		achievements: d.Achievements,
		tracker:      NewProgressTracker(d.Progress, d.Clock, d.Locks),
		streak:       NewStreakTracker(d.Streaks, d.Locks),
		evaluator:    NewAchievementEvaluator(d.Achievements, d.Clock, d.Locks),
		clock:        d.Clock,
		logger:       d.Logger,
		weeklyGoal:   d.WeeklyGoal,
	}
	if d.Mailer != nil {
		svc.notifier = NewMilestoneNotifier(d.Directory, d.Mailer, d.Logger)
	}
	return svc
}

// SeedCatalog installs catalog entries, refreshing existing ones by id.
func (s *EngagementService) SeedCatalog(ctx context.Context, catalog []models.Achievement) error {
	if err := withRetryErr(ctx, "achievement.SeedCatalog", func() error {
		return s.achievements.SeedCatalog(ctx, catalog)
	}); err != nil {
		return err
	}
	s.logger.Info("achievement catalog seeded", zap.Int("entries", len(catalog)))
	return nil
}

// SubmitProgress records a progress ping, counts today's streak and checks achievements.
func (s *EngagementService) SubmitProgress(ctx context.Context, req SubmitProgressRequest) (*SubmitProgressResponse, error) {
	const op = "engagement.SubmitProgress"
	if err := checkStruct(op, req); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, op, req.UserID); err != nil {
		return nil, err
	}
	if err := s.requireItem(ctx, op, req.ItemID); err != nil {
		return nil, err
	}

	rec, justCompleted, err := s.tracker.ApplyUpdate(ctx, req.UserID, req.ItemID, ProgressUpdate{
		Percentage: *req.Percentage,
		Position:   req.Position,
		TimeDelta:  req.TimeDelta,
	})
	if err != nil {
		return nil, err
	}

	// Progress is committed at this point. Whatever follows is derived state and
	// must not turn the ping into an error, or a client retry would add the time twice.
	resp := &SubmitProgressResponse{
		ItemID:            rec.ArticleID,
		CurrentPercentage: rec.ScrollPercentage,
		MaxPercentage:     rec.MaxScrollPercentage,
		TimeSpent:         rec.TimeSpent,
		IsCompleted:       rec.IsCompleted,
		JustCompleted:     justCompleted,
		NewAchievements:   []UnlockedAchievement{},
		ReadingGoal:       s.weeklyGoal,
	}
	log := s.logger.With(zap.Uint("user_id", req.UserID), zap.Uint("item_id", req.ItemID))

	now := s.clock.Now()
	streak, counted, err := s.streak.RecordActivity(ctx, req.UserID, now)
	if err != nil {
		log.Warn("streak update failed", zap.Error(err))
		counted = false
		if streak, err = s.loadStreak(ctx, op, req.UserID); err != nil {
			streak = &models.ReadingStreak{UserID: req.UserID}
		}
	}
	resp.CurrentStreak = streak.CurrentStreak
	if counted && s.notifier != nil {
		s.notifier.StreakReached(ctx, req.UserID, streak.CurrentStreak)
	}

	if justCompleted || counted || req.TimeDelta > 0 {
		if unlocked, err := s.unlock(ctx, op, req.UserID, streak); err != nil {
			log.Warn("achievement check failed", zap.Error(err))
		} else if len(unlocked) > 0 {
			resp.NewAchievements = unlocked
		}
	}

	weekly, err := withRetry(ctx, op, func() (int64, error) {
		return s.progress.CompletedSince(ctx, req.UserID, now.Add(-goalWindow))
	})
	if err != nil {
		log.Warn("weekly goal lookup failed", zap.Error(err))
	} else {
		resp.ThisWeekReads = weekly
		resp.WeeklyGoalAchieved = weekly >= int64(s.weeklyGoal)
	}
	return resp, nil
}

func (s *EngagementService) unlock(ctx context.Context, op string, userID uint, streak *models.ReadingStreak) ([]UnlockedAchievement, error) {
	stats, err := s.stats(ctx, op, userID, streak)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.evaluator.Evaluate(ctx, userID, stats)
	if err != nil {
		return nil, err
	}
	if len(unlocked) > 0 {
		ids := make([]string, 0, len(unlocked))
		for _, u := range unlocked {
			ids = append(ids, u.ID)
		}
		s.logger.Info("achievements unlocked", zap.Uint("user_id", userID), zap.Strings("achievements", ids))
	}
	return unlocked, nil
}

// GetProgress returns the stored progress of a user on one item.
func (s *EngagementService) GetProgress(ctx context.Context, userID, itemID uint) (*models.ReadingProgress, error) {
	const op = "engagement.GetProgress"
	rec, err := withRetry(ctx, op, func() (*models.ReadingProgress, error) {
		return s.progress.Get(ctx, userID, itemID)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundError(op, "no progress recorded for this item")
	}
	return rec, err
}

// GetStreak returns the streak summary of a user. Users who never read get zeros.
func (s *EngagementService) GetStreak(ctx context.Context, userID uint) (*StreakView, error) {
	const op = "engagement.GetStreak"
	if err := s.requireUser(ctx, op, userID); err != nil {
		return nil, err
	}
	st, err := s.loadStreak(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	return &StreakView{
		Current:      st.CurrentStreak,
		Longest:      st.LongestStreak,
		TotalDays:    st.TotalReadingDays,
		LastReadDate: st.LastReadDate,
		Badge:        st.BadgeLevel(),
	}, nil
}

// ListUnlockedAchievements returns the ids a user has earned, oldest first.
func (s *EngagementService) ListUnlockedAchievements(ctx context.Context, userID uint) ([]string, error) {
	earned, err := withRetry(ctx, "engagement.ListUnlockedAchievements", func() ([]models.UserAchievement, error) {
		return s.achievements.Earned(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(earned))
	for _, ua := range earned {
		ids = append(ids, ua.AchievementID)
	}
	return ids, nil
}

// AchievementOverview splits the catalog into earned and pending entries for a user.
func (s *EngagementService) AchievementOverview(ctx context.Context, userID uint) (*AchievementOverview, error) {
	const op = "engagement.AchievementOverview"
	if err := s.requireUser(ctx, op, userID); err != nil {
		return nil, err
	}
	catalog, err := withRetry(ctx, op, func() ([]models.Achievement, error) {
		return s.achievements.Catalog(ctx)
	})
	if err != nil {
		return nil, err
	}
	earned, err := withRetry(ctx, op, func() ([]models.UserAchievement, error) {
		return s.achievements.Earned(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	st, err := s.loadStreak(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats(ctx, op, userID, st)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	out := &AchievementOverview{Unlocked: []UnlockedAchievement{}, Locked: []LockedAchievement{}, Stats: stats}
	have := make(map[string]bool, len(earned))
	for _, ua := range earned {
		have[ua.AchievementID] = true
		a, ok := byID[ua.AchievementID]
		if !ok {
			a = models.Achievement{ID: ua.AchievementID, Name: ua.AchievementID}
		}
		out.Unlocked = append(out.Unlocked, unlockedView(a, ua.EarnedAt))
	}
	for _, a := range catalog {
		if have[a.ID] {
			continue
		}
		current, _ := stats.Value(a.RequirementType)
		out.Locked = append(out.Locked, LockedAchievement{
			ID:              a.ID,
			Name:            a.Name,
			Description:     a.Description,
			Icon:            a.Icon,
			RequirementType: a.RequirementType,
			Required:        a.RequirementValue,
			Current:         current,
		})
	}
	return out, nil
}

func (s *EngagementService) stats(ctx context.Context, op string, userID uint, st *models.ReadingStreak) (Stats, error) {
	totals, err := withRetry(ctx, op, func() (store.ProgressTotals, error) {
		return s.progress.Totals(ctx, userID)
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		CompletedCount:   totals.CompletedCount,
		StreakDays:       int64(st.CurrentStreak),
		TotalTimeSeconds: totals.TotalTimeSeconds,
	}, nil
}

func (s *EngagementService) loadStreak(ctx context.Context, op string, userID uint) (*models.ReadingStreak, error) {
	st, err := withRetry(ctx, op, func() (*models.ReadingStreak, error) {
		return s.streaks.Get(ctx, userID)
	})
	if errors.Is(err, ErrNotFound) {
		return &models.ReadingStreak{UserID: userID}, nil
	}
	return st, err
}

func (s *EngagementService) requireUser(ctx context.Context, op string, userID uint) error {
	ok, err := withRetry(ctx, op, func() (bool, error) {
		return s.directory.UserExists(ctx, userID)
	})
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError(op, "user not found")
	}
	return nil
}

func (s *EngagementService) requireItem(ctx context.Context, op string, itemID uint) error {
	ok, err := withRetry(ctx, op, func() (bool, error) {
		return s.directory.ArticleExists(ctx, itemID)
	})
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError(op, "article not found")
	}
	return nil
}
