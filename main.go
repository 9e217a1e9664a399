package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/cppla/smartreader/config"
	"github.com/cppla/smartreader/controllers"
	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/routes"
	"github.com/cppla/smartreader/services"
	"github.com/cppla/smartreader/store"
	"github.com/cppla/smartreader/utils"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()
	log := utils.Logger

	db, err := config.InitDatabase(cfg,
		&models.User{}, &models.Article{},
		&models.ReadingProgress{}, &models.ReadingStreak{},
		&models.Achievement{}, &models.UserAchievement{},
		&models.VerificationCode{},
	)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	rc, err := utils.NewRedis(cfg)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	var limiter utils.IssueLimiter
	var memLimiter *utils.MemoryIssueLimiter
	if rc != nil {
		limiter = utils.NewRedisIssueLimiter(rc, cfg.OTP.Cooldown, cfg.OTP.DailyLimit)
		defer rc.Close()
	} else {
		log.Warn("redis disabled, verification limits are kept in process")
		memLimiter = utils.NewMemoryIssueLimiter(cfg.OTP.Cooldown, cfg.OTP.DailyLimit)
		limiter = memLimiter
	}

	clock := utils.SystemClock{}
	locks := utils.NewKeyedMutex()
	mailer := utils.NewMailer(cfg, log)
	directory := store.NewDirectory(db)

	engagement := services.NewEngagementService(services.EngagementDeps{
		Directory:    directory,
		Progress:     store.NewProgressStore(db),
		Streaks:      store.NewStreakStore(db),
		Achievements: store.NewAchievementStore(db),
		Mailer:       mailer,
		Clock:        clock,
		Locks:        locks,
		Logger:       log.Named("engagement"),
		WeeklyGoal:   cfg.WeeklyReadingGoal,
	})
	if cfg.SeedAchievements {
		if err := engagement.SeedCatalog(context.Background(), models.DefaultAchievements); err != nil {
			log.Fatal("seed achievements failed", zap.Error(err))
		}
	}

	verification := services.NewVerificationService(
		store.NewCodeStore(db), directory, limiter, mailer, clock, locks,
		services.VerificationPolicy{
			CodeLength:  cfg.OTP.CodeLength,
			TTL:         cfg.OTP.TTL,
			HashCost:    cfg.OTP.HashCost,
			AdminEmails: cfg.AdminEmails,
		},
		services.WithVerificationLogger(log.Named("verification")),
	)

	cleaner := utils.NewCleaner(log.Named("cleanup"))
	if err := cleaner.Every("purge_expired_codes", cfg.OTP.CleanupInterval, func(ctx context.Context) error {
		_, err := verification.PurgeExpired(ctx, cfg.OTP.Retention)
		return err
	}); err != nil {
		log.Fatal("schedule cleanup failed", zap.Error(err))
	}
	if memLimiter != nil {
		if err := cleaner.Every("prune_issue_quotas", cfg.OTP.CleanupInterval, func(ctx context.Context) error {
			memLimiter.Prune(clock.Now())
			return nil
		}); err != nil {
			log.Fatal("schedule cleanup failed", zap.Error(err))
		}
	}
	cleaner.Start()
	defer cleaner.Stop()

	var captcha controllers.CaptchaSolver
	if cfg.OTP.CaptchaEnabled {
		captcha = utils.NewCaptcha(rc)
	}

	r := routes.SetupRouter(cfg, routes.Handlers{
		Engagement:   controllers.NewEngagementController(engagement),
		Verification: controllers.NewVerificationController(verification, captcha, cfg.OTP.CaptchaEnabled),
	})

	log.Info("starting server (graceful)", zap.String("port", cfg.AppPort))
	if err := utils.GraceServer(":"+cfg.AppPort, r, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}
}
