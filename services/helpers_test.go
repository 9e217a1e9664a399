package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/store"
	"github.com/cppla/smartreader/utils"
)

var testStart = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type testEnv struct {
	db        *gorm.DB
	clock     *utils.ManualClock
	locks     *utils.KeyedMutex
	mailer    *recordingMailer
	limiter   *utils.MemoryIssueLimiter
	directory *store.Directory
	codes     *store.CodeStore
	user      models.User
	article   models.Article
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Article{},
		&models.ReadingProgress{}, &models.ReadingStreak{},
		&models.Achievement{}, &models.UserAchievement{},
		&models.VerificationCode{},
	))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	env := &testEnv{
		db:        db,
		clock:     utils.NewManualClock(testStart),
		locks:     utils.NewKeyedMutex(),
		mailer:    &recordingMailer{},
		limiter:   utils.NewMemoryIssueLimiter(time.Minute, 5),
		directory: store.NewDirectory(db),
		codes:     store.NewCodeStore(db),
		user:      models.User{Username: "alice", Email: "alice@example.com"},
		article:   models.Article{Slug: "intro", Title: "Intro", IsPublished: true},
	}
	require.NoError(t, db.Create(&env.user).Error)
	require.NoError(t, db.Create(&env.article).Error)
	return env
}

func (e *testEnv) engagement(t *testing.T) *EngagementService {
	t.Helper()
	svc := NewEngagementService(EngagementDeps{
		Directory:    e.directory,
		Progress:     store.NewProgressStore(e.db),
		Streaks:      store.NewStreakStore(e.db),
		Achievements: store.NewAchievementStore(e.db),
		Mailer:       e.mailer,
		Clock:        e.clock,
		Locks:        e.locks,
	})
	require.NoError(t, svc.SeedCatalog(context.Background(), models.DefaultAchievements))
	return svc
}

func (e *testEnv) verification(opts ...VerificationOption) *VerificationService {
	return e.verificationWith(e.limiter, opts...)
}

func (e *testEnv) verificationWith(limiter utils.IssueLimiter, opts ...VerificationOption) *VerificationService {
	return NewVerificationService(e.codes, e.directory, limiter, e.mailer, e.clock, e.locks, VerificationPolicy{
		CodeLength:  6,
		TTL:         10 * time.Minute,
		HashCost:    bcrypt.MinCost,
		AdminEmails: []string{"Admin@Example.com"},
	}, opts...)
}

func (e *testEnv) addArticle(t *testing.T, slug string) models.Article {
	t.Helper()
	a := models.Article{Slug: slug, Title: slug, IsPublished: true}
	require.NoError(t, e.db.Create(&a).Error)
	return a
}

func fixedCodes(codes ...string) func(int) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(codes) {
			return "", errors.New("no more codes")
		}
		c := codes[i]
		i++
		return c, nil
	}
}

func intPtr(v int) *int { return &v }
