package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/smartreader/config"
	"github.com/cppla/smartreader/controllers"
	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/services"
	"github.com/cppla/smartreader/store"
	"github.com/cppla/smartreader/utils"
)

const testSecret = "router-test-secret"

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) Send(_ context.Context, to, _, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, to)
	return nil
}

type stubCaptcha struct{ answer string }

func (s stubCaptcha) Generate() (string, string, error) {
	return "cid", "data:image/png;base64,AAAA", nil
}

func (s stubCaptcha) Verify(id, answer string) bool {
	return id == "cid" && answer == s.answer
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	clock  *utils.ManualClock
	user   models.User
	item   models.Article
	token  string
}

func newTestServer(t *testing.T, captcha controllers.CaptchaSolver) *testServer {
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

	ts := &testServer{
		clock: utils.NewManualClock(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)),
		user:  models.User{Username: "alice", Email: "alice@example.com"},
		item:  models.Article{Slug: "intro", Title: "Intro", IsPublished: true},
	}
	require.NoError(t, db.Create(&ts.user).Error)
	require.NoError(t, db.Create(&ts.item).Error)

	locks := utils.NewKeyedMutex()
	mailer := &outbox{}
	directory := store.NewDirectory(db)
	engagement := services.NewEngagementService(services.EngagementDeps{
		Directory:    directory,
		Progress:     store.NewProgressStore(db),
		Streaks:      store.NewStreakStore(db),
		Achievements: store.NewAchievementStore(db),
		Mailer:       mailer,
		Clock:        ts.clock,
		Locks:        locks,
	})
	require.NoError(t, engagement.SeedCatalog(context.Background(), models.DefaultAchievements))

	codes := []string{"482913", "111111", "222222"}
	next := 0
	verification := services.NewVerificationService(
		store.NewCodeStore(db), directory,
		utils.NewMemoryIssueLimiter(time.Minute, 5),
		mailer, ts.clock, locks,
		services.VerificationPolicy{CodeLength: 6, TTL: 10 * time.Minute, HashCost: bcrypt.MinCost},
		services.WithCodeGenerator(func(int) (string, error) {
			c := codes[next%len(codes)]
			next++
			return c, nil
		}),
	)

	cfg := &config.AppConfig{
		GinMode:            "test",
		JWTSecret:          testSecret,
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"*"},
	}
	ts.router = SetupRouter(cfg, Handlers{
		Engagement:   controllers.NewEngagementController(engagement),
		Verification: controllers.NewVerificationController(verification, captcha, captcha != nil),
	})

	ts.token, err = utils.GenerateToken(testSecret, ts.user.ID, ts.user.Username, time.Hour)
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, auth bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t, nil)
	w, env := ts.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, env = ts.do(t, http.MethodGet, "/api/v1/nowhere", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)
}

func TestRouter_Engagement(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("requires a bearer token", func(t *testing.T) {
		w, env := ts.do(t, http.MethodGet, "/api/v1/streak", nil, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 40101, env.Code)
	})

	t.Run("progress ping completes the article", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPost, "/api/v1/progress", gin.H{"item_id": ts.item.ID, "percentage": 95, "time_delta": 30}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp services.SubmitProgressResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.True(t, resp.IsCompleted)
		assert.True(t, resp.JustCompleted)
		assert.Equal(t, 1, resp.CurrentStreak)
		assert.Equal(t, int64(1), resp.ThisWeekReads)
		assert.Equal(t, services.DefaultWeeklyGoal, resp.ReadingGoal)
		require.Len(t, resp.NewAchievements, 1)
		assert.Equal(t, "first_article", resp.NewAchievements[0].ID)
	})

	t.Run("out of range percentage", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPost, "/api/v1/progress", gin.H{"item_id": ts.item.ID, "percentage": 150}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, env.Code)
		assert.Contains(t, env.Message, "percentage")
	})

	t.Run("malformed payload", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPost, "/api/v1/progress", gin.H{"item_id": ts.item.ID}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40000, env.Code)
	})

	t.Run("unknown article", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPost, "/api/v1/progress", gin.H{"item_id": 999, "percentage": 10}, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 40401, env.Code)
	})

	t.Run("progress lookup", func(t *testing.T) {
		w, env := ts.do(t, http.MethodGet, "/api/v1/progress/1", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var rec models.ReadingProgress
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		assert.Equal(t, 95, rec.MaxScrollPercentage)

		w, env = ts.do(t, http.MethodGet, "/api/v1/progress/abc", nil, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40002, env.Code)

		w, _ = ts.do(t, http.MethodGet, "/api/v1/progress/999", nil, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("streak and achievements", func(t *testing.T) {
		w, env := ts.do(t, http.MethodGet, "/api/v1/streak", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var view services.StreakView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, 1, view.Current)
		assert.Equal(t, models.BadgeNone, view.Badge)

		w, env = ts.do(t, http.MethodGet, "/api/v1/achievements", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var list struct {
			Achievements []string `json:"achievements"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &list))
		assert.Equal(t, []string{"first_article"}, list.Achievements)

		w, env = ts.do(t, http.MethodGet, "/api/v1/achievements?detail=true", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var overview services.AchievementOverview
		require.NoError(t, json.Unmarshal(env.Data, &overview))
		assert.Len(t, overview.Unlocked, 1)
		assert.Len(t, overview.Locked, len(models.DefaultAchievements)-1)
	})
}

func TestRouter_Verification(t *testing.T) {
	t.Run("issue then verify", func(t *testing.T) {
		ts := newTestServer(t, nil)

		w, env := ts.do(t, http.MethodPost, "/api/v1/verification/codes", gin.H{"email": "New@Example.com"}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var issued services.IssueResult
		require.NoError(t, json.Unmarshal(env.Data, &issued))
		assert.True(t, issued.Issued)

		w, env = ts.do(t, http.MethodGet, "/api/v1/verification/cooldown?email=new@example.com", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"remaining_seconds":60,"can_send":false}`, string(env.Data))

		w, env = ts.do(t, http.MethodPost, "/api/v1/verification/codes", gin.H{"email": "new@example.com"}, false)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, 42902, env.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))

		w, env = ts.do(t, http.MethodPost, "/api/v1/verification/verify", gin.H{"email": "new@example.com", "code": "000000"}, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40010, env.Code)
		assert.JSONEq(t, `{"outcome":"REJECTED_NO_MATCH"}`, string(env.Data))

		w, env = ts.do(t, http.MethodPost, "/api/v1/verification/verify", gin.H{"email": "new@example.com", "code": "482913"}, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"outcome":"ACCEPTED"}`, string(env.Data))

		w, env = ts.do(t, http.MethodPost, "/api/v1/verification/verify", gin.H{"email": "new@example.com", "code": "482913"}, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"outcome":"ACCEPTED_ALREADY_VERIFIED"}`, string(env.Data))
	})

	t.Run("expired code", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w, _ := ts.do(t, http.MethodPost, "/api/v1/verification/codes", gin.H{"email": "new@example.com"}, false)
		require.Equal(t, http.StatusOK, w.Code)

		ts.clock.Advance(11 * time.Minute)
		w, env := ts.do(t, http.MethodPost, "/api/v1/verification/verify", gin.H{"email": "new@example.com", "code": "482913"}, false)
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, 41001, env.Code)
		assert.JSONEq(t, `{"outcome":"REJECTED_EXPIRED"}`, string(env.Data))
	})

	t.Run("registered email", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w, env := ts.do(t, http.MethodGet, "/api/v1/verification/email?email=ALICE@example.com", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"email":"alice@example.com","registered":true}`, string(env.Data))

		w, env = ts.do(t, http.MethodPost, "/api/v1/verification/codes", gin.H{"email": "alice@example.com"}, false)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 40901, env.Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w, env := ts.do(t, http.MethodGet, "/api/v1/verification/cooldown?email=nope", nil, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, env.Code)
	})

	t.Run("captcha gate", func(t *testing.T) {
		ts := newTestServer(t, stubCaptcha{answer: "7x2k"})

		w, env := ts.do(t, http.MethodGet, "/api/v1/captcha", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(string(env.Data), `"id":"cid"`))

		w, env = ts.do(t, http.MethodPost, "/api/v1/verification/codes", gin.H{"email": "new@example.com", "captcha_id": "cid", "captcha_answer": "nope"}, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40042, env.Code)

		w, _ = ts.do(t, http.MethodPost, "/api/v1/verification/codes", gin.H{"email": "new@example.com", "captcha_id": "cid", "captcha_answer": "7x2k"}, false)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("captcha endpoint without a solver", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w, env := ts.do(t, http.MethodGet, "/api/v1/captcha", nil, false)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 40402, env.Code)
	})
}
