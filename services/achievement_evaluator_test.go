package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/store"
)

func unlockedIDs(list []UnlockedAchievement) []string {
	ids := make([]string, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestAchievementEvaluator_Evaluate(t *testing.T) {
	ctx := context.Background()

	newEvaluator := func(t *testing.T) (*testEnv, *AchievementEvaluator, *store.AchievementStore) {
		env := newTestEnv(t)
		as := store.NewAchievementStore(env.db)
		require.NoError(t, as.SeedCatalog(ctx, models.DefaultAchievements))
		return env, NewAchievementEvaluator(as, env.clock, env.locks), as
	}

	t.Run("awards every satisfied threshold", func(t *testing.T) {
		env, ev, _ := newEvaluator(t)
		got, err := ev.Evaluate(ctx, env.user.ID, Stats{CompletedCount: 5, StreakDays: 7, TotalTimeSeconds: 3600})
		require.NoError(t, err)
		assert.Equal(t, []string{"bookworm", "dedicated_reader", "first_article", "week_warrior"}, unlockedIDs(got))
		for _, u := range got {
			assert.True(t, u.EarnedAt.Equal(testStart))
			assert.NotEmpty(t, u.Name)
		}
	})

	t.Run("is idempotent and never revokes", func(t *testing.T) {
		env, ev, as := newEvaluator(t)
		_, err := ev.Evaluate(ctx, env.user.ID, Stats{CompletedCount: 1})
		require.NoError(t, err)

		got, err := ev.Evaluate(ctx, env.user.ID, Stats{CompletedCount: 1})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = ev.Evaluate(ctx, env.user.ID, Stats{})
		require.NoError(t, err)
		assert.Empty(t, got)

		earned, err := as.Earned(ctx, env.user.ID)
		require.NoError(t, err)
		require.Len(t, earned, 1)
		assert.Equal(t, "first_article", earned[0].AchievementID)
	})

	t.Run("below every threshold awards nothing", func(t *testing.T) {
		env, ev, _ := newEvaluator(t)
		got, err := ev.Evaluate(ctx, env.user.ID, Stats{StreakDays: 6, TotalTimeSeconds: 3599})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown requirement types are skipped", func(t *testing.T) {
		env, ev, as := newEvaluator(t)
		require.NoError(t, as.SeedCatalog(ctx, []models.Achievement{
			{ID: "night_owl", Name: "Night Owl", RequirementType: "midnight_reads", RequirementValue: 1},
		}))
		got, err := ev.Evaluate(ctx, env.user.ID, Stats{CompletedCount: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"first_article"}, unlockedIDs(got))
	})

	t.Run("100 concurrent evaluations award exactly once", func(t *testing.T) {
		env, ev, as := newEvaluator(t)
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			total []UnlockedAchievement
		)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := ev.Evaluate(ctx, env.user.ID, Stats{CompletedCount: 1})
				assert.NoError(t, err)
				mu.Lock()
				total = append(total, got...)
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, []string{"first_article"}, unlockedIDs(total))
		earned, err := as.Earned(ctx, env.user.ID)
		require.NoError(t, err)
		assert.Len(t, earned, 1)
	})
}
