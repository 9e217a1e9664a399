package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/smartreader/models"
)

func TestStreakStore_Update(t *testing.T) {
	db := setupTestDB(t)
	s := NewStreakStore(db)
	ctx := context.Background()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("unchanged rows are not written", func(t *testing.T) {
		st, err := s.Update(ctx, 7, func(st *models.ReadingStreak) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint(7), st.UserID)

		_, err = s.Get(ctx, 7)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("creates then updates", func(t *testing.T) {
		_, err := s.Update(ctx, 7, func(st *models.ReadingStreak) (bool, error) {
			st.CurrentStreak, st.LongestStreak, st.TotalReadingDays = 1, 1, 1
			st.LastReadDate = &day
			return true, nil
		})
		require.NoError(t, err)

		next := day.Add(24 * time.Hour)
		_, err = s.Update(ctx, 7, func(st *models.ReadingStreak) (bool, error) {
			require.NotNil(t, st.LastReadDate)
			assert.True(t, st.LastReadDate.Equal(day))
			st.CurrentStreak++
			st.LongestStreak = st.CurrentStreak
			st.TotalReadingDays++
			st.LastReadDate = &next
			return true, nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentStreak)
		assert.Equal(t, 2, got.LongestStreak)
		assert.Equal(t, 2, got.TotalReadingDays)
		assert.True(t, got.LastReadDate.Equal(next))
	})
}
