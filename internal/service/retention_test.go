package service

import (
	"context"
	"testing"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCalculateWeight(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	thresholds := DefaultThresholds()

	daysAgo := func(d int) *time.Time {
		ts := now.AddDate(0, 0, -d)
		return &ts
	}

	t.Run("decay ladder by age", func(t *testing.T) {
		tests := []struct {
			name         string
			lastAccessed *time.Time
			want         float64
		}{
			{"accessed today", daysAgo(0), 1.0},
			{"89 days", daysAgo(89), 1.0},
			{"exactly 90 days", daysAgo(90), 0.5},
			{"179 days", daysAgo(179), 0.5},
			{"exactly 180 days", daysAgo(180), 0.2},
			{"364 days", daysAgo(364), 0.2},
			{"exactly 365 days", daysAgo(365), 0.1},
			{"two years", daysAgo(730), 0.1},
			{"never accessed", nil, 0.1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := CalculateWeight(tt.lastAccessed, false, domain.CategoryFix, thresholds, now)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("starred items hold full weight at any age", func(t *testing.T) {
		got := CalculateWeight(daysAgo(400), true, domain.CategoryFix, thresholds, now)
		assert.Equal(t, 1.0, got)
	})

	t.Run("preference items hold full weight at any age", func(t *testing.T) {
		got := CalculateWeight(daysAgo(400), false, domain.CategoryPreference, thresholds, now)
		assert.Equal(t, 1.0, got)
	})

	t.Run("weight never increases with age", func(t *testing.T) {
		prev := 1.0
		for d := 0; d <= 800; d += 10 {
			w := CalculateWeight(daysAgo(d), false, domain.CategoryLearning, thresholds, now)
			assert.LessOrEqual(t, w, prev, "weight rose at %d days", d)
			prev = w
		}
	})

	t.Run("custom thresholds are honored", func(t *testing.T) {
		custom := Thresholds{D90: 0.7, D180: 0.4, D365: 0.05}
		assert.Equal(t, 0.7, CalculateWeight(daysAgo(100), false, domain.CategoryFix, custom, now))
		assert.Equal(t, 0.4, CalculateWeight(daysAgo(200), false, domain.CategoryFix, custom, now))
		assert.Equal(t, 0.05, CalculateWeight(nil, false, domain.CategoryFix, custom, now))
	})
}

func TestRetentionEngine_RunDecay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rfc3339DaysAgo := func(d int) string {
		return now.AddDate(0, 0, -d).Format(time.RFC3339)
	}

	t.Run("writes only meaningful changes and reports buckets", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		engine := NewRetentionEngineWithClock(mockItemRepo, DefaultThresholds(), fixedClock(now))

		rows := []DecayRow{
			{ID: "fresh", Category: domain.CategoryFix, Weight: 1.0, LastAccessed: rfc3339DaysAgo(5)},
			{ID: "stale-90", Category: domain.CategoryFix, Weight: 1.0, LastAccessed: rfc3339DaysAgo(120)},
			{ID: "stale-180", Category: domain.CategoryLearning, Weight: 0.5, LastAccessed: rfc3339DaysAgo(200)},
			{ID: "stale-365", Category: domain.CategoryPattern, Weight: 0.2, LastAccessed: rfc3339DaysAgo(400)},
			{ID: "never-accessed", Category: domain.CategoryDecision, Weight: 1.0, LastAccessed: ""},
			{ID: "starred", Category: domain.CategoryFix, Starred: true, Weight: 1.0, LastAccessed: rfc3339DaysAgo(400)},
			{ID: "pref", Category: domain.CategoryPreference, Weight: 1.0, LastAccessed: rfc3339DaysAgo(400)},
		}
		mockItemRepo.On("DecayRows", mock.Anything).Return(rows, nil)
		mockItemRepo.On("UpdateWeight", mock.Anything, "stale-90", 0.5).Return(nil)
		mockItemRepo.On("UpdateWeight", mock.Anything, "stale-180", 0.2).Return(nil)
		mockItemRepo.On("UpdateWeight", mock.Anything, "stale-365", 0.1).Return(nil)
		mockItemRepo.On("UpdateWeight", mock.Anything, "never-accessed", 0.1).Return(nil)

		report, err := engine.RunDecay(ctx)
		require.NoError(t, err)

		assert.Equal(t, 7, report.Scanned)
		assert.Equal(t, 4, report.Updated)
		assert.Equal(t, 3, report.Unchanged)
		assert.Equal(t, 2, report.Pinned)
		assert.Equal(t, 0, report.Unparsable)
		assert.Equal(t, 3, report.Buckets["active"]) // fresh + both pinned
		assert.Equal(t, 1, report.Buckets["d90"])
		assert.Equal(t, 1, report.Buckets["d180"])
		assert.Equal(t, 2, report.Buckets["d365"])
		mockItemRepo.AssertExpectations(t)
	})

	t.Run("second pass produces no writes", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		engine := NewRetentionEngineWithClock(mockItemRepo, DefaultThresholds(), fixedClock(now))

		rows := []DecayRow{
			{ID: "settled-90", Category: domain.CategoryFix, Weight: 0.5, LastAccessed: rfc3339DaysAgo(120)},
			{ID: "settled-365", Category: domain.CategoryFix, Weight: 0.1, LastAccessed: ""},
		}
		mockItemRepo.On("DecayRows", mock.Anything).Return(rows, nil)

		report, err := engine.RunDecay(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Updated)
		assert.Equal(t, 2, report.Unchanged)
		mockItemRepo.AssertNotCalled(t, "UpdateWeight")
	})

	t.Run("weight within epsilon of target is not rewritten", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		engine := NewRetentionEngineWithClock(mockItemRepo, DefaultThresholds(), fixedClock(now))

		rows := []DecayRow{
			{ID: "close-enough", Category: domain.CategoryFix, Weight: 0.495, LastAccessed: rfc3339DaysAgo(120)},
		}
		mockItemRepo.On("DecayRows", mock.Anything).Return(rows, nil)

		report, err := engine.RunDecay(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Updated)
		mockItemRepo.AssertNotCalled(t, "UpdateWeight")
	})

	t.Run("malformed timestamp is a per-row failure", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		engine := NewRetentionEngineWithClock(mockItemRepo, DefaultThresholds(), fixedClock(now))

		rows := []DecayRow{
			{ID: "bad-row", Category: domain.CategoryFix, Weight: 1.0, LastAccessed: "not-a-timestamp"},
			{ID: "good-row", Category: domain.CategoryFix, Weight: 1.0, LastAccessed: rfc3339DaysAgo(120)},
		}
		mockItemRepo.On("DecayRows", mock.Anything).Return(rows, nil)
		mockItemRepo.On("UpdateWeight", mock.Anything, "good-row", 0.5).Return(nil)

		report, err := engine.RunDecay(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Unparsable)
		assert.Equal(t, 1, report.Updated)
		mockItemRepo.AssertExpectations(t)
	})
}

func TestRetentionEngine_RefreshWeight(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("restores full weight and stamps recall", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		engine := NewRetentionEngineWithClock(mockItemRepo, DefaultThresholds(), fixedClock(now))

		item := domain.NewItem("item-1", "content", domain.CategoryFix, "", now.AddDate(-1, 0, 0))
		item.Weight = 0.1
		mockItemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)
		mockItemRepo.On("RefreshWeight", mock.Anything, "item-1", now).Return(nil)

		require.NoError(t, engine.RefreshWeight(ctx, "item-1"))
		mockItemRepo.AssertExpectations(t)
	})

	t.Run("superseded items cannot be refreshed", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		engine := NewRetentionEngineWithClock(mockItemRepo, DefaultThresholds(), fixedClock(now))

		successor := "item-2"
		item := domain.NewItem("item-1", "content", domain.CategoryFix, "", now)
		item.SupersededBy = &successor
		item.Weight = 0.0
		mockItemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)

		err := engine.RefreshWeight(ctx, "item-1")
		assert.ErrorIs(t, err, domain.ErrSupersededImmutable)
		mockItemRepo.AssertNotCalled(t, "RefreshWeight")
	})
}

func TestRetentionEngine_ProcessFlaggedDeletions(t *testing.T) {
	ctx := context.Background()
	mockItemRepo := new(MockItemRepository)
	engine := NewRetentionEngine(mockItemRepo, DefaultThresholds())

	counts := map[domain.Category]int{
		domain.CategoryFix:      2,
		domain.CategoryLearning: 1,
	}
	mockItemRepo.On("DeleteFlagged", mock.Anything).Return(counts, nil)

	got, err := engine.ProcessFlaggedDeletions(ctx)
	require.NoError(t, err)
	assert.Equal(t, counts, got)
}
