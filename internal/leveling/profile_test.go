package leveling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-leveler/pkg/types"
)

func newTestBuilder(stores *mockStores, now time.Time) *ProfileBuilder {
	builder := NewProfileBuilder(stores, stores, DefaultProfileConfig(), nil)
	builder.now = func() time.Time { return now }
	return builder
}

func completedTask(id, person, title string, completedAt time.Time, hours float64, due *time.Time) *types.Task {
	created := completedAt.Add(-time.Duration(hours * float64(time.Hour)))
	done := completedAt
	return &types.Task{
		ID:          id,
		BoardID:     "b1",
		Title:       title,
		Status:      types.TaskStatusDone,
		Assignee:    person,
		DueDate:     due,
		CreatedAt:   created,
		CompletedAt: &done,
	}
}

func TestProfileRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("no history yields defaults not errors", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		profile, err := builder.Refresh(ctx, "alice", "org1")
		require.NoError(t, err)

		assert.Equal(t, 0, profile.TotalCompleted)
		assert.Equal(t, 1.0, profile.Velocity)
		assert.Nil(t, profile.OnTimeRate)
		assert.Equal(t, 3.0, profile.QualityScore)
		assert.Equal(t, 40.0, profile.WeeklyCapacityHours)
		assert.Zero(t, profile.UtilizationPercentage)
		assert.False(t, profile.HasHistory())
	})

	t.Run("history drives velocity, average, and keywords", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		done := now.AddDate(0, 0, -10)
		due := done.Add(24 * time.Hour)
		stores.putTask(completedTask("c1", "bob", "payment gateway fix", done, 4, &due))
		stores.putTask(completedTask("c2", "bob", "payment refunds", done.Add(time.Hour), 6, nil))

		profile, err := builder.Refresh(ctx, "bob", "org1")
		require.NoError(t, err)

		assert.Equal(t, 2, profile.TotalCompleted)
		assert.InDelta(t, 2/(90.0/7), profile.Velocity, 0.001)
		assert.InDelta(t, 5.0, profile.AvgCompletionHours, 0.001)
		require.NotNil(t, profile.OnTimeRate)
		assert.InDelta(t, 100.0, *profile.OnTimeRate, 0.001) // only c1 carries a due date
		assert.Equal(t, 2, profile.SkillKeywords["payment"])
		assert.Equal(t, 1, profile.SkillKeywords["gateway"])
	})

	t.Run("completions outside the window are ignored", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		stores.putTask(completedTask("old", "dan", "ancient work", now.AddDate(0, 0, -120), 4, nil))

		profile, err := builder.Refresh(ctx, "dan", "org1")
		require.NoError(t, err)
		assert.Equal(t, 0, profile.TotalCompleted)
	})

	t.Run("refresh is idempotent", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		done := now.AddDate(0, 0, -5)
		stores.putTask(completedTask("c1", "eve", "api cleanup", done, 3, nil))
		stores.putTask(&types.Task{
			ID: "open1", BoardID: "b1", Title: "api docs", Status: types.TaskStatusTodo,
			Assignee: "eve", Complexity: 10, CreatedAt: now.AddDate(0, 0, -1),
		})

		first, err := builder.Refresh(ctx, "eve", "org1")
		require.NoError(t, err)
		second, err := builder.Refresh(ctx, "eve", "org1")
		require.NoError(t, err)

		assert.Equal(t, first.TotalCompleted, second.TotalCompleted)
		assert.Equal(t, first.Velocity, second.Velocity)
		assert.Equal(t, first.AvgCompletionHours, second.AvgCompletionHours)
		assert.Equal(t, first.SkillKeywords, second.SkillKeywords)
		assert.Equal(t, first.UtilizationPercentage, second.UtilizationPercentage)
	})
}

func TestProfileWorkload(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("open items sum complexity hours against capacity", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		stores.putTask(&types.Task{
			ID: "o1", BoardID: "b1", Title: "one", Status: types.TaskStatusTodo,
			Assignee: "fay", Complexity: 10, CreatedAt: now,
		})
		stores.putTask(&types.Task{
			ID: "o2", BoardID: "b1", Title: "two", Status: types.TaskStatusInProgress,
			Assignee: "fay", Complexity: 6, CreatedAt: now,
		})

		profile, err := builder.RefreshWorkload(ctx, "fay", "org1")
		require.NoError(t, err)

		assert.Equal(t, 2, profile.CurrentActiveCount)
		assert.InDelta(t, 16.0, profile.CurrentWorkloadHours, 0.001)
		assert.InDelta(t, 40.0, profile.UtilizationPercentage, 0.001) // 16/40
	})

	t.Run("utilization may exceed 100 internally but displays capped", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		for _, id := range []string{"o1", "o2", "o3", "o4", "o5", "o6"} {
			stores.putTask(&types.Task{
				ID: id, BoardID: "b1", Title: "load", Status: types.TaskStatusTodo,
				Assignee: "gus", Complexity: 8, CreatedAt: now,
			})
		}

		profile, err := builder.RefreshWorkload(ctx, "gus", "org1")
		require.NoError(t, err)

		assert.InDelta(t, 120.0, profile.UtilizationPercentage, 0.001)
		assert.InDelta(t, 100.0, profile.DisplayUtilization(), 0.001)
	})

	t.Run("items without complexity use the default estimate", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		stores.putTask(&types.Task{
			ID: "o1", BoardID: "b1", Title: "mystery", Status: types.TaskStatusTodo,
			Assignee: "hana", CreatedAt: now,
		})

		profile, err := builder.RefreshWorkload(ctx, "hana", "org1")
		require.NoError(t, err)
		assert.InDelta(t, 8.0, profile.CurrentWorkloadHours, 0.001)
	})
}

func TestProfileEnsure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("missing profile is built on demand", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		profile, err := builder.Ensure(ctx, "ivy", "org1")
		require.NoError(t, err)
		assert.Equal(t, "ivy", profile.PersonID)
		assert.Equal(t, now, profile.LastRefreshedAt)
	})

	t.Run("fresh profile is returned as stored", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		_, err := builder.Refresh(ctx, "jon", "org1")
		require.NoError(t, err)

		// A task added after the refresh is not picked up while fresh.
		stores.putTask(&types.Task{
			ID: "o1", BoardID: "b1", Title: "late", Status: types.TaskStatusTodo,
			Assignee: "jon", Complexity: 8, CreatedAt: now,
		})

		profile, err := builder.Ensure(ctx, "jon", "org1")
		require.NoError(t, err)
		assert.Zero(t, profile.CurrentActiveCount)
	})

	t.Run("stale snapshot triggers a workload refresh", func(t *testing.T) {
		stores := newMockStores()
		builder := newTestBuilder(stores, now)

		_, err := builder.Refresh(ctx, "kim", "org1")
		require.NoError(t, err)

		stores.putTask(&types.Task{
			ID: "o1", BoardID: "b1", Title: "late", Status: types.TaskStatusTodo,
			Assignee: "kim", Complexity: 8, CreatedAt: now,
		})

		builder.now = func() time.Time { return now.Add(16 * time.Minute) }
		profile, err := builder.Ensure(ctx, "kim", "org1")
		require.NoError(t, err)
		assert.Equal(t, 1, profile.CurrentActiveCount)
	})
}
