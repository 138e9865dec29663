package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskboard-leveler/pkg/types"
)

func TestScorerColdStart(t *testing.T) {
	scorer := NewScorer()
	task := &types.Task{ID: "t1", Title: "payment gateway work"}
	profile := &types.PerformanceProfile{
		PersonID:            "alice",
		Velocity:            1.0,
		QualityScore:        3.0,
		WeeklyCapacityHours: 40,
	}

	score := scorer.Score(task, profile, 0)

	t.Run("neutral factors where no evidence exists", func(t *testing.T) {
		assert.Equal(t, 50.0, score.SkillMatch)
		assert.Equal(t, 50.0, score.VelocityScore)
		assert.Equal(t, 50.0, score.Reliability)
		assert.False(t, score.HasHistory)
	})

	t.Run("cold start weights apply", func(t *testing.T) {
		// .35*50 + .45*100 + .10*50 + .05*50 + .05*60
		assert.InDelta(t, 73.0, score.OverallScore, 0.01)
	})

	t.Run("predicted hours fall back to the default", func(t *testing.T) {
		assert.InDelta(t, 8.0, score.PredictedHours, 0.001)
	})

	t.Run("reasoning reflects the numbers", func(t *testing.T) {
		assert.Contains(t, score.Reasoning, "no completion history yet")
	})
}

func TestScorerWithHistory(t *testing.T) {
	scorer := NewScorer()
	onTime := 80.0
	profile := &types.PerformanceProfile{
		PersonID:              "bob",
		TotalCompleted:        12,
		AvgCompletionHours:    6,
		Velocity:              2.0,
		OnTimeRate:            &onTime,
		QualityScore:          4.0,
		SkillKeywords:         map[string]int{"payment": 10, "gateway": 8},
		UtilizationPercentage: 40,
		WeeklyCapacityHours:   40,
		CurrentActiveCount:    2,
	}
	task := &types.Task{ID: "t1", Title: "payment gateway integration"}

	score := scorer.Score(task, profile, 0)

	t.Run("history regime factors", func(t *testing.T) {
		assert.True(t, score.HasHistory)
		assert.InDelta(t, 60.0, score.SkillMatch, 0.01)    // (10+8)/30*100
		assert.InDelta(t, 60.0, score.Availability, 0.01)  // 100-40
		assert.InDelta(t, 100.0, score.VelocityScore, 0.01) // 2*50 capped
		assert.InDelta(t, 80.0, score.Reliability, 0.01)
		assert.InDelta(t, 80.0, score.QualityScore, 0.01) // 4/5*100
	})

	t.Run("weighted overall", func(t *testing.T) {
		// .30*60 + .25*60 + .20*100 + .15*80 + .10*80
		assert.InDelta(t, 73.0, score.OverallScore, 0.01)
	})

	t.Run("predicted hours use own average", func(t *testing.T) {
		assert.InDelta(t, 6.0, score.PredictedHours, 0.001)
	})
}

func TestScorerTempTaskPenalty(t *testing.T) {
	scorer := NewScorer()
	task := &types.Task{ID: "t1", Title: "some work"}
	profile := &types.PerformanceProfile{
		PersonID:              "carol",
		UtilizationPercentage: 20,
		WeeklyCapacityHours:   40,
		Velocity:              1.0,
		QualityScore:          3.0,
	}

	clean := scorer.Score(task, profile, 0)
	loaded := scorer.Score(task, profile, 2)

	assert.InDelta(t, clean.Utilization+30, loaded.Utilization, 0.001)
	assert.InDelta(t, clean.Availability-30, loaded.Availability, 0.001)
	assert.Less(t, loaded.OverallScore, clean.OverallScore)
}

func TestPredictHours(t *testing.T) {
	scorer := NewScorer()

	t.Run("complexity scales around the average", func(t *testing.T) {
		profile := &types.PerformanceProfile{AvgCompletionHours: 10, TotalCompleted: 5}
		easy := scorer.PredictHours(&types.Task{Complexity: 2.5}, profile, 0)
		hard := scorer.PredictHours(&types.Task{Complexity: 10}, profile, 0)
		assert.InDelta(t, 5.0, easy, 0.001)  // 10 * 2.5/5
		assert.InDelta(t, 20.0, hard, 0.001) // 10 * 10/5
	})

	t.Run("overload inflates the estimate", func(t *testing.T) {
		profile := &types.PerformanceProfile{AvgCompletionHours: 10, TotalCompleted: 5}
		inflated := scorer.PredictHours(&types.Task{}, profile, 90)
		assert.InDelta(t, 11.0, inflated, 0.001) // +10%
	})

	t.Run("inflation is capped", func(t *testing.T) {
		profile := &types.PerformanceProfile{AvgCompletionHours: 10, TotalCompleted: 5}
		inflated := scorer.PredictHours(&types.Task{}, profile, 200)
		assert.InDelta(t, 12.0, inflated, 0.001) // capped at +20%
	})

	t.Run("unset complexity uses the average directly", func(t *testing.T) {
		profile := &types.PerformanceProfile{AvgCompletionHours: 7, TotalCompleted: 5}
		assert.InDelta(t, 7.0, scorer.PredictHours(&types.Task{}, profile, 0), 0.001)
	})
}
