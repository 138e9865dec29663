package leveling

import (
	"fmt"
	"math"

	"taskboard-leveler/pkg/types"
)

// ScoreWeights represents one weighted-sum regime of the candidate scorer.
type ScoreWeights struct {
	Skill        float64 `json:"skill"`
	Availability float64 `json:"availability"`
	Velocity     float64 `json:"velocity"`
	Reliability  float64 `json:"reliability"`
	Quality      float64 `json:"quality"`
}

// ScorerConfig represents configuration for candidate scoring
type ScorerConfig struct {
	// HistoryWeights applies to candidates with completion history.
	HistoryWeights ScoreWeights `json:"history_weights"`

	// ColdStartWeights applies when nothing is known about the person yet;
	// objective, observable facts dominate.
	ColdStartWeights ScoreWeights `json:"cold_start_weights"`

	// NeutralScore substitutes for factors with no evidence.
	NeutralScore float64 `json:"neutral_score"`

	// TempTaskPenalty is utilization points charged per task already
	// suggested to this person earlier in the same batch pass.
	TempTaskPenalty float64 `json:"temp_task_penalty"`

	// VelocityScale converts items-per-week velocity to a 0-100 factor.
	VelocityScale float64 `json:"velocity_scale"`

	// OverloadThreshold and OverloadMaxInflation slow down predicted
	// completion for overloaded candidates, by up to the inflation fraction.
	OverloadThreshold    float64 `json:"overload_threshold"`
	OverloadMaxInflation float64 `json:"overload_max_inflation"`

	// DefaultCompletionHours substitutes when the candidate has no average.
	DefaultCompletionHours float64 `json:"default_completion_hours"`

	// AverageComplexity anchors the complexity multiplier: a task at this
	// complexity takes the candidate's average time.
	AverageComplexity float64 `json:"average_complexity"`
}

// DefaultScorerConfig returns default scorer configuration. The weight values
// are hand-tuned; treat them as tuning constants, not derived optima.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		HistoryWeights: ScoreWeights{
			Skill:        0.30,
			Availability: 0.25,
			Velocity:     0.20,
			Reliability:  0.15,
			Quality:      0.10,
		},
		ColdStartWeights: ScoreWeights{
			Skill:        0.35,
			Availability: 0.45,
			Velocity:     0.10,
			Reliability:  0.05,
			Quality:      0.05,
		},
		NeutralScore:           50,
		TempTaskPenalty:        15,
		VelocityScale:          50,
		OverloadThreshold:      80,
		OverloadMaxInflation:   0.20,
		DefaultCompletionHours: 8,
		AverageComplexity:      5,
	}
}

// Scorer combines skill match, availability, velocity, reliability, and
// quality into one weighted suitability score per candidate.
type Scorer struct {
	config  ScorerConfig
	matcher *SkillMatcher
}

// NewScorer creates a new candidate scorer
func NewScorer() *Scorer {
	return NewScorerWithConfig(DefaultScorerConfig())
}

// NewScorerWithConfig creates a new candidate scorer with custom config
func NewScorerWithConfig(config ScorerConfig) *Scorer {
	return &Scorer{
		config:  config,
		matcher: NewSkillMatcher(),
	}
}

// Score evaluates one candidate profile against one task. extraTasks is the
// number of tasks already suggested to this candidate earlier in the same
// batch pass; each one temporarily costs TempTaskPenalty utilization points
// so a whole batch cannot pile onto a single underutilized person.
func (s *Scorer) Score(task *types.Task, profile *types.PerformanceProfile, extraTasks int) types.CandidateScore {
	utilization := profile.UtilizationPercentage + s.config.TempTaskPenalty*float64(extraTasks)

	availability := 100 - utilization
	if availability < 0 {
		availability = 0
	}

	skillMatch := s.matcher.Match(profile.SkillKeywords, task.Title+" "+task.Description)

	hasHistory := profile.HasHistory()

	velocityScore := s.config.NeutralScore
	if hasHistory {
		velocityScore = math.Min(profile.Velocity*s.config.VelocityScale, 100)
	}

	reliability := s.config.NeutralScore
	if profile.OnTimeRate != nil {
		reliability = *profile.OnTimeRate
	}

	quality := profile.QualityScore / 5 * 100

	weights := s.config.HistoryWeights
	if !hasHistory {
		weights = s.config.ColdStartWeights
	}

	overall := skillMatch*weights.Skill +
		availability*weights.Availability +
		velocityScore*weights.Velocity +
		reliability*weights.Reliability +
		quality*weights.Quality

	score := types.CandidateScore{
		PersonID:       profile.PersonID,
		OverallScore:   clamp(overall, 0, 100),
		SkillMatch:     skillMatch,
		Availability:   availability,
		VelocityScore:  velocityScore,
		Reliability:    reliability,
		QualityScore:   quality,
		PredictedHours: s.PredictHours(task, profile, utilization),
		Utilization:    utilization,
		ActiveCount:    profile.CurrentActiveCount,
		HasHistory:     hasHistory,
	}
	score.Reasoning = s.reasoning(&score)
	return score
}

// PredictHours estimates completion hours for the candidate: their own
// historical average scaled by task complexity, inflated by up to 20% when
// they are already overloaded.
func (s *Scorer) PredictHours(task *types.Task, profile *types.PerformanceProfile, utilization float64) float64 {
	hours := profile.AvgCompletionHours
	if hours <= 0 {
		hours = s.config.DefaultCompletionHours
	}

	if task.Complexity > 0 && s.config.AverageComplexity > 0 {
		hours *= task.Complexity / s.config.AverageComplexity
	}

	if utilization > s.config.OverloadThreshold {
		inflation := (utilization - s.config.OverloadThreshold) / 100
		if inflation > s.config.OverloadMaxInflation {
			inflation = s.config.OverloadMaxInflation
		}
		hours *= 1 + inflation
	}
	return hours
}

// reasoning builds the per-candidate explanation from the same numbers the
// caller receives structurally, so UI and logs never disagree with the data.
func (s *Scorer) reasoning(c *types.CandidateScore) string {
	history := "no completion history yet"
	if c.HasHistory {
		history = fmt.Sprintf("velocity factor %.0f, reliability %.0f", c.VelocityScore, c.Reliability)
	}
	return fmt.Sprintf(
		"Overall %.1f: skill match %.0f, availability %.0f at %.0f%% utilization (%d active), predicted %.1fh; %s.",
		c.OverallScore, c.SkillMatch, c.Availability, c.Utilization, c.ActiveCount, c.PredictedHours, history)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
