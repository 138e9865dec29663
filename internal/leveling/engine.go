package leveling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"taskboard-leveler/internal/logging"
	"taskboard-leveler/pkg/types"
)

// EngineConfig represents configuration for the suggestion engine
type EngineConfig struct {
	// ReassignMarginPoints is how many points the best candidate must beat
	// the current assignee by before a reassignment is worth proposing.
	ReassignMarginPoints float64 `json:"reassign_margin_points"`

	// SuggestionTTL is how long a suggestion stays actionable.
	SuggestionTTL time.Duration `json:"suggestion_ttl"`

	// MaxTeamSuggestions caps one batch generation pass.
	MaxTeamSuggestions int `json:"max_team_suggestions"`
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ReassignMarginPoints: 15,
		SuggestionTTL:        48 * time.Hour,
		MaxTeamSuggestions:   10,
	}
}

// SuggestionEngine orchestrates candidate scoring for tasks and materializes
// reassignment suggestions. Scoring is side-effect-free except for on-demand
// profile refreshes; nothing reassigns a task until an explicit accept.
type SuggestionEngine struct {
	profiles    ProfileStore
	suggestions SuggestionStore
	tasks       TaskDirectory
	builder     *ProfileBuilder
	scorer      *Scorer
	config      EngineConfig
	logger      logging.Logger
	now         func() time.Time

	titleCaser cases.Caser
}

// NewSuggestionEngine creates a new suggestion engine
func NewSuggestionEngine(profiles ProfileStore, suggestions SuggestionStore, tasks TaskDirectory, builder *ProfileBuilder, scorer *Scorer, config EngineConfig, logger logging.Logger) *SuggestionEngine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &SuggestionEngine{
		profiles:    profiles,
		suggestions: suggestions,
		tasks:       tasks,
		builder:     builder,
		scorer:      scorer,
		config:      config,
		logger:      logger.WithComponent("suggestion_engine"),
		now:         time.Now,
		titleCaser:  cases.Title(language.English),
	}
}

// SuggestResult is the outcome of a suggestion attempt. A nil Suggestion with
// a non-empty Skipped reason means there was nothing worth suggesting; that
// is an ordinary result, not an error.
type SuggestResult struct {
	Suggestion *types.Suggestion `json:"suggestion,omitempty"`
	Skipped    string            `json:"skipped,omitempty"`
}

// Analyze scores every eligible candidate for the task and returns the full
// ranked list, the top recommendation, and a reasoning sentence built from
// the same numbers.
func (e *SuggestionEngine) Analyze(ctx context.Context, taskID string) (*types.TaskAnalysis, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return e.analyzeTask(ctx, task, nil)
}

// Suggest evaluates one task and, when a reassignment is worthwhile,
// persists and returns a fresh Suggestion. Stale pending suggestions for the
// task are expired first so at most one actionable suggestion exists per
// task.
func (e *SuggestionEngine) Suggest(ctx context.Context, taskID string) (*SuggestResult, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := e.suggestions.ExpirePendingByTask(ctx, task.ID, e.now()); err != nil {
		return nil, fmt.Errorf("expiring stale suggestions for task %s: %w", task.ID, err)
	}
	return e.suggestOne(ctx, task, nil)
}

// SuggestForTeam runs one batch generation pass over a board's open tasks.
// All pending suggestions for the board are bulk-expired first: suggestions
// are regenerated from current facts, never trusted as stale cache. Within
// the pass, every materialized suggestion temporarily charges its recipient's
// utilization so later tasks in the same pass see the accumulated effect.
// The pass is sequential on purpose (see the temp adjustment accounting).
func (e *SuggestionEngine) SuggestForTeam(ctx context.Context, boardID string, limit int) ([]types.Suggestion, error) {
	if _, err := e.tasks.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > e.config.MaxTeamSuggestions {
		limit = e.config.MaxTeamSuggestions
	}

	expired, err := e.suggestions.ExpirePendingByBoard(ctx, boardID, e.now())
	if err != nil {
		return nil, fmt.Errorf("expiring pending suggestions for board %s: %w", boardID, err)
	}
	if expired > 0 {
		e.logger.Debug("expired stale suggestions before batch", "board_id", boardID, "count", expired)
	}

	open, err := e.tasks.OpenTasksForBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	tempExtra := make(map[string]int)
	results := make([]types.Suggestion, 0, limit)
	for i := range open {
		if len(results) >= limit {
			break
		}
		res, err := e.suggestOne(ctx, &open[i], tempExtra)
		if err != nil {
			// One bad task must not sink the whole batch.
			e.logger.Warn("skipping task in batch", "task_id", open[i].ID, "error", err.Error())
			continue
		}
		if res.Suggestion != nil {
			results = append(results, *res.Suggestion)
			tempExtra[res.Suggestion.SuggestedAssignee]++
		}
	}

	e.logger.Info("batch suggestion pass complete",
		"board_id", boardID, "tasks", len(open), "suggestions", len(results))
	return results, nil
}

// analyzeTask scores all eligible candidates: the board's members, plus the
// current assignee even when they are not a member, so the comparison is
// fair.
func (e *SuggestionEngine) analyzeTask(ctx context.Context, task *types.Task, tempExtra map[string]int) (*types.TaskAnalysis, error) {
	board, err := e.tasks.GetBoard(ctx, task.BoardID)
	if err != nil {
		return nil, err
	}

	persons := make([]string, 0, len(board.Members)+1)
	seen := make(map[string]struct{}, len(board.Members)+1)
	for _, m := range board.Members {
		if _, dup := seen[m]; !dup {
			seen[m] = struct{}{}
			persons = append(persons, m)
		}
	}
	if task.Assignee != "" {
		if _, dup := seen[task.Assignee]; !dup {
			persons = append(persons, task.Assignee)
		}
	}

	candidates := make([]types.CandidateScore, 0, len(persons))
	for _, personID := range persons {
		profile, err := e.builder.Ensure(ctx, personID, board.OrgID)
		if err != nil {
			e.logger.Warn("skipping candidate without profile", "person_id", personID, "error", err.Error())
			continue
		}
		candidates = append(candidates, e.scorer.Score(task, profile, tempExtra[personID]))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].OverallScore != candidates[j].OverallScore {
			return candidates[i].OverallScore > candidates[j].OverallScore
		}
		return candidates[i].PersonID < candidates[j].PersonID
	})

	analysis := &types.TaskAnalysis{
		TaskID:          task.ID,
		CurrentAssignee: task.Assignee,
		Candidates:      candidates,
	}
	if len(candidates) == 0 {
		analysis.Reasoning = "No eligible candidates on this board."
		return analysis, nil
	}

	top := candidates[0]
	analysis.TopCandidate = &top
	analysis.ProjectedEstimate = top.PredictedHours

	current := findCandidate(candidates, task.Assignee)
	if current != nil {
		analysis.BaselineEstimate = current.PredictedHours
		improvement := top.OverallScore - current.OverallScore
		analysis.RecommendChange = top.PersonID != current.PersonID && improvement > e.config.ReassignMarginPoints
		if analysis.RecommendChange {
			analysis.Reasoning = fmt.Sprintf(
				"%s outscores current assignee %s by %.1f points (%.1f vs %.1f); projected %.1fh vs %.1fh.",
				top.PersonID, current.PersonID, improvement, top.OverallScore, current.OverallScore,
				top.PredictedHours, current.PredictedHours)
		} else {
			analysis.Reasoning = fmt.Sprintf(
				"Current assignee %s remains the best fit (top score %.1f vs %.1f, margin threshold %.0f points).",
				current.PersonID, top.OverallScore, current.OverallScore, e.config.ReassignMarginPoints)
		}
	} else {
		// Unassigned: compare the top pick against the median candidate,
		// which is robust to a single outlier estimate.
		analysis.BaselineEstimate = medianPredictedHours(candidates)
		analysis.RecommendChange = true
		analysis.Reasoning = fmt.Sprintf(
			"Unassigned task: %s is the strongest candidate (score %.1f, predicted %.1fh vs median %.1fh).",
			top.PersonID, top.OverallScore, top.PredictedHours, analysis.BaselineEstimate)
	}
	return analysis, nil
}

// suggestOne evaluates one task and persists a Suggestion when the analysis
// recommends a change. Callers are responsible for expiring stale pending
// suggestions beforehand.
func (e *SuggestionEngine) suggestOne(ctx context.Context, task *types.Task, tempExtra map[string]int) (*SuggestResult, error) {
	if !task.Status.IsOpen() {
		return &SuggestResult{Skipped: "task is no longer open"}, nil
	}

	analysis, err := e.analyzeTask(ctx, task, tempExtra)
	if err != nil {
		return nil, err
	}
	if len(analysis.Candidates) == 0 {
		return &SuggestResult{Skipped: "no eligible candidates"}, nil
	}
	if !analysis.RecommendChange {
		return &SuggestResult{Skipped: analysis.Reasoning}, nil
	}

	top := *analysis.TopCandidate

	// Baseline facts: the current assignee when there is one, otherwise the
	// median candidate (consistent with the time-savings baseline).
	baseUtil, baseAvail, baseSkill := medianBaseline(analysis.Candidates)
	if current := findCandidate(analysis.Candidates, task.Assignee); current != nil {
		baseUtil, baseAvail, baseSkill = current.Utilization, current.Availability, current.SkillMatch
	}

	savings := analysis.BaselineEstimate - top.PredictedHours
	if savings < 0 {
		savings = 0
	}
	savingsPct := 0.0
	if analysis.BaselineEstimate > 0 {
		savingsPct = savings / analysis.BaselineEstimate * 100
	}

	impact := classifyImpact(baseUtil-top.Utilization, top.SkillMatch-baseSkill)

	confidence := confidenceScore(confidenceInput{
		BaselineUtilization:  baseUtil,
		SuggestedUtilization: top.Utilization,
		BaselineAvailability: baseAvail,
		SuggestedAvail:       top.Availability,
		SkillMatch:           top.SkillMatch,
		ScoreImprovement:     improvementOver(analysis, &top),
		Impact:               impact,
		SuggestedActiveCount: top.ActiveCount,
		JitterA:              task.Assignee,
		JitterB:              top.PersonID,
	})

	now := e.now()
	suggestion := &types.Suggestion{
		ID:                    uuid.NewString(),
		TaskID:                task.ID,
		BoardID:               task.BoardID,
		CurrentAssignee:       task.Assignee,
		SuggestedAssignee:     top.PersonID,
		ConfidenceScore:       confidence,
		SkillMatchScore:       top.SkillMatch,
		TimeSavingsHours:      savings,
		TimeSavingsPercentage: savingsPct,
		BaselineEstimateHours: analysis.BaselineEstimate,
		PredictedHours:        top.PredictedHours,
		WorkloadImpact:        impact,
		Reasoning:             e.suggestionReasoning(task, &top, impact, savings, savingsPct),
		Status:                types.SuggestionStatusPending,
		CreatedAt:             now,
		ExpiresAt:             now.Add(e.config.SuggestionTTL),
	}

	if err := e.suggestions.Create(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("saving suggestion for task %s: %w", task.ID, err)
	}

	e.logger.Debug("suggestion created",
		"task_id", task.ID,
		"suggested_assignee", top.PersonID,
		"confidence", confidence,
		"impact", string(impact))
	return &SuggestResult{Suggestion: suggestion}, nil
}

func (e *SuggestionEngine) suggestionReasoning(task *types.Task, top *types.CandidateScore, impact types.WorkloadImpact, savings, savingsPct float64) string {
	label := e.titleCaser.String(strings.ReplaceAll(string(impact), "_", " "))
	if task.Assignee == "" {
		return fmt.Sprintf(
			"%s: assign %q to %s (skill match %.0f, %.0f%% utilization); projected %.1fh, %.1fh (%.0f%%) under the median candidate.",
			label, task.Title, top.PersonID, top.SkillMatch, top.Utilization, top.PredictedHours, savings, savingsPct)
	}
	return fmt.Sprintf(
		"%s: move %q from %s to %s (skill match %.0f, %.0f%% utilization); projected %.1fh saves %.1fh (%.0f%%).",
		label, task.Title, task.Assignee, top.PersonID, top.SkillMatch, top.Utilization, top.PredictedHours, savings, savingsPct)
}

func improvementOver(analysis *types.TaskAnalysis, top *types.CandidateScore) float64 {
	if current := findCandidate(analysis.Candidates, analysis.CurrentAssignee); current != nil {
		return top.OverallScore - current.OverallScore
	}
	// Unassigned: improvement over the median overall score.
	scores := make([]float64, len(analysis.Candidates))
	for i := range analysis.Candidates {
		scores[i] = analysis.Candidates[i].OverallScore
	}
	return top.OverallScore - median(scores)
}

func findCandidate(candidates []types.CandidateScore, personID string) *types.CandidateScore {
	if personID == "" {
		return nil
	}
	for i := range candidates {
		if candidates[i].PersonID == personID {
			return &candidates[i]
		}
	}
	return nil
}

func medianPredictedHours(candidates []types.CandidateScore) float64 {
	hours := make([]float64, len(candidates))
	for i := range candidates {
		hours[i] = candidates[i].PredictedHours
	}
	return median(hours)
}

// medianBaseline returns the median utilization, availability, and skill
// match across candidates, used as the comparison point for unassigned
// tasks.
func medianBaseline(candidates []types.CandidateScore) (util, avail, skill float64) {
	utils := make([]float64, len(candidates))
	avails := make([]float64, len(candidates))
	skills := make([]float64, len(candidates))
	for i := range candidates {
		utils[i] = candidates[i].Utilization
		avails[i] = candidates[i].Availability
		skills[i] = candidates[i].SkillMatch
	}
	return median(utils), median(avails), median(skills)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
