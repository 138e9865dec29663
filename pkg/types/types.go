// Package types provides shared data structures for the resource leveling engine.
package types

import (
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle status of a tracked work item.
// The task entities themselves are owned by the task-tracking module; the
// leveling engine only reads them.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsOpen reports whether a task still counts toward someone's workload.
func (s TaskStatus) IsOpen() bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress
}

// Task is the read-side view of a work item as exposed by the task-tracking
// collaborator. Complexity is a 1-10 score where 5 is an average item; zero
// means the score was never set.
type Task struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"board_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Assignee    string     `json:"assignee,omitempty"` // empty = unassigned
	Complexity  float64    `json:"complexity,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CompletionHours returns the wall-clock hours between creation and
// completion, or 0 if the task is not completed.
func (t *Task) CompletionHours() float64 {
	if t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(t.CreatedAt).Hours()
}

// Board is the read-side view of a kanban board and its team.
type Board struct {
	ID      string   `json:"id"`
	OrgID   string   `json:"org_id"`
	Name    string   `json:"name"`
	Members []string `json:"members"` // person IDs
}

// PerformanceProfile captures one person's historical performance and current
// workload snapshot within an organization. All workload fields are derived
// from open work items at refresh time and are never hand-edited.
type PerformanceProfile struct {
	ID       string `json:"id"`
	PersonID string `json:"person_id"`
	OrgID    string `json:"org_id"`

	// Historical performance over the trailing window.
	TotalCompleted     int      `json:"total_completed"`
	AvgCompletionHours float64  `json:"avg_completion_hours"`
	Velocity           float64  `json:"velocity"`               // completed items per week
	OnTimeRate         *float64 `json:"on_time_rate,omitempty"` // 0-100; nil when no completions carried a due date
	QualityScore       float64  `json:"quality_score"`          // 1-5

	// Skill keywords extracted from completed work, keyword -> frequency.
	SkillKeywords map[string]int `json:"skill_keywords,omitempty"`

	// Current workload snapshot.
	CurrentActiveCount    int     `json:"current_active_count"`
	CurrentWorkloadHours  float64 `json:"current_workload_hours"`
	UtilizationPercentage float64 `json:"utilization_percentage"` // uncapped internally
	WeeklyCapacityHours   float64 `json:"weekly_capacity_hours"`

	LastRefreshedAt time.Time `json:"last_refreshed_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayUtilization returns utilization capped at 100 for presentation.
// The internal value may exceed 100 for overloaded people.
func (p *PerformanceProfile) DisplayUtilization() float64 {
	if p.UtilizationPercentage > 100 {
		return 100
	}
	if p.UtilizationPercentage < 0 {
		return 0
	}
	return p.UtilizationPercentage
}

// HasHistory reports whether the profile carries any completion history.
func (p *PerformanceProfile) HasHistory() bool {
	return p.TotalCompleted > 0
}

// SuggestionStatus represents the state of a reassignment suggestion.
type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusAccepted SuggestionStatus = "accepted"
	SuggestionStatusRejected SuggestionStatus = "rejected"
	SuggestionStatusExpired  SuggestionStatus = "expired"
)

// IsTerminal reports whether the status permits no further transitions.
func (s SuggestionStatus) IsTerminal() bool {
	return s == SuggestionStatusAccepted || s == SuggestionStatusRejected || s == SuggestionStatusExpired
}

// Validate returns an error for unknown status values.
func (s SuggestionStatus) Validate() error {
	switch s {
	case SuggestionStatusPending, SuggestionStatusAccepted, SuggestionStatusRejected, SuggestionStatusExpired:
		return nil
	default:
		return fmt.Errorf("invalid suggestion status: %q", string(s))
	}
}

// WorkloadImpact categorizes why a suggestion helps.
type WorkloadImpact string

const (
	ImpactReducesBottleneck WorkloadImpact = "reduces_bottleneck"
	ImpactBalancesLoad      WorkloadImpact = "balances_load"
	ImpactBetterSkills      WorkloadImpact = "better_skills"
	ImpactImprovesTimeline  WorkloadImpact = "improves_timeline"
)

// Suggestion is a proposed task reassignment with confidence and projected
// impact. Suggestions are created once and mutated only by
// accept/reject/expire; a fresh suggestion replaces a stale one.
type Suggestion struct {
	ID                string `json:"id"`
	TaskID            string `json:"task_id"`
	BoardID           string `json:"board_id"`
	CurrentAssignee   string `json:"current_assignee,omitempty"` // empty = task was unassigned
	SuggestedAssignee string `json:"suggested_assignee"`

	ConfidenceScore       float64        `json:"confidence_score"` // 45-92
	SkillMatchScore       float64        `json:"skill_match_score"`
	TimeSavingsHours      float64        `json:"time_savings_hours"`
	TimeSavingsPercentage float64        `json:"time_savings_percentage"`
	BaselineEstimateHours float64        `json:"baseline_estimate_hours"`
	PredictedHours        float64        `json:"predicted_hours"`
	WorkloadImpact        WorkloadImpact `json:"workload_impact"`
	Reasoning             string         `json:"reasoning"`

	Status     SuggestionStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy string           `json:"reviewed_by,omitempty"`
}

// Actionable reports whether the suggestion can still be accepted at the
// given instant.
func (s *Suggestion) Actionable(now time.Time) bool {
	return s.Status == SuggestionStatusPending && now.Before(s.ExpiresAt)
}

// AssignmentHistory is an append-only audit record of one assignment change.
// The actual-outcome fields are backfilled exactly once after the task
// completes and are never mutated again.
type AssignmentHistory struct {
	ID               string  `json:"id"`
	TaskID           string  `json:"task_id"`
	PreviousAssignee string  `json:"previous_assignee,omitempty"`
	NewAssignee      string  `json:"new_assignee"`
	ChangedBy        string  `json:"changed_by"`
	Reason           string  `json:"reason,omitempty"`
	SuggestionID     string  `json:"suggestion_id,omitempty"`
	PredictedHours   float64 `json:"predicted_hours,omitempty"`

	ChangedAt             time.Time  `json:"changed_at"`
	ActualCompletionHours *float64   `json:"actual_completion_hours,omitempty"`
	ActualCompletedAt     *time.Time `json:"actual_completed_at,omitempty"`
	PredictionAccuracy    *float64   `json:"prediction_accuracy,omitempty"` // 0-100
}

// Backfilled reports whether the actual-outcome fields have been recorded.
func (h *AssignmentHistory) Backfilled() bool {
	return h.ActualCompletedAt != nil
}

// CandidateScore is the per-candidate output of the scoring pass.
type CandidateScore struct {
	PersonID       string  `json:"person_id"`
	OverallScore   float64 `json:"overall_score"`
	SkillMatch     float64 `json:"skill_match"`
	Availability   float64 `json:"availability"`
	VelocityScore  float64 `json:"velocity_score"`
	Reliability    float64 `json:"reliability"`
	QualityScore   float64 `json:"quality_score"`
	PredictedHours float64 `json:"predicted_hours"`
	Utilization    float64 `json:"utilization"` // uncapped, includes in-batch adjustments
	ActiveCount    int     `json:"active_count"`
	HasHistory     bool    `json:"has_history"`
	Reasoning      string  `json:"reasoning"`
}

// TaskAnalysis is the full output of analyzing one task: every candidate
// ranked, the top pick, and a human-readable explanation built from the same
// numbers.
type TaskAnalysis struct {
	TaskID            string           `json:"task_id"`
	CurrentAssignee   string           `json:"current_assignee,omitempty"`
	Candidates        []CandidateScore `json:"candidates"` // sorted by overall score, descending
	TopCandidate      *CandidateScore  `json:"top_candidate,omitempty"`
	RecommendChange   bool             `json:"recommend_change"`
	Reasoning         string           `json:"reasoning"`
	BaselineEstimate  float64          `json:"baseline_estimate_hours"`
	ProjectedEstimate float64          `json:"projected_estimate_hours"`
}

// MemberReport is one row of the team utilization report.
type MemberReport struct {
	PersonID      string   `json:"person_id"`
	Utilization   float64  `json:"utilization"` // display-capped at 100
	WorkloadHours float64  `json:"workload_hours"`
	ActiveCount   int      `json:"active_count"`
	Velocity      float64  `json:"velocity"`
	OnTimeRate    *float64 `json:"on_time_rate,omitempty"`
	Status        string   `json:"status"` // overloaded | busy | balanced | available
}

// TeamReport summarizes a team's current capacity position.
type TeamReport struct {
	BoardID            string         `json:"board_id"`
	GeneratedAt        time.Time      `json:"generated_at"`
	Members            []MemberReport `json:"members"`
	AverageUtilization float64        `json:"average_utilization"`
	CapacityWarning    string         `json:"capacity_warning,omitempty"`
}

// ProposedMove is one entry of a workload balancing plan.
type ProposedMove struct {
	TaskID         string  `json:"task_id"`
	TaskTitle      string  `json:"task_title"`
	FromPerson     string  `json:"from_person"`
	ToPerson       string  `json:"to_person"`
	MoveScore      float64 `json:"move_score"`
	SkillMatch     float64 `json:"skill_match"`
	Availability   float64 `json:"availability"`
	EstimatedHours float64 `json:"estimated_hours"`
	Reasoning      string  `json:"reasoning"`
}

// BalancePlan is the output of a workload balancing pass. The plan is a
// proposal only; nothing is persisted until a caller accepts it.
type BalancePlan struct {
	BoardID           string         `json:"board_id"`
	TargetUtilization float64        `json:"target_utilization"`
	Balanced          bool           `json:"balanced"`
	Message           string         `json:"message"`
	Moves             []ProposedMove `json:"moves"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// AssignmentChanged is the event carried on the bus whenever a task's
// assignee changes, whether through this engine's accept path or any other
// path in the surrounding application.
type AssignmentChanged struct {
	TaskID           string    `json:"task_id"`
	BoardID          string    `json:"board_id"`
	PreviousAssignee string    `json:"previous_assignee,omitempty"`
	NewAssignee      string    `json:"new_assignee"`
	Actor            string    `json:"actor"`
	Source           string    `json:"source"` // e.g. "leveling_accept", "task_module"
	OccurredAt       time.Time `json:"occurred_at"`
}
