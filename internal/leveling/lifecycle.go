package leveling

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"taskboard-leveler/pkg/types"
)

// LifecycleConfig tunes suggestion review and invalidation behavior.
type LifecycleConfig struct {
	// OverloadInvalidationThreshold expires suggestions targeting a person
	// whose utilization rises above this value.
	OverloadInvalidationThreshold float64 `json:"overload_invalidation_threshold"`

	// RelievedInvalidationThreshold expires suggestions moving work away
	// from a person whose utilization drops below this value.
	RelievedInvalidationThreshold float64 `json:"relieved_invalidation_threshold"`

	// BackfillBatchSize bounds how many unresolved history entries one
	// backfill sweep examines.
	BackfillBatchSize int `json:"backfill_batch_size"`
}

// DefaultLifecycleConfig returns default lifecycle configuration
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		OverloadInvalidationThreshold: 85,
		RelievedInvalidationThreshold: 60,
		BackfillBatchSize:             200,
	}
}

// validTransitions is the suggestion state machine. Terminal states have no
// outgoing edges; a suggestion is reviewed at most once.
var validTransitions = map[types.SuggestionStatus][]types.SuggestionStatus{
	types.SuggestionStatusPending: {
		types.SuggestionStatusAccepted,
		types.SuggestionStatusRejected,
		types.SuggestionStatusExpired,
	},
	types.SuggestionStatusAccepted: {},
	types.SuggestionStatusRejected: {},
	types.SuggestionStatusExpired:  {},
}

func canTransition(from, to types.SuggestionStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Accept applies a pending suggestion: the task is reassigned, an audit
// record is appended, both affected profiles get a workload refresh, and an
// assignment-changed event is published.
func (s *Service) Accept(ctx context.Context, suggestionID, actor string) (*types.Suggestion, error) {
	sugg, err := s.reviewable(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.GetTask(ctx, sugg.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", sugg.TaskID, err)
	}

	// The suggestion was computed against a specific assignment. If the task
	// moved underneath it, it no longer describes reality.
	if task.Assignee != sugg.CurrentAssignee {
		s.expire(ctx, sugg)
		return nil, ErrSuggestionExpired
	}

	if err := s.tasks.ReassignTask(ctx, sugg.TaskID, sugg.SuggestedAssignee, actor); err != nil {
		return nil, fmt.Errorf("reassigning task %s: %w", sugg.TaskID, err)
	}

	now := s.now()
	entry := &types.AssignmentHistory{
		ID:               uuid.New().String(),
		TaskID:           sugg.TaskID,
		PreviousAssignee: sugg.CurrentAssignee,
		NewAssignee:      sugg.SuggestedAssignee,
		ChangedBy:        actor,
		Reason:           "suggestion_accepted",
		SuggestionID:     sugg.ID,
		PredictedHours:   sugg.PredictedHours,
		ChangedAt:        now,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		// The reassignment already happened; losing the audit entry is bad
		// but not worth leaving the suggestion stuck in pending.
		s.logger.Error("history append failed", "suggestion_id", sugg.ID, "error", err.Error())
	}

	s.refreshWorkloads(ctx, sugg.BoardID, sugg.CurrentAssignee, sugg.SuggestedAssignee)

	reviewed := now
	sugg.Status = types.SuggestionStatusAccepted
	sugg.ReviewedAt = &reviewed
	sugg.ReviewedBy = actor
	if err := s.suggestions.Update(ctx, sugg); err != nil {
		return nil, fmt.Errorf("updating suggestion %s: %w", sugg.ID, err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, types.AssignmentChanged{
			TaskID:           sugg.TaskID,
			BoardID:          sugg.BoardID,
			PreviousAssignee: sugg.CurrentAssignee,
			NewAssignee:      sugg.SuggestedAssignee,
			Actor:            actor,
			Source:           "leveling_accept",
			OccurredAt:       now,
		})
	}

	s.logger.Info("suggestion accepted",
		"suggestion_id", sugg.ID,
		"task_id", sugg.TaskID,
		"new_assignee", sugg.SuggestedAssignee,
		"actor", actor)
	return sugg, nil
}

// Reject marks a pending suggestion as declined. Rejection has no side
// effects beyond recording who declined and when.
func (s *Service) Reject(ctx context.Context, suggestionID, actor string) (*types.Suggestion, error) {
	sugg, err := s.reviewable(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	reviewed := s.now()
	sugg.Status = types.SuggestionStatusRejected
	sugg.ReviewedAt = &reviewed
	sugg.ReviewedBy = actor
	if err := s.suggestions.Update(ctx, sugg); err != nil {
		return nil, fmt.Errorf("updating suggestion %s: %w", sugg.ID, err)
	}

	s.logger.Info("suggestion rejected", "suggestion_id", sugg.ID, "actor", actor)
	return sugg, nil
}

// reviewable loads a suggestion and verifies it can still be acted on,
// lazily expiring it when its deadline has passed.
func (s *Service) reviewable(ctx context.Context, suggestionID string) (*types.Suggestion, error) {
	sugg, err := s.suggestions.GetByID(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if sugg.Status.IsTerminal() {
		if sugg.Status == types.SuggestionStatusExpired {
			return nil, ErrSuggestionExpired
		}
		return nil, ErrSuggestionReviewed
	}
	if !s.now().Before(sugg.ExpiresAt) {
		s.expire(ctx, sugg)
		return nil, ErrSuggestionExpired
	}
	return sugg, nil
}

func (s *Service) expire(ctx context.Context, sugg *types.Suggestion) {
	if !canTransition(sugg.Status, types.SuggestionStatusExpired) {
		return
	}
	sugg.Status = types.SuggestionStatusExpired
	if err := s.suggestions.Update(ctx, sugg); err != nil {
		s.logger.Error("expiring suggestion failed", "suggestion_id", sugg.ID, "error", err.Error())
	}
}

// OnAssignmentChanged invalidates suggestions made stale by an assignment
// change, wherever that change originated. All of the task's own pending
// suggestions expire, and suggestions involving the two affected people are
// re-checked against their refreshed workloads.
func (s *Service) OnAssignmentChanged(ctx context.Context, ev types.AssignmentChanged) {
	if n, err := s.suggestions.ExpirePendingByTask(ctx, ev.TaskID, s.now()); err != nil {
		s.logger.Error("expiring task suggestions failed", "task_id", ev.TaskID, "error", err.Error())
	} else if n > 0 {
		s.logger.Debug("expired stale suggestions", "task_id", ev.TaskID, "count", n)
	}

	orgID := s.orgForBoard(ctx, ev.BoardID)

	if ev.NewAssignee != "" {
		profile, err := s.builder.RefreshWorkload(ctx, ev.NewAssignee, orgID)
		if err != nil {
			s.logger.Error("workload refresh failed", "person_id", ev.NewAssignee, "error", err.Error())
		} else if profile.UtilizationPercentage > s.config.Lifecycle.OverloadInvalidationThreshold {
			s.expireAll(ctx, func() ([]types.Suggestion, error) {
				return s.suggestions.ListPendingBySuggestedAssignee(ctx, ev.NewAssignee)
			}, "recipient overloaded", ev.NewAssignee)
		}
	}

	if ev.PreviousAssignee != "" && ev.PreviousAssignee != ev.NewAssignee {
		profile, err := s.builder.RefreshWorkload(ctx, ev.PreviousAssignee, orgID)
		if err != nil {
			s.logger.Error("workload refresh failed", "person_id", ev.PreviousAssignee, "error", err.Error())
		} else if profile.UtilizationPercentage < s.config.Lifecycle.RelievedInvalidationThreshold {
			s.expireAll(ctx, func() ([]types.Suggestion, error) {
				return s.suggestions.ListPendingByCurrentAssignee(ctx, ev.PreviousAssignee)
			}, "source no longer overloaded", ev.PreviousAssignee)
		}
	}
}

func (s *Service) expireAll(ctx context.Context, list func() ([]types.Suggestion, error), reason, personID string) {
	pending, err := list()
	if err != nil {
		s.logger.Error("listing suggestions for invalidation failed", "person_id", personID, "error", err.Error())
		return
	}
	for i := range pending {
		s.expire(ctx, &pending[i])
	}
	if len(pending) > 0 {
		s.logger.Debug("invalidated suggestions", "person_id", personID, "count", len(pending), "reason", reason)
	}
}

// ExpireDueSuggestions flips every pending suggestion whose deadline has
// passed. Run periodically so reads never have to see actionable-looking
// stale rows.
func (s *Service) ExpireDueSuggestions(ctx context.Context) (int, error) {
	n, err := s.suggestions.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired due suggestions", "count", n)
	}
	return n, nil
}

// BackfillHistoryActuals resolves audit entries whose tasks have since
// completed, recording actual hours and prediction accuracy. Accuracy feeds
// later analysis of how well the scorer's estimates hold up.
func (s *Service) BackfillHistoryActuals(ctx context.Context) (int, error) {
	pending, err := s.history.ListPendingBackfill(ctx, s.config.Lifecycle.BackfillBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range pending {
		entry := &pending[i]
		task, err := s.tasks.GetTask(ctx, entry.TaskID)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			s.logger.Error("backfill task lookup failed", "task_id", entry.TaskID, "error", err.Error())
			continue
		}
		if task.Status != types.TaskStatusDone || task.CompletedAt == nil {
			continue
		}

		actual := task.CompletedAt.Sub(entry.ChangedAt).Hours()
		if actual < 0 {
			actual = 0
		}
		accuracy := predictionAccuracy(entry.PredictedHours, actual)
		if err := s.history.BackfillActuals(ctx, entry.ID, actual, *task.CompletedAt, accuracy); err != nil {
			s.logger.Error("backfill failed", "history_id", entry.ID, "error", err.Error())
			continue
		}
		resolved++
	}

	if resolved > 0 {
		s.logger.Info("backfilled assignment history", "count", resolved)
	}
	return resolved, nil
}

// predictionAccuracy compares a predicted duration with the observed one on
// a 0-100 scale, where 100 is a perfect prediction. Entries with no
// prediction get no accuracy.
func predictionAccuracy(predicted, actual float64) *float64 {
	if predicted <= 0 {
		return nil
	}
	accuracy := 100 - math.Abs(predicted-actual)/predicted*100
	if accuracy < 0 {
		accuracy = 0
	}
	return &accuracy
}

func (s *Service) orgForBoard(ctx context.Context, boardID string) string {
	board, err := s.tasks.GetBoard(ctx, boardID)
	if err != nil {
		s.logger.Warn("board lookup failed", "board_id", boardID, "error", err.Error())
		return ""
	}
	return board.OrgID
}

// refreshWorkloads updates current-workload figures for the given people.
func (s *Service) refreshWorkloads(ctx context.Context, boardID string, personIDs ...string) {
	orgID := s.orgForBoard(ctx, boardID)
	seen := make(map[string]bool, len(personIDs))
	for _, personID := range personIDs {
		if personID == "" || seen[personID] {
			continue
		}
		seen[personID] = true
		if _, err := s.builder.RefreshWorkload(ctx, personID, orgID); err != nil {
			s.logger.Error("workload refresh failed", "person_id", personID, "error", err.Error())
		}
	}
}
