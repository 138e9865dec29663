// Package leveling implements the resource leveling engine: performance
// profiling, candidate scoring, reassignment suggestions, and workload
// balancing for kanban teams.
package leveling

import (
	"context"
	"errors"
	"time"

	"taskboard-leveler/pkg/types"
)

// Sentinel errors surfaced by stores and the suggestion lifecycle.
var (
	// ErrNotFound indicates a profile, suggestion, task, or board lookup
	// found nothing.
	ErrNotFound = errors.New("not found")

	// ErrSuggestionExpired indicates an accept attempt past the suggestion's
	// expiry; the suggestion has been flipped to expired as a side effect.
	ErrSuggestionExpired = errors.New("suggestion expired")

	// ErrSuggestionReviewed indicates the suggestion already reached a
	// terminal status.
	ErrSuggestionReviewed = errors.New("suggestion already reviewed")
)

// ProfileStore defines data access for performance profiles.
type ProfileStore interface {
	// GetByPerson returns the profile for a person within an org, or
	// ErrNotFound.
	GetByPerson(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error)

	// Upsert inserts or fully replaces a profile. Refreshes recompute every
	// field from source data, so last write wins.
	Upsert(ctx context.Context, profile *types.PerformanceProfile) error

	// ListByPersons returns the stored profiles for the given people.
	// People without a stored profile are simply absent from the result.
	ListByPersons(ctx context.Context, orgID string, personIDs []string) ([]types.PerformanceProfile, error)
}

// SuggestionStore defines data access for reassignment suggestions.
type SuggestionStore interface {
	Create(ctx context.Context, s *types.Suggestion) error
	GetByID(ctx context.Context, id string) (*types.Suggestion, error)
	Update(ctx context.Context, s *types.Suggestion) error

	ListPendingByTask(ctx context.Context, taskID string) ([]types.Suggestion, error)
	ListPendingByBoard(ctx context.Context, boardID string) ([]types.Suggestion, error)
	ListPendingBySuggestedAssignee(ctx context.Context, personID string) ([]types.Suggestion, error)
	ListPendingByCurrentAssignee(ctx context.Context, personID string) ([]types.Suggestion, error)

	// ExpirePendingByTask flips all pending suggestions for a task to
	// expired and returns how many were affected. Idempotent.
	ExpirePendingByTask(ctx context.Context, taskID string, now time.Time) (int, error)

	// ExpirePendingByBoard flips all pending suggestions for a board's tasks
	// to expired. Run before each fresh batch so suggestions are always
	// regenerated from current facts.
	ExpirePendingByBoard(ctx context.Context, boardID string, now time.Time) (int, error)

	// ExpireDue flips pending suggestions whose expiry has passed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// HistoryStore defines data access for the append-only assignment audit log.
type HistoryStore interface {
	Append(ctx context.Context, h *types.AssignmentHistory) error

	// BackfillActuals records the actual outcome on a history entry exactly
	// once; later calls for the same entry are no-ops. Accuracy is nil when
	// the entry carried no prediction to compare against.
	BackfillActuals(ctx context.Context, id string, actualHours float64, completedAt time.Time, accuracy *float64) error

	ListByTask(ctx context.Context, taskID string) ([]types.AssignmentHistory, error)
	ListByPerson(ctx context.Context, personID string) ([]types.AssignmentHistory, error)

	// ListPendingBackfill returns entries whose actual-outcome fields have
	// not been recorded yet, oldest first.
	ListPendingBackfill(ctx context.Context, limit int) ([]types.AssignmentHistory, error)
}

// TaskDirectory is the boundary to the task-tracking collaborator. All
// methods except ReassignTask are read-only; ReassignTask is the single write
// this engine performs, and only inside an explicit accept.
type TaskDirectory interface {
	GetTask(ctx context.Context, taskID string) (*types.Task, error)
	GetBoard(ctx context.Context, boardID string) (*types.Board, error)
	ListBoards(ctx context.Context) ([]types.Board, error)

	// OpenTasksForPerson returns the person's open, non-done items in
	// creation order.
	OpenTasksForPerson(ctx context.Context, personID string) ([]types.Task, error)

	// CompletedTasksForPerson returns items completed at or after since.
	CompletedTasksForPerson(ctx context.Context, personID string, since time.Time) ([]types.Task, error)

	// OpenTasksForBoard returns a board's open items in creation order.
	OpenTasksForBoard(ctx context.Context, boardID string) ([]types.Task, error)

	ReassignTask(ctx context.Context, taskID, newAssignee, actor string) error
}
