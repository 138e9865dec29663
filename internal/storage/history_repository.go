package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskboard-leveler/pkg/types"
)

// HistoryRepository implements assignment audit log access using SQL database
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, task_id, previous_assignee, new_assignee, changed_by,
	reason, suggestion_id, predicted_hours, changed_at,
	actual_completion_hours, actual_completed_at, prediction_accuracy`

// Append stores a new audit entry. Entries are never updated except through
// BackfillActuals.
func (hr *HistoryRepository) Append(ctx context.Context, h *types.AssignmentHistory) error {
	query := `
		INSERT INTO assignment_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := hr.db.ExecContext(ctx, query,
		h.ID, h.TaskID, h.PreviousAssignee, h.NewAssignee, h.ChangedBy,
		h.Reason, h.SuggestionID, h.PredictedHours, h.ChangedAt,
		h.ActualCompletionHours, h.ActualCompletedAt, h.PredictionAccuracy,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// BackfillActuals records the actual outcome on an entry. The guard on
// actual_completed_at makes repeated calls no-ops, so an entry's outcome
// fields are written at most once.
func (hr *HistoryRepository) BackfillActuals(ctx context.Context, id string, actualHours float64, completedAt time.Time, accuracy *float64) error {
	query := `
		UPDATE assignment_history
		SET actual_completion_hours = $1, actual_completed_at = $2, prediction_accuracy = $3
		WHERE id = $4 AND actual_completed_at IS NULL`

	_, err := hr.db.ExecContext(ctx, query, actualHours, completedAt, accuracy, id)
	if err != nil {
		return fmt.Errorf("backfilling history entry: %w", err)
	}
	return nil
}

// ListByTask returns a task's audit entries, oldest first.
func (hr *HistoryRepository) ListByTask(ctx context.Context, taskID string) ([]types.AssignmentHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM assignment_history
		WHERE task_id = $1 ORDER BY changed_at, id`
	return hr.list(ctx, query, taskID)
}

// ListByPerson returns entries where the person received the task, oldest
// first.
func (hr *HistoryRepository) ListByPerson(ctx context.Context, personID string) ([]types.AssignmentHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM assignment_history
		WHERE new_assignee = $1 ORDER BY changed_at, id`
	return hr.list(ctx, query, personID)
}

// ListPendingBackfill returns entries without a recorded outcome, oldest
// first.
func (hr *HistoryRepository) ListPendingBackfill(ctx context.Context, limit int) ([]types.AssignmentHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM assignment_history
		WHERE actual_completed_at IS NULL ORDER BY changed_at, id LIMIT $1`
	return hr.list(ctx, query, limit)
}

func (hr *HistoryRepository) list(ctx context.Context, query string, args ...interface{}) ([]types.AssignmentHistory, error) {
	rows, err := hr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []types.AssignmentHistory
	for rows.Next() {
		entry, err := hr.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// scanEntry scans a single history entry from database rows
func (hr *HistoryRepository) scanEntry(rows *sql.Rows) (*types.AssignmentHistory, error) {
	var entry types.AssignmentHistory
	var actualHours, accuracy sql.NullFloat64
	var completedAt sql.NullTime

	err := rows.Scan(
		&entry.ID, &entry.TaskID, &entry.PreviousAssignee, &entry.NewAssignee, &entry.ChangedBy,
		&entry.Reason, &entry.SuggestionID, &entry.PredictedHours, &entry.ChangedAt,
		&actualHours, &completedAt, &accuracy,
	)
	if err != nil {
		return nil, err
	}

	if actualHours.Valid {
		entry.ActualCompletionHours = &actualHours.Float64
	}
	if completedAt.Valid {
		entry.ActualCompletedAt = &completedAt.Time
	}
	if accuracy.Valid {
		entry.PredictionAccuracy = &accuracy.Float64
	}
	return &entry, nil
}
