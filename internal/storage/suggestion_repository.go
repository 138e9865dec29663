package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/pkg/types"
)

// SuggestionRepository implements suggestion data access using SQL database
type SuggestionRepository struct {
	db *sql.DB
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db *sql.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `id, task_id, board_id, current_assignee, suggested_assignee,
	confidence_score, skill_match_score, time_savings_hours, time_savings_percentage,
	baseline_estimate_hours, predicted_hours, workload_impact, reasoning,
	status, created_at, expires_at, reviewed_at, reviewed_by`

// Create stores a new suggestion.
func (sr *SuggestionRepository) Create(ctx context.Context, s *types.Suggestion) error {
	query := `
		INSERT INTO suggestions (` + suggestionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := sr.db.ExecContext(ctx, query,
		s.ID, s.TaskID, s.BoardID, s.CurrentAssignee, s.SuggestedAssignee,
		s.ConfidenceScore, s.SkillMatchScore, s.TimeSavingsHours, s.TimeSavingsPercentage,
		s.BaselineEstimateHours, s.PredictedHours, string(s.WorkloadImpact), s.Reasoning,
		string(s.Status), s.CreatedAt, s.ExpiresAt, s.ReviewedAt, s.ReviewedBy,
	)
	if err != nil {
		return fmt.Errorf("inserting suggestion: %w", err)
	}
	return nil
}

// GetByID retrieves a suggestion by its ID.
func (sr *SuggestionRepository) GetByID(ctx context.Context, id string) (*types.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`

	rows, err := sr.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying suggestion: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, leveling.ErrNotFound
	}
	return sr.scanSuggestion(rows)
}

// Update persists status and review fields of an existing suggestion.
func (sr *SuggestionRepository) Update(ctx context.Context, s *types.Suggestion) error {
	query := `
		UPDATE suggestions SET status = $1, reviewed_at = $2, reviewed_by = $3
		WHERE id = $4`

	result, err := sr.db.ExecContext(ctx, query, string(s.Status), s.ReviewedAt, s.ReviewedBy, s.ID)
	if err != nil {
		return fmt.Errorf("updating suggestion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leveling.ErrNotFound
	}
	return nil
}

// ListPendingByTask returns pending suggestions for a task, newest first.
func (sr *SuggestionRepository) ListPendingByTask(ctx context.Context, taskID string) ([]types.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions
		WHERE task_id = $1 AND status = $2 ORDER BY created_at DESC, id`
	return sr.list(ctx, query, taskID, string(types.SuggestionStatusPending))
}

// ListPendingByBoard returns a board's pending suggestions ordered by
// confidence, highest first.
func (sr *SuggestionRepository) ListPendingByBoard(ctx context.Context, boardID string) ([]types.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions
		WHERE board_id = $1 AND status = $2 ORDER BY confidence_score DESC, id`
	return sr.list(ctx, query, boardID, string(types.SuggestionStatusPending))
}

// ListPendingBySuggestedAssignee returns pending suggestions proposing work
// for a person.
func (sr *SuggestionRepository) ListPendingBySuggestedAssignee(ctx context.Context, personID string) ([]types.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions
		WHERE suggested_assignee = $1 AND status = $2 ORDER BY created_at, id`
	return sr.list(ctx, query, personID, string(types.SuggestionStatusPending))
}

// ListPendingByCurrentAssignee returns pending suggestions moving work away
// from a person.
func (sr *SuggestionRepository) ListPendingByCurrentAssignee(ctx context.Context, personID string) ([]types.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions
		WHERE current_assignee = $1 AND status = $2 ORDER BY created_at, id`
	return sr.list(ctx, query, personID, string(types.SuggestionStatusPending))
}

// ExpirePendingByTask flips a task's pending suggestions to expired.
func (sr *SuggestionRepository) ExpirePendingByTask(ctx context.Context, taskID string, now time.Time) (int, error) {
	query := `UPDATE suggestions SET status = $1 WHERE task_id = $2 AND status = $3`
	return sr.expire(ctx, query, string(types.SuggestionStatusExpired), taskID, string(types.SuggestionStatusPending))
}

// ExpirePendingByBoard flips a board's pending suggestions to expired.
func (sr *SuggestionRepository) ExpirePendingByBoard(ctx context.Context, boardID string, now time.Time) (int, error) {
	query := `UPDATE suggestions SET status = $1 WHERE board_id = $2 AND status = $3`
	return sr.expire(ctx, query, string(types.SuggestionStatusExpired), boardID, string(types.SuggestionStatusPending))
}

// ExpireDue flips pending suggestions whose expiry has passed.
func (sr *SuggestionRepository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	query := `UPDATE suggestions SET status = $1 WHERE status = $2 AND expires_at <= $3`
	return sr.expire(ctx, query, string(types.SuggestionStatusExpired), string(types.SuggestionStatusPending), now)
}

func (sr *SuggestionRepository) expire(ctx context.Context, query string, args ...interface{}) (int, error) {
	result, err := sr.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expiring suggestions: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (sr *SuggestionRepository) list(ctx context.Context, query string, args ...interface{}) ([]types.Suggestion, error) {
	rows, err := sr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []types.Suggestion
	for rows.Next() {
		s, err := sr.scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, *s)
	}
	return suggestions, rows.Err()
}

// scanSuggestion scans a single suggestion from database rows
func (sr *SuggestionRepository) scanSuggestion(rows *sql.Rows) (*types.Suggestion, error) {
	var s types.Suggestion
	var impact, status string
	var reviewedAt sql.NullTime

	err := rows.Scan(
		&s.ID, &s.TaskID, &s.BoardID, &s.CurrentAssignee, &s.SuggestedAssignee,
		&s.ConfidenceScore, &s.SkillMatchScore, &s.TimeSavingsHours, &s.TimeSavingsPercentage,
		&s.BaselineEstimateHours, &s.PredictedHours, &impact, &s.Reasoning,
		&status, &s.CreatedAt, &s.ExpiresAt, &reviewedAt, &s.ReviewedBy,
	)
	if err != nil {
		return nil, err
	}

	s.WorkloadImpact = types.WorkloadImpact(impact)
	s.Status = types.SuggestionStatus(status)
	if reviewedAt.Valid {
		s.ReviewedAt = &reviewedAt.Time
	}
	return &s, nil
}
