package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/pkg/types"
)

// ProfileRepository implements profile data access using SQL database
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, person_id, org_id, total_completed, avg_completion_hours,
	velocity, on_time_rate, quality_score, skill_keywords,
	current_active_count, current_workload_hours, utilization_percentage,
	weekly_capacity_hours, last_refreshed_at, updated_at`

// GetByPerson retrieves a profile by person and org
func (pr *ProfileRepository) GetByPerson(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM performance_profiles WHERE person_id = $1 AND org_id = $2`

	rows, err := pr.db.QueryContext(ctx, query, personID, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, leveling.ErrNotFound
	}
	return pr.scanProfile(rows)
}

// Upsert inserts or fully replaces a profile row.
func (pr *ProfileRepository) Upsert(ctx context.Context, profile *types.PerformanceProfile) error {
	keywordsJSON, err := json.Marshal(profile.SkillKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal skill keywords: %w", err)
	}

	// Update-then-insert keeps the statement portable across SQLite and
	// PostgreSQL without dialect-specific upsert clauses.
	updateQuery := `
		UPDATE performance_profiles SET
			total_completed = $1, avg_completion_hours = $2, velocity = $3,
			on_time_rate = $4, quality_score = $5, skill_keywords = $6,
			current_active_count = $7, current_workload_hours = $8,
			utilization_percentage = $9, weekly_capacity_hours = $10,
			last_refreshed_at = $11, updated_at = $12
		WHERE person_id = $13 AND org_id = $14`

	result, err := pr.db.ExecContext(ctx, updateQuery,
		profile.TotalCompleted, profile.AvgCompletionHours, profile.Velocity,
		profile.OnTimeRate, profile.QualityScore, string(keywordsJSON),
		profile.CurrentActiveCount, profile.CurrentWorkloadHours,
		profile.UtilizationPercentage, profile.WeeklyCapacityHours,
		profile.LastRefreshedAt, profile.UpdatedAt,
		profile.PersonID, profile.OrgID,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	insertQuery := `
		INSERT INTO performance_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = pr.db.ExecContext(ctx, insertQuery,
		profile.ID, profile.PersonID, profile.OrgID,
		profile.TotalCompleted, profile.AvgCompletionHours, profile.Velocity,
		profile.OnTimeRate, profile.QualityScore, string(keywordsJSON),
		profile.CurrentActiveCount, profile.CurrentWorkloadHours,
		profile.UtilizationPercentage, profile.WeeklyCapacityHours,
		profile.LastRefreshedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// ListByPersons retrieves profiles for a set of people within an org.
// People without a stored profile are absent from the result.
func (pr *ProfileRepository) ListByPersons(ctx context.Context, orgID string, personIDs []string) ([]types.PerformanceProfile, error) {
	if len(personIDs) == 0 {
		return []types.PerformanceProfile{}, nil
	}

	placeholders := make([]string, len(personIDs))
	args := make([]interface{}, 0, len(personIDs)+1)
	args = append(args, orgID)
	for i, id := range personIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `SELECT ` + profileColumns + ` FROM performance_profiles
		WHERE org_id = $1 AND person_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY person_id`

	rows, err := pr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	var profiles []types.PerformanceProfile
	for rows.Next() {
		profile, err := pr.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

// scanProfile scans a single profile from database rows
func (pr *ProfileRepository) scanProfile(rows *sql.Rows) (*types.PerformanceProfile, error) {
	var profile types.PerformanceProfile
	var keywordsJSON []byte
	var onTimeRate sql.NullFloat64

	err := rows.Scan(
		&profile.ID, &profile.PersonID, &profile.OrgID,
		&profile.TotalCompleted, &profile.AvgCompletionHours,
		&profile.Velocity, &onTimeRate, &profile.QualityScore, &keywordsJSON,
		&profile.CurrentActiveCount, &profile.CurrentWorkloadHours,
		&profile.UtilizationPercentage, &profile.WeeklyCapacityHours,
		&profile.LastRefreshedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if onTimeRate.Valid {
		profile.OnTimeRate = &onTimeRate.Float64
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &profile.SkillKeywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skill keywords: %w", err)
		}
	}
	return &profile, nil
}
