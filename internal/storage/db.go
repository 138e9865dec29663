// Package storage provides SQL-backed persistence for profiles, suggestions,
// and assignment history, plus the SQL-backed task directory. SQLite is the
// default driver; PostgreSQL is supported through the same ordinal
// placeholder syntax.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Database drivers registered for database/sql.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"taskboard-leveler/internal/retry"
)

// Open opens the database and ensures the schema exists. The initial ping is
// retried with backoff so a database still starting up does not fail the
// whole process.
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	err = retry.Do(context.Background(), retry.DefaultConfig(), func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// initSchema initializes the database schema
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS performance_profiles (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		total_completed INTEGER NOT NULL DEFAULT 0,
		avg_completion_hours REAL NOT NULL DEFAULT 0,
		velocity REAL NOT NULL DEFAULT 0,
		on_time_rate REAL,
		quality_score REAL NOT NULL DEFAULT 0,
		skill_keywords TEXT NOT NULL DEFAULT '{}',
		current_active_count INTEGER NOT NULL DEFAULT 0,
		current_workload_hours REAL NOT NULL DEFAULT 0,
		utilization_percentage REAL NOT NULL DEFAULT 0,
		weekly_capacity_hours REAL NOT NULL DEFAULT 0,
		last_refreshed_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (person_id, org_id)
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		board_id TEXT NOT NULL,
		current_assignee TEXT NOT NULL DEFAULT '',
		suggested_assignee TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		skill_match_score REAL NOT NULL,
		time_savings_hours REAL NOT NULL,
		time_savings_percentage REAL NOT NULL,
		baseline_estimate_hours REAL NOT NULL,
		predicted_hours REAL NOT NULL,
		workload_impact TEXT NOT NULL,
		reasoning TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		reviewed_at TIMESTAMP,
		reviewed_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_suggestions_task_status ON suggestions (task_id, status);
	CREATE INDEX IF NOT EXISTS idx_suggestions_board_status ON suggestions (board_id, status);
	CREATE INDEX IF NOT EXISTS idx_suggestions_status_expires ON suggestions (status, expires_at);

	CREATE TABLE IF NOT EXISTS assignment_history (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		previous_assignee TEXT NOT NULL DEFAULT '',
		new_assignee TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		suggestion_id TEXT NOT NULL DEFAULT '',
		predicted_hours REAL NOT NULL DEFAULT 0,
		changed_at TIMESTAMP NOT NULL,
		actual_completion_hours REAL,
		actual_completed_at TIMESTAMP,
		prediction_accuracy REAL
	);

	CREATE INDEX IF NOT EXISTS idx_history_task ON assignment_history (task_id);
	CREATE INDEX IF NOT EXISTS idx_history_new_assignee ON assignment_history (new_assignee);

	CREATE TABLE IF NOT EXISTS boards (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS board_members (
		board_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		PRIMARY KEY (board_id, person_id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		board_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		assignee TEXT NOT NULL DEFAULT '',
		complexity REAL NOT NULL DEFAULT 0,
		due_date TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_board_status ON tasks (board_id, status);
	CREATE INDEX IF NOT EXISTS idx_tasks_assignee_status ON tasks (assignee, status);
	`

	_, err := db.Exec(schema)
	return err
}
