package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/pkg/types"
)

// TaskDirectory implements the task-tracking boundary against the shared SQL
// database. In deployments where the task module lives elsewhere this type is
// replaced by an API-backed implementation of the same interface.
type TaskDirectory struct {
	db *sql.DB
}

// NewTaskDirectory creates a new SQL-backed task directory
func NewTaskDirectory(db *sql.DB) *TaskDirectory {
	return &TaskDirectory{db: db}
}

const taskColumns = `id, board_id, title, description, status, assignee, complexity, due_date, created_at, completed_at`

// GetTask retrieves a task by its ID.
func (td *TaskDirectory) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	rows, err := td.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, leveling.ErrNotFound
	}
	return td.scanTask(rows)
}

// GetBoard retrieves a board with its member list.
func (td *TaskDirectory) GetBoard(ctx context.Context, boardID string) (*types.Board, error) {
	var board types.Board
	err := td.db.QueryRowContext(ctx,
		`SELECT id, org_id, name FROM boards WHERE id = $1`, boardID).
		Scan(&board.ID, &board.OrgID, &board.Name)
	if err == sql.ErrNoRows {
		return nil, leveling.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying board: %w", err)
	}

	rows, err := td.db.QueryContext(ctx,
		`SELECT person_id FROM board_members WHERE board_id = $1 ORDER BY person_id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("querying board members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var personID string
		if err := rows.Scan(&personID); err != nil {
			return nil, err
		}
		board.Members = append(board.Members, personID)
	}
	return &board, rows.Err()
}

// ListBoards returns all boards with their member lists.
func (td *TaskDirectory) ListBoards(ctx context.Context) ([]types.Board, error) {
	rows, err := td.db.QueryContext(ctx, `SELECT id FROM boards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	boards := make([]types.Board, 0, len(ids))
	for _, id := range ids {
		board, err := td.GetBoard(ctx, id)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *board)
	}
	return boards, nil
}

// OpenTasksForPerson returns a person's open tasks in creation order.
func (td *TaskDirectory) OpenTasksForPerson(ctx context.Context, personID string) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE assignee = $1 AND status IN ($2, $3) ORDER BY created_at, id`
	return td.listTasks(ctx, query, personID,
		string(types.TaskStatusTodo), string(types.TaskStatusInProgress))
}

// CompletedTasksForPerson returns tasks the person completed at or after
// since, oldest first.
func (td *TaskDirectory) CompletedTasksForPerson(ctx context.Context, personID string, since time.Time) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE assignee = $1 AND status = $2 AND completed_at >= $3
		ORDER BY completed_at, id`
	return td.listTasks(ctx, query, personID, string(types.TaskStatusDone), since)
}

// OpenTasksForBoard returns a board's open tasks in creation order.
func (td *TaskDirectory) OpenTasksForBoard(ctx context.Context, boardID string) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE board_id = $1 AND status IN ($2, $3) ORDER BY created_at, id`
	return td.listTasks(ctx, query, boardID,
		string(types.TaskStatusTodo), string(types.TaskStatusInProgress))
}

// ReassignTask updates a task's assignee. This is the only write the
// leveling engine performs against task data.
func (td *TaskDirectory) ReassignTask(ctx context.Context, taskID, newAssignee, actor string) error {
	result, err := td.db.ExecContext(ctx,
		`UPDATE tasks SET assignee = $1 WHERE id = $2`, newAssignee, taskID)
	if err != nil {
		return fmt.Errorf("reassigning task: %w", err)
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

func (td *TaskDirectory) listTasks(ctx context.Context, query string, args ...interface{}) ([]types.Task, error) {
	rows, err := td.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var result []types.Task
	for rows.Next() {
		task, err := td.scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}

// scanTask scans a single task from database rows
func (td *TaskDirectory) scanTask(rows *sql.Rows) (*types.Task, error) {
	var task types.Task
	var status string
	var dueDate, completedAt sql.NullTime

	err := rows.Scan(
		&task.ID, &task.BoardID, &task.Title, &task.Description, &status,
		&task.Assignee, &task.Complexity, &dueDate, &task.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = types.TaskStatus(status)
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
