package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/pkg/types"
)

// Memory is an in-memory implementation of every store interface. It backs
// tests and small single-process deployments that do not want a database.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]*types.PerformanceProfile // person_id/org_id
	suggs    map[string]*types.Suggestion
	history  map[string]*types.AssignmentHistory
	boards   map[string]*types.Board
	tasks    map[string]*types.Task
	seq      int64 // creation order tiebreaker for maps
	order    map[string]int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]*types.PerformanceProfile),
		suggs:    make(map[string]*types.Suggestion),
		history:  make(map[string]*types.AssignmentHistory),
		boards:   make(map[string]*types.Board),
		tasks:    make(map[string]*types.Task),
		order:    make(map[string]int64),
	}
}

func profileKey(personID, orgID string) string {
	return personID + "/" + orgID
}

// PutBoard seeds or replaces a board.
func (m *Memory) PutBoard(board *types.Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := *board
	m.boards[b.ID] = &b
}

// PutTask seeds or replaces a task.
func (m *Memory) PutTask(task *types.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *task
	if _, ok := m.tasks[t.ID]; !ok {
		m.seq++
		m.order["task/"+t.ID] = m.seq
	}
	m.tasks[t.ID] = &t
}

// --- leveling.ProfileStore ---

// GetByPerson retrieves a profile by person and org
func (m *Memory) GetByPerson(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[profileKey(personID, orgID)]
	if !ok {
		return nil, leveling.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Upsert inserts or replaces a profile
func (m *Memory) Upsert(ctx context.Context, profile *types.PerformanceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *profile
	m.profiles[profileKey(cp.PersonID, cp.OrgID)] = &cp
	return nil
}

// ListByPersons retrieves profiles for a set of people within an org
func (m *Memory) ListByPersons(ctx context.Context, orgID string, personIDs []string) ([]types.PerformanceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]types.PerformanceProfile, 0, len(personIDs))
	for _, personID := range personIDs {
		if p, ok := m.profiles[profileKey(personID, orgID)]; ok {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PersonID < result[j].PersonID })
	return result, nil
}

// --- leveling.SuggestionStore ---

// Create stores a new suggestion
func (m *Memory) Create(ctx context.Context, s *types.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.seq++
	m.order["sugg/"+cp.ID] = m.seq
	m.suggs[cp.ID] = &cp
	return nil
}

// GetByID retrieves a suggestion by ID
func (m *Memory) GetByID(ctx context.Context, id string) (*types.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suggs[id]
	if !ok {
		return nil, leveling.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Update replaces a stored suggestion
func (m *Memory) Update(ctx context.Context, s *types.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suggs[s.ID]; !ok {
		return leveling.ErrNotFound
	}
	cp := *s
	m.suggs[cp.ID] = &cp
	return nil
}

func (m *Memory) listPending(match func(*types.Suggestion) bool) []types.Suggestion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []types.Suggestion
	for _, s := range m.suggs {
		if s.Status == types.SuggestionStatusPending && match(s) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return m.order["sugg/"+result[i].ID] < m.order["sugg/"+result[j].ID]
	})
	return result
}

// ListPendingByTask returns a task's pending suggestions in creation order
func (m *Memory) ListPendingByTask(ctx context.Context, taskID string) ([]types.Suggestion, error) {
	return m.listPending(func(s *types.Suggestion) bool { return s.TaskID == taskID }), nil
}

// ListPendingByBoard returns a board's pending suggestions ordered by
// confidence, highest first
func (m *Memory) ListPendingByBoard(ctx context.Context, boardID string) ([]types.Suggestion, error) {
	result := m.listPending(func(s *types.Suggestion) bool { return s.BoardID == boardID })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ConfidenceScore > result[j].ConfidenceScore
	})
	return result, nil
}

// ListPendingBySuggestedAssignee returns pending suggestions proposing work
// for a person
func (m *Memory) ListPendingBySuggestedAssignee(ctx context.Context, personID string) ([]types.Suggestion, error) {
	return m.listPending(func(s *types.Suggestion) bool { return s.SuggestedAssignee == personID }), nil
}

// ListPendingByCurrentAssignee returns pending suggestions moving work away
// from a person
func (m *Memory) ListPendingByCurrentAssignee(ctx context.Context, personID string) ([]types.Suggestion, error) {
	return m.listPending(func(s *types.Suggestion) bool { return s.CurrentAssignee == personID }), nil
}

func (m *Memory) expirePending(match func(*types.Suggestion) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.suggs {
		if s.Status == types.SuggestionStatusPending && match(s) {
			s.Status = types.SuggestionStatusExpired
			n++
		}
	}
	return n
}

// ExpirePendingByTask flips a task's pending suggestions to expired
func (m *Memory) ExpirePendingByTask(ctx context.Context, taskID string, now time.Time) (int, error) {
	return m.expirePending(func(s *types.Suggestion) bool { return s.TaskID == taskID }), nil
}

// ExpirePendingByBoard flips a board's pending suggestions to expired
func (m *Memory) ExpirePendingByBoard(ctx context.Context, boardID string, now time.Time) (int, error) {
	return m.expirePending(func(s *types.Suggestion) bool { return s.BoardID == boardID }), nil
}

// ExpireDue flips pending suggestions whose expiry has passed
func (m *Memory) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return m.expirePending(func(s *types.Suggestion) bool { return !now.Before(s.ExpiresAt) }), nil
}

// --- leveling.HistoryStore ---

// Append stores a new audit entry
func (m *Memory) Append(ctx context.Context, h *types.AssignmentHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *h
	m.seq++
	m.order["hist/"+cp.ID] = m.seq
	m.history[cp.ID] = &cp
	return nil
}

// BackfillActuals records the actual outcome on an entry exactly once
func (m *Memory) BackfillActuals(ctx context.Context, id string, actualHours float64, completedAt time.Time, accuracy *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.history[id]
	if !ok {
		return leveling.ErrNotFound
	}
	if entry.ActualCompletedAt != nil {
		return nil
	}
	hours := actualHours
	at := completedAt
	entry.ActualCompletionHours = &hours
	entry.ActualCompletedAt = &at
	entry.PredictionAccuracy = accuracy
	return nil
}

func (m *Memory) listHistory(match func(*types.AssignmentHistory) bool, limit int) []types.AssignmentHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []types.AssignmentHistory
	for _, h := range m.history {
		if match(h) {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return m.order["hist/"+result[i].ID] < m.order["hist/"+result[j].ID]
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ListByTask returns a task's audit entries, oldest first
func (m *Memory) ListByTask(ctx context.Context, taskID string) ([]types.AssignmentHistory, error) {
	return m.listHistory(func(h *types.AssignmentHistory) bool { return h.TaskID == taskID }, 0), nil
}

// ListByPerson returns entries where the person received the task
func (m *Memory) ListByPerson(ctx context.Context, personID string) ([]types.AssignmentHistory, error) {
	return m.listHistory(func(h *types.AssignmentHistory) bool { return h.NewAssignee == personID }, 0), nil
}

// ListPendingBackfill returns entries without a recorded outcome
func (m *Memory) ListPendingBackfill(ctx context.Context, limit int) ([]types.AssignmentHistory, error) {
	return m.listHistory(func(h *types.AssignmentHistory) bool { return h.ActualCompletedAt == nil }, limit), nil
}

// --- leveling.TaskDirectory ---

// GetTask retrieves a task by ID
func (m *Memory) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, leveling.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// GetBoard retrieves a board by ID
func (m *Memory) GetBoard(ctx context.Context, boardID string) (*types.Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.boards[boardID]
	if !ok {
		return nil, leveling.ErrNotFound
	}
	cp := *b
	cp.Members = append([]string(nil), b.Members...)
	return &cp, nil
}

// ListBoards returns all boards sorted by ID
func (m *Memory) ListBoards(ctx context.Context) ([]types.Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]types.Board, 0, len(m.boards))
	for _, b := range m.boards {
		cp := *b
		cp.Members = append([]string(nil), b.Members...)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) listTasks(match func(*types.Task) bool) []types.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []types.Task
	for _, t := range m.tasks {
		if match(t) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return m.order["task/"+result[i].ID] < m.order["task/"+result[j].ID]
	})
	return result
}

// OpenTasksForPerson returns a person's open tasks in creation order
func (m *Memory) OpenTasksForPerson(ctx context.Context, personID string) ([]types.Task, error) {
	return m.listTasks(func(t *types.Task) bool {
		return t.Assignee == personID && t.Status.IsOpen()
	}), nil
}

// CompletedTasksForPerson returns tasks completed at or after since
func (m *Memory) CompletedTasksForPerson(ctx context.Context, personID string, since time.Time) ([]types.Task, error) {
	return m.listTasks(func(t *types.Task) bool {
		return t.Assignee == personID && t.Status == types.TaskStatusDone &&
			t.CompletedAt != nil && !t.CompletedAt.Before(since)
	}), nil
}

// OpenTasksForBoard returns a board's open tasks in creation order
func (m *Memory) OpenTasksForBoard(ctx context.Context, boardID string) ([]types.Task, error) {
	return m.listTasks(func(t *types.Task) bool {
		return t.BoardID == boardID && t.Status.IsOpen()
	}), nil
}

// ReassignTask updates a task's assignee
func (m *Memory) ReassignTask(ctx context.Context, taskID, newAssignee, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return leveling.ErrNotFound
	}
	t.Assignee = newAssignee
	return nil
}
