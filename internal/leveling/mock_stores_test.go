package leveling

import (
	"context"
	"sort"
	"time"

	"taskboard-leveler/pkg/types"
)

// mockStores provides in-memory implementations of every store interface for
// testing. Not safe for concurrent use; tests drive it from one goroutine.
type mockStores struct {
	profiles map[string]*types.PerformanceProfile
	suggs    map[string]*types.Suggestion
	suggSeq  []string
	history  map[string]*types.AssignmentHistory
	histSeq  []string
	boards   map[string]*types.Board
	tasks    map[string]*types.Task
	taskSeq  []string

	reassigned []string // task IDs, in call order
}

func newMockStores() *mockStores {
	return &mockStores{
		profiles: make(map[string]*types.PerformanceProfile),
		suggs:    make(map[string]*types.Suggestion),
		history:  make(map[string]*types.AssignmentHistory),
		boards:   make(map[string]*types.Board),
		tasks:    make(map[string]*types.Task),
	}
}

func (m *mockStores) putBoard(b *types.Board) {
	cp := *b
	m.boards[cp.ID] = &cp
}

func (m *mockStores) putTask(t *types.Task) {
	cp := *t
	if _, ok := m.tasks[cp.ID]; !ok {
		m.taskSeq = append(m.taskSeq, cp.ID)
	}
	m.tasks[cp.ID] = &cp
}

func (m *mockStores) GetByPerson(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	p, ok := m.profiles[personID+"/"+orgID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStores) Upsert(ctx context.Context, profile *types.PerformanceProfile) error {
	cp := *profile
	m.profiles[cp.PersonID+"/"+cp.OrgID] = &cp
	return nil
}

func (m *mockStores) ListByPersons(ctx context.Context, orgID string, personIDs []string) ([]types.PerformanceProfile, error) {
	result := make([]types.PerformanceProfile, 0, len(personIDs))
	for _, id := range personIDs {
		if p, ok := m.profiles[id+"/"+orgID]; ok {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockStores) Create(ctx context.Context, s *types.Suggestion) error {
	cp := *s
	m.suggSeq = append(m.suggSeq, cp.ID)
	m.suggs[cp.ID] = &cp
	return nil
}

func (m *mockStores) GetByID(ctx context.Context, id string) (*types.Suggestion, error) {
	s, ok := m.suggs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockStores) Update(ctx context.Context, s *types.Suggestion) error {
	if _, ok := m.suggs[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.suggs[cp.ID] = &cp
	return nil
}

func (m *mockStores) pending(match func(*types.Suggestion) bool) []types.Suggestion {
	var result []types.Suggestion
	for _, id := range m.suggSeq {
		s := m.suggs[id]
		if s.Status == types.SuggestionStatusPending && match(s) {
			result = append(result, *s)
		}
	}
	return result
}

func (m *mockStores) ListPendingByTask(ctx context.Context, taskID string) ([]types.Suggestion, error) {
	return m.pending(func(s *types.Suggestion) bool { return s.TaskID == taskID }), nil
}

func (m *mockStores) ListPendingByBoard(ctx context.Context, boardID string) ([]types.Suggestion, error) {
	result := m.pending(func(s *types.Suggestion) bool { return s.BoardID == boardID })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ConfidenceScore > result[j].ConfidenceScore
	})
	return result, nil
}

func (m *mockStores) ListPendingBySuggestedAssignee(ctx context.Context, personID string) ([]types.Suggestion, error) {
	return m.pending(func(s *types.Suggestion) bool { return s.SuggestedAssignee == personID }), nil
}

func (m *mockStores) ListPendingByCurrentAssignee(ctx context.Context, personID string) ([]types.Suggestion, error) {
	return m.pending(func(s *types.Suggestion) bool { return s.CurrentAssignee == personID }), nil
}

func (m *mockStores) expirePending(match func(*types.Suggestion) bool) int {
	n := 0
	for _, s := range m.suggs {
		if s.Status == types.SuggestionStatusPending && match(s) {
			s.Status = types.SuggestionStatusExpired
			n++
		}
	}
	return n
}

func (m *mockStores) ExpirePendingByTask(ctx context.Context, taskID string, now time.Time) (int, error) {
	return m.expirePending(func(s *types.Suggestion) bool { return s.TaskID == taskID }), nil
}

func (m *mockStores) ExpirePendingByBoard(ctx context.Context, boardID string, now time.Time) (int, error) {
	return m.expirePending(func(s *types.Suggestion) bool { return s.BoardID == boardID }), nil
}

func (m *mockStores) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return m.expirePending(func(s *types.Suggestion) bool { return !now.Before(s.ExpiresAt) }), nil
}

func (m *mockStores) Append(ctx context.Context, h *types.AssignmentHistory) error {
	cp := *h
	m.histSeq = append(m.histSeq, cp.ID)
	m.history[cp.ID] = &cp
	return nil
}

func (m *mockStores) BackfillActuals(ctx context.Context, id string, actualHours float64, completedAt time.Time, accuracy *float64) error {
	entry, ok := m.history[id]
	if !ok {
		return ErrNotFound
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

func (m *mockStores) listHistory(match func(*types.AssignmentHistory) bool, limit int) []types.AssignmentHistory {
	var result []types.AssignmentHistory
	for _, id := range m.histSeq {
		if h := m.history[id]; match(h) {
			result = append(result, *h)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (m *mockStores) ListByTask(ctx context.Context, taskID string) ([]types.AssignmentHistory, error) {
	return m.listHistory(func(h *types.AssignmentHistory) bool { return h.TaskID == taskID }, 0), nil
}

func (m *mockStores) ListByPerson(ctx context.Context, personID string) ([]types.AssignmentHistory, error) {
	return m.listHistory(func(h *types.AssignmentHistory) bool { return h.NewAssignee == personID }, 0), nil
}

func (m *mockStores) ListPendingBackfill(ctx context.Context, limit int) ([]types.AssignmentHistory, error) {
	return m.listHistory(func(h *types.AssignmentHistory) bool { return h.ActualCompletedAt == nil }, limit), nil
}

func (m *mockStores) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStores) GetBoard(ctx context.Context, boardID string) (*types.Board, error) {
	b, ok := m.boards[boardID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	cp.Members = append([]string(nil), b.Members...)
	return &cp, nil
}

func (m *mockStores) ListBoards(ctx context.Context) ([]types.Board, error) {
	result := make([]types.Board, 0, len(m.boards))
	for _, b := range m.boards {
		cp := *b
		cp.Members = append([]string(nil), b.Members...)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStores) listTasks(match func(*types.Task) bool) []types.Task {
	var result []types.Task
	for _, id := range m.taskSeq {
		if t := m.tasks[id]; match(t) {
			result = append(result, *t)
		}
	}
	return result
}

func (m *mockStores) OpenTasksForPerson(ctx context.Context, personID string) ([]types.Task, error) {
	return m.listTasks(func(t *types.Task) bool {
		return t.Assignee == personID && t.Status.IsOpen()
	}), nil
}

func (m *mockStores) CompletedTasksForPerson(ctx context.Context, personID string, since time.Time) ([]types.Task, error) {
	return m.listTasks(func(t *types.Task) bool {
		return t.Assignee == personID && t.Status == types.TaskStatusDone &&
			t.CompletedAt != nil && !t.CompletedAt.Before(since)
	}), nil
}

func (m *mockStores) OpenTasksForBoard(ctx context.Context, boardID string) ([]types.Task, error) {
	return m.listTasks(func(t *types.Task) bool {
		return t.BoardID == boardID && t.Status.IsOpen()
	}), nil
}

func (m *mockStores) ReassignTask(ctx context.Context, taskID, newAssignee, actor string) error {
	t, ok := m.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Assignee = newAssignee
	m.reassigned = append(m.reassigned, taskID)
	return nil
}
