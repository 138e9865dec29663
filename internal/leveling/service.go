package leveling

import (
	"context"
	"fmt"
	"time"

	"taskboard-leveler/internal/events"
	"taskboard-leveler/internal/logging"
	"taskboard-leveler/pkg/types"
)

// ServiceConfig aggregates the tuning knobs of every engine component.
type ServiceConfig struct {
	Profile   ProfileConfig   `json:"profile"`
	Scorer    ScorerConfig    `json:"scorer"`
	Engine    EngineConfig    `json:"engine"`
	Balancer  BalancerConfig  `json:"balancer"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Report    ReportConfig    `json:"report"`
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Profile:   DefaultProfileConfig(),
		Scorer:    DefaultScorerConfig(),
		Engine:    DefaultEngineConfig(),
		Balancer:  DefaultBalancerConfig(),
		Lifecycle: DefaultLifecycleConfig(),
		Report:    DefaultReportConfig(),
	}
}

// Service is the resource leveling engine's public surface: analysis,
// suggestions, the suggestion lifecycle, workload balancing, and team
// reports. Failures inside scoring degrade to "no suggestion" rather than
// propagating; nothing here should ever be fatal to the surrounding
// application.
type Service struct {
	profiles    ProfileStore
	suggestions SuggestionStore
	history     HistoryStore
	tasks       TaskDirectory
	bus         *events.Bus

	builder  *ProfileBuilder
	scorer   *Scorer
	engine   *SuggestionEngine
	balancer *WorkloadBalancer

	config ServiceConfig
	logger logging.Logger
	now    func() time.Time
}

// NewService creates a new leveling service and, when a bus is provided,
// subscribes its invalidation handler to assignment-changed events.
func NewService(profiles ProfileStore, suggestions SuggestionStore, history HistoryStore, tasks TaskDirectory, bus *events.Bus, config ServiceConfig, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	builder := NewProfileBuilder(profiles, tasks, config.Profile, logger)
	scorer := NewScorerWithConfig(config.Scorer)
	engine := NewSuggestionEngine(profiles, suggestions, tasks, builder, scorer, config.Engine, logger)
	balancer := NewWorkloadBalancer(profiles, tasks, builder, config.Balancer, logger)

	s := &Service{
		profiles:    profiles,
		suggestions: suggestions,
		history:     history,
		tasks:       tasks,
		bus:         bus,
		builder:     builder,
		scorer:      scorer,
		engine:      engine,
		balancer:    balancer,
		config:      config,
		logger:      logger.WithComponent("leveling_service"),
		now:         time.Now,
	}

	if bus != nil {
		bus.Subscribe(s.OnAssignmentChanged)
	}
	return s
}

// Analyze returns the ranked candidate list, top recommendation, and
// reasoning for one task.
func (s *Service) Analyze(ctx context.Context, taskID string) (*types.TaskAnalysis, error) {
	return s.engine.Analyze(ctx, taskID)
}

// Suggest evaluates one task and persists a suggestion when a reassignment
// is worthwhile. A nil suggestion with a skip reason is an ordinary result.
func (s *Service) Suggest(ctx context.Context, taskID string) (*SuggestResult, error) {
	return s.engine.Suggest(ctx, taskID)
}

// SuggestionsForTeam returns the board's suggestions. With refresh set, the
// pending set is regenerated from current facts first; otherwise the stored
// pending suggestions are returned as-is.
func (s *Service) SuggestionsForTeam(ctx context.Context, boardID string, limit int, refresh bool) ([]types.Suggestion, error) {
	if refresh {
		return s.engine.SuggestForTeam(ctx, boardID, limit)
	}
	pending, err := s.suggestions.ListPendingByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// GenerateForTeam runs a fresh batch generation pass for a board.
func (s *Service) GenerateForTeam(ctx context.Context, boardID string, limit int) ([]types.Suggestion, error) {
	return s.engine.SuggestForTeam(ctx, boardID, limit)
}

// Balance proposes workload moves for a board toward the target utilization.
func (s *Service) Balance(ctx context.Context, boardID string, target float64) (*types.BalancePlan, error) {
	return s.balancer.Balance(ctx, boardID, target)
}

// RefreshProfile fully rebuilds one person's profile.
func (s *Service) RefreshProfile(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	return s.builder.Refresh(ctx, personID, orgID)
}

// RefreshBoardProfiles fully rebuilds every board member's profile.
func (s *Service) RefreshBoardProfiles(ctx context.Context, boardID string) error {
	board, err := s.tasks.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	for _, personID := range board.Members {
		if _, err := s.builder.Refresh(ctx, personID, board.OrgID); err != nil {
			// Keep going: one broken member must not block the rest.
			s.logger.Error("profile refresh failed", "person_id", personID, "error", err.Error())
		}
	}
	return nil
}

// RefreshAllProfiles rebuilds profiles for every board. Used by the periodic
// job runner.
func (s *Service) RefreshAllProfiles(ctx context.Context) error {
	boards, err := s.tasks.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("listing boards: %w", err)
	}
	for i := range boards {
		if err := s.RefreshBoardProfiles(ctx, boards[i].ID); err != nil {
			s.logger.Error("board profile refresh failed", "board_id", boards[i].ID, "error", err.Error())
		}
	}
	return nil
}

// GenerateAllSuggestions regenerates suggestion batches for every board.
// Used by the periodic job runner.
func (s *Service) GenerateAllSuggestions(ctx context.Context) error {
	boards, err := s.tasks.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("listing boards: %w", err)
	}
	for i := range boards {
		if _, err := s.engine.SuggestForTeam(ctx, boards[i].ID, 0); err != nil {
			s.logger.Error("batch generation failed", "board_id", boards[i].ID, "error", err.Error())
		}
	}
	return nil
}

// NotifyAssignmentChanged publishes an externally-observed assignment change
// onto the bus. The task-tracking module calls this (through the API)
// whenever an assignment changes outside this engine.
func (s *Service) NotifyAssignmentChanged(ctx context.Context, ev types.AssignmentChanged) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if ev.Source == "" {
		ev.Source = "task_module"
	}
	if s.bus != nil {
		s.bus.Publish(ctx, ev)
	} else {
		s.OnAssignmentChanged(ctx, ev)
	}
}
