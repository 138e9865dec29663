package leveling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"taskboard-leveler/internal/logging"
	"taskboard-leveler/pkg/types"
)

// BalancerConfig represents configuration for workload balancing
type BalancerConfig struct {
	// TargetUtilization is the utilization percentage the pass levels
	// toward.
	TargetUtilization float64 `json:"target_utilization"`

	// Band is the dead zone around the target: overloaded means above
	// target+band, underutilized means below target-band.
	Band float64 `json:"band"`

	// MinMoveScore is the minimum candidate score for a move to be worth
	// proposing.
	MinMoveScore float64 `json:"min_move_score"`

	// SkillWeight and AvailabilityWeight combine into the move score.
	SkillWeight        float64 `json:"skill_weight"`
	AvailabilityWeight float64 `json:"availability_weight"`

	// DefaultTaskHours substitutes when neither the task's complexity nor
	// the member's average is known.
	DefaultTaskHours float64 `json:"default_task_hours"`
}

// DefaultBalancerConfig returns default balancer configuration
func DefaultBalancerConfig() BalancerConfig {
	return BalancerConfig{
		TargetUtilization:  75,
		Band:               15,
		MinMoveScore:       40,
		SkillWeight:        0.6,
		AvailabilityWeight: 0.4,
		DefaultTaskHours:   8,
	}
}

// WorkloadBalancer redistributes work from overloaded to underutilized team
// members toward a target utilization.
//
// The pass is a greedy, single-pass heuristic, not a globally optimal
// assignment: it walks donors in descending overload and their items in
// creation order, taking the best recipient still below target at each step.
// Simplicity and explainability win over optimality here.
type WorkloadBalancer struct {
	profiles ProfileStore
	tasks    TaskDirectory
	builder  *ProfileBuilder
	matcher  *SkillMatcher
	config   BalancerConfig
	logger   logging.Logger
	now      func() time.Time
}

// NewWorkloadBalancer creates a new workload balancer
func NewWorkloadBalancer(profiles ProfileStore, tasks TaskDirectory, builder *ProfileBuilder, config BalancerConfig, logger logging.Logger) *WorkloadBalancer {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &WorkloadBalancer{
		profiles: profiles,
		tasks:    tasks,
		builder:  builder,
		matcher:  NewSkillMatcher(),
		config:   config,
		logger:   logger.WithComponent("workload_balancer"),
		now:      time.Now,
	}
}

// memberLoad is the balancer's theoretical view of one member. Workload
// updates during the pass are local only; nothing persists until a caller
// accepts the plan.
type memberLoad struct {
	personID  string
	keywords  map[string]int
	avgHours  float64
	capacity  float64
	workload  float64
	utilizing float64
}

func (m *memberLoad) recompute() {
	m.utilizing = m.workload / m.capacity * 100
}

func (m *memberLoad) taskHours(t *types.Task, fallback float64) float64 {
	if t.Complexity > 0 {
		return t.Complexity
	}
	if m.avgHours > 0 {
		return m.avgHours
	}
	return fallback
}

// Balance proposes moves that bring a board's members toward the target
// utilization. A zero target uses the configured default.
func (b *WorkloadBalancer) Balance(ctx context.Context, boardID string, target float64) (*types.BalancePlan, error) {
	if target <= 0 {
		target = b.config.TargetUtilization
	}

	board, err := b.tasks.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	plan := &types.BalancePlan{
		BoardID:           boardID,
		TargetUtilization: target,
		GeneratedAt:       b.now(),
	}

	loads := make([]*memberLoad, 0, len(board.Members))
	for _, personID := range board.Members {
		profile, err := b.builder.Ensure(ctx, personID, board.OrgID)
		if err != nil {
			b.logger.Warn("skipping member without profile", "person_id", personID, "error", err.Error())
			continue
		}
		capacity := profile.WeeklyCapacityHours
		if capacity <= 0 {
			capacity = 40
		}
		load := &memberLoad{
			personID: personID,
			keywords: profile.SkillKeywords,
			avgHours: profile.AvgCompletionHours,
			capacity: capacity,
			workload: profile.CurrentWorkloadHours,
		}
		load.recompute()
		loads = append(loads, load)
	}

	overloaded := make([]*memberLoad, 0)
	underutilized := make([]*memberLoad, 0)
	for _, l := range loads {
		switch {
		case l.utilizing > target+b.config.Band:
			overloaded = append(overloaded, l)
		case l.utilizing < target-b.config.Band:
			underutilized = append(underutilized, l)
		}
	}

	if len(overloaded) == 0 || len(underutilized) == 0 {
		plan.Balanced = true
		plan.Message = "Team is already balanced: no members outside the target utilization band."
		plan.Moves = []types.ProposedMove{}
		return plan, nil
	}

	// Worst overload first; person ID breaks ties so the pass is
	// deterministic.
	sort.Slice(overloaded, func(i, j int) bool {
		if overloaded[i].utilizing != overloaded[j].utilizing {
			return overloaded[i].utilizing > overloaded[j].utilizing
		}
		return overloaded[i].personID < overloaded[j].personID
	})

	moves := make([]types.ProposedMove, 0)
	for _, donor := range overloaded {
		items, err := b.tasks.OpenTasksForPerson(ctx, donor.personID)
		if err != nil {
			return nil, fmt.Errorf("listing open tasks for %s: %w", donor.personID, err)
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		})

		for i := range items {
			if donor.utilizing <= target {
				break
			}
			task := &items[i]

			best, bestScore, bestSkill, bestAvail := b.bestRecipient(task, underutilized, target)
			if best == nil || bestScore <= b.config.MinMoveScore {
				continue
			}

			hoursOut := donor.taskHours(task, b.config.DefaultTaskHours)
			hoursIn := best.taskHours(task, b.config.DefaultTaskHours)
			donor.workload -= hoursOut
			donor.recompute()
			best.workload += hoursIn
			best.recompute()

			moves = append(moves, types.ProposedMove{
				TaskID:         task.ID,
				TaskTitle:      task.Title,
				FromPerson:     donor.personID,
				ToPerson:       best.personID,
				MoveScore:      bestScore,
				SkillMatch:     bestSkill,
				Availability:   bestAvail,
				EstimatedHours: hoursIn,
				Reasoning: fmt.Sprintf(
					"Move %q from %s (%.0f%% utilized) to %s (now %.0f%%): skill match %.0f, availability %.0f.",
					task.Title, donor.personID, donor.utilizing, best.personID, best.utilizing, bestSkill, bestAvail),
			})
		}
	}

	plan.Moves = moves
	if len(moves) == 0 {
		plan.Message = "No acceptable moves found: no underutilized member scored above the move threshold."
	} else {
		plan.Message = fmt.Sprintf("Proposing %d move(s) toward %.0f%% utilization.", len(moves), target)
	}

	b.logger.Info("balance pass complete", "board_id", boardID, "moves", len(moves))
	return plan, nil
}

// bestRecipient picks the underutilized member maximizing
// skillWeight*skillMatch + availabilityWeight*availability among those still
// below target.
func (b *WorkloadBalancer) bestRecipient(task *types.Task, candidates []*memberLoad, target float64) (best *memberLoad, bestScore, bestSkill, bestAvail float64) {
	taskText := task.Title + " " + task.Description
	for _, c := range candidates {
		if c.utilizing >= target {
			continue
		}
		skill := b.matcher.Match(c.keywords, taskText)
		avail := 100 - c.utilizing
		if avail < 0 {
			avail = 0
		}
		score := b.config.SkillWeight*skill + b.config.AvailabilityWeight*avail
		if best == nil || score > bestScore || (score == bestScore && c.personID < best.personID) {
			best, bestScore, bestSkill, bestAvail = c, score, skill, avail
		}
	}
	return best, bestScore, bestSkill, bestAvail
}
