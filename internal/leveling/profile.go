package leveling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskboard-leveler/internal/logging"
	"taskboard-leveler/pkg/types"
)

// ProfileBuilder rebuilds performance profiles from the task history. A full
// refresh recomputes everything from source data, so running it twice with no
// intervening task changes yields identical output, and concurrent refreshes
// can safely race behind last-write-wins.
type ProfileBuilder struct {
	profiles ProfileStore
	tasks    TaskDirectory
	config   ProfileConfig
	logger   logging.Logger
	now      func() time.Time
}

// ProfileConfig represents configuration for profile building
type ProfileConfig struct {
	// WindowDays is the trailing history window for velocity and skill
	// extraction.
	WindowDays int `json:"window_days"`

	// TopKeywords caps the skill keyword profile size.
	TopKeywords int `json:"top_keywords"`

	// MinKeywordLength is the minimum token length for skill keywords.
	MinKeywordLength int `json:"min_keyword_length"`

	// StaleAfter is how old a workload snapshot may be before on-demand
	// scoring refreshes it.
	StaleAfter time.Duration `json:"stale_after"`

	// Defaults applied until real data exists. Missing history is never an
	// error condition.
	DefaultCapacityHours   float64 `json:"default_capacity_hours"`
	DefaultVelocity        float64 `json:"default_velocity"`
	DefaultQualityScore    float64 `json:"default_quality_score"`
	DefaultCompletionHours float64 `json:"default_completion_hours"`
}

// DefaultProfileConfig returns default profile configuration
func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		WindowDays:             90,
		TopKeywords:            50,
		MinKeywordLength:       3,
		StaleAfter:             15 * time.Minute,
		DefaultCapacityHours:   40,
		DefaultVelocity:        1.0,
		DefaultQualityScore:    3.0,
		DefaultCompletionHours: 8,
	}
}

// NewProfileBuilder creates a new profile builder
func NewProfileBuilder(profiles ProfileStore, tasks TaskDirectory, config ProfileConfig, logger logging.Logger) *ProfileBuilder {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &ProfileBuilder{
		profiles: profiles,
		tasks:    tasks,
		config:   config,
		logger:   logger.WithComponent("profile_builder"),
		now:      time.Now,
	}
}

// Refresh fully rebuilds a person's profile: historical performance over the
// trailing window, the skill keyword profile, and the current workload
// snapshot. The profile is created lazily if it does not exist yet.
func (pb *ProfileBuilder) Refresh(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	profile, err := pb.getOrCreate(ctx, personID, orgID)
	if err != nil {
		return nil, err
	}

	now := pb.now()
	since := now.AddDate(0, 0, -pb.config.WindowDays)

	completed, err := pb.tasks.CompletedTasksForPerson(ctx, personID, since)
	if err != nil {
		return nil, fmt.Errorf("listing completed tasks for %s: %w", personID, err)
	}

	pb.applyHistory(profile, completed)

	if err := pb.applyWorkload(ctx, profile); err != nil {
		return nil, err
	}

	profile.LastRefreshedAt = now
	profile.UpdatedAt = now

	if err := pb.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("saving profile for %s: %w", personID, err)
	}

	pb.logger.Debug("profile refreshed",
		"person_id", personID,
		"completed", profile.TotalCompleted,
		"velocity", profile.Velocity,
		"utilization", profile.UtilizationPercentage)

	return profile, nil
}

// RefreshWorkload re-derives only the workload snapshot from currently open
// items. Cheaper than Refresh and run more often.
func (pb *ProfileBuilder) RefreshWorkload(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	profile, err := pb.getOrCreate(ctx, personID, orgID)
	if err != nil {
		return nil, err
	}

	if err := pb.applyWorkload(ctx, profile); err != nil {
		return nil, err
	}

	now := pb.now()
	profile.LastRefreshedAt = now
	profile.UpdatedAt = now

	if err := pb.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("saving profile for %s: %w", personID, err)
	}
	return profile, nil
}

/// Ensure returns a scoring-ready profile: a missing profile triggers a full
// refresh, a stale workload snapshot triggers a workload refresh.
func (pb *ProfileBuilder) Ensure(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	profile, err := pb.profiles.GetByPerson(ctx, personID, orgID)
	if errors.Is(err, ErrNotFound) {
		return pb.Refresh(ctx, personID, orgID)
	}
	if err != nil {
		return nil, err
	}
	if pb.now().Sub(profile.LastRefreshedAt) > pb.config.StaleAfter {
		return pb.RefreshWorkload(ctx, personID, orgID)
	}
	return profile, nil
}

func (pb *ProfileBuilder) getOrCreate(ctx context.Context, personID, orgID string) (*types.PerformanceProfile, error) {
	profile, err := pb.profiles.GetByPerson(ctx, personID, orgID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &types.PerformanceProfile{
		ID:                  uuid.NewString(),
		PersonID:            personID,
		OrgID:               orgID,
		Velocity:            pb.config.DefaultVelocity,
		QualityScore:        pb.config.DefaultQualityScore,
		WeeklyCapacityHours: pb.config.DefaultCapacityHours,
	}, nil
}

// applyHistory recomputes the historical-performance fields from the window's
// completed items. With no completions the defaults stay in place.
func (pb *ProfileBuilder) applyHistory(profile *types.PerformanceProfile, completed []types.Task) {
	profile.TotalCompleted = len(completed)

	if len(completed) == 0 {
		profile.Velocity = pb.config.DefaultVelocity
		profile.AvgCompletionHours = 0
		profile.OnTimeRate = nil
		profile.SkillKeywords = nil
		return
	}

	weeks := float64(pb.config.WindowDays) / 7
	if weeks < 1 {
		weeks = 1
	}
	profile.Velocity = float64(len(completed)) / weeks

	var totalHours float64
	onTime := 0
	dueDated := 0
	texts := make([]string, 0, len(completed))
	for i := range completed {
		t := &completed[i]
		totalHours += t.CompletionHours()
		if t.DueDate != nil && t.CompletedAt != nil {
			dueDated++
			if !t.CompletedAt.After(*t.DueDate) {
				onTime++
			}
		}
		texts = append(texts, t.Title+" "+t.Description)
	}
	profile.AvgCompletionHours = totalHours / float64(len(completed))

	if dueDated > 0 {
		rate := float64(onTime) / float64(dueDated) * 100
		profile.OnTimeRate = &rate
	} else {
		// No due-dated completions: on-time rate stays undefined.
		profile.OnTimeRate = nil
	}

	profile.SkillKeywords = BuildKeywordProfile(texts, pb.config.MinKeywordLength, pb.config.TopKeywords)
}

// applyWorkload re-derives workload hours and utilization from currently open
// items. Each item contributes its complexity score as hours when set,
// otherwise the person's own average completion time.
func (pb *ProfileBuilder) applyWorkload(ctx context.Context, profile *types.PerformanceProfile) error {
	open, err := pb.tasks.OpenTasksForPerson(ctx, profile.PersonID)
	if err != nil {
		return fmt.Errorf("listing open tasks for %s: %w", profile.PersonID, err)
	}

	fallback := profile.AvgCompletionHours
	if fallback <= 0 {
		fallback = pb.config.DefaultCompletionHours
	}

	var hours float64
	for i := range open {
		if open[i].Complexity > 0 {
			hours += open[i].Complexity
		} else {
			hours += fallback
		}
	}

	capacity := profile.WeeklyCapacityHours
	if capacity <= 0 {
		capacity = pb.config.DefaultCapacityHours
		profile.WeeklyCapacityHours = capacity
	}

	profile.CurrentActiveCount = len(open)
	profile.CurrentWorkloadHours = hours
	profile.UtilizationPercentage = hours / capacity * 100
	return nil
}
