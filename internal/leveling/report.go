package leveling

import (
	"context"
	"fmt"
	"sort"

	"taskboard-leveler/pkg/types"
)

// ReportConfig tunes the team utilization report's status bands.
type ReportConfig struct {
	OverloadedThreshold float64 `json:"overloaded_threshold"` // above: overloaded
	BusyThreshold       float64 `json:"busy_threshold"`       // above: busy
	BalancedThreshold   float64 `json:"balanced_threshold"`   // at or above: balanced, below: available

	// CapacityWarningThreshold triggers the team-level warning when the
	// average utilization exceeds it.
	CapacityWarningThreshold float64 `json:"capacity_warning_threshold"`
}

// DefaultReportConfig returns default report configuration
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		OverloadedThreshold:      90,
		BusyThreshold:            75,
		BalancedThreshold:        40,
		CapacityWarningThreshold: 85,
	}
}

// Report builds the team utilization report for a board. Member workloads
// are brought up to date first so the report reflects current assignments.
func (s *Service) Report(ctx context.Context, boardID string) (*types.TeamReport, error) {
	board, err := s.tasks.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	report := &types.TeamReport{
		BoardID:     boardID,
		GeneratedAt: s.now(),
		Members:     make([]types.MemberReport, 0, len(board.Members)),
	}

	var total float64
	for _, personID := range board.Members {
		profile, err := s.builder.Ensure(ctx, personID, board.OrgID)
		if err != nil {
			s.logger.Warn("skipping member in report", "person_id", personID, "error", err.Error())
			continue
		}

		util := profile.DisplayUtilization()
		report.Members = append(report.Members, types.MemberReport{
			PersonID:      personID,
			Utilization:   util,
			WorkloadHours: profile.CurrentWorkloadHours,
			ActiveCount:   profile.CurrentActiveCount,
			Velocity:      profile.Velocity,
			OnTimeRate:    profile.OnTimeRate,
			Status:        s.utilizationStatus(util),
		})
		total += util
	}

	sort.Slice(report.Members, func(i, j int) bool {
		if report.Members[i].Utilization != report.Members[j].Utilization {
			return report.Members[i].Utilization > report.Members[j].Utilization
		}
		return report.Members[i].PersonID < report.Members[j].PersonID
	})

	if len(report.Members) > 0 {
		report.AverageUtilization = total / float64(len(report.Members))
	}
	if report.AverageUtilization > s.config.Report.CapacityWarningThreshold {
		report.CapacityWarning = fmt.Sprintf(
			"Team is running at %.0f%% average utilization; consider adding capacity or deferring work.",
			report.AverageUtilization)
	}
	return report, nil
}

func (s *Service) utilizationStatus(utilization float64) string {
	cfg := s.config.Report
	switch {
	case utilization > cfg.OverloadedThreshold:
		return "overloaded"
	case utilization > cfg.BusyThreshold:
		return "busy"
	case utilization >= cfg.BalancedThreshold:
		return "balanced"
	default:
		return "available"
	}
}
