package leveling

import (
	"hash/fnv"

	"taskboard-leveler/pkg/types"
)

// Confidence clamp bounds: the engine never claims near-certainty, and never
// reports a suggestion it does not at least moderately believe in.
const (
	confidenceFloor   = 45
	confidenceCeiling = 92
	confidenceBase    = 65
)

// confidenceInput carries the facts the confidence model weighs. For an
// unassigned task the "baseline" fields describe the median candidate rather
// than a current assignee.
type confidenceInput struct {
	BaselineUtilization  float64
	SuggestedUtilization float64
	BaselineAvailability float64
	SuggestedAvail       float64
	SkillMatch           float64
	ScoreImprovement     float64
	Impact               types.WorkloadImpact
	SuggestedActiveCount int

	// JitterA and JitterB seed the deterministic jitter; the sorted pair of
	// candidate IDs keeps repeated runs stable for identical inputs.
	JitterA string
	JitterB string
}

// confidenceScore computes a 0-100 confidence for a suggestion, clamped to
// [45, 92]. Every term is driven by the same numbers the suggestion reports.
func confidenceScore(in confidenceInput) float64 {
	score := float64(confidenceBase)

	// Utilization gap being corrected.
	gap := in.BaselineUtilization - in.SuggestedUtilization
	switch {
	case gap > 40:
		score += 12
	case gap > 20:
		score += 8
	case gap > 10:
		score += 4
	case gap < -10:
		// The move would widen the imbalance.
		score -= 5
	}

	// Availability movement.
	availGain := in.SuggestedAvail - in.BaselineAvailability
	if availGain > 0 {
		score += minf(availGain/10, 6)
	} else if availGain < 0 {
		score -= minf(-availGain/20, 3)
	}

	// Skill fit.
	if in.SkillMatch > 70 {
		score += minf((in.SkillMatch-70)/6, 5)
	} else if in.SkillMatch < 30 {
		score -= 2
	}

	// Overall score improvement.
	if in.ScoreImprovement > 20 {
		score += minf((in.ScoreImprovement-20)/6, 5)
	} else if in.ScoreImprovement < 5 {
		score -= 3
	}

	// Impact classification.
	switch in.Impact {
	case types.ImpactReducesBottleneck:
		score += 5
	case types.ImpactBalancesLoad:
		score += 3
	}

	// Current load of the recommended person.
	switch {
	case in.SuggestedActiveCount <= 1:
		score += 4
	case in.SuggestedActiveCount <= 3:
		score += 3
	case in.SuggestedActiveCount > 8:
		score -= 4
	}

	score += pairJitter(in.JitterA, in.JitterB)

	return clamp(score, confidenceFloor, confidenceCeiling)
}

// pairJitter returns a deterministic value in [-2, +2] seeded by the sorted
// ID pair. It only exists to avoid suspiciously identical confidence values
// across near-ties; re-runs with the same pair always produce the same value.
func pairJitter(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(a))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(b))
	return float64(h.Sum32()%401)/100 - 2
}

// classifyImpact labels why a move helps. utilGap is the utilization the move
// relieves (baseline minus suggested), skillGap is how much better the
// suggested person's skill match is.
func classifyImpact(utilGap, skillGap float64) types.WorkloadImpact {
	switch {
	case utilGap > 30:
		return types.ImpactReducesBottleneck
	case utilGap > 10:
		return types.ImpactBalancesLoad
	case skillGap > 20:
		return types.ImpactBetterSkills
	default:
		return types.ImpactImprovesTimeline
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
