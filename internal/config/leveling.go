package config

import (
	"time"

	"taskboard-leveler/internal/leveling"
)

// ServiceConfig maps the flat engine settings onto the leveling service's
// per-component configuration, starting from the service defaults so
// unconfigured knobs keep their built-in values.
func (e EngineConfig) ServiceConfig() leveling.ServiceConfig {
	cfg := leveling.DefaultServiceConfig()

	cfg.Profile.WindowDays = e.WindowDays
	cfg.Profile.TopKeywords = e.TopKeywords
	cfg.Profile.MinKeywordLength = e.MinKeywordLength
	cfg.Profile.DefaultCapacityHours = e.DefaultCapacityHours
	cfg.Profile.DefaultVelocity = e.DefaultVelocity
	cfg.Profile.DefaultQualityScore = e.DefaultQualityScore
	cfg.Profile.DefaultCompletionHours = e.DefaultCompletionHours

	cfg.Scorer.HistoryWeights = leveling.ScoreWeights(e.HistoryWeights)
	cfg.Scorer.ColdStartWeights = leveling.ScoreWeights(e.ColdStartWeights)
	cfg.Scorer.DefaultCompletionHours = e.DefaultCompletionHours

	cfg.Engine.ReassignMarginPoints = e.ReassignMarginPoints
	cfg.Engine.SuggestionTTL = time.Duration(e.SuggestionTTLHours) * time.Hour
	cfg.Engine.MaxTeamSuggestions = e.MaxTeamSuggestions

	cfg.Lifecycle.OverloadInvalidationThreshold = e.OverloadInvalidation
	cfg.Lifecycle.RelievedInvalidationThreshold = e.RelievedInvalidation

	cfg.Balancer.TargetUtilization = e.TargetUtilization
	cfg.Balancer.Band = e.BalanceBand
	cfg.Balancer.MinMoveScore = e.MinBalanceMoveScore

	cfg.Report.CapacityWarningThreshold = e.CapacityWarningThreshold
	return cfg
}
