package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-leveler/internal/config"
	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/internal/storage"
)

func newTestScheduler(cfg config.SchedulerConfig) *Scheduler {
	mem := storage.NewMemory()
	service := leveling.NewService(mem, mem, mem, mem, nil, leveling.DefaultServiceConfig(), nil)
	return New(service, cfg, nil)
}

func TestSchedulerDisabled(t *testing.T) {
	s := newTestScheduler(config.SchedulerConfig{Enabled: false})
	require.NoError(t, s.Start())
	s.Stop()
}

func TestSchedulerStartsWithValidSpecs(t *testing.T) {
	s := newTestScheduler(config.SchedulerConfig{
		Enabled:            true,
		ProfileRefreshSpec: "0 */6 * * *",
		SuggestionSpec:     "30 */6 * * *",
		ExpirySweepSpec:    "*/15 * * * *",
	})
	require.NoError(t, s.Start())
	s.Stop()
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := newTestScheduler(config.SchedulerConfig{
		Enabled:            true,
		ProfileRefreshSpec: "not a cron spec",
	})
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile_refresh")
}

func TestSchedulerSkipsEmptySpecs(t *testing.T) {
	s := newTestScheduler(config.SchedulerConfig{
		Enabled:         true,
		ExpirySweepSpec: "*/15 * * * *",
	})
	require.NoError(t, s.Start())
	s.Stop()
}
