// Package scheduler runs the engine's periodic maintenance jobs: profile
// refresh sweeps, suggestion batch regeneration, and expiry plus
// history-backfill sweeps.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"taskboard-leveler/internal/config"
	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/internal/logging"
)

// Scheduler wires the leveling service's maintenance entry points to cron
// schedules. Job specs use standard 5-field cron expressions (minute hour
// day-of-month month day-of-week).
type Scheduler struct {
	service *leveling.Service
	config  config.SchedulerConfig
	logger  logging.Logger
	cron    *cron.Cron

	// JobTimeout bounds each job run. Zero means no bound.
	JobTimeout time.Duration
}

// New creates a new scheduler
func New(service *leveling.Service, cfg config.SchedulerConfig, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Scheduler{
		service:    service,
		config:     cfg,
		logger:     logger.WithComponent("scheduler"),
		cron:       cron.New(),
		JobTimeout: 10 * time.Minute,
	}
}

// Start registers the configured jobs and begins running them. It is a no-op
// when the scheduler is disabled.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"profile_refresh", s.config.ProfileRefreshSpec, s.service.RefreshAllProfiles},
		{"suggestion_batch", s.config.SuggestionSpec, s.service.GenerateAllSuggestions},
		{"expiry_sweep", s.config.ExpirySweepSpec, s.expireAndBackfill},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		name, run := job.name, job.run
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(name, run) }); err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", job.name, job.spec, err)
		}
		s.logger.Info("job scheduled", "job", job.name, "spec", job.spec)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runJob(name string, run func(ctx context.Context) error) {
	ctx := context.Background()
	if s.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := run(ctx); err != nil {
		s.logger.Error("job failed", "job", name, "error", err.Error())
		return
	}
	s.logger.Debug("job finished", "job", name, "duration", time.Since(start).String())
}

// expireAndBackfill combines the two cheap sweeps into one schedule slot.
func (s *Scheduler) expireAndBackfill(ctx context.Context) error {
	if _, err := s.service.ExpireDueSuggestions(ctx); err != nil {
		return err
	}
	_, err := s.service.BackfillHistoryActuals(ctx)
	return err
}
