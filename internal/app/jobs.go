package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/scheduler"
)

// Job names registered by RegisterJobs
const (
	JobSweepRateLimits = "sweep-rate-limits"
	JobPruneStore      = "prune-store"
)

// RegisterJobs schedules housekeeping for the rate-limit table and the
// request log. Empty schedules disable a job. Reload re-applies the
// schedules on s.
func (a *App) RegisterJobs(s *scheduler.Scheduler) error {
	a.mu.Lock()
	a.scheduler = s
	a.mu.Unlock()
	return a.syncJobs(s, a.Config())
}

func (a *App) syncJobs(s *scheduler.Scheduler, cfg *config.Config) error {
	pruneSchedule := cfg.Store.PruneSchedule
	if a.store == nil {
		pruneSchedule = ""
	}

	jobs := []struct {
		name     string
		schedule string
		job      scheduler.Job
	}{
		{JobSweepRateLimits, cfg.RateLimit.SweepSchedule, a.SweepRateLimits},
		{JobPruneStore, pruneSchedule, a.PruneStore},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			s.RemoveJob(j.name)
			continue
		}
		if err := s.AddJob(j.name, j.schedule, j.job); err != nil {
			return err
		}
	}
	return nil
}

// SweepRateLimits drops expired rate-limit records.
func (a *App) SweepRateLimits(_ context.Context) error {
	removed := a.limiter.Sweep()
	if removed > 0 {
		a.logger.Debug("[app] swept rate-limit records", zap.Int("removed", removed), zap.Int("remaining", a.limiter.Len()))
	}
	return nil
}

// PruneStore deletes log rows older than the configured retention.
func (a *App) PruneStore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	retain := time.Duration(a.Config().Store.RetainMinutes) * time.Minute
	if retain <= 0 {
		return nil
	}

	n, err := a.store.Prune(ctx, a.now().Add(-retain))
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.Info("[app] pruned request log", zap.Int64("rows", n))
	}
	return nil
}
