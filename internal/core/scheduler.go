package core

// scheduler.go clears finished jobs from the in-memory tracker.
//
// Without it a long-running server keeps every report it ever produced.
// The sweeper is context-aware and stops with the server.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig controls the job sweeper.
type SweepConfig struct {
	Retention time.Duration // finished jobs older than this are cleared
	Interval  time.Duration // how often to sweep (default: Retention/2)
}

// StartJobSweeper clears finished jobs older than cfg.Retention every
// cfg.Interval until ctx is cancelled. A non-positive retention disables
// sweeping and returns at once.
func (s *Service) StartJobSweeper(ctx context.Context, cfg SweepConfig) {
	if cfg.Retention <= 0 {
		slog.Info("job sweeper disabled")
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.Retention / 2
	}
	if cfg.Interval < time.Second {
		cfg.Interval = time.Second
	}

	slog.Info("job sweeper started",
		"retention", cfg.Retention.String(),
		"interval", cfg.Interval.String(),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job sweeper stopped")
			return
		case <-ticker.C:
			s.sweepJobs(cfg.Retention)
		}
	}
}

func (s *Service) sweepJobs(retention time.Duration) int {
	removed := s.jobs.Sweep(retention)
	if removed > 0 {
		slog.Info("swept finished jobs",
			"removed", removed,
			"remaining", s.jobs.Len(),
		)
	}
	return removed
}
