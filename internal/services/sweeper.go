package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cleaner is the slice of the session manager the sweeper needs.
type Cleaner interface {
	Cleanup(ctx context.Context, now time.Time) (int, error)
}

// SweeperConfig controls the expired-session sweep cadence.
type SweeperConfig struct {
	Interval time.Duration
}

// Sweeper periodically removes expired and signed-out sessions from every
// backend. Sweeping is hygiene, not correctness: stale records are rejected
// at read time regardless.
type Sweeper struct {
	manager Cleaner
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     SweeperConfig
}

func NewSweeper(manager Cleaner, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		manager: manager,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		s.Run(ctx)
	})

	return s
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("session sweeper started")
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("session sweeper stopped")
}

// Run executes one sweep synchronously.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.manager == nil {
		return
	}
	removed, err := s.manager.Cleanup(ctx, time.Now())
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("swept expired sessions", zap.Int("removed", removed))
	}
}
