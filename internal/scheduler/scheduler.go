package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/application"
)

// DefaultSpec runs the sweep once a day at midnight.
const DefaultSpec = "0 0 * * *"

type sweeper interface {
	Run(ctx context.Context) (application.SweepResult, error)
}

// Scheduler triggers the overdue payment sweep on a cron schedule.
type Scheduler struct {
	sweeper    sweeper
	spec       string
	runOnStart bool
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Scheduler that runs sweeper on the cron spec, falling back to
// DefaultSpec when spec is empty.
func New(sweeper sweeper, spec string, runOnStart bool, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		sweeper:    sweeper,
		spec:       spec,
		runOnStart: runOnStart,
		timeout:    10 * time.Minute,
		logger:     logger,
	}
}

// Start runs the cron loop until ctx is cancelled. Overlapping ticks are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}

	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	if s.runOnStart {
		s.tick(ctx)
	}
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.sweeper.Run(ctx)
	if err != nil {
		s.logger.Error("overdue payment sweep failed", zap.Error(err))
		return
	}
	if res.Skipped {
		s.logger.Debug("overdue payment sweep skipped")
		return
	}
	s.logger.Info("overdue payment sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
}
