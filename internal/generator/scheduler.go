package generator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the generator periodically.
type Scheduler struct {
	gen      *Generator
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	onChange func()
	log      *zap.Logger
}

// NewScheduler creates a scheduler that runs gen every interval with the given lookahead.
func NewScheduler(gen *Generator, interval, window time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{gen: gen, interval: interval, window: window, now: time.Now, log: log}
}

// OnChange registers fn to be called after a run that created tasks.
func (s *Scheduler) OnChange(fn func()) {
	s.onChange = fn
}

// Run generates once immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("starting task generation scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("window", s.window))

	s.RunOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("task generation scheduler shutting down")
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// RunOnce performs a single generation run and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	sum, err := s.gen.GenerateTasks(ctx, s.now(), s.window)
	if err != nil {
		s.log.Error("task generation run failed", zap.Error(err))
		return
	}
	if sum.Created > 0 && s.onChange != nil {
		s.onChange()
	}
}
