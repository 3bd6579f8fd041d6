// Package scheduler drives dispatch batches on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/benfogiel/Sparkpad/internal/dispatch"
)

// Defaults for Config.
const (
	DefaultSpec    = "*/15 * * * *"
	DefaultTimeout = 9 * time.Minute
)

// Batcher runs one dispatch batch. dispatch.Dispatcher implements this.
type Batcher interface {
	RunBatch(ctx context.Context, now time.Time) (dispatch.Summary, error)
}

// Config controls the trigger.
type Config struct {
	Spec       string        // standard 5-field cron expression, evaluated in UTC
	Timeout    time.Duration // wall-clock budget of a single batch
	// RunOnStart runs one batch immediately. It shares the cron job's overlap
	// guard, so a tick firing while it runs is skipped.
	RunOnStart bool
}

// Scheduler periodically runs dispatch batches until its context is canceled.
type Scheduler struct {
	batcher  Batcher
	log      *zap.Logger
	schedule cron.Schedule
	cfg      Config
	now      func() time.Time
}

// New validates the cron spec and creates a Scheduler.
func New(b Batcher, log *zap.Logger, cfg Config) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	sched, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}
	return &Scheduler{
		batcher:  b,
		log:      log,
		schedule: sched,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Run starts the cron loop and blocks until ctx is canceled and every running
// batch, including the start batch, has returned. Overlapping ticks are skipped.
func (s *Scheduler) Run(ctx context.Context) {
	cl := cronLogger{s.log.Sugar()}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { s.RunOnce(ctx) }))

	c := cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cl))
	c.Schedule(s.schedule, job)
	c.Start()
	s.log.Info("scheduler started", zap.String("spec", s.cfg.Spec), zap.Duration("timeout", s.cfg.Timeout))

	var wg sync.WaitGroup
	if s.cfg.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-c.Stop().Done()
	wg.Wait()
}

// RunOnce runs a single batch bounded by the configured timeout.
// Batch-level errors are logged, never returned.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	sum, err := s.batcher.RunBatch(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("batch failed", zap.String("run_id", sum.RunID), zap.Error(err))
		return
	}
	s.log.Debug("batch done",
		zap.String("run_id", sum.RunID),
		zap.Int("users", sum.Users),
		zap.Int("sent", sum.Count(dispatch.OutcomeSent)),
	)
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
