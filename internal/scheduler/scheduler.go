// Package scheduler repeats download runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs registered jobs on cron specs with a leading seconds field.
// A job still running when its next tick arrives is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// New creates a Scheduler logging through log (nil for no logging).
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// Register adds job under spec. ctx is handed to every invocation.
func (s *Scheduler) Register(ctx context.Context, name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		s.log.Info("scheduled run started", zap.String("job", name))
		job(ctx)
		s.log.Info("scheduled run finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	return nil
}

// Next returns the earliest upcoming run, or the zero time before Run starts
// or when nothing is registered.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Time("next", s.Next()))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
