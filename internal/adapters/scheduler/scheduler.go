// Package scheduler enqueues the daily rollup refresh on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/verdict/internal/adapters/mq/queue"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/pkg/logger"
)

const runTimeout = 5 * time.Minute

// ErrStarted is returned when Start is called twice.
var ErrStarted = errors.New("scheduler already started")

// OrgLister lists the orgs that need a rollup.
type OrgLister interface {
	Orgs(ctx context.Context) ([]string, error)
}

// Enqueuer accepts rollup jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, j queue.Job) error
}

// Scheduler fans a cron tick out into one rollup job per org.
type Scheduler struct {
	cron    *cron.Cron
	orgs    OrgLister
	jobs    Enqueuer
	now     func() time.Time
	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used to pick the rollup day.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Scheduler. Schedules use the standard five-field cron format.
func New(orgs OrgLister, jobs Enqueuer, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		orgs:   orgs,
		jobs:   jobs,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate reports whether spec parses as a standard cron schedule.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid rollup schedule %q: %w", spec, err)
	}
	return nil
}

// Start registers the refresh at spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if s.started {
		return ErrStarted
	}
	if err := Validate(spec); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("schedule rollup: %w", err)
	}
	s.cron.Start()
	s.started = true
	s.logger.Info(context.Background(), "rollup scheduler started", logger.String("schedule", spec))
	return nil
}

// Stop stops the cron loop and waits for a running tick or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}
	done := s.cron.Stop()
	s.started = false
	select {
	case <-done.Done():
		s.logger.Info(ctx, "rollup scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// RunNow enqueues today's rollup for every org and returns the jobs accepted.
// Orgs that cannot be enqueued are reported in the joined error.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	orgs, err := s.orgs.Orgs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list orgs: %w", err)
	}
	day := model.DateOf(s.now())
	n := 0
	var errs []error
	for _, org := range orgs {
		if err := s.jobs.Enqueue(ctx, queue.Job{OrgID: org, Day: day}); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", org, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.RunNow(ctx)
	if err != nil {
		s.logger.Error(ctx, "scheduled rollup enqueue failed", logger.Int("enqueued", n), logger.Error(err))
		return
	}
	s.logger.Info(ctx, "scheduled rollup enqueued", logger.Int("orgs", n))
}
