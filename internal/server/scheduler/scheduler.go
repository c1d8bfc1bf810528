// Package scheduler runs periodic maintenance jobs (expired token sweeps,
// audit flushes) independently of request traffic.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Task is one periodic job. Run is called once at startup and then every
// Interval until the scheduler stops.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run; zero means Interval.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Scheduler struct {
	tasks  []Task
	logger logging.Logger
}

func New(logger logging.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks, logger: logger.With("module", "scheduler")}
}

// Start blocks until ctx is cancelled. A failing or panicking run is logged
// and does not stop later runs.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, t := range s.tasks {
		if t.Interval <= 0 {
			return fmt.Errorf("task %q: interval must be positive", t.Name)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		g.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	s.runOnce(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = t.Interval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "task panicked", "task", t.Name, "panic", fmt.Sprint(p))
		}
	}()

	started := time.Now()
	if err := t.Run(ctx); err != nil {
		s.logger.Error(ctx, "task failed", "task", t.Name, "error", err)
		return
	}
	s.logger.Debug(ctx, "task finished", "task", t.Name, "took", time.Since(started))
}
