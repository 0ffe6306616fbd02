// Package housekeeping runs periodic cleanup on a cron schedule.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one cleanup step. It returns how many rows it removed or changed.
type Task struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs every task in order on each tick.
type Scheduler struct {
	cron  *cron.Cron
	tasks []Task
	now   func() time.Time
}

// New creates a scheduler for the given tasks.
func New(tasks ...Task) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		tasks: tasks,
		now:   time.Now,
	}
}

// Start registers the tasks on schedule (standard cron or @every syntax) and
// starts the scheduler. Runs stop once ctx is done.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid housekeeping schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	slog.Info("housekeeping scheduled", "schedule", schedule, "tasks", len(s.tasks))
	return nil
}

// Stop stops scheduling and waits for a running pass to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce runs every task now. A failing task is logged and the rest still run.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()
	for _, t := range s.tasks {
		n, err := t.Run(ctx, now)
		if err != nil {
			slog.ErrorContext(ctx, "housekeeping task failed", "task", t.Name, "err", err)
			continue
		}
		if n > 0 {
			slog.InfoContext(ctx, "housekeeping", "task", t.Name, "rows", n)
		}
	}
}
