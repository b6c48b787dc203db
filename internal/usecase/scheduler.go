package usecase

import (
	"context"
	"log/slog"
	"time"

	"webscout/internal/ports"
)

// Task is one recurring pipeline pass. LastRun state is persisted, so
// an interval survives restarts: a task due before a crash is still
// due after it.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives the pipeline tasks on a short tick. The tick only
// keeps the loop responsive to shutdown; whether a task runs is decided
// by its persisted last-success time against its interval. Tasks run
// sequentially in registration order, so crawl output is visible to
// scoring within the same pass.
type Scheduler struct {
	tick  time.Duration
	tasks []Task

	daily     *Task
	dailyHour int
	loc       *time.Location

	state  ports.TaskStateRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler builds the task loop. Daily is optional; when set it
// runs once per calendar day in loc, during the given hour.
func NewScheduler(tick time.Duration, state ports.TaskStateRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tick:   tick,
		state:  state,
		logger: logger,
		now:    time.Now,
	}
}

// Register appends an interval task. Order of registration is order of
// execution within a pass.
func (s *Scheduler) Register(task Task) {
	s.tasks = append(s.tasks, task)
}

// RegisterDaily sets the once-per-day task and its local execution hour.
func (s *Scheduler) RegisterDaily(task Task, hour int, loc *time.Location) {
	s.daily = &task
	s.dailyHour = hour
	s.loc = loc
}

// Run blocks until the context is cancelled. A task already running
// when shutdown starts finishes its pass; nothing is interrupted
// mid-write beyond what the task's own context handling allows.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s.pass(ctx)
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	now := s.now()

	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		last, known, err := s.state.LastRun(ctx, task.Name)
		if err != nil {
			s.warn("task state unavailable", "task", task.Name, "error", err)
			continue
		}
		if known && now.Sub(last) < task.Interval {
			continue
		}
		s.runTask(ctx, task)
	}

	if s.daily == nil || ctx.Err() != nil {
		return
	}
	local := now.In(s.loc)
	if local.Hour() != s.dailyHour {
		return
	}
	last, known, err := s.state.LastRun(ctx, s.daily.Name)
	if err != nil {
		s.warn("task state unavailable", "task", s.daily.Name, "error", err)
		return
	}
	if known && sameDay(last.In(s.loc), local) {
		return
	}
	s.runTask(ctx, *s.daily)
}

// runTask executes one task and records success. A failed run is not
// recorded, so the task retries on the next tick instead of waiting a
// full interval.
func (s *Scheduler) runTask(ctx context.Context, task Task) {
	started := s.now()
	if err := task.Run(ctx); err != nil {
		s.warn("task failed", "task", task.Name, "error", err)
		return
	}
	if err := s.state.MarkRun(ctx, task.Name, s.now()); err != nil {
		s.warn("task state not persisted", "task", task.Name, "error", err)
		return
	}
	if s.logger != nil {
		s.logger.Info("task finished", "task", task.Name, "took", s.now().Sub(started))
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
