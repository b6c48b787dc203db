package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTaskState struct {
	runs map[string]time.Time
	err  error
}

func newMemTaskState() *memTaskState {
	return &memTaskState{runs: map[string]time.Time{}}
}

func (m *memTaskState) LastRun(_ context.Context, name string) (time.Time, bool, error) {
	if m.err != nil {
		return time.Time{}, false, m.err
	}
	t, ok := m.runs[name]
	return t, ok, nil
}

func (m *memTaskState) MarkRun(_ context.Context, name string, at time.Time) error {
	m.runs[name] = at
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSchedulerRunsDueTasksInOrder(t *testing.T) {
	t.Parallel()

	state := newMemTaskState()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(time.Second, state, nil)
	s.now = fixedClock(now)

	var order []string
	for _, name := range []string{"crawl", "score", "summarize"} {
		name := name
		s.Register(Task{Name: name, Interval: time.Hour, Run: func(context.Context) error {
			order = append(order, name)
			return nil
		}})
	}

	s.pass(context.Background())

	assert.Equal(t, []string{"crawl", "score", "summarize"}, order)
	assert.Equal(t, now, state.runs["crawl"])
	assert.Equal(t, now, state.runs["score"])
}

func TestSchedulerSkipsTaskInsideInterval(t *testing.T) {
	t.Parallel()

	state := newMemTaskState()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	state.runs["crawl"] = now.Add(-30 * time.Minute)

	s := NewScheduler(time.Second, state, nil)
	s.now = fixedClock(now)

	calls := 0
	s.Register(Task{Name: "crawl", Interval: time.Hour, Run: func(context.Context) error {
		calls++
		return nil
	}})

	s.pass(context.Background())
	assert.Zero(t, calls)

	// a persisted last-run older than the interval makes the task due,
	// which is what carries the schedule across restarts
	state.runs["crawl"] = now.Add(-2 * time.Hour)
	s.pass(context.Background())
	assert.Equal(t, 1, calls)
}

func TestSchedulerDoesNotMarkFailedRuns(t *testing.T) {
	t.Parallel()

	state := newMemTaskState()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(time.Second, state, nil)
	s.now = fixedClock(now)

	calls := 0
	s.Register(Task{Name: "score", Interval: time.Hour, Run: func(context.Context) error {
		calls++
		return errors.New("provider down")
	}})

	s.pass(context.Background())
	s.pass(context.Background())

	// failure leaves no state, so the task retries on the next tick
	assert.Equal(t, 2, calls)
	assert.NotContains(t, state.runs, "score")
}

func TestSchedulerDailyTaskGating(t *testing.T) {
	t.Parallel()

	state := newMemTaskState()
	s := NewScheduler(time.Second, state, nil)

	calls := 0
	s.RegisterDaily(Task{Name: "index", Run: func(context.Context) error {
		calls++
		return nil
	}}, 3, time.UTC)

	// outside the window nothing runs
	s.now = fixedClock(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	s.pass(context.Background())
	assert.Zero(t, calls)

	// inside the window it runs exactly once
	s.now = fixedClock(time.Date(2026, 8, 31, 3, 5, 0, 0, time.UTC))
	s.pass(context.Background())
	s.pass(context.Background())
	assert.Equal(t, 1, calls)

	// next day, same window, it runs again
	s.now = fixedClock(time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC))
	s.pass(context.Background())
	assert.Equal(t, 2, calls)
}

func TestSchedulerContinuesWhenStateUnavailable(t *testing.T) {
	t.Parallel()

	state := newMemTaskState()
	state.err = errors.New("connection refused")
	s := NewScheduler(time.Second, state, nil)
	s.now = fixedClock(time.Now())

	calls := 0
	s.Register(Task{Name: "crawl", Interval: time.Hour, Run: func(context.Context) error {
		calls++
		return nil
	}})

	// state errors skip the task rather than running it unguarded
	s.pass(context.Background())
	assert.Zero(t, calls)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := NewScheduler(10*time.Millisecond, newMemTaskState(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
