package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"webscout/internal/ports"
)

var _ ports.TaskStateRepository = (*TaskStateRepo)(nil)

// TaskStateRepo persists per-task last-success timestamps, which is
// what makes scheduler intervals survive restarts.
type TaskStateRepo struct {
	db *sql.DB
}

func NewTaskStateRepo(db *sql.DB) *TaskStateRepo {
	return &TaskStateRepo{db: db}
}

// LastRun returns the task's last success time. The second result is
// false when the task has never succeeded.
func (r *TaskStateRepo) LastRun(ctx context.Context, name string) (time.Time, bool, error) {
	var last time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT last_run FROM scheduler_state WHERE task_name = $1`, name).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last run for %s: %w", name, err)
	}
	return last, true, nil
}

func (r *TaskStateRepo) MarkRun(ctx context.Context, name string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduler_state (task_name, last_run)
		VALUES ($1, $2)
		ON CONFLICT (task_name) DO UPDATE SET last_run = EXCLUDED.last_run`,
		name, at); err != nil {
		return fmt.Errorf("mark run for %s: %w", name, err)
	}
	return nil
}
