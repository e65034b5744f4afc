package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TaskAdapter implements out.TaskRepository. Read-only: the scheduler only
// checks tasks for conflicts, it never manages them.
type TaskAdapter struct {
	db *sqlx.DB
}

func NewTaskAdapter(db *sqlx.DB) *TaskAdapter {
	return &TaskAdapter{db: db}
}

type taskRow struct {
	ID             int64        `db:"id"`
	UserID         uuid.UUID    `db:"user_id"`
	Title          string       `db:"title"`
	Status         string       `db:"status"`
	Priority       string       `db:"priority"`
	ScheduledStart sql.NullTime `db:"scheduled_start"`
	ScheduledEnd   sql.NullTime `db:"scheduled_end"`
	DueDate        sql.NullTime `db:"due_date"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r *taskRow) toDomain() *domain.Task {
	t := &domain.Task{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Status:    domain.TaskStatus(r.Status),
		Priority:  domain.Priority(r.Priority),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ScheduledStart.Valid {
		t.ScheduledStart = &r.ScheduledStart.Time
	}
	if r.ScheduledEnd.Valid {
		t.ScheduledEnd = &r.ScheduledEnd.Time
	}
	if r.DueDate.Valid {
		t.DueDate = &r.DueDate.Time
	}
	return t
}

// ListOpenTasksInRange returns open tasks whose occupied interval overlaps
// [start, end). Unscheduled tasks occupy the hour before their due date,
// so the due-date branch widens by that assumption.
func (a *TaskAdapter) ListOpenTasksInRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*domain.Task, error) {
	query := `SELECT * FROM tasks
		WHERE user_id = $1 AND status = $2
		  AND (
			(scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL
			 AND scheduled_start < $3 AND scheduled_end > $4)
			OR
			(scheduled_start IS NULL AND due_date IS NOT NULL
			 AND due_date > $4 AND due_date - $5::interval < $3)
		  )
		ORDER BY due_date NULLS LAST`

	assumed := fmt.Sprintf("%d minutes", int(domain.AssumedTaskDuration.Minutes()))
	var rows []taskRow
	err := a.db.SelectContext(ctx, &rows, query,
		userID, string(domain.TaskStatusOpen), end, start, assumed)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}

	tasks := make([]*domain.Task, len(rows))
	for i := range rows {
		tasks[i] = rows[i].toDomain()
	}
	return tasks, nil
}
