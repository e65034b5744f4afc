package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Task struct {
	ID     int64      `json:"id"`
	UserID uuid.UUID  `json:"user_id"`
	Title  string     `json:"title"`
	Status TaskStatus `json:"status"`

	Priority Priority `json:"priority"`

	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Unscheduled tasks with only a due date are assumed to occupy this long,
// ending at the due date, for conflict purposes.
const AssumedTaskDuration = time.Hour

// Interval returns the time span the task occupies for conflict checks.
// Explicitly scheduled tasks use their scheduled window; otherwise a task
// with a due date is assumed to occupy the hour ending at the due date.
// The second return is false when the task occupies no time at all.
func (t *Task) Interval() (start, end time.Time, ok bool) {
	if t.ScheduledStart != nil && t.ScheduledEnd != nil {
		return *t.ScheduledStart, *t.ScheduledEnd, true
	}
	if t.DueDate != nil {
		return t.DueDate.Add(-AssumedTaskDuration), *t.DueDate, true
	}
	return time.Time{}, time.Time{}, false
}
