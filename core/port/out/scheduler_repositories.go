package out

import (
	"context"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

// EventRepository owns the events table.
type EventRepository interface {
	GetEvent(ctx context.Context, id int64) (*domain.CalendarEvent, error)
	ListEventsInRange(ctx context.Context, filter *domain.EventRangeFilter) ([]*domain.CalendarEvent, error)

	CreateEvent(ctx context.Context, event *domain.CalendarEvent) error
	UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error
	DeleteEvent(ctx context.Context, id int64) error

	// Sync support.
	ListByCalendarInRange(ctx context.Context, userID uuid.UUID, calendarID int64, start, end time.Time) ([]*domain.CalendarEvent, error)
	FindStaleRemoteEvents(ctx context.Context, userID uuid.UUID, notTouchedSince time.Time) ([]*domain.CalendarEvent, error)

	// Status aggregation.
	LastUpdatedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error)
	CountEvents(ctx context.Context, userID uuid.UUID) (int, error)
	CountEventsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountEventsByStatus(ctx context.Context, userID uuid.UUID, statuses []domain.EventStatus) (int, error)
}

// TaskRepository reads tasks for conflict checking. Task CRUD belongs to
// the dashboard, not the scheduler.
type TaskRepository interface {
	ListOpenTasksInRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*domain.Task, error)
}

// CalendarRepository owns the calendars table.
type CalendarRepository interface {
	// UpsertCalendar is keyed on (user_id, provider, provider_calendar_id)
	// so re-running a sync with unchanged remote state is idempotent.
	UpsertCalendar(ctx context.Context, cal *domain.Calendar) error

	ListCalendars(ctx context.Context, userID uuid.UUID) ([]*domain.Calendar, error)
	ListSyncEnabled(ctx context.Context, userID uuid.UUID) ([]*domain.Calendar, error)
	ListUsersWithSyncEnabled(ctx context.Context) ([]uuid.UUID, error)
	CountCalendars(ctx context.Context, userID uuid.UUID) (total, enabled int, err error)
}

// PreferencesRepository reads scheduling preferences. Returns nil (no
// error) when the user has never saved any; callers apply defaults.
type PreferencesRepository interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.SchedulingPreferences, error)
}

// AuditRepository appends to the audit log. Implementations must swallow
// their own failures; audit writes never propagate errors upward.
type AuditRepository interface {
	Append(ctx context.Context, rec *domain.AuditRecord)
}
