// Package persistence provides PostgreSQL adapters implementing the
// outbound storage ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EventAdapter implements out.EventRepository on the events table.
type EventAdapter struct {
	db *sqlx.DB
}

func NewEventAdapter(db *sqlx.DB) *EventAdapter {
	return &EventAdapter{db: db}
}

// eventRow is the database shape of a calendar event.
type eventRow struct {
	ID              int64           `db:"id"`
	UserID          uuid.UUID       `db:"user_id"`
	CalendarID      sql.NullInt64   `db:"calendar_id"`
	GoogleEventID   sql.NullString  `db:"google_event_id"`
	Title           string          `db:"title"`
	Description     sql.NullString  `db:"description"`
	Location        sql.NullString  `db:"location"`
	StartTime       time.Time       `db:"start_time"`
	EndTime         time.Time       `db:"end_time"`
	Attendees       pq.StringArray  `db:"attendees"`
	Status          string          `db:"status"`
	AIGenerated     bool            `db:"ai_generated"`
	ConfidenceScore sql.NullFloat64 `db:"confidence_score"`
	GoogleData      []byte          `db:"google_data"`
	SyncNote        sql.NullString  `db:"sync_note"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r *eventRow) toDomain() *domain.CalendarEvent {
	e := &domain.CalendarEvent{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Attendees:   []string(r.Attendees),
		Status:      domain.EventStatus(r.Status),
		AIGenerated: r.AIGenerated,
		GoogleData:  r.GoogleData,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.CalendarID.Valid {
		e.CalendarID = &r.CalendarID.Int64
	}
	if r.GoogleEventID.Valid {
		e.GoogleEventID = &r.GoogleEventID.String
	}
	if r.Description.Valid {
		e.Description = &r.Description.String
	}
	if r.Location.Valid {
		e.Location = &r.Location.String
	}
	if r.ConfidenceScore.Valid {
		e.ConfidenceScore = &r.ConfidenceScore.Float64
	}
	if r.SyncNote.Valid {
		e.SyncNote = &r.SyncNote.String
	}
	return e
}

func (a *EventAdapter) GetEvent(ctx context.Context, id int64) (*domain.CalendarEvent, error) {
	var row eventRow
	err := a.db.QueryRowxContext(ctx, `SELECT * FROM events WHERE id = $1`, id).StructScan(&row)
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListEventsInRange returns events overlapping [Start, End), half-open on
// both sides so back-to-back events never collide.
func (a *EventAdapter) ListEventsInRange(ctx context.Context, filter *domain.EventRangeFilter) ([]*domain.CalendarEvent, error) {
	query := `SELECT * FROM events
		WHERE user_id = ? AND start_time < ? AND end_time > ?`
	args := []any{filter.UserID, filter.End, filter.Start}

	if filter.ExcludeEventID != nil {
		query += ` AND id != ?`
		args = append(args, *filter.ExcludeEventID)
	}
	if filter.CalendarID != nil {
		query += ` AND calendar_id = ?`
		args = append(args, *filter.CalendarID)
	}
	if len(filter.IncludeStatuses) > 0 {
		statuses := make([]string, len(filter.IncludeStatuses))
		for i, s := range filter.IncludeStatuses {
			statuses[i] = string(s)
		}
		query += ` AND status IN (?)`
		args = append(args, statuses)
	}
	query += ` ORDER BY start_time`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build range query: %w", err)
	}
	query = a.db.Rebind(query)

	var rows []eventRow
	if err := a.db.SelectContext(ctx, &rows, query, inArgs...); err != nil {
		return nil, fmt.Errorf("list events in range: %w", err)
	}
	return toDomainEvents(rows), nil
}

func (a *EventAdapter) CreateEvent(ctx context.Context, event *domain.CalendarEvent) error {
	query := `INSERT INTO events (
			user_id, calendar_id, google_event_id, title, description, location,
			start_time, end_time, attendees, status, ai_generated,
			confidence_score, google_data, sync_note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := a.db.QueryRowxContext(ctx, query,
		event.UserID,
		nullInt64(event.CalendarID),
		nullString(event.GoogleEventID),
		event.Title,
		nullString(event.Description),
		nullString(event.Location),
		event.StartTime,
		event.EndTime,
		pq.StringArray(event.Attendees),
		string(event.Status),
		event.AIGenerated,
		nullFloat64(event.ConfidenceScore),
		event.GoogleData,
		nullString(event.SyncNote),
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (a *EventAdapter) UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error {
	query := `UPDATE events SET
			calendar_id = $1, google_event_id = $2, title = $3, description = $4,
			location = $5, start_time = $6, end_time = $7, attendees = $8,
			status = $9, confidence_score = $10, google_data = $11,
			sync_note = $12, updated_at = NOW()
		WHERE id = $13`

	result, err := a.db.ExecContext(ctx, query,
		nullInt64(event.CalendarID),
		nullString(event.GoogleEventID),
		event.Title,
		nullString(event.Description),
		nullString(event.Location),
		event.StartTime,
		event.EndTime,
		pq.StringArray(event.Attendees),
		string(event.Status),
		nullFloat64(event.ConfidenceScore),
		event.GoogleData,
		nullString(event.SyncNote),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("update event %d: %w", event.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (a *EventAdapter) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}

func (a *EventAdapter) ListByCalendarInRange(ctx context.Context, userID uuid.UUID, calendarID int64, start, end time.Time) ([]*domain.CalendarEvent, error) {
	query := `SELECT * FROM events
		WHERE user_id = $1 AND calendar_id = $2 AND start_time < $3 AND end_time > $4
		ORDER BY start_time`

	var rows []eventRow
	if err := a.db.SelectContext(ctx, &rows, query, userID, calendarID, end, start); err != nil {
		return nil, fmt.Errorf("list events by calendar: %w", err)
	}
	return toDomainEvents(rows), nil
}

// FindStaleRemoteEvents returns synced events that have not been touched
// by any reconciliation since the cutoff.
func (a *EventAdapter) FindStaleRemoteEvents(ctx context.Context, userID uuid.UUID, notTouchedSince time.Time) ([]*domain.CalendarEvent, error) {
	query := `SELECT * FROM events
		WHERE user_id = $1 AND google_event_id IS NOT NULL
		  AND updated_at < $2 AND status != $3
		ORDER BY updated_at`

	var rows []eventRow
	err := a.db.SelectContext(ctx, &rows, query, userID, notTouchedSince, string(domain.EventStatusReviewNeeded))
	if err != nil {
		return nil, fmt.Errorf("find stale events: %w", err)
	}
	return toDomainEvents(rows), nil
}

func (a *EventAdapter) LastUpdatedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	var last sql.NullTime
	err := a.db.QueryRowxContext(ctx,
		`SELECT MAX(updated_at) FROM events WHERE user_id = $1`, userID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last updated at: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (a *EventAdapter) CountEvents(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := a.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM events WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (a *EventAdapter) CountEventsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := a.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM events WHERE user_id = $1 AND updated_at > $2`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events since: %w", err)
	}
	return n, nil
}

func (a *EventAdapter) CountEventsByStatus(ctx context.Context, userID uuid.UUID, statuses []domain.EventStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM events WHERE user_id = ? AND status IN (?)`, userID, strs)
	if err != nil {
		return 0, fmt.Errorf("build status query: %w", err)
	}
	query = a.db.Rebind(query)

	var n int
	if err := a.db.QueryRowxContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events by status: %w", err)
	}
	return n, nil
}

func toDomainEvents(rows []eventRow) []*domain.CalendarEvent {
	events := make([]*domain.CalendarEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toDomain()
	}
	return events
}

// Null helpers shared by the adapters in this package.

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
