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

// CalendarAdapter implements out.CalendarRepository on the calendars table.
type CalendarAdapter struct {
	db *sqlx.DB
}

func NewCalendarAdapter(db *sqlx.DB) *CalendarAdapter {
	return &CalendarAdapter{db: db}
}

type calendarRow struct {
	ID                 int64          `db:"id"`
	UserID             uuid.UUID      `db:"user_id"`
	Name               string         `db:"name"`
	Provider           string         `db:"provider"`
	ProviderCalendarID string         `db:"provider_calendar_id"`
	IsPrimary          bool           `db:"is_primary"`
	SyncEnabled        bool           `db:"sync_enabled"`
	TimeZone           sql.NullString `db:"time_zone"`
	AccessRole         sql.NullString `db:"access_role"`
	Color              sql.NullString `db:"color"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r *calendarRow) toDomain() *domain.Calendar {
	c := &domain.Calendar{
		ID:                 r.ID,
		UserID:             r.UserID,
		Name:               r.Name,
		Provider:           domain.CalendarProvider(r.Provider),
		ProviderCalendarID: r.ProviderCalendarID,
		IsPrimary:          r.IsPrimary,
		SyncEnabled:        r.SyncEnabled,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.TimeZone.Valid {
		c.TimeZone = r.TimeZone.String
	}
	if r.AccessRole.Valid {
		c.AccessRole = r.AccessRole.String
	}
	if r.Color.Valid {
		c.Color = &r.Color.String
	}
	return c
}

// UpsertCalendar inserts or refreshes a calendar. The conflict target
// (user_id, provider, provider_calendar_id) makes sync replays idempotent;
// sync_enabled is only set on first insert so a user's manual choice
// survives later syncs.
func (a *CalendarAdapter) UpsertCalendar(ctx context.Context, cal *domain.Calendar) error {
	query := `INSERT INTO calendars (
			user_id, name, provider, provider_calendar_id,
			is_primary, sync_enabled, time_zone, access_role, color
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, provider, provider_calendar_id) DO UPDATE SET
			name = EXCLUDED.name,
			is_primary = EXCLUDED.is_primary,
			time_zone = EXCLUDED.time_zone,
			access_role = EXCLUDED.access_role,
			color = EXCLUDED.color,
			updated_at = NOW()
		RETURNING id, sync_enabled, created_at, updated_at`

	err := a.db.QueryRowxContext(ctx, query,
		cal.UserID,
		cal.Name,
		string(cal.Provider),
		cal.ProviderCalendarID,
		cal.IsPrimary,
		cal.SyncEnabled,
		newNullString(cal.TimeZone),
		newNullString(cal.AccessRole),
		nullString(cal.Color),
	).Scan(&cal.ID, &cal.SyncEnabled, &cal.CreatedAt, &cal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert calendar %q: %w", cal.ProviderCalendarID, err)
	}
	return nil
}

func (a *CalendarAdapter) ListCalendars(ctx context.Context, userID uuid.UUID) ([]*domain.Calendar, error) {
	var rows []calendarRow
	err := a.db.SelectContext(ctx, &rows,
		`SELECT * FROM calendars WHERE user_id = $1 ORDER BY is_primary DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return toDomainCalendars(rows), nil
}

func (a *CalendarAdapter) ListSyncEnabled(ctx context.Context, userID uuid.UUID) ([]*domain.Calendar, error) {
	var rows []calendarRow
	err := a.db.SelectContext(ctx, &rows,
		`SELECT * FROM calendars WHERE user_id = $1 AND sync_enabled ORDER BY is_primary DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sync-enabled calendars: %w", err)
	}
	return toDomainCalendars(rows), nil
}

// ListUsersWithSyncEnabled feeds the background sync worker.
func (a *CalendarAdapter) ListUsersWithSyncEnabled(ctx context.Context) ([]uuid.UUID, error) {
	var users []uuid.UUID
	err := a.db.SelectContext(ctx, &users,
		`SELECT DISTINCT user_id FROM calendars WHERE sync_enabled`)
	if err != nil {
		return nil, fmt.Errorf("list sync users: %w", err)
	}
	return users, nil
}

func (a *CalendarAdapter) CountCalendars(ctx context.Context, userID uuid.UUID) (total, enabled int, err error) {
	err = a.db.QueryRowxContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE sync_enabled)
		 FROM calendars WHERE user_id = $1`, userID).Scan(&total, &enabled)
	if err != nil {
		return 0, 0, fmt.Errorf("count calendars: %w", err)
	}
	return total, enabled, nil
}

func toDomainCalendars(rows []calendarRow) []*domain.Calendar {
	calendars := make([]*domain.Calendar, len(rows))
	for i := range rows {
		calendars[i] = rows[i].toDomain()
	}
	return calendars
}

func newNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
