package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PreferencesAdapter implements out.PreferencesRepository. The scheduler
// only reads preferences; the dashboard's settings screen owns writes.
type PreferencesAdapter struct {
	db *sqlx.DB
}

func NewPreferencesAdapter(db *sqlx.DB) *PreferencesAdapter {
	return &PreferencesAdapter{db: db}
}

type preferencesRow struct {
	UserID                 uuid.UUID      `db:"user_id"`
	WorkStart              sql.NullString `db:"work_start"`
	WorkEnd                sql.NullString `db:"work_end"`
	WorkingDays            pq.Int64Array  `db:"working_days"`
	TimeZone               sql.NullString `db:"time_zone"`
	BufferTimeMinutes      sql.NullInt64  `db:"buffer_time_minutes"`
	TravelTimeMinutes      sql.NullInt64  `db:"travel_time_minutes"`
	PreferredMeetingLength sql.NullInt64  `db:"preferred_meeting_length_minutes"`
	AvoidBackToBack        sql.NullBool   `db:"avoid_back_to_back"`
	MaxMeetingsPerDay      sql.NullInt64  `db:"max_meetings_per_day"`
}

// toDomain maps the row as stored; missing columns stay zero and are
// filled by Normalize at the call site.
func (r *preferencesRow) toDomain() *domain.SchedulingPreferences {
	p := &domain.SchedulingPreferences{
		UserID:    r.UserID,
		WorkStart: r.WorkStart.String,
		WorkEnd:   r.WorkEnd.String,
		TimeZone:  r.TimeZone.String,
	}
	for _, d := range r.WorkingDays {
		p.WorkingDays = append(p.WorkingDays, int(d))
	}
	p.BufferTimeMinutes = int(r.BufferTimeMinutes.Int64)
	p.TravelTimeMinutes = int(r.TravelTimeMinutes.Int64)
	p.PreferredMeetingLengthMinutes = int(r.PreferredMeetingLength.Int64)
	p.MaxMeetingsPerDay = int(r.MaxMeetingsPerDay.Int64)
	if r.AvoidBackToBack.Valid {
		p.AvoidBackToBack = r.AvoidBackToBack.Bool
	} else {
		p.AvoidBackToBack = true
	}
	return p
}

// GetPreferences returns nil (no error) when the user never saved any.
func (a *PreferencesAdapter) GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.SchedulingPreferences, error) {
	var row preferencesRow
	err := a.db.QueryRowxContext(ctx,
		`SELECT * FROM scheduling_preferences WHERE user_id = $1`, userID).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return row.toDomain(), nil
}
