package domain

import (
	"time"

	"github.com/google/uuid"
)

type CalendarProvider string

const (
	CalendarProviderGoogle CalendarProvider = "google"
)

type Calendar struct {
	ID                 int64            `json:"id"`
	UserID             uuid.UUID        `json:"user_id"`
	Name               string           `json:"name"`
	Provider           CalendarProvider `json:"provider"`
	ProviderCalendarID string           `json:"provider_calendar_id"`
	IsPrimary          bool             `json:"is_primary"`
	SyncEnabled        bool             `json:"sync_enabled"`
	TimeZone           string           `json:"time_zone,omitempty"`
	AccessRole         string           `json:"access_role,omitempty"`
	Color              *string          `json:"color,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type EventStatus string

const (
	EventStatusConfirmed    EventStatus = "confirmed"
	EventStatusPending      EventStatus = "pending"
	EventStatusCancelled    EventStatus = "cancelled"
	EventStatusReviewNeeded EventStatus = "review_needed"
)

// ProviderEventStatus maps a remote provider status onto a local one.
// Anything unrecognized lands on pending so it surfaces in the UI.
func ProviderEventStatus(remote string) EventStatus {
	switch remote {
	case "confirmed":
		return EventStatusConfirmed
	case "tentative":
		return EventStatusPending
	case "cancelled":
		return EventStatusCancelled
	default:
		return EventStatusPending
	}
}

type CalendarEvent struct {
	ID            int64     `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	CalendarID    *int64    `json:"calendar_id,omitempty"`
	GoogleEventID *string   `json:"google_event_id,omitempty"`

	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Attendees []string    `json:"attendees,omitempty"`
	Status    EventStatus `json:"status"`

	// Set when the event was committed by the auto-scheduler.
	AIGenerated     bool     `json:"ai_generated"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`

	// Raw provider payload, kept for debugging sync decisions.
	GoogleData []byte `json:"-"`

	// Reconciliation note, e.g. why an event was flagged review_needed.
	SyncNote *string `json:"sync_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventRangeFilter selects events overlapping [Start, End).
type EventRangeFilter struct {
	UserID uuid.UUID
	Start  time.Time
	End    time.Time

	// Optional: applied only when non-nil. Replaces the empty-string
	// sentinel exclusion the dashboard frontend used.
	ExcludeEventID *int64

	CalendarID      *int64
	IncludeStatuses []EventStatus
}
