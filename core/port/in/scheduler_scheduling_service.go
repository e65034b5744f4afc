// Package in defines inbound ports (driving ports) consumed by HTTP
// handlers and background workers.
package in

import (
	"context"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

// SchedulingService is the scheduling engine's public surface. All
// operations are request-scoped and read commitments fresh from storage.
type SchedulingService interface {
	CheckConflicts(ctx context.Context, userID uuid.UUID, req *ConflictCheckRequest) (*domain.ConflictCheckResult, error)
	GenerateAvailableSlots(ctx context.Context, userID uuid.UUID, start, end time.Time, slotDurationMinutes int) ([]domain.TimeSlot, error)
	FindOptimalMeetingTimes(ctx context.Context, userID uuid.UUID, req *domain.MeetingRequest, searchDays int) ([]domain.SuggestedSlot, error)
	AutoScheduleMeeting(ctx context.Context, userID uuid.UUID, req *domain.MeetingRequest) *domain.AutoScheduleResult
}

// ConflictCheckRequest describes one proposed interval to validate.
type ConflictCheckRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Event to ignore while checking, e.g. when rescheduling it.
	ExcludeEventID *int64 `json:"exclude_event_id,omitempty"`

	IncludeAlternatives bool `json:"include_alternatives,omitempty"`

	// Optional per-request overrides of the stored preferences.
	Config *ConflictCheckConfig `json:"config,omitempty"`
}

// ConflictCheckConfig tunes one conflict check. Zero values fall back to
// the user's stored preferences. The include flags are pointers so a
// partial override that omits them keeps the checks enabled instead of
// reading as false.
type ConflictCheckConfig struct {
	BufferMinutes        int   `json:"buffer_minutes,omitempty"`
	TravelTimeMinutes    int   `json:"travel_time_minutes,omitempty"`
	IncludeTravelTime    *bool `json:"include_travel_time,omitempty"`
	IncludeTaskConflicts *bool `json:"include_task_conflicts,omitempty"`
	LookAheadDays        int   `json:"look_ahead_days,omitempty"`
	MaxAlternatives      int   `json:"max_alternatives,omitempty"`
}
