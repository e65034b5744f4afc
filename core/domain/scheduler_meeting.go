package domain

import "time"

// MeetingRequest is the transient input to the auto-scheduler. Typically
// produced upstream from AI email analysis; the engine only consumes it.
type MeetingRequest struct {
	Title           string      `json:"title"`
	Description     *string     `json:"description,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	Attendees       []string    `json:"attendees,omitempty"`
	PreferredTimes  []time.Time `json:"preferred_times,omitempty"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	Priority        Priority    `json:"priority"`
	Location        *string     `json:"location,omitempty"`
	RequiresPrep    bool        `json:"requires_prep,omitempty"`
	PrepTimeMinutes int         `json:"prep_time_minutes,omitempty"`
}

// PrepWindow is the preparation block immediately preceding a suggested
// slot.
type PrepWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SuggestedSlot is one scored candidate for a meeting request.
type SuggestedSlot struct {
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Confidence float64     `json:"confidence"` // [0, 1]
	Reasoning  string      `json:"reasoning"`
	Conflicts  []string    `json:"conflicts,omitempty"`
	PrepTime   *PrepWindow `json:"prep_time,omitempty"`
}

// AutoScheduleResult is the best-effort outcome of auto-scheduling. Never
// carries an error; failures are expressed through Success=false.
type AutoScheduleResult struct {
	Success       bool           `json:"success"`
	SuggestedSlot *SuggestedSlot `json:"suggested_slot,omitempty"`
	EventID       *int64         `json:"event_id,omitempty"`
	Conflicts     []ConflictInfo `json:"conflicts,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}
