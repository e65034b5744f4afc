package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults applied when a user has no stored preferences, or stored a
// partial row. Mirrors the dashboard's settings screen defaults.
const (
	DefaultWorkStart            = "09:00"
	DefaultWorkEnd              = "17:00"
	DefaultBufferMinutes        = 15
	DefaultMeetingLengthMinutes = 30
	DefaultMaxMeetingsPerDay    = 8
	DefaultTimeZone             = "UTC"
)

// SchedulingPreferences is the typed form of the stored preference row.
// Zero/missing fields are filled by Normalize; malformed values are
// replaced rather than silently accepted.
type SchedulingPreferences struct {
	UserID uuid.UUID `json:"user_id"`

	WorkStart string `json:"work_start"` // "HH:MM"
	WorkEnd   string `json:"work_end"`   // "HH:MM"

	// Weekdays 0 (Sunday) through 6 (Saturday).
	WorkingDays []int `json:"working_days"`

	TimeZone string `json:"time_zone"`

	BufferTimeMinutes             int  `json:"buffer_time_minutes"`
	TravelTimeMinutes             int  `json:"travel_time_minutes"`
	PreferredMeetingLengthMinutes int  `json:"preferred_meeting_length_minutes"`
	AvoidBackToBack               bool `json:"avoid_back_to_back"`
	MaxMeetingsPerDay             int  `json:"max_meetings_per_day"`
}

// DefaultPreferences returns the full default set for a user.
func DefaultPreferences(userID uuid.UUID) *SchedulingPreferences {
	return &SchedulingPreferences{
		UserID:                        userID,
		WorkStart:                     DefaultWorkStart,
		WorkEnd:                       DefaultWorkEnd,
		WorkingDays:                   []int{1, 2, 3, 4, 5},
		TimeZone:                      DefaultTimeZone,
		BufferTimeMinutes:             DefaultBufferMinutes,
		TravelTimeMinutes:             30,
		PreferredMeetingLengthMinutes: DefaultMeetingLengthMinutes,
		AvoidBackToBack:               true,
		MaxMeetingsPerDay:             DefaultMaxMeetingsPerDay,
	}
}

// Normalize fills missing or malformed fields with defaults in place.
func (p *SchedulingPreferences) Normalize() {
	d := DefaultPreferences(p.UserID)

	if _, _, err := parseClock(p.WorkStart); err != nil {
		p.WorkStart = d.WorkStart
	}
	if _, _, err := parseClock(p.WorkEnd); err != nil {
		p.WorkEnd = d.WorkEnd
	}
	if len(p.WorkingDays) == 0 {
		p.WorkingDays = d.WorkingDays
	} else {
		days := p.WorkingDays[:0]
		for _, wd := range p.WorkingDays {
			if wd >= 0 && wd <= 6 {
				days = append(days, wd)
			}
		}
		if len(days) == 0 {
			days = d.WorkingDays
		}
		p.WorkingDays = days
	}
	if p.TimeZone == "" {
		p.TimeZone = d.TimeZone
	}
	if _, err := time.LoadLocation(p.TimeZone); err != nil {
		p.TimeZone = d.TimeZone
	}
	if p.BufferTimeMinutes <= 0 {
		p.BufferTimeMinutes = d.BufferTimeMinutes
	}
	if p.TravelTimeMinutes <= 0 {
		p.TravelTimeMinutes = d.TravelTimeMinutes
	}
	if p.PreferredMeetingLengthMinutes <= 0 {
		p.PreferredMeetingLengthMinutes = d.PreferredMeetingLengthMinutes
	}
	if p.MaxMeetingsPerDay <= 0 {
		p.MaxMeetingsPerDay = d.MaxMeetingsPerDay
	}
}

// IsWorkingDay reports whether the weekday is one of the user's working
// days.
func (p *SchedulingPreferences) IsWorkingDay(day time.Weekday) bool {
	for _, wd := range p.WorkingDays {
		if wd == int(day) {
			return true
		}
	}
	return false
}

// Location resolves the user's time zone. Normalize guarantees validity,
// so a load failure here falls back to UTC without error.
func (p *SchedulingPreferences) Location() *time.Location {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayWindow returns the working window for the calendar day containing t,
// in the user's time zone.
func (p *SchedulingPreferences) DayWindow(t time.Time) (start, end time.Time) {
	loc := p.Location()
	day := t.In(loc)
	sh, sm, _ := parseClock(p.WorkStart)
	eh, em, _ := parseClock(p.WorkEnd)
	start = time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc)
	end = time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc)
	return start, end
}

func parseClock(s string) (hour, min int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &min); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("clock out of range: %q", s)
	}
	return hour, min, nil
}
