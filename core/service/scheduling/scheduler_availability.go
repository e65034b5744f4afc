package scheduling

import (
	"context"
	"fmt"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

// GenerateAvailableSlots builds the availability grid for [start, end):
// fixed-duration slots inside working hours, each marked available or not
// against the user's commitments. Non-working days produce no slots, and a
// trailing partial slot that would cross the working-hours end is dropped.
func (s *Service) GenerateAvailableSlots(
	ctx context.Context,
	userID uuid.UUID,
	start, end time.Time,
	slotDurationMinutes int,
) ([]domain.TimeSlot, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range: end must be after start")
	}

	prefs := s.loadPreferences(ctx, userID)
	if slotDurationMinutes <= 0 {
		slotDurationMinutes = prefs.PreferredMeetingLengthMinutes
	}
	slotDur := time.Duration(slotDurationMinutes) * time.Minute

	cacheKey := gridCacheKey(userID, start, end, slotDurationMinutes)
	var cached []domain.TimeSlot
	if s.cache.GetJSON(ctx, cacheKey, &cached) {
		return cached, nil
	}

	commitments, err := s.fetchCommitments(ctx, userID, start, end, nil, true)
	if err != nil {
		return nil, err
	}

	loc := prefs.Location()
	var slots []domain.TimeSlot

	first := start.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		if !prefs.IsWorkingDay(day.Weekday()) {
			continue
		}
		dayStart, dayEnd := prefs.DayWindow(day)

		for slotStart := dayStart; ; slotStart = slotStart.Add(slotDur) {
			slotEnd := slotStart.Add(slotDur)
			if slotEnd.After(dayEnd) {
				break
			}
			slots = append(slots, domain.TimeSlot{
				Start:     slotStart,
				End:       slotEnd,
				Available: isFree(slotStart, slotEnd, commitments),
			})
		}
	}

	s.cache.SetJSON(ctx, cacheKey, slots, s.gridCacheTTL)
	return slots, nil
}

// isFree reports whether [start, end) touches no commitment. Half-open
// semantics: a slot starting exactly when a commitment ends is free.
func isFree(start, end time.Time, commitments []domain.Commitment) bool {
	for i := range commitments {
		if commitments[i].Overlaps(start, end) {
			return false
		}
	}
	return true
}
