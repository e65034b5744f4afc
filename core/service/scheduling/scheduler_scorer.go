package scheduling

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

// Additive score adjustments applied on top of a 1.0 base. Raw scores rank
// candidates; the clamped [0, 1] value is what callers see as confidence.
const (
	scoreBase = 1.0

	scoreMorningBonus    = 0.3  // 09:00-10:59
	scoreAfternoonBonus  = 0.2  // 13:00-14:59
	scoreLateDayPenalty  = -0.2 // 16:00 onward
	scoreBackToBackCost  = -0.4
	scoreEarlyWeekBonus  = 0.1 // Monday, Tuesday
	scoreFridayPenalty   = -0.1
	scoreHighPriority    = 0.2
	scoreLowPriority     = -0.1
	scorePreferredNearby = 0.5 // within 2h of a preferred time
	scoreExactDuration   = 0.2

	preferredTimeRadius = 2 * time.Hour
	defaultSearchDays   = 14
	defaultPrepMinutes  = 30
	maxSuggestions      = 10
)

// scoreTimeSlot rates one available slot for a meeting request. The result
// is unbounded; rankSlots sorts by the raw value and clamps only for
// presentation.
func scoreTimeSlot(
	slot domain.TimeSlot,
	req *domain.MeetingRequest,
	prefs *domain.SchedulingPreferences,
	commitments []domain.Commitment,
) float64 {
	loc := prefs.Location()
	start := slot.Start.In(loc)
	score := scoreBase

	switch h := start.Hour(); {
	case h >= 9 && h < 11:
		score += scoreMorningBonus
	case h >= 13 && h < 15:
		score += scoreAfternoonBonus
	case h >= 16:
		score += scoreLateDayPenalty
	}

	if prefs.AvoidBackToBack && touchesBuffered(slot, prefs.BufferTimeMinutes, commitments) {
		score += scoreBackToBackCost
	}

	switch start.Weekday() {
	case time.Monday, time.Tuesday:
		score += scoreEarlyWeekBonus
	case time.Friday:
		score += scoreFridayPenalty
	}

	switch req.Priority {
	case domain.PriorityHigh:
		score += scoreHighPriority
	case domain.PriorityLow:
		score += scoreLowPriority
	}

	if nearPreferredTime(slot.Start, req.PreferredTimes) {
		score += scorePreferredNearby
	}

	if req.DurationMinutes > 0 && slot.End.Sub(slot.Start) == time.Duration(req.DurationMinutes)*time.Minute {
		score += scoreExactDuration
	}

	return score
}

// touchesBuffered reports whether the slot, padded by the buffer, brushes
// any event commitment. Drives the back-to-back penalty.
func touchesBuffered(slot domain.TimeSlot, bufferMinutes int, commitments []domain.Commitment) bool {
	pad := time.Duration(bufferMinutes) * time.Minute
	for i := range commitments {
		c := &commitments[i]
		if c.Kind != domain.CommitmentEvent {
			continue
		}
		if slot.Start.Add(-pad).Before(c.End) && slot.End.Add(pad).After(c.Start) {
			return true
		}
	}
	return false
}

func nearPreferredTime(start time.Time, preferred []time.Time) bool {
	for _, p := range preferred {
		d := start.Sub(p)
		if d < 0 {
			d = -d
		}
		if d <= preferredTimeRadius {
			return true
		}
	}
	return false
}

// distanceToPreferred breaks raw-score ties in favor of the candidate
// closest to an explicitly requested time.
func distanceToPreferred(start time.Time, preferred []time.Time) time.Duration {
	best := time.Duration(math.MaxInt64)
	for _, p := range preferred {
		d := start.Sub(p)
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
		}
	}
	return best
}

// FindOptimalMeetingTimes scores every free slot over the search horizon
// and returns the ten best candidates, each with a confidence in [0, 1]
// and human-readable reasoning.
func (s *Service) FindOptimalMeetingTimes(
	ctx context.Context,
	userID uuid.UUID,
	req *domain.MeetingRequest,
	searchDays int,
) ([]domain.SuggestedSlot, error) {
	if req == nil {
		return nil, fmt.Errorf("meeting request is required")
	}
	if searchDays <= 0 {
		searchDays = defaultSearchDays
	}

	prefs := s.loadPreferences(ctx, userID)
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = prefs.PreferredMeetingLengthMinutes
	}

	now := time.Now()
	horizon := now.AddDate(0, 0, searchDays)
	if req.Deadline != nil && req.Deadline.Before(horizon) {
		horizon = *req.Deadline
	}

	grid, err := s.GenerateAvailableSlots(ctx, userID, now, horizon, duration)
	if err != nil {
		return nil, err
	}

	commitments, err := s.fetchCommitments(ctx, userID, now, horizon, nil, false)
	if err != nil {
		return nil, err
	}

	type scored struct {
		slot  domain.TimeSlot
		score float64
	}
	var candidates []scored
	for _, slot := range grid {
		if !slot.Available || slot.Start.Before(now) {
			continue
		}
		if req.Deadline != nil && slot.End.After(*req.Deadline) {
			continue
		}
		candidates = append(candidates, scored{
			slot:  slot,
			score: scoreTimeSlot(slot, req, prefs, commitments),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if len(req.PreferredTimes) > 0 {
			di := distanceToPreferred(candidates[i].slot.Start, req.PreferredTimes)
			dj := distanceToPreferred(candidates[j].slot.Start, req.PreferredTimes)
			if di != dj {
				return di < dj
			}
		}
		return candidates[i].slot.Start.Before(candidates[j].slot.Start)
	})

	n := maxSuggestions
	if n > len(candidates) {
		n = len(candidates)
	}
	suggestions := make([]domain.SuggestedSlot, 0, n)
	for _, c := range candidates[:n] {
		sug := domain.SuggestedSlot{
			Start:      c.slot.Start,
			End:        c.slot.End,
			Confidence: clamp01(c.score),
			Reasoning:  slotReasoning(c.slot, req, prefs),
		}
		if req.RequiresPrep {
			prep := req.PrepTimeMinutes
			if prep <= 0 {
				prep = defaultPrepMinutes
			}
			sug.PrepTime = &domain.PrepWindow{
				Start: c.slot.Start.Add(-time.Duration(prep) * time.Minute),
				End:   c.slot.Start,
			}
		}
		suggestions = append(suggestions, sug)
	}
	return suggestions, nil
}

// slotReasoning explains a suggestion in plain language.
func slotReasoning(slot domain.TimeSlot, req *domain.MeetingRequest, prefs *domain.SchedulingPreferences) string {
	loc := prefs.Location()
	start := slot.Start.In(loc)

	parts := []string{start.Weekday().String()}
	switch h := start.Hour(); {
	case h < 12:
		parts = append(parts, "morning slot")
	case h < 15:
		parts = append(parts, "early afternoon slot")
	default:
		parts = append(parts, "late afternoon slot")
	}
	parts = append(parts, "no conflicting commitments")
	if nearPreferredTime(slot.Start, req.PreferredTimes) {
		parts = append(parts, "close to a requested time")
	}
	if req.Priority == domain.PriorityHigh {
		parts = append(parts, "prioritized for a high-priority meeting")
	}
	return strings.Join(parts, ", ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
