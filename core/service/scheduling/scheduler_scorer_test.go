package scheduling

import (
	"context"
	"testing"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

func defaultTestPrefs() *domain.SchedulingPreferences {
	return domain.DefaultPreferences(uuid.New())
}

func slotAt(start time.Time, minutes int) domain.TimeSlot {
	return domain.TimeSlot{
		Start:     start,
		End:       start.Add(time.Duration(minutes) * time.Minute),
		Available: true,
	}
}

func TestScoreTimeSlot(t *testing.T) {
	prefs := defaultTestPrefs()
	tuesday10 := date(2026, time.March, 3, 10, 0)

	t.Run("preferred mid-morning high-priority slot scores at the top", func(t *testing.T) {
		req := &domain.MeetingRequest{
			Title:           "Planning",
			DurationMinutes: 60,
			Priority:        domain.PriorityHigh,
			PreferredTimes:  []time.Time{tuesday10},
		}
		score := scoreTimeSlot(slotAt(tuesday10, 60), req, prefs, nil)
		// base 1.0 + morning 0.3 + Tuesday 0.1 + high 0.2 + preferred 0.5
		// + exact duration 0.2
		if score < 2.29 || score > 2.31 {
			t.Errorf("expected raw score 2.3, got %f", score)
		}
		if clamp01(score) < 0.9 {
			t.Errorf("presented confidence must be >= 0.9, got %f", clamp01(score))
		}
	})

	t.Run("late Friday slot scores worse than mid-morning Tuesday", func(t *testing.T) {
		req := &domain.MeetingRequest{Title: "Sync", DurationMinutes: 30}
		friday16 := date(2026, time.March, 6, 16, 0)
		good := scoreTimeSlot(slotAt(tuesday10, 30), req, prefs, nil)
		bad := scoreTimeSlot(slotAt(friday16, 30), req, prefs, nil)
		if bad >= good {
			t.Errorf("late Friday (%f) should score below Tuesday morning (%f)", bad, good)
		}
	})

	t.Run("back-to-back penalty applies against adjacent events", func(t *testing.T) {
		req := &domain.MeetingRequest{Title: "Sync", DurationMinutes: 30}
		adjacent := []domain.Commitment{{
			Kind:  domain.CommitmentEvent,
			Title: "Previous meeting",
			Start: date(2026, time.March, 3, 9, 0),
			End:   tuesday10,
		}}
		free := scoreTimeSlot(slotAt(tuesday10, 30), req, prefs, nil)
		packed := scoreTimeSlot(slotAt(tuesday10, 30), req, prefs, adjacent)
		if diff := free - packed; diff < 0.39 || diff > 0.41 {
			t.Errorf("expected a 0.4 back-to-back penalty, got %f", diff)
		}

		relaxed := defaultTestPrefs()
		relaxed.AvoidBackToBack = false
		unpenalized := scoreTimeSlot(slotAt(tuesday10, 30), req, relaxed, adjacent)
		if unpenalized != free {
			t.Errorf("penalty must not apply when back-to-back is allowed, got %f vs %f", unpenalized, free)
		}
	})

	t.Run("low priority scores below high priority", func(t *testing.T) {
		low := scoreTimeSlot(slotAt(tuesday10, 30), &domain.MeetingRequest{Priority: domain.PriorityLow}, prefs, nil)
		high := scoreTimeSlot(slotAt(tuesday10, 30), &domain.MeetingRequest{Priority: domain.PriorityHigh}, prefs, nil)
		if low >= high {
			t.Errorf("low (%f) should score below high (%f)", low, high)
		}
	})
}

func TestClamp01(t *testing.T) {
	if clamp01(2.3) != 1.0 {
		t.Error("scores above 1 must clamp to 1")
	}
	if clamp01(-0.5) != 0.0 {
		t.Error("scores below 0 must clamp to 0")
	}
	if clamp01(0.42) != 0.42 {
		t.Error("in-range scores must pass through")
	}
}

// nextTuesdayAt10 finds the next future Tuesday 10:00 UTC, at least a day
// out so it is never already in progress.
func nextTuesdayAt10() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != time.Tuesday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, time.UTC)
}

func TestFindOptimalMeetingTimes(t *testing.T) {
	userID := uuid.New()

	t.Run("preferred time wins on an empty calendar", func(t *testing.T) {
		env := newTestEnv()
		preferred := nextTuesdayAt10()

		slots, err := env.svc.FindOptimalMeetingTimes(context.Background(), userID, &domain.MeetingRequest{
			Title:           "Roadmap review",
			DurationMinutes: 60,
			Priority:        domain.PriorityHigh,
			PreferredTimes:  []time.Time{preferred},
		}, 14)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) == 0 {
			t.Fatal("expected suggestions on an empty calendar")
		}
		if len(slots) > 10 {
			t.Errorf("expected at most 10 suggestions, got %d", len(slots))
		}
		top := slots[0]
		if !top.Start.Equal(preferred) {
			t.Errorf("expected top slot at %v, got %v", preferred, top.Start)
		}
		if top.Confidence < 0.9 {
			t.Errorf("expected confidence >= 0.9, got %f", top.Confidence)
		}
		if top.Reasoning == "" {
			t.Error("suggestions must carry reasoning")
		}
		for _, s := range slots {
			if s.Confidence < 0 || s.Confidence > 1 {
				t.Errorf("confidence out of [0,1]: %f", s.Confidence)
			}
			if wd := s.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
				t.Errorf("suggestion on a non-working day: %v", s.Start)
			}
			if s.PrepTime != nil {
				t.Error("prep window must be absent unless requested")
			}
		}
	})

	t.Run("prep window precedes the slot when requested", func(t *testing.T) {
		env := newTestEnv()
		slots, err := env.svc.FindOptimalMeetingTimes(context.Background(), userID, &domain.MeetingRequest{
			Title:           "Board prep",
			DurationMinutes: 30,
			RequiresPrep:    true,
			PrepTimeMinutes: 45,
		}, 7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) == 0 {
			t.Fatal("expected suggestions")
		}
		for _, s := range slots {
			if s.PrepTime == nil {
				t.Fatal("expected a prep window")
			}
			if !s.PrepTime.End.Equal(s.Start) {
				t.Error("prep window must end exactly at the slot start")
			}
			if got := s.PrepTime.End.Sub(s.PrepTime.Start); got != 45*time.Minute {
				t.Errorf("expected a 45 minute prep window, got %v", got)
			}
		}
	})

	t.Run("deadline bounds the suggestions", func(t *testing.T) {
		env := newTestEnv()
		deadline := time.Now().UTC().AddDate(0, 0, 4)
		slots, err := env.svc.FindOptimalMeetingTimes(context.Background(), userID, &domain.MeetingRequest{
			Title:           "Urgent decision",
			DurationMinutes: 30,
			Deadline:        &deadline,
		}, 14)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range slots {
			if s.End.After(deadline) {
				t.Errorf("suggestion %v-%v ends after the deadline %v", s.Start, s.End, deadline)
			}
		}
	})

	t.Run("duration falls back to the preferred meeting length", func(t *testing.T) {
		env := newTestEnv()
		slots, err := env.svc.FindOptimalMeetingTimes(context.Background(), userID, &domain.MeetingRequest{
			Title: "Quick chat",
		}, 7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) == 0 {
			t.Fatal("expected suggestions")
		}
		want := time.Duration(domain.DefaultMeetingLengthMinutes) * time.Minute
		for _, s := range slots {
			if got := s.End.Sub(s.Start); got != want {
				t.Errorf("expected %v slots, got %v", want, got)
			}
		}
	})
}
