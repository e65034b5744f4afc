package scheduling

import (
	"context"
	"testing"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

// The first week of March 2026: Sunday the 1st through Saturday the 7th.

func TestGenerateAvailableSlots(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()

	monday := date(2026, time.March, 2, 0, 0)

	t.Run("full working day yields contiguous slots", func(t *testing.T) {
		slots, err := env.svc.GenerateAvailableSlots(context.Background(), userID, monday, monday.AddDate(0, 0, 1), 30)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 09:00-17:00 in 30-minute steps.
		if len(slots) != 16 {
			t.Fatalf("expected 16 slots, got %d", len(slots))
		}
		if !slots[0].Start.Equal(date(2026, time.March, 2, 9, 0)) {
			t.Errorf("first slot should start at work start, got %v", slots[0].Start)
		}
		last := slots[len(slots)-1]
		if !last.End.Equal(date(2026, time.March, 2, 17, 0)) {
			t.Errorf("last slot should end at work end, got %v", last.End)
		}
		for i, s := range slots {
			if !s.Available {
				t.Errorf("slot %d should be available with no commitments", i)
			}
		}
	})

	t.Run("trailing partial slot is dropped", func(t *testing.T) {
		// 45-minute slots into an 8-hour day: 10 fit, the 11th would
		// cross 17:00.
		slots, err := env.svc.GenerateAvailableSlots(context.Background(), userID, monday, monday.AddDate(0, 0, 1), 45)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) != 10 {
			t.Fatalf("expected 10 slots, got %d", len(slots))
		}
		if slots[len(slots)-1].End.After(date(2026, time.March, 2, 17, 0)) {
			t.Error("no slot may cross the end of working hours")
		}
	})

	t.Run("non-working days produce no slots", func(t *testing.T) {
		sunday := date(2026, time.March, 1, 0, 0)
		slots, err := env.svc.GenerateAvailableSlots(context.Background(), userID, sunday, sunday.AddDate(0, 0, 1), 30)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) != 0 {
			t.Errorf("expected no slots on a Sunday, got %d", len(slots))
		}
	})

	t.Run("busy intervals are marked unavailable", func(t *testing.T) {
		env := newTestEnv()
		env.events.events = []*domain.CalendarEvent{{
			ID:        1,
			UserID:    userID,
			Title:     "Standup",
			StartTime: date(2026, time.March, 2, 10, 0),
			EndTime:   date(2026, time.March, 2, 11, 0),
			Status:    domain.EventStatusConfirmed,
		}}

		slots, err := env.svc.GenerateAvailableSlots(context.Background(), userID, monday, monday.AddDate(0, 0, 1), 30)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range slots {
			overlapping := s.Start.Before(date(2026, time.March, 2, 11, 0)) &&
				s.End.After(date(2026, time.March, 2, 10, 0))
			if overlapping && s.Available {
				t.Errorf("slot %v-%v overlaps the event but is marked available", s.Start, s.End)
			}
			if !overlapping && !s.Available {
				t.Errorf("slot %v-%v is free but marked unavailable", s.Start, s.End)
			}
		}
	})

	t.Run("slot starting exactly at event end is free", func(t *testing.T) {
		env := newTestEnv()
		env.events.events = []*domain.CalendarEvent{{
			ID:        1,
			UserID:    userID,
			Title:     "Standup",
			StartTime: date(2026, time.March, 2, 9, 0),
			EndTime:   date(2026, time.March, 2, 10, 0),
			Status:    domain.EventStatusConfirmed,
		}}

		slots, err := env.svc.GenerateAvailableSlots(context.Background(), userID, monday, monday.AddDate(0, 0, 1), 60)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range slots {
			if s.Start.Equal(date(2026, time.March, 2, 10, 0)) && !s.Available {
				t.Error("back-to-back slot after an event must be available (half-open intervals)")
			}
		}
	})

	t.Run("invalid range is rejected", func(t *testing.T) {
		if _, err := env.svc.GenerateAvailableSlots(context.Background(), userID, monday, monday, 30); err == nil {
			t.Error("expected an error for an empty range")
		}
	})
}
