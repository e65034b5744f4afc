package scheduling

import (
	"context"
	"fmt"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/in"

	"github.com/google/uuid"
)

// AutoScheduleMeeting finds the best slot for a request, re-validates it
// against current commitments, and books it as a pending AI-generated
// event. Never returns an error: every failure path produces a
// Success=false result so one bad request cannot break a batch of
// email-derived meetings.
func (s *Service) AutoScheduleMeeting(
	ctx context.Context,
	userID uuid.UUID,
	req *domain.MeetingRequest,
) (result *domain.AutoScheduleResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", fmt.Sprint(r)).Error("auto-schedule panicked")
			s.recordAudit(ctx, userID, "auto-schedule", fmt.Errorf("panic: %v", r))
			result = &domain.AutoScheduleResult{
				Success: false,
				Reason:  "Internal error while scheduling",
			}
		}
	}()

	if req == nil || req.Title == "" {
		return &domain.AutoScheduleResult{
			Success: false,
			Reason:  "Meeting request needs a title",
		}
	}

	suggestions, err := s.FindOptimalMeetingTimes(ctx, userID, req, defaultSearchDays)
	if err != nil {
		s.log.WithError(err).Error("auto-schedule slot search failed")
		s.recordAudit(ctx, userID, "auto-schedule", err)
		return &domain.AutoScheduleResult{
			Success: false,
			Reason:  "Could not search for available times",
		}
	}
	if len(suggestions) == 0 {
		return &domain.AutoScheduleResult{
			Success: false,
			Reason:  "No available slots found in the search window",
		}
	}

	best := suggestions[0]

	// The grid snapshot may already be stale; the conflict check is the
	// authoritative gate before booking.
	check, err := s.CheckConflicts(ctx, userID, &in.ConflictCheckRequest{
		Start: best.Start,
		End:   best.End,
	})
	if err != nil {
		s.recordAudit(ctx, userID, "auto-schedule", err)
		return &domain.AutoScheduleResult{
			Success:       false,
			SuggestedSlot: &best,
			Reason:        "Could not verify the selected slot",
		}
	}
	if check.HasConflicts {
		return &domain.AutoScheduleResult{
			Success:       false,
			SuggestedSlot: &best,
			Conflicts:     check.Conflicts,
			Reason:        "Best available slot still has conflicts",
		}
	}

	confidence := best.Confidence
	event := &domain.CalendarEvent{
		UserID:          userID,
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		StartTime:       best.Start,
		EndTime:         best.End,
		Status:          domain.EventStatusPending,
		AIGenerated:     true,
		ConfidenceScore: &confidence,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		s.log.WithError(err).Error("auto-schedule booking failed")
		s.recordAudit(ctx, userID, "auto-schedule", err)
		return &domain.AutoScheduleResult{
			Success:       false,
			SuggestedSlot: &best,
			Reason:        "Found a slot but could not save the event",
		}
	}

	s.cache.DeletePattern(ctx, fmt.Sprintf("avail:%s:*", userID))

	s.log.WithFields(map[string]any{
		"event_id": event.ID,
		"start":    event.StartTime,
	}).Info("auto-scheduled meeting")

	eventID := event.ID
	return &domain.AutoScheduleResult{
		Success:       true,
		SuggestedSlot: &best,
		EventID:       &eventID,
	}
}
