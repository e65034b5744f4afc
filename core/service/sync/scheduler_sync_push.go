package sync

import (
	"context"
	"fmt"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/out"
	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/resilience"

	"github.com/google/uuid"
)

// SyncEventToGoogle pushes one local event to the provider and stamps the
// local row with the remote id. Creates when the event was never synced,
// updates otherwise. Errors come back inside the result so batch callers
// can aggregate.
func (s *Service) SyncEventToGoogle(ctx context.Context, userID uuid.UUID, eventID int64) *domain.SyncPushResult {
	if s.provider == nil {
		return pushFailed("calendar provider not configured")
	}

	aud := &auditor{repo: s.audit, userID: userID}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return pushFailed("load event: %v", err)
	}
	if event.UserID != userID {
		return pushFailed("event %d does not belong to this user", eventID)
	}

	token, err := s.tokens.TokenForUser(ctx, userID.String())
	if err != nil {
		aud.RecordFailure(ctx, "push-event", calerr.CodeAuthError, err.Error(), nil)
		return pushFailed("load token: %v", err)
	}

	providerCalID, err := s.providerCalendarID(ctx, userID, event.CalendarID)
	if err != nil {
		return pushFailed("resolve calendar: %v", err)
	}

	var remote *out.ProviderEvent
	if event.GoogleEventID == nil {
		remote, err = resilience.ExecuteWithRetry(ctx, "push-event",
			func(ctx context.Context) (*out.ProviderEvent, error) {
				return s.provider.CreateEvent(ctx, token, providerCalID, toProviderEvent(event))
			}, aud, s.retryCfg)
	} else {
		remote, err = resilience.ExecuteWithRetry(ctx, "push-event",
			func(ctx context.Context) (*out.ProviderEvent, error) {
				return s.provider.UpdateEvent(ctx, token, providerCalID, *event.GoogleEventID, toProviderEvent(event))
			}, aud, s.retryCfg)
	}
	if err != nil {
		return pushFailed("push to provider: %v", err)
	}

	// A successful push confirms the event: the provider accepted it, so
	// pending/review states no longer apply.
	remoteID := remote.ID
	event.GoogleEventID = &remoteID
	event.Status = domain.EventStatusConfirmed
	event.UpdatedAt = time.Now()
	if err := s.events.UpdateEvent(ctx, event); err != nil {
		// The remote write landed; only the local stamp is missing. The
		// next reconciliation will repair it via the idempotent upsert.
		s.log.WithError(err).Warn("pushed event %d but could not stamp remote id", eventID)
	}

	s.cache.DeletePattern(ctx, fmt.Sprintf("avail:%s:*", userID))
	return &domain.SyncPushResult{Success: true, RemoteEventID: remoteID}
}

// providerCalendarID resolves the remote calendar for an event, defaulting
// to the provider's primary alias when the event has no local calendar.
func (s *Service) providerCalendarID(ctx context.Context, userID uuid.UUID, calendarID *int64) (string, error) {
	if calendarID == nil {
		return "primary", nil
	}
	calendars, err := s.calendars.ListCalendars(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, c := range calendars {
		if c.ID == *calendarID {
			return c.ProviderCalendarID, nil
		}
	}
	return "", fmt.Errorf("calendar %d not found", *calendarID)
}

func pushFailed(format string, args ...any) *domain.SyncPushResult {
	return &domain.SyncPushResult{Success: false, Error: fmt.Sprintf(format, args...)}
}
