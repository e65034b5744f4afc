// Package sync reconciles Google Calendar with local storage in both
// directions. Runs are idempotent: replaying the same remote state makes
// no further writes.
package sync

import (
	"context"
	"fmt"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/in"
	"scheduler_server/core/port/out"
	"scheduler_server/pkg/cache"
	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/logger"
	"scheduler_server/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Orphans are local mirrors of remote events that stopped appearing in
// provider responses. They are flagged for review, never deleted, because
// a missing remote event can also mean a revoked grant or a provider
// hiccup.
const orphanSyncNote = "remote event no longer present; needs review"

// Service implements in.SyncService.
type Service struct {
	provider  out.CalendarProviderPort
	tokens    out.TokenStore
	calendars out.CalendarRepository
	events    out.EventRepository
	audit     out.AuditRepository
	cache     *cache.RedisCache

	retryCfg *resilience.RetryConfig
	log      *logger.Logger
}

// NewService wires the reconciler. audit and redisCache may be nil.
func NewService(
	provider out.CalendarProviderPort,
	tokens out.TokenStore,
	calendars out.CalendarRepository,
	events out.EventRepository,
	audit out.AuditRepository,
	redisCache *cache.RedisCache,
	retryCfg *resilience.RetryConfig,
) *Service {
	if redisCache == nil {
		redisCache = cache.NewRedisCache(nil)
	}
	if retryCfg == nil {
		retryCfg = resilience.DefaultRetryConfig()
	}
	return &Service{
		provider:  provider,
		tokens:    tokens,
		calendars: calendars,
		events:    events,
		audit:     audit,
		cache:     redisCache,
		retryCfg:  retryCfg,
		log:       logger.WithField("component", "sync"),
	}
}

// auditor adapts the audit repository to the retry executor.
type auditor struct {
	repo   out.AuditRepository
	userID uuid.UUID
}

func (a *auditor) RecordFailure(ctx context.Context, operation, errorCode, message string, details map[string]any) {
	if a.repo == nil {
		return
	}
	uid := a.userID
	a.repo.Append(ctx, &domain.AuditRecord{
		UserID:    &uid,
		Operation: operation,
		ErrorCode: errorCode,
		Message:   message,
		Context:   details,
		Timestamp: time.Now(),
	})
}

// SyncCalendars runs one reconciliation for a user. The run never returns
// an error: a failure before any work yields Success=false, and
// per-calendar failures are recorded in Errors while the rest of the run
// continues.
func (s *Service) SyncCalendars(ctx context.Context, userID uuid.UUID, opts *in.SyncOptions) *domain.SyncResult {
	if opts == nil {
		opts = &in.SyncOptions{}
	}
	opts.Normalize()

	result := &domain.SyncResult{LastSyncTime: time.Now()}
	aud := &auditor{repo: s.audit, userID: userID}

	// Deployments without Google OAuth wire no provider. Bootstrap skips
	// the sync surfaces then, but a misrouted call must still fail cleanly.
	if s.provider == nil {
		s.log.Error("sync aborted: no calendar provider configured")
		result.AddError("calendar provider not configured")
		return result
	}

	token, err := s.tokens.TokenForUser(ctx, userID.String())
	if err != nil {
		s.log.WithError(err).Error("sync aborted: no usable token")
		aud.RecordFailure(ctx, "sync-token", calerr.CodeAuthError, err.Error(), nil)
		result.AddError("load token: %v", err)
		return result
	}

	if opts.Direction.PullsFromRemote() {
		if err := s.refreshCalendarList(ctx, userID, token, aud); err != nil {
			// The stored calendar list still works; keep going with it.
			result.AddError("refresh calendar list: %v", err)
		}
	}

	calendars, err := s.calendars.ListSyncEnabled(ctx, userID)
	if err != nil {
		s.log.WithError(err).Error("sync aborted: calendar list unavailable")
		result.AddError("list calendars: %v", err)
		return result
	}

	windowStart := time.Now().AddDate(0, 0, -opts.DaysBack)
	windowEnd := time.Now().AddDate(0, 0, opts.DaysAhead)

	for _, cal := range calendars {
		if opts.CalendarID != 0 && cal.ID != opts.CalendarID {
			continue
		}
		if err := s.syncCalendarEvents(ctx, userID, token, cal, opts, windowStart, windowEnd, result, aud); err != nil {
			result.AddError("calendar %q: %v", cal.Name, err)
			continue
		}
		result.CalendarsProcessed++
	}

	if opts.ForceFullSync {
		s.flagOrphanedEvents(ctx, userID, result)
	}

	if result.Stats.Created+result.Stats.Updated+result.Stats.Deleted > 0 {
		s.cache.DeletePattern(ctx, fmt.Sprintf("avail:%s:*", userID))
	}

	result.Success = true
	s.log.WithFields(map[string]any{
		"calendars": result.CalendarsProcessed,
		"events":    result.EventsProcessed,
		"created":   result.Stats.Created,
		"updated":   result.Stats.Updated,
		"deleted":   result.Stats.Deleted,
		"skipped":   result.Stats.Skipped,
		"errors":    len(result.Errors),
	}).Info("sync run finished")
	return result
}

// refreshCalendarList pulls the remote calendar list and upserts it. The
// upsert key (user, provider, provider calendar id) makes replays
// idempotent.
func (s *Service) refreshCalendarList(ctx context.Context, userID uuid.UUID, token *oauth2.Token, aud *auditor) error {
	remote, err := resilience.ExecuteWithRetry(ctx, "list-calendars",
		func(ctx context.Context) ([]*out.ProviderCalendar, error) {
			return s.provider.ListCalendars(ctx, token)
		}, aud, s.retryCfg)
	if err != nil {
		return err
	}

	for _, rc := range remote {
		cal := &domain.Calendar{
			UserID:             userID,
			Name:               rc.Name,
			Provider:           domain.CalendarProviderGoogle,
			ProviderCalendarID: rc.ID,
			IsPrimary:          rc.IsPrimary,
			SyncEnabled:        rc.IsPrimary || rc.IsSelected,
			TimeZone:           rc.TimeZone,
			AccessRole:         rc.AccessRole,
		}
		if rc.Color != "" {
			color := rc.Color
			cal.Color = &color
		}
		if err := s.calendars.UpsertCalendar(ctx, cal); err != nil {
			return fmt.Errorf("upsert calendar %q: %w", rc.Name, err)
		}
	}
	return nil
}

// syncCalendarEvents reconciles one calendar's window against the remote
// event list.
func (s *Service) syncCalendarEvents(
	ctx context.Context,
	userID uuid.UUID,
	token *oauth2.Token,
	cal *domain.Calendar,
	opts *in.SyncOptions,
	windowStart, windowEnd time.Time,
	result *domain.SyncResult,
	aud *auditor,
) error {
	local, err := s.events.ListByCalendarInRange(ctx, userID, cal.ID, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("list local events: %w", err)
	}
	localByRemoteID := make(map[string]*domain.CalendarEvent, len(local))
	for _, e := range local {
		if e.GoogleEventID != nil {
			localByRemoteID[*e.GoogleEventID] = e
		}
	}

	if opts.Direction.PullsFromRemote() {
		remote, err := resilience.ExecuteWithRetry(ctx, "list-events",
			func(ctx context.Context) ([]*out.ProviderEvent, error) {
				return s.provider.ListEvents(ctx, token, &out.ProviderEventQuery{
					CalendarID: cal.ProviderCalendarID,
					TimeMin:    &windowStart,
					TimeMax:    &windowEnd,
				})
			}, aud, s.retryCfg)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(remote))
		for _, re := range remote {
			seen[re.ID] = true
			result.EventsProcessed++
			s.applyRemoteEvent(ctx, userID, cal, re, localByRemoteID[re.ID], result)
		}

		// Remote mirrors that vanished from the window were deleted (or
		// moved) upstream.
		for remoteID, e := range localByRemoteID {
			if seen[remoteID] {
				continue
			}
			if err := s.events.DeleteEvent(ctx, e.ID); err != nil {
				result.AddError("delete event %d: %v", e.ID, err)
				continue
			}
			result.Stats.Deleted++
		}
	}

	if opts.Direction == domain.SyncToGoogle || opts.Direction == domain.SyncBidirectional {
		s.pushLocalOnlyEvents(ctx, token, cal, local, result, aud)
	}

	return nil
}

// applyRemoteEvent converges one local row onto the remote state.
func (s *Service) applyRemoteEvent(
	ctx context.Context,
	userID uuid.UUID,
	cal *domain.Calendar,
	remote *out.ProviderEvent,
	local *domain.CalendarEvent,
	result *domain.SyncResult,
) {
	if remote.Status == "cancelled" {
		if local == nil {
			result.Stats.Skipped++
			return
		}
		if err := s.events.DeleteEvent(ctx, local.ID); err != nil {
			result.AddError("delete cancelled event %d: %v", local.ID, err)
			return
		}
		result.Stats.Deleted++
		return
	}

	if local == nil {
		e := newLocalEvent(userID, cal, remote)
		if err := s.events.CreateEvent(ctx, e); err != nil {
			result.AddError("create event %q: %v", remote.Title, err)
			return
		}
		result.Stats.Created++
		return
	}

	if !shouldUpdateEvent(local, remote) {
		result.Stats.Skipped++
		return
	}
	mergeRemoteInto(local, remote)
	if err := s.events.UpdateEvent(ctx, local); err != nil {
		result.AddError("update event %d: %v", local.ID, err)
		return
	}
	result.Stats.Updated++
}

// shouldUpdateEvent decides whether the local row must converge onto the
// remote event. The timestamp comparison is the fast path; the field diff
// backs it up because provider and local clocks are not comparable enough
// to trust alone.
func shouldUpdateEvent(local *domain.CalendarEvent, remote *out.ProviderEvent) bool {
	if remote.Updated.After(local.UpdatedAt) {
		return true
	}
	if local.Title != remote.Title ||
		!local.StartTime.Equal(remote.StartTime) ||
		!local.EndTime.Equal(remote.EndTime) {
		return true
	}
	if deref(local.Description) != remote.Description || deref(local.Location) != remote.Location {
		return true
	}
	if local.Status != domain.ProviderEventStatus(remote.Status) {
		return true
	}
	return false
}

// pushLocalOnlyEvents creates remote counterparts for local events that
// were never synced, e.g. ones booked by the auto-scheduler.
func (s *Service) pushLocalOnlyEvents(
	ctx context.Context,
	token *oauth2.Token,
	cal *domain.Calendar,
	local []*domain.CalendarEvent,
	result *domain.SyncResult,
	aud *auditor,
) {
	for _, e := range local {
		if e.GoogleEventID != nil || e.Status == domain.EventStatusCancelled {
			continue
		}
		created, err := resilience.ExecuteWithRetry(ctx, "push-event",
			func(ctx context.Context) (*out.ProviderEvent, error) {
				return s.provider.CreateEvent(ctx, token, cal.ProviderCalendarID, toProviderEvent(e))
			}, aud, s.retryCfg)
		if err != nil {
			result.AddError("push event %d: %v", e.ID, err)
			continue
		}
		remoteID := created.ID
		e.GoogleEventID = &remoteID
		if err := s.events.UpdateEvent(ctx, e); err != nil {
			result.AddError("stamp event %d: %v", e.ID, err)
			continue
		}
		result.Stats.Created++
		result.EventsProcessed++
	}
}

// flagOrphanedEvents marks stale remote mirrors review_needed. A mirror
// counts as an orphan candidate once no sync has touched it for 24 hours.
// Full scans only; the regular window diff already covers the common case.
func (s *Service) flagOrphanedEvents(ctx context.Context, userID uuid.UUID, result *domain.SyncResult) {
	cutoff := time.Now().Add(-24 * time.Hour)
	stale, err := s.events.FindStaleRemoteEvents(ctx, userID, cutoff)
	if err != nil {
		result.AddError("orphan scan: %v", err)
		return
	}
	note := orphanSyncNote
	for _, e := range stale {
		if e.Status == domain.EventStatusReviewNeeded {
			continue
		}
		e.Status = domain.EventStatusReviewNeeded
		e.SyncNote = &note
		if err := s.events.UpdateEvent(ctx, e); err != nil {
			result.AddError("flag orphan %d: %v", e.ID, err)
			continue
		}
		result.Stats.Updated++
	}
}

// GetSyncStatus aggregates sync health for a user.
func (s *Service) GetSyncStatus(ctx context.Context, userID uuid.UUID) (*domain.SyncStatus, error) {
	status := &domain.SyncStatus{}

	last, err := s.events.LastUpdatedAt(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("last sync time: %w", err)
	}
	status.LastSyncTime = last

	total, enabled, err := s.calendars.CountCalendars(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count calendars: %w", err)
	}
	status.TotalCalendars = total
	status.EnabledCalendars = enabled

	if status.TotalEvents, err = s.events.CountEvents(ctx, userID); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	weekAgo := time.Now().AddDate(0, 0, -7)
	if status.RecentEvents, err = s.events.CountEventsSince(ctx, userID, weekAgo); err != nil {
		return nil, fmt.Errorf("count recent events: %w", err)
	}
	pendingStatuses := []domain.EventStatus{domain.EventStatusPending, domain.EventStatusReviewNeeded}
	if status.PendingEvents, err = s.events.CountEventsByStatus(ctx, userID, pendingStatuses); err != nil {
		return nil, fmt.Errorf("count pending events: %w", err)
	}
	return status, nil
}

// newLocalEvent builds the local mirror of a remote event.
func newLocalEvent(userID uuid.UUID, cal *domain.Calendar, remote *out.ProviderEvent) *domain.CalendarEvent {
	calID := cal.ID
	remoteID := remote.ID
	e := &domain.CalendarEvent{
		UserID:        userID,
		CalendarID:    &calID,
		GoogleEventID: &remoteID,
		Title:         remote.Title,
		StartTime:     remote.StartTime,
		EndTime:       remote.EndTime,
		Attendees:     remote.Attendees,
		Status:        domain.ProviderEventStatus(remote.Status),
	}
	if remote.Description != "" {
		d := remote.Description
		e.Description = &d
	}
	if remote.Location != "" {
		l := remote.Location
		e.Location = &l
	}
	if raw, err := json.Marshal(remote); err == nil {
		e.GoogleData = raw
	}
	return e
}

// mergeRemoteInto converges the local row onto the remote event, keeping
// local-only fields (AI flags, notes) intact.
func mergeRemoteInto(local *domain.CalendarEvent, remote *out.ProviderEvent) {
	local.Title = remote.Title
	local.StartTime = remote.StartTime
	local.EndTime = remote.EndTime
	local.Attendees = remote.Attendees
	local.Status = domain.ProviderEventStatus(remote.Status)

	local.Description = optional(remote.Description)
	local.Location = optional(remote.Location)
	if raw, err := json.Marshal(remote); err == nil {
		local.GoogleData = raw
	}
}

// toProviderEvent maps a local event to the provider shape for pushes.
func toProviderEvent(e *domain.CalendarEvent) *out.ProviderEvent {
	return &out.ProviderEvent{
		Title:       e.Title,
		Description: deref(e.Description),
		Location:    deref(e.Location),
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Attendees:   e.Attendees,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
