package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/in"
	"scheduler_server/core/port/out"
	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/resilience"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Fakes for the outbound ports. Errors injected here are deliberately
// plain so the classifier marks them non-retryable and tests stay fast.

type fakeProvider struct {
	calendars []*out.ProviderCalendar
	events    map[string][]*out.ProviderEvent // by provider calendar id
	listErr   map[string]error

	created []*out.ProviderEvent
	updated []*out.ProviderEvent
	nextID  int

	freeBusyReqs []*out.FreeBusyRequest
	freeBusy     *out.FreeBusyResponse
}

func (f *fakeProvider) ListCalendars(_ context.Context, _ *oauth2.Token) ([]*out.ProviderCalendar, error) {
	return f.calendars, nil
}

func (f *fakeProvider) ListEvents(_ context.Context, _ *oauth2.Token, q *out.ProviderEventQuery) ([]*out.ProviderEvent, error) {
	if err := f.listErr[q.CalendarID]; err != nil {
		return nil, err
	}
	return f.events[q.CalendarID], nil
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ *oauth2.Token, _ string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	f.nextID++
	created := *event
	created.ID = fmt.Sprintf("remote-%d", f.nextID)
	f.created = append(f.created, &created)
	return &created, nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _ *oauth2.Token, _ string, eventID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	updated := *event
	updated.ID = eventID
	f.updated = append(f.updated, &updated)
	return &updated, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _ *oauth2.Token, _, _ string) error {
	return nil
}

func (f *fakeProvider) GetFreeBusy(_ context.Context, _ *oauth2.Token, req *out.FreeBusyRequest) (*out.FreeBusyResponse, error) {
	f.freeBusyReqs = append(f.freeBusyReqs, req)
	if f.freeBusy != nil {
		return f.freeBusy, nil
	}
	return &out.FreeBusyResponse{}, nil
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) TokenForUser(_ context.Context, _ string) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "test-token"}, nil
}

type fakeCalendarRepo struct {
	calendars []*domain.Calendar
	upserts   []*domain.Calendar
	nextID    int64
}

func (f *fakeCalendarRepo) UpsertCalendar(_ context.Context, cal *domain.Calendar) error {
	f.upserts = append(f.upserts, cal)
	for _, existing := range f.calendars {
		if existing.UserID == cal.UserID &&
			existing.Provider == cal.Provider &&
			existing.ProviderCalendarID == cal.ProviderCalendarID {
			existing.Name = cal.Name
			existing.SyncEnabled = cal.SyncEnabled
			return nil
		}
	}
	f.nextID++
	cal.ID = f.nextID
	f.calendars = append(f.calendars, cal)
	return nil
}

func (f *fakeCalendarRepo) ListCalendars(_ context.Context, _ uuid.UUID) ([]*domain.Calendar, error) {
	return f.calendars, nil
}

func (f *fakeCalendarRepo) ListSyncEnabled(_ context.Context, _ uuid.UUID) ([]*domain.Calendar, error) {
	var out []*domain.Calendar
	for _, c := range f.calendars {
		if c.SyncEnabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCalendarRepo) ListUsersWithSyncEnabled(_ context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeCalendarRepo) CountCalendars(_ context.Context, _ uuid.UUID) (int, int, error) {
	enabled := 0
	for _, c := range f.calendars {
		if c.SyncEnabled {
			enabled++
		}
	}
	return len(f.calendars), enabled, nil
}

type fakeEventStore struct {
	events []*domain.CalendarEvent
	stale  []*domain.CalendarEvent
	nextID int64

	updated     []*domain.CalendarEvent
	deleted     []int64
	staleCutoff time.Time
}

func (f *fakeEventStore) GetEvent(_ context.Context, id int64) (*domain.CalendarEvent, error) {
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeEventStore) ListEventsInRange(_ context.Context, _ *domain.EventRangeFilter) ([]*domain.CalendarEvent, error) {
	return f.events, nil
}

func (f *fakeEventStore) CreateEvent(_ context.Context, event *domain.CalendarEvent) error {
	f.nextID++
	event.ID = f.nextID
	event.UpdatedAt = time.Now()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventStore) UpdateEvent(_ context.Context, event *domain.CalendarEvent) error {
	f.updated = append(f.updated, event)
	return nil
}

func (f *fakeEventStore) DeleteEvent(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	for i, e := range f.events {
		if e.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeEventStore) ListByCalendarInRange(_ context.Context, _ uuid.UUID, calendarID int64, _, _ time.Time) ([]*domain.CalendarEvent, error) {
	var out []*domain.CalendarEvent
	for _, e := range f.events {
		if e.CalendarID != nil && *e.CalendarID == calendarID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventStore) FindStaleRemoteEvents(_ context.Context, _ uuid.UUID, notTouchedSince time.Time) ([]*domain.CalendarEvent, error) {
	f.staleCutoff = notTouchedSince
	return f.stale, nil
}

func (f *fakeEventStore) LastUpdatedAt(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	if len(f.events) == 0 {
		return nil, nil
	}
	latest := f.events[0].UpdatedAt
	for _, e := range f.events[1:] {
		if e.UpdatedAt.After(latest) {
			latest = e.UpdatedAt
		}
	}
	return &latest, nil
}

func (f *fakeEventStore) CountEvents(_ context.Context, _ uuid.UUID) (int, error) {
	return len(f.events), nil
}

func (f *fakeEventStore) CountEventsSince(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, e := range f.events {
		if e.UpdatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeEventStore) CountEventsByStatus(_ context.Context, _ uuid.UUID, statuses []domain.EventStatus) (int, error) {
	n := 0
	for _, e := range f.events {
		for _, st := range statuses {
			if e.Status == st {
				n++
			}
		}
	}
	return n, nil
}

type fakeAudit struct {
	records []*domain.AuditRecord
}

func (f *fakeAudit) Append(_ context.Context, rec *domain.AuditRecord) {
	f.records = append(f.records, rec)
}

type syncEnv struct {
	svc       *Service
	provider  *fakeProvider
	tokens    *fakeTokens
	calendars *fakeCalendarRepo
	events    *fakeEventStore
	audit     *fakeAudit
	userID    uuid.UUID
}

func newSyncEnv() *syncEnv {
	env := &syncEnv{
		provider:  &fakeProvider{events: map[string][]*out.ProviderEvent{}, listErr: map[string]error{}},
		tokens:    &fakeTokens{},
		calendars: &fakeCalendarRepo{},
		events:    &fakeEventStore{},
		audit:     &fakeAudit{},
		userID:    uuid.New(),
	}
	// One retry max with minimal delays keeps failure tests quick.
	cfg := &resilience.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	env.svc = NewService(env.provider, env.tokens, env.calendars, env.events, env.audit, nil, cfg)
	return env
}

func (env *syncEnv) addLocalCalendar(providerID string) *domain.Calendar {
	cal := &domain.Calendar{
		UserID:             env.userID,
		Name:               providerID,
		Provider:           domain.CalendarProviderGoogle,
		ProviderCalendarID: providerID,
		SyncEnabled:        true,
	}
	env.calendars.UpsertCalendar(context.Background(), cal)
	return cal
}

func remoteEvent(id, title string, start time.Time, updated time.Time) *out.ProviderEvent {
	return &out.ProviderEvent{
		ID:        id,
		Title:     title,
		Status:    "confirmed",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Updated:   updated,
	}
}

func TestSyncCalendarsCreatesAndConverges(t *testing.T) {
	env := newSyncEnv()
	cal := env.addLocalCalendar("work")
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	past := time.Now().Add(-time.Hour)
	env.provider.events["work"] = []*out.ProviderEvent{
		remoteEvent("r1", "Standup", start, past),
		remoteEvent("r2", "Retro", start.Add(2*time.Hour), past),
	}

	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.Stats.Created != 2 {
		t.Fatalf("expected 2 created, got %+v", result.Stats)
	}
	if result.CalendarsProcessed != 1 {
		t.Errorf("expected 1 calendar processed, got %d", result.CalendarsProcessed)
	}
	for _, e := range env.events.events {
		if e.GoogleEventID == nil {
			t.Error("mirrored events must carry the remote id")
		}
		if e.CalendarID == nil || *e.CalendarID != cal.ID {
			t.Error("mirrored events must reference the local calendar")
		}
	}

	// Replaying the same remote state makes no further writes.
	result = env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
	if result.Stats.Created != 0 || result.Stats.Updated != 0 || result.Stats.Deleted != 0 {
		t.Errorf("replay must be idempotent, got %+v", result.Stats)
	}
	if result.Stats.Skipped != 2 {
		t.Errorf("expected 2 skipped on replay, got %+v", result.Stats)
	}
}

func TestSyncCalendarsUpdatesChangedEvents(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("work")
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	env.provider.events["work"] = []*out.ProviderEvent{
		remoteEvent("r1", "Standup", start, time.Now().Add(-time.Hour)),
	}
	env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})

	t.Run("newer remote timestamp wins", func(t *testing.T) {
		env.provider.events["work"][0] = remoteEvent("r1", "Standup (moved)", start.Add(time.Hour), time.Now().Add(time.Hour))
		result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
		if result.Stats.Updated != 1 {
			t.Fatalf("expected 1 updated, got %+v", result.Stats)
		}
		if env.events.events[0].Title != "Standup (moved)" {
			t.Errorf("local title must converge, got %q", env.events.events[0].Title)
		}
	})

	t.Run("field drift forces convergence despite an older timestamp", func(t *testing.T) {
		env.provider.events["work"][0] = remoteEvent("r1", "Standup (renamed)", start.Add(time.Hour), time.Time{})
		result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
		if result.Stats.Updated != 1 {
			t.Fatalf("clock skew must not mask real changes, got %+v", result.Stats)
		}
	})
}

func TestSyncCalendarsDeletesVanishedMirrors(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("work")
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	env.provider.events["work"] = []*out.ProviderEvent{
		remoteEvent("r1", "Keep", start, time.Now().Add(-time.Hour)),
		remoteEvent("r2", "Drop", start.Add(2*time.Hour), time.Now().Add(-time.Hour)),
	}
	env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})

	env.provider.events["work"] = env.provider.events["work"][:1]
	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
	if result.Stats.Deleted != 1 {
		t.Fatalf("expected 1 deleted, got %+v", result.Stats)
	}
	if len(env.events.events) != 1 || env.events.events[0].Title != "Keep" {
		t.Errorf("only the vanished mirror may be deleted")
	}
}

func TestSyncCalendarsPushOnlyDirectionNeverDeletes(t *testing.T) {
	env := newSyncEnv()
	cal := env.addLocalCalendar("work")
	calID := cal.ID
	remoteID := "r-existing"
	env.events.events = []*domain.CalendarEvent{{
		ID: 1, UserID: env.userID, CalendarID: &calID, GoogleEventID: &remoteID,
		Title: "Mirrored", Status: domain.EventStatusConfirmed,
		StartTime: time.Now().Add(24 * time.Hour), EndTime: time.Now().Add(25 * time.Hour),
	}}
	env.events.nextID = 1

	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncToGoogle})
	if result.Stats.Deleted != 0 {
		t.Errorf("push-only sync must never delete, got %+v", result.Stats)
	}
	if len(env.provider.created) != 0 {
		t.Errorf("already-mirrored events must not be re-pushed")
	}
}

func TestSyncCalendarsPushesLocalOnlyEvents(t *testing.T) {
	env := newSyncEnv()
	cal := env.addLocalCalendar("work")
	calID := cal.ID
	env.events.events = []*domain.CalendarEvent{{
		ID: 1, UserID: env.userID, CalendarID: &calID,
		Title: "Auto-scheduled", Status: domain.EventStatusPending, AIGenerated: true,
		StartTime: time.Now().Add(24 * time.Hour), EndTime: time.Now().Add(25 * time.Hour),
	}}
	env.events.nextID = 1

	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncBidirectional})
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if len(env.provider.created) != 1 {
		t.Fatalf("expected the local-only event to be pushed, got %d", len(env.provider.created))
	}
	if env.events.events[0].GoogleEventID == nil {
		t.Error("pushed event must be stamped with the remote id")
	}
}

func TestSyncCalendarsCancelledRemoteDeletesMirror(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("work")
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	env.provider.events["work"] = []*out.ProviderEvent{
		remoteEvent("r1", "Doomed", start, time.Now().Add(-time.Hour)),
	}
	env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
	if len(env.events.events) != 1 {
		t.Fatal("setup failed: mirror not created")
	}

	cancelled := remoteEvent("r1", "Doomed", start, time.Now())
	cancelled.Status = "cancelled"
	env.provider.events["work"][0] = cancelled

	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
	if result.Stats.Deleted != 1 {
		t.Fatalf("expected the cancelled mirror deleted, got %+v", result.Stats)
	}
	if len(env.events.events) != 0 {
		t.Error("cancelled event must be removed locally")
	}
}

func TestSyncCalendarsPartialFailureIsolation(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("broken")
	env.addLocalCalendar("healthy")
	env.provider.listErr["broken"] = errors.New("boom")
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	env.provider.events["healthy"] = []*out.ProviderEvent{
		remoteEvent("r1", "Survives", start, time.Now().Add(-time.Hour)),
	}

	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{Direction: domain.SyncFromGoogle})
	if !result.Success {
		t.Fatal("a partially failed run still counts as a run")
	}
	if len(result.Errors) == 0 {
		t.Error("the broken calendar's failure must be recorded")
	}
	if result.CalendarsProcessed != 1 {
		t.Errorf("the healthy calendar must still be processed, got %d", result.CalendarsProcessed)
	}
	if result.Stats.Created != 1 {
		t.Errorf("expected the healthy calendar's event created, got %+v", result.Stats)
	}
}

func TestSyncCalendarsTokenFailure(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("work")
	env.tokens.err = errors.New("no token on file")

	result := env.svc.SyncCalendars(context.Background(), env.userID, nil)
	if result.Success {
		t.Fatal("a run that never started must not be successful")
	}
	if len(result.Errors) == 0 {
		t.Error("the token failure must be recorded")
	}
	if len(env.audit.records) == 0 {
		t.Error("the token failure must be audited")
	}
}

func TestSyncCalendarsOrphanFlagging(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("work")
	remoteID := "gone"
	orphan := &domain.CalendarEvent{
		ID: 7, UserID: env.userID, GoogleEventID: &remoteID,
		Title: "Stale mirror", Status: domain.EventStatusConfirmed,
	}
	env.events.stale = []*domain.CalendarEvent{orphan}

	result := env.svc.SyncCalendars(context.Background(), env.userID, &in.SyncOptions{
		Direction:     domain.SyncToGoogle,
		ForceFullSync: true,
	})
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if orphan.Status != domain.EventStatusReviewNeeded {
		t.Errorf("orphans must be flagged review_needed, got %s", orphan.Status)
	}
	if orphan.SyncNote == nil {
		t.Error("orphans must carry a sync note")
	}
	if len(env.events.deleted) != 0 {
		t.Error("orphans must never be deleted")
	}

	// Candidates are mirrors no sync has touched for a day, not months.
	wantCutoff := time.Now().Add(-24 * time.Hour)
	if d := env.events.staleCutoff.Sub(wantCutoff); d < -time.Minute || d > time.Minute {
		t.Errorf("expected a 24h stale cutoff, got %v", env.events.staleCutoff)
	}
}

func TestShouldUpdateEvent(t *testing.T) {
	now := time.Now()
	local := &domain.CalendarEvent{
		Title:     "Weekly",
		StartTime: now,
		EndTime:   now.Add(time.Hour),
		Status:    domain.EventStatusConfirmed,
		UpdatedAt: now,
	}
	same := &out.ProviderEvent{
		Title:     "Weekly",
		StartTime: now,
		EndTime:   now.Add(time.Hour),
		Status:    "confirmed",
		Updated:   now.Add(-time.Minute),
	}
	if shouldUpdateEvent(local, same) {
		t.Error("identical events must not update")
	}

	newer := *same
	newer.Updated = now.Add(time.Minute)
	if !shouldUpdateEvent(local, &newer) {
		t.Error("a newer remote timestamp must update")
	}

	moved := *same
	moved.StartTime = now.Add(30 * time.Minute)
	if !shouldUpdateEvent(local, &moved) {
		t.Error("a moved event must update even with a stale timestamp")
	}
}

func TestGetSyncStatus(t *testing.T) {
	env := newSyncEnv()
	env.addLocalCalendar("work")
	env.events.events = []*domain.CalendarEvent{
		{ID: 1, UserID: env.userID, Status: domain.EventStatusConfirmed, UpdatedAt: time.Now()},
		{ID: 2, UserID: env.userID, Status: domain.EventStatusPending, UpdatedAt: time.Now()},
		{ID: 3, UserID: env.userID, Status: domain.EventStatusReviewNeeded, UpdatedAt: time.Now().AddDate(0, 0, -30)},
	}

	status, err := env.svc.GetSyncStatus(context.Background(), env.userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.TotalCalendars != 1 || status.EnabledCalendars != 1 {
		t.Errorf("unexpected calendar counts: %+v", status)
	}
	if status.TotalEvents != 3 {
		t.Errorf("expected 3 total events, got %d", status.TotalEvents)
	}
	if status.RecentEvents != 2 {
		t.Errorf("expected 2 recent events, got %d", status.RecentEvents)
	}
	if status.PendingEvents != 2 {
		t.Errorf("pending + review_needed should be 2, got %d", status.PendingEvents)
	}
	if status.LastSyncTime == nil {
		t.Error("expected a last sync time")
	}
}

// A deployment without Google OAuth has no provider. Every sync surface
// must then fail cleanly instead of dereferencing a missing adapter.
func TestSyncWithoutConfiguredProvider(t *testing.T) {
	env := newSyncEnv()
	cfg := &resilience.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	svc := NewService(nil, env.tokens, env.calendars, env.events, env.audit, nil, cfg)

	t.Run("sync run fails without starting", func(t *testing.T) {
		result := svc.SyncCalendars(context.Background(), env.userID, nil)
		if result.Success {
			t.Fatal("a run without a provider must not be successful")
		}
		if len(result.Errors) == 0 {
			t.Error("the missing provider must be recorded")
		}
	})

	t.Run("event push fails inside the result", func(t *testing.T) {
		env.events.events = []*domain.CalendarEvent{{ID: 1, UserID: env.userID, Title: "Stuck"}}
		result := svc.SyncEventToGoogle(context.Background(), env.userID, 1)
		if result.Success {
			t.Fatal("a push without a provider must fail")
		}
		if result.Error == "" {
			t.Error("the failure must explain itself")
		}
	})

	t.Run("free/busy returns a classified error", func(t *testing.T) {
		_, err := svc.GetFreeBusy(context.Background(), env.userID,
			time.Now(), time.Now().Add(time.Hour), nil)
		if err == nil {
			t.Fatal("expected an error without a provider")
		}
		ce, ok := calerr.As(err)
		if !ok {
			t.Fatalf("expected a classified error, got %v", err)
		}
		if ce.Retryable {
			t.Error("a missing provider is not retryable")
		}
	})
}

func TestSyncEventToGoogle(t *testing.T) {
	t.Run("creates and stamps an unsynced event", func(t *testing.T) {
		env := newSyncEnv()
		cal := env.addLocalCalendar("work")
		calID := cal.ID
		env.events.events = []*domain.CalendarEvent{{
			ID: 1, UserID: env.userID, CalendarID: &calID,
			Title: "Push me", Status: domain.EventStatusPending,
			StartTime: time.Now().Add(time.Hour), EndTime: time.Now().Add(2 * time.Hour),
		}}

		result := env.svc.SyncEventToGoogle(context.Background(), env.userID, 1)
		if !result.Success {
			t.Fatalf("expected success, got %q", result.Error)
		}
		if result.RemoteEventID == "" {
			t.Fatal("expected the remote id in the result")
		}
		if env.events.events[0].GoogleEventID == nil || *env.events.events[0].GoogleEventID != result.RemoteEventID {
			t.Error("local event must be stamped with the remote id")
		}
		if env.events.events[0].Status != domain.EventStatusConfirmed {
			t.Errorf("a pushed event must be confirmed, got %s", env.events.events[0].Status)
		}
		if len(env.provider.created) != 1 {
			t.Errorf("expected one provider create, got %d", len(env.provider.created))
		}
	})

	t.Run("updates an already-synced event in place", func(t *testing.T) {
		env := newSyncEnv()
		cal := env.addLocalCalendar("work")
		calID := cal.ID
		remoteID := "r-55"
		env.events.events = []*domain.CalendarEvent{{
			ID: 1, UserID: env.userID, CalendarID: &calID, GoogleEventID: &remoteID,
			Title: "Moved meeting", Status: domain.EventStatusReviewNeeded,
			StartTime: time.Now().Add(time.Hour), EndTime: time.Now().Add(2 * time.Hour),
		}}

		result := env.svc.SyncEventToGoogle(context.Background(), env.userID, 1)
		if !result.Success {
			t.Fatalf("expected success, got %q", result.Error)
		}
		if len(env.provider.updated) != 1 || len(env.provider.created) != 0 {
			t.Errorf("expected an update, not a create")
		}
		if result.RemoteEventID != "r-55" {
			t.Errorf("remote id must be preserved on update, got %s", result.RemoteEventID)
		}
		if env.events.events[0].Status != domain.EventStatusConfirmed {
			t.Errorf("a successful push must clear review state, got %s", env.events.events[0].Status)
		}
	})

	t.Run("rejects events owned by someone else", func(t *testing.T) {
		env := newSyncEnv()
		env.events.events = []*domain.CalendarEvent{{
			ID: 1, UserID: uuid.New(), Title: "Not yours",
		}}

		result := env.svc.SyncEventToGoogle(context.Background(), env.userID, 1)
		if result.Success {
			t.Fatal("expected failure for a foreign event")
		}
		if len(env.provider.created)+len(env.provider.updated) != 0 {
			t.Error("nothing may be pushed for a foreign event")
		}
	})

	t.Run("missing event fails inside the result", func(t *testing.T) {
		env := newSyncEnv()
		result := env.svc.SyncEventToGoogle(context.Background(), env.userID, 404)
		if result.Success {
			t.Fatal("expected failure for a missing event")
		}
		if result.Error == "" {
			t.Error("failures must explain themselves")
		}
	})
}

func TestGetFreeBusy(t *testing.T) {
	t.Run("defaults to the primary calendar", func(t *testing.T) {
		env := newSyncEnv()
		busy := time.Now().Truncate(time.Hour)
		env.provider.freeBusy = &out.FreeBusyResponse{
			Calendars: map[string][]*out.TimePeriod{
				"primary": {{Start: busy, End: busy.Add(time.Hour)}},
			},
		}

		resp, err := env.svc.GetFreeBusy(context.Background(), env.userID,
			busy.Add(-time.Hour), busy.Add(4*time.Hour), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Calendars["primary"]) != 1 {
			t.Fatalf("expected 1 busy period, got %d", len(resp.Calendars["primary"]))
		}
		if len(env.provider.freeBusyReqs) != 1 {
			t.Fatalf("expected 1 provider call, got %d", len(env.provider.freeBusyReqs))
		}
		if got := env.provider.freeBusyReqs[0].CalendarIDs; len(got) != 1 || got[0] != "primary" {
			t.Errorf("expected default calendar id primary, got %v", got)
		}
	})

	t.Run("rejects an inverted range", func(t *testing.T) {
		env := newSyncEnv()
		now := time.Now()
		_, err := env.svc.GetFreeBusy(context.Background(), env.userID, now, now.Add(-time.Hour), nil)
		if err == nil {
			t.Fatal("expected an error for an inverted range")
		}
		if len(env.provider.freeBusyReqs) != 0 {
			t.Error("provider must not be called for an invalid range")
		}
	})

	t.Run("token failure is classified and audited", func(t *testing.T) {
		env := newSyncEnv()
		env.tokens.err = errors.New("no token on file")
		_, err := env.svc.GetFreeBusy(context.Background(), env.userID,
			time.Now(), time.Now().Add(time.Hour), []string{"work"})
		if err == nil {
			t.Fatal("expected an error without a token")
		}
		if len(env.audit.records) == 0 {
			t.Error("token failure should be audited")
		}
	})
}
