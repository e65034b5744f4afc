package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"scheduler_server/core/domain"

	"github.com/google/uuid"
)

// In-memory fakes for the outbound ports.

type fakeEventRepo struct {
	events    []*domain.CalendarEvent
	listErr   error
	createErr error
	created   []*domain.CalendarEvent
	nextID    int64

	// Simulates another writer racing the caller: after injectAfter list
	// calls, injected events become visible too.
	listCalls   int
	injectAfter int
	injected    []*domain.CalendarEvent
}

func (f *fakeEventRepo) GetEvent(_ context.Context, id int64) (*domain.CalendarEvent, error) {
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeEventRepo) ListEventsInRange(_ context.Context, filter *domain.EventRangeFilter) ([]*domain.CalendarEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listCalls++
	visible := f.events
	if f.injectAfter > 0 && f.listCalls > f.injectAfter {
		visible = append(append([]*domain.CalendarEvent{}, visible...), f.injected...)
	}
	var out []*domain.CalendarEvent
	for _, e := range visible {
		if filter.ExcludeEventID != nil && e.ID == *filter.ExcludeEventID {
			continue
		}
		if e.StartTime.Before(filter.End) && e.EndTime.After(filter.Start) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) CreateEvent(_ context.Context, event *domain.CalendarEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	event.ID = f.nextID
	f.created = append(f.created, event)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) UpdateEvent(_ context.Context, _ *domain.CalendarEvent) error { return nil }
func (f *fakeEventRepo) DeleteEvent(_ context.Context, _ int64) error                 { return nil }

func (f *fakeEventRepo) ListByCalendarInRange(_ context.Context, _ uuid.UUID, _ int64, _, _ time.Time) ([]*domain.CalendarEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) FindStaleRemoteEvents(_ context.Context, _ uuid.UUID, _ time.Time) ([]*domain.CalendarEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) LastUpdatedAt(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}
func (f *fakeEventRepo) CountEvents(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }
func (f *fakeEventRepo) CountEventsSince(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	return 0, nil
}
func (f *fakeEventRepo) CountEventsByStatus(_ context.Context, _ uuid.UUID, _ []domain.EventStatus) (int, error) {
	return 0, nil
}

type fakeTaskRepo struct {
	tasks   []*domain.Task
	listErr error
}

func (f *fakeTaskRepo) ListOpenTasksInRange(_ context.Context, _ uuid.UUID, start, end time.Time) ([]*domain.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Task
	for _, task := range f.tasks {
		ts, te, ok := task.Interval()
		if ok && ts.Before(end) && te.After(start) {
			out = append(out, task)
		}
	}
	return out, nil
}

type fakePrefsRepo struct {
	prefs *domain.SchedulingPreferences
	err   error
}

func (f *fakePrefsRepo) GetPreferences(_ context.Context, _ uuid.UUID) (*domain.SchedulingPreferences, error) {
	return f.prefs, f.err
}

type fakeAudit struct {
	records []*domain.AuditRecord
}

func (f *fakeAudit) Append(_ context.Context, rec *domain.AuditRecord) {
	f.records = append(f.records, rec)
}

type testEnv struct {
	svc    *Service
	events *fakeEventRepo
	tasks  *fakeTaskRepo
	prefs  *fakePrefsRepo
	audit  *fakeAudit
}

func newTestEnv() *testEnv {
	env := &testEnv{
		events: &fakeEventRepo{},
		tasks:  &fakeTaskRepo{},
		prefs:  &fakePrefsRepo{},
		audit:  &fakeAudit{},
	}
	env.svc = NewService(env.events, env.tasks, env.prefs, env.audit, nil, 0)
	return env
}

func strPtr(s string) *string { return &s }

// date builds a UTC time on a fixed test day.
func date(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestLoadPreferencesFallsBackToDefaults(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()

	t.Run("no stored row", func(t *testing.T) {
		p := env.svc.loadPreferences(context.Background(), userID)
		if p.WorkStart != domain.DefaultWorkStart || p.WorkEnd != domain.DefaultWorkEnd {
			t.Errorf("expected default working hours, got %s-%s", p.WorkStart, p.WorkEnd)
		}
	})

	t.Run("read error audits and defaults", func(t *testing.T) {
		env.prefs.err = errors.New("db down")
		p := env.svc.loadPreferences(context.Background(), userID)
		if p.BufferTimeMinutes != domain.DefaultBufferMinutes {
			t.Errorf("expected default buffer, got %d", p.BufferTimeMinutes)
		}
		if len(env.audit.records) == 0 {
			t.Error("expected a failed preferences read to be audited")
		}
	})

	t.Run("stored row is normalized", func(t *testing.T) {
		env.prefs.err = nil
		env.prefs.prefs = &domain.SchedulingPreferences{
			UserID:    userID,
			WorkStart: "not-a-clock",
			TimeZone:  "Mars/Olympus",
		}
		p := env.svc.loadPreferences(context.Background(), userID)
		if p.WorkStart != domain.DefaultWorkStart {
			t.Errorf("malformed work start should be replaced, got %s", p.WorkStart)
		}
		if p.TimeZone != domain.DefaultTimeZone {
			t.Errorf("invalid time zone should be replaced, got %s", p.TimeZone)
		}
	})
}
