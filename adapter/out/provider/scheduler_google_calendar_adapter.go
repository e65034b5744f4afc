// Package provider implements the outbound calendar provider port against
// the Google Calendar API.
package provider

import (
	"context"
	"fmt"
	"time"

	"scheduler_server/core/port/out"
	"scheduler_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultMaxResults = 250

// GoogleCalendarAdapter implements out.CalendarProviderPort. All calls go
// through a circuit breaker so a provider outage sheds load fast instead
// of stacking up retries.
type GoogleCalendarAdapter struct {
	oauthConfig *oauth2.Config
	cb          *gobreaker.CircuitBreaker
	log         *logger.Logger
}

// GoogleCalendarConfig holds the OAuth client settings.
type GoogleCalendarConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGoogleCalendarAdapter creates the adapter with its circuit breaker.
func NewGoogleCalendarAdapter(cfg *GoogleCalendarConfig) *GoogleCalendarAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			calendar.CalendarScope,
			calendar.CalendarEventsScope,
		},
		Endpoint: google.Endpoint,
	}

	log := logger.WithField("component", "google-calendar")

	cbSettings := gobreaker.Settings{
		Name:        "google-calendar-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &GoogleCalendarAdapter{
		oauthConfig: config,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		log:         log,
	}
}

func (a *GoogleCalendarAdapter) service(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	client := a.oauthConfig.Client(ctx, token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// nonCircuitError shields client-side failures (4xx except 429) from the
// breaker: they say nothing about provider health.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string { return e.err.Error() }
func (e *nonCircuitError) Unwrap() error { return e.err }

// execute runs fn under the circuit breaker and unwraps the shield so
// callers and the classifier see the original provider error.
func (a *GoogleCalendarAdapter) execute(fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 400, 401, 403, 404, 409:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})
	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}
	return err
}

// =============================================================================
// Calendar Operations
// =============================================================================

func (a *GoogleCalendarAdapter) ListCalendars(ctx context.Context, token *oauth2.Token) ([]*out.ProviderCalendar, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	var list *calendar.CalendarList
	err = a.execute(func() error {
		var callErr error
		list, callErr = svc.CalendarList.List().Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	calendars := make([]*out.ProviderCalendar, 0, len(list.Items))
	for _, cal := range list.Items {
		calendars = append(calendars, &out.ProviderCalendar{
			ID:         cal.Id,
			Name:       cal.Summary,
			IsPrimary:  cal.Primary,
			IsSelected: cal.Selected,
			TimeZone:   cal.TimeZone,
			AccessRole: cal.AccessRole,
			Color:      cal.BackgroundColor,
		})
	}
	return calendars, nil
}

// =============================================================================
// Event Operations
// =============================================================================

func (a *GoogleCalendarAdapter) ListEvents(ctx context.Context, token *oauth2.Token, query *out.ProviderEventQuery) ([]*out.ProviderEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := query.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	req := svc.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(maxResults)).
		ShowDeleted(true).
		Context(ctx)
	if query.TimeMin != nil {
		req = req.TimeMin(query.TimeMin.Format(time.RFC3339))
	}
	if query.TimeMax != nil {
		req = req.TimeMax(query.TimeMax.Format(time.RFC3339))
	}

	var events []*out.ProviderEvent
	pageToken := ""
	for {
		var resp *calendar.Events
		err = a.execute(func() error {
			var callErr error
			resp, callErr = req.PageToken(pageToken).Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			events = append(events, a.convertEvent(item, calendarID))
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return events, nil
}

func (a *GoogleCalendarAdapter) CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	var created *calendar.Event
	err = a.execute(func() error {
		var callErr error
		created, callErr = svc.Events.Insert(calendarID, a.toGoogleEvent(event)).
			SendUpdates("none").
			Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return a.convertEvent(created, calendarID), nil
}

func (a *GoogleCalendarAdapter) UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	var updated *calendar.Event
	err = a.execute(func() error {
		var callErr error
		updated, callErr = svc.Events.Update(calendarID, eventID, a.toGoogleEvent(event)).
			SendUpdates("none").
			Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return a.convertEvent(updated, calendarID), nil
}

func (a *GoogleCalendarAdapter) DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error {
	svc, err := a.service(ctx, token)
	if err != nil {
		return fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	return a.execute(func() error {
		return svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
}

// =============================================================================
// Free/Busy
// =============================================================================

func (a *GoogleCalendarAdapter) GetFreeBusy(ctx context.Context, token *oauth2.Token, freeBusyReq *out.FreeBusyRequest) (*out.FreeBusyResponse, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	items := make([]*calendar.FreeBusyRequestItem, 0, len(freeBusyReq.CalendarIDs))
	for _, id := range freeBusyReq.CalendarIDs {
		items = append(items, &calendar.FreeBusyRequestItem{Id: id})
	}

	var resp *calendar.FreeBusyResponse
	err = a.execute(func() error {
		var callErr error
		resp, callErr = svc.Freebusy.Query(&calendar.FreeBusyRequest{
			TimeMin: freeBusyReq.TimeMin.Format(time.RFC3339),
			TimeMax: freeBusyReq.TimeMax.Format(time.RFC3339),
			Items:   items,
		}).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	result := &out.FreeBusyResponse{Calendars: make(map[string][]*out.TimePeriod, len(resp.Calendars))}
	for id, cal := range resp.Calendars {
		periods := make([]*out.TimePeriod, 0, len(cal.Busy))
		for _, busy := range cal.Busy {
			start, _ := time.Parse(time.RFC3339, busy.Start)
			end, _ := time.Parse(time.RFC3339, busy.End)
			periods = append(periods, &out.TimePeriod{Start: start, End: end})
		}
		result.Calendars[id] = periods
	}
	return result, nil
}

// =============================================================================
// Conversion
// =============================================================================

func (a *GoogleCalendarAdapter) convertEvent(event *calendar.Event, calendarID string) *out.ProviderEvent {
	result := &out.ProviderEvent{
		ID:          event.Id,
		CalendarID:  calendarID,
		Title:       event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			t, _ := time.Parse(time.RFC3339, event.Start.DateTime)
			result.StartTime = t
		} else if event.Start.Date != "" {
			t, _ := time.Parse("2006-01-02", event.Start.Date)
			result.StartTime = t
			result.IsAllDay = true
		}
	}
	if event.End != nil {
		if event.End.DateTime != "" {
			t, _ := time.Parse(time.RFC3339, event.End.DateTime)
			result.EndTime = t
		} else if event.End.Date != "" {
			t, _ := time.Parse("2006-01-02", event.End.Date)
			result.EndTime = t
		}
	}

	if event.Organizer != nil {
		result.OrganizerEmail = event.Organizer.Email
	}
	for _, att := range event.Attendees {
		if att.Email != "" {
			result.Attendees = append(result.Attendees, att.Email)
		}
	}

	if event.Created != "" {
		result.Created, _ = time.Parse(time.RFC3339, event.Created)
	}
	if event.Updated != "" {
		result.Updated, _ = time.Parse(time.RFC3339, event.Updated)
	}
	return result
}

func (a *GoogleCalendarAdapter) toGoogleEvent(event *out.ProviderEvent) *calendar.Event {
	gcal := &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.EndTime.Format(time.RFC3339)},
	}
	for _, email := range event.Attendees {
		gcal.Attendees = append(gcal.Attendees, &calendar.EventAttendee{Email: email})
	}
	return gcal
}
