// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// =============================================================================
// Calendar Provider Port (Google Calendar)
// =============================================================================

// CalendarProviderPort is the outbound port for the remote calendar
// provider. Errors surface with HTTP status information so the classifier
// in pkg/calerr can decide retryability.
type CalendarProviderPort interface {
	ListCalendars(ctx context.Context, token *oauth2.Token) ([]*ProviderCalendar, error)
	ListEvents(ctx context.Context, token *oauth2.Token, query *ProviderEventQuery) ([]*ProviderEvent, error)

	CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *ProviderEvent) (*ProviderEvent, error)
	UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *ProviderEvent) (*ProviderEvent, error)
	DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error

	GetFreeBusy(ctx context.Context, token *oauth2.Token, req *FreeBusyRequest) (*FreeBusyResponse, error)
}

// ProviderCalendar is the provider's calendar-list entry.
type ProviderCalendar struct {
	ID         string
	Name       string
	IsPrimary  bool
	IsSelected bool
	TimeZone   string
	AccessRole string
	Color      string
}

// ProviderEventQuery bounds an event listing.
type ProviderEventQuery struct {
	CalendarID string
	TimeMin    *time.Time
	TimeMax    *time.Time
	MaxResults int
}

// ProviderEvent is the provider's event shape, flattened.
type ProviderEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Status      string

	StartTime time.Time
	EndTime   time.Time
	IsAllDay  bool

	Attendees      []string
	OrganizerEmail string
	HTMLLink       string

	Created time.Time
	Updated time.Time
}

// =============================================================================
// Free/Busy
// =============================================================================

type FreeBusyRequest struct {
	CalendarIDs []string
	TimeMin     time.Time
	TimeMax     time.Time
}

type TimePeriod struct {
	Start time.Time
	End   time.Time
}

type FreeBusyResponse struct {
	Calendars map[string][]*TimePeriod
}

// =============================================================================
// Token access
// =============================================================================

// TokenStore reads stored OAuth tokens. Refresh mechanics live outside
// this system; the scheduler only consumes whatever token is on file.
type TokenStore interface {
	TokenForUser(ctx context.Context, userID string) (*oauth2.Token, error)
}
