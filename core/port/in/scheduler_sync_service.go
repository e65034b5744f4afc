package in

import (
	"context"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/out"

	"github.com/google/uuid"
)

// SyncService reconciles the remote provider with local storage.
type SyncService interface {
	// SyncCalendars runs one reconciliation. Per-calendar failures are
	// recorded in the result and do not abort the run.
	SyncCalendars(ctx context.Context, userID uuid.UUID, opts *SyncOptions) *domain.SyncResult

	GetSyncStatus(ctx context.Context, userID uuid.UUID) (*domain.SyncStatus, error)

	// SyncEventToGoogle pushes one local event to the provider and stamps
	// the local row with the returned remote id.
	SyncEventToGoogle(ctx context.Context, userID uuid.UUID, eventID int64) *domain.SyncPushResult

	// GetFreeBusy proxies the provider's free/busy query, cached briefly.
	GetFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time, calendarIDs []string) (*out.FreeBusyResponse, error)
}

// SyncOptions tunes a reconciliation run. Zero values get defaults.
type SyncOptions struct {
	// Restrict the run to one local calendar; zero means all enabled.
	CalendarID int64 `json:"calendar_id,omitempty"`

	Direction domain.SyncDirection `json:"direction,omitempty"` // default bidirectional

	DaysBack  int `json:"days_back,omitempty"`  // default 30
	DaysAhead int `json:"days_ahead,omitempty"` // default 90

	// ForceFullSync additionally scans for orphaned local events.
	ForceFullSync bool `json:"force_full_sync,omitempty"`
}

// Normalize applies defaults in place.
func (o *SyncOptions) Normalize() {
	if o.Direction == "" {
		o.Direction = domain.SyncBidirectional
	}
	if o.DaysBack <= 0 {
		o.DaysBack = 30
	}
	if o.DaysAhead <= 0 {
		o.DaysAhead = 90
	}
}
