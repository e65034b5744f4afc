package domain

import (
	"fmt"
	"time"
)

// SyncDirection controls which way a reconciliation run flows.
type SyncDirection string

const (
	SyncFromGoogle    SyncDirection = "from_google"
	SyncToGoogle      SyncDirection = "to_google"
	SyncBidirectional SyncDirection = "bidirectional"
)

// PullsFromRemote reports whether the direction includes remote -> local.
func (d SyncDirection) PullsFromRemote() bool {
	return d == SyncFromGoogle || d == SyncBidirectional
}

// SyncStats counts per-item decisions made during a run.
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// SyncResult accumulates over a single reconciliation run and is discarded
// after return. A run with recorded errors can still be Success=true as
// long as at least part of it completed (partial-failure isolation).
type SyncResult struct {
	Success            bool      `json:"success"`
	CalendarsProcessed int       `json:"calendars_processed"`
	EventsProcessed    int       `json:"events_processed"`
	Errors             []string  `json:"errors,omitempty"`
	LastSyncTime       time.Time `json:"last_sync_time"`
	Stats              SyncStats `json:"stats"`
}

// AddError records a per-item failure without aborting the run.
func (r *SyncResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// SyncStatus is the aggregate read-only report for a user.
type SyncStatus struct {
	LastSyncTime     *time.Time `json:"last_sync_time,omitempty"`
	TotalCalendars   int        `json:"total_calendars"`
	EnabledCalendars int        `json:"enabled_calendars"`
	TotalEvents      int        `json:"total_events"`
	RecentEvents     int        `json:"recent_events"`
	PendingEvents    int        `json:"pending_events"`
}

// SyncPushResult reports a single local-to-remote push. Returned instead
// of an error so batch callers can aggregate partial results.
type SyncPushResult struct {
	Success       bool   `json:"success"`
	RemoteEventID string `json:"remote_event_id,omitempty"`
	Error         string `json:"error,omitempty"`
}
