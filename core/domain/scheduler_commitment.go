package domain

import (
	"fmt"
	"time"
)

// CommitmentKind distinguishes the two sources of busy time.
type CommitmentKind string

const (
	CommitmentEvent CommitmentKind = "event"
	CommitmentTask  CommitmentKind = "task"
)

// Commitment is the unified read-only view of an event or task occupying
// time. The scheduling engine only ever sees snapshots; ownership stays
// with the storage layer.
type Commitment struct {
	Kind       CommitmentKind `json:"kind"`
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Location   *string        `json:"location,omitempty"`
	Priority   Priority       `json:"priority,omitempty"`
	CalendarID *int64         `json:"calendar_id,omitempty"`
}

// Overlaps reports whether [start, end) intersects the commitment,
// half-open on both sides.
func (c *Commitment) Overlaps(start, end time.Time) bool {
	return start.Before(c.End) && end.After(c.Start)
}

// CommitmentFromEvent snapshots an event for conflict checking.
func CommitmentFromEvent(e *CalendarEvent) Commitment {
	return Commitment{
		Kind:       CommitmentEvent,
		ID:         e.ID,
		Title:      e.Title,
		Start:      e.StartTime,
		End:        e.EndTime,
		Location:   e.Location,
		CalendarID: e.CalendarID,
	}
}

// CommitmentFromTask snapshots a task. Returns false when the task
// occupies no time (no schedule and no due date).
func CommitmentFromTask(t *Task) (Commitment, bool) {
	start, end, ok := t.Interval()
	if !ok {
		return Commitment{}, false
	}
	return Commitment{
		Kind:     CommitmentTask,
		ID:       t.ID,
		Title:    t.Title,
		Start:    start,
		End:      end,
		Priority: t.Priority,
	}, true
}

// =============================================================================
// Conflict types
// =============================================================================

type ConflictType string

const (
	ConflictDirect      ConflictType = "direct"
	ConflictBuffer      ConflictType = "buffer"
	ConflictTravel      ConflictType = "travel"
	ConflictPreparation ConflictType = "preparation"
	ConflictOverlap     ConflictType = "overlap" // task overlap
)

// Severity is a total order: None < Low < Medium < High < Critical.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// OverlapInterval is the exact intersection of a proposed slot and a
// conflicting commitment.
type OverlapInterval struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// ConflictInfo describes one conflict between a proposed interval and an
// existing commitment. Created fresh per check; never persisted.
type ConflictInfo struct {
	Type            ConflictType     `json:"type"`
	Severity        Severity         `json:"severity"`
	Description     string           `json:"description"`
	SuggestedAction string           `json:"suggested_action,omitempty"`
	Commitment      Commitment       `json:"conflicting_commitment"`
	Overlap         *OverlapInterval `json:"overlap_interval,omitempty"`
}

// ConflictCheckResult aggregates all conflicts for one proposed interval.
type ConflictCheckResult struct {
	HasConflicts    bool                 `json:"has_conflicts"`
	Conflicts       []ConflictInfo       `json:"conflicts"`
	Severity        Severity             `json:"severity"`
	CanProceed      bool                 `json:"can_proceed"`
	Alternatives    []AvailabilityWindow `json:"alternatives,omitempty"`
	Recommendations []string             `json:"recommendations"`

	// Degraded marks a fail-open result produced because the check itself
	// errored. Callers treating this service as a system of record should
	// not trust CanProceed when set.
	Degraded bool `json:"degraded,omitempty"`
}

// MaxSeverity returns the overall severity of a set of conflicts.
func MaxSeverity(conflicts []ConflictInfo) Severity {
	max := SeverityNone
	for _, c := range conflicts {
		if c.Severity > max {
			max = c.Severity
		}
	}
	return max
}

// =============================================================================
// Availability
// =============================================================================

// TimeSlot is one cell of the availability grid. Ephemeral, generated per
// query.
type TimeSlot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
	CalendarID *int64    `json:"calendar_id,omitempty"`
}

// SlotQuality ranks how desirable a candidate window is.
type SlotQuality string

const (
	QualityOptimal    SlotQuality = "optimal"
	QualityGood       SlotQuality = "good"
	QualityAcceptable SlotQuality = "acceptable"
	QualityPoor       SlotQuality = "poor"
)

// AvailabilityWindow is a ranked alternative slot.
type AvailabilityWindow struct {
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	DurationMinutes int            `json:"duration_minutes"`
	Quality         SlotQuality    `json:"quality"`
	Reasoning       []string       `json:"reasoning,omitempty"`
	Conflicts       []ConflictInfo `json:"conflicts,omitempty"`
}
