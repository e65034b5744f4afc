package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/in"

	"github.com/google/uuid"
)

// Quality scores used when ranking alternatives. A residual non-blocking
// conflict (buffer, travel, task) knocks the candidate down by
// conflictPenalty per conflict.
const (
	qualityScoreOptimal    = 10.0
	qualityScoreGood       = 7.0
	qualityScoreAcceptable = 4.0
	qualityScorePoor       = 1.0
	conflictPenalty        = 0.5
)

// checkConfig is a fully resolved ConflictCheckConfig: request overrides
// merged over stored preferences.
type checkConfig struct {
	bufferMinutes        int
	travelMinutes        int
	includeTravelTime    bool
	includeTaskConflicts bool
	lookAheadDays        int
	maxAlternatives      int
}

func resolveConfig(req *in.ConflictCheckRequest, prefs *domain.SchedulingPreferences) checkConfig {
	cfg := checkConfig{
		bufferMinutes:        prefs.BufferTimeMinutes,
		travelMinutes:        prefs.TravelTimeMinutes,
		includeTravelTime:    true,
		includeTaskConflicts: true,
		lookAheadDays:        7,
		maxAlternatives:      5,
	}
	if req.Config == nil {
		return cfg
	}
	if req.Config.BufferMinutes > 0 {
		cfg.bufferMinutes = req.Config.BufferMinutes
	}
	if req.Config.TravelTimeMinutes > 0 {
		cfg.travelMinutes = req.Config.TravelTimeMinutes
	}
	if req.Config.IncludeTravelTime != nil {
		cfg.includeTravelTime = *req.Config.IncludeTravelTime
	}
	if req.Config.IncludeTaskConflicts != nil {
		cfg.includeTaskConflicts = *req.Config.IncludeTaskConflicts
	}
	if req.Config.LookAheadDays > 0 {
		cfg.lookAheadDays = req.Config.LookAheadDays
	}
	if req.Config.MaxAlternatives > 0 {
		cfg.maxAlternatives = req.Config.MaxAlternatives
	}
	return cfg
}

// CheckConflicts validates one proposed interval against the user's
// commitments. Internal failures never propagate: the check degrades to an
// optimistic no-conflict result flagged Degraded, and the failure is
// audited.
func (s *Service) CheckConflicts(
	ctx context.Context,
	userID uuid.UUID,
	req *in.ConflictCheckRequest,
) (*domain.ConflictCheckResult, error) {
	if req == nil || !req.End.After(req.Start) {
		return nil, fmt.Errorf("invalid interval: end must be after start")
	}

	prefs := s.loadPreferences(ctx, userID)
	cfg := resolveConfig(req, prefs)

	// Widen the fetch so commitments whose buffer or travel padding could
	// reach the proposed interval are included.
	widen := time.Duration(maxInt(cfg.bufferMinutes, cfg.travelMinutes)) * time.Minute
	commitments, err := s.fetchCommitments(
		ctx, userID,
		req.Start.Add(-widen), req.End.Add(widen),
		req.ExcludeEventID,
		cfg.includeTaskConflicts,
	)
	if err != nil {
		s.log.WithError(err).Error("conflict check degraded to fail-open")
		s.recordAudit(ctx, userID, "check-conflicts", err)
		return degradedResult(), nil
	}

	conflicts := classifyConflicts(req.Start, req.End, commitments, cfg)
	severity := domain.MaxSeverity(conflicts)

	result := &domain.ConflictCheckResult{
		HasConflicts:    len(conflicts) > 0,
		Conflicts:       conflicts,
		Severity:        severity,
		CanProceed:      severity < domain.SeverityCritical,
		Recommendations: buildRecommendations(conflicts, severity),
	}

	if req.IncludeAlternatives && result.HasConflicts {
		result.Alternatives = s.findAlternatives(ctx, userID, req.Start, req.End, cfg, prefs, req.ExcludeEventID)
	}

	return result, nil
}

// degradedResult is the fail-open shape returned when the check itself
// cannot run.
func degradedResult() *domain.ConflictCheckResult {
	return &domain.ConflictCheckResult{
		HasConflicts: false,
		Conflicts:    []domain.ConflictInfo{},
		Severity:     domain.SeverityNone,
		CanProceed:   true,
		Degraded:     true,
		Recommendations: []string{
			"Conflict check could not be completed; the slot was not verified against your calendar",
		},
	}
}

// classifyConflicts runs the per-commitment classification. Each
// commitment contributes at most one conflict, the highest-priority kind
// that applies: direct, then buffer, then travel for events; overlap for
// tasks.
func classifyConflicts(
	start, end time.Time,
	commitments []domain.Commitment,
	cfg checkConfig,
) []domain.ConflictInfo {
	conflicts := make([]domain.ConflictInfo, 0, len(commitments))
	for i := range commitments {
		c := commitments[i]
		var info *domain.ConflictInfo
		switch c.Kind {
		case domain.CommitmentTask:
			info = classifyTaskConflict(start, end, c)
		default:
			info = classifyEventConflict(start, end, c, cfg)
		}
		if info != nil {
			conflicts = append(conflicts, *info)
		}
	}
	return conflicts
}

func classifyEventConflict(start, end time.Time, c domain.Commitment, cfg checkConfig) *domain.ConflictInfo {
	// Direct overlap is always critical.
	if c.Overlaps(start, end) {
		return &domain.ConflictInfo{
			Type:            domain.ConflictDirect,
			Severity:        domain.SeverityCritical,
			Description:     fmt.Sprintf("Overlaps with %q (%s - %s)", c.Title, fmtClock(c.Start), fmtClock(c.End)),
			SuggestedAction: "Choose a different time",
			Commitment:      c,
			Overlap:         overlapInterval(start, end, c),
		}
	}

	// Buffer: both intervals padded by the buffer on each side.
	if cfg.bufferMinutes > 0 {
		pad := time.Duration(cfg.bufferMinutes) * time.Minute
		if start.Add(-pad).Before(c.End.Add(pad)) && end.Add(pad).After(c.Start.Add(-pad)) {
			return &domain.ConflictInfo{
				Type:            domain.ConflictBuffer,
				Severity:        domain.SeverityMedium,
				Description:     fmt.Sprintf("Less than %d minutes of buffer around %q", cfg.bufferMinutes, c.Title),
				SuggestedAction: "Leave more space between meetings",
				Commitment:      c,
			}
		}
	}

	// Travel: only meaningful against commitments with a location.
	if cfg.includeTravelTime && cfg.travelMinutes > 0 && c.Location != nil && *c.Location != "" {
		gap := intervalGap(start, end, c.Start, c.End)
		travel := time.Duration(cfg.travelMinutes) * time.Minute
		if gap >= 0 && gap < travel {
			return &domain.ConflictInfo{
				Type:     domain.ConflictTravel,
				Severity: domain.SeverityMedium,
				Description: fmt.Sprintf("Only %d minutes to travel to/from %q (needs %d)",
					int(gap.Minutes()), c.Title, cfg.travelMinutes),
				SuggestedAction: "Allow more travel time or make one meeting virtual",
				Commitment:      c,
			}
		}
	}

	return nil
}

func classifyTaskConflict(start, end time.Time, c domain.Commitment) *domain.ConflictInfo {
	if !c.Overlaps(start, end) {
		return nil
	}
	severity := domain.SeverityMedium
	action := "Consider rescheduling the task"
	if c.Priority == domain.PriorityHigh {
		severity = domain.SeverityHigh
		action = "Protect this task's time or move the meeting"
	}
	return &domain.ConflictInfo{
		Type:            domain.ConflictOverlap,
		Severity:        severity,
		Description:     fmt.Sprintf("Overlaps scheduled work on task %q", c.Title),
		SuggestedAction: action,
		Commitment:      c,
		Overlap:         overlapInterval(start, end, c),
	}
}

// overlapInterval computes the exact intersection of [start, end) and the
// commitment. Callers only invoke it when an overlap exists.
func overlapInterval(start, end time.Time, c domain.Commitment) *domain.OverlapInterval {
	s := start
	if c.Start.After(s) {
		s = c.Start
	}
	e := end
	if c.End.Before(e) {
		e = c.End
	}
	return &domain.OverlapInterval{
		Start:           s,
		End:             e,
		DurationMinutes: int(e.Sub(s).Minutes()),
	}
}

// intervalGap returns the distance between two disjoint intervals, or -1
// when they overlap.
func intervalGap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	switch {
	case aStart.Before(bEnd) && aEnd.After(bStart):
		return -1
	case !aEnd.After(bStart):
		return bStart.Sub(aEnd)
	default:
		return aStart.Sub(bEnd)
	}
}

// buildRecommendations turns the conflict set into short user-facing
// guidance, most severe first.
func buildRecommendations(conflicts []domain.ConflictInfo, severity domain.Severity) []string {
	if len(conflicts) == 0 {
		return []string{"This time slot is free"}
	}

	var recs []string
	switch severity {
	case domain.SeverityCritical:
		recs = append(recs, "This time directly overlaps an existing event; pick another slot")
	case domain.SeverityHigh:
		recs = append(recs, "This time collides with high-priority work; scheduling here is discouraged")
	default:
		recs = append(recs, "This time is usable but tight; see the conflicts below")
	}

	seen := map[domain.ConflictType]bool{}
	for _, c := range conflicts {
		if c.SuggestedAction == "" || seen[c.Type] {
			continue
		}
		seen[c.Type] = true
		recs = append(recs, c.SuggestedAction)
	}
	return recs
}

// findAlternatives searches forward from the proposed slot for same-length
// candidates, stepping 30 minutes at a time within working hours. Slots
// touching an existing event are discarded outright; residual soft
// conflicts only lower the ranking.
func (s *Service) findAlternatives(
	ctx context.Context,
	userID uuid.UUID,
	start, end time.Time,
	cfg checkConfig,
	prefs *domain.SchedulingPreferences,
	excludeEventID *int64,
) []domain.AvailabilityWindow {
	duration := end.Sub(start)
	loc := prefs.Location()

	searchEnd := start.AddDate(0, 0, cfg.lookAheadDays)
	widen := time.Duration(maxInt(cfg.bufferMinutes, cfg.travelMinutes)) * time.Minute
	commitments, err := s.fetchCommitments(ctx, userID, start.Add(-widen), searchEnd.Add(widen), excludeEventID, cfg.includeTaskConflicts)
	if err != nil {
		s.log.WithError(err).Warn("alternative search skipped")
		return nil
	}

	type scored struct {
		window domain.AvailabilityWindow
		score  float64
	}
	var candidates []scored

	first := start.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(searchEnd); day = day.AddDate(0, 0, 1) {
		if !prefs.IsWorkingDay(day.Weekday()) {
			continue
		}
		dayStart, dayEnd := prefs.DayWindow(day)

		for candStart := dayStart; ; candStart = candStart.Add(30 * time.Minute) {
			candEnd := candStart.Add(duration)
			if candEnd.After(dayEnd) {
				break
			}
			// Skip the proposed slot itself and anything before it.
			if candStart.Before(start) || candStart.Equal(start) {
				continue
			}
			if !eventFree(candStart, candEnd, commitments) {
				continue
			}

			residual := classifyConflicts(candStart, candEnd, commitments, cfg)
			quality := assessTimeQuality(candStart.In(loc))
			score := qualityScore(quality) - conflictPenalty*float64(len(residual))

			candidates = append(candidates, scored{
				window: domain.AvailabilityWindow{
					Start:           candStart,
					End:             candEnd,
					DurationMinutes: int(duration.Minutes()),
					Quality:         quality,
					Conflicts:       residual,
				},
				score: score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].window.Start.Before(candidates[j].window.Start)
	})

	n := cfg.maxAlternatives
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]domain.AvailabilityWindow, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.window)
	}
	return out
}

// eventFree reports whether no event commitment overlaps [start, end).
// Tasks do not make a slot unusable, only less desirable.
func eventFree(start, end time.Time, commitments []domain.Commitment) bool {
	for i := range commitments {
		if commitments[i].Kind == domain.CommitmentEvent && commitments[i].Overlaps(start, end) {
			return false
		}
	}
	return true
}

// assessTimeQuality tiers a start time by how people actually rate meeting
// slots: mid-morning midweek is best, edges of the day are worst.
func assessTimeQuality(start time.Time) domain.SlotQuality {
	h := start.Hour()
	wd := start.Weekday()
	weekday := wd >= time.Monday && wd <= time.Friday

	switch {
	case h >= 9 && h < 11 && wd >= time.Tuesday && wd <= time.Thursday:
		return domain.QualityOptimal
	case weekday && (h >= 9 && h < 12 || h >= 13 && h < 15):
		return domain.QualityGood
	case weekday && h >= 8 && h < 17:
		return domain.QualityAcceptable
	default:
		return domain.QualityPoor
	}
}

func qualityScore(q domain.SlotQuality) float64 {
	switch q {
	case domain.QualityOptimal:
		return qualityScoreOptimal
	case domain.QualityGood:
		return qualityScoreGood
	case domain.QualityAcceptable:
		return qualityScoreAcceptable
	default:
		return qualityScorePoor
	}
}

func fmtClock(t time.Time) string {
	return t.Format("15:04")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
