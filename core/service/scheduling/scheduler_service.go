// Package scheduling implements the conflict-detection and slot-ranking
// engine behind the dashboard's scheduling features.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/out"
	"scheduler_server/pkg/cache"
	"scheduler_server/pkg/logger"

	"github.com/google/uuid"
)

// Service is the scheduling engine. Stateless and request-scoped: every
// operation reads commitments fresh from storage.
type Service struct {
	events out.EventRepository
	tasks  out.TaskRepository
	prefs  out.PreferencesRepository
	audit  out.AuditRepository
	cache  *cache.RedisCache

	gridCacheTTL time.Duration
	log          *logger.Logger
}

// NewService creates the scheduling engine. audit and cache may be nil.
func NewService(
	events out.EventRepository,
	tasks out.TaskRepository,
	prefs out.PreferencesRepository,
	audit out.AuditRepository,
	redisCache *cache.RedisCache,
	gridCacheTTL time.Duration,
) *Service {
	if gridCacheTTL <= 0 {
		gridCacheTTL = 15 * time.Minute
	}
	if redisCache == nil {
		redisCache = cache.NewRedisCache(nil)
	}
	return &Service{
		events:       events,
		tasks:        tasks,
		prefs:        prefs,
		audit:        audit,
		cache:        redisCache,
		gridCacheTTL: gridCacheTTL,
		log:          logger.WithField("component", "scheduling"),
	}
}

// loadPreferences returns the user's normalized preferences, falling back
// to defaults when none are stored or the read fails. A failed read is
// audited but never fails the calling operation.
func (s *Service) loadPreferences(ctx context.Context, userID uuid.UUID) *domain.SchedulingPreferences {
	p, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		s.log.WithError(err).Warn("preferences read failed, using defaults")
		s.recordAudit(ctx, userID, "load-preferences", err)
		return domain.DefaultPreferences(userID)
	}
	if p == nil {
		return domain.DefaultPreferences(userID)
	}
	p.Normalize()
	return p
}

// fetchCommitments snapshots events (and optionally open tasks) that
// overlap [start, end).
func (s *Service) fetchCommitments(
	ctx context.Context,
	userID uuid.UUID,
	start, end time.Time,
	excludeEventID *int64,
	includeTasks bool,
) ([]domain.Commitment, error) {
	filter := &domain.EventRangeFilter{
		UserID:         userID,
		Start:          start,
		End:            end,
		ExcludeEventID: excludeEventID,
		IncludeStatuses: []domain.EventStatus{
			domain.EventStatusConfirmed,
			domain.EventStatusPending,
			domain.EventStatusReviewNeeded,
		},
	}
	events, err := s.events.ListEventsInRange(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	commitments := make([]domain.Commitment, 0, len(events))
	for _, e := range events {
		commitments = append(commitments, domain.CommitmentFromEvent(e))
	}

	if includeTasks {
		tasks, err := s.tasks.ListOpenTasksInRange(ctx, userID, start, end)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, t := range tasks {
			if c, ok := domain.CommitmentFromTask(t); ok {
				commitments = append(commitments, c)
			}
		}
	}

	return commitments, nil
}

// recordAudit appends a best-effort audit entry for a failed operation.
func (s *Service) recordAudit(ctx context.Context, userID uuid.UUID, operation string, err error) {
	if s.audit == nil || err == nil {
		return
	}
	uid := userID
	s.audit.Append(ctx, &domain.AuditRecord{
		UserID:    &uid,
		Operation: operation,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

func gridCacheKey(userID uuid.UUID, start, end time.Time, slotMinutes int) string {
	return fmt.Sprintf("avail:%s:%d:%d:%d", userID, start.Unix(), end.Unix(), slotMinutes)
}
