// Package worker hosts the background reconciliation loop that keeps
// local calendars converged with the provider without user interaction.
package worker

import (
	"context"
	"time"

	"scheduler_server/core/port/in"
	"scheduler_server/core/port/out"
	"scheduler_server/pkg/logger"
)

const (
	// defaultSyncInterval is how often the loop wakes up to reconcile
	// every sync-enabled user.
	defaultSyncInterval = 15 * time.Minute

	// startupDelay lets the server settle before the first run.
	startupDelay = 30 * time.Second

	// perUserTimeout bounds one user's reconciliation so a single stuck
	// provider call cannot stall the whole sweep.
	perUserTimeout = 5 * time.Minute
)

// BackgroundSyncScheduler periodically reconciles calendars for every
// user with at least one sync-enabled calendar.
type BackgroundSyncScheduler struct {
	syncService in.SyncService
	calendars   out.CalendarRepository
	interval    time.Duration
	log         *logger.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewBackgroundSyncScheduler(syncService in.SyncService, calendars out.CalendarRepository, interval time.Duration) *BackgroundSyncScheduler {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundSyncScheduler{
		syncService: syncService,
		calendars:   calendars,
		interval:    interval,
		log:         logger.WithField("component", "background_sync"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the loop in its own goroutine.
func (s *BackgroundSyncScheduler) Start() {
	s.log.Info("starting, interval %s", s.interval)
	go s.run()
}

// Stop signals the loop to exit. A sweep already in flight finishes its
// current user before observing the cancellation.
func (s *BackgroundSyncScheduler) Stop() {
	s.log.Info("stopping")
	s.cancel()
}

func (s *BackgroundSyncScheduler) run() {
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(startupDelay):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep reconciles every sync-enabled user once. Per-user failures are
// logged and skipped; the sweep always visits everyone.
func (s *BackgroundSyncScheduler) sweep() {
	users, err := s.calendars.ListUsersWithSyncEnabled(s.ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to list sync users")
		return
	}
	if len(users) == 0 {
		return
	}

	s.log.Info("sweeping %d users", len(users))
	for _, userID := range users {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		ctx, cancel := context.WithTimeout(s.ctx, perUserTimeout)
		result := s.syncService.SyncCalendars(ctx, userID, &in.SyncOptions{})
		cancel()

		if !result.Success {
			s.log.WithField("user_id", userID).Warn("background sync finished with errors: %v", result.Errors)
			continue
		}
		if result.Stats.Created+result.Stats.Updated+result.Stats.Deleted > 0 {
			s.log.WithFields(map[string]any{
				"user_id": userID,
				"created": result.Stats.Created,
				"updated": result.Stats.Updated,
				"deleted": result.Stats.Deleted,
			}).Info("background sync applied changes")
		}
	}
}

// SetInterval overrides the tick interval, used by tests.
func (s *BackgroundSyncScheduler) SetInterval(interval time.Duration) {
	s.interval = interval
}
