package bootstrap

import (
	"os"

	"scheduler_server/adapter/in/worker"
	"scheduler_server/config"

	"github.com/rs/zerolog"
)

// Worker hosts the background reconciliation loop.
type Worker struct {
	syncScheduler *worker.BackgroundSyncScheduler
	zlog          zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	w := &Worker{zlog: zlog}
	switch {
	case !cfg.SyncEnabled:
		zlog.Warn().Msg("background sync disabled by config")
	case deps.SyncService == nil:
		zlog.Warn().Msg("background sync disabled: no calendar provider configured")
	default:
		w.syncScheduler = worker.NewBackgroundSyncScheduler(
			deps.SyncService,
			deps.CalendarRepo,
			cfg.SyncInterval,
		)
	}

	return w, cleanup, nil
}

// Start launches the background loops and returns immediately.
func (w *Worker) Start() {
	if w.syncScheduler != nil {
		w.syncScheduler.Start()
		w.zlog.Info().Msg("background sync scheduler started")
	}
}

// Stop signals the loops to exit.
func (w *Worker) Stop() {
	if w.syncScheduler != nil {
		w.syncScheduler.Stop()
	}
	w.zlog.Info().Msg("worker stopped")
}
