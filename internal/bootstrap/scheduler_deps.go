// Package bootstrap wires configuration, connections, adapters and
// services into runnable API and worker processes.
package bootstrap

import (
	"context"

	"scheduler_server/adapter/out/mongodb"
	"scheduler_server/adapter/out/persistence"
	"scheduler_server/adapter/out/provider"
	"scheduler_server/config"
	"scheduler_server/core/port/out"
	"scheduler_server/core/service/scheduling"
	"scheduler_server/core/service/sync"
	"scheduler_server/infra/database"
	"scheduler_server/pkg/cache"
	"scheduler_server/pkg/logger"
	"scheduler_server/pkg/resilience"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	EventRepo    out.EventRepository
	TaskRepo     out.TaskRepository
	CalendarRepo out.CalendarRepository
	PrefsRepo    out.PreferencesRepository
	TokenStore   out.TokenStore
	AuditRepo    out.AuditRepository

	// Provider
	CalendarProvider *provider.GoogleCalendarAdapter

	// Cache
	Cache *cache.RedisCache

	// Services
	SchedulingService *scheduling.Service
	SyncService       *sync.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool, health checks)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx, persistence adapters)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis is optional; without it the grid cache degrades to misses.
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}
	deps.Cache = cache.NewRedisCache(deps.Redis)

	// MongoDB carries only the audit log, also optional.
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})
		}
	}

	auditAdapter := mongodb.NewAuditAdapter(mongoDatabase(deps.MongoDB, cfg.MongoDBName))
	if err := auditAdapter.EnsureIndexes(context.Background()); err != nil {
		logger.Warn("Failed to ensure audit indexes: %v", err)
	}
	deps.AuditRepo = auditAdapter

	// Repositories
	deps.EventRepo = persistence.NewEventAdapter(sqlDB)
	deps.TaskRepo = persistence.NewTaskAdapter(sqlDB)
	deps.CalendarRepo = persistence.NewCalendarAdapter(sqlDB)
	deps.PrefsRepo = persistence.NewPreferencesAdapter(sqlDB)
	deps.TokenStore = persistence.NewTokenAdapter(sqlDB)

	// Google Calendar provider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		deps.CalendarProvider = provider.NewGoogleCalendarAdapter(&provider.GoogleCalendarConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		logger.Info("Google Calendar provider initialized")
	} else {
		logger.Warn("Google OAuth not configured, sync disabled")
	}

	// Services
	deps.SchedulingService = scheduling.NewService(
		deps.EventRepo,
		deps.TaskRepo,
		deps.PrefsRepo,
		deps.AuditRepo,
		deps.Cache,
		cfg.GridCacheTTL,
	)

	// Without a provider the sync service is not built at all. The nil
	// adapter must never cross the port interface, where it would read as
	// non-nil.
	if deps.CalendarProvider != nil {
		retryCfg := resilience.DefaultRetryConfig()
		if cfg.SyncMaxRetries > 0 {
			retryCfg.MaxRetries = cfg.SyncMaxRetries
		}
		deps.SyncService = sync.NewService(
			deps.CalendarProvider,
			deps.TokenStore,
			deps.CalendarRepo,
			deps.EventRepo,
			deps.AuditRepo,
			deps.Cache,
			retryCfg,
		)
	}

	return deps, cleanup, nil
}

func mongoDatabase(client *mongo.Client, name string) *mongo.Database {
	if client == nil {
		return nil
	}
	return client.Database(name)
}
