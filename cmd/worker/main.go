// Package main is the entry point of the GuildXP worker process: the
// scheduled background jobs (leaderboard view pre-warming, daily export
// backups) and the cross-instance event subscriber.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/guildxp/guildxp/config"
	"github.com/guildxp/guildxp/internal/application/eventhandler"
	"github.com/guildxp/guildxp/internal/application/query"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/messaging"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/postgres"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/redis"
	"github.com/guildxp/guildxp/internal/infrastructure/scheduler"
	"github.com/guildxp/guildxp/internal/infrastructure/scheduler/jobs"
	"github.com/guildxp/guildxp/pkg/logger"
	"github.com/guildxp/guildxp/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slogger := setupSlog(cfg)
	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
	})

	slogger.Info("starting guildxp worker",
		"env", string(cfg.App.Environment),
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	var dbConn *postgres.Connection
	// Retry the initial connect so the worker survives a database that is
	// still starting up.
	err = retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		var connErr error
		dbConn, connErr = postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		return connErr
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	repo := postgres.NewMemberRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS
	// The worker needs Redis: the view cache is what the rebuild job warms
	// and the snapshot store is where backups land.
	// ─────────────────────────────────────────────────────────────────────────
	redisCfg := redis.DefaultConfig()
	if cfg.Redis.Host != "" {
		redisCfg.Host = cfg.Redis.Host
	}
	if cfg.Redis.Port != 0 {
		redisCfg.Port = cfg.Redis.Port
	}
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisCache.Close()

	viewCache := redis.NewViewCache(redisCache, appLog)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT SUBSCRIBER
	// The worker listens to events published by bot instances and keeps a
	// level-up tally plus its own view cache consistency.
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = slogger
	busCfg.AsyncMode = true

	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(redisCache.Client()),
		LocalBusConfig: busCfg,
		Logger:         slogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis event bus: %w", err)
	}
	defer eventBus.Close()

	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(slogger))
	dispatcher.Use(messaging.LoggingMiddleware(slogger))
	defer func() { _ = dispatcher.Stop() }()

	levelUps := eventhandler.NewOnLevelUpHandler(slogger)
	if err := dispatcher.Register(shared.EventLevelUp, "level_up_tally", levelUps.Handle); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	invalidator := eventhandler.NewOnRecordChangedHandler(viewCache, slogger)
	for _, eventType := range eventhandler.RecordChangedEvents {
		if err := dispatcher.Register(eventType, "view_cache_invalidator", invalidator.Handle); err != nil {
			return fmt.Errorf("failed to register event handler: %w", err)
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   slogger,
		Timezone: cfg.App.Location,
	})

	if cfg.Scheduler.Enabled {
		rebuildJob := jobs.NewRebuildViewsJob(repo, viewCache, slogger, jobs.DefaultRebuildViewsConfig())
		if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildViewsInterval)); err != nil {
			return fmt.Errorf("failed to register rebuild job: %w", err)
		}

		if cfg.Features.IsEnabled(config.FeatureSystemExportBackup, nil) {
			exporter := query.NewExportRecordsHandler(repo, appLog)
			backupJob := jobs.NewExportBackupJob(exporter, redisCache, slogger, jobs.DefaultExportBackupConfig())
			if err := sched.Register(backupJob, scheduler.NewDailyAtSchedule(cfg.Scheduler.BackupHour, cfg.Scheduler.BackupMinute)); err != nil {
				return fmt.Errorf("failed to register backup job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. WAIT FOR SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("guildxp worker is running", "jobs", len(sched.ListJobs()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	slogger.Info("shutdown complete")
	return nil
}

// setupSlog builds the process-wide structured logger.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
