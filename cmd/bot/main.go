// Package main is the entry point of the GuildXP bot process: the polling
// loop, the progression engine, and the optional HTTP surface.
//
// The layout follows Clean Architecture and DDD:
//   - Domain: progression rules, no external dependencies
//   - Application: commands and queries over the domain
//   - Infrastructure: Postgres, Redis, the chat platform client
//   - Interface: chat commands, HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guildxp/guildxp/config"
	"github.com/guildxp/guildxp/internal/application/command"
	"github.com/guildxp/guildxp/internal/application/eventhandler"
	"github.com/guildxp/guildxp/internal/application/query"
	"github.com/guildxp/guildxp/internal/domain/award"
	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/notification"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/external/chat"
	"github.com/guildxp/guildxp/internal/infrastructure/messaging"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/postgres"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/redis"
	"github.com/guildxp/guildxp/internal/infrastructure/service"
	"github.com/guildxp/guildxp/internal/interface/bot"
	httpserver "github.com/guildxp/guildxp/internal/interface/http"
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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// slog drives the infrastructure layers, pkg/logger the application
	// layer. Both read the same level from config.
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupSlog(cfg)
	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
	})

	slogger.Info("starting guildxp bot",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"leveling_active", cfg.Leveling.Active,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("connecting to database")
	var dbConn *postgres.Connection
	// Postgres may still be coming up when the bot starts; retry the
	// initial connect instead of crash-looping.
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

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slogger.Info("database ready")

	repo := postgres.NewMemberRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional: view cache and cross-instance events)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var viewCache member.ViewCache

	if cfg.Redis.Host != "" || cfg.Redis.URL != "" {
		redisCfg := redis.DefaultConfig()
		if cfg.Redis.Host != "" {
			redisCfg.Host = cfg.Redis.Host
		}
		if cfg.Redis.Port != 0 {
			redisCfg.Port = cfg.Redis.Port
		}
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			slogger.Warn("redis unavailable, view caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			viewCache = redis.NewViewCache(redisCache, appLog)
			slogger.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS AND DISPATCHER
	// With Redis the bus fans events out to sibling instances; without it
	// events stay in-process.
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = slogger
	busCfg.AsyncMode = true

	var eventBus shared.EventBus
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisCache.Client()),
			LocalBusConfig: busCfg,
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		defer redisBus.Close()
		eventBus = redisBus
	} else {
		inMemBus := messaging.NewInMemoryEventBus(busCfg)
		defer inMemBus.Close()
		eventBus = inMemBus
	}

	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(slogger))
	dispatcher.Use(messaging.LoggingMiddleware(slogger))
	defer func() { _ = dispatcher.Stop() }()

	if viewCache != nil {
		invalidator := eventhandler.NewOnRecordChangedHandler(viewCache, slogger)
		for _, eventType := range eventhandler.RecordChangedEvents {
			if err := dispatcher.Register(eventType, "view_cache_invalidator", invalidator.Handle); err != nil {
				return fmt.Errorf("failed to register event handler: %w", err)
			}
		}
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. CHAT PLATFORM CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	chatCfg := chat.DefaultClientConfig(cfg.Chat.Token)
	chatCfg.Timeout = cfg.Chat.RequestTimeout
	chatCfg.Logger = slogger
	chatCfg.Debug = cfg.App.Debug
	chatClient := chat.NewClient(chatCfg)

	adapter := service.NewChatAdapter(chatClient, slogger)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. PROGRESSION ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	awardSet, err := buildAwardSet(cfg)
	if err != nil {
		return fmt.Errorf("invalid role award configuration: %w", err)
	}

	core := command.NewProgressionCore(
		repo, awardSet, adapter, adapter, eventBus, appLog,
		command.ProgressionCoreConfig{
			StackAwards:     cfg.Leveling.StackAwards,
			AnnounceLevelUp: cfg.Leveling.AnnounceLevelUp && cfg.Features.IsEnabled(config.FeatureLevelingAnnouncements, nil),
			Announcements:   buildAnnouncementPool(cfg),
		},
	)

	activityHandler, err := command.NewProcessActivityHandler(core, appLog, command.ProcessActivityConfig{
		Rate:           cfg.Leveling.Rate,
		Per:            cfg.Leveling.Per,
		NoXPRoleIDs:    toRoleIDs(cfg.Leveling.NoXPRoleIDs),
		NoXPChannelIDs: toChannelIDs(cfg.Leveling.NoXPChannelIDs),
	})
	if err != nil {
		return fmt.Errorf("failed to create activity handler: %w", err)
	}
	defer activityHandler.Close()
	activityHandler.SetActive(cfg.Leveling.Active)

	mutateHandler := command.NewMutateXPHandler(core, appLog)
	maintenanceHandler := command.NewMaintenanceHandler(core, appLog)

	rankQuery := query.NewGetRankHandler(repo, viewCache, appLog)
	leaderboardQuery := query.NewGetLeaderboardHandler(repo, viewCache, appLog)
	neighborsQuery := query.NewGetNeighborsHandler(rankQuery)
	memberQuery := query.NewGetMemberHandler(repo)
	exportQuery := query.NewExportRecordsHandler(repo, appLog)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. CHAT INTERFACE
	// ─────────────────────────────────────────────────────────────────────────
	router := bot.NewRouter("!", slogger)
	router.Use(bot.RecoveryMiddleware(slogger))
	router.Use(bot.LoggingMiddleware(slogger))
	router.Use(bot.ThrottleMiddleware(2 * time.Second))

	handlers := bot.NewHandlers(bot.HandlersConfig{
		Rank:        rankQuery,
		Leaderboard: leaderboardQuery,
		Neighbors:   neighborsQuery,
		Members:     memberQuery,
		Export:      exportQuery,
		Mutate:      mutateHandler,
		Maintenance: maintenanceHandler,
	})
	handlers.RegisterAll(router)

	botCfg := bot.DefaultBotConfig()
	botCfg.AdminIDs = cfg.Chat.AdminIDs
	chatBot := bot.NewBot(botCfg, chatClient, adapter, activityHandler, router, slogger)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var httpSrv *httpserver.Server
	errCh := make(chan error, 2)

	if cfg.HTTP.Enabled {
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Host = cfg.HTTP.Host
		httpCfg.Port = cfg.HTTP.Port

		checkers := map[string]httpserver.HealthChecker{
			"postgres": dbConn.Ping,
		}
		if redisCache != nil {
			checkers["redis"] = redisCache.Ping
		}

		httpSrv = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			Leaderboard: leaderboardQuery,
			Rank:        rankQuery,
			Members:     memberQuery,
			Neighbors:   neighborsQuery,
			Logger:      appLog,
			Checkers:    checkers,
		})

		go func() {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. START AND WAIT
	// ─────────────────────────────────────────────────────────────────────────
	if err := chatBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	slogger.Info("guildxp bot is running",
		"http_enabled", cfg.HTTP.Enabled,
		"redis_enabled", redisCache != nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slogger.Error("service error", "error", err)
		return err
	case <-ctx.Done():
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := chatBot.Stop(); err != nil && !errors.Is(err, bot.ErrBotNotRunning) {
		slogger.Error("failed to stop bot gracefully", "error", err)
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to stop http server gracefully", "error", err)
		}
	}

	slogger.Info("shutdown complete")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

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

// buildAwardSet converts the configured role awards into the domain set.
func buildAwardSet(cfg *config.Config) (*award.Set, error) {
	if len(cfg.Leveling.RoleAwards) == 0 || !cfg.Features.IsEnabled(config.FeatureLevelingRoleAwards, nil) {
		return award.EmptySet(), nil
	}

	byGuild := make(map[shared.GuildID][]award.RoleAward)
	for _, ra := range cfg.Leveling.RoleAwards {
		guildID := shared.GuildID(ra.GuildID)
		byGuild[guildID] = append(byGuild[guildID], award.RoleAward{
			RoleID:           shared.RoleID(ra.RoleID),
			LevelRequirement: ra.Level,
		})
	}
	return award.NewSet(byGuild)
}

// buildAnnouncementPool pins announcements to the configured channel when
// one is set.
func buildAnnouncementPool(cfg *config.Config) *notification.Pool {
	if cfg.Leveling.AnnounceChannelID == 0 {
		return notification.NewPool()
	}

	announcement, err := notification.NewAnnouncement(
		notification.DefaultMessage,
		shared.ChannelID(cfg.Leveling.AnnounceChannelID),
	)
	if err != nil {
		return notification.NewPool()
	}
	return notification.NewPool(announcement)
}

func toRoleIDs(ids []int64) []shared.RoleID {
	out := make([]shared.RoleID, len(ids))
	for i, id := range ids {
		out[i] = shared.RoleID(id)
	}
	return out
}

func toChannelIDs(ids []int64) []shared.ChannelID {
	out := make([]shared.ChannelID, len(ids))
	for i, id := range ids {
		out[i] = shared.ChannelID(id)
	}
	return out
}
