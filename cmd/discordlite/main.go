package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
	"github.com/KynuxDev/DiscordLite/internal/domain/service"
	"github.com/KynuxDev/DiscordLite/internal/events/kafka"
	"github.com/KynuxDev/DiscordLite/internal/gameserver"
	adminhttp "github.com/KynuxDev/DiscordLite/internal/handler/http"
	"github.com/KynuxDev/DiscordLite/internal/infrastructure/database/filestore"
	"github.com/KynuxDev/DiscordLite/internal/infrastructure/database/postgres"
	"github.com/KynuxDev/DiscordLite/internal/infrastructure/database/redisstore"
	"github.com/KynuxDev/DiscordLite/internal/notification"
	"github.com/KynuxDev/DiscordLite/internal/utils/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Environment)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, logger.WithComponent(log, "kafka"))
		defer producer.Close()
		publisher = producer
	}

	scheduler := gameserver.NewScheduler(logger.WithComponent(log, "scheduler"))
	scheduler.Start(ctx)
	registry := gameserver.NewRegistry(logger.WithComponent(log, "sessions"), scheduler)

	banCfg := cfg.Security.Ban
	banCfg.Whitelist = append(banCfg.Whitelist, loadStoredWhitelist(ctx, store, log)...)

	risk := service.NewRiskTracker(logger.WithComponent(log, "risk"), cfg.Security.Risk, banCfg)
	audit := service.NewAuditService(logger.WithComponent(log, "audit"), store.Events(), risk, publisher)
	bans := service.NewBanEnforcer(logger.WithComponent(log, "bans"), banCfg, store.Bans(), registry, audit, risk)
	risk.BindEnforcer(bans)

	channel := notification.NewLogChannel(logger.WithComponent(log, "channel"))
	links := service.NewLinkCoordinator(logger.WithComponent(log, "links"), cfg.Security.Linking,
		store.Identities(), store.PendingLinks(), registry, audit)
	challenges := service.NewChallengeCoordinator(logger.WithComponent(log, "challenges"), cfg.Security.Challenge,
		store.Identities(), registry, channel, audit, bans, risk)

	lifecycle := gameserver.NewLifecycle(logger.WithComponent(log, "lifecycle"),
		store.Identities(), registry, bans, links, challenges, audit)

	sweeper := startSweeps(cfg, logger.WithComponent(log, "sweep"), store, links, challenges, risk, audit)
	defer sweeper.Stop()

	router := adminhttp.NewRouter(logger.WithComponent(log, "http"), cfg.Admin, store,
		bans, links, challenges, risk, audit, lifecycle)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	scheduler.Wait()
	log.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.NewStore(ctx, cfg.Database.Postgres, logger.WithComponent(log, "postgres"))
	case "redis":
		return redisstore.NewStore(ctx, cfg.Database.Redis, logger.WithComponent(log, "redis"))
	case "file":
		return filestore.NewStore(cfg.Database.File, logger.WithComponent(log, "filestore"))
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// loadStoredWhitelist merges whitelist entries persisted through the admin
// surface with the configured ones. Missing row means nothing was ever saved.
func loadStoredWhitelist(ctx context.Context, store repository.Store, log *zap.Logger) []string {
	value, err := store.Settings().Get(ctx, service.WhitelistSettingKey)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrNotFound) {
			log.Warn("failed to load stored whitelist", zap.Error(err))
		}
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// startSweeps schedules the periodic maintenance: expired bans and links in
// the store, in-memory expiry backstops, risk window pruning, and the event
// retention horizon.
func startSweeps(
	cfg *config.Config,
	log *zap.Logger,
	store repository.Store,
	links *service.LinkCoordinator,
	challenges *service.ChallengeCoordinator,
	risk *service.RiskTracker,
	audit *service.AuditService,
) *cron.Cron {
	c := cron.New()
	interval := cfg.Security.Ban.SweepInterval
	retention := time.Duration(cfg.Security.Events.RetentionDays) * 24 * time.Hour

	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if n, err := store.Bans().DeleteExpired(ctx); err != nil {
			log.Warn("ban sweep failed", zap.Error(err))
		} else if n > 0 {
			log.Info("expired bans removed", zap.Int64("count", n))
		}
		if _, err := store.PendingLinks().DeleteExpired(ctx); err != nil {
			log.Warn("pending link sweep failed", zap.Error(err))
		}

		links.Cleanup()
		challenges.Cleanup()
		risk.Sweep()

		if n, err := audit.PruneOlderThan(ctx, time.Now().Add(-retention)); err != nil {
			log.Warn("event retention sweep failed", zap.Error(err))
		} else if n > 0 {
			log.Info("old security events removed", zap.Int64("count", n))
		}
	}))

	c.Start()
	log.Info("maintenance sweeps scheduled", zap.Duration("interval", interval))
	return c
}
