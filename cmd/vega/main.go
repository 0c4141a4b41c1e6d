package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"vega/internal/adapters/config"
	"vega/internal/adapters/errors/noop"
	"vega/internal/adapters/errors/sentry"
	redisclient "vega/internal/adapters/redis"
	"vega/internal/adapters/telegram"
	"vega/internal/adapters/upstox"
	"vega/internal/api"
	"vega/internal/api/health"
	"vega/internal/domain/market"
	"vega/internal/metrics"
	"vega/internal/services/analysis"
	"vega/internal/services/position"
	"vega/internal/services/signal"
	"vega/internal/services/snapshot"
	"vega/internal/workers"
	"vega/internal/workers/scanner"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s %s in %s mode", cfg.App.Name, version, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := market.NewSession(cfg.Market.Timezone)

	client := upstox.NewClient(cfg.Upstox, log)
	if err := client.DetectInstruments(ctx, session.Now()); err != nil {
		log.Fatalf("Failed to detect instruments: %v", err)
	}
	provider := upstox.NewProvider(client, session, cfg.Market, log)

	redisConn, backend := initBackend(cfg, log)
	if redisConn != nil {
		defer redisConn.Close()
	}
	store := snapshot.NewStore(backend, cfg.Market.SnapshotTTL, time.Now, log)

	oi := analysis.NewOIAnalyzer(cfg.Signals, cfg.Exits)
	vol := analysis.NewVolumeAnalyzer(cfg.Signals)
	tech := analysis.NewTechnicalAnalyzer(cfg.Signals, cfg.Exits)
	struc := analysis.NewStructureAnalyzer(cfg.Signals)

	generator := signal.NewGenerator(cfg.Signals, tech, log)
	validator := signal.NewValidator(cfg.Signals, log)
	tracker := position.NewTracker(cfg.Exits, cfg.Market.StrikeGap, oi, log)

	notifier := telegram.NewNotifier(initBot(cfg, log), log)

	scanWorker := scanner.New(cfg.App.ScanInterval, scanner.Deps{
		Session:   session,
		Provider:  provider,
		Store:     store,
		OI:        oi,
		Volume:    vol,
		Technical: tech,
		Structure: struc,
		Generator: generator,
		Validator: validator,
		Tracker:   tracker,
		Notifier:  notifier,
		MarketCfg: cfg.Market,
		SignalCfg: cfg.Signals,
	})

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(scanWorker)

	var server *api.Server
	if cfg.Health.Enabled {
		healthHandler := health.New(log, redisConn, store, tracker, scanWorker, cfg.App.Name, version)
		server = api.NewServer(api.ServerConfig{
			Addr:        cfg.Health.Addr,
			ServiceName: cfg.App.Name,
			Version:     version,
		}, healthHandler, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Errorf("HTTP server failed: %v", err)
			}
		}()
	}

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	futuresSymbol, futuresExpiry := client.FuturesContract()
	notifier.Startup(futuresSymbol, futuresExpiry, session.NextWeeklyExpiry(session.Now()))

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, scheduler, server, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initBackend picks the snapshot backend: Redis when configured,
// otherwise in-process memory
func initBackend(cfg *config.Config, log *logger.Logger) (*redisclient.Client, snapshot.Backend) {
	if cfg.Redis.Host == "" {
		log.Info("Snapshot store running on in-process backend")
		return nil, snapshot.NewMemoryBackend()
	}

	conn, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		log.Warnf("Redis unavailable, falling back to in-process backend: %v", err)
		return nil, snapshot.NewMemoryBackend()
	}

	log.Info("Snapshot store running on Redis backend")
	return conn, snapshot.NewRedisBackend(conn, log)
}

// initBot returns the live Telegram bot or a no-op sink when disabled
func initBot(cfg *config.Config, log *logger.Logger) telegram.Bot {
	if !cfg.Telegram.Enabled {
		log.Info("Telegram notifications disabled")
		return telegram.NoopBot{}
	}

	bot, err := telegram.NewAPIBot(cfg.Telegram, log)
	if err != nil {
		log.Warnf("Telegram bot init failed, notifications disabled: %v", err)
		return telegram.NoopBot{}
	}
	return bot
}

// waitForShutdown blocks until a termination signal, then stops everything
// in dependency order
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	scheduler *workers.Scheduler,
	server *api.Server,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler stop: %v", err)
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP server shutdown: %v", err)
		}
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
