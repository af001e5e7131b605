package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/infra/storage"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/network"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/config"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/metrics"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/telemetry"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr   string
		manual bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("manual") {
				cfg.Countdown.Manual = manual
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&manual, "manual", false, "tick countdowns only through TICK commands")
	return cmd
}

func serve(ctx context.Context, configPath string, cfg config.Config) error {
	appLogger := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: logger.Format(cfg.Logging.Format),
	})
	appLogger.Info("Initializing water bucket game server...", "addr", cfg.Server.Addr, "profile", cfg.Tuning.Profile)

	shutdownTracing, err := telemetry.Setup(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, nil)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			appLogger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.New()

	appLogger.Info("Initializing SQLite journal...", "dsn", cfg.Storage.DSN)
	db, err := storage.InitSQLite(cfg.Storage.DSN, cfg.Tuning.DBMaxOpenConns)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer db.Close()
	repo := storage.NewSQLiteJournalRepository(db)
	journal := storage.NewJournal(repo, appLogger.With("component", "journal"), collector)

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog()
	eventLog.OnDrop(func(events.GameEvent) { collector.RecordEventDropped() })
	eventLog.AddSink(journal.Enqueue)
	defer eventLog.Close()

	appLogger.Info("Bootstrapping Engine...")
	gameEngine := engine.NewEngine(eventLog, appLogger, collector, engine.SettingsFromConfig(cfg))

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(gameEngine, appLogger, collector, network.HubOptions{
		SendBuffer:        cfg.Tuning.ClientSendBuffer,
		EventBuffer:       cfg.Tuning.EventChannelBuffer,
		MessagesPerSecond: cfg.Tuning.MaxMessagesPerSecond,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	})
	replay := network.NewReplayHandler(gameEngine, storage.NewReconstructor(repo), appLogger)

	gin.SetMode(gin.ReleaseMode)
	server := network.NewServer(gameEngine, hub, replay, collector, appLogger, cfg.Tracing.ServiceName)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The journal outlives the errgroup so it records the SESSION_CLOSED
	// events the engine emits while shutting down.
	journalCtx, stopJournal := context.WithCancel(context.WithoutCancel(ctx))
	journalDone := make(chan error, 1)
	go func() { journalDone <- journal.Run(journalCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gameEngine.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(next config.Config) {
			if err := gameEngine.ApplySettings(engine.SettingsFromConfig(next)); err != nil {
				appLogger.Warn("config reload rejected", "error", err)
				return
			}
			appLogger.Info("config reloaded", "path", configPath)
		}, func(err error) {
			appLogger.Warn("config reload failed", "error", err)
		})
		if err != nil {
			// Hot reload is optional.
			appLogger.Warn("config watch disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		appLogger.Info("HTTP API & WS Server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stopJournal()
	if jerr := <-journalDone; jerr != nil && err == nil {
		err = jerr
	}
	appLogger.Info("Server stopped.")
	return err
}
