package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-editor/internal/api"
	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/config"
	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/render"
	"github.com/heimdex/heimdex-editor/internal/scheduler"
	"github.com/heimdex/heimdex-editor/internal/ui"
	"github.com/heimdex/heimdex-editor/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex editor agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                 HEIMDEX EDITOR AGENT v%-19s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Exports:    %-45s ║\n", truncate(cfg.ExportDir(), 45))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renderer := render.New(render.Config{
		FFmpegPath: cfg.FFmpegPath(),
		Timeout:    cfg.RenderTimeout(),
		Logger:     logger,
	})
	probe := render.NewCachedProbe(renderer, logger)

	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	if caps, err := probe.Refresh(probeCtx); err != nil {
		logger.Warn("initial ffmpeg probe failed", "error", err)
	} else {
		logger.Info("render capabilities detected", "available", caps.Available, "version", caps.Version)
	}
	probeCancel()

	processor := workflow.NewProcessor(repo, renderer, cfg.ExportDir(), logger)
	runner := catalog.NewRunner(repo, processor, logger)

	var dispatcher catalog.Dispatcher = workflow.NewLocalDispatcher(runner)
	var queue *workflow.Queue
	if addr := cfg.RedisAddr(); addr != "" {
		queue = workflow.NewQueue(addr, repo, cfg.RenderTimeout(), logging.WithComponent(logger, "queue"))
		queue.RegisterHandler(workflow.TaskRunWorkflow, workflow.NewTaskHandler(repo, processor, logger))
		if err := queue.Start(); err != nil {
			logger.Warn("workflow queue unavailable, running workflows in process", "redis", addr, "error", err)
			queue = nil
		} else {
			dispatcher = queue
			logger.Info("workflow queue enabled", "redis", addr)
		}
	}
	go runner.Start(ctx)

	catalogSvc := catalog.NewService(repo, dispatcher, logger)
	playbackSvc := playback.NewServer(logger)
	sessions := editor.NewManager(logging.WithComponent(logger, "editor"))

	sched, err := scheduler.New(scheduler.Config{
		Sessions:     sessions,
		Jobs:         repo,
		SessionIdle:  cfg.SessionIdle(),
		JobRetention: cfg.JobRetention(),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		CatalogService: catalogSvc,
		PlaybackServer: playbackSvc,
		Repository:     repo,
		Runner:         runner,
		Sessions:       sessions,
		Probe:          probe,
		Pinger:         database,
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
		RateLimit:      cfg.RateLimit(),
		PreviewMode:    cfg.PreviewMode(),
		SessionContext: ctx,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Sessions: sessions,
			Runner:   runner,
			Logger:   logger,
			OnCloseSessions: func() {
				logger.Info("closing all sessions from tray", "count", sessions.Len())
				sessions.CloseAll()
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	shutdown(logger, apiServer, sched, sessions, queue)
	cancel()

	logger.Info("shutdown complete")
	return nil
}

func shutdown(logger *slog.Logger, apiServer *api.Server, sched *scheduler.Scheduler, sessions *editor.Manager, queue *workflow.Queue) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// closing sessions first ends their websocket streams
	sessions.CloseAll()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	sched.Stop(shutdownCtx)
	if queue != nil {
		queue.Stop()
	}
}

func ensureAuthToken(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n+3:]
}
