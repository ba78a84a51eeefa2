// AIShura - AI Career Guidance Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aishura/aishura/internal/api"
	"github.com/aishura/aishura/internal/chat"
	"github.com/aishura/aishura/internal/config"
	"github.com/aishura/aishura/internal/gateway"
	"github.com/aishura/aishura/internal/identity"
	"github.com/aishura/aishura/internal/middleware"
	"github.com/aishura/aishura/internal/store"
	"github.com/aishura/aishura/internal/stream"
	"github.com/aishura/aishura/internal/translog"
	"github.com/aishura/aishura/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	transcriptLog, err := translog.New(translog.Config{
		Enabled:       cfg.TranscriptLog.Enabled,
		Dir:           cfg.TranscriptLog.Dir,
		GlobalEnabled: cfg.TranscriptLog.GlobalEnabled,
		GlobalPath:    cfg.TranscriptLog.GlobalPath,
		QueueSize:     cfg.TranscriptLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLog.Close(); closeErr != nil {
			slog.Warn("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Initialize the conversational core.
	sessions := chat.NewSessionStore()
	selector := chat.NewNudgeSelector(time.Now().UnixNano())

	var completer gateway.Completer
	if cfg.Gateway.URL != "" {
		completer = gateway.NewClient(gateway.ClientConfig{
			URL:     cfg.Gateway.URL,
			Timeout: cfg.Gateway.Timeout,
		}, logger)
		slog.Info("Completion gateway configured", "url", cfg.Gateway.URL)
	} else {
		completer = gateway.Unconfigured{}
		slog.Warn("COMPLETION_GATEWAY_URL not set, every submit will use the fallback reply")
	}

	// The controller and detector reference each other through the nudge sink,
	// so wiring is two-phase.
	var controller *chat.Controller
	detector := chat.NewDetector(cfg.Hesitation, selector, func(userID, sessionID string, nudge chat.Nudge) {
		controller.HandleNudge(userID, sessionID, nudge)
	}, logger)
	controller = chat.NewController(sessions, repo, completer, detector, nil, transcriptLog, cfg.Gateway.Timeout, logger)

	hub := stream.NewHub()
	controller.SetNotifier(hub)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, controller)
	chatHandler := api.NewChatHandler(baseHandler, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	profileHandler := api.NewProfileHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := stream.NewWebSocketHandler(controller, hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// API routes (identity middleware provides the user).
	chatHandler.RegisterRoutes(r)
	profileHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout, WebSocket streams stay open
		IdleTimeout:  120 * time.Second,
	}

	// Start retention worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat.StartRetentionWorker(ctx, repo, sessions, detector, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
