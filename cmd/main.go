package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatlane/chat-service/config"
	"github.com/chatlane/chat-service/internal/directory"
	"github.com/chatlane/chat-service/internal/domain"
	"github.com/chatlane/chat-service/internal/postgres"
	"github.com/chatlane/chat-service/internal/registry"
	"github.com/chatlane/chat-service/internal/router"
	"github.com/chatlane/chat-service/internal/service"
	httpx "github.com/chatlane/chat-service/internal/transport/http"
	"github.com/chatlane/chat-service/internal/transport/ws"
	"github.com/chatlane/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		log.Fatalf("postgres schema: %v", err)
	}

	// --- repos ---
	roomRepo := postgres.NewRoomRepository(db.Pool)
	msgRepo := postgres.NewMessageRepository(db.Pool)

	// --- services ---
	roomSvc := service.NewRoomService(roomRepo)
	chatSvc := service.NewChatService(msgRepo)

	if err := roomSvc.EnsureRoom(ctx, domain.DefaultRoom); err != nil {
		slog.Warn("seed default room", slog.Any("err", err))
	}

	// --- routing core ---
	hub := ws.NewHub()
	core, err := router.New(registry.New(), directory.New(), hub, roomSvc, chatSvc)
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	defer core.Close()

	wsServer := ws.NewServer(hub, core)

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, chatSvc, core)
	mux := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket writes manage their own deadlines
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
