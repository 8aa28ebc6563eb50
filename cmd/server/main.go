package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/huavcjj/wavemail/internal/config"
	"github.com/huavcjj/wavemail/internal/di"
	"github.com/huavcjj/wavemail/internal/handler/api"
	"github.com/huavcjj/wavemail/internal/handler/webhook"
)

func main() {
	configPath := flag.String("config", os.Getenv("WAVEMAIL_CONFIG"), "path to a YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer container.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(cfg, container),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("shutdown completed")
	return nil
}

func newRouter(cfg *config.Config, container *di.Container) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	api.NewHandler(container.Pipeline, cfg.Mail.DefaultCount).Register(r)

	if container.NotificationService != nil {
		lineWebhookHandler := webhook.NewLineWebhookHandler(container.NotificationService, cfg.Line.ChannelSecret)
		pubsubWebhookHandler := webhook.NewPubSubWebhookHandler(container.NotificationService)
		r.HandleFunc("/webhook/line", lineWebhookHandler.HandleWebhook)
		r.HandleFunc("/webhook/pubsub", pubsubWebhookHandler.HandlePubSub)
	}
	return r
}
