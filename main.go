package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/streadway/amqp"

	"toko/internal/app"
	"toko/internal/config"
	"toko/internal/database"
	"toko/internal/log"
	"toko/internal/services"
	"toko/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.New(os.Stderr, "text", "info").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := log.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run starts the store and serves HTTP until ctx is done. Resources opened
// here are released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// --- Repositories ---
	repos, err := database.NewRepositories(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories (driver %s): %w", cfg.DBDriver, err)
	}
	defer repos.Close()

	// --- RabbitMQ (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		defer mqClient.Close()
		publisher = mqClient

		messageHandler := func(msg amqp.Delivery) error {
			logger.Info("received product event", "routing_key", msg.RoutingKey, "body", string(msg.Body))
			return nil
		}
		if err := mqClient.ConsumeProductEvents(messageHandler); err != nil {
			logger.Warn("failed to start product event consumer", "error", err)
		}
	} else {
		logger.Info("RABBITMQ_URL not set, product events are disabled")
	}

	// --- Application ---
	application, err := app.New(app.Options{
		Products:  repos.Products,
		Users:     repos.Users,
		Publisher: publisher,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		JWTTTL:    cfg.JWTTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if cfg.Admin.Enabled() {
		admin, err := application.Auth.EnsureAdmin(ctx, cfg.Admin)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		logger.Info("admin account ready", "email", admin.Email)
	}

	// --- HTTP server with graceful shutdown ---
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.AppPort)
		serverErr <- application.Fiber.Listen(cfg.AppPort)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	if err := application.Fiber.Shutdown(); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	logger.Info("server gracefully stopped")
	return nil
}
