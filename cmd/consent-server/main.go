// cmd/consent-server/main.go
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"privacy-consent/internal/common/aws"
	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/database"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/consent/delivery"
	"privacy-consent/internal/consent/ipreflect"
	"privacy-consent/internal/mail"
	"privacy-consent/internal/ratelimit"
	"privacy-consent/internal/server"
)

var version = "dev"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// pingedClient opens a client and checks it. A client that fails the check
// is closed so retries do not pile up connection pools.
func pingedClient[C pinger](ctx context.Context, open func() (C, error)) (C, error) {
	client, err := open()
	if err != nil {
		var zero C
		return zero, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		var zero C
		return zero, err
	}
	return client, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting consent server",
		zap.String("version", version),
		zap.String("environment", cfg.App.Environment),
		zap.String("mailProvider", cfg.Mail.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Mail backend ---
	var ses mail.RawSender
	if cfg.Mail.Provider == "ses" {
		client, err := aws.NewSESClient(ctx, cfg.Mail.SES.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		ses = client
	}
	mailer, err := mail.New(cfg.Mail, config.GetDuration(cfg.Delivery.Timeout), ses)
	if err != nil {
		zapLog.Fatal("mailer init failed", zap.Error(err))
	}

	// --- Optional SNS alerts ---
	var alerts delivery.AlertPublisher
	if cfg.Notifications.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		alerts = sns
	}

	// --- Optional Redis rate limiting, with retry ---
	ready := map[string]server.ReadyCheck{}
	var limit func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		limitCfg, err := ratelimit.ConfigFromAppConfig(cfg.RateLimit)
		if err != nil {
			zapLog.Fatal("invalid ratelimit config", zap.Error(err))
		}

		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			client, err := pingedClient(ctx, func() (*database.RedisClient, error) {
				return database.NewRedis(cfg.Redis)
			})
			if err != nil {
				return err
			}
			rdb = client
			return nil
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis unavailable after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")

		ready["redis"] = rdb.Ping
		limit = ratelimit.New(rdb, limitCfg, log).Middleware
	}

	sendEmail, err := delivery.NewHandler(delivery.HandlerOptions{
		AppConfig: cfg,
		Mailer:    mailer,
		Alerts:    alerts,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("delivery handler init failed", zap.Error(err))
	}

	router := server.NewRouter(server.Options{
		SendEmail:      sendEmail,
		GetIP:          ipreflect.NewHandler(ipreflect.HandlerOptions{Logger: log}),
		RateLimit:      limit,
		Ready:          ready,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        version,
		Logger:         log,
	})
	srv := server.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zapLog.Info("Server stopped")
}
