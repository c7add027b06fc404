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

	"agreementpdf/auth"
	"agreementpdf/awsconn"
	"agreementpdf/config"
	"agreementpdf/event"
	"agreementpdf/health"
	"agreementpdf/messaging"
	"agreementpdf/render"
	"agreementpdf/retention"
	"agreementpdf/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	clients, err := awsconn.New(ctx, cfg.AWSRegion, cfg.AWSEndpointURL)
	if err != nil {
		return err
	}

	signer := auth.NewSigner(cfg.TokenSecret, cfg.TokenSource, cfg.TokenTTL, nil)
	renderer := render.NewRenderer(signer, cfg.TmpFolder, logger)

	policy := retention.Policy{
		BaseYears:         cfg.Retention.BaseYears,
		BaseThreshold:     cfg.Retention.BaseThreshold,
		ExtendedThreshold: cfg.Retention.ExtendedThreshold,
		BasePrefix:        cfg.Retention.BasePrefix,
		ExtendedPrefix:    cfg.Retention.ExtendedPrefix,
		MaximumPrefix:     cfg.Retention.MaximumPrefix,
	}
	uploader := storage.NewUploader(clients.S3, cfg.Bucket, policy, logger, nil)

	handler := event.NewHandler(renderer, uploader, cfg.AllowedHosts, logger)

	var notifier messaging.Notifier
	if cfg.StoredTopicARN != "" {
		notifier = messaging.NewPublisher(clients.SNS, cfg.StoredTopicARN, logger)
	}
	adapter := messaging.NewAdapter(handler, notifier, logger)
	consumer := messaging.NewConsumer(clients.SQS, adapter, cfg.Queue, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: health.Handler(),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", "error", err.Error())
		}
	}()

	logger.Info("agreement pdf service started",
		"queue", cfg.Queue.URL,
		"bucket", cfg.Bucket,
		"port", cfg.Port,
	)

	err = consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sErr := server.Shutdown(shutdownCtx); sErr != nil {
		logger.Warn("health server shutdown failed", "error", sErr.Error())
	}

	return err
}
