package main

import (
	"context"
	"time"

	"github.com/noah-isme/cbhub/internal/app"
	"github.com/noah-isme/cbhub/internal/common"
	"github.com/noah-isme/cbhub/internal/config"
	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/lock"
	"github.com/noah-isme/cbhub/internal/notify"
	"github.com/noah-isme/cbhub/internal/obs"
	"github.com/noah-isme/cbhub/internal/payment"
	"github.com/noah-isme/cbhub/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	if !cfg.RedisEnabled() {
		logger.Fatal().Msg("REDIS_URL is required for the payment worker")
	}
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	toggles := make(map[string]bool)
	for _, topic := range events.DefaultTopics() {
		toggles[topic] = true
	}
	receipts := notify.EmailNotifier{
		Mail:         common.LogEmailSender{Logger: logger.With().Str("component", "mailer").Logger()},
		Enabled:      cfg.NotifyEmailEnabled,
		From:         cfg.NotifyEmailFrom,
		Merchant:     cfg.MerchantName,
		TopicToggles: toggles,
	}
	handler := queue.PaymentHandler{
		Ledger:   payment.RedisLedger{Client: redisClient, TTL: cfg.LedgerTTL},
		Locker:   lock.Locker{R: redisClient, RetryBackoff: 100 * time.Millisecond, MaxWait: 10 * time.Second},
		Receipts: receipts,
		LockTTL:  30 * time.Second,
		Logger:   logger,
	}

	srv, err := queue.NewServer(cfg.RedisURL, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise worker")
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Run(queue.NewServeMux(handler)); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker shutdown complete")
}
