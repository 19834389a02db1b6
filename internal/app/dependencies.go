package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/cbhub/internal/config"
	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/payment"
	"github.com/noah-isme/cbhub/internal/queue"
	"github.com/noah-isme/cbhub/internal/ratelimit"
	"github.com/noah-isme/cbhub/internal/resilience"
)

// Dependencies enumerates the services shared by the API routes.
type Dependencies struct {
	Redis        *redis.Client
	Validator    *validator.Validate
	LimiterStore limiter.Store
	Limiter      ratelimit.Allower
	TaskClient   *asynq.Client
	Provider     *payment.Paystack
	Bus          *events.Bus
	Kafka        *kafka.Writer
	Logger       zerolog.Logger
}

// NewRedis connects to REDIS_URL with tracing and, optionally, metrics instrumentation.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiterStore wires a rate limiter store backed by Redis, or process memory without it.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	if rdb == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "cbhub:rl"}), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "cbhub:rl", MaxRetry: 3})
}

// NewTaskClient builds the asynq client the API enqueues payment tasks with.
func NewTaskClient(redisURL string) (*asynq.Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse asynq redis uri: %w", err)
	}
	return asynq.NewClient(opt), nil
}

// Build assembles dependencies from configuration. Without REDIS_URL the API
// runs with in-memory rate limiting, no webhook replay guard and no task queue.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Logger:    logger,
	}

	if cfg.RedisEnabled() {
		rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
		if err != nil {
			return nil, err
		}
		deps.Redis = rdb
		client, err := NewTaskClient(cfg.RedisURL)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.TaskClient = client
	} else {
		logger.Warn().Msg("REDIS_URL not set: webhook replay guard and payment worker queue disabled")
	}

	if deps.Redis != nil && cfg.RateLimitStrategy != config.RateLimitFixed {
		deps.Limiter = ratelimit.Sliding{Client: deps.Redis, Prefix: "cbhub:rl:"}
	} else {
		store, err := NewLimiterStore(deps.Redis)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("limiter store: %w", err)
		}
		deps.LimiterStore = store
		deps.Limiter = ratelimit.Fixed{Store: store}
	}

	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("paystack").
		WithLogger(logger)
	deps.Provider = payment.NewPaystack(cfg.PaystackSecretKey, cfg.PaystackBaseURL, cfg.VerifyTimeout, breaker)
	deps.Provider.HTTP.MaxAttempts = cfg.VerifyMaxAttempts
	deps.Provider.HTTP.BaseBackoff = cfg.VerifyBackoffBase

	deps.Bus = &events.Bus{}
	if deps.Redis != nil {
		deps.Bus.Store = events.RedisStream{Client: deps.Redis}
	}
	if deps.TaskClient != nil {
		deps.Bus.Notifiers = append(deps.Bus.Notifiers, queue.Enqueuer{Client: deps.TaskClient, Logger: logger})
	}
	if len(cfg.KafkaBrokers) > 0 {
		deps.Kafka = events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		deps.Bus.Notifiers = append(deps.Bus.Notifiers, events.KafkaPublisher{Writer: deps.Kafka})
	}
	return deps, nil
}

// Close releases network clients.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Kafka != nil {
		errs = append(errs, d.Kafka.Close())
	}
	if d.TaskClient != nil {
		errs = append(errs, d.TaskClient.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
