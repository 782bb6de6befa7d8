package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
)

const pipelineEventsStream = "pipeline:events"

// Telemetry publishes pipeline stage events. Implementations are
// fire-and-forget: Publish must never block the request or surface an error.
type Telemetry interface {
	Publish(ctx context.Context, event *models.PipelineEvent)
	Close() error
}

type RedisTelemetry struct {
	client *redis.Client
	config config.RedisConfig
	logger *logger.Logger
}

func NewRedisTelemetry(cfg config.RedisConfig, log *logger.Logger) (*RedisTelemetry, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Telemetry Service Initialized Successfully",
		"stream", pipelineEventsStream,
		"pool_size", cfg.PoolSize)

	return &RedisTelemetry{client: client, config: cfg, logger: log}, nil
}

// Publish appends the event to the pipeline stream with a short timeout of
// its own, detached from the request context so a cancelled request can still
// emit its terminal event. Failures are logged and swallowed.
func (t *RedisTelemetry) Publish(_ context.Context, event *models.PipelineEvent) {
	pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fields, err := json.Marshal(event.Fields)
	if err != nil {
		fields = []byte("{}")
	}

	values := map[string]interface{}{
		"request_id": event.RequestID,
		"role":       string(event.Role),
		"stage":      string(event.Stage),
		"type":       string(event.Type),
		"message":    event.Message,
		"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
		"fields":     string(fields),
	}

	err = t.client.XAdd(pubCtx, &redis.XAddArgs{
		Stream: pipelineEventsStream,
		MaxLen: t.config.StreamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		t.logger.WithError(err).Warn("Failed to publish pipeline event",
			"request_id", event.RequestID,
			"type", event.Type)
	}
}

func (t *RedisTelemetry) Close() error {
	t.logger.Info("Closing telemetry service")
	return t.client.Close()
}

// NoopTelemetry stands in when no Redis endpoint is configured.
type NoopTelemetry struct{}

func (NoopTelemetry) Publish(context.Context, *models.PipelineEvent) {}
func (NoopTelemetry) Close() error                                   { return nil }
