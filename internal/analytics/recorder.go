// Package analytics records tag execution hits received by the provider.
package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/tagmanager/internal/config"
	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
)

// Recorder persists or forwards a hit.
type Recorder interface {
	Name() string
	Record(ctx context.Context, h telemetry.Hit) error
	Close() error
}

// LogRecorder writes hits to a structured logger.
type LogRecorder struct {
	Logger *slog.Logger
}

func (LogRecorder) Name() string { return "log" }

func (r LogRecorder) Record(_ context.Context, h telemetry.Hit) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("tag hit",
		"container_id", h.ContainerID,
		"tag_id", h.TagID,
		"event", h.Event,
		"timestamp", h.Timestamp,
	)
	return nil
}

func (LogRecorder) Close() error { return nil }

// New builds the recorder selected by server.analytics_sink.
func New(conf config.ServerConf, logger *slog.Logger) (Recorder, error) {
	switch conf.AnalyticsSink {
	case "", "log":
		return LogRecorder{Logger: logger}, nil
	case "kafka":
		return NewKafkaRecorder(conf.KafkaBrokers, conf.KafkaTopic), nil
	case "redis":
		return NewRedisRecorder(conf.RedisAddr)
	}
	return nil, fmt.Errorf("unknown analytics sink %q", conf.AnalyticsSink)
}
