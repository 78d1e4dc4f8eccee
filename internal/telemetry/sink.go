// Package telemetry reports tag executions to the analytics endpoint.
// Delivery is fire-and-forget: failures are logged at debug level and counted,
// never surfaced to the page.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/tagmanager/internal/metrics"
)

// Hit is one tag execution report.
type Hit struct {
	ContainerID string    `json:"containerId"`
	TagID       string    `json:"tagId"`
	Event       string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink accepts hits. Track must not block.
type Sink interface {
	Track(h Hit)
}

// Nop discards every hit.
type Nop struct{}

func (Nop) Track(Hit) {}

// HTTPOptions configures an HTTPSink.
type HTTPOptions struct {
	Endpoint   string // base API URL; hits go to {Endpoint}/analytics/track
	Workers    int
	QueueDepth int
	Timeout    time.Duration
	Client     *http.Client
	Logger     *slog.Logger
}

// HTTPSink posts hits on a bounded worker pool and drops them when full.
type HTTPSink struct {
	url    string
	client *http.Client
	logger *slog.Logger
	pool   *workerPool[Hit]
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewHTTPSink starts the sink's workers.
func NewHTTPSink(opts HTTPOptions) *HTTPSink {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &HTTPSink{
		url:    strings.TrimRight(opts.Endpoint, "/") + "/analytics/track",
		client: opts.Client,
		logger: opts.Logger,
		cancel: cancel,
	}
	s.pool = newWorkerPool(ctx, opts.Workers, opts.QueueDepth, s.send, s.done)
	return s
}

// Track queues h for delivery. Hits arriving when the queue is full or
// after Close are dropped.
func (s *HTTPSink) Track(h Hit) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(h, "telemetry sink closed, dropping hit")
		return
	}
	if !s.pool.Submit(h) {
		s.drop(h, "telemetry queue full, dropping hit")
		return
	}
	metrics.TelemetryQueueUtilization.Set(float64(s.pool.QueueLen()) / float64(s.pool.QueueCap()))
}

func (s *HTTPSink) drop(h Hit, msg string) {
	metrics.TelemetrySent.WithLabelValues("dropped").Inc()
	s.logger.Debug(msg, "tag_id", h.TagID)
}

// Close waits for queued hits to be sent, then stops the workers. It is
// safe to call more than once.
func (s *HTTPSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.pool.Drain()
	s.cancel()
}

func (s *HTTPSink) send(ctx context.Context, h Hit) error {
	body, err := json.Marshal(h)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("analytics track: status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) done(h Hit, err error) {
	if err != nil {
		metrics.TelemetrySent.WithLabelValues("failed").Inc()
		s.logger.Debug("telemetry failed", "tag_id", h.TagID, "err", err)
		return
	}
	metrics.TelemetrySent.WithLabelValues("sent").Inc()
}
