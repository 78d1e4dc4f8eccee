package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagmanager_events_pushed_total",
		Help: "Total number of records appended to the event log.",
	})

	Passes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmanager_evaluation_passes_total",
		Help: "Total number of evaluate-and-execute passes, labelled by event name.",
	}, []string{"event"})

	TagExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmanager_tag_executions_total",
		Help: "Total number of tag execution attempts, labelled by kind and status.",
	}, []string{"kind", "status"})

	TriggerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmanager_trigger_failures_total",
		Help: "Total number of trigger evaluation failures, labelled by trigger type.",
	}, []string{"trigger"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tagmanager_pass_duration_ms",
		Help:    "Evaluate-and-execute pass latency in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000},
	})

	TelemetrySent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmanager_telemetry_hits_total",
		Help: "Telemetry hits handled by the sink, labelled by outcome (sent, failed, dropped).",
	}, []string{"outcome"})

	TelemetryQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tagmanager_telemetry_queue_utilization_ratio",
		Help: "Current telemetry queue utilization (0 to 1).",
	})

	ConfigRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmanager_config_requests_total",
		Help: "Container config requests served, labelled by HTTP status code.",
	}, []string{"code"})

	AnalyticsHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmanager_analytics_hits_total",
		Help: "Analytics hits received, labelled by recorder and status.",
	}, []string{"recorder", "status"})

	ContainersLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tagmanager_containers_loaded",
		Help: "Number of container documents currently served by the provider.",
	})
)
