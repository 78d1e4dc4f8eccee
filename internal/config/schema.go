package config

import "time"

// Settings is the top-level YAML structure.
type Settings struct {
	Engine    EngineConf    `yaml:"engine"`
	Telemetry TelemetryConf `yaml:"telemetry"`
	Server    ServerConf    `yaml:"server"`
}

// EngineConf configures the embedded engine.
type EngineConf struct {
	APIEndpoint    string `yaml:"api_endpoint"`
	ContainerID    string `yaml:"container_id"`
	Debug          bool   `yaml:"debug"`
	AllowCode      *bool  `yaml:"allow_code"`      // nil = true
	EventLogLimit  int    `yaml:"event_log_limit"` // 0 = unbounded
	FetchTimeoutMs int    `yaml:"fetch_timeout_ms"`
}

// TelemetryConf configures the optional analytics sink.
type TelemetryConf struct {
	Enabled    bool `yaml:"enabled"`
	Workers    int  `yaml:"workers"`
	QueueDepth int  `yaml:"queue_depth"`
	TimeoutMs  int  `yaml:"timeout_ms"`
}

// ServerConf configures the container provider.
type ServerConf struct {
	Addr          string   `yaml:"addr"`
	ContainersDir string   `yaml:"containers_dir"`
	AnalyticsSink string   `yaml:"analytics_sink"` // log | kafka | redis
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	RedisAddr     string   `yaml:"redis_addr"`
}

// CodeAllowed reports whether code tags may run.
func (e EngineConf) CodeAllowed() bool {
	return e.AllowCode == nil || *e.AllowCode
}

func (e EngineConf) FetchTimeout() time.Duration {
	return time.Duration(e.FetchTimeoutMs) * time.Millisecond
}

func (t TelemetryConf) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}
