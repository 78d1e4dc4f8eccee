package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSettings reads a YAML settings file and applies defaults.
// An empty path yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}
	applyDefaults(&s)
	if err := ValidateSettings(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func applyDefaults(s *Settings) {
	if s.Engine.FetchTimeoutMs == 0 {
		s.Engine.FetchTimeoutMs = 10000
	}
	if s.Telemetry.Workers == 0 {
		s.Telemetry.Workers = 2
	}
	if s.Telemetry.QueueDepth == 0 {
		s.Telemetry.QueueDepth = 256
	}
	if s.Telemetry.TimeoutMs == 0 {
		s.Telemetry.TimeoutMs = 5000
	}
	if s.Server.Addr == "" {
		s.Server.Addr = ":8080"
	}
	if s.Server.ContainersDir == "" {
		s.Server.ContainersDir = "containers"
	}
	if s.Server.AnalyticsSink == "" {
		s.Server.AnalyticsSink = "log"
	}
	if len(s.Server.KafkaBrokers) == 0 {
		s.Server.KafkaBrokers = []string{"localhost:9092"}
	}
	if s.Server.KafkaTopic == "" {
		s.Server.KafkaTopic = "tag-hits"
	}
	if s.Server.RedisAddr == "" {
		s.Server.RedisAddr = "localhost:6379"
	}
}
