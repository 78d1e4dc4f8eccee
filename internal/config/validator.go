package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateSettings reports every invalid setting at once.
func ValidateSettings(s *Settings) error {
	var errs []string

	if s.Engine.APIEndpoint != "" {
		if u, err := url.Parse(s.Engine.APIEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("engine.api_endpoint: %q is not an absolute URL", s.Engine.APIEndpoint))
		}
	}
	if s.Engine.EventLogLimit < 0 {
		errs = append(errs, "engine.event_log_limit: must not be negative")
	}
	if s.Engine.FetchTimeoutMs < 0 {
		errs = append(errs, "engine.fetch_timeout_ms: must not be negative")
	}
	if s.Telemetry.Enabled && s.Engine.APIEndpoint == "" {
		errs = append(errs, "telemetry.enabled: requires engine.api_endpoint")
	}
	if s.Telemetry.Workers < 0 || s.Telemetry.QueueDepth < 0 {
		errs = append(errs, "telemetry: workers and queue_depth must not be negative")
	}
	switch s.Server.AnalyticsSink {
	case "log", "kafka", "redis":
	default:
		errs = append(errs, fmt.Sprintf("server.analytics_sink: unknown sink %q (want log, kafka or redis)", s.Server.AnalyticsSink))
	}

	if len(errs) > 0 {
		return fmt.Errorf("settings validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
