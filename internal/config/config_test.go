package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, 10000, s.Engine.FetchTimeoutMs)
	assert.True(t, s.Engine.CodeAllowed())
	assert.Equal(t, 0, s.Engine.EventLogLimit)
	assert.Equal(t, 2, s.Telemetry.Workers)
	assert.Equal(t, 256, s.Telemetry.QueueDepth)
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, "log", s.Server.AnalyticsSink)
	assert.Equal(t, []string{"localhost:9092"}, s.Server.KafkaBrokers)
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  api_endpoint: https://tags.example.com/api
  container_id: CTM-1
  debug: true
  allow_code: false
  event_log_limit: 500
telemetry:
  enabled: true
  workers: 4
server:
  analytics_sink: redis
`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "CTM-1", s.Engine.ContainerID)
	assert.True(t, s.Engine.Debug)
	assert.False(t, s.Engine.CodeAllowed())
	assert.Equal(t, 500, s.Engine.EventLogLimit)
	assert.Equal(t, 4, s.Telemetry.Workers)
	assert.Equal(t, 256, s.Telemetry.QueueDepth, "unset fields still defaulted")
	assert.Equal(t, "redis", s.Server.AnalyticsSink)
}

func TestLoadSettings_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  api_endpoint: not-a-url
  event_log_limit: -1
telemetry:
  enabled: true
server:
  analytics_sink: nats
`), 0o644))

	_, err := LoadSettings(path)
	require.Error(t, err)
	for _, want := range []string{"engine.api_endpoint", "engine.event_log_limit", "server.analytics_sink"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseEmbed(t *testing.T) {
	e, err := ParseEmbed("https://tags.example.com/container.js?id=CTM-1&debug=true")
	require.NoError(t, err)
	assert.Equal(t, Embed{ContainerID: "CTM-1", Debug: true, Endpoint: "https://tags.example.com/api"}, e)

	e, err = ParseEmbed("/container.js?id=CTM-2")
	require.NoError(t, err)
	assert.False(t, e.Debug)
	assert.Empty(t, e.Endpoint)

	_, err = ParseEmbed("https://tags.example.com/container.js")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStartup))
}

const doc = `{"containerId":"CTM-1","name":"shop","version":3,"tags":[
  {"id":"t1","type":"image","src":"https://px/p.gif","triggers":[{"type":"pageview"}]}]}`

func TestHTTPLoader(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/config/CTM-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.URL+"/api/", 0)
	c, err := l.Load(context.Background(), "CTM-1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Version)
	require.Len(t, c.Tags, 1)

	_, err = l.Load(context.Background(), "CTM-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStartup))
	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "CTM-404", se.ContainerID)
	assert.Contains(t, err.Error(), "status 404")

	assert.Equal(t, int32(2), calls.Load(), "one request per load, no retry")
}

func TestHTTPLoader_NetworkAndBodyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"no id"}`))
	}))
	l := NewHTTPLoader(srv.URL, 0)
	_, err := l.Load(context.Background(), "CTM-1")
	assert.True(t, errors.Is(err, ErrStartup))
	srv.Close()

	_, err = l.Load(context.Background(), "CTM-1")
	assert.True(t, errors.Is(err, ErrStartup))

	_, err = l.Load(context.Background(), "")
	assert.True(t, errors.Is(err, ErrStartup))
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CTM-1.json"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CTM-2.yaml"), []byte(`
containerId: CTM-2
version: 1
tags:
  - id: banner
    type: html
    html: "<p>hi</p>"
    fireOnce: false
    triggers:
      - type: dom_ready
`), 0o644))

	l := FileLoader{Dir: dir}
	c, err := l.Load(context.Background(), "CTM-1")
	require.NoError(t, err)
	assert.Equal(t, "CTM-1", c.ID)

	c, err = l.Load(context.Background(), "CTM-2")
	require.NoError(t, err)
	require.Len(t, c.Tags, 1)
	assert.False(t, c.Tags[0].FireOnce)

	_, err = l.Load(context.Background(), "CTM-3")
	assert.True(t, errors.Is(err, ErrStartup))
}
