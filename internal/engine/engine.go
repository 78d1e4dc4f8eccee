// Package engine is the rule engine: it loads a container, drives the page
// lifecycle and runs evaluate-and-execute passes over the container's tags.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/tagmanager/internal/config"
	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/jsrun"
	"github.com/gyaneshwarpardhi/tagmanager/internal/metrics"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
	"github.com/gyaneshwarpardhi/tagmanager/internal/tag"
	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
	"github.com/gyaneshwarpardhi/tagmanager/internal/trigger"
	"github.com/gyaneshwarpardhi/tagmanager/internal/variable"
)

// Phase is the engine lifecycle state.
type Phase int32

const (
	PhaseInit Phase = iota
	PhaseConfigLoaded
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseConfigLoaded:
		return "config-loaded"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// Options configures an Engine.
type Options struct {
	ContainerID string
	Loader      config.Loader
	Host        page.Host

	// Code runs code tags. Nil selects the JavaScript runner, whose
	// dataLayer.push feeds back into Push.
	Code        tag.CodeRunner
	DisableCode bool

	Telemetry     telemetry.Sink
	EventLogLimit int
	Debug         bool
	// LogOutput receives engine logs (default os.Stderr).
	LogOutput io.Writer
}

// Engine owns the event log and the executed-tag set. All passes, pushes
// and clicks run as jobs on a FIFO queue drained by one goroutine at a time,
// so passes never interleave.
type Engine struct {
	containerID string
	loader      config.Loader
	host        page.Host
	sink        telemetry.Sink

	log    *event.Log
	exec   *tag.Executor
	level  *slog.LevelVar
	logger *slog.Logger

	phase       atomic.Int32
	cfg         atomic.Pointer[container.Container]
	started     atomic.Bool
	clicksBound bool

	mu       sync.Mutex
	jobs     []func()
	draining bool
}

// New wires an Engine. Nothing runs until Start.
func New(opts Options) *Engine {
	level := new(slog.LevelVar)
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	e := &Engine{
		containerID: opts.ContainerID,
		loader:      opts.Loader,
		host:        opts.Host,
		sink:        opts.Telemetry,
		log:         event.NewLog(opts.EventLogLimit),
		level:       level,
		logger: slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})).
			With("component", "engine", "container_id", opts.ContainerID),
	}
	if e.sink == nil {
		e.sink = telemetry.Nop{}
	}
	e.SetDebugMode(opts.Debug)

	code := opts.Code
	switch {
	case opts.DisableCode:
		code = tag.DisabledRunner{}
	case code == nil:
		code = jsrun.New(e.Push, e.logger)
	}
	vars := variable.Resolver{Page: opts.Host, Store: e.log}
	registry := tag.NewRegistry(tag.DefaultHandlers(opts.Host, vars, code)...)
	e.exec = tag.NewExecutor(registry, tag.NewFiredSet(), e.logger)

	e.log.Observe(e.onAppend)
	return e
}

// Start loads the container and starts the lifecycle driver. It may be
// called once. On failure the engine stays in init permanently: no tag will
// ever execute and later pushes are only logged.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}
	if e.containerID == "" {
		err := &config.StartupError{Err: errors.New("no container id")}
		e.logger.Error("engine not initialised", "err", err)
		return err
	}
	if e.loader == nil || e.host == nil {
		err := &config.StartupError{ContainerID: e.containerID, Err: errors.New("engine needs a loader and a host")}
		e.logger.Error("engine not initialised", "err", err)
		return err
	}
	c, err := e.loader.Load(ctx, e.containerID)
	if err != nil {
		e.logger.Error("failed to load container config", "err", err)
		return err
	}
	e.dispatch(func() { e.configLoaded(c) })
	return nil
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

// Close flushes the telemetry sink when it supports it.
func (e *Engine) Close() {
	if c, ok := e.sink.(interface{ Close() }); ok {
		c.Close()
	}
}

// dispatch queues job and, unless another caller is already draining,
// drains the queue on the calling goroutine. Jobs enqueued while a job runs
// (a push from inside a tag, a host signal) run after it.
func (e *Engine) dispatch(job func()) {
	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	for len(e.jobs) > 0 {
		next := e.jobs[0]
		e.jobs[0] = nil
		e.jobs = e.jobs[1:]
		e.mu.Unlock()
		e.runJob(next)
		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}

func (e *Engine) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine job panicked", "panic", r)
		}
	}()
	job()
}

// onAppend runs a pass for every logged record that carries an event name,
// once the configuration is loaded.
func (e *Engine) onAppend(entry event.Entry) {
	if !entry.Data.HasEvent() || e.Phase() < PhaseConfigLoaded {
		return
	}
	e.runPass(entry.Data.Clone())
}

// runPass evaluates every tag against ctx and executes those whose
// triggers all hold. One failing tag never stops its siblings.
func (e *Engine) runPass(ctx event.Context) {
	c := e.cfg.Load()
	if c == nil {
		return
	}
	start := time.Now()
	e.logger.Debug("evaluating tags", "event", ctx.Name(), "tags", len(c.Tags))
	for _, t := range c.Tags {
		if !t.Enabled || (t.FireOnce && e.exec.Fired().Has(t.ID)) {
			continue
		}
		if !trigger.All(t.Triggers, ctx, e.host, func(err error) { e.triggerFailed(t, err) }) {
			continue
		}
		e.execute(t, ctx)
	}
	metrics.Passes.WithLabelValues(ctx.Name()).Inc()
	metrics.PassDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func (e *Engine) execute(t *container.Tag, ctx event.Context) {
	out := e.exec.Execute(t, ctx)
	switch out.Status {
	case tag.StatusExecuted:
		e.sink.Track(telemetry.Hit{
			ContainerID: e.containerID,
			TagID:       t.ID,
			Event:       ctx.Name(),
			Timestamp:   time.Now().UTC(),
		})
		if t.OnSuccess {
			e.Push(event.Context{event.KeyEvent: event.NameTagFired, "tagId": t.ID, "tagName": t.Name})
		}
	case tag.StatusFailed:
		if t.OnError {
			e.Push(event.Context{event.KeyEvent: event.NameTagError, "tagId": t.ID, "tagName": t.Name, "error": out.Err.Error()})
		}
	}
}

func (e *Engine) triggerFailed(t *container.Tag, err error) {
	typ := string(container.TriggerUnknown)
	var ee *trigger.EvaluationError
	if errors.As(err, &ee) {
		typ = string(ee.Type)
	}
	metrics.TriggerFailures.WithLabelValues(typ).Inc()
	e.logger.Warn("trigger evaluation failed", "tag_id", t.ID, "err", err)
}
