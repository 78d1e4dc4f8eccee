package engine

import (
	"log/slog"

	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/metrics"
)

// Version is the public runtime API version.
const Version = "1.0.0"

// Snapshot is the diagnostic view returned by State. It never includes the
// loaded configuration.
type Snapshot struct {
	Version      string        `json:"version"`
	ContainerID  string        `json:"containerId"`
	Phase        string        `json:"phase"`
	Loaded       bool          `json:"loaded"`
	Debug        bool          `json:"debug"`
	ExecutedTags []string      `json:"executedTags"`
	Events       []event.Entry `json:"events"`
}

// Push appends record to the event log. A record carrying an event name
// triggers a full pass once the configuration is loaded. Called from another
// goroutine while a pass runs, Push returns before the record is processed.
func (e *Engine) Push(record event.Context) {
	if record == nil {
		return
	}
	rec := record.Clone()
	e.dispatch(func() {
		e.log.Append(rec)
		metrics.EventsPushed.Inc()
	})
}

// Trigger pushes data with its event key set to name.
func (e *Engine) Trigger(name string, data map[string]interface{}) {
	rec := make(event.Context, len(data)+1)
	for k, v := range data {
		rec[k] = v
	}
	rec[event.KeyEvent] = name
	e.Push(rec)
}

// State returns a diagnostic snapshot.
func (e *Engine) State() Snapshot {
	return Snapshot{
		Version:      Version,
		ContainerID:  e.containerID,
		Phase:        e.Phase().String(),
		Loaded:       e.Phase() >= PhaseConfigLoaded,
		Debug:        e.level.Level() <= slog.LevelDebug,
		ExecutedTags: e.exec.Fired().IDs(),
		Events:       e.log.Entries(),
	}
}

// SetDebugMode switches verbose engine logging on or off. Errors are always
// logged.
func (e *Engine) SetDebugMode(on bool) {
	if on {
		e.level.Set(slog.LevelDebug)
		return
	}
	e.level.Set(slog.LevelError)
}
