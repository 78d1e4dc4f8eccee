package event

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Well-known event names produced by the lifecycle driver and the engine itself.
const (
	NamePageView   = "pageview"
	NameDOMReady   = "dom_ready"
	NameWindowLoad = "window_load"
	NameClick      = "click"
	NameTagFired   = "ctm.tagFired"
	NameTagError   = "ctm.tagError"
)

// KeyEvent is the context key carrying the event name.
const KeyEvent = "event"

// Context is the ephemeral key/value payload describing what just happened.
// It is used both for trigger matching and for variable interpolation.
type Context map[string]interface{}

// New returns a context carrying only the event name.
func New(name string) Context {
	return Context{KeyEvent: name}
}

// Name returns the event name, or "" when the context carries none.
// Scalar names are formatted as strings; false, zero and NaN count as no
// name.
func (c Context) Name() string {
	switch v := c[KeyEvent].(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
	case float64:
		if v != 0 && !math.IsNaN(v) {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case int, int32, int64, uint, uint32, uint64:
		if s := fmt.Sprint(v); s != "0" {
			return s
		}
	}
	return ""
}

// HasEvent reports whether the context carries a non-empty event name.
func (c Context) HasEvent() bool {
	return c.Name() != ""
}

// Clone returns a shallow copy so callers can't mutate a logged record.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// With returns a copy of c with key set to v.
func (c Context) With(key string, v interface{}) Context {
	out := c.Clone()
	out[key] = v
	return out
}

// Entry is one record of the event log.
type Entry struct {
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
	Data Context   `json:"data"`
}
