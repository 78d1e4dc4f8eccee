package tag

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
)

// ErrCodeDisabled is returned for code tags when code execution is turned off.
var ErrCodeDisabled = errors.New("code execution disabled")

// CodeRunner executes arbitrary text as code with data as its only argument.
//
// This is a trust boundary, not a sandbox: code runs with the privileges of
// the page it is injected into.
type CodeRunner interface {
	Run(code string, data event.Context) error
}

// DisabledRunner refuses every code payload.
type DisabledRunner struct{}

func (DisabledRunner) Run(string, event.Context) error { return ErrCodeDisabled }

// CodeHandler interpolates a code payload and hands it to a CodeRunner.
type CodeHandler struct {
	Vars   Interpolator
	Runner CodeRunner
}

func (h *CodeHandler) Kind() container.Kind { return container.KindCode }

func (h *CodeHandler) Execute(t *container.Tag, ctx event.Context) error {
	p, ok := t.Payload.(container.Code)
	if !ok {
		return fmt.Errorf("payload %T is not code", t.Payload)
	}
	runner := h.Runner
	if runner == nil {
		runner = DisabledRunner{}
	}
	return runner.Run(h.Vars.Interpolate(p.Code, ctx), ctx)
}
