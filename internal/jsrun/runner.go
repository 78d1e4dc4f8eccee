// Package jsrun runs code tag payloads in an embedded JavaScript runtime.
package jsrun

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
)

// PushFunc receives records pushed with dataLayer.push from inside a tag.
type PushFunc func(record event.Context)

// Runner executes code as the body of function(data) { ... }.
// Each run gets a fresh runtime with data, dataLayer.push and console.log.
// Run time is not bounded.
type Runner struct {
	push   PushFunc
	logger *slog.Logger
}

// New creates a Runner. push may be nil.
func New(push PushFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{push: push, logger: logger}
}

func (r *Runner) Run(code string, data event.Context) error {
	vm := goja.New()
	if err := r.install(vm); err != nil {
		return err
	}
	fnVal, err := vm.RunString("(function(data) {\n" + code + "\n})")
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return fmt.Errorf("compile: not a function")
	}
	if data == nil {
		data = event.Context{}
	}
	if _, err := fn(goja.Undefined(), vm.ToValue(map[string]interface{}(data))); err != nil {
		return err
	}
	return nil
}

func (r *Runner) install(vm *goja.Runtime) error {
	console := vm.NewObject()
	if err := console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		r.logger.Info("console.log", "msg", strings.Join(parts, " "))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	dataLayer := vm.NewObject()
	if err := dataLayer.Set("push", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			rec, ok := a.Export().(map[string]interface{})
			if !ok {
				r.logger.Warn("dataLayer.push ignored non-object", "value", a.String())
				continue
			}
			if r.push != nil {
				r.push(event.Context(rec))
			}
		}
		return vm.ToValue(len(call.Arguments))
	}); err != nil {
		return err
	}
	return vm.Set("dataLayer", dataLayer)
}
