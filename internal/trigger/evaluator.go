// Package trigger decides whether a trigger holds for an event context.
// Evaluation has no side effects.
package trigger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
)

// Host is the part of the page a trigger can observe.
type Host interface {
	URL() string
	ReadyState() page.ReadyState
	Viewport() page.Viewport
	BoundingBox(selector string) (page.Rect, bool, error)
}

// EvaluationError is a per-trigger failure. The trigger counts as false.
type EvaluationError struct {
	Type container.TriggerType
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("trigger %s: %v", e.Type, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ErrUnknownTrigger is reported for triggers that failed to decode.
var ErrUnknownTrigger = errors.New("unknown trigger")

// Evaluate reports whether t holds for ctx on host.
func Evaluate(t container.Trigger, ctx event.Context, host Host) (bool, error) {
	switch tr := t.(type) {
	case container.PageView:
		return true, nil
	case container.StructuralReady:
		return host.ReadyState() >= page.Interactive, nil
	case container.FullyLoaded:
		return host.ReadyState() >= page.Complete, nil
	case container.CustomEvent:
		return ctx.Name() == tr.EventName, nil
	case container.URLMatch:
		return matchURL(tr, host.URL())
	case container.ElementVisible:
		r, ok, err := host.BoundingBox(tr.Selector)
		if err != nil {
			return false, &EvaluationError{Type: tr.Type(), Err: err}
		}
		return ok && host.Viewport().Contains(r), nil
	case container.Click:
		// Clicks are matched by the delegated listener only.
		return false, nil
	case container.UnknownTrigger:
		return false, &EvaluationError{Type: tr.Type(), Err: fmt.Errorf("%w %q: %s", ErrUnknownTrigger, tr.Raw, tr.Reason)}
	}
	return false, &EvaluationError{Type: container.TriggerUnknown, Err: fmt.Errorf("%w %T", ErrUnknownTrigger, t)}
}

func matchURL(t container.URLMatch, current string) (bool, error) {
	switch t.Match {
	case container.MatchEquals:
		return current == t.URL, nil
	case container.MatchContains:
		return strings.Contains(current, t.URL), nil
	case container.MatchRegex:
		if t.Err != nil {
			return false, &EvaluationError{Type: t.Type(), Err: fmt.Errorf("invalid regex %q: %w", t.URL, t.Err)}
		}
		if t.Pattern == nil {
			return false, &EvaluationError{Type: t.Type(), Err: fmt.Errorf("regex %q not compiled", t.URL)}
		}
		return t.Pattern.MatchString(current), nil
	}
	return false, &EvaluationError{Type: t.Type(), Err: fmt.Errorf("unknown match type %q", t.Match)}
}

// All reports whether every trigger holds (true for an empty set). It stops
// at the first false trigger. Failures are handed to onErr and count as false.
func All(triggers []container.Trigger, ctx event.Context, host Host, onErr func(error)) bool {
	for _, t := range triggers {
		ok, err := Evaluate(t, ctx, host)
		if err != nil && onErr != nil {
			onErr(err)
		}
		if !ok {
			return false
		}
	}
	return true
}
