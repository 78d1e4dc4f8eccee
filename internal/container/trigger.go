package container

import (
	"regexp"
	"strings"
)

// TriggerType discriminates trigger variants.
type TriggerType string

const (
	TriggerPageView        TriggerType = "pageview"
	TriggerStructuralReady TriggerType = "structural-ready"
	TriggerFullyLoaded     TriggerType = "fully-loaded"
	TriggerCustomEvent     TriggerType = "custom-event"
	TriggerURLMatch        TriggerType = "url-match"
	TriggerClick           TriggerType = "click"
	TriggerElementVisible  TriggerType = "element-visible"
	TriggerUnknown         TriggerType = "unknown"
)

// MatchType selects how a url-match trigger compares URLs.
type MatchType string

const (
	MatchContains MatchType = "contains"
	MatchEquals   MatchType = "equals"
	MatchRegex    MatchType = "regex"
)

// Trigger is the closed set of trigger variants. Triggers belong to exactly
// one tag and have no identity of their own.
type Trigger interface {
	Type() TriggerType
	trigger()
}

type PageView struct{}

// StructuralReady holds once the document is interactive (DOM ready).
type StructuralReady struct{}

// FullyLoaded holds once the document is complete (window load).
type FullyLoaded struct{}

type CustomEvent struct {
	EventName string
}

// URLMatch compares the current URL against URL. For MatchRegex the pattern
// is compiled at load time; a compile failure is kept in Err and reported on
// every evaluation instead of failing the whole container.
type URLMatch struct {
	URL     string
	Match   MatchType
	Pattern *regexp.Regexp
	Err     error
}

// Click is matched by the delegated click listener, never by the generic
// evaluator.
type Click struct {
	Selector string
}

type ElementVisible struct {
	Selector string
}

// UnknownTrigger is what a malformed or unrecognised trigger decodes to.
// It never matches.
type UnknownTrigger struct {
	Raw    string
	Reason string
}

func (PageView) Type() TriggerType        { return TriggerPageView }
func (StructuralReady) Type() TriggerType { return TriggerStructuralReady }
func (FullyLoaded) Type() TriggerType     { return TriggerFullyLoaded }
func (CustomEvent) Type() TriggerType     { return TriggerCustomEvent }
func (URLMatch) Type() TriggerType        { return TriggerURLMatch }
func (Click) Type() TriggerType           { return TriggerClick }
func (ElementVisible) Type() TriggerType  { return TriggerElementVisible }
func (UnknownTrigger) Type() TriggerType  { return TriggerUnknown }

func (PageView) trigger()        {}
func (StructuralReady) trigger() {}
func (FullyLoaded) trigger()     {}
func (CustomEvent) trigger()     {}
func (URLMatch) trigger()        {}
func (Click) trigger()           {}
func (ElementVisible) trigger()  {}
func (UnknownTrigger) trigger()  {}

// ParseTriggerType maps wire names (dom_ready, window_load, custom_event,
// url_match, element_visibility and their descriptive spellings) onto a
// TriggerType.
func ParseTriggerType(s string) TriggerType {
	switch normalize(s) {
	case "pageview", "page_view":
		return TriggerPageView
	case "dom_ready", "domready", "structural_ready":
		return TriggerStructuralReady
	case "window_load", "load", "fully_loaded":
		return TriggerFullyLoaded
	case "custom_event", "event":
		return TriggerCustomEvent
	case "url_match":
		return TriggerURLMatch
	case "click":
		return TriggerClick
	case "element_visibility", "element_visible":
		return TriggerElementVisible
	}
	return TriggerUnknown
}

// ParseMatchType maps a wire match type; "" defaults to contains.
func ParseMatchType(s string) (MatchType, bool) {
	switch normalize(s) {
	case "", "contains":
		return MatchContains, true
	case "equals":
		return MatchEquals, true
	case "regex":
		return MatchRegex, true
	}
	return "", false
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
