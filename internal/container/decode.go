package container

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Decode parses a JSON container document.
func Decode(data []byte) (*Container, error) {
	doc, err := ParseDoc(data)
	if err != nil {
		return nil, err
	}
	return FromDoc(doc)
}

// ParseDoc parses a JSON container document without converting it.
func ParseDoc(data []byte) (*Doc, error) {
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode container: %w", err)
	}
	return &doc, nil
}

// FromDoc converts a wire document into the typed model.
//
// Structural problems (missing container id, missing or duplicate tag ids)
// reject the whole document. Malformed variants are down-converted instead:
// bad triggers become UnknownTrigger, while unknown tag types and payloads
// missing their required fields become UnknownPayload, so one broken tag
// never stops its siblings from loading.
func FromDoc(doc *Doc) (*Container, error) {
	var errs []string
	if doc.ContainerID == "" {
		errs = append(errs, "containerId is required")
	}
	seen := make(map[string]int, len(doc.Tags))
	for i, td := range doc.Tags {
		if td.ID == "" {
			errs = append(errs, fmt.Sprintf("tags[%d]: id is required", i))
			continue
		}
		if prev, ok := seen[td.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate tag id %q (tags[%d] and tags[%d])", td.ID, prev, i))
			continue
		}
		seen[td.ID] = i
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("container errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	c := &Container{
		ID:      doc.ContainerID,
		Name:    doc.Name,
		Version: doc.Version,
		Tags:    make([]*Tag, 0, len(doc.Tags)),
	}
	if doc.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, doc.UpdatedAt); err == nil {
			c.UpdatedAt = ts
		}
	}
	for i := range doc.Tags {
		c.Tags = append(c.Tags, tagFromDoc(&doc.Tags[i]))
	}
	return c, nil
}

func tagFromDoc(td *TagDoc) *Tag {
	t := &Tag{
		ID:        td.ID,
		Name:      td.Name,
		FireOnce:  boolOr(td.FireOnce, true),
		Enabled:   td.IsEnabled(),
		OnSuccess: td.OnSuccess,
		OnError:   td.OnError,
		Payload:   payloadFromDoc(td),
		Triggers:  make([]Trigger, 0, len(td.Triggers)),
	}
	for _, trd := range td.Triggers {
		t.Triggers = append(t.Triggers, TriggerFromDoc(trd))
	}
	return t
}

func payloadFromDoc(td *TagDoc) Payload {
	switch ParseKind(td.Type) {
	case KindMarkup:
		return Markup{HTML: td.HTML}
	case KindScript:
		if td.Src == "" && td.Code == "" {
			return UnknownPayload{Type: td.Type, Reason: "script tag without src or code"}
		}
		return Script{
			Src:        td.Src,
			Code:       td.Code,
			Async:      boolOr(td.Async, true),
			Attributes: attributesFromDoc(td.Attributes),
		}
	case KindPixel:
		if td.Src == "" {
			return UnknownPayload{Type: td.Type, Reason: "pixel tag without src"}
		}
		return Pixel{Src: td.Src}
	case KindCode:
		return Code{Code: td.Code}
	}
	return UnknownPayload{Type: td.Type, Reason: fmt.Sprintf("unknown tag type %q", td.Type)}
}

// attributesFromDoc renders attribute values as strings. Scalars are
// formatted, null values are dropped and anything else is JSON-encoded.
func attributesFromDoc(in map[string]interface{}) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := attrString(v); ok {
			out[k] = s
		}
	}
	return out
}

func attrString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int, int64, uint64:
		return fmt.Sprint(x), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return string(b), true
}

// TriggerFromDoc converts one wire trigger, down-converting malformed ones.
func TriggerFromDoc(td TriggerDoc) Trigger {
	unknown := func(reason string) Trigger {
		return UnknownTrigger{Raw: td.Type, Reason: reason}
	}
	switch ParseTriggerType(td.Type) {
	case TriggerPageView:
		return PageView{}
	case TriggerStructuralReady:
		return StructuralReady{}
	case TriggerFullyLoaded:
		return FullyLoaded{}
	case TriggerCustomEvent:
		if td.EventName == "" {
			return unknown("custom-event trigger without eventName")
		}
		return CustomEvent{EventName: td.EventName}
	case TriggerURLMatch:
		mt, ok := ParseMatchType(td.MatchType)
		if !ok {
			return unknown(fmt.Sprintf("unknown matchType %q", td.MatchType))
		}
		if td.URL == "" {
			return unknown("url-match trigger without url")
		}
		u := URLMatch{URL: td.URL, Match: mt}
		if mt == MatchRegex {
			u.Pattern, u.Err = regexp.Compile(td.URL)
		}
		return u
	case TriggerClick:
		if td.Selector == "" {
			return unknown("click trigger without selector")
		}
		return Click{Selector: td.Selector}
	case TriggerElementVisible:
		if td.Selector == "" {
			return unknown("element-visible trigger without selector")
		}
		return ElementVisible{Selector: td.Selector}
	}
	return unknown(fmt.Sprintf("unknown trigger type %q", td.Type))
}
