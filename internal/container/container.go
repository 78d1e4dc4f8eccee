// Package container holds the typed container configuration: tags, their
// payload variants and their trigger variants.
package container

import "time"

// Container is one site integration. It is immutable once decoded and is
// replaced wholesale on reload.
type Container struct {
	ID        string
	Name      string
	Version   int
	UpdatedAt time.Time
	// Tags are in evaluation order.
	Tags []*Tag
}

// Tag is a payload with a firing policy and the triggers gating it.
type Tag struct {
	ID        string
	Name      string
	FireOnce  bool
	Enabled   bool
	OnSuccess bool // push ctm.tagFired after a successful run
	OnError   bool // push ctm.tagError after a failed run
	Triggers  []Trigger
	Payload   Payload
}

// Kind returns the payload kind.
func (t *Tag) Kind() Kind {
	if t.Payload == nil {
		return KindUnknown
	}
	return t.Payload.Kind()
}

// ClickTriggers returns the tag's click triggers, in order.
func (t *Tag) ClickTriggers() []Click {
	var out []Click
	for _, tr := range t.Triggers {
		if c, ok := tr.(Click); ok {
			out = append(out, c)
		}
	}
	return out
}

// Tag returns the tag with the given id, or nil.
func (c *Container) Tag(id string) *Tag {
	for _, t := range c.Tags {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// EnabledTags returns the enabled tags in evaluation order.
func (c *Container) EnabledTags() []*Tag {
	out := make([]*Tag, 0, len(c.Tags))
	for _, t := range c.Tags {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}
