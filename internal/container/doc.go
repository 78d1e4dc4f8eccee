package container

// Doc is the wire form of a container served at GET /config/{containerId}.
// The provider also reads it from YAML files.
type Doc struct {
	ContainerID string   `json:"containerId" yaml:"containerId"`
	Name        string   `json:"name" yaml:"name"`
	Version     int      `json:"version" yaml:"version"`
	UpdatedAt   string   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Tags        []TagDoc `json:"tags" yaml:"tags"`
}

// TagDoc is the wire form of a tag.
type TagDoc struct {
	ID         string                 `json:"id" yaml:"id"`
	Name       string                 `json:"name" yaml:"name"`
	Type       string                 `json:"type" yaml:"type"`
	HTML       string                 `json:"html,omitempty" yaml:"html,omitempty"`
	Src        string                 `json:"src,omitempty" yaml:"src,omitempty"`
	Code       string                 `json:"code,omitempty" yaml:"code,omitempty"`
	Async      *bool                  `json:"async,omitempty" yaml:"async,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	FireOnce   *bool                  `json:"fireOnce,omitempty" yaml:"fireOnce,omitempty"`
	Enabled    *bool                  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	OnSuccess  bool                   `json:"onSuccess,omitempty" yaml:"onSuccess,omitempty"`
	OnError    bool                   `json:"onError,omitempty" yaml:"onError,omitempty"`
	Triggers   []TriggerDoc           `json:"triggers" yaml:"triggers"`
}

// TriggerDoc is the wire form of a trigger.
type TriggerDoc struct {
	Type      string `json:"type" yaml:"type"`
	EventName string `json:"eventName,omitempty" yaml:"eventName,omitempty"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	MatchType string `json:"matchType,omitempty" yaml:"matchType,omitempty"`
	Selector  string `json:"selector,omitempty" yaml:"selector,omitempty"`
}

// IsEnabled reports the container's enabled flag (default true).
func (d *Doc) IsEnabled() bool { return boolOr(d.Enabled, true) }

// IsEnabled reports the tag's enabled flag (default true).
func (t *TagDoc) IsEnabled() bool { return boolOr(t.Enabled, true) }

// Published returns a copy of the document carrying only enabled tags,
// which is what the provider serves to the engine.
func (d *Doc) Published() *Doc {
	out := *d
	out.Tags = make([]TagDoc, 0, len(d.Tags))
	for _, t := range d.Tags {
		if t.IsEnabled() {
			out.Tags = append(out.Tags, t)
		}
	}
	return &out
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
