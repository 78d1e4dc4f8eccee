package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Embed is what the engine learns from its own load URL.
type Embed struct {
	ContainerID string
	Debug       bool
	// Endpoint is the API base derived from the load URL's origin.
	Endpoint string
}

// ParseEmbed reads ?id=...&debug=true from the URL the engine was loaded
// from, e.g. https://tags.example.com/container.js?id=CTM-1.
func ParseEmbed(src string) (Embed, error) {
	u, err := url.Parse(src)
	if err != nil {
		return Embed{}, &StartupError{Err: fmt.Errorf("embed url %q: %w", src, err)}
	}
	q := u.Query()
	e := Embed{
		ContainerID: strings.TrimSpace(q.Get("id")),
		Debug:       q.Get("debug") == "true",
	}
	if e.ContainerID == "" {
		return Embed{}, &StartupError{Err: errors.New("no container id in embed url")}
	}
	if u.Scheme != "" && u.Host != "" {
		e.Endpoint = u.Scheme + "://" + u.Host + "/api"
	}
	return e, nil
}
