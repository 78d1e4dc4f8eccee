// Package variable interpolates {{name}} placeholders in tag payloads.
package variable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
)

var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Page exposes the well-known page attributes.
type Page interface {
	URL() string
	Hostname() string
	Path() string
	Title() string
	Referrer() string
}

// Store is the last-write-wins variable store (the event log).
type Store interface {
	Resolve(name string) (interface{}, bool)
}

// Resolver resolves placeholder names against a page and a store.
// Either may be nil.
type Resolver struct {
	Page  Page
	Store Store
}

// Interpolate replaces every {{name}} span in tmpl. A name is looked up in
// ctx first, then in the page attributes, then in the store. Unresolved
// placeholders are left exactly as written.
//
// Interpolation is a single non-recursive pass and values are inserted
// verbatim, without escaping. Payloads are trusted; see tag.CodeRunner.
func (r Resolver) Interpolate(tmpl string, ctx event.Context) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := r.Lookup(name, ctx); ok {
			return format(v)
		}
		return match
	})
}

// Lookup resolves one variable name.
func (r Resolver) Lookup(name string, ctx event.Context) (interface{}, bool) {
	if v, ok := lookupContext(ctx, name); ok {
		return v, true
	}
	if r.Page != nil {
		switch name {
		case "page.url":
			return r.Page.URL(), true
		case "page.hostname":
			return r.Page.Hostname(), true
		case "page.path":
			return r.Page.Path(), true
		case "page.title":
			return r.Page.Title(), true
		case "page.referrer":
			return r.Page.Referrer(), true
		}
	}
	if r.Store != nil {
		return r.Store.Resolve(name)
	}
	return nil, false
}

// lookupContext tries the flat key first, then walks a dotted path through
// nested maps ("ecommerce.value").
func lookupContext(ctx event.Context, name string) (interface{}, bool) {
	if ctx == nil {
		return nil, false
	}
	if v, ok := ctx[name]; ok && v != nil {
		return v, true
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	return resolveMap(ctx, strings.Split(name, "."))
}

func resolveMap(m map[string]interface{}, path []string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	val, ok := m[path[0]]
	if !ok || val == nil {
		return nil, false
	}
	if len(path) == 1 {
		return val, true
	}
	switch sub := val.(type) {
	case map[string]interface{}:
		return resolveMap(sub, path[1:])
	case event.Context:
		return resolveMap(sub, path[1:])
	}
	return nil, false
}

func format(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
