package tag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
)

// Page is where injected nodes end up.
type Page interface {
	AppendHead(n *html.Node)
	AppendBody(n *html.Node)
}

// Interpolator expands {{name}} placeholders.
type Interpolator interface {
	Interpolate(tmpl string, ctx event.Context) string
}

// DefaultHandlers returns the markup, script, pixel and code handlers.
func DefaultHandlers(p Page, vars Interpolator, code CodeRunner) []Handler {
	return []Handler{
		&MarkupHandler{Page: p, Vars: vars},
		&ScriptHandler{Page: p, Vars: vars},
		&PixelHandler{Page: p, Vars: vars},
		&CodeHandler{Vars: vars, Runner: code},
	}
}

// MarkupHandler parses interpolated HTML into a detached fragment. Every
// script element in the fragment is moved to <head>; the remaining
// top-level nodes are appended to <body> in order.
type MarkupHandler struct {
	Page Page
	Vars Interpolator
}

func (h *MarkupHandler) Kind() container.Kind { return container.KindMarkup }

func (h *MarkupHandler) Execute(t *container.Tag, ctx event.Context) error {
	p, ok := t.Payload.(container.Markup)
	if !ok {
		return fmt.Errorf("payload %T is not markup", t.Payload)
	}
	nodes, err := parseFragment(h.Vars.Interpolate(p.HTML, ctx))
	if err != nil {
		return err
	}
	var scripts []*html.Node
	rest := nodes[:0]
	for _, n := range nodes {
		if page.IsElement(n, atom.Script) {
			scripts = append(scripts, n)
			continue
		}
		scripts = append(scripts, detachScripts(n)...)
		rest = append(rest, n)
	}
	for _, s := range scripts {
		h.Page.AppendHead(s)
	}
	for _, n := range rest {
		h.Page.AppendBody(n)
	}
	return nil
}

func parseFragment(s string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return nodes, nil
}

// detachScripts removes every script element below n, in document order.
func detachScripts(n *html.Node) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			if page.IsElement(ch, atom.Script) {
				found = append(found, ch)
				continue
			}
			walk(ch)
		}
	}
	walk(n)
	for _, s := range found {
		s.Parent.RemoveChild(s)
	}
	return found
}

// ScriptHandler builds a <script> element into <head>.
type ScriptHandler struct {
	Page Page
	Vars Interpolator
}

func (h *ScriptHandler) Kind() container.Kind { return container.KindScript }

func (h *ScriptHandler) Execute(t *container.Tag, ctx event.Context) error {
	p, ok := t.Payload.(container.Script)
	if !ok {
		return fmt.Errorf("payload %T is not a script", t.Payload)
	}
	if p.Src == "" && p.Code == "" {
		return errors.New("script has neither src nor code")
	}
	el := page.NewElement(atom.Script)
	if p.Src != "" {
		page.SetAttr(el, "src", h.Vars.Interpolate(p.Src, ctx))
		if p.Async {
			page.SetAttr(el, "async", "")
		}
	} else {
		el.AppendChild(page.NewText(h.Vars.Interpolate(p.Code, ctx)))
	}
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		page.SetAttr(el, k, h.Vars.Interpolate(p.Attributes[k], ctx))
	}
	h.Page.AppendHead(el)
	return nil
}

// PixelHandler appends a hidden 1x1 image to <body>.
type PixelHandler struct {
	Page Page
	Vars Interpolator
}

func (h *PixelHandler) Kind() container.Kind { return container.KindPixel }

func (h *PixelHandler) Execute(t *container.Tag, ctx event.Context) error {
	p, ok := t.Payload.(container.Pixel)
	if !ok {
		return fmt.Errorf("payload %T is not a pixel", t.Payload)
	}
	if p.Src == "" {
		return errors.New("pixel has no src")
	}
	img := page.NewElement(atom.Img)
	page.SetAttr(img, "src", h.Vars.Interpolate(p.Src, ctx))
	page.SetAttr(img, "width", "1")
	page.SetAttr(img, "height", "1")
	page.SetAttr(img, "style", "display:none")
	h.Page.AppendBody(img)
	return nil
}
