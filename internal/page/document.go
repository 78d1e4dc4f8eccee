package page

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const blankPage = "<!DOCTYPE html><html><head></head><body></body></html>"

// Option configures a Document.
type Option func(*Document)

// WithReferrer sets document.referrer.
func WithReferrer(ref string) Option {
	return func(d *Document) { d.referrer = ref }
}

// WithViewport sets the viewport size.
func WithViewport(w, h float64) Option {
	return func(d *Document) { d.viewport = Viewport{Width: w, Height: h} }
}

// WithReadyState sets the initial lifecycle state.
func WithReadyState(s ReadyState) Option {
	return func(d *Document) { d.state = s }
}

// Document is an in-memory Host backed by an x/net/html tree.
// Element layout comes from SetBox or a data-rect="left,top,width,height"
// attribute; elements without either are treated as not laid out.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	head     *html.Node
	body     *html.Node
	url      *url.URL
	referrer string
	state    ReadyState
	viewport Viewport
	boxes    map[*html.Node]Rect
	waiters  map[ReadyState][]func()
	clicks   []func(*html.Node)
}

// NewDocument returns an empty page at rawURL.
func NewDocument(rawURL string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(blankPage), rawURL, opts...)
}

// Parse reads an HTML page served from rawURL.
func Parse(r io.Reader, rawURL string, opts ...Option) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("page url %q: %w", rawURL, err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	d := &Document{
		root:     root,
		url:      u,
		viewport: Viewport{Width: 1280, Height: 800},
		boxes:    make(map[*html.Node]Rect),
		waiters:  make(map[ReadyState][]func()),
	}
	d.head = findAtom(root, atom.Head)
	d.body = findAtom(root, atom.Body)
	if d.head == nil || d.body == nil {
		return nil, fmt.Errorf("parse page: missing head or body")
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Document) URL() string      { return d.url.String() }
func (d *Document) Hostname() string { return d.url.Hostname() }
func (d *Document) Referrer() string { return d.referrer }

func (d *Document) Path() string {
	if d.url.Path == "" {
		return "/"
	}
	return d.url.Path
}

func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := findAtom(d.head, atom.Title)
	if t == nil {
		return ""
	}
	return strings.TrimSpace(TextContent(t))
}

func (d *Document) ReadyState() ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Document) OnReadyState(state ReadyState, fn func()) {
	d.mu.Lock()
	if d.state >= state {
		d.mu.Unlock()
		fn()
		return
	}
	d.waiters[state] = append(d.waiters[state], fn)
	d.mu.Unlock()
}

// Advance moves the lifecycle forward, firing waiters of every state passed
// on the way. Moving backward is a no-op.
func (d *Document) Advance(state ReadyState) {
	d.mu.Lock()
	if state <= d.state {
		d.mu.Unlock()
		return
	}
	var fire []func()
	for s := d.state + 1; s <= state; s++ {
		fire = append(fire, d.waiters[s]...)
		delete(d.waiters, s)
	}
	d.state = state
	d.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

func (d *Document) Viewport() Viewport { return d.viewport }

// SetBox assigns a layout box to the first element matching selector.
func (d *Document) SetBox(selector string, r Rect) error {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := sel.MatchFirst(d.root)
	if n == nil {
		return fmt.Errorf("selector %q: no element", selector)
	}
	d.boxes[n] = r
	return nil
}

func (d *Document) BoundingBox(selector string) (Rect, bool, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return Rect{}, false, fmt.Errorf("selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := sel.MatchFirst(d.root)
	if n == nil {
		return Rect{}, false, nil
	}
	if r, ok := d.boxes[n]; ok {
		return r, true, nil
	}
	r, ok := parseRect(Attr(n, "data-rect"))
	return r, ok, nil
}

func (d *Document) Closest(target *html.Node, selector string) (*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	for n := target; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && sel.Match(n) {
			return n, nil
		}
	}
	return nil, nil
}

func (d *Document) AddClickListener(fn func(target *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks = append(d.clicks, fn)
}

// Click dispatches a click on the first element matching selector.
func (d *Document) Click(selector string) error {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("selector %q: %w", selector, err)
	}
	d.mu.Lock()
	target := sel.MatchFirst(d.root)
	listeners := make([]func(*html.Node), len(d.clicks))
	copy(listeners, d.clicks)
	d.mu.Unlock()

	if target == nil {
		return fmt.Errorf("selector %q: no element to click", selector)
	}
	for _, fn := range listeners {
		fn(target)
	}
	return nil
}

func (d *Document) AppendHead(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.head.AppendChild(n)
}

func (d *Document) AppendBody(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.body.AppendChild(n)
}

// Query returns every element matching selector.
func (d *Document) Query(selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return sel.MatchAll(d.root), nil
}

// Render serialises the current document.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Head returns the document's <head> element.
func (d *Document) Head() *html.Node { return d.head }

// Body returns the document's <body> element.
func (d *Document) Body() *html.Node { return d.body }

// parseRect reads "left,top,width,height".
func parseRect(s string) (Rect, bool) {
	if s == "" {
		return Rect{}, false
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, false
		}
		v[i] = f
	}
	return Rect{Left: v[0], Top: v[1], Right: v[0] + v[2], Bottom: v[1] + v[3]}, true
}

var _ Host = (*Document)(nil)
