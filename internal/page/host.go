// Package page abstracts the host document the engine runs inside.
//
// The engine never touches a concrete DOM; it talks to a Host. Document is
// the in-memory implementation used by the CLI and tests.
package page

import (
	"golang.org/x/net/html"
)

// ReadyState mirrors the document lifecycle.
type ReadyState int

const (
	Loading ReadyState = iota
	Interactive
	Complete
)

func (s ReadyState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Interactive:
		return "interactive"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Viewport is the visible area of the page.
type Viewport struct {
	Width, Height float64
}

// Contains reports whether r lies entirely within the viewport.
// Partial visibility does not count.
func (v Viewport) Contains(r Rect) bool {
	return r.Top >= 0 && r.Left >= 0 && r.Bottom <= v.Height && r.Right <= v.Width
}

// Host is everything the engine needs from the page it is embedded in.
type Host interface {
	URL() string
	Hostname() string
	Path() string
	Title() string
	Referrer() string

	ReadyState() ReadyState
	// OnReadyState runs fn once the document reaches state, or immediately
	// if it already has.
	OnReadyState(state ReadyState, fn func())

	Viewport() Viewport
	// BoundingBox returns the box of the first element matching selector.
	// ok is false when nothing matches or the element has no layout.
	BoundingBox(selector string) (r Rect, ok bool, err error)
	// Closest returns target or its nearest ancestor matching selector.
	Closest(target *html.Node, selector string) (*html.Node, error)
	// AddClickListener registers a delegated listener at the document root.
	AddClickListener(fn func(target *html.Node))

	AppendHead(n *html.Node)
	AppendBody(n *html.Node)
}
