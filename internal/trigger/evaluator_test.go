package trigger

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
)

type stubHost struct {
	url   string
	state page.ReadyState
	boxes map[string]page.Rect
}

func (h *stubHost) URL() string                 { return h.url }
func (h *stubHost) ReadyState() page.ReadyState { return h.state }
func (h *stubHost) Viewport() page.Viewport     { return page.Viewport{Width: 100, Height: 100} }
func (h *stubHost) BoundingBox(sel string) (page.Rect, bool, error) {
	if sel == "!!" {
		return page.Rect{}, false, errors.New("bad selector")
	}
	r, ok := h.boxes[sel]
	return r, ok, nil
}

func urlMatch(u string, m container.MatchType) container.URLMatch {
	return container.TriggerFromDoc(container.TriggerDoc{Type: "url_match", URL: u, MatchType: string(m)}).(container.URLMatch)
}

func TestEvaluate(t *testing.T) {
	host := &stubHost{
		url:   "https://x.com/a",
		state: page.Interactive,
		boxes: map[string]page.Rect{
			"#in":   {Left: 0, Top: 0, Right: 50, Bottom: 50},
			"#edge": {Left: 50, Top: 50, Right: 120, Bottom: 90},
		},
	}
	purchase := event.Context{"event": "purchase"}

	cases := []struct {
		name    string
		trigger container.Trigger
		ctx     event.Context
		want    bool
		wantErr bool
	}{
		{name: "pageview", trigger: container.PageView{}, want: true},
		{name: "structural ready reached", trigger: container.StructuralReady{}, want: true},
		{name: "fully loaded not yet", trigger: container.FullyLoaded{}, want: false},
		{name: "custom event match", trigger: container.CustomEvent{EventName: "purchase"}, ctx: purchase, want: true},
		{name: "custom event case sensitive", trigger: container.CustomEvent{EventName: "Purchase"}, ctx: purchase, want: false},
		{name: "custom event no event", trigger: container.CustomEvent{EventName: "purchase"}, want: false},
		{name: "equals exact", trigger: urlMatch("https://x.com/a", container.MatchEquals), want: true},
		{name: "equals trailing slash", trigger: urlMatch("https://x.com/a/", container.MatchEquals), want: false},
		{name: "contains", trigger: urlMatch("x.com", container.MatchContains), want: true},
		{name: "regex", trigger: urlMatch(`^https://x\.com/[a-z]$`, container.MatchRegex), want: true},
		{name: "regex no match", trigger: urlMatch(`/b$`, container.MatchRegex), want: false},
		{name: "invalid regex", trigger: urlMatch("(", container.MatchRegex), wantErr: true},
		{name: "visible", trigger: container.ElementVisible{Selector: "#in"}, want: true},
		{name: "partially visible", trigger: container.ElementVisible{Selector: "#edge"}, want: false},
		{name: "absent element", trigger: container.ElementVisible{Selector: "#none"}, want: false},
		{name: "bad selector", trigger: container.ElementVisible{Selector: "!!"}, wantErr: true},
		{name: "click never", trigger: container.Click{Selector: "a"}, want: false},
		{name: "unknown", trigger: container.UnknownTrigger{Raw: "hover"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.trigger, tc.ctx, host)
			if tc.wantErr {
				require.Error(t, err)
				var ee *EvaluationError
				assert.True(t, errors.As(err, &ee))
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_URLMatchProperties(t *testing.T) {
	checkout := urlMatch("/checkout", container.MatchContains)

	ok, err := Evaluate(checkout, nil, &stubHost{url: "https://x.com/cart/checkout"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate(checkout, nil, &stubHost{url: "https://x.com/cart"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_UncompiledRegex(t *testing.T) {
	_, err := Evaluate(container.URLMatch{URL: "x", Match: container.MatchRegex}, nil, &stubHost{})
	assert.Error(t, err)

	tr := container.URLMatch{URL: "x", Match: container.MatchRegex, Pattern: regexp.MustCompile("x")}
	ok, err := Evaluate(tr, nil, &stubHost{url: "xx"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAll(t *testing.T) {
	host := &stubHost{url: "https://x.com/", state: page.Complete}

	assert.True(t, All(nil, nil, host, nil), "empty set is vacuously true")

	var errs []error
	onErr := func(err error) { errs = append(errs, err) }

	ok := All([]container.Trigger{container.PageView{}, container.FullyLoaded{}}, nil, host, onErr)
	assert.True(t, ok)

	ok = All([]container.Trigger{urlMatch("(", container.MatchRegex), container.PageView{}}, nil, host, onErr)
	assert.False(t, ok)
	require.Len(t, errs, 1)

	ok = All([]container.Trigger{container.PageView{}, container.Click{Selector: "a"}}, nil, host, onErr)
	assert.False(t, ok, "click makes the conjunction false")
}
