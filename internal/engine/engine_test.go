package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/tagmanager/internal/config"
	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
	"github.com/gyaneshwarpardhi/tagmanager/internal/tag"
	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
)

const shopHTML = `<!DOCTYPE html><html><head><title>Cart</title></head><body>
<a id="buy" href="/checkout"><span>Buy now</span></a>
<p id="other">other</p>
</body></html>`

type staticLoader struct {
	c     *container.Container
	err   error
	calls int
}

func (l *staticLoader) Load(_ context.Context, id string) (*container.Container, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.c, nil
}

type countingRunner struct {
	calls int
	err   error
}

func (r *countingRunner) Run(string, event.Context) error {
	r.calls++
	return r.err
}

type recordingSink struct {
	mu   sync.Mutex
	hits []telemetry.Hit
}

func (s *recordingSink) Track(h telemetry.Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, h)
}

// tags builds a container document from tag JSON fragments.
func tags(t *testing.T, fragments ...string) *container.Container {
	t.Helper()
	c, err := container.Decode([]byte(fmt.Sprintf(`{"containerId":"CTM-1","name":"shop","version":2,"tags":[%s]}`,
		strings.Join(fragments, ","))))
	require.NoError(t, err)
	return c
}

func newDoc(t *testing.T, state page.ReadyState) *page.Document {
	t.Helper()
	doc, err := page.Parse(strings.NewReader(shopHTML), "https://shop.example/cart/checkout", page.WithReadyState(state))
	require.NoError(t, err)
	return doc
}

func newEngine(t *testing.T, c *container.Container, doc *page.Document, mods ...func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		ContainerID: "CTM-1",
		Loader:      &staticLoader{c: c},
		Host:        doc,
		LogOutput:   io.Discard,
	}
	for _, m := range mods {
		m(&opts)
	}
	return New(opts)
}

func start(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.Start(context.Background()))
}

// pixels returns the src of every injected image, in order.
func pixels(t *testing.T, doc *page.Document) []string {
	t.Helper()
	nodes, err := doc.Query("img")
	require.NoError(t, err)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, page.Attr(n, "src"))
	}
	return out
}

func pixelTag(id, src string, fireOnce bool, triggers string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"type":"image","src":%q,"fireOnce":%t,"triggers":[%s]}`,
		id, id, src, fireOnce, triggers)
}

func TestEngine_FireOnceAtMostOnce(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("p", "https://px/once", true, `{"type":"custom_event","eventName":"purchase"}`)), doc)
	start(t, e)

	for i := 0; i < 3; i++ {
		e.Push(event.Context{"event": "purchase"})
	}
	assert.Equal(t, []string{"https://px/once"}, pixels(t, doc))
}

func TestEngine_FireEveryTime(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("p", "https://px/every", false, `{"type":"custom_event","eventName":"purchase"}`)), doc)
	start(t, e)

	e.Push(event.Context{"event": "purchase"})
	e.Trigger("purchase", nil)
	assert.Equal(t, []string{"https://px/every", "https://px/every"}, pixels(t, doc))
}

func TestEngine_EmptyTriggersFireOnPageview(t *testing.T) {
	doc := newDoc(t, page.Loading)
	e := newEngine(t, tags(t, pixelTag("p", "https://px/?e={{event}}", true, "")), doc)
	start(t, e)

	assert.Equal(t, []string{"https://px/?e=pageview"}, pixels(t, doc))
	assert.Equal(t, []string{"p"}, e.State().ExecutedTags)
}

func TestEngine_PushInterpolatesContext(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("p", "https://px/p?v={{amount}}", true, `{"type":"custom_event","eventName":"purchase"}`)), doc)
	start(t, e)

	e.Push(event.Context{"event": "purchase", "amount": 42})
	assert.Equal(t, []string{"https://px/p?v=42"}, pixels(t, doc))
}

func TestEngine_FailingCodeDoesNotBlockSiblings(t *testing.T) {
	doc := newDoc(t, page.Complete)
	runner := &countingRunner{err: errors.New("TypeError: boom")}
	c := tags(t,
		`{"id":"bad","type":"custom","code":"boom()","fireOnce":true,"triggers":[]}`,
		`{"id":"lib","type":"script","src":"https://cdn/lib.js","fireOnce":true,"triggers":[]}`,
	)
	e := newEngine(t, c, doc, func(o *Options) { o.Code = runner })
	start(t, e)

	scripts, err := doc.Query(`head > script[src="https://cdn/lib.js"]`)
	require.NoError(t, err)
	assert.Len(t, scripts, 1)
	assert.Equal(t, 1, runner.calls, "dom_ready and window_load passes must not retry the failed tag")
	assert.Equal(t, []string{"bad", "lib"}, e.State().ExecutedTags)
}

func TestEngine_LoadFailureLeavesEngineInert(t *testing.T) {
	doc := newDoc(t, page.Complete)
	loader := &staticLoader{err: &config.StartupError{ContainerID: "CTM-1", Err: errors.New("fetch config: status 404")}}
	e := newEngine(t, nil, doc, func(o *Options) { o.Loader = loader })

	err := e.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrStartup))
	assert.Equal(t, PhaseInit, e.Phase())

	e.Push(event.Context{"event": "purchase"})
	e.Trigger("pageview", nil)
	assert.Empty(t, pixels(t, doc))

	st := e.State()
	assert.False(t, st.Loaded)
	assert.Equal(t, "init", st.Phase)
	assert.Len(t, st.Events, 2, "pushes are still logged")
	assert.Empty(t, st.ExecutedTags)
	assert.Equal(t, 1, loader.calls)
}

func TestEngine_StartupErrors(t *testing.T) {
	e := New(Options{LogOutput: io.Discard, Host: newDoc(t, page.Complete), Loader: &staticLoader{}})
	err := e.Start(context.Background())
	assert.True(t, errors.Is(err, config.ErrStartup))

	e = newEngine(t, tags(t), newDoc(t, page.Complete))
	start(t, e)
	assert.Error(t, e.Start(context.Background()), "start is once per page load")
}

func TestEngine_LifecyclePassesRunOnce(t *testing.T) {
	doc := newDoc(t, page.Loading)
	c := tags(t,
		pixelTag("ready", "https://px/ready", false, `{"type":"custom_event","eventName":"dom_ready"}`),
		pixelTag("load", "https://px/load", false, `{"type":"custom_event","eventName":"window_load"}`),
		pixelTag("structural", "https://px/structural", true, `{"type":"dom_ready"}`),
	)
	e := newEngine(t, c, doc)
	start(t, e)
	assert.Empty(t, pixels(t, doc))
	assert.Equal(t, PhaseReady, e.Phase())

	doc.Advance(page.Interactive)
	assert.Equal(t, []string{"https://px/ready", "https://px/structural"}, pixels(t, doc))

	doc.Advance(page.Complete)
	doc.Advance(page.Complete)
	assert.Equal(t, []string{"https://px/ready", "https://px/structural", "https://px/load"}, pixels(t, doc))
}

func TestEngine_AlreadyLoadedRunsAllPassesInOrder(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("every", "https://px/?e={{event}}", false, "")), doc)
	start(t, e)

	assert.Equal(t, []string{
		"https://px/?e=pageview",
		"https://px/?e=dom_ready",
		"https://px/?e=window_load",
	}, pixels(t, doc))
	assert.Empty(t, e.State().Events, "lifecycle contexts are not logged")
}

func TestEngine_ClickBypassesOtherTriggers(t *testing.T) {
	doc := newDoc(t, page.Loading)
	c := tags(t, pixelTag("c", "https://px/c?t={{clickText}}&u={{clickUrl}}", false,
		`{"type":"click","selector":"a#buy"},{"type":"url_match","url":"https://never.example","matchType":"equals"}`))
	e := newEngine(t, c, doc)
	start(t, e)

	require.NoError(t, doc.Click("a#buy span"))
	assert.Empty(t, pixels(t, doc), "listeners are bound at dom_ready")

	doc.Advance(page.Interactive)
	assert.Empty(t, pixels(t, doc), "click triggers never match in a regular pass")

	require.NoError(t, doc.Click("a#buy span"))
	require.NoError(t, doc.Click("#other"))
	assert.Equal(t, []string{"https://px/c?t=Buy now&u=/checkout"}, pixels(t, doc))
	assert.Empty(t, e.State().Events, "clicks are not logged")
}

func TestEngine_ClickRespectsFireOnce(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("c", "https://px/c", true, `{"type":"click","selector":"#buy"}`)), doc)
	start(t, e)

	require.NoError(t, doc.Click("#buy"))
	require.NoError(t, doc.Click("#buy"))
	assert.Equal(t, []string{"https://px/c"}, pixels(t, doc))
}

func TestEngine_TriggerFailuresAreIsolated(t *testing.T) {
	doc := newDoc(t, page.Complete)
	c := tags(t,
		pixelTag("regex", "https://px/regex", true, `{"type":"url_match","url":"(","matchType":"regex"}`),
		pixelTag("unknown", "https://px/unknown", true, `{"type":"scroll_depth"}`),
		pixelTag("contains", "https://px/contains", true, `{"type":"url_match","url":"/checkout"}`),
		pixelTag("nomatch", "https://px/nomatch", true, `{"type":"url_match","url":"/account"}`),
		pixelTag("visible", "https://px/visible", true, `{"type":"element_visibility","selector":"#other"}`),
	)
	e := newEngine(t, c, doc)
	start(t, e)
	assert.Equal(t, []string{"https://px/contains"}, pixels(t, doc))

	require.NoError(t, doc.SetBox("#other", page.Rect{Left: 10, Top: 10, Right: 100, Bottom: 40}))
	e.Trigger("scroll", nil)
	assert.Equal(t, []string{"https://px/contains", "https://px/visible"}, pixels(t, doc))
}

func TestEngine_PreLoadPushesAreLoggedNotEvaluated(t *testing.T) {
	doc := newDoc(t, page.Complete)
	c := tags(t,
		pixelTag("purchase", "https://px/purchase", true, `{"type":"custom_event","eventName":"purchase"}`),
		pixelTag("pv", "https://px/pv?u={{userId}}", true, ""),
	)
	e := newEngine(t, c, doc)

	e.Push(event.Context{"event": "purchase", "userId": "u-1"})
	start(t, e)

	assert.Equal(t, []string{"https://px/pv?u=u-1"}, pixels(t, doc))
}

func TestEngine_OnSuccessAndOnError(t *testing.T) {
	doc := newDoc(t, page.Complete)
	c := tags(t,
		`{"id":"ok","name":"Ok","type":"image","src":"https://px/ok","onSuccess":true,"triggers":[]}`,
		`{"id":"bad","name":"Bad","type":"custom","code":"x","onError":true,"triggers":[]}`,
		pixelTag("fired", "https://px/fired?id={{tagId}}", false, `{"type":"custom_event","eventName":"ctm.tagFired"}`),
		pixelTag("failed", "https://px/failed?id={{tagId}}", false, `{"type":"custom_event","eventName":"ctm.tagError"}`),
	)
	e := newEngine(t, c, doc, func(o *Options) { o.DisableCode = true })
	start(t, e)

	assert.Equal(t, []string{"https://px/ok", "https://px/fired?id=ok", "https://px/failed?id=bad"}, pixels(t, doc))
	events := e.State().Events
	require.Len(t, events, 2)
	assert.Equal(t, "ctm.tagFired", events[0].Data.Name())
	assert.Equal(t, "ctm.tagError", events[1].Data.Name())
	assert.Contains(t, events[1].Data["error"], tag.ErrCodeDisabled.Error())
}

func TestEngine_CodeTagPushIsQueued(t *testing.T) {
	doc := newDoc(t, page.Complete)
	c := tags(t,
		`{"id":"code","type":"custom","code":"dataLayer.push({event: 'inner', from: data.event})","triggers":[]}`,
		pixelTag("inner", "https://px/inner?from={{from}}", false, `{"type":"custom_event","eventName":"inner"}`),
		pixelTag("after", "https://px/after", true, ""),
	)
	e := newEngine(t, c, doc)
	start(t, e)

	assert.Equal(t, []string{"https://px/after", "https://px/inner?from=pageview"}, pixels(t, doc),
		"a push from inside a tag runs after the current pass")
}

func TestEngine_Telemetry(t *testing.T) {
	doc := newDoc(t, page.Complete)
	sink := &recordingSink{}
	e := newEngine(t, tags(t, pixelTag("p", "https://px/p", true, "")), doc, func(o *Options) { o.Telemetry = sink })
	start(t, e)
	e.Close()

	require.Len(t, sink.hits, 1)
	assert.Equal(t, "CTM-1", sink.hits[0].ContainerID)
	assert.Equal(t, "p", sink.hits[0].TagID)
	assert.Equal(t, "pageview", sink.hits[0].Event)
}

func TestEngine_PushAfterCloseRunsWholePass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	doc := newDoc(t, page.Complete)
	c := tags(t,
		pixelTag("a", "https://px/a", false, `{"type":"custom_event","eventName":"go"}`),
		pixelTag("b", "https://px/b", false, `{"type":"custom_event","eventName":"go"}`),
	)
	sink := telemetry.NewHTTPSink(telemetry.HTTPOptions{Endpoint: srv.URL, Workers: 1, QueueDepth: 4})
	e := newEngine(t, c, doc, func(o *Options) { o.Telemetry = sink })
	start(t, e)
	e.Close()

	e.Trigger("go", nil)

	assert.Equal(t, []string{"https://px/a", "https://px/b"}, pixels(t, doc))
	assert.Equal(t, []string{"a", "b"}, e.State().ExecutedTags)
}

func TestEngine_NumericEventNameRunsPass(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("n", "https://px/n", false, `{"type":"custom_event","eventName":"5"}`)), doc)
	start(t, e)

	e.Push(event.Context{"event": int64(5)})
	e.Push(event.Context{"event": 0})

	assert.Equal(t, []string{"https://px/n"}, pixels(t, doc))
}

func TestEngine_StateAndDebug(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t), doc)
	start(t, e)
	e.Trigger("login", map[string]interface{}{"userId": "u-9"})

	st := e.State()
	assert.Equal(t, Version, st.Version)
	assert.Equal(t, "CTM-1", st.ContainerID)
	assert.Equal(t, "ready", st.Phase)
	assert.True(t, st.Loaded)
	assert.False(t, st.Debug)
	require.Len(t, st.Events, 1)
	assert.Equal(t, "u-9", st.Events[0].Data["userId"])

	e.SetDebugMode(true)
	assert.True(t, e.State().Debug)
	e.SetDebugMode(false)
	assert.False(t, e.State().Debug)
}

func TestEngine_ConcurrentPushes(t *testing.T) {
	doc := newDoc(t, page.Complete)
	e := newEngine(t, tags(t, pixelTag("p", "https://px/p", false, `{"type":"custom_event","eventName":"hit"}`)), doc)
	start(t, e)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Trigger("hit", nil)
		}()
	}
	wg.Wait()
	// The last drainer finishes every queued job before returning.
	e.dispatch(func() {})
	assert.Len(t, pixels(t, doc), 20)
	assert.Len(t, e.State().Events, 20)
}
