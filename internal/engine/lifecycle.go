package engine

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
)

// configLoaded enters config-loaded, runs the pageview pass and hooks the
// host lifecycle. The dom_ready and window_load passes each run exactly
// once: queued now if the host is already past that point, else on the
// host signal. Lifecycle contexts are not appended to the event log.
func (e *Engine) configLoaded(c *container.Container) {
	e.cfg.Store(c)
	e.phase.Store(int32(PhaseConfigLoaded))
	e.logger.Info("container loaded", "name", c.Name, "version", c.Version, "tags", len(c.Tags))

	e.runPass(event.New(event.NamePageView))

	e.host.OnReadyState(page.Interactive, func() {
		e.dispatch(func() {
			e.runPass(event.New(event.NameDOMReady))
			e.bindClicks()
		})
	})
	e.host.OnReadyState(page.Complete, func() {
		e.dispatch(func() { e.runPass(event.New(event.NameWindowLoad)) })
	})
	e.phase.Store(int32(PhaseReady))
}

// bindClicks attaches one delegated listener per (tag, click trigger).
// A matching click executes the tag directly; the tag's other triggers are
// not consulted.
func (e *Engine) bindClicks() {
	if e.clicksBound {
		return
	}
	e.clicksBound = true
	for _, t := range e.cfg.Load().EnabledTags() {
		for _, ct := range t.ClickTriggers() {
			t, selector := t, ct.Selector
			e.host.AddClickListener(func(target *html.Node) {
				e.dispatch(func() { e.onClick(t, selector, target) })
			})
		}
	}
}

func (e *Engine) onClick(t *container.Tag, selector string, target *html.Node) {
	el, err := e.host.Closest(target, selector)
	if err != nil {
		e.logger.Warn("click selector failed", "tag_id", t.ID, "selector", selector, "err", err)
		return
	}
	if el == nil {
		return
	}
	e.execute(t, clickContext(el))
}

func clickContext(el *html.Node) event.Context {
	return event.Context{
		event.KeyEvent: event.NameClick,
		"clickElement": el.Data,
		"clickText":    strings.TrimSpace(page.TextContent(el)),
		"clickUrl":     page.Attr(el, "href"),
		"clickId":      page.Attr(el, "id"),
	}
}
