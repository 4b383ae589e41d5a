package router

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/ports"
)

// RodRenderer is the primary ports.DynamicRenderer backend, grounded on
// flaresolverr-go's rod-based browser pool: launch once, create a page
// per render, and navigate/wait for network idle before reading HTML.
type RodRenderer struct {
	browser       *rod.Browser
	defaultTimeout time.Duration
}

func NewRodRenderer(browser *rod.Browser, defaultTimeout time.Duration) *RodRenderer {
	return &RodRenderer{browser: browser, defaultTimeout: defaultTimeout}
}

func (r *RodRenderer) Name() string { return "rod" }

func (r *RodRenderer) HealthCheck(_ context.Context) error {
	if r.browser == nil {
		return apperr.Dependency("rod_renderer", "browser not initialized")
	}
	if _, err := r.browser.Pages(); err != nil {
		return apperr.Wrap(apperr.KindDependency, "rod health check", err)
	}
	return nil
}

func (r *RodRenderer) Render(ctx context.Context, targetURL string, opts ports.RenderOptions) (ports.RenderResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return ports.RenderResult{}, apperr.Wrap(apperr.KindDependency, "open rod page", err)
	}
	defer page.Close()

	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page = page.Context(pageCtx)

	if len(opts.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(opts.Cookies))
		for _, c := range opts.Cookies {
			name, value, ok := cutCookie(c)
			if !ok {
				continue
			}
			params = append(params, &proto.NetworkCookieParam{Name: name, Value: value, URL: targetURL})
		}
		if err := page.SetCookies(params); err != nil {
			return ports.RenderResult{}, apperr.Wrap(apperr.KindInvalidRequest, "set rod cookies", err)
		}
	}

	if err := page.Navigate(targetURL); err != nil {
		return ports.RenderResult{}, apperr.Wrap(apperr.KindDependency, "navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return ports.RenderResult{}, apperr.Wrap(apperr.KindDependency, "wait load", err)
	}
	_ = page.WaitIdle(timeout)

	html, err := page.HTML()
	if err != nil {
		return ports.RenderResult{}, apperr.Wrap(apperr.KindDependency, "read html", err)
	}

	info, err := page.Info()
	finalURL := targetURL
	if err == nil && info != nil {
		finalURL = info.URL
	}

	return ports.RenderResult{FinalURL: finalURL, HTML: html}, nil
}
