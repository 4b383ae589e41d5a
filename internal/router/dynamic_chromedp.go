package router

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/ports"
)

// ChromedpRenderer is the secondary ports.DynamicRenderer backend,
// selectable via configuration when the rod backend is unavailable;
// the teacher imports chromedp but its JS extractor wiring was
// dead code, so this revives the dependency as a real fallback path
// instead of dropping it.
type ChromedpRenderer struct {
	allocatorCtx   context.Context
	defaultTimeout time.Duration
}

func NewChromedpRenderer(allocatorCtx context.Context, defaultTimeout time.Duration) *ChromedpRenderer {
	return &ChromedpRenderer{allocatorCtx: allocatorCtx, defaultTimeout: defaultTimeout}
}

func (c *ChromedpRenderer) Name() string { return "chromedp" }

func (c *ChromedpRenderer) HealthCheck(ctx context.Context) error {
	taskCtx, cancel := chromedp.NewContext(c.allocatorCtx)
	defer cancel()

	runCtx, runCancel := context.WithTimeout(ctx, 2*time.Second)
	defer runCancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate("about:blank")); err != nil {
		return apperr.Wrap(apperr.KindDependency, "chromedp health check", err)
	}
	_ = taskCtx
	return nil
}

func (c *ChromedpRenderer) Render(ctx context.Context, targetURL string, opts ports.RenderOptions) (ports.RenderResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	taskCtx, cancel := chromedp.NewContext(c.allocatorCtx)
	defer cancel()

	runCtx, runCancel := context.WithTimeout(taskCtx, timeout)
	defer runCancel()

	var html string
	actions := []chromedp.Action{}
	for _, cookie := range opts.Cookies {
		name, value, ok := cutCookie(cookie)
		if !ok {
			continue
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return setChromedpCookie(ctx, targetURL, name, value)
		}))
	}
	actions = append(actions,
		chromedp.Navigate(targetURL),
		chromedp.OuterHTML("html", &html),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return ports.RenderResult{}, apperr.Wrap(apperr.KindDependency, "chromedp render", err)
	}

	return ports.RenderResult{FinalURL: targetURL, HTML: html}, nil
}

func cutCookie(raw string) (name, value string, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '=' {
			return raw[:i], raw[i+1:], true
		}
	}
	return "", "", false
}

func setChromedpCookie(ctx context.Context, targetURL, name, value string) error {
	return network.SetCookie(name, value).WithURL(targetURL).Do(ctx)
}
