package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/ports"
)

// userAgents rotates a small desktop UA pool, the teacher's useragent
// helper inlined since the retrieval pack didn't carry that package
// standalone.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
}

func randomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// CollyFetcher is a ports.StaticFetcher backed by gocolly/colly and
// PuerkitoBio/goquery, grounded on the teacher's WebpageExtractor.Extract.
type CollyFetcher struct {
	httpClient *http.Client
	fetchLimit int64
}

func NewCollyFetcher(httpClient *http.Client, fetchLimitBytes int64) *CollyFetcher {
	return &CollyFetcher{httpClient: httpClient, fetchLimit: fetchLimitBytes}
}

func (f *CollyFetcher) Fetch(_ context.Context, targetURL string, opts ports.FetchOptions) (ports.FetchResult, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = randomUserAgent()
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(ua),
	)

	client := *f.httpClient
	client.Timeout = 10 * time.Second
	c.SetClient(&client)

	if len(opts.Cookies) > 0 {
		if err := c.SetCookies(targetURL, cookiesToHTTP(opts.Cookies)); err != nil {
			return ports.FetchResult{}, apperr.Wrap(apperr.KindInvalidRequest, "invalid cookies for static fetch", err)
		}
	}

	var statusCode int
	var contentType string
	var bodyBuilder strings.Builder
	var collyErr error

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		contentType = r.Headers.Get("Content-Type")
	})

	c.OnHTML("script, style, noscript, iframe, nav, footer, header, aside, form, menu", func(h *colly.HTMLElement) {
		h.DOM.Remove()
	})

	c.OnHTML("html", func(h *colly.HTMLElement) {
		html, err := goquery.OuterHtml(h.DOM)
		if err == nil {
			bodyBuilder.WriteString(html)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		collyErr = fmt.Errorf("colly request failed: status_code=%d: %w", r.StatusCode, err)
	})

	if err := c.Visit(targetURL); err != nil {
		if collyErr != nil {
			return ports.FetchResult{}, apperr.Wrap(apperr.KindDependency, "static fetch", collyErr)
		}
		return ports.FetchResult{}, apperr.Wrap(apperr.KindDependency, "static fetch", err)
	}
	if collyErr != nil {
		return ports.FetchResult{}, apperr.Wrap(apperr.KindDependency, "static fetch", collyErr)
	}

	body := bodyBuilder.String()
	if f.fetchLimit > 0 && int64(len(body)) > f.fetchLimit {
		body = body[:f.fetchLimit]
	}

	return ports.FetchResult{
		FinalURL:    targetURL,
		Body:        []byte(body),
		ContentType: contentType,
		StatusCode:  statusCode,
	}, nil
}

func cookiesToHTTP(raw []string) []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		name, value, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: strings.TrimSpace(name), Value: value})
	}
	return cookies
}
