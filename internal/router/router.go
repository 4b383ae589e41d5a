// Package router implements the adaptive render router (C2): mode
// classification, a static/dynamic/pdf fallback ladder, and the three
// concrete fetchers that back it, grounded on the teacher's
// internal/extractor dispatcher/webpage/pdf trio.
package router

import (
	"context"
	"strings"

	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/document"
	"github.com/riptide-dev/riptide/internal/logger"
	"github.com/riptide-dev/riptide/internal/ports"
)

// Mode is the extraction strategy chosen for a URL (spec §4.2).
type Mode string

const (
	ModeStatic   Mode = "static"
	ModeDynamic  Mode = "dynamic"
	ModePDF      Mode = "pdf"
	ModeAdaptive Mode = "adaptive"
)

// Request carries a single extraction request's inputs through the
// router.
type Request struct {
	URL     string
	Mode    Mode
	Cookies []string
	Stealth bool
}

// Result is what the router hands back to the document builder.
type Result struct {
	FinalURL    string
	HTML        string
	PDFBytes    []byte
	ContentType string
	UsedMode    Mode
	Fallbacks   []Mode // modes tried before UsedMode succeeded
}

// Router classifies a request and drives the static -> dynamic -> pdf
// fallback ladder spec §4.2 describes for ModeAdaptive.
type Router struct {
	static  ports.StaticFetcher
	dynamic ports.DynamicRenderer
	pdf     ports.PDFFetcher
}

func New(static ports.StaticFetcher, dynamic ports.DynamicRenderer, pdf ports.PDFFetcher) *Router {
	return &Router{static: static, dynamic: dynamic, pdf: pdf}
}

// Extract runs the request through the router, producing HTML/PDF bytes
// ready for the document builder.
func (r *Router) Extract(ctx context.Context, req Request) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeAdaptive
	}

	if looksLikePDF(req.URL) && mode != ModeDynamic {
		mode = ModePDF
	}

	switch mode {
	case ModeStatic:
		return r.extractStatic(ctx, req)
	case ModeDynamic:
		return r.extractDynamic(ctx, req)
	case ModePDF:
		return r.extractPDF(ctx, req)
	case ModeAdaptive:
		return r.extractAdaptive(ctx, req)
	default:
		return Result{}, apperr.InvalidRequest("unknown extraction mode %q", mode)
	}
}

// extractAdaptive tries static first, falls back to dynamic on a thin or
// failed static result, and falls back to pdf if the content sniffs as
// one — the ladder spec §4.2 names for ModeAdaptive.
func (r *Router) extractAdaptive(ctx context.Context, req Request) (Result, error) {
	var tried []Mode

	staticRes, staticErr := r.extractStatic(ctx, req)
	tried = append(tried, ModeStatic)
	if staticErr == nil && !thinContent(staticRes.HTML) {
		staticRes.Fallbacks = tried[:len(tried)-1]
		return staticRes, nil
	}

	if staticErr != nil {
		logger.Warn("router: static fetch failed, falling back to dynamic", "url", req.URL, "error", staticErr)
	}

	dynamicRes, dynamicErr := r.extractDynamic(ctx, req)
	tried = append(tried, ModeDynamic)
	if dynamicErr == nil {
		dynamicRes.Fallbacks = tried[:len(tried)-1]
		return dynamicRes, nil
	}
	logger.Warn("router: dynamic render failed, falling back to pdf", "url", req.URL, "error", dynamicErr)

	pdfRes, pdfErr := r.extractPDF(ctx, req)
	tried = append(tried, ModePDF)
	if pdfErr == nil {
		pdfRes.Fallbacks = tried[:len(tried)-1]
		return pdfRes, nil
	}

	if staticErr != nil {
		return Result{}, apperr.WrapPreserve("adaptive extraction exhausted static, dynamic, pdf", staticErr)
	}
	return Result{}, apperr.WrapPreserve("adaptive extraction exhausted static, dynamic, pdf", dynamicErr)
}

func (r *Router) extractStatic(ctx context.Context, req Request) (Result, error) {
	if r.static == nil {
		return Result{}, apperr.Dependency("static_fetcher", "not configured")
	}
	res, err := r.static.Fetch(ctx, req.URL, ports.FetchOptions{Cookies: req.Cookies, Stealth: req.Stealth})
	if err != nil {
		return Result{}, apperr.WrapPreserve("static fetch", err)
	}
	return Result{
		FinalURL:    res.FinalURL,
		HTML:        string(res.Body),
		ContentType: res.ContentType,
		UsedMode:    ModeStatic,
	}, nil
}

func (r *Router) extractDynamic(ctx context.Context, req Request) (Result, error) {
	if r.dynamic == nil {
		return Result{}, apperr.Dependency("dynamic_renderer", "not configured")
	}
	res, err := r.dynamic.Render(ctx, req.URL, ports.RenderOptions{Cookies: req.Cookies, Timeout: 0})
	if err != nil {
		return Result{}, apperr.WrapPreserve("dynamic render", err)
	}
	return Result{FinalURL: res.FinalURL, HTML: res.HTML, UsedMode: ModeDynamic}, nil
}

func (r *Router) extractPDF(ctx context.Context, req Request) (Result, error) {
	if r.pdf == nil {
		return Result{}, apperr.Dependency("pdf_fetcher", "not configured")
	}
	res, err := r.pdf.Fetch(ctx, req.URL)
	if err != nil {
		return Result{}, apperr.WrapPreserve("pdf fetch", err)
	}
	return Result{FinalURL: res.FinalURL, PDFBytes: res.Bytes, UsedMode: ModePDF}, nil
}

func looksLikePDF(url string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(url)), ".pdf")
}

// thinContent reports whether a static result is too sparse to trust,
// the signal that should trigger a dynamic-render fallback for a
// JS-rendered page that returned mostly boilerplate.
func thinContent(html string) bool {
	return len(strings.TrimSpace(html)) < 200
}

// BuildRaw assembles a document.Raw from a router Result's HTML, the seam
// the app layer uses before calling document.Build.
func BuildRaw(finalURL, title, text string, links, media []string) document.Raw {
	return document.Raw{
		FinalURL: finalURL,
		Title:    title,
		Text:     text,
		RawLinks: links,
		RawMedia: media,
	}
}
