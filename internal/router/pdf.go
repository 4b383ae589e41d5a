package router

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/dslipak/pdf"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/ports"
)

// pdfMagicHeader is the standard PDF file signature, used to reject
// content that merely has a .pdf-looking URL but isn't actually one.
const pdfMagicHeader = "%PDF-"

// PDFFetcher is a ports.PDFFetcher backed by dslipak/pdf, grounded on the
// teacher's PDFExtractor.Extract: download, magic-header sniff, size cap.
type PDFFetcher struct {
	httpClient  *http.Client
	maxBodySize int64
}

func NewPDFFetcher(httpClient *http.Client, maxBodySize int64) *PDFFetcher {
	return &PDFFetcher{httpClient: httpClient, maxBodySize: maxBodySize}
}

func (f *PDFFetcher) Fetch(ctx context.Context, targetURL string) (ports.PDFResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return ports.PDFResult{}, apperr.Wrap(apperr.KindInvalidRequest, "build pdf request", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ports.PDFResult{}, apperr.Wrap(apperr.KindDependency, "download pdf", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.PDFResult{}, apperr.Dependency("pdf_fetcher", "unexpected status "+resp.Status)
	}

	if f.maxBodySize > 0 && resp.ContentLength > f.maxBodySize {
		return ports.PDFResult{}, apperr.ResourceLimit("pdf_size")
	}

	limited := io.LimitReader(resp.Body, f.maxBodySize+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return ports.PDFResult{}, apperr.Wrap(apperr.KindDependency, "read pdf body", err)
	}
	if f.maxBodySize > 0 && int64(len(raw)) > f.maxBodySize {
		return ports.PDFResult{}, apperr.ResourceLimit("pdf_size")
	}

	if !bytes.HasPrefix(raw, []byte(pdfMagicHeader)) {
		return ports.PDFResult{}, apperr.InvalidRequest("content at %s is not a PDF", targetURL)
	}

	return ports.PDFResult{FinalURL: targetURL, Bytes: raw}, nil
}

// ExtractText turns downloaded PDF bytes into plain text, the post-fetch
// step the document builder calls after Fetch returns.
func ExtractText(raw []byte) (string, error) {
	r := bytes.NewReader(raw)
	pdfReader, err := pdf.NewReader(r, int64(len(raw)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "open pdf reader", err)
	}

	textReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "extract pdf text", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "read pdf text buffer", err)
	}
	return buf.String(), nil
}
