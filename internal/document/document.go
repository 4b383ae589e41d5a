// Package document implements the canonical ExtractedDoc value type and
// its construction from raw extraction output: quality scoring, reading
// time, and link/media canonicalization (spec §3, §4.7).
package document

import (
	"math"
	"net/url"
	"strings"
)

// ScoreVersion is bumped whenever the quality-score formula changes, per
// spec §9's note that callers depending on bit-for-bit stability need a
// version bump rather than a silent formula tweak.
const ScoreVersion = 1

const wordsPerMinute = 225

// ExtractedDoc is the canonical output of an extraction (spec §3).
type ExtractedDoc struct {
	URL           string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	Byline        string   `json:"byline,omitempty"`
	Description   string   `json:"description,omitempty"`
	SiteName      string   `json:"site_name,omitempty"`
	Language      string   `json:"language,omitempty"`
	PublishedISO  string   `json:"published_iso,omitempty"`
	Text          string   `json:"text"`
	Markdown      string   `json:"markdown,omitempty"`
	Links         []string `json:"links,omitempty"`
	Media         []string `json:"media,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	ReadingTime   *int     `json:"reading_time,omitempty"`
	WordCount     *int     `json:"word_count,omitempty"`
	QualityScore  int      `json:"quality_score"`
}

// Raw is the unscored material an extractor produces; Build turns it into
// a canonical, invariant-satisfying ExtractedDoc.
type Raw struct {
	FinalURL     string
	Title        string
	Byline       string
	Description  string
	SiteName     string
	Language     string
	PublishedISO string
	Text         string
	RawLinks     []string // possibly relative, possibly duplicated
	RawMedia     []string
	Categories   []string
}

// Build canonicalizes Raw into an ExtractedDoc, computing reading time,
// word count, quality score, and resolving/deduplicating links and media
// against FinalURL.
func Build(r Raw) (ExtractedDoc, error) {
	base, err := url.Parse(r.FinalURL)
	if err != nil {
		return ExtractedDoc{}, err
	}

	doc := ExtractedDoc{
		URL:          r.FinalURL,
		Title:        strings.TrimSpace(r.Title),
		Byline:       strings.TrimSpace(r.Byline),
		Description:  strings.TrimSpace(r.Description),
		SiteName:     strings.TrimSpace(r.SiteName),
		Language:     r.Language,
		PublishedISO: r.PublishedISO,
		Text:         r.Text,
		Markdown:     ToMarkdown(r.Title, r.Text),
		Links:        canonicalizeURLs(base, r.RawLinks),
		Media:        canonicalizeURLs(base, r.RawMedia),
		Categories:   dedupePreserveOrder(r.Categories),
	}

	wc := wordCount(r.Text)
	if wc > 0 {
		doc.WordCount = &wc
		rt := readingTimeMinutes(wc)
		doc.ReadingTime = &rt
	}

	doc.QualityScore = QualityScore(doc)
	return doc, nil
}

// readingTimeMinutes implements spec §4.7: ceil(word_count/225), min 1.
func readingTimeMinutes(wordCount int) int {
	minutes := int(math.Ceil(float64(wordCount) / wordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// QualityScore implements the spec §4.7 formula verbatim.
func QualityScore(d ExtractedDoc) int {
	score := 30

	titleLen := len(d.Title)
	switch {
	case titleLen >= 10 && titleLen <= 100:
		score += 15
	case titleLen >= 5 && titleLen < 10:
		score += 8
	}

	contentLen := len(d.Text)
	switch {
	case contentLen >= 2000:
		score += 20
	case contentLen >= 1000:
		score += 15
	case contentLen >= 500:
		score += 10
	case contentLen >= 200:
		score += 5
	}

	if d.Byline != "" {
		score += 10
	}
	if d.PublishedISO != "" {
		score += 10
	}

	switch {
	case len(d.Media) > 3:
		score += 10
	case len(d.Media) > 0:
		score += 5
	}

	switch {
	case len(d.Links) > 5:
		score += 5
	case len(d.Links) > 0:
		score += 2
	}

	if score > 100 {
		score = 100
	}
	return score
}

// ToMarkdown renders a plaintext body as markdown: a title heading
// followed by paragraphs split on blank lines.
func ToMarkdown(title, text string) string {
	var b strings.Builder
	if t := strings.TrimSpace(title); t != "" {
		b.WriteString("# ")
		b.WriteString(t)
		b.WriteString("\n\n")
	}
	paragraphs := strings.Split(strings.TrimSpace(text), "\n\n")
	for i, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString(p)
		if i < len(paragraphs)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// canonicalizeURLs resolves relative URLs against base, drops
// fragment-only URLs, and deduplicates preserving first-occurrence order.
func canonicalizeURLs(base *url.URL, raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		ref, err := url.Parse(s)
		if err != nil {
			continue
		}
		if ref.Scheme == "" && ref.Host == "" && ref.Path == "" && ref.RawQuery == "" && ref.Fragment != "" {
			// fragment-only reference, e.g. "#section"
			continue
		}
		resolved := base.ResolveReference(ref)
		if !resolved.IsAbs() {
			continue
		}
		resolved.Fragment = ""
		absolute := resolved.String()
		if _, ok := seen[absolute]; ok {
			continue
		}
		seen[absolute] = struct{}{}
		out = append(out, absolute)
	}
	return out
}

func dedupePreserveOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
