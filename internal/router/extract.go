package router

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector lists the block-level elements that carry no article
// content, the same boilerplate goquery drops before the teacher's
// webpage.go hands text to the extractor.
const noiseSelector = "script, style, noscript, nav, footer, header, aside"

// ParsedHTML is the structural signal a goquery DOM walk pulls out of
// fetched HTML, the seam between the router's raw bytes and
// document.Build's title/byline/link/media scoring inputs.
type ParsedHTML struct {
	Title      string
	Byline     string
	Language   string
	Categories []string
	Links      []string
	Media      []string
	Text       string
}

// ParseStructure walks html with goquery to recover the DOM signal a plain
// regexp tag-stripper throws away: the title element, byline/author meta,
// declared language, link and media targets, and the boilerplate-stripped
// body text. A document that fails to parse as HTML degrades to an empty
// structure with Text left for the caller to fill from the raw bytes.
func ParseStructure(html string) ParsedHTML {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ParsedHTML{}
	}

	p := ParsedHTML{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Byline:   metaContent(doc, "author", "article:author"),
		Language: htmlLang(doc),
	}
	if p.Title == "" {
		p.Title = strings.TrimSpace(attrContent(doc, `meta[property="og:title"]`))
	}

	if kw := metaContent(doc, "keywords"); kw != "" {
		for _, c := range strings.Split(kw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Categories = append(p.Categories, c)
			}
		}
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if ok && href != "" && !strings.HasPrefix(href, "javascript:") {
			p.Links = append(p.Links, href)
		}
	})

	doc.Find("img[src], video[src], audio[src], source[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		src = strings.TrimSpace(src)
		if ok && src != "" {
			p.Media = append(p.Media, src)
		}
	})

	doc.Find(noiseSelector).Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	p.Text = strings.Join(strings.Fields(body.Text()), " ")

	return p
}

func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		if v := attrContent(doc, `meta[name="`+name+`"]`); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func attrContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return v
}

func htmlLang(doc *goquery.Document) string {
	lang, _ := doc.Find("html").First().Attr("lang")
	return strings.TrimSpace(lang)
}
