package app

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/riptide-dev/riptide/internal/document"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func encodeDoc(doc document.ExtractedDoc) ([]byte, error) {
	return json.Marshal(doc)
}

func decodeDoc(raw []byte) (document.ExtractedDoc, error) {
	var doc document.ExtractedDoc
	err := json.Unmarshal(raw, &doc)
	return doc, err
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags is a last-resort plain-text fallback, used when
// router.ParseStructure yields no text for a fetched HTML page.
func stripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(text), " ")
}
