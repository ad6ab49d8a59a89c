package storage

import (
	"strings"
	"unicode/utf8"
)

// maxExcerpt bounds the stored text excerpt.
const maxExcerpt = 64 * 1024

// TextIndexer is the default indexer: it keeps an excerpt of textual
// content and returns "" for anything it does not recognize.
func TextIndexer(data []byte, filename, declaredMime string) (string, error) {
	if !isTextual(declaredMime) || !utf8.Valid(data) {
		return "", nil
	}
	text := string(data)
	if len(text) > maxExcerpt {
		text = text[:maxExcerpt]
		// Avoid cutting a rune in half.
		for len(text) > 0 && !utf8.ValidString(text) {
			text = text[:len(text)-1]
		}
	}
	return text, nil
}

func isTextual(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch {
	case strings.Contains(mime, "json"),
		strings.Contains(mime, "xml"),
		strings.Contains(mime, "csv"),
		strings.Contains(mime, "javascript"):
		return true
	}
	return false
}
