package lexical

import (
	"strings"
	"unicode"

	"github.com/xxxsen/docsearch/internal/model"
)

const (
	FieldTitle    = "title"
	FieldAbstract = "abstract"

	titleContext    = 30
	abstractContext = 50
	ellipsis        = "..."
)

func contextWindow(field string) int {
	if field == FieldAbstract {
		return abstractContext
	}
	return titleContext
}

func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// Highlight returns the context window around the first query term (in query
// order) found in text. ok is false when no term occurs.
func Highlight(field, text, query string) (model.Highlight, bool) {
	if text == "" {
		return model.Highlight{}, false
	}
	original := []rune(text)
	lowered := lowerRunes(text)
	window := contextWindow(field)
	for _, term := range strings.Fields(query) {
		needle := lowerRunes(term)
		idx := indexRunes(lowered, needle)
		if idx < 0 {
			continue
		}
		start := idx - window
		if start < 0 {
			start = 0
		}
		end := idx + len(needle) + window
		if end > len(original) {
			end = len(original)
		}
		snippet := string(original[start:end])
		if start > 0 {
			snippet = ellipsis + snippet
		}
		if end < len(original) {
			snippet += ellipsis
		}
		return model.Highlight{Field: field, Text: snippet}, true
	}
	return model.Highlight{}, false
}

// Highlights collects at most one highlight per field, title first.
func Highlights(doc *model.Document, query string) []model.Highlight {
	out := make([]model.Highlight, 0, 2)
	if h, ok := Highlight(FieldTitle, doc.Title, query); ok {
		out = append(out, h)
	}
	if h, ok := Highlight(FieldAbstract, doc.Abstract, query); ok {
		out = append(out, h)
	}
	return out
}
