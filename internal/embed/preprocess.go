package embed

import (
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	// Keep Latin alphanumerics and Hangul (syllables + jamo); everything
	// else becomes a space so word boundaries survive.
	junkPattern = regexp.MustCompile(`[^a-z0-9가-힣ㄱ-ㅎㅏ-ㅣ\s]`)
	wsPattern   = regexp.MustCompile(`\s+`)
)

// Preprocess normalizes article text before embedding and keyword
// extraction: lowercase, strip markup and URLs, drop everything outside
// alphanumerics and Hangul, collapse whitespace. May return "" when the
// input carries no content-bearing characters.
func Preprocess(text string) string {
	text = strings.ToLower(text)
	text = tagPattern.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, "")
	text = junkPattern.ReplaceAllString(text, " ")
	text = wsPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// PreprocessAll maps Preprocess over texts, preserving order.
func PreprocessAll(texts []string) []string {
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = Preprocess(t)
	}
	return cleaned
}
