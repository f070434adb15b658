package server

import "strings"

// maxContentLength is the wish length cap, applied before escaping so the
// stored form may exceed it once entities are expanded.
const maxContentLength = 200

// DefaultWishContent stands in when the payer leaves the wish blank.
const DefaultWishContent = "may this merit reach all beings"

var contentEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeContent truncates a wish to 200 characters and escapes HTML
// metacharacters so the wall can render it verbatim.
func SanitizeContent(content string) string {
	content = strings.TrimSpace(content)

	runes := []rune(content)
	if len(runes) > maxContentLength {
		content = string(runes[:maxContentLength])
	}

	return contentEscaper.Replace(content)
}
