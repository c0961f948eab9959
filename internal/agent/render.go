package agent

import (
	"html"
	"strings"
)

// RenderAnswer escapes text for display and turns newlines into line breaks.
func RenderAnswer(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br>")
}
