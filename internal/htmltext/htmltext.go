// Package htmltext converts note HTML into the plain text fed to LaTeX and
// escapes text back into HTML.
package htmltext

import (
	"html"
	"regexp"
	"strings"
)

var (
	commentRe   = regexp.MustCompile(`(?s)<!--.*?-->`)
	styleRe     = regexp.MustCompile(`(?si)<style.*?>.*?</style>`)
	scriptRe    = regexp.MustCompile(`(?si)<script.*?>.*?</script>`)
	tagRe       = regexp.MustCompile(`(?s)<.*?>`)
	lineBreakRe = regexp.MustCompile(`(?i)<br( /)?>|<div>`)
)

// Strip removes comments, style and script blocks and all remaining tags,
// then decodes entities.
func Strip(s string) string {
	s = commentRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = scriptRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	return Unescape(s)
}

// Unescape decodes HTML entities. Non-breaking spaces become plain spaces.
func Unescape(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return html.UnescapeString(s)
}

// LatexSource turns the HTML between LaTeX markers into LaTeX source:
// line-break tags become newlines, everything else is stripped.
func LatexSource(s string) string {
	s = lineBreakRe.ReplaceAllString(s, "\n")
	return Strip(s)
}

// Escape escapes text for inclusion in HTML.
func Escape(s string) string {
	return html.EscapeString(s)
}
