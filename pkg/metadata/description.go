package metadata

import (
	"html"
	"regexp"
	"strings"
)

var (
	blockTagPattern = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|h[1-6]|blockquote)\s*>`)
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	spacePattern    = regexp.MustCompile(`[ \t\f\v]+`)
)

// cleanDescription turns the occasional HTML description into plain text with
// one paragraph per line.
func cleanDescription(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blockTagPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
