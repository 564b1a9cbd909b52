package books

import (
	"strings"
)

// likeEscape is the ESCAPE character used with every LIKE built from user
// text.
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(
	likeEscape, likeEscape+likeEscape,
	"%", likeEscape+"%",
	"_", likeEscape+"_",
)

// containsPattern turns user text into a LIKE pattern matching it anywhere in
// a value, with LIKE wildcards in the text matched literally.
func containsPattern(text string) string {
	return "%" + likeReplacer.Replace(trim(text)) + "%"
}

// containsClause is a substring condition on column. SQLite's LIKE ignores
// ASCII case; other letters match exactly as typed.
func containsClause(column string) string {
	return column + " LIKE ? ESCAPE '" + likeEscape + "'"
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

// optional maps blank text to NULL.
func optional(s string) *string {
	s = trim(s)
	if s == "" {
		return nil
	}
	return &s
}
