package domain

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText makes s storable in a Postgres TEXT column: invalid UTF-8 sequences and NUL
// bytes are dropped, then s is cut to at most max bytes on a rune boundary
func SanitizeText(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
