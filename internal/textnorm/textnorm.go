// Package textnorm чистит rich-text поставщика перед записью в базу.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize brings supplier text to NFC, drops control characters and
// collapses runs of whitespace into single spaces. Suppliers routinely ship
// zero-width junk and \r\n soup inside item names and descriptions.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r) || !unicode.IsGraphic(r):
			// дропаем, пробел из них не делаем
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}

	return b.String()
}
