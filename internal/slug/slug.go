// Package slug builds ASCII URL slugs for category and product names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxLength = 80

// Make lowercases s, strips accents and joins the remaining letter and digit
// runs with single hyphens. "Camisetas & Bonés" becomes "camisetas-bones".
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}

	out := b.String()
	if len(out) > maxLength {
		out = strings.TrimRight(out[:maxLength], "-")
	}
	return out
}
