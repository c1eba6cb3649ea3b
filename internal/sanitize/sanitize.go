// Package sanitize strips markup from visitor-supplied text before it is
// stored.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element from s, dropping the content of script and
// style blocks, and trims the result.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(strict.Sanitize(s))
}
