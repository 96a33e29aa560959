// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package claim normalizes health claims into cache keys and decides
// whether a claim is specific enough to search for evidence.
package claim

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a claim into its canonical cache-key form: compatibility
// decomposition with non-ASCII runes dropped, lowercase, punctuation other
// than hyphens removed, underscores treated as spaces, whitespace collapsed
// and trimmed.
// Normalize is idempotent.
func Normalize(raw string) string {
	decomposed := norm.NFKD.String(raw)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '_':
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
