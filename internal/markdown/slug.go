// Package markdown parses markdown documents into heading-delimited sections.
package markdown

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultHashChars is the number of leading characters fingerprinted by ContentHash.
const DefaultHashChars = 200

// hashLength is the number of hex characters kept from the digest.
const hashLength = 16

var (
	slugStripPattern  = regexp.MustCompile(`[^\w\s-]`)
	slugSpacePattern  = regexp.MustCompile(`\s+`)
	slugHyphenPattern = regexp.MustCompile(`-+`)
)

// Slugify converts heading text into a URL-safe identifier.
// Input made only of punctuation yields an empty slug.
func Slugify(text string) string {
	slug := strings.TrimSpace(strings.ToLower(text))
	slug = slugStripPattern.ReplaceAllString(slug, "")
	slug = slugSpacePattern.ReplaceAllString(slug, "-")
	slug = slugHyphenPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ContentHash fingerprints the first maxChars characters of text.
// The result is always 16 hex characters. A non-positive maxChars uses DefaultHashChars.
func ContentHash(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultHashChars
	}
	// Invalid bytes count as one character each and are hashed as-is.
	end := 0
	for n := 0; n < maxChars && end < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	sum := sha256.Sum256([]byte(text[:end]))
	return hex.EncodeToString(sum[:])[:hashLength]
}
