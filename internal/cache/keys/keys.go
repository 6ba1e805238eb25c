// Package keys builds the Redis keys used by the service caches.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	prefix = "terrai"
	// the readable part of a key is truncated; the hash keeps keys distinct
	maxLabelLen = 64
)

// Geostore returns the cache key for a geostore hash. Keys are safe to use
// unquoted in redis-cli and always end in the xxhash of the raw hash.
func Geostore(hash string) string {
	return build("geostore", hash)
}

func build(kind, id string) string {
	raw := strings.TrimSpace(id)
	label := sanitize(raw)
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	return fmt.Sprintf("%s:%s:%s:h=%016x", prefix, kind, label, xxhash.Sum64String(raw))
}

// collapses runs of replaced characters into a single '-'
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		if !isAlphaNum(r) && r != '_' && r != '-' {
			out = '-'
		}
		if out == '-' && prev == '-' {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
