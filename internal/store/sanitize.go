package store

import "strings"

// prohibitedPathChars are stripped from display names before they become
// path components. The set mirrors what upstream vault names commonly
// contain but filesystems (or tools on them) choke on; '/' also keeps a
// name from spilling into extra path levels.
const prohibitedPathChars = `/\?%*:|"<>.`

// SanitizeName strips path-hostile characters and surrounding whitespace
// from a display name. The result may be empty.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == 0 || strings.ContainsRune(prohibitedPathChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// shortID returns the leading segment of a backend id, enough to
// disambiguate colliding names while staying readable.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
