package batch

import (
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// OutputName derives the deterministic output filename for a URL: the
// configured prefix and suffix are stripped first, then every remaining
// character outside [a-zA-Z0-9_-] becomes an underscore. The URL itself is
// case-sensitive, so two URLs differing only in case map to distinct names.
func OutputName(rawURL, stripPrefix, stripSuffix string) string {
	name := rawURL
	if stripPrefix != "" {
		name = strings.TrimPrefix(name, stripPrefix)
	}
	if stripSuffix != "" {
		name = strings.TrimSuffix(name, stripSuffix)
	}
	return unsafeNameChars.ReplaceAllString(name, "_")
}
