package shell

import (
	"strings"
	"unicode"
)

// StripBackground truncates the stage at its first background marker.
func StripBackground(stage string) string {
	if idx := strings.IndexRune(stage, BackgroundMarker); idx >= 0 {
		return strings.TrimSpace(stage[:idx])
	}
	return stage
}

// ExtractRedirect removes the first "<marker> path" clause from stage.
//
// The path is the run of non-whitespace following the marker, after any
// whitespace. The clause is replaced by a single space. found is false if the
// marker isn't in the stage, in which case cleaned is the stage unchanged.
// A marker with nothing after it yields found with an empty path.
func ExtractRedirect(stage string, marker rune) (cleaned, path string, found bool) {
	idx := strings.IndexRune(stage, marker)
	if idx < 0 {
		return stage, "", false
	}

	rest := stage[idx+len(string(marker)):]
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)

	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		end = len(rest)
	}

	path = rest[:end]
	cleaned = stage[:idx] + " " + rest[end:]
	return cleaned, path, true
}
