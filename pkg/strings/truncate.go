package strings

import (
	"strings"
)

// DefaultValueMaxLen is the default maximum length for datapoint values in
// log output. Shared so every log site truncates the same way.
const DefaultValueMaxLen = 64

// MinTruncateLen is the smallest usable maxLen for TruncateValue. Anything
// shorter leaves no room for content plus "...".
const MinTruncateLen = 4

/// TruncateValue renders an arbitrary value for a single log line: newlines
// and whitespace runs collapse to single spaces, and anything longer than
// maxLen is cut to maxLen runes ending in "...". Rune-based slicing keeps
// multi-byte characters intact.
func TruncateValue(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
