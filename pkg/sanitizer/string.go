package sanitizer

import (
	"strings"
	"unicode"
)

const MaxNotesLength = 1000

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else if unicode.IsControl(r) {
			continue
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeNotes collapses whitespace and truncates to MaxNotesLength runes.
func NormalizeNotes(notes string) string {
	notes = TrimAndNormalize(notes)
	runes := []rune(notes)
	if len(runes) > MaxNotesLength {
		notes = strings.TrimSpace(string(runes[:MaxNotesLength]))
	}
	return notes
}

// NormalizeKey trims an opaque client-supplied key such as an
// Idempotency-Key header. Keys with inner whitespace are rejected.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return ""
	}
	return key
}
