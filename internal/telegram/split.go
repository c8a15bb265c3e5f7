package telegram

import (
	"fmt"
	"unicode/utf8"
)

// splitMessage cuts text into chunks of at most maxLen bytes, never cutting
// inside a multi-byte rune. When more than one chunk is produced, each
// carries an ordered " [i/total]" suffix; a single chunk is returned
// untouched.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + maxLen
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				// A single rune wider than maxLen; emit it whole rather than stall.
				_, size := utf8.DecodeRuneInString(text[start:])
				end = start + size
			}
		}
		chunks = append(chunks, text[start:end])
		start = end
	}

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("%s [%d/%d]", chunk, i+1, len(chunks)))
	}
	return parts
}
