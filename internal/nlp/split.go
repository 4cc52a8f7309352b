package nlp

import (
	"strings"
	"unicode/utf8"
)

// SplitLongMessage splits text into chunks of at most maxSize bytes,
// preferring natural boundaries: paragraph break, then line break, then
// sentence end, then word boundary. Chunks never cut a UTF-8 sequence.
func SplitLongMessage(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var result []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			result = append(result, remaining)
			break
		}

		safeMax := boundaryBefore(remaining, maxSize)
		chunkEnd := safeMax

		window := remaining[:chunkEnd]
		if pos := strings.LastIndex(window, "\n\n"); pos >= 0 {
			chunkEnd = pos + 2
		} else if pos := strings.LastIndexByte(window, '\n'); pos >= 0 {
			chunkEnd = pos + 1
		} else if pos := strings.LastIndexAny(window, ".!?"); pos >= 0 {
			chunkEnd = pos + 1
		} else if pos := strings.LastIndexByte(window, ' '); pos >= 0 {
			chunkEnd = pos + 1
		}
		// No natural break found: fall back to the character boundary.

		result = append(result, remaining[:chunkEnd])
		remaining = remaining[chunkEnd:]
	}

	return result
}

// boundaryBefore returns the largest rune boundary not exceeding max.
func boundaryBefore(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	for !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}
