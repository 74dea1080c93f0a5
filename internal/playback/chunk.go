package playback

import "unicode"

// chunkText splits text into pieces of at most max runes, preferring to break
// after sentence-ending punctuation and falling back to whitespace, then to a
// hard cut. Leading and trailing whitespace is trimmed from each piece; empty
// pieces are dropped.
func chunkText(text string, max int) []string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		if trimmed := trimSpace(runes); len(trimmed) > 0 {
			return []string{string(trimmed)}
		}
		return nil
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= max {
			if trimmed := trimSpace(runes); len(trimmed) > 0 {
				chunks = append(chunks, string(trimmed))
			}
			break
		}

		window := runes[:max]
		cut := lastSentenceEnd(window)
		if cut < 0 {
			cut = lastSpace(window)
		}
		if cut < 0 {
			cut = max - 1
		}

		if trimmed := trimSpace(runes[:cut+1]); len(trimmed) > 0 {
			chunks = append(chunks, string(trimmed))
		}
		runes = runes[cut+1:]
	}
	return chunks
}

func lastSentenceEnd(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

func trimSpace(runes []rune) []rune {
	start := 0
	for start < len(runes) && unicode.IsSpace(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return runes[start:end]
}
