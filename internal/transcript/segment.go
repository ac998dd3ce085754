// Package transcript splits recognized speech into display lines.
package transcript

import "strings"

const maxWordsPerLine = 8

// Segment splits text into lines of at most eight words, breaking early after
// a word ending in terminal punctuation. It is a pure function of its input;
// callers re-segment the full transcript on every update.
func Segment(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := make([]string, 0, maxWordsPerLine)
	for _, word := range words {
		line = append(line, word)
		if len(line) >= maxWordsPerLine || endsSentence(word) {
			lines = append(lines, strings.Join(line, " "))
			line = line[:0]
		}
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}
	return lines
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}
