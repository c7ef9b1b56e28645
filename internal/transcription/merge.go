package transcription

import (
	"strings"
	"unicode"
)

// MergeOverlap returns the words of next that prev does not already end with.
// Consecutive windows share audio, so the head of one transcript usually
// repeats the tail of the previous one. Words compare case- and
// punctuation-insensitively; the longest matching overlap is removed.
func MergeOverlap(prev, next string) string {
	nextWords := strings.Fields(next)
	if len(nextWords) == 0 {
		return ""
	}
	prevWords := strings.Fields(prev)

	maxOverlap := min(len(prevWords), len(nextWords))
	for n := maxOverlap; n > 0; n-- {
		if wordsEqual(prevWords[len(prevWords)-n:], nextWords[:n]) {
			return strings.Join(nextWords[n:], " ")
		}
	}
	return strings.Join(nextWords, " ")
}

func wordsEqual(a, b []string) bool {
	for i := range a {
		if normalizeWord(a[i]) != normalizeWord(b[i]) {
			return false
		}
	}
	return true
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r)
	}))
}

// sameWords compares two transcripts the way MergeOverlap compares words.
func sameWords(a, b string) bool {
	aw, bw := strings.Fields(a), strings.Fields(b)
	return len(aw) == len(bw) && wordsEqual(aw, bw)
}
