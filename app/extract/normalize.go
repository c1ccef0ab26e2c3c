package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC and collapses all whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// NormalizeBlock normalizes each line and joins non-empty lines as paragraphs.
func NormalizeBlock(s string) string {
	lines := strings.Split(norm.NFKC.String(s), "\n")

	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate cuts s to at most n runes. n <= 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
