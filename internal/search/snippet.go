package search

import (
	"strings"
	"unicode"

	"github.com/hyperjump/rankd/pkg/utils"
)

// Snippet returns at most maxLen runes of text around the first occurrence of
// query, or of any of its words, marking cut ends with "...". Text without a
// match is truncated from the start.
func Snippet(text, query string, maxLen int) string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	idx := -1
	q := utils.NormalizeQuery(query)
	for _, term := range append([]string{q}, strings.Fields(q)...) {
		if term == "" {
			continue
		}
		if idx = indexRunes(lower, []rune(term)); idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return utils.Truncate(text, maxLen)
	}

	start := max(idx-maxLen/4, 0)
	end := min(start+maxLen, len(runes))
	start = max(end-maxLen, 0)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
