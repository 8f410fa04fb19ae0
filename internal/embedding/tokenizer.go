package embedding

import (
	"strings"
	"unicode/utf8"
)

// minTokenLen is the shortest token that contributes to an embedding.
const minTokenLen = 2

// Tokens lowercases text, splits it on whitespace and drops tokens shorter than two characters.
func Tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// HashString returns a deterministic polynomial rolling hash (base 31) of s.
func HashString(s string) uint32 {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return h
}
