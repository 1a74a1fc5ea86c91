// Package index is the in-memory full-text engine. It implements
// ports.IndexStore with immutable, generation-tagged views: a commit builds a
// new view and publishes it atomically, so an open snapshot never changes
// underneath a query.
package index

import (
	"strings"
	"unicode"
)

// minTokenLen drops single-rune noise ("a", "I", "x").
const minTokenLen = 2

// Tokenize splits text into normalized search terms.
//
//  1. Split on any rune that is neither a letter nor a digit
//  2. CamelCase split; the joined word is kept as well ("getUser" gives
//     "get", "user" and "getuser")
//  3. Lowercase all
//  4. Discard tokens shorter than two runes
//
// Queries and content go through the same function so a query term always
// lines up with an indexed term.
func Tokenize(input string) []string {
	if len(input) == 0 {
		return nil
	}

	words := strings.FieldsFunc(input, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, word := range words {
		parts := splitCamelCase(word)
		for _, p := range parts {
			if tok := strings.ToLower(p); runeLen(tok) >= minTokenLen {
				tokens = append(tokens, tok)
			}
		}
		if len(parts) > 1 {
			if whole := strings.ToLower(word); runeLen(whole) >= minTokenLen {
				tokens = append(tokens, whole)
			}
		}
	}

	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// Terms returns the distinct tokens of input in first-seen order.
func Terms(input string) []string {
	toks := Tokenize(input)
	if len(toks) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(toks))
	out := toks[:0]
	for _, t := range toks {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// splitCamelCase splits a string on CamelCase boundaries.
// Examples:
//
//	"getUserToken"   -> ["get", "User", "Token"]
//	"APIKey"         -> ["API", "Key"]
//	"LOGIN"          -> ["LOGIN"]
//	"handler404Resp" -> ["handler", "404", "Resp"]
func splitCamelCase(s string) []string {
	if len(s) == 0 {
		return nil
	}

	runes := []rune(s)
	var parts []string
	start := 0

	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]

		split := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			split = true
		case unicode.IsLetter(prev) && unicode.IsDigit(cur):
			split = true
		case unicode.IsDigit(prev) && unicode.IsLetter(cur):
			split = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur):
			// "APIKey": split before 'K' only when a lowercase run follows
			if i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				split = true
			}
		}

		if split {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}

	parts = append(parts, string(runes[start:]))
	return parts
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
