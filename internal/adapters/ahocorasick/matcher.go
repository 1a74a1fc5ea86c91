// Package ahocorasick builds result previews. All query terms are compiled
// into one Aho-Corasick automaton (petar-dambovaliev/aho-corasick) so the
// first hit in a document is found in a single pass.
package ahocorasick

import (
	"strings"
	"unicode/utf8"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// DefaultPreviewChars is the preview length in runes.
const DefaultPreviewChars = 150

const ellipsis = "..."

// Matcher finds query terms in document content, ignoring ASCII case.
type Matcher struct {
	automaton aho.AhoCorasick
	terms     []string
	built     bool
}

// NewMatcher compiles terms. Empty terms are dropped.
func NewMatcher(terms []string) *Matcher {
	m := &Matcher{}
	for _, t := range terms {
		if t != "" {
			m.terms = append(m.terms, t)
		}
	}
	if len(m.terms) == 0 {
		return m
	}
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		AsciiCaseInsensitive: true,
		MatchKind:            aho.LeftMostLongestMatch,
		DFA:                  true,
	})
	m.automaton = builder.Build(m.terms)
	m.built = true
	return m
}

// First returns the byte span of the leftmost term occurrence.
func (m *Matcher) First(content string) (start, end int, ok bool) {
	if !m.built {
		return 0, 0, false
	}
	iter := m.automaton.Iter(content)
	next := iter.Next()
	if next == nil {
		return 0, 0, false
	}
	return next.Start(), next.End(), true
}

// Preview returns at most max runes of content around the first term
// occurrence, with "..." marking cut ends. Without an occurrence it returns
// the head of the document. Line breaks become spaces.
func (m *Matcher) Preview(content string, max int) string {
	if max <= 0 {
		max = DefaultPreviewChars
	}
	if utf8.RuneCountInString(content) <= max {
		return flatten(content)
	}

	from := 0
	if start, _, ok := m.First(content); ok {
		// keep about a third of the window before the match
		from = backRunes(content, start, max/3)
	}
	to := forwardRunes(content, from, max)

	var b strings.Builder
	b.Grow(to - from + 2*len(ellipsis))
	if from > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(flatten(content[from:to]))
	if to < len(content) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// backRunes steps n runes back from byte offset i.
func backRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// forwardRunes steps n runes forward from byte offset i.
func forwardRunes(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
}
