// Package change turns raw filesystem notifications into typed change records.
// Everything here is pure: no I/O, no goroutines.
package change

import (
	"path/filepath"
	"sort"
	"strings"
)

// Wildcard accepts every file regardless of extension. It is never part of
// the defaults; configuration has to name it ("all" or "*").
const Wildcard = "all"

// DefaultExtensions is the indexable set used when configuration is silent.
var DefaultExtensions = []string{
	"txt", "py", "java", "md", "docx", "doc", "pptx",
	"js", "json", "html", "xml", "csv",
}

// noExtension is the extension reported for names without one.
const noExtension = "INVALID"

// ExtensionFilter decides whether a file name has an indexable extension.
// It is immutable after construction and safe for concurrent use.
type ExtensionFilter struct {
	exts map[string]bool
	all  bool
}

// NewExtensionFilter builds a filter from extensions given with or without a
// leading dot, in any case. "all" or "*" accepts everything.
func NewExtensionFilter(exts []string) *ExtensionFilter {
	f := &ExtensionFilter{exts: make(map[string]bool, len(exts))}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		if e == Wildcard || e == "*" {
			f.all = true
			continue
		}
		f.exts[e] = true
	}
	return f
}

// Extension returns the lowercased text after the last dot of the base name.
// Names with no dot, or whose only dot is the first character (".bashrc"),
// have no extension.
func Extension(name string) string {
	base := strings.ToLower(filepath.Base(name))
	idx := strings.LastIndex(base, ".")
	if idx <= 0 || idx == len(base)-1 {
		return noExtension
	}
	return base[idx+1:]
}

// Supported reports whether name may be indexed.
func (f *ExtensionFilter) Supported(name string) bool {
	if f == nil {
		return false
	}
	if f.all {
		return true
	}
	return f.exts[Extension(name)]
}

// AcceptsAll reports whether the wildcard was configured.
func (f *ExtensionFilter) AcceptsAll() bool {
	return f != nil && f.all
}

// Extensions returns the configured set, sorted, with the wildcard first.
func (f *ExtensionFilter) Extensions() []string {
	out := make([]string, 0, len(f.exts)+1)
	for e := range f.exts {
		out = append(out, e)
	}
	sort.Strings(out)
	if f.all {
		out = append([]string{Wildcard}, out...)
	}
	return out
}
