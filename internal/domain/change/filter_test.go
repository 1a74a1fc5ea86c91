package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a.txt":               "txt",
		"README.MD":           "md",
		"/x/y/archive.tar.gz": "gz",
		".bashrc":             noExtension,
		"Makefile":            noExtension,
		"trailing.":           noExtension,
	}
	for name, want := range cases {
		assert.Equal(t, want, Extension(name), name)
	}
}

func TestExtensionFilter_Supported(t *testing.T) {
	f := NewExtensionFilter([]string{"txt", ".MD", " json "})

	assert.True(t, f.Supported("/r/a.txt"))
	assert.True(t, f.Supported("/r/notes.md"))
	assert.True(t, f.Supported("/r/DATA.JSON"))
	assert.False(t, f.Supported("/r/c.bin"))
	assert.False(t, f.Supported("/r/Makefile"))
	assert.False(t, f.AcceptsAll())
	assert.Equal(t, []string{"json", "md", "txt"}, f.Extensions())
}

func TestExtensionFilter_Wildcard(t *testing.T) {
	f := NewExtensionFilter([]string{"all"})
	assert.True(t, f.Supported("/r/c.bin"))
	assert.True(t, f.Supported("/r/Makefile"))
	assert.True(t, f.AcceptsAll())

	star := NewExtensionFilter([]string{"*", "txt"})
	assert.True(t, star.Supported("x.anything"))
	assert.Equal(t, []string{"all", "txt"}, star.Extensions())
}

func TestExtensionFilter_NilRejects(t *testing.T) {
	var f *ExtensionFilter
	assert.False(t, f.Supported("a.txt"))
}
