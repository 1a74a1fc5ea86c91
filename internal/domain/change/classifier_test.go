package change

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corey/lucid/internal/ports"
)

func newTestClassifier() *Classifier {
	return NewClassifier(ClassifierOptions{
		Root:   "/root/w",
		Filter: NewExtensionFilter([]string{"txt", "md"}),
		Ignore: DefaultIgnore,
	})
}

func TestClassify_Rules(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name   string
		ev     RawEvent
		action Action
		kind   ports.EventKind
	}{
		{"overflow asks for rescan", RawEvent{Op: OpOverflow}, Rescan, 0},
		{"dir removal ignored", RawEvent{Op: OpRemove, Path: "/root/w/sub", IsDir: true}, Ignore, 0},
		{"file removal emitted", RawEvent{Op: OpRemove, Path: "/root/w/a.txt"}, Emit, ports.Deleted},
		{"removal ignores extension", RawEvent{Op: OpRemove, Path: "/root/w/c.bin"}, Emit, ports.Deleted},
		{"rename away is a delete", RawEvent{Op: OpRename, Path: "/root/w/a.txt"}, Emit, ports.Deleted},
		{"dir create registers", RawEvent{Op: OpCreate, Path: "/root/w/sub", IsDir: true}, RegisterDir, 0},
		{"unsupported create ignored", RawEvent{Op: OpCreate, Path: "/root/w/c.bin"}, Ignore, 0},
		{"unsupported write ignored", RawEvent{Op: OpWrite, Path: "/root/w/c.bin"}, Ignore, 0},
		{"supported create", RawEvent{Op: OpCreate, Path: "/root/w/a.txt"}, Emit, ports.Created},
		{"supported write", RawEvent{Op: OpWrite, Path: "/root/w/sub/b.md"}, Emit, ports.Modified},
		{"dir write ignored", RawEvent{Op: OpWrite, Path: "/root/w/sub", IsDir: true}, Ignore, 0},
		{"chmod ignored", RawEvent{Op: OpChmod, Path: "/root/w/a.txt"}, Ignore, 0},
		{"git internals ignored", RawEvent{Op: OpCreate, Path: "/root/w/.git/HEAD.txt"}, Ignore, 0},
		{"swap file ignored", RawEvent{Op: OpWrite, Path: "/root/w/a.txt.swp"}, Ignore, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.ev)
			assert.Equal(t, tt.action, d.Action)
			if tt.action == Emit {
				assert.Equal(t, tt.kind, d.Record.Kind)
				assert.Equal(t, filepath.Clean(tt.ev.Path), d.Record.AbsolutePath)
				assert.Equal(t, filepath.Base(tt.ev.Path), d.Record.FileName)
			}
		})
	}
}

func TestClassify_RecordsAreValues(t *testing.T) {
	c := newTestClassifier()
	a := c.Classify(RawEvent{Op: OpCreate, Path: "/root/w/a.txt"})
	b := c.Classify(RawEvent{Op: OpCreate, Path: "/root/w//a.txt"})
	assert.Equal(t, a.Record, b.Record)
}

func TestIgnored(t *testing.T) {
	c := newTestClassifier()
	assert.True(t, c.Ignored("/root/w/.git"))
	assert.True(t, c.Ignored("/root/w/pkg/node_modules/x/y.js"))
	assert.False(t, c.Ignored("/root/w"))
	assert.False(t, c.Ignored("/root/w/docs/a.md"))
}
