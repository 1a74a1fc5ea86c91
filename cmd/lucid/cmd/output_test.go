package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/ports"
)

func TestFormatSearchResult(t *testing.T) {
	out := formatSearchResult(&socket.SearchResult{
		Hits:       []socket.SearchHit{{Name: "a.txt", Path: "/r/a.txt", Score: 1.5, Preview: "hello world"}},
		Count:      1,
		Generation: 4,
		Cached:     true,
		Elapsed:    "12µs",
	})
	assert.Contains(t, out, "1 hits")
	assert.Contains(t, out, "gen 4")
	assert.Contains(t, out, "(cached)")
	assert.Contains(t, out, "/r/a.txt")
	assert.Contains(t, out, "(1.50)")
	assert.Contains(t, out, "hello world")
}

func TestFormatChange(t *testing.T) {
	out := formatChange(ports.ChangeRecord{FileName: "a.txt", AbsolutePath: "/r/a.txt", Kind: ports.Deleted})
	assert.Contains(t, out, "DELETED")
	assert.Contains(t, out, "/r/a.txt")
}

func TestFormatWatchResults(t *testing.T) {
	out := formatWatchResults("todo", []ports.Hit{{Name: "list.txt", Path: "/r/list.txt"}})
	assert.Contains(t, out, `"todo": 1 files`)
	assert.Contains(t, out, "list.txt")
}

func TestLoadSettings_DirOverridesRoot(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("engine: bleve\nlog_level: warn\n"), 0o644))

	configPath, logLevel = cfgFile, "debug"
	t.Cleanup(func() { configPath, logLevel = "", "" })

	cfg, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "bleve", cfg.Engine)
	assert.Equal(t, "debug", cfg.LogLevel, "--log-level beats the file")
}
