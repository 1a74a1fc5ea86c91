package app

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// indexIDLen is the length of an index ID.
const indexIDLen = 20

// IndexID derives a stable directory-safe ID for a watch root: the first
// 20 characters of the base64url SHA-256 of the absolute root.
func IndexID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	h := sha256.Sum256([]byte(filepath.Clean(abs)))
	return base64.URLEncoding.EncodeToString(h[:])[:indexIDLen]
}

// Paths holds resolved filesystem locations for one watch root.
type Paths struct {
	DataDir string // <data_dir>/
	ID      string // IndexID(root)
	DB      string // <data_dir>/<id>.db (memory engine document log)
	Bleve   string // <data_dir>/<id>.bleve

	LogDir    string // <data_dir>/../log/
	DaemonLog string // <data_dir>/../log/<id>.log
}

// NewPaths resolves every path for root under dataDir.
func NewPaths(dataDir, root string) *Paths {
	id := IndexID(root)
	logDir := filepath.Join(filepath.Dir(dataDir), "log")
	return &Paths{
		DataDir:   dataDir,
		ID:        id,
		DB:        filepath.Join(dataDir, id+".db"),
		Bleve:     filepath.Join(dataDir, id+".bleve"),
		LogDir:    logDir,
		DaemonLog: filepath.Join(logDir, id+".log"),
	}
}

// EnsureDirs creates the data and log directories. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.DataDir, p.LogDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// HasIndex reports whether a persisted index exists for this root under
// either engine.
func (p *Paths) HasIndex() bool {
	if info, err := os.Stat(p.DB); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		return true
	}
	if info, err := os.Stat(p.Bleve); err == nil && info.IsDir() {
		return true
	}
	return false
}

// Clear deletes the persisted index files for this root. Missing files are
// not an error. The daemon for the root must not be running.
func (p *Paths) Clear() (bool, error) {
	removed := false
	for _, target := range []string{p.DB, p.Bleve} {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return removed, fmt.Errorf("remove %s: %w", target, err)
		}
		removed = true
	}
	return removed, nil
}
