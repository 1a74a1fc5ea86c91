// Package socket implements a JSON-over-Unix-socket protocol for the lucid daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
package socket

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// SocketPath returns the Unix socket path for a given watch root.
// Format: /tmp/lucid-{first12hex}.sock
func SocketPath(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	h := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("/tmp/lucid-%x.sock", h[:6])
}

// Method names for the protocol.
const (
	MethodSearch   = "search"
	MethodHealth   = "health"
	MethodFiles    = "files"
	MethodReindex  = "reindex"
	MethodShutdown = "shutdown"
)

// Request is the wire format for client-to-server messages. ID is a UUID
// chosen by the client and echoed in the response.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// SearchParams is the params for a search request.
type SearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResult is the result of a search request.
type SearchResult struct {
	Hits       []SearchHit `json:"hits"`
	Count      int         `json:"count"`
	Generation uint64      `json:"generation"`
	Cached     bool        `json:"cached,omitempty"`
	Elapsed    string      `json:"elapsed"`
}

// SearchHit is a single hit in search results (wire format).
type SearchHit struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview,omitempty"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status      string `json:"status"`
	Root        string `json:"root"`
	IndexID     string `json:"index_id"`
	Engine      string `json:"engine"`
	Documents   int    `json:"documents"`
	WatchedDirs int    `json:"watched_dirs"`
	Generation  uint64 `json:"generation"`
	Reopens     uint64 `json:"reopens"`
	Uptime      string `json:"uptime"`
	Updated     string `json:"updated,omitempty"` // last persisted write, memory engine only
}

// FilesParams is the params for a files request.
type FilesParams struct {
	Glob string `json:"glob,omitempty"` // doublestar glob against the root-relative path
	Name string `json:"name,omitempty"` // substring match on the base name
}

// FilesResult is the result of a files request.
type FilesResult struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// ReindexResult is the result of a reindex request.
type ReindexResult struct {
	Scanned   int   `json:"scanned"`
	Upserted  int   `json:"upserted"`
	Unchanged int   `json:"unchanged"`
	Deleted   int   `json:"deleted"`
	Skipped   int   `json:"skipped"`
	ElapsedMs int64 `json:"elapsed_ms"`
}
