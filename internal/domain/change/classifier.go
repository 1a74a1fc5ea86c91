package change

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corey/lucid/internal/ports"
)

// Op is the kind of a raw notification as delivered by the watch backend.
type Op int

const (
	OpCreate Op = iota + 1
	OpWrite
	OpRemove
	OpRename
	OpChmod
	OpOverflow
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	case OpOverflow:
		return "OVERFLOW"
	default:
		return "UNKNOWN"
	}
}

// RawEvent is one notification. IsDir is true when the path is a directory,
// or, for removals, was a registered directory.
type RawEvent struct {
	Op    Op
	Path  string
	IsDir bool
}

// Action is what the caller should do with a classified event.
type Action int

const (
	Ignore Action = iota
	Emit
	RegisterDir
	Rescan
)

// Decision is the outcome of Classify. Record is only meaningful for Emit.
type Decision struct {
	Action Action
	Record ports.ChangeRecord
	Reason string
}

// DefaultIgnore lists globs that are never indexed or watched.
var DefaultIgnore = []string{
	"**/.git", "**/.git/**",
	"**/node_modules", "**/node_modules/**",
	"**/.lucid", "**/.lucid/**",
	"**/.DS_Store",
	"**/*.swp", "**/*.swx", "**/*~",
}

// Classifier applies the classification rules in order. It is immutable
// after construction and safe for concurrent use.
type Classifier struct {
	filter *ExtensionFilter
	ignore []string
	root   string
	logger *slog.Logger
}

// ClassifierOptions configures a Classifier.
type ClassifierOptions struct {
	Root   string
	Filter *ExtensionFilter
	Ignore []string // doublestar globs matched against the slash path relative to Root
	Logger *slog.Logger
}

// NewClassifier creates a Classifier. A nil Filter uses DefaultExtensions.
func NewClassifier(opts ClassifierOptions) *Classifier {
	filter := opts.Filter
	if filter == nil {
		filter = NewExtensionFilter(DefaultExtensions)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	root := opts.Root
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Classifier{
		filter: filter,
		ignore: append([]string(nil), opts.Ignore...),
		root:   root,
		logger: logger,
	}
}

// Filter returns the extension filter in use.
func (c *Classifier) Filter() *ExtensionFilter {
	return c.filter
}

// Ignored reports whether path matches an ignore glob.
func (c *Classifier) Ignored(path string) bool {
	if len(c.ignore) == 0 {
		return false
	}
	rel := path
	if c.root != "" {
		if r, err := filepath.Rel(c.root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	if rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		// Patterns anchored with **/ also apply at the top level.
		if trimmed, found := strings.CutPrefix(pattern, "**/"); found {
			if ok, err := doublestar.Match(trimmed, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Classify turns a raw notification into a Decision.
func (c *Classifier) Classify(ev RawEvent) Decision {
	if ev.Op == OpOverflow {
		c.logger.Warn("event overflow, fine-grained events may be lost")
		return Decision{Action: Rescan, Reason: "overflow"}
	}
	if ev.Path == "" {
		return Decision{Action: Ignore, Reason: "empty path"}
	}
	path := filepath.Clean(ev.Path)
	if c.Ignored(path) {
		return Decision{Action: Ignore, Reason: "ignored path"}
	}

	switch ev.Op {
	case OpRemove, OpRename:
		if ev.IsDir {
			return Decision{Action: Ignore, Reason: "directory removal"}
		}
		return Decision{Action: Emit, Record: record(path, ports.Deleted)}
	case OpCreate:
		if ev.IsDir {
			return Decision{Action: RegisterDir}
		}
		if !c.filter.Supported(path) {
			return Decision{Action: Ignore, Reason: "unsupported extension " + Extension(path)}
		}
		return Decision{Action: Emit, Record: record(path, ports.Created)}
	case OpWrite:
		if ev.IsDir {
			return Decision{Action: Ignore, Reason: "directory write"}
		}
		if !c.filter.Supported(path) {
			return Decision{Action: Ignore, Reason: "unsupported extension " + Extension(path)}
		}
		return Decision{Action: Emit, Record: record(path, ports.Modified)}
	default:
		return Decision{Action: Ignore, Reason: "op " + ev.Op.String()}
	}
}

func record(path string, kind ports.EventKind) ports.ChangeRecord {
	return ports.ChangeRecord{
		FileName:     filepath.Base(path),
		AbsolutePath: path,
		Kind:         kind,
	}
}
