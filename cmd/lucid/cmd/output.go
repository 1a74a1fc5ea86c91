package cmd

import (
	"fmt"
	"strings"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// formatSearchResult renders hits one per block:
//
//	⚡ 2 hits │ gen 14 │ 310µs
//	  notes.md  /home/me/docs/notes.md  (1.42)
//	    ...the preview text around the first match...
func formatSearchResult(result *socket.SearchResult) string {
	var sb strings.Builder
	cached := ""
	if result.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(&sb, "%s⚡ %d hits%s │ gen %d │ %s%s\n",
		colorBold, result.Count, colorReset, result.Generation, result.Elapsed, cached)
	for _, hit := range result.Hits {
		fmt.Fprintf(&sb, "  %s%s%s  %s  (%.2f)\n", colorCyan, hit.Name, colorReset, hit.Path, hit.Score)
		if hit.Preview != "" {
			fmt.Fprintf(&sb, "    %s%s%s\n", colorGray, hit.Preview, colorReset)
		}
	}
	return sb.String()
}

// formatHealth renders a health result.
func formatHealth(h *socket.HealthResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ lucid daemon%s %s%s%s\n", colorBold, colorReset, colorGreen, h.Status, colorReset)
	fmt.Fprintf(&sb, "  Root:       %s\n", h.Root)
	fmt.Fprintf(&sb, "  Index:      %s (%s)\n", h.IndexID, h.Engine)
	fmt.Fprintf(&sb, "  Documents:  %d\n", h.Documents)
	fmt.Fprintf(&sb, "  Watching:   %d dirs\n", h.WatchedDirs)
	fmt.Fprintf(&sb, "  Generation: %d (%d reopens)\n", h.Generation, h.Reopens)
	fmt.Fprintf(&sb, "  Uptime:     %s\n", h.Uptime)
	if h.Updated != "" {
		fmt.Fprintf(&sb, "  Updated:    %s\n", h.Updated)
	}
	return sb.String()
}

// formatChange renders one change record for `lucid watch`.
func formatChange(rec ports.ChangeRecord) string {
	color := colorGreen
	switch rec.Kind {
	case ports.Modified:
		color = colorYellow
	case ports.Deleted:
		color = colorGray
	}
	return fmt.Sprintf("%s%-8s%s %s", color, rec.Kind, colorReset, rec.AbsolutePath)
}

// formatWatchResults renders a keyword-watch result list.
func formatWatchResults(query string, hits []ports.Hit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ %q: %d files%s\n", colorBold, query, len(hits), colorReset)
	for _, h := range hits {
		fmt.Fprintf(&sb, "  %s%s%s  %s\n", colorCyan, h.Name, colorReset, h.Path)
	}
	return sb.String()
}
