package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/app"
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Build or update the index for a directory",
	Long:  "Scans the tree once: new and changed files are indexed, vanished ones removed. Uses the daemon when it is running.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}

	var res socket.ReindexResult
	client := socket.NewClient(socket.SocketPath(cfg.Root))
	if client.Ping() {
		r, err := client.Reindex()
		if err != nil {
			return err
		}
		res = *r
	} else {
		logger, closer, err := newLogger(cfg, "")
		if err != nil {
			return err
		}
		defer closer.Close()
		a, err := app.New(app.Config{Settings: cfg, Logger: logger})
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer a.Stop()
		if res, err = a.Reindex(context.Background()); err != nil {
			return err
		}
	}

	fmt.Printf("⚡ indexed %s │ %d scanned │ %d updated │ %d unchanged │ %d removed │ %d skipped │ %dms\n",
		cfg.Root, res.Scanned, res.Upserted, res.Unchanged, res.Deleted, res.Skipped, res.ElapsedMs)
	return nil
}
