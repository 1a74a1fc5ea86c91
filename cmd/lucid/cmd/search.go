package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/app"
)

var (
	searchDir   string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long:  "Queries the daemon when it is running, otherwise the persisted index.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchDir, "dir", "d", "", "indexed directory (default: config root)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum hits")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	cfg, err := loadSettings(searchDir)
	if err != nil {
		return err
	}

	client := socket.NewClient(socket.SocketPath(cfg.Root))
	if client.Ping() {
		result, err := client.Search(query, searchLimit)
		if err != nil {
			return err
		}
		fmt.Print(formatSearchResult(result))
		return nil
	}

	paths := app.NewPaths(cfg.DataDir, cfg.Root)
	if !paths.HasIndex() {
		fmt.Printf("⚡ no index for %s (run `lucid index` first)\n", cfg.Root)
		return nil
	}
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

	result, err := a.Search(context.Background(), query, searchLimit)
	if err != nil {
		return err
	}
	fmt.Print(formatSearchResult(&result))
	return nil
}
