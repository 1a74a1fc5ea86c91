package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/app"
)

var watchQuery string

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and print changes as they are indexed",
	Long:  "Runs in the foreground. With --query, re-runs the query after every change and prints the matching files.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchQuery, "query", "q", "", "keyword query to re-run after every change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}
	if watchQuery != "" {
		cfg.WatchQuery = watchQuery
	}
	logger, closer, err := newLogger(cfg, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	queue := app.NewQueueObserver(256)
	a, err := app.New(app.Config{Settings: cfg, Logger: logger, Observer: queue})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(context.Background()); err != nil {
		a.Stop()
		return err
	}
	fmt.Printf("⚡ watching %s (%d documents)\n", a.Root, a.Sync.Len())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case ev := <-queue.Events():
			if ev.Change != nil {
				fmt.Println(formatChange(*ev.Change))
			} else {
				fmt.Print(formatWatchResults(ev.Query, ev.Hits))
			}
		case <-a.Done():
			fmt.Println("⚡ watched directory is gone")
			return a.Stop()
		case <-sigCh:
			fmt.Println("\n⚡ stopping...")
			return a.Stop()
		}
	}
}
