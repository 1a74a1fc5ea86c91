package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/app"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the lucid daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start [dir]",
	Short: "Start the daemon in the foreground",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop [dir]",
	Short: "Stop the daemon",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}
	sockPath := socket.SocketPath(cfg.Root)

	client := socket.NewClient(sockPath)
	if client.Ping() {
		fmt.Println("⚡ daemon already running")
		return nil
	}

	paths := app.NewPaths(cfg.DataDir, cfg.Root)
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, paths.DaemonLog)
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := app.New(app.Config{
		Settings: cfg,
		Logger:   logger,
		Observer: app.LogObserver{Logger: logger.With("component", "observer")},
		Serve:    true,
	})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(context.Background()); err != nil {
		a.Stop()
		return err
	}

	fmt.Printf("⚡ lucid daemon started at %s\n", sockPath)
	fmt.Printf("  log: %s\n", paths.DaemonLog)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-a.Server.ShutdownCh():
	case <-a.Done():
		fmt.Println("⚡ watched directory is gone")
	}

	fmt.Println("\n⚡ shutting down...")
	return a.Stop()
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}
	client := socket.NewClient(socket.SocketPath(cfg.Root))

	if !client.Ping() {
		fmt.Println("⚡ daemon is not running")
		return nil
	}
	if err := client.Shutdown(); err != nil {
		return err
	}
	fmt.Println("⚡ daemon stopped")
	return nil
}
