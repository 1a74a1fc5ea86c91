package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/app"
	"github.com/corey/lucid/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [dir]",
	Short: "Show configuration",
	Long:  "Shows the effective settings, index location, socket path and daemon status. No daemon required.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}
	paths := app.NewPaths(cfg.DataDir, cfg.Root)
	sockPath := socket.SocketPath(cfg.Root)

	daemonStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if socket.NewClient(sockPath).Ping() {
		daemonStatus = fmt.Sprintf("%s✓ running%s", colorGreen, colorReset)
	}
	indexPath := paths.DB
	if cfg.Engine == config.EngineBleve {
		indexPath = paths.Bleve
	}
	source := configPath
	if source == "" {
		source = config.DefaultPath()
	}

	fmt.Printf("%s⚡ lucid config%s\n", colorBold, colorReset)
	fmt.Printf("  File:       %s\n", source)
	fmt.Printf("  Root:       %s\n", cfg.Root)
	fmt.Printf("  Index ID:   %s\n", paths.ID)
	fmt.Printf("  Index:      %s (exists: %t)\n", indexPath, paths.HasIndex())
	fmt.Printf("  Socket:     %s\n", sockPath)
	fmt.Printf("  Daemon:     %s\n", daemonStatus)

	body, err := cfg.YAML()
	if err != nil {
		return err
	}
	fmt.Printf("\n%s%s%s", colorGray, body, colorReset)
	return nil
}
