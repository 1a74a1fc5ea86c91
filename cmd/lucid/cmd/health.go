package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
)

var healthCmd = &cobra.Command{
	Use:   "health [dir]",
	Short: "Check daemon status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}
	client := socket.NewClient(socket.SocketPath(cfg.Root))

	if !client.Ping() {
		fmt.Println("⚡ lucid daemon is not running")
		return nil
	}
	health, err := client.Health()
	if err != nil {
		return err
	}
	fmt.Print(formatHealth(health))
	return nil
}
