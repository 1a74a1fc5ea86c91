package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
	"github.com/corey/lucid/internal/app"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Delete the persisted index for a directory",
	Long:  "Deletes the index files for the root. The daemon for the root must be stopped first.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "Skip confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(dirArg(args))
	if err != nil {
		return err
	}
	if socket.NewClient(socket.SocketPath(cfg.Root)).Ping() {
		return fmt.Errorf("daemon is running for %s; run `lucid daemon stop` first", cfg.Root)
	}

	if !clearForce {
		fmt.Printf("⚠ This will delete the index for %s. Continue? [y/N] ", cfg.Root)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("cancelled")
			return nil
		}
	}

	removed, err := app.NewPaths(cfg.DataDir, cfg.Root).Clear()
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("⚡ no index to clear")
		return nil
	}
	fmt.Println("⚡ index cleared")
	return nil
}
