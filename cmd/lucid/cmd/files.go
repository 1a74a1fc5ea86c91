package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/adapters/socket"
)

var (
	filesName string
	filesDir  string
)

var filesCmd = &cobra.Command{
	Use:   "files [glob]",
	Short: "List indexed files",
	Long:  "Lists the files the daemon has indexed. The optional glob (doublestar syntax) matches the path relative to the root.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFiles,
}

func init() {
	filesCmd.Flags().StringVar(&filesName, "name", "", "substring of the file name")
	filesCmd.Flags().StringVarP(&filesDir, "dir", "d", "", "indexed directory (default: config root)")
}

func runFiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(filesDir)
	if err != nil {
		return err
	}
	client := socket.NewClient(socket.SocketPath(cfg.Root))
	if !client.Ping() {
		fmt.Println("⚡ lucid daemon is not running")
		return nil
	}

	result, err := client.Files(dirArg(args), filesName)
	if err != nil {
		return err
	}
	fmt.Printf("%s⚡ %d files%s\n", colorBold, result.Count, colorReset)
	for _, f := range result.Files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}
