package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "cellwatch.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cw",
		Short: "Cellwatch: pallet routing for a flexible machining cell",
		Long:  "Cellwatch tracks material through a machining cell and tells the cell controller what each pallet should do next.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newMaterialCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newDecrementCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cw %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
