package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X ...cmd.BuildCommit=..."
var (
	Version     = "0.1.0"
	BuildCommit = "dev"
	BuildDate   = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "decision-core v%s\n", Version)
			fmt.Fprintf(out, "Build: %s (%s)\n", BuildCommit, BuildDate)
			fmt.Fprintf(out, "Go: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
