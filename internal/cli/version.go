package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// These variables are set at build time using -ldflags
// Example: go build -ldflags "-X github.com/panelopt/panelopt/internal/cli.Version=1.0.0"
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of panelopt",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "panelopt v%s\n", Version)
			fmt.Fprintf(out, "commit %s, built %s, %s\n", GitCommit, BuildTime, runtime.Version())
		},
	}
}
