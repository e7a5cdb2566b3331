package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/embershare/ember/internal/version"
)

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ember %s\n", version.Version)
			fmt.Printf("  built:   %s\n", version.BuildTime)
			fmt.Printf("  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
