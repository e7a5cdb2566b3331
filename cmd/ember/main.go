// Ember - self-destructing encrypted file sharing service
package main

import (
	"os"

	"github.com/embershare/ember/internal/cli"
	"github.com/embershare/ember/internal/version"
)

// Version information
var (
	Version   = "v0.1.0"
	BuildTime = "unknown"
)

func main() {
	// Set version in version package (canonical source for all packages)
	// and CLI package (for the command banner)
	version.Version = Version
	version.BuildTime = BuildTime
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
