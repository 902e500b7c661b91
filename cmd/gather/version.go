// ABOUTME: Version command for gather CLI
// ABOUTME: Displays version, commit, and build date information

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/config"
)

// Build information set via ldflags at build time
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit hash, and build date of gather.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gather %s\n", config.Version)
		fmt.Printf("  commit:  %s\n", Commit)
		fmt.Printf("  built:   %s\n", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
