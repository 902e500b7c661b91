// ABOUTME: Import command appending feeds from an OPML file to the config
// ABOUTME: Skips URLs that are already configured

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/config"
	"github.com/harper/gather/internal/opml"
)

var importCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Import feeds from an OPML file",
	Long:  "Append a feed line to the config for every subscription in the OPML file that is not already configured.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, _ := cmd.Flags().GetInt("period")
		if period <= 0 {
			return fmt.Errorf("period must be a positive number of minutes")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("cannot open OPML file: %w", err)
		}
		defer f.Close()

		feeds, err := opml.Parse(f)
		if err != nil {
			return err
		}

		configured := make(map[string]bool, len(cfg.Feeds))
		for _, fc := range cfg.Feeds {
			configured[fc.URL] = true
		}

		added := 0
		skipped := 0
		for _, feed := range feeds {
			if configured[feed.URL] {
				skipped++
				continue
			}
			if err := config.AppendFeed(configPath, period, feed.URL); err != nil {
				return err
			}
			configured[feed.URL] = true
			added++
		}

		fmt.Printf("Imported %d feed(s)", added)
		if skipped > 0 {
			fmt.Printf(", skipped %d already configured", skipped)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().IntP("period", "p", 30, "polling period in minutes for imported feeds")
}
