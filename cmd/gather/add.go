// ABOUTME: Add command discovering a feed from a page URL
// ABOUTME: Appends the discovered feed line to the config file

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/config"
	"github.com/harper/gather/internal/discover"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Discover a feed at a URL and add it to the config",
	Long: `Find an RSS/Atom feed starting from the given URL (a direct feed URL, a
page with alternate links, or a site root) and append a feed line for it
to the config file. The feed is picked up on the next update cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, _ := cmd.Flags().GetInt("period")
		if period <= 0 {
			return fmt.Errorf("period must be a positive number of minutes")
		}

		d := discover.New(cfg.Timeout, cfg.UserAgent)
		found, err := d.Discover(args[0])
		if err != nil {
			return err
		}

		for _, fc := range cfg.Feeds {
			if fc.URL == found.URL {
				return fmt.Errorf("feed already configured: %s", found.URL)
			}
		}

		if err := config.AppendFeed(configPath, period, found.URL); err != nil {
			return err
		}

		if found.Title != "" {
			fmt.Printf("Added %s (%s), period %dm\n", found.URL, found.Title, period)
		} else {
			fmt.Printf("Added %s, period %dm\n", found.URL, period)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().IntP("period", "p", 30, "polling period in minutes")
}
