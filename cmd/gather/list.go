// ABOUTME: List command dumping configured feeds and their metadata
// ABOUTME: Read-only; never marks the state modified or rewrites the file

package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List feeds and their metadata",
	Long:    "List every feed in the catalog with its title, link, period, and last update time.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(catalog.Feeds) == 0 {
			fmt.Println("No feeds in catalog. Add feed lines to the config file or use 'gather add <url>'.")
			return nil
		}

		urls := make([]string, 0, len(catalog.Feeds))
		for url := range catalog.Feeds {
			urls = append(urls, url)
		}
		sort.Strings(urls)

		faint := color.New(color.Faint).SprintFunc()
		for _, url := range urls {
			feed := catalog.Feeds[url]
			fmt.Println(url)
			if feed.Title != "" {
				fmt.Printf("  Title:  %s\n", feed.Title)
			}
			if feed.Link != "" {
				fmt.Printf("  Link:   %s\n", feed.Link)
			}
			fmt.Printf("  Period: %s\n", feed.Period)
			if feed.LastUpdate.IsZero() {
				fmt.Printf("  Last update: %s\n", faint("never"))
			} else {
				fmt.Printf("  Last update: %s\n", faint(feed.LastUpdate.Format("02 Jan 06 15:04 MST")))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
