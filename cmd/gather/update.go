// ABOUTME: Update command running one scheduler cycle with colored progress output
// ABOUTME: An explicit URL argument forces that feed regardless of its period

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/fetch"
	"github.com/harper/gather/internal/update"
)

var updateCmd = &cobra.Command{
	Use:   "update [url]",
	Short: "Fetch due feeds and merge new articles",
	Long: `Run one update cycle: fetch every feed whose period has elapsed, merge
new articles into the catalog, and expire articles confirmed absent.

With a URL argument, fetch only that feed, regardless of its period and
ignoring its cache validators. Per-feed failures are reported but never
abort the cycle.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}

		fetcher := fetch.New(cfg.Timeout, cfg.UserAgent)
		results, err := update.Run(context.Background(), catalog, cfg, fetcher, target, time.Now())
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No feeds due")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		totalNew := 0
		totalErrors := 0
		for _, res := range results {
			fmt.Printf("Updating %s... ", res.Name)
			switch res.Kind {
			case fetch.Success:
				if res.NewCount > 0 {
					fmt.Printf("%s %d new\n", green("v"), res.NewCount)
					totalNew += res.NewCount
				} else {
					fmt.Printf("%s no new articles\n", green("v"))
				}
			case fetch.Unchanged:
				fmt.Printf("%s (not modified)\n", faint("-"))
			case fetch.Moved:
				fmt.Printf("%s moved permanently to %s; update the config file\n", yellow("!"), res.NewURL)
				totalErrors++
			case fetch.Gone:
				fmt.Printf("%s feed is gone; remove it from the config file\n", yellow("!"))
				totalErrors++
			case fetch.ClientOrServerError:
				fmt.Printf("%s server returned %d\n", red("x"), res.StatusCode)
				totalErrors++
			default:
				fmt.Printf("%s %v\n", red("x"), res.Err)
				totalErrors++
			}
		}

		fmt.Println()
		fmt.Printf("Summary: %d feed(s) attempted\n", len(results))
		if totalNew > 0 {
			fmt.Printf("  %s %d new articles\n", green("v"), totalNew)
		}
		if totalErrors > 0 {
			fmt.Printf("  %s %d problem(s)\n", red("x"), totalErrors)
		}

		// Per-feed failures are diagnostics, not a failed run.
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
