// ABOUTME: Write command rendering the article catalog to the output file
// ABOUTME: Atomically replaces the output document, reporting shown/duplicate counts

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/content"
	"github.com/harper/gather/internal/render"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Render the catalog to the output HTML file",
	Long: `Render the article catalog into the configured output file: sorted,
deduplicated for display, grouped into day and time sections, and
substituted into the page and item templates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer := render.New(cfg, content.NewSanitizer(), render.NewLoader())
		outputPath := resolvePath(cfg.OutputFile)

		stats, err := renderer.WriteFile(outputPath, catalog, time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d article(s) to %s", stats.Shown, outputPath)
		if stats.Duplicates > 0 {
			fmt.Printf(" (%d duplicate(s) hidden)", stats.Duplicates)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
}
