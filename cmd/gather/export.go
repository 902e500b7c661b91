// ABOUTME: Export command writing the configured feeds as OPML
// ABOUTME: Uses catalog titles where known, writing to stdout or a file

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/opml"
)

var exportCmd = &cobra.Command{
	Use:   "export [file.opml]",
	Short: "Export configured feeds as OPML",
	Long:  "Write the configured feeds as an OPML document, to stdout or to the named file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds := make([]opml.Feed, 0, len(cfg.Feeds))
		for _, fc := range cfg.Feeds {
			feed := opml.Feed{URL: fc.URL}
			if rec, ok := catalog.Feeds[fc.URL]; ok {
				feed.Title = rec.Title
			}
			feeds = append(feeds, feed)
		}

		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("cannot create %s: %w", args[0], err)
			}
			defer f.Close()
			return opml.Write(f, "gather feeds", feeds)
		}
		return opml.Write(os.Stdout, "gather feeds", feeds)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
