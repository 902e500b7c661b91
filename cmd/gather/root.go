// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads config and acquires/releases the locked state file around commands

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harper/gather/internal/config"
	"github.com/harper/gather/internal/persist"
	"github.com/harper/gather/internal/state"
)

var (
	baseDir    string
	configPath string
	verbose    bool
	wait       bool

	cfg         *config.Config
	catalog     *state.State
	stateHandle *persist.Persisted[*state.State]
)

var rootCmd = &cobra.Command{
	Use:   "gather",
	Short: "Poll-based feed aggregator rendering a static HTML page",
	Long: `gather polls a set of independently-scheduled feeds, keeps the
observed articles in a durable catalog, and renders them into a single
ordered HTML page.

Feeds live in a line-oriented config file; state survives restarts in a
locked, atomically-rewritten state file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(home, ".gather")
		}
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", baseDir, err)
		}
		if configPath == "" {
			configPath = filepath.Join(baseDir, "config")
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		persister := persist.New(
			state.New,
			func(s *state.State) ([]byte, error) { return s.Encode() },
			state.Decode,
		)
		stateHandle = persister.Get(resolvePath(cfg.StateFile))
		catalog, err = stateHandle.Open(wait)
		if errors.Is(err, persist.ErrBusy) {
			return fmt.Errorf("another gather instance appears to be running (use --wait to wait for it)")
		}
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if stateHandle != nil {
			return stateHandle.Close()
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// resolvePath resolves a config-relative path against the base directory.
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&baseDir, "dir", "d", "", "state directory (default: ~/.gather)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: <dir>/config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&wait, "wait", "w", false, "wait for the state file lock instead of failing")
}
