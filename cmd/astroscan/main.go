// Command astroscan collects public records, scores them for astroturf
// signals, correlates them across sources and keeps a rolling memory and
// alert list in a data directory.
//
// Usage:
//
//	astroscan scan                 Collect, analyze and update memory
//	astroscan scan --full          Same, with double the API call budget
//	astroscan scan --analyze-only  Re-analyze what memory already holds
//	astroscan status               Show memory, alerts and recent scans
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abelbrown/astroscan/internal/config"
	"github.com/abelbrown/astroscan/internal/logging"
)

var errLocked = errors.New("another scan holds the data directory lock")

type rootFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "astroscan:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "astroscan",
		Short:         "Astroturf signal aggregation and correlation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default ~/.astroscan)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newScanCmd(flags), newStatusCmd(flags))
	return root
}

// loadConfig resolves the data directory and config file, loads .env keys
// from the data directory, and initializes stderr logging.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	dataDir := flags.dataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := config.LoadKeysFromFile(filepath.Join(dataDir, ".env")); err != nil {
		return nil, err
	}
	if err := config.LoadKeysFromFile(".env"); err != nil {
		return nil, err
	}

	path := flags.configPath
	if path == "" {
		path = config.ConfigPath(dataDir)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logging.Init(os.Stderr, logging.ParseLevel(cfg.Logging.Level))
	return cfg, nil
}
