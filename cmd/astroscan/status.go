package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/astroscan/internal/journal"
	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/memory"
	"github.com/abelbrown/astroscan/internal/report"
	"github.com/abelbrown/astroscan/internal/store"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var events int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show memory, alerts and recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			files := memory.Files{Dir: cfg.DataDir}

			mem, err := files.LoadMemory(now)
			if err != nil {
				return err
			}
			alerts, err := files.LoadAlerts(now)
			if err != nil {
				return err
			}

			in := report.StatusInput{Memory: mem, Alerts: alerts, Now: now}

			// The ledger is optional: status works before the first scan.
			ledgerPath := filepath.Join(cfg.DataDir, LedgerFile)
			if _, err := os.Stat(ledgerPath); err == nil {
				ledger, err := store.Open(ledgerPath)
				if err != nil {
					logging.Warn("Failed to open ledger", "path", ledgerPath, "error", err)
				} else {
					defer ledger.Close()
					if in.Scans, err = ledger.RecentScans(5); err != nil {
						logging.Warn("Failed to read scans", "error", err)
					}
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				logging.Warn("Failed to stat ledger", "path", ledgerPath, "error", err)
			}

			if events > 0 {
				if in.Events, err = journal.Tail(journal.Path(cfg.DataDir), events); err != nil {
					logging.Warn("Failed to read journal", "error", err)
				}
			}
			return report.Status(cmd.OutOrStdout(), in)
		},
	}
	cmd.Flags().IntVar(&events, "events", 8, "number of journal events to show (0 hides them)")
	return cmd
}
