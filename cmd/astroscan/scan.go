package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abelbrown/astroscan/internal/brain"
	"github.com/abelbrown/astroscan/internal/config"
	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/coord"
	"github.com/abelbrown/astroscan/internal/fetch"
	"github.com/abelbrown/astroscan/internal/journal"
	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/memory"
	"github.com/abelbrown/astroscan/internal/report"
	"github.com/abelbrown/astroscan/internal/store"
)

// LedgerFile is the sqlite scan ledger inside the data directory.
const LedgerFile = "ledger.db"

func newScanCmd(flags *rootFlags) *cobra.Command {
	var full, analyzeOnly bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Collect records, analyze them and update memory and alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if full && analyzeOnly {
				return fmt.Errorf("--full and --analyze-only are mutually exclusive")
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, full, analyzeOnly, cmd)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "double the API call budget")
	cmd.Flags().BoolVar(&analyzeOnly, "analyze-only", false, "skip collection and re-analyze stored records")
	return cmd
}

func runScan(ctx context.Context, cfg *config.Config, full, analyzeOnly bool, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Logging.ToFile {
		if err := logging.InitFile(cfg.DataDir, logging.ParseLevel(cfg.Logging.Level)); err != nil {
			return err
		}
		defer logging.Close()
	}

	unlock, err := lockDataDir(cfg.DataDir)
	if err != nil {
		return err
	}
	defer unlock()

	ledger, err := store.Open(filepath.Join(cfg.DataDir, LedgerFile))
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	metricsFile := cfg.Analysis.MetricsFile
	if metricsFile == "" {
		metricsFile = filepath.Join(cfg.DataDir, "metrics", "astroscan.prom")
	}

	scanID := store.NewScanID()
	c := coord.New(memory.Files{Dir: cfg.DataDir}, ledger, collectorFactory(cfg), narrator(cfg), coord.Options{
		MaxAPICalls:      cfg.Collect.MaxAPICalls,
		MinCallInterval:  cfg.MinCallIntervalDuration(),
		NarrativeTimeout: cfg.NarrativeTimeoutDuration(),
		Full:             full,
		AnalyzeOnly:      analyzeOnly,
		MetricsFile:      metricsFile,
		ScanID:           scanID,
	})

	j, err := journal.Open(cfg.DataDir, scanID)
	if err != nil {
		logging.Warn("Journal unavailable", "error", err)
	} else {
		defer j.Close()
		c.WithJournal(j)
	}

	res, err := c.Run(ctx)
	if err != nil {
		return err
	}
	return report.Scan(cmd.OutOrStdout(), res)
}

// collectorFactory builds the enabled collectors over one shared retrying
// HTTP client.
func collectorFactory(cfg *config.Config) coord.CollectorFactory {
	client := fetch.NewClient(cfg.RequestTimeoutDuration(), fetch.WithMaxRetries(cfg.Collect.MaxRetries))
	return func(s fetch.Scorer) []fetch.Collector {
		var cols []fetch.Collector
		if cfg.SourceEnabled("news") {
			cols = append(cols, fetch.NewNewsCollector(client, cfg.Collect.NewsEndpoint, cfg.Collect.NewsQueries))
		}
		if cfg.SourceEnabled("jobs") {
			cols = append(cols, fetch.NewJobCollector(client, fetch.JobsConfig{
				USAJobsKey:    cfg.Collect.USAJobsKey,
				USAJobsEmail:  cfg.Collect.USAJobsEmail,
				RemotiveFeeds: cfg.Collect.RemotiveFeeds,
			}, s))
		}
		if cfg.SourceEnabled("propublica") {
			cols = append(cols, fetch.NewNonprofitCollector(client, "", s))
		}
		if cfg.SourceEnabled("fec") {
			cols = append(cols, fetch.NewCommitteeCollector(client, "", cfg.Collect.FECKey, s))
		}
		return cols
	}
}

// narrator returns the narrative generator, or nil when it is disabled or
// no provider has a key.
func narrator(cfg *config.Config) confidence.NarrativeGenerator {
	if !cfg.Analysis.Narrative {
		return nil
	}
	models := cfg.GetEnabledModels()
	if len(models) == 0 {
		logging.Info("No narrative provider configured, using fallback analysis",
			"hint", "set ANTHROPIC_API_KEY or OPENAI_API_KEY")
		return nil
	}
	pm := brain.NewProviderManager()
	for _, m := range models {
		switch m.Name {
		case "claude":
			p := brain.NewClaudeProvider(m.Settings.APIKey, m.Settings.Model)
			if m.Settings.Endpoint != "" {
				p = p.WithEndpoint(m.Settings.Endpoint)
			}
			pm.AddProvider(p)
		case "openai":
			pm.AddProvider(brain.NewOpenAIProvider(m.Settings.APIKey, m.Settings.Model, m.Settings.Endpoint))
		}
	}
	pm.SetPreferred(cfg.Models.Preferred)
	logging.Debug("Narrative providers", "available", pm.ListAvailable())
	return brain.NewNarrator(pm).WithMaxTokens(cfg.Analysis.NarrativeMaxTokens)
}
