// Package coord runs one scan: load state, collect, analyze, curate, save.
package coord

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/correlation"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/fetch"
	"github.com/abelbrown/astroscan/internal/journal"
	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/memory"
	"github.com/abelbrown/astroscan/internal/metrics"
	"github.com/abelbrown/astroscan/internal/pattern"
	"github.com/abelbrown/astroscan/internal/record"
	"github.com/abelbrown/astroscan/internal/scoring"
	"github.com/abelbrown/astroscan/internal/store"
)

// maxConcurrentCollectors limits parallel collectors.
const maxConcurrentCollectors = 4

// collectTimeout bounds a single collector when Options leaves it unset.
const collectTimeout = 2 * time.Minute

// Options tunes one scan.
type Options struct {
	MaxAPICalls      int           // split evenly across collectors
	MinCallInterval  time.Duration // spacing between calls of one collector
	CollectTimeout   time.Duration
	NarrativeTimeout time.Duration
	Full             bool // doubles MaxAPICalls
	AnalyzeOnly      bool // skip collection, re-analyze what memory holds
	MetricsFile      string
	ScanID           string // generated when empty
}

// CollectorFactory builds the collectors for a scan. Collectors score with
// the scan's scorer so they can filter and rank before returning.
type CollectorFactory func(scorer fetch.Scorer) []fetch.Collector

// Coordinator owns the dependencies of a scan. It holds no scan state
// between runs; everything flows through Run.
type Coordinator struct {
	files      memory.Files
	ledger     *store.Store
	collectors CollectorFactory
	narrator   confidence.NarrativeGenerator
	lifecycle  *curation.Lifecycle
	journal    *journal.Journal
	opts       Options
	now        func() time.Time
}

// New creates a Coordinator. ledger, narrator and collectors may be nil.
func New(files memory.Files, ledger *store.Store, collectors CollectorFactory, narrator confidence.NarrativeGenerator, opts Options) *Coordinator {
	if opts.MaxAPICalls <= 0 {
		opts.MaxAPICalls = 50
	}
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = collectTimeout
	}
	return &Coordinator{
		files:      files,
		ledger:     ledger,
		collectors: collectors,
		narrator:   narrator,
		lifecycle:  curation.NewLifecycle(),
		journal:    journal.Discard(),
		opts:       opts,
		now:        time.Now,
	}
}

// WithJournal routes stage events to j.
func (c *Coordinator) WithJournal(j *journal.Journal) *Coordinator {
	if j != nil {
		c.journal = j
	}
	return c
}

// Result summarizes a finished scan.
type Result struct {
	ScanID       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Collectors   []fetch.Result
	Batch        record.CollectedBatch
	Anomalies    []pattern.Anomaly
	Correlations []correlation.Correlation
	Assessment   confidence.Assessment
	Outcome      curation.Outcome
	Memory       memory.Document
	Alerts       curation.Document
}

// CollectorErrors counts collectors that failed outright.
func (r Result) CollectorErrors() int {
	n := 0
	for _, cr := range r.Collectors {
		if cr.Failed() {
			n++
		}
	}
	return n
}

// Run executes one scan. Collector and narrative failures are absorbed;
// only failures to read or write the state files are returned.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	start := c.now().UTC()
	res := Result{ScanID: c.opts.ScanID, StartedAt: start}
	if res.ScanID == "" {
		res.ScanID = store.NewScanID()
	}
	m := metrics.New()
	c.journal.Emit(journal.Event{Level: journal.LevelInfo, Kind: journal.KindScanStart, Msg: c.mode()})
	logging.Info("Scan starting", "scan_id", res.ScanID, "mode", c.mode())

	mem, err := c.files.LoadMemory(start)
	if err != nil {
		return res, fmt.Errorf("load memory: %w", err)
	}
	alerts, err := c.files.LoadAlerts(start)
	if err != nil {
		return res, fmt.Errorf("load alerts: %w", err)
	}

	scorer := scoring.New(scoring.Context{Now: start, ShellJurisdictions: mem.KnownPatterns.ShellJurisdictions})

	stage := time.Now()
	var batch record.CollectedBatch
	if c.opts.AnalyzeOnly {
		batch = batchFromMemory(mem)
		c.journal.Info(journal.KindCollectSkipped, "", "analyze-only")
	} else {
		res.Collectors = c.collect(ctx, scorer)
		for _, cr := range res.Collectors {
			batch = batch.Append(cr.Batch)
			m.CollectorCalls.WithLabelValues(cr.Source).Add(float64(cr.Calls))
			if cr.Failed() {
				m.CollectorErrors.WithLabelValues(cr.Source).Inc()
			}
		}
	}
	m.ObserveStage("collect", stage)

	stage = time.Now()
	batch = scorer.Apply(batch)
	res.Batch = batch
	for k, n := range batch.Counts() {
		m.Records.WithLabelValues(string(k)).Set(float64(n))
	}

	var summary pattern.Summary
	var g errgroup.Group
	g.Go(func() error {
		summary = pattern.NewDetector(mem.JobPostingPatterns, pattern.Options{Now: start}).Detect(batch)
		return nil
	})
	g.Go(func() error {
		res.Correlations = correlation.New().Correlate(batch, start)
		return nil
	})
	_ = g.Wait()
	res.Anomalies = pattern.Synthesize(summary)
	m.ObserveStage("analyze", stage)
	m.Correlations.Set(float64(len(res.Correlations)))
	for _, sev := range []pattern.Severity{pattern.SeverityLow, pattern.SeverityMedium, pattern.SeverityHigh} {
		m.Anomalies.WithLabelValues(string(sev)).Set(float64(countSeverity(res.Anomalies, sev)))
	}
	c.journal.Emit(journal.Event{
		Level: journal.LevelInfo,
		Kind:  journal.KindDetectComplete,
		Count: len(res.Anomalies),
		Dur:   time.Since(stage),
		Extra: map[string]any{"correlations": len(res.Correlations), "records": batch.Len()},
	})

	stage = time.Now()
	est := confidence.NewEstimator(c.narrator, c.opts.NarrativeTimeout)
	res.Assessment = est.Estimate(ctx, confidence.Input{
		Batch:           batch,
		Patterns:        summary,
		Anomalies:       res.Anomalies,
		Correlations:    res.Correlations,
		PriorConfidence: mem.SystemConfidence,
	})
	m.ObserveStage("assess", stage)
	m.Narrative.WithLabelValues(string(res.Assessment.Source)).Inc()
	m.Confidence.Set(float64(res.Assessment.Confidence))
	kind := journal.KindNarrative
	if res.Assessment.Source == confidence.SourceFallback {
		kind = journal.KindFallback
	}
	c.journal.Emit(journal.Event{Level: journal.LevelInfo, Kind: kind, Count: res.Assessment.Confidence, Dur: time.Since(stage)})

	now := c.now().UTC()
	merged := memory.Merge(mem, memory.Update{
		Batch:        batch,
		Patterns:     summary,
		Assessment:   res.Assessment,
		Correlations: len(res.Correlations),
		Anomalies:    len(res.Anomalies),
		Now:          now,
	})
	if c.opts.AnalyzeOnly {
		// Nothing was collected, so the scan bookkeeping and the job
		// baseline stay as they were.
		merged.LastScan = mem.LastScan
		merged.TotalScans = mem.TotalScans
		merged.JobPostingPatterns = mem.JobPostingPatterns
	}

	res.Alerts, res.Outcome = c.lifecycle.PromoteAndExpire(alerts, res.Assessment.Alerts, now)
	res.Memory = memory.RecomputeStats(merged, res.Alerts)
	m.AlertsCreated.Add(float64(res.Outcome.Created))
	m.AlertsEvicted.Add(float64(len(res.Outcome.Evicted)))
	m.AlertsActive.Set(float64(len(res.Alerts.Alerts)))
	m.AlertsArchived.Set(float64(len(res.Alerts.ArchivedAlerts)))
	c.journal.Emit(journal.Event{
		Level: journal.LevelInfo,
		Kind:  journal.KindCurate,
		Count: res.Outcome.Created,
		Extra: map[string]any{
			"superseded": res.Outcome.Superseded,
			"expired":    res.Outcome.Expired,
			"overflowed": res.Outcome.Overflowed,
			"evicted":    len(res.Outcome.Evicted),
		},
	})

	if err := c.files.SaveMemory(res.Memory); err != nil {
		c.journal.Error(journal.KindPersistError, "memory", err)
		return res, fmt.Errorf("save memory: %w", err)
	}
	if err := c.files.SaveAlerts(res.Alerts); err != nil {
		c.journal.Error(journal.KindPersistError, "alerts", err)
		return res, fmt.Errorf("save alerts: %w", err)
	}

	res.FinishedAt = c.now().UTC()
	c.record(res)
	m.LastScan.Set(float64(res.FinishedAt.Unix()))
	m.ObserveStage("total", start)
	if c.opts.MetricsFile != "" {
		if err := m.WriteTextfile(c.opts.MetricsFile); err != nil {
			logging.Warn("Failed to write metrics", "path", c.opts.MetricsFile, "error", err)
		}
	}

	c.journal.Emit(journal.Event{
		Level: journal.LevelInfo,
		Kind:  journal.KindScanComplete,
		Count: batch.Len(),
		Dur:   res.FinishedAt.Sub(start),
		Extra: map[string]any{"confidence": res.Assessment.Confidence, "source": string(res.Assessment.Source)},
	})
	logging.Info("Scan complete",
		"scan_id", res.ScanID,
		"records", batch.Len(),
		"confidence", res.Assessment.Confidence,
		"source", res.Assessment.Source,
		"alerts_created", res.Outcome.Created,
		"alerts_active", len(res.Alerts.Alerts),
	)
	return res, nil
}

// collect runs every collector in parallel, each with its own share of the
// call budget. Results keep collector order.
func (c *Coordinator) collect(ctx context.Context, scorer fetch.Scorer) []fetch.Result {
	if c.collectors == nil {
		return nil
	}
	cols := c.collectors(scorer)
	if len(cols) == 0 {
		return nil
	}

	budget := c.opts.MaxAPICalls
	if c.opts.Full {
		budget *= 2
	}
	share := budget / len(cols)
	if share < 1 {
		share = 1
	}

	results := make([]fetch.Result, len(cols))
	var g errgroup.Group
	g.SetLimit(maxConcurrentCollectors)
	for i, col := range cols {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = fetch.Result{Source: col.Name(), Err: ctx.Err()}
				return nil
			}
			cctx, cancel := context.WithTimeout(ctx, c.opts.CollectTimeout)
			defer cancel()

			start := time.Now()
			r := col.Collect(cctx, fetch.NewBudget(share, c.opts.MinCallInterval))
			if r.Source == "" {
				r.Source = col.Name()
			}
			results[i] = r
			c.report(r, time.Since(start))
			return nil // errors are reported per collector
		})
	}
	_ = g.Wait()
	return results
}

func (c *Coordinator) report(r fetch.Result, dur time.Duration) {
	if r.Failed() {
		logging.Warn("Collector failed", "source", r.Source, "calls", r.Calls, "error", r.Err)
		c.journal.Emit(journal.Event{Level: journal.LevelWarn, Kind: journal.KindCollectError, Source: r.Source, Err: r.Err.Error(), Dur: dur})
		return
	}
	logging.Info("Collector finished", "source", r.Source, "records", r.Batch.Len(), "calls", r.Calls)
	c.journal.Emit(journal.Event{Level: journal.LevelInfo, Kind: journal.KindCollectComplete, Source: r.Source, Count: r.Batch.Len(), Dur: dur})
}

// record writes the scan and any evicted alerts to the ledger. Ledger
// failures are logged; the state files are already saved.
func (c *Coordinator) record(res Result) {
	if c.ledger == nil {
		return
	}
	_, err := c.ledger.RecordScan(store.Scan{
		ID:             res.ScanID,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		Records:        res.Batch.Len(),
		Confidence:     res.Assessment.Confidence,
		Source:         string(res.Assessment.Source),
		AlertsCreated:  res.Outcome.Created,
		AlertsActive:   len(res.Alerts.Alerts),
		AlertsArchived: len(res.Alerts.ArchivedAlerts),
		CollectorErrs:  res.CollectorErrors(),
	})
	if err != nil {
		logging.Warn("Failed to record scan", "scan_id", res.ScanID, "error", err)
		c.journal.Error(journal.KindPersistError, "ledger", err)
	}
	if len(res.Outcome.Evicted) == 0 {
		return
	}
	if _, err := c.ledger.ArchiveAlerts(res.ScanID, "evicted", res.Outcome.Evicted, res.FinishedAt); err != nil {
		logging.Warn("Failed to archive evicted alerts", "count", len(res.Outcome.Evicted), "error", err)
		c.journal.Error(journal.KindPersistError, "ledger", err)
	}
}

func (c *Coordinator) mode() string {
	switch {
	case c.opts.AnalyzeOnly:
		return "analyze-only"
	case c.opts.Full:
		return "full"
	default:
		return "standard"
	}
}

// batchFromMemory rebuilds a batch from the lists memory keeps, for
// re-analysis without collection.
func batchFromMemory(doc memory.Document) record.CollectedBatch {
	b := record.CollectedBatch{
		Jobs: append([]record.JobPosting(nil), doc.JobPostings...),
		News: append([]record.NewsItem(nil), doc.RecentNews...),
	}
	for _, e := range doc.FlaggedOrganizations {
		switch r := record.FromEntity(e).(type) {
		case record.Organization:
			b.Nonprofits = append(b.Nonprofits, r)
		case record.CommitteeFiling:
			b.Committees = append(b.Committees, r)
		}
	}
	return b
}

func countSeverity(as []pattern.Anomaly, sev pattern.Severity) int {
	n := 0
	for _, a := range as {
		if a.Severity == sev {
			n++
		}
	}
	return n
}
