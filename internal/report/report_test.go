package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/coord"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/fetch"
	"github.com/abelbrown/astroscan/internal/journal"
	"github.com/abelbrown/astroscan/internal/memory"
	"github.com/abelbrown/astroscan/internal/record"
	"github.com/abelbrown/astroscan/internal/store"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestStatusEmptyState(t *testing.T) {
	var b strings.Builder
	if err := Status(&b, StatusInput{Memory: memory.Default(), Alerts: curation.NewDocument(), Now: testNow}); err != nil {
		t.Fatalf("Status: %v", err)
	}
	out := b.String()
	for _, want := range []string{"astroscan status", "never", "Active alerts (0, 0 archived)", "none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Recent scans") || strings.Contains(out, "Journal") {
		t.Error("empty sections should be omitted")
	}
}

func TestStatusPopulated(t *testing.T) {
	mem := memory.Default()
	mem.SystemConfidence = 72
	mem.TotalScans = 4
	mem.LastScan = testNow.Add(-3 * time.Hour)
	mem.HotStates = []string{"TX", "OH"}
	mem.FlaggedOrganizations = []record.Entity{
		{Name: "Citizens for Freedom", RiskScore: 80, Location: record.Location{City: "Austin", State: "TX"}},
	}
	mem.AgentNotes = []memory.Note{{Summary: "Activity concentrated in TX", Source: confidence.SourceFallback, Recommendations: []string{"Monitor TX filings"}}}
	mem.AnalysisHistory = []memory.AnalysisSummary{{Confidence: 40}, {Confidence: 72}}

	alerts := curation.NewDocument()
	alerts.Alerts = []curation.Alert{
		{Title: "3 high-risk organizations detected", Confidence: 78, Severity: curation.SeverityHigh, Timestamp: testNow.Add(-time.Hour)},
	}
	scans := []store.Scan{{ID: "s1", StartedAt: testNow, Records: 42, Confidence: 72, Source: "fallback", CollectorErrs: 2}}
	events := []journal.Event{
		{Time: testNow, Kind: journal.KindCollectError, Source: "fec", Err: "HTTP error: 500"},
	}

	var b strings.Builder
	if err := Status(&b, StatusInput{Memory: mem, Alerts: alerts, Scans: scans, Events: events, Now: testNow}); err != nil {
		t.Fatalf("Status: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		" 72", "3h ago", "TX, OH",
		"Active alerts (1, 0 archived)", "3 high-risk organizations detected", "high",
		"Citizens for Freedom", "Austin, TX",
		"Activity concentrated in TX", "- Monitor TX filings",
		"42 records", "2 collectors failed",
		"collect.error", "HTTP error: 500",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScanSummary(t *testing.T) {
	res := coord.Result{
		ScanID:     "0f1e2d3c-aaaa-bbbb-cccc-000000000000",
		StartedAt:  testNow,
		FinishedAt: testNow.Add(1500 * time.Millisecond),
		Collectors: []fetch.Result{
			{Source: "news", Calls: 4, Batch: record.CollectedBatch{News: []record.NewsItem{{}}}},
			{Source: "fec", Calls: 1, Err: errors.New("boom")},
			{Source: "jobs", Calls: 2},
		},
		Batch:      record.CollectedBatch{News: []record.NewsItem{{}}},
		Assessment: confidence.Assessment{Confidence: 48, Source: confidence.SourceNarrative, Summary: "Quiet week"},
		Outcome:    curation.Outcome{Created: 2},
	}
	var b strings.Builder
	if err := Scan(&b, res); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	out := b.String()
	for _, want := range []string{"scan 0f1e2d3c", "ok", "failed", "empty", "news 1", "(narrative)", "Quiet week", "2 new", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{0, 100}, "▁█"},
		{[]int{-10, 50, 200}, "▁▄█"},
	}
	for _, tt := range tests {
		if got := Sparkline(tt.in); got != tt.want {
			t.Errorf("Sparkline(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{30 * time.Hour, "30h ago"},
		{72 * time.Hour, "3d ago"},
	}
	for _, tt := range tests {
		if got := ago(testNow.Add(-tt.d), testNow); got != tt.want {
			t.Errorf("ago(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
