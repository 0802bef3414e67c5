// Package report renders persisted state and scan results for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/astroscan/internal/coord"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/journal"
	"github.com/abelbrown/astroscan/internal/memory"
	"github.com/abelbrown/astroscan/internal/record"
	"github.com/abelbrown/astroscan/internal/store"
)

// Limits for list sections.
const (
	maxAlertsShown = 10
	maxOrgsShown   = 5
	maxScansShown  = 5
	maxEventsShown = 8
	titleWidth     = 60
)

// StatusInput is everything the status report shows.
type StatusInput struct {
	Memory memory.Document
	Alerts curation.Document
	Scans  []store.Scan
	Events []journal.Event
	Now    time.Time
}

// Status writes the status report for the persisted state.
func Status(w io.Writer, in StatusInput) error {
	var b strings.Builder
	mem := in.Memory
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	b.WriteString(Header.Render("astroscan status"))
	b.WriteString("\n")

	var summary strings.Builder
	field(&summary, "Confidence", confidenceBar(mem.SystemConfidence))
	field(&summary, "Last scan", ago(mem.LastScan, now))
	field(&summary, "Last analysis", ago(mem.LastAnalysis, now))
	field(&summary, "Total scans", fmt.Sprint(mem.TotalScans))
	if len(mem.HotStates) > 0 {
		field(&summary, "Hot states", strings.Join(mem.HotStates, ", "))
	}
	if trend := Sparkline(confidenceHistory(mem)); trend != "" {
		field(&summary, "Trend", trend)
	}
	b.WriteString(Box.Render(strings.TrimRight(summary.String(), "\n")))
	b.WriteString("\n")

	b.WriteString(Section.Render("Tracking"))
	b.WriteString("\n")
	st := mem.Stats
	field(&b, "Organizations", fmt.Sprintf("%d flagged, %d high risk", st.FlaggedOrgs, st.HighRiskOrgs))
	field(&b, "Job postings", fmt.Sprintf("%d tracked, %d suspicious", st.JobPostingsTracked, st.SuspiciousJobs))
	field(&b, "News", fmt.Sprintf("%d tracked", st.NewsTracked))
	field(&b, "Timeline", fmt.Sprintf("%d events", st.TimelineEvents))
	field(&b, "States", fmt.Sprintf("%d", st.StatesTracked))

	if len(mem.ConfidenceFactors) > 0 {
		b.WriteString(Section.Render("Confidence factors"))
		b.WriteString("\n")
		for _, f := range mem.ConfidenceFactors {
			fmt.Fprintf(&b, "  %3d  %s %s\n", f.Score, f.Factor, Muted.Render(f.Detail))
		}
	}

	b.WriteString(Section.Render(fmt.Sprintf("Active alerts (%d, %d archived)", len(in.Alerts.Alerts), len(in.Alerts.ArchivedAlerts))))
	b.WriteString("\n")
	writeAlerts(&b, in.Alerts.Alerts, now)

	if len(mem.FlaggedOrganizations) > 0 {
		b.WriteString(Section.Render("Top organizations"))
		b.WriteString("\n")
		for i, e := range mem.FlaggedOrganizations {
			if i == maxOrgsShown {
				break
			}
			fmt.Fprintf(&b, "  %3d  %s %s\n", e.RiskScore, truncate(e.Name), Muted.Render(location(e.Location)))
		}
	}

	if n := len(mem.AgentNotes); n > 0 {
		note := mem.AgentNotes[n-1]
		b.WriteString(Section.Render("Latest note"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s %s\n", SourceBadge.Render(string(note.Source)), note.Summary)
		for _, r := range note.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}

	if len(in.Scans) > 0 {
		b.WriteString(Section.Render("Recent scans"))
		b.WriteString("\n")
		for i, s := range in.Scans {
			if i == maxScansShown {
				break
			}
			fmt.Fprintf(&b, "  %s  %4d records  conf %2d  %-9s  +%d alerts  %s\n",
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				s.Records, s.Confidence, s.Source, s.AlertsCreated,
				Muted.Render(errorsLabel(s.CollectorErrs)))
		}
	}

	if len(in.Events) > 0 {
		b.WriteString(Section.Render("Journal"))
		b.WriteString("\n")
		events := in.Events
		if len(events) > maxEventsShown {
			events = events[len(events)-maxEventsShown:]
		}
		for _, e := range events {
			b.WriteString("  " + eventLine(e) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Scan writes a short summary of a finished scan.
func Scan(w io.Writer, res coord.Result) error {
	var b strings.Builder
	b.WriteString(Header.Render("scan " + shortID(res.ScanID)))
	b.WriteString("\n")

	for _, cr := range res.Collectors {
		status := sevLow.Render("ok")
		switch {
		case cr.Failed():
			status = sevHigh.Render("failed")
		case cr.Empty():
			status = Muted.Render("empty")
		}
		fmt.Fprintf(&b, "  %s %-6s %3d records  %2d calls\n", SourceBadge.Render(fmt.Sprintf("%-10s", cr.Source)), status, cr.Batch.Len(), cr.Calls)
	}

	counts := res.Batch.Counts()
	var parts []string
	for _, k := range record.Kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	field(&b, "Records", strings.Join(parts, ", "))
	field(&b, "Anomalies", fmt.Sprint(len(res.Anomalies)))
	field(&b, "Correlations", fmt.Sprint(len(res.Correlations)))
	field(&b, "Confidence", fmt.Sprintf("%s (%s)", confidenceBar(res.Assessment.Confidence), res.Assessment.Source))
	if res.Assessment.Summary != "" {
		field(&b, "Summary", res.Assessment.Summary)
	}
	o := res.Outcome
	field(&b, "Alerts", fmt.Sprintf("%d new, %d superseded, %d expired, %d active", o.Created, o.Superseded, o.Expired, len(res.Alerts.Alerts)))
	if !res.FinishedAt.IsZero() {
		field(&b, "Duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String())
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeAlerts(b *strings.Builder, alerts []curation.Alert, now time.Time) {
	if len(alerts) == 0 {
		b.WriteString(Muted.Render("  none"))
		b.WriteString("\n")
		return
	}
	for i, a := range alerts {
		if i == maxAlertsShown {
			fmt.Fprintf(b, "  %s\n", Muted.Render(fmt.Sprintf("... %d more", len(alerts)-maxAlertsShown)))
			break
		}
		fmt.Fprintf(b, "  %s %3d  %s %s\n", severity(a.Severity), a.Confidence, truncate(a.Title), Muted.Render(ago(a.Timestamp, now)))
	}
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, Label.Render(label), Value.Render(value)))
	b.WriteString("\n")
}

func severity(s curation.Severity) string {
	label := fmt.Sprintf("%-6s", s)
	switch s {
	case curation.SeverityHigh:
		return sevHigh.Render(label)
	case curation.SeverityMedium:
		return sevMedium.Render(label)
	default:
		return sevLow.Render(label)
	}
}

// confidenceBar renders a 0-100 value as a ten-cell bar.
func confidenceBar(v int) string {
	v = record.Clamp(v)
	filled := (v + 5) / 10
	style := sevLow
	switch {
	case v >= 70:
		style = sevHigh
	case v >= 50:
		style = sevMedium
	}
	return style.Render(strings.Repeat("█", filled)) + Muted.Render(strings.Repeat("░", 10-filled)) + fmt.Sprintf(" %d", v)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders 0-100 values as block characters.
func Sparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := record.Clamp(v) * (len(sparkRunes) - 1) / 100
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

func confidenceHistory(mem memory.Document) []int {
	out := make([]int, len(mem.AnalysisHistory))
	for i, h := range mem.AnalysisHistory {
		out[i] = h.Confidence
	}
	return out
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func eventLine(e journal.Event) string {
	line := fmt.Sprintf("%s %-17s", e.Time.Local().Format("01-02 15:04:05"), e.Kind)
	if e.Source != "" {
		line += " " + e.Source
	}
	if e.Count != 0 {
		line += fmt.Sprintf(" n=%d", e.Count)
	}
	if e.Err != "" {
		return line + " " + sevHigh.Render(truncate(e.Err))
	}
	if e.Msg != "" {
		line += " " + Muted.Render(e.Msg)
	}
	return line
}

func location(l record.Location) string {
	switch {
	case l.City != "" && l.State != "":
		return l.City + ", " + l.State
	case l.State != "":
		return l.State
	default:
		return l.City
	}
}

func errorsLabel(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "1 collector failed"
	default:
		return fmt.Sprintf("%d collectors failed", n)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string) string {
	return record.TruncateGraphemes(s, titleWidth)
}
