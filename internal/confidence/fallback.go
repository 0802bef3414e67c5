package confidence

import (
	"fmt"
	"sort"

	"github.com/abelbrown/astroscan/internal/correlation"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/pattern"
	"github.com/abelbrown/astroscan/internal/record"
)

// Fallback thresholds.
const (
	floorConfidence    = 35
	highRelevance      = 60
	highRisk           = 70
	suspiciousJob      = 50
	strongCorrelation  = 60
	hotStateMinScore   = 5.0
	maxHotStates       = 3
	correlationAlerts  = 2
	paidNewsAlertMin   = 2
	highRiskAlertMin   = 3
	suspiciousAlertMin = 2
)

// Fallback computes an assessment from the input alone. It is deterministic
// and never fails.
func Fallback(in Input) Assessment {
	b := in.Batch
	jobs := b.RealJobs()
	ents := b.Entities()

	a := Assessment{Confidence: floorConfidence, Source: SourceFallback}

	if len(b.News) > 1 {
		hi := 0
		var paid []record.NewsItem
		for _, n := range b.News {
			if n.Score() >= highRelevance {
				hi++
			}
			if containsFold(n.Title, "paid") {
				paid = append(paid, n)
			}
		}
		score := min(hi*8+40, 80)
		a.Confidence += 10
		a.Factors = append(a.Factors, Factor{Factor: "News Coverage", Score: score, Detail: fmt.Sprintf("%d high-relevance articles", hi)})

		if len(paid) >= paidNewsAlertMin {
			a.Alerts = append(a.Alerts, curation.Alert{
				Title:       fmt.Sprintf("%d articles about paid protesters", len(paid)),
				Description: "News mentions paid protesters: " + record.TruncateGraphemes(paid[0].Title, 60),
				Confidence:  min(50+10*len(paid), 75),
				Sources:     newsSources(paid),
				Factors:     []curation.Factor{{Name: "News Coverage", Value: score}},
			})
		}
	}

	if len(ents) > 2 {
		hi := 0
		var srcs []string
		for _, e := range ents {
			if e.RiskScore >= highRisk {
				hi++
				srcs = appendUnique(srcs, e.Source)
			}
		}
		score := min(hi*12+35, 85)
		a.Confidence += 10
		a.Factors = append(a.Factors, Factor{Factor: "Organization Risk", Score: score, Detail: fmt.Sprintf("%d high-risk orgs", hi)})

		if hi >= highRiskAlertMin {
			a.Alerts = append(a.Alerts, curation.Alert{
				Title:       fmt.Sprintf("%d high-risk organizations detected", hi),
				Description: "Multiple organizations flagged with suspicious patterns.",
				Confidence:  min(55+5*hi, 80),
				Sources:     orDefault(srcs, string(record.KindOrganization)),
				Factors:     []curation.Factor{{Name: "Organization Risk", Value: score}},
			})
		}
	}

	var suspicious []record.JobPosting
	for _, j := range jobs {
		if j.Score() >= suspiciousJob {
			suspicious = append(suspicious, j)
		}
	}
	if len(suspicious) > 0 {
		score := min(len(suspicious)*10+30, 75)
		a.Confidence += 5
		a.Factors = append(a.Factors, Factor{Factor: "Job Postings", Score: score, Detail: fmt.Sprintf("%d suspicious postings", len(suspicious))})

		if len(suspicious) >= suspiciousAlertMin {
			var srcs []string
			for _, j := range suspicious {
				srcs = appendUnique(srcs, j.Source)
			}
			a.Alerts = append(a.Alerts, curation.Alert{
				Title:       fmt.Sprintf("%d suspicious job postings", len(suspicious)),
				Description: "Job postings with suspicious keywords detected.",
				Confidence:  min(45+8*len(suspicious), 70),
				Sources:     orDefault(srcs, string(record.KindJob)),
				Factors:     []curation.Factor{{Name: "Job Postings", Value: score}},
			})
		}
	}

	if top, ok := strongest(in.Correlations); ok {
		a.Confidence += 10
		a.Factors = append(a.Factors, Factor{
			Factor: "Cross-Source Correlation",
			Score:  top.Probability,
			Detail: top.Type,
		})
	}

	if n := countSeverity(in.Anomalies, pattern.SeverityHigh); n > 0 {
		a.Confidence += 5
		a.Factors = append(a.Factors, Factor{Factor: "Anomalies", Score: min(50+10*n, 90), Detail: fmt.Sprintf("%d high-severity anomalies", n)})
	}

	for i, c := range in.Correlations {
		if i == correlationAlerts {
			break
		}
		if c.Probability < strongCorrelation {
			continue
		}
		var srcs []string
		for _, ev := range c.Evidence {
			srcs = appendUnique(srcs, ev.SourceKind)
		}
		a.Alerts = append(a.Alerts, curation.Alert{
			Title:       "Pattern: " + c.Type,
			Description: c.Description,
			Confidence:  c.Probability,
			Sources:     orDefault(srcs, "correlation"),
			Factors:     []curation.Factor{{Name: "Cross-Source Correlation", Value: c.Probability}},
		})
	}

	a.HotStates = HotStates(b)
	a.Summary = fmt.Sprintf("Monitoring %d news, %d orgs, %d jobs. %d alerts.", len(b.News), len(ents), len(jobs), len(a.Alerts))
	a.Recommendations = recommendations(a.HotStates, in.Correlations)
	return a
}

// HotStates returns up to three states whose weighted activity exceeds 5.
func HotStates(b record.CollectedBatch) []string {
	var out []string
	for _, s := range correlation.StateActivity(b) {
		if len(out) == maxHotStates {
			break
		}
		if s.Score > hotStateMinScore {
			out = append(out, s.State)
		}
	}
	return out
}

func recommendations(states []string, cs []correlation.Correlation) []string {
	var out []string
	for _, s := range states {
		out = append(out, "Review recent filings and postings in "+s)
	}
	for _, c := range cs {
		if c.Probability >= strongCorrelation {
			out = append(out, "Verify evidence behind "+c.Type)
		}
	}
	return out
}

func strongest(cs []correlation.Correlation) (correlation.Correlation, bool) {
	best := -1
	for i, c := range cs {
		if c.Probability >= strongCorrelation && (best < 0 || c.Probability > cs[best].Probability) {
			best = i
		}
	}
	if best < 0 {
		return correlation.Correlation{}, false
	}
	return cs[best], true
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

func newsSources(items []record.NewsItem) []string {
	var out []string
	for _, n := range items {
		src := n.Publisher
		if src == "" {
			src = n.Source
		}
		out = appendUnique(out, src)
	}
	sort.Strings(out)
	return orDefault(out, string(record.KindNews))
}

func appendUnique(s []string, v string) []string {
	if v == "" {
		return s
	}
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func orDefault(s []string, def string) []string {
	if len(s) == 0 {
		return []string{def}
	}
	return s
}
