// Package correlation cross-references records of different kinds (jobs,
// news, organizations) to find joint signals.
//
// Each rule looks at the whole scored batch and emits at most one
// Correlation with a bounded probability and a short evidence list.
// Correlations are recomputed every scan; they reach persisted state only
// through the confidence estimator.
package correlation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/record"
)

// Correlation types.
const (
	TypeGeographicMatch = "Geographic Match"
	TypeNamingPattern   = "Naming Pattern"
	TypeNewHighRisk     = "New High-Risk Orgs"
	TypePaidNews        = "Paid Protest News"
	TypeStateHotspot    = "State Hotspot"
)

// MaxCorrelations is how many correlations a scan keeps.
const MaxCorrelations = 6

// Evidence is one supporting observation for a correlation.
type Evidence struct {
	SourceKind string `json:"sourceKind"` // a record.Kind or "state"
	Detail     string `json:"detail"`
}

// Correlation is a cross-source pattern with an assigned probability.
type Correlation struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Probability int        `json:"probability"`
	Evidence    []Evidence `json:"evidence"`
}

// Input is what rules see: a scored batch and the scan clock.
type Input struct {
	Batch record.CollectedBatch
	Now   time.Time
}

// Rule inspects the input and reports a correlation when it fires.
type Rule func(in Input) (Correlation, bool)

// DefaultRules is the built-in rule set, in evaluation order.
var DefaultRules = []Rule{
	GeographicMatch,
	NamingPattern,
	NewHighRisk,
	PaidNewsCluster,
	StateHotspot,
}

// Correlator evaluates a rule set over scored batches.
type Correlator struct {
	rules []Rule
}

// New returns a correlator with the given rules, or DefaultRules when none
// are passed.
func New(rules ...Rule) *Correlator {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Correlator{rules: rules}
}

// Correlate runs every rule and returns the ranked result.
func (c *Correlator) Correlate(b record.CollectedBatch, now time.Time) []Correlation {
	in := Input{Batch: b, Now: now}
	var out []Correlation
	for _, r := range c.rules {
		if corr, ok := r(in); ok {
			corr.Probability = record.Clamp(corr.Probability)
			out = append(out, corr)
		}
	}
	return Rank(out)
}

// Rank sorts correlations by probability, highest first, keeping insertion
// order among ties, and truncates to MaxCorrelations.
func Rank(cs []Correlation) []Correlation {
	out := append([]Correlation(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	if len(out) > MaxCorrelations {
		out = out[:MaxCorrelations]
	}
	return out
}

// namingPhrases are generic patriotic name fragments typical of front groups.
var namingPhrases = []string{
	"freedom fund", "liberty", "citizens for", "americans for", "action fund",
	"leadership", "voices for", "families for", "save our", "keep our", "protect our",
}

// GeographicMatch fires when real job postings sit in cities named by news.
func GeographicMatch(in Input) (Correlation, bool) {
	newsCities := make(map[string]bool)
	for _, n := range in.Batch.News {
		for _, c := range ExtractCities(n.Title + " " + n.Location.City) {
			newsCities[strings.ToLower(c)] = true
		}
	}
	if len(newsCities) == 0 {
		return Correlation{}, false
	}

	var matched []record.JobPosting
	for _, j := range in.Batch.RealJobs() {
		city := strings.ToLower(strings.TrimSpace(j.Location.City))
		if city == "" {
			continue
		}
		for nc := range newsCities {
			if strings.Contains(city, nc) || strings.Contains(nc, city) {
				matched = append(matched, j)
				break
			}
		}
	}
	if len(matched) == 0 {
		return Correlation{}, false
	}

	ev := make([]Evidence, 0, 3)
	for _, j := range head(matched, 3) {
		ev = append(ev, Evidence{SourceKind: string(record.KindJob), Detail: record.TruncateGraphemes(j.Title, 80)})
	}
	return Correlation{
		Type:        TypeGeographicMatch,
		Description: fmt.Sprintf("%d job posting(s) found in cities with protest-related news.", len(matched)),
		Probability: min(55+8*len(matched), 85),
		Evidence:    ev,
	}, true
}

// NamingPattern fires when two or more organizations carry generic
// patriotic names.
func NamingPattern(in Input) (Correlation, bool) {
	var hits []record.Entity
	for _, e := range in.Batch.Entities() {
		name := strings.ToLower(e.Name)
		for _, p := range namingPhrases {
			if strings.Contains(name, p) {
				hits = append(hits, e)
				break
			}
		}
	}
	if len(hits) < 2 {
		return Correlation{}, false
	}
	return Correlation{
		Type:        TypeNamingPattern,
		Description: fmt.Sprintf("%d orgs with generic patriotic names typical of astroturf.", len(hits)),
		Probability: min(50+5*len(hits), 78),
		Evidence:    entityEvidence(hits, 3, false),
	}, true
}

// NewHighRisk fires for organizations with risk >= 70 filed in the last
// 180 days.
func NewHighRisk(in Input) (Correlation, bool) {
	var hits []record.Entity
	for _, e := range in.Batch.Entities() {
		age := record.AgeDays(e.FiledAt, in.Now)
		if age >= 0 && age < 180 && e.RiskScore >= 70 {
			hits = append(hits, e)
		}
	}
	if len(hits) == 0 {
		return Correlation{}, false
	}
	return Correlation{
		Type:        TypeNewHighRisk,
		Description: fmt.Sprintf("%d high-risk org(s) filed in last 6 months.", len(hits)),
		Probability: min(50+12*len(hits), 80),
		Evidence:    entityEvidence(hits, 2, true),
	}, true
}

// PaidNewsCluster fires when at least two news titles mention "paid".
func PaidNewsCluster(in Input) (Correlation, bool) {
	var paid []record.NewsItem
	for _, n := range in.Batch.News {
		if strings.Contains(strings.ToLower(n.Title), "paid") {
			paid = append(paid, n)
		}
	}
	if len(paid) < 2 {
		return Correlation{}, false
	}
	ev := make([]Evidence, 0, 2)
	for _, n := range head(paid, 2) {
		ev = append(ev, Evidence{SourceKind: string(record.KindNews), Detail: record.TruncateGraphemes(n.Title, 100)})
	}
	return Correlation{
		Type:        TypePaidNews,
		Description: fmt.Sprintf("%d articles specifically about paid protesters.", len(paid)),
		Probability: min(40+8*len(paid), 72),
		Evidence:    ev,
	}, true
}

// StateHotspot fires when a state's weighted activity exceeds 20.
func StateHotspot(in Input) (Correlation, bool) {
	var hot []StateScore
	for _, s := range StateActivity(in.Batch) {
		if s.Score > 20 {
			hot = append(hot, s)
		}
	}
	if len(hot) == 0 {
		return Correlation{}, false
	}
	ev := make([]Evidence, 0, 3)
	for _, s := range head(hot, 3) {
		ev = append(ev, Evidence{SourceKind: "state", Detail: fmt.Sprintf("%s (score: %d)", s.State, int(s.Score))})
	}
	return Correlation{
		Type:        TypeStateHotspot,
		Description: hot[0].State + " showing concentrated activity.",
		Probability: min(45+int(hot[0].Score), 75),
		Evidence:    ev,
	}, true
}

// StateScore is a state's weighted activity: the sum of score/10 over its
// real jobs and organizations.
type StateScore struct {
	State string  `json:"state"`
	Score float64 `json:"score"`
}

// StateActivity returns per-state weighted activity, highest first, ties
// broken by state code.
func StateActivity(b record.CollectedBatch) []StateScore {
	acc := make(map[string]float64)
	for _, j := range b.RealJobs() {
		if s := normState(j.Location.State); s != "" {
			acc[s] += float64(j.Score()) / 10
		}
	}
	for _, e := range b.Entities() {
		if s := normState(e.Location.State); s != "" {
			acc[s] += float64(e.RiskScore) / 10
		}
	}
	out := make([]StateScore, 0, len(acc))
	for s, v := range acc {
		out = append(out, StateScore{State: s, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].State < out[j].State
	})
	return out
}

func normState(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func entityEvidence(es []record.Entity, n int, withDate bool) []Evidence {
	out := make([]Evidence, 0, n)
	for _, e := range head(es, n) {
		detail := record.TruncateGraphemes(e.Name, 80)
		if withDate {
			detail = record.TruncateGraphemes(e.Name, 35)
			if !e.FiledAt.IsZero() {
				detail += " (" + e.FiledAt.Format("2006-01-02") + ")"
			}
		}
		out = append(out, Evidence{SourceKind: string(e.Kind), Detail: detail})
	}
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
