package confidence

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/record"
)

// Normalization bounds shared by both paths.
const (
	MaxConfidence = 85
	MaxFactors    = 3
	MaxAlerts     = 5
)

// DefaultTimeout bounds the narrative call.
const DefaultTimeout = 60 * time.Second

// Estimator produces one Assessment per scan.
type Estimator struct {
	gen     NarrativeGenerator
	timeout time.Duration
}

// NewEstimator returns an estimator. gen may be nil.
func NewEstimator(gen NarrativeGenerator, timeout time.Duration) *Estimator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Estimator{gen: gen, timeout: timeout}
}

// Estimate asks the generator at most once and falls back to the
// deterministic path on any failure. It never returns an error.
func (e *Estimator) Estimate(ctx context.Context, in Input) Assessment {
	if e.gen != nil && e.gen.Available() {
		a, err := e.narrate(ctx, in)
		if err == nil {
			return Normalize(a)
		}
		logging.Warn("narrative generation failed, using fallback", "error", err)
	}
	return Normalize(Fallback(in))
}

func (e *Estimator) narrate(ctx context.Context, in Input) (Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.gen.Generate(ctx, BuildDigest(in))
	if err != nil {
		return Assessment{}, err
	}
	if err := res.checkRanges(); err != nil {
		return Assessment{}, err
	}

	a := Assessment{
		Confidence:      *res.Confidence,
		Factors:         res.Factors,
		Summary:         res.Summary,
		HotStates:       res.HotStates,
		Recommendations: res.Recommendations,
		Source:          SourceNarrative,
	}
	for _, na := range res.Alerts {
		conf := 50
		if na.Confidence != nil {
			conf = *na.Confidence
		}
		a.Alerts = append(a.Alerts, curation.Alert{
			Title:       na.Title,
			Description: na.Description,
			Confidence:  conf,
			Severity:    curation.Severity(na.Severity),
			Sources:     na.Sources,
		})
	}
	if a.Summary == "" {
		a.Summary = "Analysis complete"
	}
	return a, nil
}

// Normalize enforces the bounds every assessment must satisfy: confidence
// in [0,85], at most three factors (highest score first) with scores in
// [0,100], at most five alerts with confidence in [0,100] and a severity.
func Normalize(a Assessment) Assessment {
	a.Confidence = record.ClampRange(a.Confidence, 0, MaxConfidence)

	factors := make([]Factor, 0, len(a.Factors))
	for _, f := range a.Factors {
		if strings.TrimSpace(f.Factor) == "" {
			continue
		}
		f.Score = record.Clamp(f.Score)
		factors = append(factors, f)
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Score > factors[j].Score })
	if len(factors) > MaxFactors {
		factors = factors[:MaxFactors]
	}
	a.Factors = factors

	alerts := make([]curation.Alert, 0, min(len(a.Alerts), MaxAlerts))
	for _, al := range a.Alerts {
		if len(alerts) == MaxAlerts {
			break
		}
		al.Confidence = record.Clamp(al.Confidence)
		switch al.Severity {
		case curation.SeverityLow, curation.SeverityMedium, curation.SeverityHigh:
		default:
			al.Severity = curation.SeverityFor(al.Confidence)
		}
		if al.Sources == nil {
			al.Sources = []string{}
		}
		alerts = append(alerts, al)
	}
	a.Alerts = alerts

	states := []string{}
	for _, s := range a.HotStates {
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) == 2 && !contains(states, s) {
			states = append(states, s)
		}
	}
	if len(states) > maxHotStates {
		states = states[:maxHotStates]
	}
	a.HotStates = states
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	return a
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
