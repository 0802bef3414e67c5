// Package confidence combines scored records, anomalies and correlations into
// one bounded system confidence with named contributing factors and alerts.
//
// When a NarrativeGenerator is available it is asked once per scan; its
// answer goes through the same normalization as the deterministic fallback,
// so callers cannot tell the paths apart by shape.
package confidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/abelbrown/astroscan/internal/correlation"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/pattern"
	"github.com/abelbrown/astroscan/internal/record"
)

// ErrNarrativeUnavailable is returned by generators that cannot run.
var ErrNarrativeUnavailable = errors.New("narrative generator unavailable")

// NarrativeGenerator produces an assessment from a compact digest.
type NarrativeGenerator interface {
	Available() bool
	Generate(ctx context.Context, d Digest) (NarrativeResult, error)
}

// Factor is a named contribution to the system confidence.
type Factor struct {
	Factor string `json:"factor" validate:"required"`
	Score  int    `json:"score" validate:"min=0,max=100"`
	Detail string `json:"detail"`
}

// NarrativeAlert is an alert as returned by a generator.
type NarrativeAlert struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Confidence  *int     `json:"confidence" validate:"omitempty,min=0,max=100"`
	Severity    string   `json:"severity,omitempty" validate:"omitempty,oneof=low medium high"`
	Sources     []string `json:"sources"`
}

// NarrativeResult is the schema a generator must satisfy. Every number is a
// percentage in [0,100].
type NarrativeResult struct {
	Confidence      *int             `json:"confidence" validate:"required,min=0,max=100"`
	Factors         []Factor         `json:"confidence_factors" validate:"dive"`
	Summary         string           `json:"summary"`
	Alerts          []NarrativeAlert `json:"alerts" validate:"dive"`
	HotStates       []string         `json:"hot_states"`
	Recommendations []string         `json:"recommendations"`
}

// checkRanges rejects results whose numbers fall outside [0,100].
func (r NarrativeResult) checkRanges() error {
	if r.Confidence == nil {
		return errors.New("narrative result missing confidence")
	}
	if !inRange(*r.Confidence) {
		return fmt.Errorf("narrative confidence %d out of range", *r.Confidence)
	}
	for _, f := range r.Factors {
		if !inRange(f.Score) {
			return fmt.Errorf("factor %q score %d out of range", f.Factor, f.Score)
		}
	}
	for _, a := range r.Alerts {
		if a.Confidence != nil && !inRange(*a.Confidence) {
			return fmt.Errorf("alert %q confidence %d out of range", a.Title, *a.Confidence)
		}
	}
	return nil
}

func inRange(n int) bool { return n >= 0 && n <= 100 }

// Source names the path that produced an assessment.
type Source string

const (
	SourceNarrative Source = "narrative"
	SourceFallback  Source = "fallback"
)

// Assessment is the estimator output.
type Assessment struct {
	Confidence      int              `json:"confidence"`
	Factors         []Factor         `json:"factors"`
	Alerts          []curation.Alert `json:"alerts"`
	Summary         string           `json:"summary"`
	HotStates       []string         `json:"hotStates"`
	Recommendations []string         `json:"recommendations"`
	Source          Source           `json:"source"`
}

// Input is everything the estimator looks at for one scan.
type Input struct {
	Batch           record.CollectedBatch // scored
	Patterns        pattern.Summary
	Anomalies       []pattern.Anomaly
	Correlations    []correlation.Correlation
	PriorConfidence int
}
