package pattern

import (
	"fmt"

	"github.com/abelbrown/astroscan/internal/record"
)

// Severity grades anomalies and alerts.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly types.
const (
	TypeJobSpike          = "job_spike"
	TypeHighRiskOrg       = "high_risk_org"
	TypeGeographicCluster = "geographic_cluster"
)

// Thresholds for promoting detector output to anomalies.
const (
	SpikeMediumPct      = 100.0
	SpikeHighPct        = 200.0
	HighRiskAnomalyRisk = 70
	GeoAnomalyCount     = 5
)

// Anomaly is a detector finding that crossed a threshold. Anomalies are
// recomputed every scan and never persisted directly.
type Anomaly struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Data        any      `json:"data,omitempty"`
}

// Synthesize converts a detector summary into anomalies.
func Synthesize(s Summary) []Anomaly {
	var out []Anomaly
	for _, sp := range s.Jobs.Spikes {
		if sp.IncreasePct <= SpikeMediumPct {
			continue
		}
		sev := SeverityMedium
		if sp.IncreasePct > SpikeHighPct {
			sev = SeverityHigh
		}
		out = append(out, Anomaly{
			Type:        TypeJobSpike,
			Severity:    sev,
			Description: fmt.Sprintf("Job postings for %s %s increased %.0f%%", sp.Dimension, sp.Key, sp.IncreasePct),
			Data:        sp,
		})
	}

	highRisk := append(append([]record.Entity(nil), s.Orgs.HighRisk...), s.Committees.HighRisk...)
	for _, e := range highRisk {
		if e.RiskScore < HighRiskAnomalyRisk {
			continue
		}
		out = append(out, Anomaly{
			Type:        TypeHighRiskOrg,
			Severity:    SeverityHigh,
			Description: "High-risk organization detected: " + e.Name,
			Data:        e,
		})
	}

	for _, c := range s.Orgs.GeoClusters {
		if c.Count < GeoAnomalyCount {
			continue
		}
		out = append(out, Anomaly{
			Type:        TypeGeographicCluster,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Cluster of %d organizations in %s", c.Count, c.Key),
			Data:        c,
		})
	}
	return out
}

// HasSeverity reports whether any anomaly has severity sev.
func HasSeverity(as []Anomaly, sev Severity) bool {
	for _, a := range as {
		if a.Severity == sev {
			return true
		}
	}
	return false
}
