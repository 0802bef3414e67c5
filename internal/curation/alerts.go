// Package curation manages the alert lifecycle: new findings are promoted to
// the head of the active list, age out after the active window and move to a
// bounded archive.
package curation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/record"
)

// Severity indicates urgency
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor derives a severity from a confidence value.
func SeverityFor(confidence int) Severity {
	switch {
	case confidence >= 75:
		return SeverityHigh
	case confidence >= 60:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Factor is a named contribution to an alert's confidence.
type Factor struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Alert is a finding surfaced to the operator.
type Alert struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Confidence  int       `json:"confidence"`
	Severity    Severity  `json:"severity"`
	Sources     []string  `json:"sources"`
	Timestamp   time.Time `json:"timestamp"`
	Factors     []Factor  `json:"factors,omitempty"`
}

// Document is the persisted alerts file.
type Document struct {
	Version        string    `json:"version"`
	Alerts         []Alert   `json:"alerts"`
	ArchivedAlerts []Alert   `json:"archivedAlerts"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// DocumentVersion is written into new alert documents.
const DocumentVersion = "1.0.0"

// NewDocument returns an empty alerts document.
func NewDocument() Document {
	return Document{Version: DocumentVersion, Alerts: []Alert{}, ArchivedAlerts: []Alert{}}
}

// Lifecycle defaults.
const (
	DefaultActiveWindow = 30 * 24 * time.Hour
	DefaultMaxActive    = 100
	DefaultMaxArchived  = 500
)

// Outcome reports what one lifecycle pass did.
type Outcome struct {
	Created    int
	Superseded int
	Duplicates int // fresh alerts dropped as repeats of an earlier fresh title
	Expired    int
	Overflowed int
	// Evicted are alerts dropped from the front of the archive. They leave
	// the document for good; callers may record them elsewhere.
	Evicted []Alert
}

// Lifecycle promotes, expires and archives alerts.
type Lifecycle struct {
	Window      time.Duration
	MaxActive   int
	MaxArchived int
}

// NewLifecycle returns a lifecycle with the default window and caps.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		Window:      DefaultActiveWindow,
		MaxActive:   DefaultMaxActive,
		MaxArchived: DefaultMaxArchived,
	}
}

// PromoteAndExpire inserts fresh alerts at the head of the active list and
// enforces the active window and both caps. doc is not modified.
//
// A fresh alert supersedes an active alert with the same normalized title;
// the superseded alert goes to the archive. Fresh alerts repeating an earlier
// fresh title are dropped. Active alerts with a zero
// timestamp are stamped with now.
func (l *Lifecycle) PromoteAndExpire(doc Document, fresh []Alert, now time.Time) (Document, Outcome) {
	var out Outcome

	active := make([]Alert, 0, len(doc.Alerts)+len(fresh))
	archived := append([]Alert{}, doc.ArchivedAlerts...)

	seen := make(map[string]bool, len(doc.Alerts)+len(doc.ArchivedAlerts))
	for _, a := range doc.Alerts {
		seen[a.ID] = true
	}
	for _, a := range doc.ArchivedAlerts {
		seen[a.ID] = true
	}

	// Fresh alerts go first, newest run on top, in the order given.
	freshTitles := make(map[string]bool, len(fresh))
	seq := len(doc.Alerts)
	stamp := now.UTC().Format("20060102150405")
	for _, a := range fresh {
		a = normalize(a)
		k := titleKey(a.Title)
		if freshTitles[k] {
			out.Duplicates++
			continue
		}
		freshTitles[k] = true
		a.Timestamp = now
		for {
			a.ID = fmt.Sprintf("alert_%s_%d", stamp, seq)
			seq++
			if !seen[a.ID] {
				break
			}
		}
		seen[a.ID] = true
		active = append(active, a)
		out.Created++
	}

	for _, a := range doc.Alerts {
		if a.Timestamp.IsZero() {
			a.Timestamp = now
		}
		switch {
		case freshTitles[titleKey(a.Title)]:
			archived = append(archived, a)
			out.Superseded++
		case now.Sub(a.Timestamp) >= l.Window:
			archived = append(archived, a)
			out.Expired++
		default:
			active = append(active, a)
		}
	}

	// Keep the active list newest first; ties keep insertion order.
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Timestamp.After(active[j].Timestamp)
	})
	if l.MaxActive > 0 && len(active) > l.MaxActive {
		overflow := active[l.MaxActive:]
		active = active[:l.MaxActive]
		out.Overflowed = len(overflow)
		// Oldest overflow is archived first so the archive stays append-ordered.
		for i := len(overflow) - 1; i >= 0; i-- {
			archived = append(archived, overflow[i])
		}
	}

	if l.MaxArchived > 0 && len(archived) > l.MaxArchived {
		drop := len(archived) - l.MaxArchived
		out.Evicted = append([]Alert(nil), archived[:drop]...)
		archived = archived[drop:]
	}

	next := Document{
		Version:        doc.Version,
		Alerts:         active,
		ArchivedAlerts: archived,
		LastUpdated:    now,
	}
	if next.Version == "" {
		next.Version = DocumentVersion
	}
	return next, out
}

// normalize clamps scores and fills a missing severity.
func normalize(a Alert) Alert {
	a.Confidence = record.Clamp(a.Confidence)
	if a.Severity == "" {
		a.Severity = SeverityFor(a.Confidence)
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Title = "Alert"
	}
	if a.Sources == nil {
		a.Sources = []string{}
	}
	a.Factors = append([]Factor(nil), a.Factors...)
	for i := range a.Factors {
		a.Factors[i].Value = record.Clamp(a.Factors[i].Value)
	}
	return a
}

func titleKey(s string) string {
	return record.NormalizeKey(s, record.TitleKeyLen)
}
