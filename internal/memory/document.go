// Package memory holds the state carried between scans: bounded lists of
// notable records, the event timeline, the last assessment and the slowly
// evolving known patterns.
package memory

import (
	"time"

	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/pattern"
	"github.com/abelbrown/astroscan/internal/record"
	"github.com/abelbrown/astroscan/internal/scoring"
)

// Version is written into every new document.
const Version = "1.0.0"

// List capacities.
const (
	MaxTimeline        = 1000
	MaxFlagged         = 50
	MaxJobs            = 100
	MaxNews            = 50
	MaxAgentNotes      = 100
	MaxAnalysisHistory = 30
	MaxThreeWordNames  = 200
)

// Timeline qualification thresholds.
const (
	TimelineEntityRisk = 60
	TimelineJobScore   = 50
	TimelineNewsScore  = 70
)

// Event is one timeline entry.
type Event struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Kind     record.Kind     `json:"kind"`
	Title    string          `json:"title"`
	Score    int             `json:"score"`
	Source   string          `json:"source"`
	Location record.Location `json:"location"`
	URL      string          `json:"url,omitempty"`
}

// Note is a per-scan summary left by the estimator.
type Note struct {
	Timestamp       time.Time         `json:"timestamp"`
	Summary         string            `json:"summary"`
	Confidence      int               `json:"confidence"`
	Source          confidence.Source `json:"source"`
	Recommendations []string          `json:"recommendations"`
}

// AnalysisSummary records one scan's headline numbers.
type AnalysisSummary struct {
	Timestamp    time.Time         `json:"timestamp"`
	Confidence   int               `json:"confidence"`
	Source       confidence.Source `json:"source"`
	Records      int               `json:"records"`
	Correlations int               `json:"correlations"`
	Anomalies    int               `json:"anomalies"`
	Alerts       int               `json:"alerts"`
}

// KnownPatterns evolve slowly across scans.
type KnownPatterns struct {
	ThreeWordNames     []string `json:"threeWordNames"`
	ShellJurisdictions []string `json:"shellJurisdictions"`
	PRFirms            []string `json:"prFirms"`
}

// Stats is recomputed after every merge.
type Stats struct {
	TimelineEvents     int `json:"timelineEvents"`
	FlaggedOrgs        int `json:"flaggedOrganizations"`
	HighRiskOrgs       int `json:"highRiskOrganizations"`
	JobPostingsTracked int `json:"jobPostingsTracked"`
	SuspiciousJobs     int `json:"suspiciousJobs"`
	NewsTracked        int `json:"newsTracked"`
	StatesTracked      int `json:"statesTracked"`
	ActiveAlerts       int `json:"activeAlerts"`
	ArchivedAlerts     int `json:"archivedAlerts"`
	TotalScans         int `json:"totalScans"`
}

// Document is the persisted memory.json.
type Document struct {
	Version              string              `json:"version"`
	LastScan             time.Time           `json:"lastScan"`
	LastAnalysis         time.Time           `json:"lastAnalysis"`
	TotalScans           int                 `json:"totalScans"`
	SystemConfidence     int                 `json:"systemConfidence"`
	ConfidenceFactors    []confidence.Factor `json:"confidenceFactors"`
	HotStates            []string            `json:"hotStates"`
	Timeline             []Event             `json:"timeline"`
	FlaggedOrganizations []record.Entity     `json:"flaggedOrganizations"`
	JobPostings          []record.JobPosting `json:"jobPostings"`
	RecentNews           []record.NewsItem   `json:"recentNews"`
	AgentNotes           []Note              `json:"agentNotes"`
	KnownPatterns        KnownPatterns       `json:"knownPatterns"`
	JobPostingPatterns   pattern.Baseline    `json:"jobPostingPatterns"`
	AnalysisHistory      []AnalysisSummary   `json:"analysisHistory"`
	Stats                Stats               `json:"stats"`
}

// Default returns the first-run document.
func Default() Document {
	return Document{
		Version:              Version,
		ConfidenceFactors:    []confidence.Factor{},
		HotStates:            []string{},
		Timeline:             []Event{},
		FlaggedOrganizations: []record.Entity{},
		JobPostings:          []record.JobPosting{},
		RecentNews:           []record.NewsItem{},
		AgentNotes:           []Note{},
		KnownPatterns: KnownPatterns{
			ThreeWordNames:     []string{},
			ShellJurisdictions: append([]string(nil), scoring.DefaultShellJurisdictions...),
			PRFirms:            []string{},
		},
		JobPostingPatterns: pattern.Baseline{Cities: map[string]int{}, Keywords: map[string]int{}},
		AnalysisHistory:    []AnalysisSummary{},
	}
}

// fill replaces missing pieces of a loaded document with defaults so older
// or hand-edited files never leave nil maps behind.
func (d Document) fill() Document {
	def := Default()
	if d.Version == "" {
		d.Version = def.Version
	}
	if d.ConfidenceFactors == nil {
		d.ConfidenceFactors = def.ConfidenceFactors
	}
	if d.HotStates == nil {
		d.HotStates = def.HotStates
	}
	if d.Timeline == nil {
		d.Timeline = def.Timeline
	}
	if d.FlaggedOrganizations == nil {
		d.FlaggedOrganizations = def.FlaggedOrganizations
	}
	if d.JobPostings == nil {
		d.JobPostings = def.JobPostings
	}
	if d.RecentNews == nil {
		d.RecentNews = def.RecentNews
	}
	if d.AgentNotes == nil {
		d.AgentNotes = def.AgentNotes
	}
	if d.AnalysisHistory == nil {
		d.AnalysisHistory = def.AnalysisHistory
	}
	if d.KnownPatterns.ThreeWordNames == nil {
		d.KnownPatterns.ThreeWordNames = def.KnownPatterns.ThreeWordNames
	}
	if len(d.KnownPatterns.ShellJurisdictions) == 0 {
		d.KnownPatterns.ShellJurisdictions = def.KnownPatterns.ShellJurisdictions
	}
	if d.KnownPatterns.PRFirms == nil {
		d.KnownPatterns.PRFirms = def.KnownPatterns.PRFirms
	}
	if d.JobPostingPatterns.Cities == nil {
		d.JobPostingPatterns.Cities = map[string]int{}
	}
	if d.JobPostingPatterns.Keywords == nil {
		d.JobPostingPatterns.Keywords = map[string]int{}
	}
	return d
}
