package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/pattern"
	"github.com/abelbrown/astroscan/internal/record"
)

// Update is everything one scan contributes to memory.
type Update struct {
	Batch        record.CollectedBatch // scored
	Patterns     pattern.Summary
	Assessment   confidence.Assessment
	Correlations int
	Anomalies    int
	Now          time.Time
}

// Merge folds u into doc and returns the new document. doc is not modified.
// List contents are idempotent: merging the same update twice yields the
// same lists as merging it once.
func Merge(doc Document, u Update) Document {
	doc = doc.fill()
	out := doc
	b := u.Batch

	out.FlaggedOrganizations = mergeEntities(b.Entities(), doc.FlaggedOrganizations)
	out.JobPostings = mergeJobs(b.RealJobs(), doc.JobPostings)
	out.RecentNews = mergeNews(b.News, doc.RecentNews)
	out.Timeline = mergeTimeline(timelineEvents(b, u.Now), doc.Timeline)

	a := u.Assessment
	out.SystemConfidence = a.Confidence
	out.ConfidenceFactors = append([]confidence.Factor{}, a.Factors...)
	out.HotStates = append([]string{}, a.HotStates...)

	out.AgentNotes = append(append([]Note{}, doc.AgentNotes...), Note{
		Timestamp:       u.Now,
		Summary:         a.Summary,
		Confidence:      a.Confidence,
		Source:          a.Source,
		Recommendations: append([]string{}, a.Recommendations...),
	})
	out.AgentNotes = tail(out.AgentNotes, MaxAgentNotes)

	out.AnalysisHistory = append(append([]AnalysisSummary{}, doc.AnalysisHistory...), AnalysisSummary{
		Timestamp:    u.Now,
		Confidence:   a.Confidence,
		Source:       a.Source,
		Records:      b.Len(),
		Correlations: u.Correlations,
		Anomalies:    u.Anomalies,
		Alerts:       len(a.Alerts),
	})
	out.AnalysisHistory = tail(out.AnalysisHistory, MaxAnalysisHistory)

	out.KnownPatterns = learnPatterns(doc.KnownPatterns, b.Entities())

	if len(b.RealJobs()) > 0 {
		out.JobPostingPatterns = pattern.BaselineFrom(u.Patterns.Jobs, u.Now)
	}

	out.TotalScans = doc.TotalScans + 1
	out.LastScan = u.Now
	out.LastAnalysis = u.Now
	return out
}

// RecomputeStats derives Stats from the current lists and alerts.
func RecomputeStats(doc Document, alerts curation.Document) Document {
	s := Stats{
		TimelineEvents:     len(doc.Timeline),
		FlaggedOrgs:        len(doc.FlaggedOrganizations),
		JobPostingsTracked: len(doc.JobPostings),
		NewsTracked:        len(doc.RecentNews),
		ActiveAlerts:       len(alerts.Alerts),
		ArchivedAlerts:     len(alerts.ArchivedAlerts),
		TotalScans:         doc.TotalScans,
	}
	states := map[string]bool{}
	for _, e := range doc.FlaggedOrganizations {
		if e.RiskScore >= 50 {
			s.HighRiskOrgs++
		}
		if st := strings.ToUpper(strings.TrimSpace(e.Location.State)); st != "" {
			states[st] = true
		}
	}
	for _, j := range doc.JobPostings {
		if j.SuspicionScore >= TimelineJobScore {
			s.SuspiciousJobs++
		}
		if st := strings.ToUpper(strings.TrimSpace(j.Location.State)); st != "" {
			states[st] = true
		}
	}
	s.StatesTracked = len(states)
	doc.Stats = s
	return doc
}

// dedupe keeps the first item for each key. Items with an empty key are
// always kept.
func dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k != "" {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, it)
	}
	return out
}

func titleKey(s string) string {
	k := record.NormalizeKey(s, record.TitleKeyLen)
	if k == "" {
		return ""
	}
	return "title:" + k
}

func mergeEntities(fresh, prior []record.Entity) []record.Entity {
	all := append(append([]record.Entity{}, fresh...), prior...)
	all = dedupe(all, record.EntityKey)
	sort.SliceStable(all, func(i, j int) bool { return all[i].RiskScore > all[j].RiskScore })
	return head(all, MaxFlagged)
}

func mergeJobs(fresh, prior []record.JobPosting) []record.JobPosting {
	all := make([]record.JobPosting, 0, len(fresh)+len(prior))
	for _, j := range append(append([]record.JobPosting{}, fresh...), prior...) {
		if !j.Monitoring {
			all = append(all, j)
		}
	}
	all = dedupe(all, func(j record.JobPosting) string { return record.IdentityKey(j) })
	sort.SliceStable(all, func(i, j int) bool { return all[i].SuspicionScore > all[j].SuspicionScore })
	return head(all, MaxJobs)
}

func mergeNews(fresh, prior []record.NewsItem) []record.NewsItem {
	all := append(append([]record.NewsItem{}, fresh...), prior...)
	all = dedupe(all, func(n record.NewsItem) string { return record.IdentityKey(n) })
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].RelevanceScore != all[j].RelevanceScore {
			return all[i].RelevanceScore > all[j].RelevanceScore
		}
		return all[i].ObservedAt.After(all[j].ObservedAt)
	})
	return head(all, MaxNews)
}

// mergeTimeline prefers the fresh copy of an event but keeps the earliest
// date seen for its title.
func mergeTimeline(fresh, prior []Event) []Event {
	first := make(map[string]time.Time, len(prior))
	for _, e := range prior {
		k := titleKey(e.Title)
		if d, ok := first[k]; k != "" && (!ok || e.Date.Before(d)) {
			first[k] = e.Date
		}
	}
	all := make([]Event, 0, len(fresh)+len(prior))
	for _, e := range fresh {
		if d, ok := first[titleKey(e.Title)]; ok && !d.IsZero() && d.Before(e.Date) {
			e.Date = d
		}
		all = append(all, e)
	}
	all = append(all, prior...)
	all = dedupe(all, func(e Event) string { return titleKey(e.Title) })
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	return head(all, MaxTimeline)
}

// timelineEvents turns qualifying records into events.
func timelineEvents(b record.CollectedBatch, now time.Time) []Event {
	var evs []Event
	add := func(r record.Record, date time.Time) {
		c := r.Base()
		if strings.TrimSpace(c.Title) == "" {
			return
		}
		if date.IsZero() {
			date = c.ObservedAt
		}
		if date.IsZero() {
			date = now
		}
		evs = append(evs, Event{
			ID:       "evt_" + record.HashKey(string(r.Kind())+"|"+record.NormalizeKey(c.Title, record.TitleKeyLen)),
			Date:     date,
			Kind:     r.Kind(),
			Title:    c.Title,
			Score:    r.Score(),
			Source:   c.Source,
			Location: c.Location,
			URL:      c.URL,
		})
	}
	for _, o := range b.Nonprofits {
		if o.Score() >= TimelineEntityRisk {
			add(o, o.RulingDate)
		}
	}
	for _, c := range b.Committees {
		if c.Score() >= TimelineEntityRisk {
			add(c, c.FirstFileDate)
		}
	}
	for _, j := range b.RealJobs() {
		if j.Score() >= TimelineJobScore {
			add(j, time.Time{})
		}
	}
	for _, n := range b.News {
		if n.Score() >= TimelineNewsScore {
			add(n, time.Time{})
		}
	}
	return evs
}

// learnPatterns records three-word names of high-risk entities.
func learnPatterns(kp KnownPatterns, ents []record.Entity) KnownPatterns {
	names := append([]string{}, kp.ThreeWordNames...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[record.NormalizeKey(n, record.TitleKeyLen)] = true
	}
	for _, e := range ents {
		if e.RiskScore < 70 || len(strings.Fields(e.Name)) != 3 {
			continue
		}
		k := record.NormalizeKey(e.Name, record.TitleKeyLen)
		if seen[k] {
			continue
		}
		seen[k] = true
		names = append(names, e.Name)
	}
	kp.ThreeWordNames = tail(names, MaxThreeWordNames)
	kp.ShellJurisdictions = append([]string{}, kp.ShellJurisdictions...)
	kp.PRFirms = append([]string{}, kp.PRFirms...)
	return kp
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func tail[T any](s []T, n int) []T {
	if len(s) > n {
		return append([]T{}, s[len(s)-n:]...)
	}
	return s
}
