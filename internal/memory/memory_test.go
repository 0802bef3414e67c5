package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/record"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func sampleBatch() record.CollectedBatch {
	filed := testNow.AddDate(0, -2, 0)
	return record.CollectedBatch{
		Nonprofits: []record.Organization{
			{Common: record.Common{Title: "Citizens for Freedom", Location: record.Location{State: "TX"}}, EIN: "11", RulingDate: filed, RiskScore: 75},
			{Common: record.Common{Title: "Save Our Streets", Location: record.Location{State: "OH"}}, EIN: "12", RulingDate: filed, RiskScore: 80},
			{Common: record.Common{Title: "Local Garden Club"}, EIN: "13", RiskScore: 10},
		},
		Committees: []record.CommitteeFiling{
			{Common: record.Common{Title: "Committee for Action"}, CommitteeID: "c001", RiskScore: 65},
		},
		Jobs: []record.JobPosting{
			{Common: record.Common{Title: "Paid protest, same day pay", URL: "https://j/1", ObservedAt: testNow}, SuspicionScore: 75},
			{Common: record.Common{Title: "Canvasser"}, SuspicionScore: 10},
			{Common: record.Common{Title: "Monitoring: Houston"}, Monitoring: true},
		},
		News: []record.NewsItem{
			{Common: record.Common{Title: "Paid protesters spotted", URL: "https://n/1", ObservedAt: testNow}, RelevanceScore: 100},
			{Common: record.Common{Title: "Town hall recap", URL: "https://n/2", ObservedAt: testNow}, RelevanceScore: 50},
		},
	}
}

func sampleUpdate() Update {
	return Update{
		Batch: sampleBatch(),
		Assessment: confidence.Assessment{
			Confidence:      70,
			Factors:         []confidence.Factor{{Factor: "News Coverage", Score: 60}},
			HotStates:       []string{"TX"},
			Summary:         "Moderate activity.",
			Recommendations: []string{"Watch TX"},
			Source:          confidence.SourceFallback,
		},
		Now: testNow,
	}
}

type lists struct {
	Timeline []Event
	Flagged  []record.Entity
	Jobs     []record.JobPosting
	News     []record.NewsItem
	Names    []string
}

func listsOf(d Document) lists {
	return lists{d.Timeline, d.FlaggedOrganizations, d.JobPostings, d.RecentNews, d.KnownPatterns.ThreeWordNames}
}

func TestMergeIdempotent(t *testing.T) {
	once := Merge(Default(), sampleUpdate())
	twice := Merge(once, sampleUpdate())

	if diff := cmp.Diff(listsOf(once), listsOf(twice)); diff != "" {
		t.Errorf("second merge changed lists (-once +twice):\n%s", diff)
	}
	if twice.TotalScans != 2 {
		t.Errorf("TotalScans = %d, want 2", twice.TotalScans)
	}
}

func TestMergeLists(t *testing.T) {
	d := Merge(Default(), sampleUpdate())

	if len(d.JobPostings) != 2 {
		t.Fatalf("jobs = %d, want 2 (monitoring excluded)", len(d.JobPostings))
	}
	if d.JobPostings[0].SuspicionScore != 75 {
		t.Errorf("jobs not sorted by suspicion: %+v", d.JobPostings)
	}
	if d.FlaggedOrganizations[0].Name != "Save Our Streets" {
		t.Errorf("flagged[0] = %s", d.FlaggedOrganizations[0].Name)
	}

	// orgs 75, 80, committee 65, job 75, news 100 qualify
	if len(d.Timeline) != 5 {
		t.Errorf("timeline = %d events, want 5: %+v", len(d.Timeline), d.Timeline)
	}
	for i := 1; i < len(d.Timeline); i++ {
		if d.Timeline[i].Date.After(d.Timeline[i-1].Date) {
			t.Errorf("timeline not sorted desc at %d", i)
		}
	}
	if d.SystemConfidence != 70 || len(d.AgentNotes) != 1 || len(d.AnalysisHistory) != 1 {
		t.Errorf("assessment not recorded: %+v", d)
	}
	want := []string{"Citizens for Freedom", "Save Our Streets"}
	if diff := cmp.Diff(want, d.KnownPatterns.ThreeWordNames); diff != "" {
		t.Errorf("three-word names (-want +got):\n%s", diff)
	}
}

func TestMergeDedupeIdentifierFirst(t *testing.T) {
	org := func(ein, name, state string, risk int) record.Organization {
		return record.Organization{Common: record.Common{Title: name, Location: record.Location{State: state}}, EIN: ein, RiskScore: risk}
	}
	tests := []struct {
		name  string
		first []record.Organization
		next  []record.Organization
		want  []string // surviving ids, risk order
	}{
		{
			name:  "distinct EINs with the same name survive",
			first: []record.Organization{org("111111111", "Citizens for Freedom", "TX", 70)},
			next:  []record.Organization{org("222222222", "Citizens  for FREEDOM", "OH", 60)},
			want:  []string{"111111111", "222222222"},
		},
		{
			name:  "same EIN keeps the newest copy",
			first: []record.Organization{org("111111111", "Citizens for Freedom", "TX", 70)},
			next:  []record.Organization{org("111111111", "Citizens for Freedom Inc", "TX", 90)},
			want:  []string{"111111111"},
		},
		{
			name:  "no EIN dedupes by name",
			first: []record.Organization{org("", "Citizens for Freedom", "TX", 70)},
			next:  []record.Organization{org("", "CITIZENS  FOR FREEDOM", "TX", 90)},
			want:  []string{""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Merge(Default(), Update{Now: testNow, Batch: record.CollectedBatch{Nonprofits: tt.first}})
			d = Merge(d, Update{Now: testNow.Add(time.Hour), Batch: record.CollectedBatch{Nonprofits: tt.next}})

			var got []string
			for _, e := range d.FlaggedOrganizations {
				got = append(got, e.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("flagged ids (-want +got):\n%s", diff)
			}
			if len(tt.want) == 1 && d.FlaggedOrganizations[0].RiskScore != 90 {
				t.Errorf("newest record should win, got %+v", d.FlaggedOrganizations[0])
			}
		})
	}
}

func TestMergeNewsDedupeByURL(t *testing.T) {
	b := record.CollectedBatch{News: []record.NewsItem{
		{Common: record.Common{Title: "Rally draws crowd", URL: "https://a/1"}, RelevanceScore: 60},
		{Common: record.Common{Title: "Rally draws crowd", URL: "https://b/2"}, RelevanceScore: 60},
		{Common: record.Common{Title: "Town hall recap"}, RelevanceScore: 40},
		{Common: record.Common{Title: "town hall  RECAP"}, RelevanceScore: 40},
	}}
	d := Merge(Default(), Update{Now: testNow, Batch: b})
	if len(d.RecentNews) != 3 {
		t.Errorf("news = %d, want 3 (distinct URLs kept, URL-less deduped by title)", len(d.RecentNews))
	}
}

func TestMergeTimelineKeepsFirstSeenDate(t *testing.T) {
	first := sampleUpdate()
	d := Merge(Default(), first)

	later := sampleUpdate()
	later.Now = testNow.Add(72 * time.Hour)
	for i := range later.Batch.Jobs {
		later.Batch.Jobs[i].ObservedAt = later.Now
	}
	for i := range later.Batch.News {
		later.Batch.News[i].ObservedAt = later.Now
	}
	d2 := Merge(d, later)

	if diff := cmp.Diff(d.Timeline, d2.Timeline); diff != "" {
		t.Errorf("re-observed events moved (-first +second):\n%s", diff)
	}
	for _, e := range d2.Timeline {
		if e.Date.After(testNow) {
			t.Errorf("event %q dated %v, want first-seen date", e.Title, e.Date)
		}
	}
}

func TestMergeCapsHold(t *testing.T) {
	d := Default()
	for run := 0; run < 15; run++ {
		var b record.CollectedBatch
		for i := 0; i < 120; i++ {
			id := fmt.Sprintf("%d-%d", run, i)
			b.Nonprofits = append(b.Nonprofits, record.Organization{Common: record.Common{Title: "Org " + id}, EIN: id, RiskScore: 60 + i%40})
			b.Jobs = append(b.Jobs, record.JobPosting{Common: record.Common{Title: "Job " + id}, SuspicionScore: 50 + i%50})
			b.News = append(b.News, record.NewsItem{Common: record.Common{Title: "News " + id, URL: "https://n/" + id}, RelevanceScore: 70 + i%30})
		}
		d = Merge(d, Update{Batch: b, Now: testNow.Add(time.Duration(run) * time.Hour)})

		if len(d.FlaggedOrganizations) > MaxFlagged || len(d.JobPostings) > MaxJobs ||
			len(d.RecentNews) > MaxNews || len(d.Timeline) > MaxTimeline ||
			len(d.AgentNotes) > MaxAgentNotes || len(d.AnalysisHistory) > MaxAnalysisHistory ||
			len(d.KnownPatterns.ThreeWordNames) > MaxThreeWordNames {
			t.Fatalf("run %d: caps exceeded: flagged=%d jobs=%d news=%d timeline=%d",
				run, len(d.FlaggedOrganizations), len(d.JobPostings), len(d.RecentNews), len(d.Timeline))
		}
	}
	if len(d.Timeline) != MaxTimeline {
		t.Errorf("timeline = %d, want full at %d", len(d.Timeline), MaxTimeline)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	prior := Merge(Default(), sampleUpdate())
	snapshot := listsOf(prior)
	_ = Merge(prior, Update{Now: testNow, Batch: record.CollectedBatch{
		News: []record.NewsItem{{Common: record.Common{Title: "Fresh", URL: "https://n/9"}, RelevanceScore: 100}},
	}})
	if diff := cmp.Diff(snapshot, listsOf(prior)); diff != "" {
		t.Errorf("prior document mutated:\n%s", diff)
	}
}

func TestRecomputeStats(t *testing.T) {
	d := Merge(Default(), sampleUpdate())
	alerts := curation.Document{Alerts: make([]curation.Alert, 3), ArchivedAlerts: make([]curation.Alert, 2)}
	d = RecomputeStats(d, alerts)

	want := Stats{
		TimelineEvents:     5,
		FlaggedOrgs:        4,
		HighRiskOrgs:       3,
		JobPostingsTracked: 2,
		SuspiciousJobs:     1,
		NewsTracked:        2,
		StatesTracked:      2,
		ActiveAlerts:       3,
		ArchivedAlerts:     2,
		TotalScans:         1,
	}
	if diff := cmp.Diff(want, d.Stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	f := Files{Dir: t.TempDir()}
	d, err := f.LoadMemory(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), d); diff != "" {
		t.Errorf("defaults (-want +got):\n%s", diff)
	}
	a, err := f.LoadAlerts(testNow)
	if err != nil || a.Version != curation.DocumentVersion || a.Alerts == nil {
		t.Errorf("alerts = %+v err=%v", a, err)
	}
}

func TestLoadUnreadableReturnsDefaults(t *testing.T) {
	f := Files{Dir: t.TempDir()}
	// A directory in place of the file fails the read with something other
	// than not-found, even when running as root.
	for _, p := range []string{f.MemoryPath(), f.AlertsPath()} {
		if err := os.Mkdir(p, 0755); err != nil {
			t.Fatal(err)
		}
	}
	d, err := f.LoadMemory(testNow)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if diff := cmp.Diff(Default(), d); diff != "" {
		t.Errorf("defaults (-want +got):\n%s", diff)
	}
	a, err := f.LoadAlerts(testNow)
	if err != nil || len(a.Alerts) != 0 {
		t.Errorf("alerts = %+v err=%v", a, err)
	}
	if fi, err := os.Stat(f.MemoryPath()); err != nil || !fi.IsDir() {
		t.Errorf("unreadable path should be left in place: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := Files{Dir: filepath.Join(t.TempDir(), "data")}
	want := RecomputeStats(Merge(Default(), sampleUpdate()), curation.NewDocument())
	if err := f.SaveMemory(want); err != nil {
		t.Fatal(err)
	}
	got, err := f.LoadMemory(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(f.Dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadCorruptPreservesFile(t *testing.T) {
	dir := t.TempDir()
	f := Files{Dir: dir}
	if err := os.WriteFile(f.MemoryPath(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := f.LoadMemory(testNow)
	if err != nil {
		t.Fatalf("corrupt file should not be an error: %v", err)
	}
	if d.Version != Version || d.TotalScans != 0 {
		t.Errorf("expected defaults, got %+v", d)
	}

	aside := f.MemoryPath() + ".corrupt-20261015T120000Z"
	data, err := os.ReadFile(aside)
	if err != nil {
		t.Fatalf("corrupt file not preserved: %v", err)
	}
	if string(data) != "{not json" {
		t.Errorf("preserved content = %q", data)
	}
	if _, err := os.Stat(f.MemoryPath()); !os.IsNotExist(err) {
		t.Error("corrupt file should have been moved")
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	f := Files{Dir: t.TempDir()}
	if err := os.WriteFile(f.MemoryPath(), []byte(`{"totalScans":4,"timeline":null}`), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := f.LoadMemory(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalScans != 4 || d.Timeline == nil || d.JobPostingPatterns.Cities == nil {
		t.Errorf("fill failed: %+v", d)
	}
	if len(d.KnownPatterns.ShellJurisdictions) == 0 {
		t.Error("shell jurisdictions not defaulted")
	}
}
