package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/abelbrown/astroscan/internal/record"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return New(Context{Now: testNow})
}

func org(name, state string, age time.Duration) record.Organization {
	return record.Organization{
		Common:     record.Common{Title: name, Location: record.Location{State: state}},
		RulingDate: testNow.Add(-age),
	}
}

func TestOrganizationScores(t *testing.T) {
	s := newTestScorer()
	day := 24 * time.Hour

	tests := []struct {
		name string
		org  record.Organization
		want int
	}{
		// 15 structure + 20 template + 10 vague + 25 recency + 5 battleground
		{"citizens for freedom", org("Citizens for Freedom", "TX", 90*day), 75},
		// 10 structure + 20 template + 10 vague + 10 vehicle + 25 recency + 5 battleground
		{"americans for liberty fund", org("Americans for Liberty Fund", "TX", 90*day), 80},
		// 10 structure + 20 template + 10 vague + 25 recency + 5 battleground
		{"save our streets now", org("Save Our Streets Now", "TX", 90*day), 70},
		// 15 structure + 15 shell jurisdiction, no date
		{"shell only", record.Organization{Common: record.Common{Title: "Blue Ridge Holdings", Location: record.Location{State: "DE"}}}, 30},
		// 3-5 years old hits the second recency tier
		{"older filing", org("Regional Water Board", "OR", 3*365*day), 30},
		{"empty", record.Organization{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.org); got != tt.want {
				_, hits := s.Explain(tt.org)
				t.Errorf("Score() = %d, want %d (hits %+v)", got, tt.want, hits)
			}
		})
	}
}

func TestOrganizationRevenueScale(t *testing.T) {
	s := newTestScorer()
	o := record.Organization{Common: record.Common{Title: "Harbor Light Partners"}, Revenue: 2_500_000}
	small := o
	small.Revenue = 10
	if s.Score(o)-s.Score(small) != 15 {
		t.Errorf("revenue bump = %d, want 15", s.Score(o)-s.Score(small))
	}
	o.Revenue = -5_000_000
	if got := s.Score(o); got < 0 || got > 100 {
		t.Errorf("negative revenue score out of range: %d", got)
	}
}

func TestShellJurisdictionsFromContext(t *testing.T) {
	s := New(Context{Now: testNow, ShellJurisdictions: []string{"SD"}})
	o := record.Organization{Common: record.Common{Title: "Prairie Holdings", Location: record.Location{State: "sd"}}}
	_, hits := s.Explain(o)
	found := false
	for _, h := range hits {
		if h.Family == FamilyJurisdiction {
			found = true
		}
	}
	if !found {
		t.Errorf("expected shell jurisdiction hit, got %+v", hits)
	}
}

func TestCommitteeScores(t *testing.T) {
	s := newTestScorer()
	c := record.CommitteeFiling{
		Common:        record.Common{Title: "Americans for Prosperity Action", Location: record.Location{State: "VA"}},
		CommitteeType: "o",
		FirstFileDate: testNow.AddDate(0, -6, 0),
		Disbursements: 2_000_000,
	}
	// phrase 15 + structure 15 + vague 10 + vehicle 10 + type 15 + recency 20 + scale 15
	if got := s.Score(c); got != 100 {
		_, hits := s.Explain(c)
		t.Errorf("Score() = %d, want 100 (hits %+v)", got, hits)
	}

	plain := record.CommitteeFiling{Common: record.Common{Title: "Smith for Senate 2026 Campaign Committee"}, CommitteeType: "H"}
	if got := s.Score(plain); got != 0 {
		_, hits := s.Explain(plain)
		t.Errorf("plain committee Score() = %d, want 0 (hits %+v)", got, hits)
	}
}

func TestJobTierCaps(t *testing.T) {
	s := newTestScorer()
	j := record.JobPosting{
		Common:      record.Common{Title: "Paid protest - hold signs, same day pay"},
		Description: "Cash daily. Immediate start, no experience.",
	}
	_, hits := s.Explain(j)
	high := 0
	for _, h := range hits {
		if h.Family == FamilyHighTier {
			high += h.Points
		}
	}
	if high != 50 {
		t.Errorf("high tier total = %d, want capped at 50", high)
	}

	urgent := record.JobPosting{Common: record.Common{Title: "Urgent! Now hiring ASAP, start today, immediate openings today"}}
	_, hits = s.Explain(urgent)
	sum := 0
	for _, h := range hits {
		if h.Family == FamilyUrgency {
			sum += h.Points
		}
	}
	if sum != 20 {
		t.Errorf("urgency total = %d, want capped at 20", sum)
	}
}

func TestJobMediumTier(t *testing.T) {
	s := newTestScorer()
	j := record.JobPosting{Common: record.Common{Title: "Field Canvasser"}, Description: "Door-to-door petition work for a political campaign"}
	// canvass, petition, political, campaign = 40 capped to 30
	if got := s.Score(j); got != 30 {
		t.Errorf("Score() = %d, want 30", got)
	}
}

func TestNewsScores(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		name string
		item record.NewsItem
		want int
	}{
		{"no title", record.NewsItem{Snippet: "paid protest"}, 10},
		{"plain", record.NewsItem{Common: record.Common{Title: "City council meets"}}, 50},
		// base 50 + paid 15 + protest 15 + high value 20
		{"paid protesters", record.NewsItem{Common: record.Common{Title: "Paid protesters spotted downtown"}}, 100},
		{"snippet only", record.NewsItem{Common: record.Common{Title: "Rally draws crowd"}, Snippet: "organizers deny it was fake"}, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.item); got != tt.want {
				_, hits := s.Explain(tt.item)
				t.Errorf("Score() = %d, want %d (hits %+v)", got, tt.want, hits)
			}
		})
	}
}

func TestFirstMatchFamilyCountsOnce(t *testing.T) {
	tbl := Table{
		Kind: record.KindNews,
		Rules: []Rule{
			{Family: "f", Name: "a", Points: 30, Match: func(record.Record, Context) bool { return true }},
			{Family: "f", Name: "b", Points: 40, Match: func(record.Record, Context) bool { return true }},
			{Family: "g", Name: "c", Points: 200, Match: func(record.Record, Context) bool { return true }},
		},
	}
	got, hits := tbl.Evaluate(record.NewsItem{}, Context{})
	if got != 100 {
		t.Errorf("total = %d, want clamped 100", got)
	}
	if len(hits) != 2 || hits[0].Rule != "a" {
		t.Errorf("hits = %+v, want a then c", hits)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := newTestScorer()
	in := record.CollectedBatch{
		Jobs: []record.JobPosting{
			{Common: record.Common{Title: "Paid protest gig"}},
			{Common: record.Common{Title: "Monitoring: paid protest boards"}, Monitoring: true},
		},
		News:       []record.NewsItem{{Common: record.Common{Title: "Paid protesters"}}},
		Nonprofits: []record.Organization{org("Citizens for Freedom", "TX", 0)},
		Committees: []record.CommitteeFiling{{Common: record.Common{Title: "Freedom Fund PAC"}}},
	}
	out := s.Apply(in)
	if in.Jobs[0].SuspicionScore != 0 || in.Nonprofits[0].RiskScore != 0 {
		t.Error("Apply mutated its input")
	}
	if out.Jobs[0].SuspicionScore == 0 || out.News[0].RelevanceScore == 0 ||
		out.Nonprofits[0].RiskScore == 0 || out.Committees[0].RiskScore == 0 {
		t.Errorf("Apply left scores unset: %+v", out)
	}
	if out.Jobs[1].SuspicionScore != 0 {
		t.Error("monitoring placeholder should not be scored")
	}
}

func TestScoreBoundedAdversarial(t *testing.T) {
	s := newTestScorer()
	f := gofakeit.New(42)
	junk := []string{
		strings.Repeat("paid protest ", 5000),
		strings.Repeat("👨‍👩‍👧", 300),
		"\x00\x01‮ citizens for freedom ​",
		"Ｃｉｔｉｚｅｎｓ ｆｏｒ Ｆｒｅｅｄｏｍ",
	}
	for i := 0; i < 200; i++ {
		junk = append(junk, f.Sentence(f.Number(0, 40))+" "+f.Emoji())
	}

	for _, text := range junk {
		recs := []record.Record{
			record.JobPosting{Common: record.Common{Title: text}, Description: text},
			record.NewsItem{Common: record.Common{Title: text}, Snippet: text},
			record.Organization{
				Common:     record.Common{Title: text, Location: record.Location{State: f.StateAbr()}},
				RulingDate: f.Date(),
				Revenue:    f.Float64Range(-1e12, 1e12),
			},
			record.CommitteeFiling{
				Common:        record.Common{Title: text, Location: record.Location{State: text}},
				CommitteeType: text,
				FirstFileDate: testNow.AddDate(f.Number(-50, 50), 0, 0),
				Disbursements: f.Float64Range(-1e12, 1e12),
			},
		}
		for _, r := range recs {
			if got := s.Score(r); got < 0 || got > 100 {
				t.Fatalf("%s score %d out of [0,100] for %q", r.Kind(), got, text[:min(len(text), 40)])
			}
		}
	}
}

func TestNilRecord(t *testing.T) {
	if got := newTestScorer().Score(nil); got != 0 {
		t.Errorf("Score(nil) = %d", got)
	}
}
