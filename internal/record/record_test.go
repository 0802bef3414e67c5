package record

import (
	"strings"
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 0}, {0, 0}, {55, 55}, {100, 100}, {250, 100},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestScoreAccessorsClamp(t *testing.T) {
	recs := []Record{
		JobPosting{SuspicionScore: 140},
		NewsItem{RelevanceScore: -3},
		Organization{RiskScore: 101},
		CommitteeFiling{RiskScore: 70},
	}
	want := []int{100, 0, 100, 70}
	for i, r := range recs {
		if got := r.Score(); got != want[i] {
			t.Errorf("%s Score() = %d, want %d", r.Kind(), got, want[i])
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"  Paid  Protesters\tSpotted ", 60, "paid protesters spotted"},
		{"CITIZENS FOR FREEDOM", 60, "citizens for freedom"},
		{"Ｃｉｔｉｚｅｎｓ", 60, "citizens"}, // fullwidth folds under NFKC
		{"abcdefghij", 4, "abcd"},
		{"", 10, ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in, tt.n); got != tt.want {
			t.Errorf("NormalizeKey(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTruncateGraphemesKeepsClusters(t *testing.T) {
	// Family emoji is one grapheme made of several runes.
	s := "👨‍👩‍👧 rally"
	got := TruncateGraphemes(s, 1)
	if got != "👨‍👩‍👧" {
		t.Errorf("TruncateGraphemes = %q, want the whole emoji cluster", got)
	}
	if TruncateGraphemes(s, 0) != "" {
		t.Error("n=0 should yield empty string")
	}
	if TruncateGraphemes("abc", 10) != "abc" {
		t.Error("short input should be unchanged")
	}
}

func TestIdentityKeyPrefersIdentifiers(t *testing.T) {
	a := Organization{Common: Common{Title: "Citizens for Freedom"}, EIN: "123"}
	b := Organization{Common: Common{Title: "citizens for freedom"}}
	if IdentityKey(a) != "ein:123" {
		t.Errorf("IdentityKey(a) = %q", IdentityKey(a))
	}
	if IdentityKey(b) != "title:citizens for freedom" {
		t.Errorf("IdentityKey(b) = %q", IdentityKey(b))
	}
	c := CommitteeFiling{CommitteeID: "c00123"}
	if IdentityKey(c) != "cid:C00123" {
		t.Errorf("IdentityKey(c) = %q", IdentityKey(c))
	}
	if EntityKey(c.AsEntity()) != IdentityKey(c) {
		t.Error("EntityKey and IdentityKey disagree for committees")
	}
	j := JobPosting{Common: Common{Title: strings.Repeat("x", 80)}}
	if got := IdentityKey(j); got != "title:"+strings.Repeat("x", JobKeyLen) {
		t.Errorf("job title key not truncated to %d: %q", JobKeyLen, got)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"202103", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2019", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2006-01-02T15:04:05Z", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"", time.Time{}},
		{"not a date", time.Time{}},
		{"209913", time.Time{}},
	}
	for _, tt := range tests {
		got := ParseDate(tt.in)
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	if AgeDays(time.Time{}, now) != -1 {
		t.Error("unknown date should be -1")
	}
	if got := AgeDays(now.AddDate(0, 0, -10), now); got != 10 {
		t.Errorf("AgeDays = %d, want 10", got)
	}
	if got := AgeDays(now.Add(time.Hour), now); got != 0 {
		t.Errorf("future date AgeDays = %d, want 0", got)
	}
}

func TestBatchHelpers(t *testing.T) {
	b := CollectedBatch{
		Jobs: []JobPosting{
			{Common: Common{Title: "Canvasser"}, Keywords: []string{"canvass"}},
			{Common: Common{Title: "Monitoring: gig boards"}, Monitoring: true},
		},
		Nonprofits: []Organization{{Common: Common{Title: "A"}, EIN: "1"}},
		Committees: []CommitteeFiling{{Common: Common{Title: "B"}, CommitteeID: "C1"}},
	}
	if b.Len() != 4 {
		t.Errorf("Len() = %d, want 4", b.Len())
	}
	if len(b.RealJobs()) != 1 {
		t.Errorf("RealJobs() = %d, want 1", len(b.RealJobs()))
	}
	ents := b.Entities()
	if len(ents) != 2 || ents[0].Kind != KindOrganization || ents[1].Kind != KindCommittee {
		t.Errorf("Entities() = %+v", ents)
	}

	c := b.Clone()
	c.Jobs[0].Keywords[0] = "changed"
	if b.Jobs[0].Keywords[0] != "canvass" {
		t.Error("Clone aliases keyword slices")
	}
}

func TestAppend(t *testing.T) {
	a := CollectedBatch{Jobs: []JobPosting{{Common: Common{Title: "a"}}}}
	b := CollectedBatch{
		Jobs: []JobPosting{{Common: Common{Title: "b"}}},
		News: []NewsItem{{Common: Common{Title: "n"}}},
	}
	got := a.Append(b)
	if len(got.Jobs) != 2 || got.Jobs[0].Title != "a" || got.Jobs[1].Title != "b" || len(got.News) != 1 {
		t.Fatalf("Append = %+v", got)
	}
	got.Jobs[0].Title = "x"
	if a.Jobs[0].Title != "a" {
		t.Error("Append aliases its receiver")
	}
}

func TestFromEntityRoundTrip(t *testing.T) {
	filed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	org := Organization{
		Common:     Common{Source: "propublica", Title: "Citizens For Freedom", Location: Location{City: "Austin", State: "TX"}, URL: "u"},
		EIN:        "12-3",
		RulingDate: filed,
		RiskScore:  72,
	}
	back, ok := FromEntity(org.AsEntity()).(Organization)
	if !ok {
		t.Fatal("organization entity did not rebuild an Organization")
	}
	if back.EIN != "12-3" || back.Title != org.Title || !back.RulingDate.Equal(filed) || back.RiskScore != 72 {
		t.Errorf("round trip = %+v", back)
	}

	cf := CommitteeFiling{Common: Common{Title: "Voices For Progress"}, CommitteeID: "C009", RiskScore: 55}
	cback, ok := FromEntity(cf.AsEntity()).(CommitteeFiling)
	if !ok || cback.CommitteeID != "C009" || cback.RiskScore != 55 {
		t.Errorf("committee round trip = %+v", cback)
	}
}
