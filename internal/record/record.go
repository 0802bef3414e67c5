// Package record defines the closed set of public-record observations the
// engine works on.
//
// A Record is one of four kinds: job postings, news items, nonprofit
// organizations and campaign-finance committee filings. Adapters in
// internal/fetch convert source payloads into these types, so the scoring and
// correlation code branches on Kind and never on the shape of a payload.
//
// Every score field is bounded to [0,100]. Missing values are the zero value
// of the field (empty string, zero time, 0) and are treated as "no signal".
package record

import (
	"time"
)

// Kind identifies a record variant.
type Kind string

const (
	KindJob          Kind = "job_posting"
	KindNews         Kind = "news"
	KindOrganization Kind = "nonprofit"
	KindCommittee    Kind = "political_committee"
)

// Kinds lists every record kind in scan order.
var Kinds = []Kind{KindJob, KindNews, KindOrganization, KindCommittee}

// Location is a US city/state pair. Either may be empty.
type Location struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// Common holds the fields shared by every record kind.
type Common struct {
	Source     string    `json:"source"`
	Title      string    `json:"title"` // title for jobs/news, name for orgs/committees
	Location   Location  `json:"location"`
	ObservedAt time.Time `json:"observedAt"`
	URL        string    `json:"url"`
}

// Record is implemented by the four record variants.
type Record interface {
	Kind() Kind
	Base() Common
	// Score returns the kind's primary score (suspicion, relevance or risk).
	Score() int
}

// JobPosting is a job listing from a job board or feed.
type JobPosting struct {
	Common
	Company        string   `json:"company"`
	Description    string   `json:"description,omitempty"`
	Keywords       []string `json:"keywords"`
	SuspicionScore int      `json:"suspicionScore"`
	Monitoring     bool     `json:"monitoring,omitempty"` // placeholder, not a real posting
}

func (j JobPosting) Kind() Kind   { return KindJob }
func (j JobPosting) Base() Common { return j.Common }
func (j JobPosting) Score() int   { return Clamp(j.SuspicionScore) }

// NewsItem is a news search hit.
type NewsItem struct {
	Common
	Snippet        string `json:"snippet,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
	Query          string `json:"query"`
	RelevanceScore int    `json:"relevanceScore"`
}

func (n NewsItem) Kind() Kind   { return KindNews }
func (n NewsItem) Base() Common { return n.Common }
func (n NewsItem) Score() int   { return Clamp(n.RelevanceScore) }

// Organization is a tax-exempt organization filing (501(c)(4) and similar).
type Organization struct {
	Common
	EIN        string    `json:"ein"`
	RulingDate time.Time `json:"rulingDate"`
	Revenue    float64   `json:"revenue"`
	RiskScore  int       `json:"riskScore"`
}

func (o Organization) Kind() Kind   { return KindOrganization }
func (o Organization) Base() Common { return o.Common }
func (o Organization) Score() int   { return Clamp(o.RiskScore) }

// CommitteeFiling is a campaign-finance committee registration.
type CommitteeFiling struct {
	Common
	CommitteeID   string    `json:"committeeId"`
	FirstFileDate time.Time `json:"firstFileDate"`
	CommitteeType string    `json:"committeeType"`
	Disbursements float64   `json:"disbursements"`
	RiskScore     int       `json:"riskScore"`
}

func (c CommitteeFiling) Kind() Kind   { return KindCommittee }
func (c CommitteeFiling) Base() Common { return c.Common }
func (c CommitteeFiling) Score() int   { return Clamp(c.RiskScore) }

// Entity is the organization-shaped view shared by nonprofits and committees.
// The correlator and memory treat both as "organizations".
type Entity struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"` // EIN or committee id, may be empty
	Name      string    `json:"name"`
	Location  Location  `json:"location"`
	FiledAt   time.Time `json:"filedAt"`
	RiskScore int       `json:"riskScore"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
}

// AsEntity converts an organization into its entity view.
func (o Organization) AsEntity() Entity {
	return Entity{
		Kind:      KindOrganization,
		ID:        o.EIN,
		Name:      o.Title,
		Location:  o.Location,
		FiledAt:   o.RulingDate,
		RiskScore: Clamp(o.RiskScore),
		Source:    o.Source,
		URL:       o.URL,
	}
}

// AsEntity converts a committee filing into its entity view.
func (c CommitteeFiling) AsEntity() Entity {
	return Entity{
		Kind:      KindCommittee,
		ID:        c.CommitteeID,
		Name:      c.Title,
		Location:  c.Location,
		FiledAt:   c.FirstFileDate,
		RiskScore: Clamp(c.RiskScore),
		Source:    c.Source,
		URL:       c.URL,
	}
}

// FromEntity rebuilds a record from its entity view. Fields the entity
// does not carry (revenue, committee type) are left zero.
func FromEntity(e Entity) Record {
	common := Common{
		Source:     e.Source,
		Title:      e.Name,
		Location:   e.Location,
		ObservedAt: e.FiledAt,
		URL:        e.URL,
	}
	if e.Kind == KindCommittee {
		return CommitteeFiling{Common: common, CommitteeID: e.ID, FirstFileDate: e.FiledAt, RiskScore: e.RiskScore}
	}
	return Organization{Common: common, EIN: e.ID, RulingDate: e.FiledAt, RiskScore: e.RiskScore}
}

// Clamp bounds a score to [0,100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampRange bounds v to [lo,hi].
func ClampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
