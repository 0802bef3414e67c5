// Package pattern scans same-kind record batches for statistical and lexical
// patterns (spikes against a historical baseline, naming conventions,
// geographic and formation clustering) and turns the ones that cross fixed
// thresholds into anomalies.
package pattern

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/record"
)

// Baseline holds historical job counts used for spike detection.
// It is persisted in memory.jobPostingPatterns.
type Baseline struct {
	Cities    map[string]int `json:"cities"`
	Keywords  map[string]int `json:"keywords"`
	UpdatedAt time.Time      `json:"updatedAt,omitempty"`
}

// Spike is a key whose current count is more than twice its historical count.
type Spike struct {
	Dimension   string  `json:"dimension"` // city or keyword
	Key         string  `json:"key"`
	Current     int     `json:"current"`
	Historical  int     `json:"historical"`
	IncreasePct float64 `json:"increasePct"`
}

// JobPatterns summarizes a job batch.
type JobPatterns struct {
	Cities   map[string]int `json:"cities"`
	States   map[string]int `json:"states"`
	Keywords map[string]int `json:"keywords"`
	Spikes   []Spike        `json:"spikes"`
	Total    int            `json:"total"`
}

// NameFlag is an entity whose name matched a suspicious naming pattern.
type NameFlag struct {
	Kind    record.Kind `json:"kind"`
	Name    string      `json:"name"`
	ID      string      `json:"id,omitempty"`
	State   string      `json:"state,omitempty"`
	Pattern string      `json:"pattern"`
}

// Cluster is a group of entities sharing a state or formation year.
type Cluster struct {
	Key   string   `json:"key"`
	Count int      `json:"count"`
	Names []string `json:"names"` // first five
}

// OrgPatterns summarizes a nonprofit batch.
type OrgPatterns struct {
	NameFlags         []NameFlag      `json:"nameFlags"`
	HighRisk          []record.Entity `json:"highRisk"`
	GeoClusters       []Cluster       `json:"geoClusters"`
	FormationClusters []Cluster       `json:"formationClusters"`
}

// CommitteePatterns summarizes a committee batch.
type CommitteePatterns struct {
	NewCommittees []record.Entity          `json:"newCommittees"`
	LargeSpenders []record.CommitteeFiling `json:"largeSpenders"`
	NameFlags     []NameFlag               `json:"nameFlags"`
	HighRisk      []record.Entity          `json:"highRisk"`
}

// NewsPatterns summarizes a news batch.
type NewsPatterns struct {
	Queries      map[string]int `json:"queries"`
	Keywords     map[string]int `json:"keywords"`
	PaidMentions int            `json:"paidMentions"`
}

// Summary is the detector output for a whole batch.
type Summary struct {
	Jobs       JobPatterns       `json:"jobs"`
	Orgs       OrgPatterns       `json:"orgs"`
	Committees CommitteePatterns `json:"committees"`
	News       NewsPatterns      `json:"news"`
}

// Options tunes detector thresholds.
type Options struct {
	Now               time.Time
	MinClusterSize    int     // default 3
	HighRiskThreshold int     // default 50
	NewCommitteeDays  int     // default 90
	LargeSpend        float64 // default 100000
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = 3
	}
	if o.HighRiskThreshold <= 0 {
		o.HighRiskThreshold = 50
	}
	if o.NewCommitteeDays <= 0 {
		o.NewCommitteeDays = 90
	}
	if o.LargeSpend <= 0 {
		o.LargeSpend = 100_000
	}
	return o
}

// namePatterns are checked in order; the first match flags the name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[a-z]+ [a-z]+ [a-z]+$`),
	regexp.MustCompile(`(?i)\b(keep|save|protect)\s+(our\s+)?\w+\s+(safe|now|first)\b`),
	regexp.MustCompile(`(?i)\b(citizens|americans|people|families|voters)\s+(for|against|united|first)\b`),
	regexp.MustCompile(`(?i)\b\w+\s+(justice|action|voice|voices)\s+(now|today)\b`),
}

var trackedNewsKeywords = []string{"paid", "protest", "astroturf", "fake", "manufactured", "crowds on demand"}

// Detector finds patterns in record batches. It never mutates its input.
type Detector struct {
	opts     Options
	baseline Baseline
}

// NewDetector returns a detector comparing job counts against baseline.
func NewDetector(baseline Baseline, opts Options) *Detector {
	return &Detector{opts: opts.withDefaults(), baseline: baseline}
}

// Detect runs every per-kind detector over b.
func (d *Detector) Detect(b record.CollectedBatch) Summary {
	return Summary{
		Jobs:       d.Jobs(b.Jobs),
		Orgs:       d.Organizations(b.Nonprofits),
		Committees: d.Committees(b.Committees),
		News:       d.News(b.News),
	}
}

// Jobs counts real postings by city, state and keyword and reports spikes
// against the baseline.
func (d *Detector) Jobs(jobs []record.JobPosting) JobPatterns {
	p := JobPatterns{
		Cities:   make(map[string]int),
		States:   make(map[string]int),
		Keywords: make(map[string]int),
	}
	for _, j := range jobs {
		if j.Monitoring {
			continue
		}
		p.Total++
		if c := strings.TrimSpace(j.Location.City); c != "" {
			p.Cities[c]++
		}
		if s := strings.TrimSpace(j.Location.State); s != "" {
			p.States[strings.ToUpper(s)]++
		}
		for _, k := range j.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				p.Keywords[k]++
			}
		}
	}

	p.Spikes = append(spikes("city", p.Cities, d.baseline.Cities), spikes("keyword", p.Keywords, d.baseline.Keywords)...)
	sort.SliceStable(p.Spikes, func(i, j int) bool {
		return p.Spikes[i].IncreasePct > p.Spikes[j].IncreasePct
	})
	return p
}

func spikes(dim string, current, historical map[string]int) []Spike {
	var out []Spike
	for _, key := range sortedKeys(current) {
		cur := current[key]
		hist := historical[key]
		if hist > 0 && cur > hist*2 {
			out = append(out, Spike{
				Dimension:   dim,
				Key:         key,
				Current:     cur,
				Historical:  hist,
				IncreasePct: float64(cur-hist) / float64(hist) * 100,
			})
		}
	}
	return out
}

// BaselineFrom builds the next historical baseline from this scan's counts.
func BaselineFrom(p JobPatterns, now time.Time) Baseline {
	b := Baseline{
		Cities:    make(map[string]int, len(p.Cities)),
		Keywords:  make(map[string]int, len(p.Keywords)),
		UpdatedAt: now,
	}
	for k, v := range p.Cities {
		b.Cities[k] = v
	}
	for k, v := range p.Keywords {
		b.Keywords[k] = v
	}
	return b
}

// Organizations flags names, collects high-risk entities and finds
// geographic and formation-year clusters.
func (d *Detector) Organizations(orgs []record.Organization) OrgPatterns {
	var p OrgPatterns
	ents := make([]record.Entity, 0, len(orgs))
	for _, o := range orgs {
		e := o.AsEntity()
		ents = append(ents, e)
		if f, ok := flagName(e); ok {
			p.NameFlags = append(p.NameFlags, f)
		}
		if e.RiskScore >= d.opts.HighRiskThreshold {
			p.HighRisk = append(p.HighRisk, e)
		}
	}
	p.GeoClusters = d.geoClusters(ents)
	p.FormationClusters = d.formationClusters(ents)
	return p
}

// Committees finds new committees, large spenders, flagged names and
// high-risk committees.
func (d *Detector) Committees(cs []record.CommitteeFiling) CommitteePatterns {
	var p CommitteePatterns
	for _, c := range cs {
		e := c.AsEntity()
		if age := record.AgeDays(c.FirstFileDate, d.opts.Now); age >= 0 && age <= d.opts.NewCommitteeDays {
			p.NewCommittees = append(p.NewCommittees, e)
		}
		if c.Disbursements > d.opts.LargeSpend {
			p.LargeSpenders = append(p.LargeSpenders, c)
		}
		if f, ok := flagName(e); ok {
			p.NameFlags = append(p.NameFlags, f)
		}
		if e.RiskScore >= d.opts.HighRiskThreshold {
			p.HighRisk = append(p.HighRisk, e)
		}
	}
	return p
}

// News counts queries and tracked keywords and the number of titles
// mentioning paid participants.
func (d *Detector) News(items []record.NewsItem) NewsPatterns {
	p := NewsPatterns{Queries: make(map[string]int), Keywords: make(map[string]int)}
	for _, n := range items {
		if q := strings.TrimSpace(n.Query); q != "" {
			p.Queries[q]++
		}
		title := strings.ToLower(n.Title)
		text := title + " " + strings.ToLower(n.Snippet)
		for _, k := range trackedNewsKeywords {
			if strings.Contains(text, k) {
				p.Keywords[k]++
			}
		}
		if strings.Contains(title, "paid") {
			p.PaidMentions++
		}
	}
	return p
}

func flagName(e record.Entity) (NameFlag, bool) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return NameFlag{}, false
	}
	for _, re := range namePatterns {
		if re.MatchString(name) {
			return NameFlag{Kind: e.Kind, Name: name, ID: e.ID, State: e.Location.State, Pattern: re.String()}, true
		}
	}
	return NameFlag{}, false
}

func (d *Detector) geoClusters(ents []record.Entity) []Cluster {
	byState := make(map[string][]string)
	var order []string
	for _, e := range ents {
		s := strings.ToUpper(strings.TrimSpace(e.Location.State))
		if s == "" {
			continue
		}
		if _, ok := byState[s]; !ok {
			order = append(order, s)
		}
		byState[s] = append(byState[s], e.Name)
	}
	var out []Cluster
	for _, s := range order {
		if names := byState[s]; len(names) >= d.opts.MinClusterSize {
			out = append(out, newCluster(s, names))
		}
	}
	return out
}

func (d *Detector) formationClusters(ents []record.Entity) []Cluster {
	byYear := make(map[int][]string)
	for _, e := range ents {
		if e.FiledAt.IsZero() {
			continue
		}
		byYear[e.FiledAt.Year()] = append(byYear[e.FiledAt.Year()], e.Name)
	}
	var out []Cluster
	cur := d.opts.Now.Year()
	for _, y := range []int{cur, cur - 1} {
		if names := byYear[y]; len(names) >= d.opts.MinClusterSize {
			out = append(out, newCluster(strconv.Itoa(y), names))
		}
	}
	return out
}

func newCluster(key string, names []string) Cluster {
	n := len(names)
	if n > 5 {
		n = 5
	}
	return Cluster{Key: key, Count: len(names), Names: append([]string(nil), names[:n]...)}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
