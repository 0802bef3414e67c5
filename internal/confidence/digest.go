package confidence

import (
	"sort"

	"github.com/abelbrown/astroscan/internal/pattern"
	"github.com/abelbrown/astroscan/internal/record"
)

// DigestItem is a truncated record reference.
type DigestItem struct {
	Title string `json:"title"`
	Score int    `json:"score"`
}

// DigestCorrelation is a correlation without its evidence.
type DigestCorrelation struct {
	Type        string `json:"type"`
	Probability int    `json:"probability"`
}

// Digest is the compact view handed to a narrative generator.
type Digest struct {
	NewsCount       int                 `json:"newsCount"`
	OrgCount        int                 `json:"orgCount"`
	JobCount        int                 `json:"jobCount"`
	TopNews         []DigestItem        `json:"topNews"`
	TopOrgs         []DigestItem        `json:"topOrgs"`
	TopJobs         []DigestItem        `json:"topJobs"`
	Correlations    []DigestCorrelation `json:"correlations"`
	HighAnomalies   int                 `json:"highAnomalies"`
	PriorConfidence int                 `json:"priorConfidence"`
}

// Digest size limits.
const (
	digestNews         = 8
	digestOrgs         = 6
	digestJobs         = 5
	digestCorrelations = 4
)

// BuildDigest summarizes in for a generator prompt.
func BuildDigest(in Input) Digest {
	jobs := in.Batch.RealJobs()
	ents := in.Batch.Entities()

	d := Digest{
		NewsCount:       len(in.Batch.News),
		OrgCount:        len(ents),
		JobCount:        len(jobs),
		PriorConfidence: in.PriorConfidence,
	}

	for _, n := range in.Batch.News {
		d.TopNews = append(d.TopNews, DigestItem{Title: record.TruncateGraphemes(n.Title, 80), Score: n.Score()})
	}
	for _, e := range ents {
		d.TopOrgs = append(d.TopOrgs, DigestItem{Title: record.TruncateGraphemes(e.Name, 50), Score: e.RiskScore})
	}
	for _, j := range jobs {
		d.TopJobs = append(d.TopJobs, DigestItem{Title: record.TruncateGraphemes(j.Title, 40), Score: j.Score()})
	}
	d.TopNews = topItems(d.TopNews, digestNews)
	d.TopOrgs = topItems(d.TopOrgs, digestOrgs)
	d.TopJobs = topItems(d.TopJobs, digestJobs)

	for i, c := range in.Correlations {
		if i == digestCorrelations {
			break
		}
		d.Correlations = append(d.Correlations, DigestCorrelation{Type: c.Type, Probability: c.Probability})
	}
	for _, a := range in.Anomalies {
		if a.Severity == pattern.SeverityHigh {
			d.HighAnomalies++
		}
	}
	return d
}

func topItems(items []DigestItem, n int) []DigestItem {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > n {
		items = items[:n]
	}
	return items
}
