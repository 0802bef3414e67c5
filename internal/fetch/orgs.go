package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/record"
)

// ProPublica Nonprofit Explorer.
const (
	ProPublicaAPI      = "https://projects.propublica.org/nonprofits/api/v2"
	proPublicaOrgPage  = "https://projects.propublica.org/nonprofits/organizations/"
	maxNonprofits      = 30
	minNonprofitRisk   = 30
	perSearchNonprofit = 20
)

var nonprofitTerms = []string{
	"citizens for", "americans for", "action fund", "voices for", "coalition",
	"alliance for", "freedom", "liberty", "justice now", "safe",
}

// TargetStates limits nonprofit results to states under watch.
var TargetStates = []string{"TX", "CA", "NY", "FL", "IL", "PA", "OH", "GA", "NC", "MI", "AZ", "WA", "CO", "DC", "VA"}

// NonprofitCollector searches 501(c)(4) organizations.
type NonprofitCollector struct {
	client   *http.Client
	endpoint string
	scorer   Scorer
}

// NewNonprofitCollector returns a ProPublica collector. scorer may be nil,
// in which case nothing is filtered by risk.
func NewNonprofitCollector(client *http.Client, endpoint string, scorer Scorer) *NonprofitCollector {
	if endpoint == "" {
		endpoint = ProPublicaAPI
	}
	return &NonprofitCollector{client: client, endpoint: endpoint, scorer: scorer}
}

func (c *NonprofitCollector) Name() string { return "propublica" }

type proPublicaSearch struct {
	Organizations []struct {
		EIN          flexString `json:"ein"`
		Name         string     `json:"name"`
		City         string     `json:"city"`
		State        string     `json:"state"`
		RulingDate   string     `json:"ruling_date"`
		IncomeAmount float64    `json:"income_amount"`
	} `json:"organizations"`
}

// Collect keeps organizations in TargetStates with risk >= 30, deduped by
// EIN, highest risk first, at most 30.
func (c *NonprofitCollector) Collect(ctx context.Context, budget *Budget) Result {
	res := Result{Source: c.Name()}
	var errs []error
	var orgs []record.Organization

	for _, term := range nonprofitTerms {
		if err := budget.Take(ctx); err != nil {
			break
		}
		res.Calls++

		v := url.Values{}
		v.Set("q", term)
		v.Set("c_code[id]", "4")
		var resp proPublicaSearch
		if err := getJSON(ctx, c.client, c.endpoint+"/search.json?"+v.Encode(), nil, &resp); err != nil {
			logging.Warn("ProPublica search failed", "term", term, "error", err)
			errs = append(errs, fmt.Errorf("propublica %q: %w", term, err))
			continue
		}
		for i, o := range resp.Organizations {
			if i == perSearchNonprofit {
				break
			}
			state := strings.ToUpper(strings.TrimSpace(o.State))
			if !contains(TargetStates, state) {
				continue
			}
			ein := string(o.EIN)
			org := record.Organization{
				Common: record.Common{
					Source:     "propublica",
					Title:      strings.TrimSpace(o.Name),
					Location:   record.Location{City: o.City, State: state},
					ObservedAt: time.Now().UTC(),
					URL:        proPublicaOrgPage + ein,
				},
				EIN:        ein,
				RulingDate: record.ParseDate(o.RulingDate),
				Revenue:    o.IncomeAmount,
			}
			if c.scorer != nil {
				org.RiskScore = c.scorer.Score(org)
				if org.RiskScore < minNonprofitRisk {
					continue
				}
			}
			orgs = append(orgs, org)
		}
	}

	seen := map[string]bool{}
	unique := orgs[:0]
	for _, o := range orgs {
		if o.EIN == "" || seen[o.EIN] {
			continue
		}
		seen[o.EIN] = true
		unique = append(unique, o)
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].RiskScore > unique[j].RiskScore })
	if len(unique) > maxNonprofits {
		unique = unique[:maxNonprofits]
	}
	res.Batch.Nonprofits = unique

	if len(errs) > 0 && len(unique) == 0 {
		res.Err = errors.Join(errs...)
	}
	return res
}

// flexString accepts a JSON number or string, as ProPublica returns EINs as numbers.
type flexString string

func (j *flexString) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*j = ""
		return nil
	}
	*j = flexString(s)
	return nil
}

// FEC committee search.
const (
	FECAPI        = "https://api.open.fec.gov/v1"
	fecCommittee  = "https://www.fec.gov/data/committee/"
	maxCommittees = 40
	fecPerPage    = 20
)

var fecNameQueries = []string{
	"citizens for", "americans for", "freedom fund", "liberty",
	"voices for", "coalition for", "alliance for", "action fund",
	"grassroots", "peoples", "families for", "committee for",
	"future of", "progress", "prosperity",
}

// CommitteeCollector searches outside-spending committees with suspicious names.
type CommitteeCollector struct {
	client   *http.Client
	endpoint string
	apiKey   string
	scorer   Scorer
}

// NewCommitteeCollector returns an FEC collector. An empty key uses DEMO_KEY.
func NewCommitteeCollector(client *http.Client, endpoint, apiKey string, scorer Scorer) *CommitteeCollector {
	if endpoint == "" {
		endpoint = FECAPI
	}
	if apiKey == "" {
		apiKey = "DEMO_KEY"
	}
	return &CommitteeCollector{client: client, endpoint: endpoint, apiKey: apiKey, scorer: scorer}
}

func (c *CommitteeCollector) Name() string { return "fec" }

type fecCommitteeSearch struct {
	Results []struct {
		CommitteeID   string `json:"committee_id"`
		Name          string `json:"name"`
		City          string `json:"city"`
		State         string `json:"state"`
		CommitteeType string `json:"committee_type"`
		FirstFileDate string `json:"first_file_date"`
	} `json:"results"`
}

// Collect searches committee types O/U/V/W, dedupes by committee id and
// keeps the 40 highest-risk.
func (c *CommitteeCollector) Collect(ctx context.Context, budget *Budget) Result {
	res := Result{Source: c.Name()}
	var errs []error
	var cs []record.CommitteeFiling

	for _, q := range fecNameQueries {
		if err := budget.Take(ctx); err != nil {
			break
		}
		res.Calls++

		v := url.Values{}
		v.Set("api_key", c.apiKey)
		v.Set("q", q)
		for _, t := range []string{"O", "U", "V", "W"} {
			v.Add("committee_type", t)
		}
		v.Set("per_page", strconv.Itoa(fecPerPage))
		v.Set("sort", "-first_file_date")

		var resp fecCommitteeSearch
		if err := getJSON(ctx, c.client, c.endpoint+"/committees/?"+v.Encode(), nil, &resp); err != nil {
			logging.Warn("FEC search failed", "query", q, "error", err)
			errs = append(errs, fmt.Errorf("fec %q: %w", q, err))
			continue
		}
		for _, r := range resp.Results {
			cf := record.CommitteeFiling{
				Common: record.Common{
					Source:     "fec",
					Title:      strings.TrimSpace(r.Name),
					Location:   record.Location{City: r.City, State: strings.ToUpper(r.State)},
					ObservedAt: time.Now().UTC(),
					URL:        fecCommittee + r.CommitteeID + "/",
				},
				CommitteeID:   r.CommitteeID,
				FirstFileDate: record.ParseDate(r.FirstFileDate),
				CommitteeType: r.CommitteeType,
			}
			if c.scorer != nil {
				cf.RiskScore = c.scorer.Score(cf)
			}
			cs = append(cs, cf)
		}
	}

	seen := map[string]bool{}
	unique := cs[:0]
	for _, cf := range cs {
		if cf.CommitteeID == "" || seen[cf.CommitteeID] {
			continue
		}
		seen[cf.CommitteeID] = true
		unique = append(unique, cf)
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].RiskScore > unique[j].RiskScore })
	if len(unique) > maxCommittees {
		unique = unique[:maxCommittees]
	}
	res.Batch.Committees = unique

	if len(errs) > 0 && len(unique) == 0 {
		res.Err = errors.Join(errs...)
	}
	return res
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
