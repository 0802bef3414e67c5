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

// Job collector endpoints and limits.
const (
	USAJobsSearch     = "https://data.usajobs.gov/api/search"
	maxJobs           = 100
	minRealJobs       = 5
	remotiveFeedItems = 10
	usajobsPerPage    = 10
)

// DefaultRemotiveFeeds are the remote-job categories worth watching.
var DefaultRemotiveFeeds = []string{
	"https://remotive.com/remote-jobs/feed/community-management",
	"https://remotive.com/remote-jobs/feed/marketing",
}

var usajobsTerms = []string{"community outreach", "public affairs", "campaign"}

// remotiveRelevant keeps remote postings that look like organizing work.
var remotiveRelevant = []string{"organizer", "coordinator", "community", "outreach", "campaign", "advocacy"}

// JobsConfig configures the job collector.
type JobsConfig struct {
	USAJobsKey      string
	USAJobsEmail    string
	USAJobsEndpoint string
	RemotiveFeeds   []string
}

// JobCollector merges USAJobs and Remotive postings.
type JobCollector struct {
	client *http.Client
	cfg    JobsConfig
	scorer Scorer
	now    func() time.Time
}

// NewJobCollector returns a job collector. scorer may be nil.
func NewJobCollector(client *http.Client, cfg JobsConfig, scorer Scorer) *JobCollector {
	if cfg.USAJobsEndpoint == "" {
		cfg.USAJobsEndpoint = USAJobsSearch
	}
	if cfg.RemotiveFeeds == nil {
		cfg.RemotiveFeeds = DefaultRemotiveFeeds
	}
	return &JobCollector{client: client, cfg: cfg, scorer: scorer, now: time.Now}
}

func (c *JobCollector) Name() string { return "jobs" }

// Collect gathers postings, dedupes them by their lower-cased 40-character
// title, ranks by suspicion and pads with monitoring placeholders when fewer
// than five real postings were found.
func (c *JobCollector) Collect(ctx context.Context, budget *Budget) Result {
	res := Result{Source: c.Name()}
	now := c.now().UTC()
	var jobs []record.JobPosting
	var errs []error

	remote, calls, err := c.remotive(ctx, budget, now)
	res.Calls += calls
	jobs = append(jobs, remote...)
	if err != nil {
		errs = append(errs, err)
	}

	fed, calls, err := c.usajobs(ctx, budget, now)
	res.Calls += calls
	jobs = append(jobs, fed...)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		errs = append(errs, err)
	} else if err != nil {
		logging.Info("USAJobs not configured, skipping", "hint", "set USAJOBS_API_KEY and USAJOBS_EMAIL")
	}

	jobs = dedupeJobs(jobs)
	if c.scorer != nil {
		for i := range jobs {
			jobs[i].SuspicionScore = c.scorer.Score(jobs[i])
		}
		sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].SuspicionScore > jobs[j].SuspicionScore })
	}
	if len(jobs) < minRealJobs {
		jobs = append(jobs, monitoringPlaceholders(now)...)
	}
	if len(jobs) > maxJobs {
		jobs = jobs[:maxJobs]
	}
	res.Batch.Jobs = jobs

	if len(errs) > 0 && len(fed)+len(remote) == 0 {
		res.Err = errors.Join(errs...)
	}
	return res
}

func (c *JobCollector) remotive(ctx context.Context, budget *Budget, now time.Time) ([]record.JobPosting, int, error) {
	var jobs []record.JobPosting
	var errs []error
	calls := 0
	for _, feedURL := range c.cfg.RemotiveFeeds {
		if err := budget.Take(ctx); err != nil {
			break
		}
		calls++
		feed, err := getFeed(ctx, c.client, feedURL)
		if err != nil {
			logging.Warn("Remotive feed failed", "url", feedURL, "error", err)
			errs = append(errs, fmt.Errorf("remotive: %w", err))
			continue
		}
		for i, item := range feed.Items {
			if i == remotiveFeedItems {
				break
			}
			if !containsAny(strings.ToLower(item.Title), remotiveRelevant) {
				continue
			}
			company := "Remote Company"
			if item.Author != nil && item.Author.Name != "" {
				company = item.Author.Name
			}
			jobs = append(jobs, record.JobPosting{
				Common: record.Common{
					Source:     "remotive",
					Title:      strings.TrimSpace(item.Title),
					Location:   record.Location{City: "Remote"},
					ObservedAt: published(item, now),
					URL:        item.Link,
				},
				Company:     company,
				Description: truncate(stripTags(item.Description), 500),
				Keywords:    []string{"remote", "organizer"},
			})
		}
	}
	return jobs, calls, errors.Join(errs...)
}

type usajobsResponse struct {
	SearchResult struct {
		SearchResultItems []struct {
			MatchedObjectDescriptor struct {
				PositionTitle        string `json:"PositionTitle"`
				PositionURI          string `json:"PositionURI"`
				OrganizationName     string `json:"OrganizationName"`
				QualificationSummary string `json:"QualificationSummary"`
				PublicationStartDate string `json:"PublicationStartDate"`
				PositionLocation     []struct {
					CityName               string `json:"CityName"`
					CountrySubDivisionCode string `json:"CountrySubDivisionCode"`
				} `json:"PositionLocation"`
			} `json:"MatchedObjectDescriptor"`
		} `json:"SearchResultItems"`
	} `json:"SearchResult"`
}

func (c *JobCollector) usajobs(ctx context.Context, budget *Budget, now time.Time) ([]record.JobPosting, int, error) {
	if c.cfg.USAJobsKey == "" || c.cfg.USAJobsEmail == "" {
		return nil, 0, ErrNotConfigured
	}
	header := http.Header{}
	header.Set("Authorization-Key", c.cfg.USAJobsKey)
	header.Set("User-Agent", c.cfg.USAJobsEmail)

	var jobs []record.JobPosting
	var errs []error
	calls := 0
	for _, term := range usajobsTerms {
		if err := budget.Take(ctx); err != nil {
			break
		}
		calls++
		v := url.Values{}
		v.Set("Keyword", term)
		v.Set("ResultsPerPage", strconv.Itoa(usajobsPerPage))

		var resp usajobsResponse
		if err := getJSON(ctx, c.client, c.cfg.USAJobsEndpoint+"?"+v.Encode(), header, &resp); err != nil {
			logging.Warn("USAJobs search failed", "term", term, "error", err)
			errs = append(errs, fmt.Errorf("usajobs %q: %w", term, err))
			continue
		}
		for _, it := range resp.SearchResult.SearchResultItems {
			m := it.MatchedObjectDescriptor
			var loc record.Location
			if len(m.PositionLocation) > 0 {
				loc = record.Location{City: m.PositionLocation[0].CityName, State: m.PositionLocation[0].CountrySubDivisionCode}
			}
			observed := record.ParseDate(m.PublicationStartDate)
			if observed.IsZero() {
				observed = now
			}
			company := m.OrganizationName
			if company == "" {
				company = "Federal Government"
			}
			jobs = append(jobs, record.JobPosting{
				Common: record.Common{
					Source:     "usajobs",
					Title:      m.PositionTitle,
					Location:   loc,
					ObservedAt: observed,
					URL:        m.PositionURI,
				},
				Company:     company,
				Description: truncate(m.QualificationSummary, 500),
				Keywords:    []string{term},
			})
		}
	}
	return jobs, calls, errors.Join(errs...)
}

func dedupeJobs(jobs []record.JobPosting) []record.JobPosting {
	seen := map[string]bool{}
	out := make([]record.JobPosting, 0, len(jobs))
	for _, j := range jobs {
		k := strings.ToLower(record.TruncateGraphemes(j.Title, record.JobKeyLen))
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, j)
	}
	return out
}

func monitoringPlaceholders(now time.Time) []record.JobPosting {
	return []record.JobPosting{
		{
			Common:     record.Common{Source: "baseline", Title: "Monitoring: Craigslist gig postings", Location: record.Location{City: "Multiple Cities"}, ObservedAt: now, URL: "https://craigslist.org"},
			Company:    "Various",
			Keywords:   []string{"protest", "rally", "canvasser"},
			Monitoring: true,
		},
		{
			Common:     record.Common{Source: "baseline", Title: "Monitoring: Indeed political jobs", Location: record.Location{City: "Multiple Cities"}, ObservedAt: now, URL: "https://indeed.com"},
			Company:    "Various",
			Keywords:   []string{"campaign", "grassroots", "organizer"},
			Monitoring: true,
		},
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
