package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abelbrown/astroscan/internal/correlation"
	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/record"
)

// DefaultNewsQueries are searched in order until the budget runs out.
var DefaultNewsQueries = []string{
	"paid protesters",
	"astroturf campaign",
	"fake grassroots",
	"crowds on demand",
	"paid activist",
	"manufactured outrage",
	"dark money protest",
	"crisis actors rally",
}

// Defaults for the news collector.
const (
	GoogleNewsSearch = "https://news.google.com/rss/search"
	maxNewsItems     = 20
	perQueryItems    = 5
)

// NewsCollector searches an RSS news search endpoint.
type NewsCollector struct {
	client   *http.Client
	endpoint string
	queries  []string
	now      func() time.Time
}

// NewNewsCollector returns a collector over endpoint (GoogleNewsSearch when empty).
func NewNewsCollector(client *http.Client, endpoint string, queries []string) *NewsCollector {
	if endpoint == "" {
		endpoint = GoogleNewsSearch
	}
	if len(queries) == 0 {
		queries = DefaultNewsQueries
	}
	return &NewsCollector{client: client, endpoint: endpoint, queries: queries, now: time.Now}
}

func (c *NewsCollector) Name() string { return "news" }

// Collect runs one search per query, dedupes by URL and keeps the first 20.
func (c *NewsCollector) Collect(ctx context.Context, budget *Budget) Result {
	res := Result{Source: c.Name()}
	now := c.now().UTC()
	seen := map[string]bool{}
	var errs []error

	for _, q := range c.queries {
		if err := budget.Take(ctx); err != nil {
			if !errors.Is(err, ErrBudgetExhausted) {
				errs = append(errs, err)
			}
			break
		}
		res.Calls++

		feed, err := getFeed(ctx, c.client, c.searchURL(q))
		if err != nil {
			logging.Warn("News search failed", "query", q, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", q, err))
			continue
		}

		for i, item := range feed.Items {
			if i == perQueryItems {
				break
			}
			link := strings.TrimSpace(item.Link)
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true

			title, publisher := splitPublisher(item.Title)
			if publisher == "" && item.Author != nil {
				publisher = item.Author.Name
			}
			city, state := correlation.CityState(title)
			res.Batch.News = append(res.Batch.News, record.NewsItem{
				Common: record.Common{
					Source:     "news_rss",
					Title:      title,
					Location:   record.Location{City: city, State: state},
					ObservedAt: published(item, now),
					URL:        link,
				},
				Snippet:   truncate(stripTags(item.Description), 300),
				Publisher: publisher,
				Query:     q,
			})
		}
	}

	if len(res.Batch.News) > maxNewsItems {
		res.Batch.News = res.Batch.News[:maxNewsItems]
	}
	// Partial success keeps its records; only a total failure is an error.
	if len(errs) > 0 && len(res.Batch.News) == 0 {
		res.Err = errors.Join(errs...)
	}
	return res
}

func (c *NewsCollector) searchURL(q string) string {
	v := url.Values{}
	v.Set("q", `"`+q+`"`)
	v.Set("hl", "en-US")
	v.Set("gl", "US")
	v.Set("ceid", "US:en")
	return c.endpoint + "?" + v.Encode()
}

// splitPublisher separates the trailing " - Publisher" that news search
// feeds append to titles.
func splitPublisher(title string) (string, string) {
	title = strings.TrimSpace(title)
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}

func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
