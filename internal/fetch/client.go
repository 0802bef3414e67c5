// Package fetch collects public records from external APIs and feeds.
//
// Every collector returns a Result. A failed collector never aborts a scan;
// callers inspect Result.Err and keep going.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/abelbrown/astroscan/internal/logging"
	"github.com/abelbrown/astroscan/internal/record"
)

// UserAgent is sent with every collector request.
const UserAgent = "astroscan/1.0 (public-records research)"

var (
	// ErrNotConfigured marks a collector that lacks credentials.
	ErrNotConfigured = errors.New("collector not configured")
	// ErrBudgetExhausted is returned once a collector used its call share.
	ErrBudgetExhausted = errors.New("api call budget exhausted")
)

// Result is one collector's outcome. Empty and failed are distinct: a
// collector can succeed with no records.
type Result struct {
	Source string
	Batch  record.CollectedBatch
	Calls  int
	Err    error
}

// Failed reports whether the collector returned an error.
func (r Result) Failed() bool { return r.Err != nil }

// Empty reports whether the collector succeeded without records.
func (r Result) Empty() bool { return r.Err == nil && r.Batch.Len() == 0 }

// Collector is implemented by every source adapter.
type Collector interface {
	Name() string
	Collect(ctx context.Context, budget *Budget) Result
}

// Scorer scores records so collectors can filter and rank before returning.
type Scorer interface {
	Score(r record.Record) int
}

// Budget caps the API calls one collector may make and paces them.
type Budget struct {
	mu      sync.Mutex
	max     int
	used    int
	limiter *rate.Limiter
}

// NewBudget allows max calls spaced by at least every.
func NewBudget(max int, every time.Duration) *Budget {
	lim := rate.NewLimiter(rate.Inf, 1)
	if every > 0 {
		lim = rate.NewLimiter(rate.Every(every), 1)
	}
	return &Budget{max: max, limiter: lim}
}

// Take reserves one call, waiting for the limiter.
func (b *Budget) Take(ctx context.Context) error {
	b.mu.Lock()
	if b.used >= b.max {
		b.mu.Unlock()
		return ErrBudgetExhausted
	}
	b.used++
	b.mu.Unlock()

	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	return nil
}

// Used returns the number of calls taken.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Remaining returns the calls left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max - b.used
}

// leveledLogger routes retryablehttp logs through the package logger.
// Errors are logged as warnings because they are retried.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) { logging.Warn(msg, kv...) }
func (leveledLogger) Warn(msg string, kv ...interface{})  { logging.Warn(msg, kv...) }
func (leveledLogger) Info(msg string, kv ...interface{})  { logging.Debug(msg, kv...) }
func (leveledLogger) Debug(msg string, kv ...interface{}) { logging.Debug(msg, kv...) }

// ClientOption configures NewClient.
type ClientOption func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) ClientOption {
	return func(c *retryablehttp.Client) { c.RetryMax = n }
}

// WithRetryWait sets the backoff bounds.
func WithRetryWait(min, max time.Duration) ClientOption {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = min
		c.RetryWaitMax = max
	}
}

// NewClient returns a standard http.Client that retries connection errors
// and 5xx responses. 429 is not retried; the call budget handles pacing.
func NewClient(timeout time.Duration, opts ...ClientOption) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(leveledLogger{})
	rc.CheckRetry = retryPolicy

	for _, opt := range opts {
		opt(rc)
	}

	client := rc.StandardClient()
	client.Timeout = timeout
	return client
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
