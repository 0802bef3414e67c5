package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate parses the date formats public-record APIs emit ("2024-01-02",
// "2021-03", "202103", "2019", RFC 1123, ISO 8601 with zone). Unparseable or
// empty input yields the zero time, which callers treat as "unknown".
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	// Compact year / year-month forms dateparse reads as unix timestamps.
	if isDigits(s) {
		switch len(s) {
		case 4:
			if y, err := strconv.Atoi(s); err == nil && y > 1800 {
				return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
			}
			return time.Time{}
		case 6:
			y, _ := strconv.Atoi(s[:4])
			m, _ := strconv.Atoi(s[4:])
			if y > 1800 && m >= 1 && m <= 12 {
				return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
			}
			return time.Time{}
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// AgeDays returns whole days between t and now; -1 when t is unknown.
func AgeDays(t, now time.Time) int {
	if t.IsZero() {
		return -1
	}
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
