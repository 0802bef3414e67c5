package record

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Dedup key lengths, in grapheme clusters.
const (
	TitleKeyLen = 60
	JobKeyLen   = 40
)

// NormalizeKey builds a comparison key from free text: NFKC-normalized,
// case-folded, whitespace-collapsed and truncated to maxGraphemes.
func NormalizeKey(s string, maxGraphemes int) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s) // Casers are stateful; one per call
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
	return TruncateGraphemes(s, maxGraphemes)
}

// TruncateGraphemes shortens s to at most n user-perceived characters without
// splitting a grapheme cluster.
func TruncateGraphemes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	gr := uniseg.NewGraphemes(s)
	count := 0
	end := 0
	for gr.Next() {
		if count == n {
			return s[:end]
		}
		_, end = gr.Positions()
		count++
	}
	return s
}

// HashKey creates a short stable hash for use in ids.
func HashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// IdentityKey returns the dedup key for a record: a stable identifier when
// one exists (EIN, committee id, URL), else the normalized title.
func IdentityKey(r Record) string {
	switch v := r.(type) {
	case Organization:
		if id := strings.TrimSpace(v.EIN); id != "" {
			return "ein:" + id
		}
	case CommitteeFiling:
		if id := strings.TrimSpace(v.CommitteeID); id != "" {
			return "cid:" + strings.ToUpper(id)
		}
	case JobPosting:
		if u := strings.TrimSpace(v.URL); u != "" {
			return "url:" + u
		}
		return "title:" + NormalizeKey(v.Title, JobKeyLen)
	case NewsItem:
		if u := strings.TrimSpace(v.URL); u != "" {
			return "url:" + u
		}
	}
	return "title:" + NormalizeKey(r.Base().Title, TitleKeyLen)
}

// EntityKey is IdentityKey for entity views.
func EntityKey(e Entity) string {
	if id := strings.TrimSpace(e.ID); id != "" {
		if e.Kind == KindCommittee {
			return "cid:" + strings.ToUpper(id)
		}
		return "ein:" + id
	}
	return "title:" + NormalizeKey(e.Name, TitleKeyLen)
}
