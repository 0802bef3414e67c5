// Package scoring computes bounded per-record risk, suspicion and relevance
// scores.
//
// Each record kind has one rule table. A rule is a (family, name, points,
// predicate) tuple; rules are evaluated independently and summed, then the
// total is clamped to [0,100]. Families bound how much a single semantic
// signal can contribute: a first-match family counts at most one hit, a
// cumulative family counts every hit up to its cap. Adding a heuristic is a
// table change, not a code branch.
package scoring

import (
	"time"

	"github.com/abelbrown/astroscan/internal/record"
)

// Family groups rules that measure the same signal.
type Family string

const (
	FamilyStructure    Family = "structure"
	FamilyTemplate     Family = "template"
	FamilyPhrase       Family = "phrase"
	FamilyVague        Family = "vague"
	FamilyVehicle      Family = "vehicle"
	FamilyRecency      Family = "recency"
	FamilyJurisdiction Family = "jurisdiction"
	FamilyScale        Family = "scale"
	FamilyBattleground Family = "battleground"
	FamilyCommittee    Family = "committee_type"
	FamilyHighTier     Family = "high_tier"
	FamilyMediumTier   Family = "medium_tier"
	FamilyUrgency      Family = "urgency"
	FamilyBase         Family = "base"
	FamilyTitleKeyword Family = "title_keyword"
	FamilySnippet      Family = "snippet_keyword"
	FamilyHighValue    Family = "high_value"
)

// Context is the read-only scan state rules may consult.
type Context struct {
	Now                time.Time
	ShellJurisdictions []string // from memory.knownPatterns
}

func (c Context) isShell(state string) bool {
	for _, s := range c.ShellJurisdictions {
		if s == state {
			return true
		}
	}
	return false
}

// Rule is one scoring predicate.
type Rule struct {
	Family Family
	Name   string
	Points int
	Match  func(r record.Record, ctx Context) bool
}

// Policy controls how hits inside a family combine.
// The zero value is first-match with no cap.
type Policy struct {
	Cumulative bool
	Cap        int // 0 means uncapped
}

// Table is the rule set for one record kind.
type Table struct {
	Kind     record.Kind
	Policies map[Family]Policy
	Rules    []Rule
}

// Hit records a rule that fired and the points it contributed.
type Hit struct {
	Family Family `json:"family"`
	Rule   string `json:"rule"`
	Points int    `json:"points"`
}

// Evaluate runs every rule against r and returns the clamped total plus the
// hits that contributed points.
func (t Table) Evaluate(r record.Record, ctx Context) (int, []Hit) {
	perFamily := make(map[Family]int)
	matched := make(map[Family]bool)
	var hits []Hit

	for _, rule := range t.Rules {
		pol := t.Policies[rule.Family]
		if !pol.Cumulative && matched[rule.Family] {
			continue
		}
		if !rule.Match(r, ctx) {
			continue
		}
		matched[rule.Family] = true

		pts := rule.Points
		if pol.Cap > 0 && perFamily[rule.Family]+pts > pol.Cap {
			pts = pol.Cap - perFamily[rule.Family]
		}
		if pts <= 0 {
			continue
		}
		perFamily[rule.Family] += pts
		hits = append(hits, Hit{Family: rule.Family, Rule: rule.Name, Points: pts})
	}

	total := 0
	for _, v := range perFamily {
		total += v
	}
	return record.Clamp(total), hits
}
