package scoring

import (
	"regexp"
	"strings"

	"github.com/abelbrown/astroscan/internal/record"
)

// DefaultShellJurisdictions seeds knownPatterns.shellJurisdictions.
var DefaultShellJurisdictions = []string{"DE", "WY", "NV"}

// Battleground states get a small organization bump.
var battlegroundStates = map[string]bool{
	"TX": true, "FL": true, "OH": true, "PA": true,
	"GA": true, "AZ": true, "NC": true, "MI": true,
}

// Grassroots-sounding name templates.
var orgTemplates = []*regexp.Regexp{
	regexp.MustCompile(`\b(citizens|americans|people|families|voters|parents|neighbors)\s+(for|against|united|first)\b`),
	regexp.MustCompile(`\b(keep|save|protect|defend)\s+(our\s+)?\w+(\s+\w+)?\s+(safe|now|first|strong)\b`),
	regexp.MustCompile(`\b\w+\s+(justice|action|voices?)\s+(now|today)\b`),
	regexp.MustCompile(`\b(coalition|alliance)\s+for\s+(a\s+)?(better|stronger|safer|brighter)\b`),
}

var (
	vagueLexicon   = regexp.MustCompile(`\b(freedom|liberty|justice|safe|action|voices?|now|today|future|forward|prosperity|progress|patriots?)\b`)
	orgVehicle     = regexp.MustCompile(`\b(coalition|alliance|council|committee|fund)\b`)
	committeeVague = regexp.MustCompile(`\b(freedom|liberty|prosperity|progress|future|american|americans|patriots?)\b`)
	committeeVeh   = regexp.MustCompile(`\b(fund|action|pac)\b|\bcommittee\s+(for|to)\b`)
)

var committeePhrases = []string{
	"citizens for", "americans for", "freedom fund", "liberty", "voices for",
	"coalition for", "alliance for", "action fund", "grassroots", "peoples",
	"families for", "committee for", "future of", "protect our", "save our",
}

var independentExpenditureTypes = map[string]bool{"O": true, "U": true, "V": true, "W": true}

var (
	jobHighTier   = []string{"paid protest", "hold signs", "same day pay", "cash daily", "immediate start", "no experience"}
	jobMediumTier = []string{"protest", "rally", "canvass", "petition", "grassroots", "political", "campaign"}
	jobUrgency    = []string{"urgent", "immediate", "today", "asap", "now hiring", "start today"}
)

var (
	newsKeywords  = []string{"paid", "protest", "astroturf", "fake", "manufactured", "crowds on demand"}
	newsHighValue = []string{"dark money", "fake grassroots", "front group", "paid protesters", "rent-a-mob"}
)

func lower(s string) string { return strings.ToLower(s) }

func name(r record.Record) string { return lower(r.Base().Title) }

func tokens(r record.Record) int { return len(strings.Fields(r.Base().Title)) }

func state(r record.Record) string { return strings.ToUpper(strings.TrimSpace(r.Base().Location.State)) }

func jobText(r record.Record) string {
	j, ok := r.(record.JobPosting)
	if !ok {
		return name(r)
	}
	return lower(j.Title + " " + j.Description)
}

func snippet(r record.Record) string {
	if n, ok := r.(record.NewsItem); ok {
		return lower(n.Snippet)
	}
	return ""
}

// phraseRules builds one rule per phrase matched as a substring of text(r).
func phraseRules(f Family, points int, text func(record.Record) string, phrases []string) []Rule {
	out := make([]Rule, 0, len(phrases))
	for _, p := range phrases {
		p := p
		out = append(out, Rule{
			Family: f,
			Name:   p,
			Points: points,
			Match: func(r record.Record, _ Context) bool {
				return strings.Contains(text(r), p)
			},
		})
	}
	return out
}

func regexRule(f Family, ruleName string, points int, re *regexp.Regexp) Rule {
	return Rule{
		Family: f,
		Name:   ruleName,
		Points: points,
		Match:  func(r record.Record, _ Context) bool { return re.MatchString(name(r)) },
	}
}

// ageWithin reports whether the record's filing date is known and within days.
func ageWithin(days int) func(record.Record, Context) bool {
	return func(r record.Record, ctx Context) bool {
		filed := r.Base().ObservedAt
		switch v := r.(type) {
		case record.Organization:
			filed = v.RulingDate
		case record.CommitteeFiling:
			filed = v.FirstFileDate
		}
		age := record.AgeDays(filed, ctx.Now)
		return age >= 0 && age <= days
	}
}

func hasCommitteePhrase(r record.Record) bool {
	n := name(r)
	for _, p := range committeePhrases {
		if strings.Contains(n, p) {
			return true
		}
	}
	return false
}

// OrganizationTable scores tax-exempt organizations.
func OrganizationTable() Table {
	rules := []Rule{
		{Family: FamilyStructure, Name: "three_tokens", Points: 15, Match: func(r record.Record, _ Context) bool { return tokens(r) == 3 }},
		{Family: FamilyStructure, Name: "four_tokens", Points: 10, Match: func(r record.Record, _ Context) bool { return tokens(r) == 4 }},
	}
	for i, re := range orgTemplates {
		rules = append(rules, regexRule(FamilyTemplate, "template_"+string(rune('a'+i)), 20, re))
	}
	rules = append(rules,
		regexRule(FamilyVague, "vague_lexicon", 10, vagueLexicon),
		regexRule(FamilyVehicle, "vehicle_word", 10, orgVehicle),
		Rule{Family: FamilyRecency, Name: "within_2y", Points: 25, Match: ageWithin(730)},
		Rule{Family: FamilyRecency, Name: "within_5y", Points: 15, Match: ageWithin(1825)},
		Rule{Family: FamilyJurisdiction, Name: "shell_state", Points: 15, Match: func(r record.Record, ctx Context) bool {
			return ctx.isShell(state(r))
		}},
		Rule{Family: FamilyScale, Name: "revenue_over_1m", Points: 15, Match: func(r record.Record, _ Context) bool {
			o, ok := r.(record.Organization)
			return ok && o.Revenue > 1_000_000 && tokens(r) == 3
		}},
		Rule{Family: FamilyBattleground, Name: "battleground_state", Points: 5, Match: func(r record.Record, _ Context) bool {
			return battlegroundStates[state(r)]
		}},
	)
	return Table{Kind: record.KindOrganization, Rules: rules}
}

// CommitteeTable scores campaign-finance committees.
func CommitteeTable() Table {
	rules := phraseRules(FamilyPhrase, 15, name, committeePhrases)
	rules = append(rules,
		Rule{Family: FamilyStructure, Name: "three_or_four_tokens", Points: 15, Match: func(r record.Record, _ Context) bool {
			n := tokens(r)
			return n == 3 || n == 4
		}},
		regexRule(FamilyVague, "vague_purpose", 10, committeeVague),
		regexRule(FamilyVehicle, "vehicle_word", 10, committeeVeh),
		Rule{Family: FamilyCommittee, Name: "independent_expenditure", Points: 15, Match: func(r record.Record, _ Context) bool {
			c, ok := r.(record.CommitteeFiling)
			return ok && independentExpenditureTypes[strings.ToUpper(strings.TrimSpace(c.CommitteeType))]
		}},
		Rule{Family: FamilyRecency, Name: "within_2y", Points: 20, Match: ageWithin(730)},
		Rule{Family: FamilyRecency, Name: "within_5y", Points: 10, Match: ageWithin(1825)},
		Rule{Family: FamilyScale, Name: "disbursements_over_1m", Points: 15, Match: func(r record.Record, _ Context) bool {
			c, ok := r.(record.CommitteeFiling)
			return ok && c.Disbursements > 1_000_000 && hasCommitteePhrase(r)
		}},
		Rule{Family: FamilyJurisdiction, Name: "shell_state", Points: 10, Match: func(r record.Record, ctx Context) bool {
			return ctx.isShell(state(r))
		}},
	)
	return Table{Kind: record.KindCommittee, Rules: rules}
}

// JobTable scores job postings on title plus description.
func JobTable() Table {
	var rules []Rule
	rules = append(rules, phraseRules(FamilyHighTier, 25, jobText, jobHighTier)...)
	rules = append(rules, phraseRules(FamilyMediumTier, 10, jobText, jobMediumTier)...)
	rules = append(rules, phraseRules(FamilyUrgency, 5, jobText, jobUrgency)...)
	return Table{
		Kind: record.KindJob,
		Policies: map[Family]Policy{
			FamilyHighTier:   {Cumulative: true, Cap: 50},
			FamilyMediumTier: {Cumulative: true, Cap: 30},
			FamilyUrgency:    {Cumulative: true, Cap: 20},
		},
		Rules: rules,
	}
}

// NewsTable scores news relevance.
func NewsTable() Table {
	rules := []Rule{{
		Family: FamilyBase, Name: "has_title", Points: 50,
		Match: func(r record.Record, _ Context) bool { return strings.TrimSpace(r.Base().Title) != "" },
	}}
	rules = append(rules, phraseRules(FamilyTitleKeyword, 15, name, newsKeywords)...)
	rules = append(rules, phraseRules(FamilySnippet, 5, snippet, newsKeywords)...)
	rules = append(rules, phraseRules(FamilyHighValue, 20, name, newsHighValue)...)
	return Table{
		Kind: record.KindNews,
		Policies: map[Family]Policy{
			FamilyTitleKeyword: {Cumulative: true},
			FamilySnippet:      {Cumulative: true},
			FamilyHighValue:    {Cumulative: true, Cap: 40},
		},
		Rules: rules,
	}
}
