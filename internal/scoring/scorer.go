package scoring

import (
	"time"

	"github.com/abelbrown/astroscan/internal/record"
)

// Scorer holds one rule table per record kind.
type Scorer struct {
	tables map[record.Kind]Table
	ctx    Context
}

// New returns a scorer with the default tables. A zero Now is replaced with
// the current time and an empty jurisdiction list with the defaults.
func New(ctx Context) *Scorer {
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}
	if len(ctx.ShellJurisdictions) == 0 {
		ctx.ShellJurisdictions = DefaultShellJurisdictions
	}
	s := &Scorer{tables: make(map[record.Kind]Table), ctx: ctx}
	for _, t := range []Table{JobTable(), NewsTable(), OrganizationTable(), CommitteeTable()} {
		s.tables[t.Kind] = t
	}
	return s
}

// WithTable replaces the table for t.Kind.
func (s *Scorer) WithTable(t Table) *Scorer {
	s.tables[t.Kind] = t
	return s
}

// Score returns r's score in [0,100]. Unknown kinds score 0.
func (s *Scorer) Score(r record.Record) int {
	score, _ := s.Explain(r)
	return score
}

// Explain returns the score together with the rules that produced it.
func (s *Scorer) Explain(r record.Record) (int, []Hit) {
	if r == nil {
		return 0, nil
	}
	t, ok := s.tables[r.Kind()]
	if !ok {
		return 0, nil
	}
	return t.Evaluate(r, s.ctx)
}

// Apply returns a copy of b with every score field recomputed.
func (s *Scorer) Apply(b record.CollectedBatch) record.CollectedBatch {
	out := b.Clone()
	for i := range out.Jobs {
		if out.Jobs[i].Monitoring {
			out.Jobs[i].SuspicionScore = 0
			continue
		}
		out.Jobs[i].SuspicionScore = s.Score(out.Jobs[i])
	}
	for i := range out.News {
		out.News[i].RelevanceScore = s.Score(out.News[i])
	}
	for i := range out.Nonprofits {
		out.Nonprofits[i].RiskScore = s.Score(out.Nonprofits[i])
	}
	for i := range out.Committees {
		out.Committees[i].RiskScore = s.Score(out.Committees[i])
	}
	return out
}
