package record

// CollectedBatch is everything the collectors produced for one scan.
type CollectedBatch struct {
	Jobs       []JobPosting      `json:"jobs"`
	News       []NewsItem        `json:"news"`
	Nonprofits []Organization    `json:"nonprofits"`
	Committees []CommitteeFiling `json:"committees"`
}

// Len returns the total record count, placeholders included.
func (b CollectedBatch) Len() int {
	return len(b.Jobs) + len(b.News) + len(b.Nonprofits) + len(b.Committees)
}

// Counts returns the record count per kind.
func (b CollectedBatch) Counts() map[Kind]int {
	return map[Kind]int{
		KindJob:          len(b.Jobs),
		KindNews:         len(b.News),
		KindOrganization: len(b.Nonprofits),
		KindCommittee:    len(b.Committees),
	}
}

// RealJobs returns job postings that are not monitoring placeholders.
func (b CollectedBatch) RealJobs() []JobPosting {
	out := make([]JobPosting, 0, len(b.Jobs))
	for _, j := range b.Jobs {
		if !j.Monitoring {
			out = append(out, j)
		}
	}
	return out
}

// Entities returns nonprofits followed by committees as entity views.
func (b CollectedBatch) Entities() []Entity {
	out := make([]Entity, 0, len(b.Nonprofits)+len(b.Committees))
	for _, o := range b.Nonprofits {
		out = append(out, o.AsEntity())
	}
	for _, c := range b.Committees {
		out = append(out, c.AsEntity())
	}
	return out
}

// Records flattens the batch into the Record interface, in kind order.
func (b CollectedBatch) Records() []Record {
	out := make([]Record, 0, b.Len())
	for _, r := range b.Jobs {
		out = append(out, r)
	}
	for _, r := range b.News {
		out = append(out, r)
	}
	for _, r := range b.Nonprofits {
		out = append(out, r)
	}
	for _, r := range b.Committees {
		out = append(out, r)
	}
	return out
}

// Clone returns a copy whose slices do not alias b.
func (b CollectedBatch) Clone() CollectedBatch {
	c := CollectedBatch{
		Jobs:       append([]JobPosting(nil), b.Jobs...),
		News:       append([]NewsItem(nil), b.News...),
		Nonprofits: append([]Organization(nil), b.Nonprofits...),
		Committees: append([]CommitteeFiling(nil), b.Committees...),
	}
	for i := range c.Jobs {
		c.Jobs[i].Keywords = append([]string(nil), c.Jobs[i].Keywords...)
	}
	return c
}

// Append returns b followed by o, kind by kind.
func (b CollectedBatch) Append(o CollectedBatch) CollectedBatch {
	return CollectedBatch{
		Jobs:       append(append([]JobPosting(nil), b.Jobs...), o.Jobs...),
		News:       append(append([]NewsItem(nil), b.News...), o.News...),
		Nonprofits: append(append([]Organization(nil), b.Nonprofits...), o.Nonprofits...),
		Committees: append(append([]CommitteeFiling(nil), b.Committees...), o.Committees...),
	}
}
