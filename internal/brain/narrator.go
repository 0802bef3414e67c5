package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abelbrown/astroscan/internal/confidence"
	"github.com/abelbrown/astroscan/internal/logging"
)

// ErrMalformedResponse wraps any model answer that does not fit the schema.
var ErrMalformedResponse = errors.New("malformed narrative response")

var narrativeValidate = validator.New()

const narratorSystemPrompt = `You are analyzing data for astroturf (fake grassroots) detection in the US.
Respond with ONLY valid JSON. No prose, no markdown.`

const narratorSchema = `{"confidence":NUMBER_35_TO_85,"confidence_factors":[{"factor":"NAME","score":NUMBER,"detail":"WHY"}],"summary":"ONE_SENTENCE","alerts":[{"title":"TITLE","description":"DESCRIPTION","confidence":NUMBER,"sources":["SRC"]}],"hot_states":["TX","CA"],"recommendations":["NEXT_STEP"]}`

// Narrator asks a language model for a confidence assessment.
type Narrator struct {
	providers *ProviderManager
	maxTokens int
}

// NewNarrator returns a narrator backed by pm.
func NewNarrator(pm *ProviderManager) *Narrator {
	return &Narrator{providers: pm, maxTokens: 1500}
}

// WithMaxTokens caps the response length. Non-positive values are ignored.
func (n *Narrator) WithMaxTokens(max int) *Narrator {
	if max > 0 {
		n.maxTokens = max
	}
	return n
}

var _ confidence.NarrativeGenerator = (*Narrator)(nil)

// Available reports whether any provider is configured.
func (n *Narrator) Available() bool {
	return n != nil && n.providers != nil && n.providers.GetAvailable() != nil
}

// Generate sends one prompt built from d and parses the answer.
func (n *Narrator) Generate(ctx context.Context, d confidence.Digest) (confidence.NarrativeResult, error) {
	if !n.Available() {
		return confidence.NarrativeResult{}, confidence.ErrNarrativeUnavailable
	}
	p := n.providers.GetAvailable()

	prompt, err := BuildPrompt(d)
	if err != nil {
		return confidence.NarrativeResult{}, err
	}

	resp, err := p.Generate(ctx, Request{
		SystemPrompt: narratorSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    n.maxTokens,
		JSON:         true,
	})
	if err != nil {
		return confidence.NarrativeResult{}, fmt.Errorf("%s: %w", p.Name(), err)
	}

	res, err := ParseNarrative(resp.Content)
	if err != nil {
		logging.Warn("narrative response rejected", "provider", p.Name(), "model", resp.Model, "error", err)
		return confidence.NarrativeResult{}, err
	}
	logging.Info("narrative assessment received", "provider", p.Name(), "confidence", *res.Confidence, "alerts", len(res.Alerts))
	return res, nil
}

// BuildPrompt renders the digest and the expected answer schema.
func BuildPrompt(d confidence.Digest) (string, error) {
	corr, err := json.Marshal(d.Correlations)
	if err != nil {
		return "", fmt.Errorf("marshal correlations: %w", err)
	}

	var b strings.Builder
	b.WriteString("DATA:\n")
	fmt.Fprintf(&b, "- News: %d articles (top: %d%%)\n", d.NewsCount, topScore(d.TopNews))
	fmt.Fprintf(&b, "- Orgs: %d flagged (top: %d%%)\n", d.OrgCount, topScore(d.TopOrgs))
	fmt.Fprintf(&b, "- Jobs: %d tracked (top: %d%%)\n", d.JobCount, topScore(d.TopJobs))
	fmt.Fprintf(&b, "- High-severity anomalies: %d\n", d.HighAnomalies)
	fmt.Fprintf(&b, "- Previous confidence: %d\n", d.PriorConfidence)
	fmt.Fprintf(&b, "- Correlations: %s\n\n", corr)

	writeItems(&b, "NEWS", d.TopNews, 3)
	writeItems(&b, "ORGS", d.TopOrgs, 3)
	writeItems(&b, "JOBS", d.TopJobs, 3)

	b.WriteString("\nRespond with ONLY valid JSON:\n")
	b.WriteString(narratorSchema)
	return b.String(), nil
}

func writeItems(b *strings.Builder, label string, items []confidence.DigestItem, n int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for i, it := range items {
		if i == n {
			break
		}
		fmt.Fprintf(b, "- %s (%d)\n", it.Title, it.Score)
	}
}

func topScore(items []confidence.DigestItem) int {
	top := 0
	for _, it := range items {
		if it.Score > top {
			top = it.Score
		}
	}
	return top
}

// ParseNarrative decodes a model answer, tolerating a surrounding code fence.
func ParseNarrative(text string) (confidence.NarrativeResult, error) {
	var res confidence.NarrativeResult
	body := stripFence(text)
	if body == "" {
		return res, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return confidence.NarrativeResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := narrativeValidate.Struct(res); err != nil {
		return confidence.NarrativeResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return res, nil
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if end := strings.Index(text, "```"); end >= 0 {
		text = text[:end]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "json")
	return strings.TrimSpace(text)
}
