package render

import (
	"fmt"
	"strings"

	"github.com/feedback-insights/backend/internal/insight"
)

var priorityBadge = map[insight.Priority]string{
	insight.PriorityHigh:   "🔴 High",
	insight.PriorityMedium: "🟠 Medium",
	insight.PriorityLow:    "🟢 Low",
}

// Position locates a card inside the batch and, optionally, inside a search.
// Index is 0-based, Match is 1-based and zero unless the result is the
// current search match.
type Position struct {
	Index   int `json:"index"`
	Total   int `json:"total"`
	Match   int `json:"match,omitempty"`
	Matches int `json:"matches,omitempty"`
}

func (p Position) String() string {
	s := fmt.Sprintf("Insight %d of %d", p.Index+1, p.Total)
	if p.Matches > 0 {
		s += fmt.Sprintf(" · match %d of %d", p.Match, p.Matches)
	}
	return s
}

// Card renders a result as a markdown message.
func Card(r insight.AnalysisResult, pos Position) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s*\n", pos)
	fmt.Fprintf(&b, "Feedback #%d from %s", r.OriginalID, r.OriginalSource)
	if r.OriginalURL != "" {
		fmt.Fprintf(&b, " ([link](%s))", r.OriginalURL)
	}
	b.WriteString("\n\n")

	switch o := r.Outcome.(type) {
	case insight.Success:
		writeSuccess(&b, o)
	case insight.Failure:
		writeFailure(&b, o)
	default:
		b.WriteString("_No analysis available._\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeSuccess(b *strings.Builder, s insight.Success) {
	fmt.Fprintf(b, "*Priority:* %s\n", priorityBadge[s.Priority])
	fmt.Fprintf(b, "*Summary:* %s\n", s.Summary)

	if len(s.PainPoints) == 0 {
		b.WriteString("*Pain points:* none reported\n")
		return
	}
	b.WriteString("*Pain points:*\n")
	for _, p := range s.PainPoints {
		fmt.Fprintf(b, "• %s\n", p)
	}
}

func writeFailure(b *strings.Builder, f insight.Failure) {
	fmt.Fprintf(b, "⚠️ *Analysis failed:* %s\n", f.Error)
	if f.RawOutput != "" {
		raw := f.RawOutput
		if r := []rune(raw); len(r) > 300 {
			raw = string(r[:300]) + "…"
		}
		fmt.Fprintf(b, "```\n%s\n```\n", raw)
	}
}
