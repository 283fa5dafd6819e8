package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-insights/backend/internal/insight"
)

type fakeProvider struct {
	extract func(ctx context.Context, text string) (string, error)
	seen    []string
}

func (f *fakeProvider) ExtractInsights(ctx context.Context, text string) (string, error) {
	f.seen = append(f.seen, text)
	return f.extract(ctx, text)
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    insight.Outcome
	}{
		{
			name:    "plain json",
			content: `{"painPoints":["slow export"],"summary":"Exports are slow","priority":"medium"}`,
			want: insight.Success{
				PainPoints: []string{"slow export"},
				Summary:    "Exports are slow",
				Priority:   insight.PriorityMedium,
			},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"painPoints\":[],\"summary\":\"Praise\",\"priority\":\"low\"}\n```",
			want:    insight.Success{PainPoints: []string{}, Summary: "Praise", Priority: insight.PriorityLow},
		},
		{
			name:    "empty content",
			content: "",
			want:    insight.Failure{Error: ErrNoContent},
		},
		{
			name:    "prose instead of json",
			content: "Sure! Here are the insights: the user is unhappy.",
			want:    insight.Failure{Error: ErrInvalidJSON, RawOutput: "Sure! Here are the insights: the user is unhappy."},
		},
		{
			name:    "leading whitespace keeps the fence",
			content: "  ```json\n{\"painPoints\":[],\"summary\":\"x\",\"priority\":\"low\"}```",
			want:    insight.Failure{Error: ErrInvalidJSON, RawOutput: "  ```json\n{\"painPoints\":[],\"summary\":\"x\",\"priority\":\"low\"}```"},
		},
		{
			name:    "priority outside taxonomy",
			content: `{"painPoints":["x"],"summary":"y","priority":"urgent"}`,
			want:    insight.Failure{Error: ErrBadSchema, RawOutput: `{"painPoints":["x"],"summary":"y","priority":"urgent"}`},
		},
		{
			name:    "priority wrong case",
			content: `{"painPoints":["x"],"summary":"y","priority":"High"}`,
			want:    insight.Failure{Error: ErrBadSchema, RawOutput: `{"painPoints":["x"],"summary":"y","priority":"High"}`},
		},
		{
			name:    "missing summary",
			content: `{"painPoints":["x"],"priority":"low"}`,
			want:    insight.Failure{Error: ErrBadSchema, RawOutput: `{"painPoints":["x"],"priority":"low"}`},
		},
		{
			name:    "pain points not strings",
			content: `{"painPoints":[1,2],"summary":"y","priority":"low"}`,
			want:    insight.Failure{Error: ErrBadSchema, RawOutput: `{"painPoints":[1,2],"summary":"y","priority":"low"}`},
		},
		{
			name:    "json array",
			content: `[]`,
			want:    insight.Failure{Error: ErrBadSchema, RawOutput: `[]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOutcome(tt.content))
		})
	}
}

func TestAnalyzeCopiesProvenance(t *testing.T) {
	p := &fakeProvider{extract: func(context.Context, string) (string, error) {
		return `{"painPoints":["crash"],"summary":"App crashes","priority":"high"}`, nil
	}}
	e := NewEngine(p, 0)

	item := insight.FeedbackItem{ID: 42, Text: "It crashes", Source: "appstore", URL: "https://apps.example.com/r/42"}
	res := e.Analyze(context.Background(), item)

	assert.Equal(t, int64(42), res.OriginalID)
	assert.Equal(t, "appstore", res.OriginalSource)
	assert.Equal(t, "https://apps.example.com/r/42", res.OriginalURL)

	s, ok := res.Success()
	require.True(t, ok)
	assert.Equal(t, insight.PriorityHigh, s.Priority)
	assert.Equal(t, []string{"It crashes"}, p.seen)
}

func TestAnalyzeRecordsProviderError(t *testing.T) {
	p := &fakeProvider{extract: func(context.Context, string) (string, error) {
		return "", errors.New("status code: 429, message: rate limited")
	}}
	e := NewEngine(p, 0)

	res := e.Analyze(context.Background(), insight.FeedbackItem{ID: 1, Text: "x", Source: "web"})

	assert.Equal(t, insight.Failure{Error: "status code: 429, message: rate limited"}, res.Outcome)
	assert.Equal(t, int64(1), res.OriginalID)
}

func TestAnalyzeRecoversFromPanic(t *testing.T) {
	p := &fakeProvider{extract: func(context.Context, string) (string, error) {
		panic("nil response")
	}}
	e := NewEngine(p, 0)

	res := e.Analyze(context.Background(), insight.FeedbackItem{ID: 3, Text: "x", Source: "web"})

	f, ok := res.Outcome.(insight.Failure)
	require.True(t, ok)
	assert.Contains(t, f.Error, "nil response")
	assert.Equal(t, int64(3), res.OriginalID)
}

func TestPrepareTextFlattensHTML(t *testing.T) {
	html := `<div><p>The <b>export</b> button</p><p>does nothing.</p><script>track()</script></div>`

	out := PrepareText(html, 0)

	assert.Equal(t, "The export button does nothing.", out)
}

func TestPrepareTextLeavesPlainTextAlone(t *testing.T) {
	text := "Price went up 5 < 10 times > before"
	assert.Equal(t, text, PrepareText(text, 0))
}

func TestPrepareTextCutsAtSentenceBoundary(t *testing.T) {
	text := "The export fails every time. Support never answered my ticket. I am cancelling my plan."

	out := PrepareText(text, 60)

	assert.Equal(t, "The export fails every time.", out)
}

func TestPrepareTextHardCutsLongSentence(t *testing.T) {
	text := strings.Repeat("é", 50)

	out := PrepareText(text, 15)

	assert.LessOrEqual(t, len(out), 15)
	assert.Equal(t, strings.Repeat("é", 7), out)
}
