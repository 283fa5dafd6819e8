package insight

import (
	"encoding/json"
	"time"
)

// FeedbackItem is one unit of raw feedback. IDs are unique within a batch only.
type FeedbackItem struct {
	ID     int64
	Text   string
	Source string
	URL    string
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Outcome is either Success or Failure. Callers switch on the concrete type.
type Outcome interface {
	isOutcome()
}

type Success struct {
	PainPoints []string `json:"painPoints"`
	Summary    string   `json:"summary"`
	Priority   Priority `json:"priority"`
}

type Failure struct {
	Error     string `json:"error"`
	RawOutput string `json:"rawOutput,omitempty"`
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// AnalysisResult keeps the provenance of the source item even when analysis failed.
type AnalysisResult struct {
	OriginalID     int64
	OriginalSource string
	OriginalURL    string
	Outcome        Outcome
}

func NewResult(item FeedbackItem, outcome Outcome) AnalysisResult {
	return AnalysisResult{
		OriginalID:     item.ID,
		OriginalSource: item.Source,
		OriginalURL:    item.URL,
		Outcome:        outcome,
	}
}

// Success returns the success payload and true, or false for a Failure.
func (r AnalysisResult) Success() (Success, bool) {
	s, ok := r.Outcome.(Success)
	return s, ok
}

type resultJSON struct {
	OriginalID     int64   `json:"originalId"`
	OriginalSource string  `json:"originalSource"`
	OriginalURL    string  `json:"originalUrl,omitempty"`
	Analysis       Outcome `json:"analysis"`
}

func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		OriginalID:     r.OriginalID,
		OriginalSource: r.OriginalSource,
		OriginalURL:    r.OriginalURL,
		Analysis:       r.Outcome,
	})
}

// Batch is one ingestion and its results, index-aligned.
// It is never mutated after the session store publishes it.
type Batch struct {
	ID         string
	Generation uint64
	Items      []FeedbackItem
	Results    []AnalysisResult
	CreatedAt  time.Time
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Results)
}

// Counts tallies the outcomes in the batch.
func (b *Batch) Counts() (succeeded, failed int) {
	if b == nil {
		return 0, 0
	}
	for _, r := range b.Results {
		switch r.Outcome.(type) {
		case Success:
			succeeded++
		case Failure:
			failed++
		}
	}
	return succeeded, failed
}
