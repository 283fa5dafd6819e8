package session

import "errors"

// Navigation errors are informational and leave the session usable.
var (
	ErrEmptyBatch         = errors.New("no analysed feedback available")
	ErrNoCurrentSelection = errors.New("no insight selected")
	ErrNoMoreItems        = errors.New("no more insights")
	ErrNoMoreResults      = errors.New("no more search results")
	ErrNoActiveSearch     = errors.New("no active search")
	ErrNoMatches          = errors.New("no insights match the keyword")
	ErrMissingKeyword     = errors.New("search keyword is required")
	ErrMissingQuestion    = errors.New("question is required")
	ErrAnswerFailed       = errors.New("could not answer the question")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrEmptyBatch, "empty_batch"},
	{ErrNoCurrentSelection, "no_current_selection"},
	{ErrNoMoreItems, "no_more_items"},
	{ErrNoMoreResults, "no_more_results"},
	{ErrNoActiveSearch, "no_active_search"},
	{ErrNoMatches, "no_matches"},
	{ErrMissingKeyword, "missing_keyword"},
	{ErrMissingQuestion, "missing_question"},
	{ErrAnswerFailed, "answer_failed"},
}

// Code returns a stable machine-readable code for err, "ok" for nil and
// "internal" for anything that is not a navigation error.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
