package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/internal/metrics"
	"github.com/feedback-insights/backend/internal/storage/models"
	"github.com/feedback-insights/backend/pkg/logger"
	"github.com/feedback-insights/backend/pkg/utils"
)

// Answerer is the language-model capability behind follow-up questions.
type Answerer interface {
	AnswerAboutInsight(ctx context.Context, analysisJSON, question string) (string, error)
}

type AnswerCache interface {
	GetAnswer(ctx context.Context, key string) (string, bool, error)
	SetAnswer(ctx context.Context, key, answer string) error
}

type QuestionLog interface {
	InsertQuestion(record *models.QuestionRecord) error
}

// View is the result under a session's cursor.
type View struct {
	BatchID string
	Result  insight.AnalysisResult
	Index   int
	Total   int
	// Match and Matches are set while a search is active (Match is 1-based).
	Match   int
	Matches int
}

type Answer struct {
	View   View
	Text   string
	Cached bool
}

type Navigator struct {
	store    *Store
	answerer Answerer
	cache    AnswerCache
	history  QuestionLog
}

// NewNavigator builds the navigation engine. cache and history may be nil.
func NewNavigator(store *Store, answerer Answerer, cache AnswerCache, history QuestionLog) *Navigator {
	return &Navigator{
		store:    store,
		answerer: answerer,
		cache:    cache,
		history:  history,
	}
}

func view(st *state, b *insight.Batch) View {
	v := View{
		BatchID: b.ID,
		Result:  b.Results[st.cursor],
		Index:   st.cursor,
		Total:   b.Len(),
	}
	// A search survives plain paging, but the match label only belongs on
	// the result the search points at.
	if st.search != nil && st.search.matches[st.search.position] == st.cursor {
		v.Match = st.search.position + 1
		v.Matches = len(st.search.matches)
	}
	return v
}

// ShowFirst moves the cursor to the first result.
func (n *Navigator) ShowFirst(key string) (View, error) {
	var v View
	err := n.store.with(key, func(st *state, b *insight.Batch) error {
		if b.Len() == 0 {
			return ErrEmptyBatch
		}
		st.hasCursor = true
		st.cursor = 0
		v = view(st, b)
		return nil
	})
	return v, err
}

// ShowLatest moves the cursor to the last result.
func (n *Navigator) ShowLatest(key string) (View, error) {
	var v View
	err := n.store.with(key, func(st *state, b *insight.Batch) error {
		if b.Len() == 0 {
			return ErrEmptyBatch
		}
		st.hasCursor = true
		st.cursor = b.Len() - 1
		v = view(st, b)
		return nil
	})
	return v, err
}

// Next advances the cursor. Past the last result it reports ErrNoMoreItems
// and parks the cursor on the first result without showing it.
func (n *Navigator) Next(key string) (View, error) {
	var v View
	err := n.store.with(key, func(st *state, b *insight.Batch) error {
		if !st.hasCursor {
			return ErrNoCurrentSelection
		}
		if st.cursor+1 >= b.Len() {
			st.cursor = 0
			return ErrNoMoreItems
		}
		st.cursor++
		v = view(st, b)
		return nil
	})
	return v, err
}

// NextSearchResult moves to the next match. Past the last match the search
// is discarded; it never wraps.
func (n *Navigator) NextSearchResult(key string) (View, error) {
	var v View
	err := n.store.with(key, func(st *state, b *insight.Batch) error {
		if st.search == nil {
			return ErrNoActiveSearch
		}
		if st.search.position+1 >= len(st.search.matches) {
			st.search = nil
			return ErrNoMoreResults
		}
		st.search.position++
		st.hasCursor = true
		st.cursor = st.search.matches[st.search.position]
		v = view(st, b)
		return nil
	})
	return v, err
}

// Search starts a new search over successful results. A search with no
// matches leaves the previous state untouched.
func (n *Navigator) Search(key, keyword string) (View, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return View{}, ErrMissingKeyword
	}

	var v View
	err := n.store.with(key, func(st *state, b *insight.Batch) error {
		if b.Len() == 0 {
			return ErrEmptyBatch
		}
		matches := MatchIndices(b, keyword)
		if len(matches) == 0 {
			return ErrNoMatches
		}
		st.search = &searchContext{matches: matches}
		st.hasCursor = true
		st.cursor = matches[0]
		v = view(st, b)
		return nil
	})
	return v, err
}

// Current returns the result under the cursor.
func (n *Navigator) Current(key string) (View, error) {
	var v View
	err := n.store.with(key, func(st *state, b *insight.Batch) error {
		if !st.hasCursor {
			return ErrNoCurrentSelection
		}
		v = view(st, b)
		return nil
	})
	return v, err
}

// Ask answers a question about the current result. The session lock is not
// held while the model is working.
func (n *Navigator) Ask(ctx context.Context, key, question string) (*Answer, error) {
	current, err := n.Current(key)
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrMissingQuestion
	}

	cacheKey := utils.HashParts(current.BatchID, strconv.Itoa(current.Index), strings.ToLower(question))
	if n.cache != nil {
		answer, ok, err := n.cache.GetAnswer(ctx, cacheKey)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		} else if ok {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			return &Answer{View: current, Text: answer, Cached: true}, nil
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	analysisJSON, err := json.Marshal(current.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnswerFailed, err)
	}

	answer, err := n.answerer.AnswerAboutInsight(ctx, string(analysisJSON), question)
	if err != nil {
		logger.Warn("Follow-up question failed",
			zap.String("session", key),
			zap.Int64("item_id", current.Result.OriginalID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrAnswerFailed, err)
	}

	if n.cache != nil {
		if err := n.cache.SetAnswer(ctx, cacheKey, answer); err != nil {
			logger.Warn("Failed to cache answer", zap.Error(err))
		}
	}

	if n.history != nil {
		err := n.history.InsertQuestion(&models.QuestionRecord{
			SessionKey: key,
			BatchID:    current.BatchID,
			ItemID:     current.Result.OriginalID,
			Question:   question,
			Answer:     answer,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			logger.Warn("Failed to record question", zap.Error(err))
		}
	}

	return &Answer{View: current, Text: answer}, nil
}

// MatchIndices returns, in batch order, the successful results whose summary,
// any pain point, or source+URL contain keyword case-insensitively.
func MatchIndices(b *insight.Batch, keyword string) []int {
	needle := strings.ToLower(keyword)
	var matches []int

	for i, r := range b.Results {
		s, ok := r.Success()
		if !ok {
			continue
		}
		if matchesSuccess(s, needle) || strings.Contains(strings.ToLower(r.OriginalSource+r.OriginalURL), needle) {
			matches = append(matches, i)
		}
	}

	return matches
}

func matchesSuccess(s insight.Success, needle string) bool {
	if strings.Contains(strings.ToLower(s.Summary), needle) {
		return true
	}
	for _, p := range s.PainPoints {
		if strings.Contains(strings.ToLower(p), needle) {
			return true
		}
	}
	return false
}
