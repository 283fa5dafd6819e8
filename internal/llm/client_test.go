package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-insights/backend/pkg/circuitbreaker"
	"github.com/feedback-insights/backend/pkg/config"
)

type fakeOpenAI struct {
	calls    atomic.Int32
	lastBody atomic.Value
	handle   func(n int32, w http.ResponseWriter)
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.lastBody.Store(body)
	f.handle(f.calls.Add(1), w)
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "server_error"},
	})
}

func newTestClient(t *testing.T, f *fakeOpenAI) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	return NewClient(config.LLMConfig{
		Model:       "test-model",
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/v1",
		Temperature: 0.2,
		MaxTokens:   256,
		TimeoutSec:  5,
		MaxAttempts: 2,
	})
}

func TestExtractInsightsReturnsRawContent(t *testing.T) {
	f := &fakeOpenAI{handle: func(_ int32, w http.ResponseWriter) {
		writeCompletion(w, "```json\n{\"summary\":\"x\"}\n```")
	}}
	c := newTestClient(t, f)

	out, err := c.ExtractInsights(context.Background(), "The export button does nothing")
	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"summary\":\"x\"}\n```", out)

	body := f.lastBody.Load().(map[string]any)
	assert.Equal(t, "test-model", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].(map[string]any)["content"], "The export button does nothing")
}

func TestExtractInsightsDoesNotRetry(t *testing.T) {
	f := &fakeOpenAI{handle: func(_ int32, w http.ResponseWriter) {
		writeError(w, http.StatusInternalServerError, "model overloaded")
	}}
	c := newTestClient(t, f)

	_, err := c.ExtractInsights(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestExtractInsightsBypassesBreaker(t *testing.T) {
	f := &fakeOpenAI{handle: func(_ int32, w http.ResponseWriter) {
		writeError(w, http.StatusInternalServerError, "model overloaded")
	}}
	c := newTestClient(t, f)

	for i := 0; i < 7; i++ {
		_, err := c.ExtractInsights(context.Background(), "text")
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	}
	assert.Equal(t, int32(7), f.calls.Load(), "every item reaches the provider")
	assert.Equal(t, circuitbreaker.StateClosed, c.cb.State())
}

func TestConverseTripsBreaker(t *testing.T) {
	f := &fakeOpenAI{handle: func(_ int32, w http.ResponseWriter) {
		writeError(w, http.StatusInternalServerError, "model overloaded")
	}}
	c := newTestClient(t, f)
	c.retryConfig.MaxAttempts = 1

	for i := 0; i < 5; i++ {
		_, err := c.Converse(context.Background(), "hello")
		require.Error(t, err)
	}
	calls := f.calls.Load()

	_, err := c.Converse(context.Background(), "hello")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, calls, f.calls.Load())
}

func TestAnswerAboutInsightRetriesServerErrors(t *testing.T) {
	f := &fakeOpenAI{handle: func(n int32, w http.ResponseWriter) {
		if n == 1 {
			writeError(w, http.StatusServiceUnavailable, "try later")
			return
		}
		writeCompletion(w, "Because the token expires.")
	}}
	c := newTestClient(t, f)

	out, err := c.AnswerAboutInsight(context.Background(), `{"summary":"login"}`, "why?")
	require.NoError(t, err)
	assert.Equal(t, "Because the token expires.", out)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	f := &fakeOpenAI{handle: func(_ int32, w http.ResponseWriter) {
		writeError(w, http.StatusBadRequest, "bad request")
	}}
	c := newTestClient(t, f)

	_, err := c.Converse(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCompleteToleratesMissingChoices(t *testing.T) {
	f := &fakeOpenAI{handle: func(_ int32, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[],"usage":{}}`))
	}}
	c := newTestClient(t, f)

	out, err := c.ExtractInsights(context.Background(), "text")
	require.NoError(t, err)
	assert.Empty(t, out)
}
