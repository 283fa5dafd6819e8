package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-insights/backend/internal/storage/models"
)

func openTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func TestIngestionRunsNewestFirst(t *testing.T) {
	c := openTestClient(t)
	base := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"batch-a", "batch-b", "batch-c"} {
		require.NoError(t, c.InsertIngestionRun(&models.IngestionRun{
			BatchID:    id,
			ItemCount:  3,
			Succeeded:  2,
			Failed:     1,
			DurationMS: 1500,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := c.ListIngestionRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "batch-c", runs[0].BatchID)
	assert.Equal(t, "batch-b", runs[1].BatchID)
	assert.Equal(t, 1, runs[0].Failed)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(2*time.Minute)))
}

func TestListIngestionRunsEmpty(t *testing.T) {
	c := openTestClient(t)

	runs, err := c.ListIngestionRuns(10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestQuestionHistoryPerSession(t *testing.T) {
	c := openTestClient(t)
	now := time.UnixMilli(1_700_000_000_000)

	first := &models.QuestionRecord{SessionKey: "chat-1", BatchID: "b1", ItemID: 7, Question: "why?", Answer: "because", CreatedAt: now}
	require.NoError(t, c.InsertQuestion(first))
	assert.NotZero(t, first.ID)

	require.NoError(t, c.InsertQuestion(&models.QuestionRecord{SessionKey: "chat-2", BatchID: "b1", ItemID: 8, Question: "who?", Answer: "them", CreatedAt: now}))
	require.NoError(t, c.InsertQuestion(&models.QuestionRecord{SessionKey: "chat-1", BatchID: "b1", ItemID: 9, Question: "when?", Answer: "today", CreatedAt: now.Add(time.Second)}))

	history, err := c.GetQuestionHistory("chat-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "when?", history[0].Question)
	assert.Equal(t, int64(7), history[1].ItemID)
}
