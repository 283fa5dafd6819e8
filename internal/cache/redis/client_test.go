package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewClient(mr.Addr(), "", 0, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestAnswerRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetAnswer(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetAnswer(ctx, "abc", "Because of the timeout."))

	got, ok, err := c.GetAnswer(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Because of the timeout.", got)
	assert.Equal(t, time.Hour, mr.TTL("answer:abc"))
}

func TestInvalidateAnswersKeepsOtherKeys(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for _, k := range []string{"1", "2", "3"} {
		require.NoError(t, c.SetAnswer(ctx, k, "x"))
	}
	require.NoError(t, mr.Set("ratelimit:chat", "5"))

	require.NoError(t, c.InvalidateAnswers(ctx))

	assert.False(t, mr.Exists("answer:1"))
	assert.False(t, mr.Exists("answer:3"))
	assert.True(t, mr.Exists("ratelimit:chat"))
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(addr, "", 0, time.Minute)
	assert.Error(t, err)
}
