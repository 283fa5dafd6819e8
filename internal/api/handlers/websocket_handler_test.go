package handlers

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-insights/backend/internal/dispatch"
)

type fakeConn struct {
	in chan string

	mu  sync.Mutex
	out []map[string]interface{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan string)}
}

func (f *fakeConn) ReadJSON(v interface{}) error {
	raw, ok := <-f.in
	if !ok {
		return io.EOF
	}
	return json.Unmarshal([]byte(raw), v)
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, msg)
	return nil
}

func (f *fakeConn) written() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.out...)
}

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, key, text string) dispatch.Reply {
	return dispatch.Reply{Text: key + ":" + text, Code: "ok"}
}

// slowDispatcher blocks until its context ends.
type slowDispatcher struct {
	started chan struct{}
	ended   chan error
}

func (d *slowDispatcher) Dispatch(ctx context.Context, _, _ string) dispatch.Reply {
	close(d.started)
	<-ctx.Done()
	d.ended <- ctx.Err()
	return dispatch.Reply{Code: "answer_failed"}
}

func serveAsync(h *WebSocketHandler, conn jsonConn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.serve(conn, "s1")
	}()
	return done
}

func TestWebSocketServeRepliesPerMessage(t *testing.T) {
	conn := newFakeConn()
	done := serveAsync(NewWebSocketHandler(echoDispatcher{}), conn)

	conn.in <- `{"type":"ping"}`
	conn.in <- `{"type":"message","text":"/help"}`
	conn.in <- `{"text":"hello"}`
	require.Eventually(t, func() bool { return len(conn.written()) == 3 }, 2*time.Second, 10*time.Millisecond)
	close(conn.in)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after the socket closed")
	}

	out := conn.written()
	require.Len(t, out, 3)
	assert.Equal(t, "error", out[0]["type"])
	assert.Equal(t, "Unsupported message type", out[0]["error"])
	assert.Equal(t, "reply", out[1]["type"])
	assert.Equal(t, "s1:/help", out[1]["reply"].(map[string]interface{})["text"])
	assert.Equal(t, "s1:hello", out[2]["reply"].(map[string]interface{})["text"])
}

func TestWebSocketDisconnectCancelsDispatch(t *testing.T) {
	d := &slowDispatcher{started: make(chan struct{}), ended: make(chan error, 1)}
	conn := newFakeConn()
	done := serveAsync(NewWebSocketHandler(d), conn)

	conn.in <- `{"text":"/ask_about_current why is export slow?"}`
	<-d.started
	close(conn.in)

	select {
	case err := <-d.ended:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was not cancelled by the disconnect")
	}

	<-done
	assert.Empty(t, conn.written(), "no reply is written to a closed socket")
}
