package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) model.SubtitleProgressUpdate {
	t.Helper()
	select {
	case payload, ok := <-c.Messages():
		require.True(t, ok, "channel closed")
		var u model.SubtitleProgressUpdate
		require.NoError(t, json.Unmarshal(payload, &u))
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return model.SubtitleProgressUpdate{}
}

func TestHub_PublishGoesToJobGroupOnly(t *testing.T) {
	hub, _ := startHub(t)
	ctx := context.Background()

	a := NewClient(hub, nil, "job-a")
	b := NewClient(hub, nil, "job-b")
	require.NoError(t, hub.Join(a))
	require.NoError(t, hub.Join(b))

	require.NoError(t, hub.Publish(ctx, model.SubtitleProgressUpdate{JobID: "job-a", Stage: "transcribing", Percent: 10}))
	require.NoError(t, hub.Publish(ctx, model.SubtitleProgressUpdate{JobID: "job-b", Stage: "completed", Percent: 100}))

	assert.Equal(t, "transcribing", receive(t, a).Stage)
	assert.Equal(t, 100, receive(t, b).Percent)
	assert.Empty(t, a.Messages())
}

func TestHub_Leave(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient(hub, nil, "job-1")
	require.NoError(t, hub.Join(c))
	assert.Eventually(t, func() bool { return hub.Subscribers("job-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Leave(c)
	_, ok := <-c.Messages()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("job-1"))

	// leaving twice is harmless
	hub.Leave(c)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub, _ := startHub(t)
	assert.NoError(t, hub.Publish(context.Background(), model.SubtitleProgressUpdate{JobID: "nobody"}))
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient(hub, nil, "job-slow")
	require.NoError(t, hub.Join(c))

	for i := 0; i <= sendBuffer; i++ {
		require.NoError(t, hub.Publish(context.Background(), model.SubtitleProgressUpdate{JobID: "job-slow", Percent: i}))
	}
	assert.Eventually(t, func() bool { return hub.Subscribers("job-slow") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_Closed(t *testing.T) {
	hub, cancel := startHub(t)
	c := NewClient(hub, nil, "job-1")
	require.NoError(t, hub.Join(c))
	cancel()

	_, ok := <-c.Messages()
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Publish(context.Background(), model.SubtitleProgressUpdate{JobID: "job-1"}), ErrHubClosed)
	assert.ErrorIs(t, hub.Join(NewClient(hub, nil, "job-1")), ErrHubClosed)
}

func TestHub_PublishRespectsContext(t *testing.T) {
	hub := NewHub(logging.NewNop()) // not running
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Publish(ctx, model.SubtitleProgressUpdate{JobID: "x"}), context.Canceled)
}

func TestHub_ServeWS(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/job-42", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("job-42") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), model.SubtitleProgressUpdate{
		JobID: "job-42", Stage: "translating", Percent: 72, Message: "Translated fr",
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.SubtitleProgressUpdate
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "translating", got.Stage)
	assert.Equal(t, 72, got.Percent)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("job-42") == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Publish(context.Background(), model.SubtitleProgressUpdate{}))
}
