package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psiquelab/portal/internal/testutil"
	"github.com/psiquelab/portal/internal/types"
)

var upgrader = websocket.Upgrader{}

// newFeedServer serves one WebSocket connection and pushes every frame
// from frames to the client.
func newFeedServer(t *testing.T, frames <-chan any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Log("upgrade:", err)
			return
		}
		defer conn.Close()

		for frame := range frames {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribe(t *testing.T) {
	frames := make(chan any, 4)
	srv := newFeedServer(t, frames)

	feed := NewFeed(wsURL(srv), testutil.TestLogger(t))
	events, err := feed.Subscribe(context.Background())
	require.NoError(t, err, "expected subscribe to succeed")

	msg := types.ChatMessage{
		Id:        uuid.New(),
		AuthorId:  uuid.New(),
		Body:      "hello",
		CreatedAt: time.Now().UTC().Round(time.Millisecond),
	}
	frames <- serverEvent{Message: &msg}

	select {
	case got := <-events:
		assert.Equal(t, msg.Id, got.Id, "expected the published row to come through")
		assert.Equal(t, msg.Body, got.Body)
	case <-time.After(time.Second):
		t.Fatal("timeout: no event delivered")
	}

	require.NoError(t, feed.Unsubscribe())
	close(frames)
}

func TestSubscribe_skipsNonMessageFrames(t *testing.T) {
	frames := make(chan any, 4)
	srv := newFeedServer(t, frames)

	feed := NewFeed(wsURL(srv), testutil.TestLogger(t))
	events, err := feed.Subscribe(context.Background())
	require.NoError(t, err)

	frames <- map[string]any{"heartbeat": true}
	msg := types.ChatMessage{Id: uuid.New(), Body: "after heartbeat", CreatedAt: time.Now()}
	frames <- serverEvent{Message: &msg}

	select {
	case got := <-events:
		assert.Equal(t, msg.Id, got.Id, "non-message frames are skipped")
	case <-time.After(time.Second):
		t.Fatal("timeout: no event delivered")
	}

	require.NoError(t, feed.Unsubscribe())
	close(frames)
}

func TestSubscribe_secondSubscribeFails(t *testing.T) {
	frames := make(chan any)
	srv := newFeedServer(t, frames)

	feed := NewFeed(wsURL(srv), testutil.TestLogger(t))
	_, err := feed.Subscribe(context.Background())
	require.NoError(t, err)

	_, err = feed.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	require.NoError(t, feed.Unsubscribe())
	close(frames)
}

func TestUnsubscribe_closesEventChannel(t *testing.T) {
	frames := make(chan any)
	srv := newFeedServer(t, frames)

	feed := NewFeed(wsURL(srv), testutil.TestLogger(t))
	events, err := feed.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, feed.Unsubscribe())

	select {
	case _, ok := <-events:
		assert.False(t, ok, "expected the event channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout: event channel not closed")
	}

	assert.NoError(t, feed.Unsubscribe(), "unsubscribing twice is a no-op")
	close(frames)
}

func TestSubscribe_dialFailure(t *testing.T) {
	feed := NewFeed("ws://127.0.0.1:1/feed", testutil.TestLogger(t))
	_, err := feed.Subscribe(context.Background())
	assert.Error(t, err, "expected dial failure to surface")

	_, err = feed.Subscribe(context.Background())
	assert.NotErrorIs(t, err, ErrAlreadySubscribed, "a failed dial does not hold the subscription")
}
