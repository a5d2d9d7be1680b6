package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/psiquelab/portal/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	eventBuffer    = 256
)

var ErrAlreadySubscribed = errors.New("feed already subscribed")

// serverEvent is one frame on the feed: a full row payload for an insert
// on the chat-message relation.
type serverEvent struct {
	Message *types.ChatMessage `json:"message,omitempty"`
}

// Feed implements backend.RealtimeFeed over a WebSocket connection to
// the backend's realtime endpoint.
type Feed struct {
	url string
	log *log.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan types.ChatMessage
	stop   chan struct{}
	done   chan struct{}
}

func NewFeed(feedURL string, logger *log.Logger) *Feed {
	return &Feed{
		url: feedURL,
		log: logger,
	}
}

func (f *Feed) Subscribe(ctx context.Context) (<-chan types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		return nil, ErrAlreadySubscribed
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	f.conn = conn
	f.events = make(chan types.ChatMessage, eventBuffer)
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	go f.read(conn, f.events, f.done)
	go f.ping(conn, f.stop)

	return f.events, nil
}

func (f *Feed) read(conn *websocket.Conn, events chan types.ChatMessage, done chan struct{}) {
	defer func() {
		conn.Close()
		close(events)
		close(done)
		f.log.Println("feed read exiting")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				f.log.Printf("feed: read: %v", err)
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			f.log.Println("feed: parse event:", err)
			continue
		}
		if ev.Message == nil {
			continue
		}

		select {
		case events <- *ev.Message:
		default:
			f.log.Println("feed: event channel full, dropping message", ev.Message.Id)
		}
	}
}

func (f *Feed) ping(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				f.log.Println("feed: ping:", err)
				return
			}
		case <-stop:
			return
		}
	}
}

// Unsubscribe closes the connection and releases the event channel. The
// channel is closed once the read pump drains.
func (f *Feed) Unsubscribe() error {
	f.mu.Lock()
	if f.conn == nil {
		f.mu.Unlock()
		return nil
	}
	conn, stop, done := f.conn, f.stop, f.done
	f.conn = nil
	f.mu.Unlock()

	close(stop)
	err := conn.Close()
	<-done

	if err != nil {
		return fmt.Errorf("close feed: %w", err)
	}
	return nil
}
