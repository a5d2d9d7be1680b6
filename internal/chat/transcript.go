package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/stats"
	"github.com/psiquelab/portal/internal/types"
)

const (
	// HistoryLimit bounds the initial history fetch.
	HistoryLimit = 100
	// presenceWindow is the activity horizon for the presence heuristic.
	presenceWindow = 5 * time.Minute
)

var validate = validator.New()

type sendParams struct {
	Body string `validate:"required,max=500"`
}

// Transcript is the in-memory ordered, deduplicated chat log for one
// session. The live feed goroutine appends while the UI goroutine reads,
// so the message slice is mutex-guarded.
type Transcript struct {
	db    backend.Repository
	stats stats.StatsProvider
	log   *log.Logger
	self  uuid.UUID

	mu     sync.RWMutex
	msgs   []types.ChatMessage
	seen   map[uuid.UUID]struct{}
	open   bool
	unread int
}

func NewTranscript(db backend.Repository, statsProvider stats.StatsProvider, self uuid.UUID, logger *log.Logger) *Transcript {
	return &Transcript{
		db:    db,
		stats: statsProvider,
		log:   logger,
		self:  self,
		seen:  make(map[uuid.UUID]struct{}),
	}
}

// LoadHistory fetches the most recent messages and makes them the base of
// the transcript. Live messages that raced ahead of the fetch are kept:
// anything already delivered that the history does not contain is folded
// back in, so the result is ordered and free of duplicates either way.
func (t *Transcript) LoadHistory(ctx context.Context) error {
	history, err := t.db.ListMessages(ctx, HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	merged := make([]types.ChatMessage, 0, len(history)+len(t.msgs))
	seen := make(map[uuid.UUID]struct{}, len(history)+len(t.msgs))

	for _, m := range history {
		if _, dup := seen[m.Id]; dup {
			continue
		}
		seen[m.Id] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range t.msgs {
		if _, dup := seen[m.Id]; dup {
			continue
		}
		seen[m.Id] = struct{}{}
		merged = append(merged, m)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].Id.String() < merged[j].Id.String()
	})

	t.msgs = merged
	t.seen = seen
	return nil
}

// OnLiveMessage appends a newly published message unless its identity is
// already present. Ordering relies on the transport's monotonic publish
// order; no re-sort happens here.
func (t *Transcript) OnLiveMessage(msg types.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.seen[msg.Id]; dup {
		return
	}
	t.seen[msg.Id] = struct{}{}
	t.msgs = append(t.msgs, msg)
	t.stats.Incr(stats.MessagesReceived)

	if !t.open && msg.AuthorId != t.self {
		t.unread++
	}
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []types.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Transcript) UnreadCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unread
}

// SetOpen records whether the chat view is visually open. Opening the
// view resets the unread counter.
func (t *Transcript) SetOpen(open bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = open
	if open {
		t.unread = 0
	}
}

// Presence approximates the number of active users: distinct authors
// with a message inside the trailing window. It is a heuristic, not a
// presence protocol.
func (t *Transcript) Presence() int {
	return t.presenceAt(time.Now())
}

func (t *Transcript) presenceAt(now time.Time) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	horizon := now.Add(-presenceWindow)
	authors := make(map[uuid.UUID]struct{})
	for _, m := range t.msgs {
		if m.CreatedAt.Before(horizon) {
			continue
		}
		authors[m.AuthorId] = struct{}{}
	}
	return len(authors)
}

// Send validates and submits a message. Nothing is appended locally: the
// sender sees their own message once it echoes back on the live feed. On
// failure the caller keeps the draft and may retry.
func (t *Transcript) Send(ctx context.Context, body string) error {
	if err := validate.Struct(sendParams{Body: body}); err != nil {
		return fmt.Errorf("validate message: %w", err)
	}

	if _, err := t.db.CreateMessage(ctx, t.self, body); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	t.stats.Incr(stats.MessagesSent)
	return nil
}
