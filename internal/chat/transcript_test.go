package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/stats"
	"github.com/psiquelab/portal/internal/testutil"
	"github.com/psiquelab/portal/internal/types"
)

func newTestTranscript(t *testing.T, db backend.Repository, self uuid.UUID) *Transcript {
	t.Helper()
	st := (&stats.MockStatsUpdater{}).ExpectCounters()
	return NewTranscript(db, st, self, testutil.TestLogger(t))
}

func msgAt(author uuid.UUID, body string, at time.Time) types.ChatMessage {
	return types.ChatMessage{
		Id:        uuid.New(),
		AuthorId:  author,
		Body:      body,
		CreatedAt: at,
	}
}

func TestLoadHistory(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Round(time.Millisecond)

	m1 := msgAt(other, "first", base)
	m2 := msgAt(self, "second", base.Add(time.Second))

	db := &backend.MockRepository{}
	db.On("ListMessages", mock.Anything, HistoryLimit).Return([]types.ChatMessage{m1, m2}, nil)

	tr := newTestTranscript(t, db, self)
	require.NoError(t, tr.LoadHistory(context.Background()))

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, m1.Id, msgs[0].Id, "history keeps ascending order")
	assert.Equal(t, m2.Id, msgs[1].Id)
}

func TestLoadHistory_raceWithLiveDelivery(t *testing.T) {
	// Live events m2 (also in the history) and m3 arrive before the
	// history fetch resolves. The merged transcript is [m1, m2, m3]
	// with no duplicate of m2.
	self := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Round(time.Millisecond)

	m1 := msgAt(other, "one", base)
	m2 := msgAt(other, "two", base.Add(time.Second))
	m3 := msgAt(other, "three", base.Add(2*time.Second))

	db := &backend.MockRepository{}
	db.On("ListMessages", mock.Anything, HistoryLimit).Return([]types.ChatMessage{m1, m2}, nil)

	tr := newTestTranscript(t, db, self)
	tr.OnLiveMessage(m2)
	tr.OnLiveMessage(m3)

	require.NoError(t, tr.LoadHistory(context.Background()))

	msgs := tr.Messages()
	require.Len(t, msgs, 3, "expected exactly three messages after the merge")
	assert.Equal(t, m1.Id, msgs[0].Id)
	assert.Equal(t, m2.Id, msgs[1].Id)
	assert.Equal(t, m3.Id, msgs[2].Id)
}

func TestLoadHistory_queryFailureKeepsTranscript(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	m := msgAt(other, "live", time.Now())

	db := &backend.MockRepository{}
	queryErr := backend.NewQueryError("messages", errors.New("connection reset"))
	db.On("ListMessages", mock.Anything, HistoryLimit).Return([]types.ChatMessage(nil), queryErr)

	tr := newTestTranscript(t, db, self)
	tr.OnLiveMessage(m)

	err := tr.LoadHistory(context.Background())
	assert.Error(t, err, "expected the query error to surface")
	assert.Len(t, tr.Messages(), 1, "a failed fetch must not corrupt the transcript")
}

func TestOnLiveMessage_dedupe(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	m := msgAt(other, "hello", time.Now())

	tr := newTestTranscript(t, &backend.MockRepository{}, self)
	tr.OnLiveMessage(m)
	tr.OnLiveMessage(m)

	assert.Len(t, tr.Messages(), 1, "same message identity must appear once")
}

func TestUnreadCount(t *testing.T) {
	self := uuid.New()
	other := uuid.New()

	tr := newTestTranscript(t, &backend.MockRepository{}, self)

	for i := 0; i < 3; i++ {
		tr.OnLiveMessage(msgAt(other, "msg", time.Now()))
	}
	assert.Equal(t, 3, tr.UnreadCount(), "live messages from others while closed are unread")

	tr.OnLiveMessage(msgAt(self, "mine", time.Now()))
	assert.Equal(t, 3, tr.UnreadCount(), "own messages never count as unread")

	tr.SetOpen(true)
	assert.Equal(t, 0, tr.UnreadCount(), "opening the view resets the counter")

	tr.OnLiveMessage(msgAt(other, "while open", time.Now()))
	assert.Equal(t, 0, tr.UnreadCount(), "messages while open are read immediately")

	tr.SetOpen(false)
	tr.OnLiveMessage(msgAt(other, "after close", time.Now()))
	assert.Equal(t, 1, tr.UnreadCount())
}

func TestPresence(t *testing.T) {
	self := uuid.New()
	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC()

	tr := newTestTranscript(t, &backend.MockRepository{}, self)
	tr.OnLiveMessage(msgAt(a, "recent", now.Add(-time.Minute)))
	tr.OnLiveMessage(msgAt(a, "recent again", now.Add(-2*time.Minute)))
	tr.OnLiveMessage(msgAt(b, "stale", now.Add(-10*time.Minute)))

	assert.Equal(t, 1, tr.presenceAt(now), "only authors active inside the window count")

	tr.OnLiveMessage(msgAt(b, "back", now.Add(-time.Second)))
	assert.Equal(t, 2, tr.presenceAt(now), "distinct active authors are counted once each")
}

func TestSend(t *testing.T) {
	self := uuid.New()

	tcases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid message", body: "hello there"},
		{name: "empty message", body: "", wantErr: true},
		{name: "message too long", body: strings.Repeat("a", 501), wantErr: true},
		{name: "message at limit", body: strings.Repeat("a", 500)},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &backend.MockRepository{}
			db.On("CreateMessage", mock.Anything, self, tc.body).
				Return(types.ChatMessage{Id: uuid.New(), AuthorId: self, Body: tc.body}, nil)

			tr := newTestTranscript(t, db, self)
			err := tr.Send(context.Background(), tc.body)
			if tc.wantErr {
				assert.Error(t, err, "expected validation to reject the message")
				db.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			assert.NoError(t, err)
			db.AssertCalled(t, "CreateMessage", mock.Anything, self, tc.body)
		})
	}
}

func TestSend_noOptimisticAppend(t *testing.T) {
	self := uuid.New()
	echoed := types.ChatMessage{Id: uuid.New(), AuthorId: self, Body: "hi", CreatedAt: time.Now()}

	db := &backend.MockRepository{}
	db.On("CreateMessage", mock.Anything, self, "hi").Return(echoed, nil)

	tr := newTestTranscript(t, db, self)
	require.NoError(t, tr.Send(context.Background(), "hi"))
	assert.Empty(t, tr.Messages(), "a sent message only appears via the live echo")

	tr.OnLiveMessage(echoed)
	assert.Len(t, tr.Messages(), 1, "the live echo lands the sent message")
}

func TestSend_persistFailure(t *testing.T) {
	self := uuid.New()
	persistErr := backend.NewPersistenceError("messages", errors.New("insert failed"))

	db := &backend.MockRepository{}
	db.On("CreateMessage", mock.Anything, self, "draft text").
		Return(types.ChatMessage{}, persistErr)

	tr := newTestTranscript(t, db, self)
	err := tr.Send(context.Background(), "draft text")

	var pe *backend.PersistenceError
	assert.ErrorAs(t, err, &pe, "expected the persistence error to surface for retry")
	assert.Empty(t, tr.Messages(), "a failed send must not alter the transcript")
}
