package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/stats"
	"github.com/psiquelab/portal/internal/types"
)

// ErrSubscriptionOpen means Activate was called while a live subscription
// is already open. Only one subscription may exist per active identity.
var ErrSubscriptionOpen = errors.New("live chat subscription already open")

// Service ties a Transcript to the live feed for the duration of one
// session. Activate subscribes and starts the consume loop; Deactivate
// stops consuming and releases the channel.
type Service struct {
	db    backend.Repository
	feed  backend.RealtimeFeed
	stats stats.StatsProvider
	log   *log.Logger

	mu         sync.Mutex
	transcript *Transcript
	stop       chan struct{}
	done       chan struct{}
}

// NewService registers the message counters once so they survive the
// transcripts of later sessions.
func NewService(db backend.Repository, feed backend.RealtimeFeed, statsProvider stats.StatsProvider, logger *log.Logger) *Service {
	statsProvider.RegisterMetric(stats.StaleResponsesDropped)
	statsProvider.RegisterMetric(stats.MessagesReceived)
	statsProvider.RegisterMetric(stats.MessagesSent)
	return &Service{
		db:    db,
		feed:  feed,
		stats: statsProvider,
		log:   logger,
	}
}

// Activate opens the live subscription for self and loads the history.
// The subscription is opened first so nothing published during the
// history fetch is missed; the transcript's dedupe resolves the overlap.
// A history fetch failure is not fatal: the live feed still runs and the
// caller may retry the load.
func (s *Service) Activate(ctx context.Context, self uuid.UUID) (*Transcript, error) {
	s.mu.Lock()
	if s.transcript != nil {
		s.mu.Unlock()
		return nil, ErrSubscriptionOpen
	}

	events, err := s.feed.Subscribe(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("subscribe live feed: %w", err)
	}

	tr := NewTranscript(s.db, s.stats, self, s.log)
	stop := make(chan struct{})
	done := make(chan struct{})
	s.transcript = tr
	s.stop = stop
	s.done = done
	s.mu.Unlock()

	go s.consume(events, tr, stop, done)

	if err := tr.LoadHistory(ctx); err != nil {
		s.log.Println("chat history:", err)
	}

	return tr, nil
}

func (s *Service) consume(events <-chan types.ChatMessage, tr *Transcript, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}

			s.mu.Lock()
			current := s.transcript == tr
			s.mu.Unlock()
			if !current {
				// Delivered after teardown for a previous identity.
				s.stats.Incr(stats.StaleResponsesDropped)
				continue
			}

			tr.OnLiveMessage(msg)
		case <-stop:
			return
		}
	}
}

// Deactivate stops the consume loop and unsubscribes. It is a no-op when
// no subscription is open, so teardown paths may call it unconditionally.
func (s *Service) Deactivate() error {
	s.mu.Lock()
	if s.transcript == nil {
		s.mu.Unlock()
		return nil
	}
	stop, done := s.stop, s.done
	s.transcript = nil
	s.mu.Unlock()

	close(stop)
	err := s.feed.Unsubscribe()
	<-done

	if err != nil {
		return fmt.Errorf("unsubscribe live feed: %w", err)
	}
	return nil
}
