package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/types"
)

// ProgressStore records and reads completion facts. Completion is a
// one-way transition keyed on the (user, item) pair, so retried submits
// collapse to one logical record.
type ProgressStore struct {
	db  backend.Repository
	log *log.Logger
}

func NewProgressStore(db backend.Repository, logger *log.Logger) *ProgressStore {
	return &ProgressStore{db: db, log: logger}
}

func (p *ProgressStore) MarkCompleted(ctx context.Context, userId, itemId uuid.UUID, at time.Time) error {
	rec := types.CompletionRecord{
		UserId:      userId,
		ItemId:      itemId,
		Completed:   true,
		CompletedAt: at,
	}

	if err := p.db.UpsertCompletion(ctx, rec); err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}

	return nil
}

func (p *ProgressStore) Completed(ctx context.Context, userId uuid.UUID) (map[types.ItemID]struct{}, error) {
	ids, err := p.db.ListCompleted(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list completed: %w", err)
	}

	completed := make(map[types.ItemID]struct{}, len(ids))
	for _, id := range ids {
		completed[id] = struct{}{}
	}

	return completed, nil
}
