package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/psiquelab/portal/internal/stats"
	"github.com/psiquelab/portal/internal/types"
)

// ErrAmbiguousOrdering means two catalog items share an order position.
// The chain is undefined in that case, so it is surfaced as a
// configuration defect instead of silently picking a winner.
var ErrAmbiguousOrdering = errors.New("catalog items share an order position")

type ItemState int

const (
	StateLocked ItemState = iota
	StateUnlocked
	StateCompleted
)

func (s ItemState) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type ItemStatus struct {
	Item  types.ContentItem `json:"item"`
	State ItemState         `json:"state"`
}

// ComputeStates walks the tier-filtered, order-sorted catalog once. The
// first item is always reachable; each later item unlocks only when the
// one before it is completed. The chain is global across tiers.
func ComputeStates(items []types.ContentItem, completed map[types.ItemID]struct{}) ([]ItemStatus, error) {
	statuses := make([]ItemStatus, 0, len(items))

	prevSatisfied := true
	for i, item := range items {
		if i > 0 && item.OrderIndex == items[i-1].OrderIndex {
			return nil, fmt.Errorf("items %s and %s at position %d: %w",
				items[i-1].Id, item.Id, item.OrderIndex, ErrAmbiguousOrdering)
		}

		state := StateLocked
		if _, ok := completed[item.Id]; ok {
			state = StateCompleted
		} else if prevSatisfied {
			state = StateUnlocked
		}
		prevSatisfied = state == StateCompleted

		statuses = append(statuses, ItemStatus{Item: item, State: state})
	}

	return statuses, nil
}

// Engine owns the visible catalog and the completion set for one user and
// keeps the per-item states current across completions.
type Engine struct {
	progress  *ProgressStore
	stats     stats.StatsProvider
	log       *log.Logger
	items     []types.ContentItem
	completed map[types.ItemID]struct{}
	statuses  []ItemStatus
}

func NewEngine(progress *ProgressStore, statsProvider stats.StatsProvider, logger *log.Logger) *Engine {
	return &Engine{
		progress:  progress,
		stats:     statsProvider,
		log:       logger,
		completed: make(map[types.ItemID]struct{}),
	}
}

// Load replaces the engine's catalog with items (already tier-filtered and
// sorted by order index), fetches the user's completion set and computes
// the initial states. On failure the previous state is left intact.
func (e *Engine) Load(ctx context.Context, userId uuid.UUID, items []types.ContentItem) error {
	completed, err := e.progress.Completed(ctx, userId)
	if err != nil {
		return fmt.Errorf("load completions: %w", err)
	}

	statuses, err := ComputeStates(items, completed)
	if err != nil {
		return err
	}

	e.items = items
	e.completed = completed
	e.statuses = statuses
	return nil
}

// Statuses returns the current per-item states in catalog order.
func (e *Engine) Statuses() []ItemStatus {
	return e.statuses
}

// Progress reports how many catalog items are completed out of the total.
func (e *Engine) Progress() (done, total int) {
	for _, s := range e.statuses {
		if s.State == StateCompleted {
			done++
		}
	}
	return done, len(e.statuses)
}

// MarkCompleted persists the completion and recomputes downstream states.
// It is idempotent: repeating it for the same item changes nothing. The
// local state only advances after the write succeeds, so a failed upsert
// leaves the catalog exactly as it was and the caller may retry.
func (e *Engine) MarkCompleted(ctx context.Context, userId, itemId uuid.UUID) error {
	if err := e.progress.MarkCompleted(ctx, userId, itemId, time.Now().UTC()); err != nil {
		return err
	}

	if _, ok := e.completed[itemId]; !ok {
		e.completed[itemId] = struct{}{}
		e.stats.Incr(stats.CompletionsRecorded)
	}

	statuses, err := ComputeStates(e.items, e.completed)
	if err != nil {
		// The catalog was valid before the completion, so ordering
		// cannot have become ambiguous here.
		return err
	}
	e.statuses = statuses

	return nil
}

// NextUnlocked returns the first unlocked item past the given one, for
// auto-advance. ok is false when nothing past it is unlocked.
func (e *Engine) NextUnlocked(after uuid.UUID) (types.ContentItem, bool) {
	idx := -1
	for i, s := range e.statuses {
		if s.Item.Id == after {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.ContentItem{}, false
	}

	for _, s := range e.statuses[idx+1:] {
		if s.State == StateUnlocked {
			return s.Item, true
		}
	}
	return types.ContentItem{}, false
}
