package backend

import (
	"context"

	"github.com/google/uuid"
	"github.com/psiquelab/portal/internal/types"
)

// IdentityService is the authentication surface of the managed backend.
type IdentityService interface {
	SignIn(ctx context.Context, email, password string) (types.Identity, error)
	GetSession(ctx context.Context) (types.Identity, error)
	SignOut(ctx context.Context) error
}

// Repository is the relational read/write surface of the managed backend.
// Reads return rows already filtered and sorted as declared per method.
type Repository interface {
	Ping() error
	GetProfile(ctx context.Context, userId uuid.UUID) (types.Profile, error)
	ListGrants(ctx context.Context, userId uuid.UUID) ([]types.TierRef, error)
	// ListContent returns items whose tier is in tiers, sorted ascending
	// by order_index.
	ListContent(ctx context.Context, tiers []types.TierRef) ([]types.ContentItem, error)
	// ListFiles returns files whose tier is in tiers, newest first.
	ListFiles(ctx context.Context, tiers []types.TierRef) ([]types.FileItem, error)
	ListCompleted(ctx context.Context, userId uuid.UUID) ([]types.ItemID, error)
	// UpsertCompletion writes rec with (user_id, item_id) as the conflict
	// key. A completed record never reverts to incomplete.
	UpsertCompletion(ctx context.Context, rec types.CompletionRecord) error
	// ListMessages returns the most recent limit messages in ascending
	// creation order.
	ListMessages(ctx context.Context, limit int) ([]types.ChatMessage, error)
	CreateMessage(ctx context.Context, userId uuid.UUID, body string) (types.ChatMessage, error)
}

// RealtimeFeed delivers insert events for chat messages as full rows.
// At most one subscription may be open per feed.
type RealtimeFeed interface {
	Subscribe(ctx context.Context) (<-chan types.ChatMessage, error)
	Unsubscribe() error
}
