package access

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/types"
)

// ErrNoAccess means the identity holds no tier grants. Callers treat this
// as "no visible content", not a fatal error.
var ErrNoAccess = errors.New("no access grants for user")

// Resolver maps an authenticated identity to the tiers it may see.
type Resolver struct {
	db  backend.Repository
	log *log.Logger
}

func NewResolver(db backend.Repository, logger *log.Logger) *Resolver {
	return &Resolver{db: db, log: logger}
}

// Resolve is a read-only query; it never mutates state.
func (r *Resolver) Resolve(ctx context.Context, identity types.Identity) ([]types.TierRef, error) {
	grants, err := r.db.ListGrants(ctx, identity.Id)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	if len(grants) == 0 {
		return nil, ErrNoAccess
	}

	return grants, nil
}
