// Package accounts batch-resolves billing-plan context for the accounts an
// invocation touches.
package accounts

import (
	"context"
	"fmt"

	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

// PlanResolver looks up accounts in one batched store call per invocation.
type PlanResolver struct {
	logger zerolog.Logger
	docs   store.Store
}

// NewPlanResolver constructs a PlanResolver over the given store.
func NewPlanResolver(logger zerolog.Logger, docs store.Store) *PlanResolver {
	return &PlanResolver{logger: logger, docs: docs}
}

// Resolve issues one batch lookup for all ids and returns the id → account
// mapping. An id with no resolvable account is simply absent from the result;
// downstream job construction degrades per-entry rather than failing the
// batch.
func (r *PlanResolver) Resolve(ctx context.Context, ids []string) (map[string]store.Account, error) {
	if len(ids) == 0 {
		return map[string]store.Account{}, nil
	}
	found, err := r.docs.AccountsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve accounts: %w", err)
	}
	if len(found) < len(ids) {
		r.logger.Warn().
			Int("requested", len(ids)).
			Int("resolved", len(found)).
			Msg("some accounts could not be resolved")
	}
	return found, nil
}
