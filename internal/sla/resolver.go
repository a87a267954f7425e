package sla

import (
	"context"
	"fmt"

	"facilities-maintenance-backend/internal/model"
)

// PolicyStore is the read side of the SLA policy collection.
type PolicyStore interface {
	ActivePolicies(ctx context.Context) ([]model.SLAPolicy, error)
}

// Resolver selects policies from a PolicyStore.
type Resolver struct {
	store PolicyStore
}

// NewResolver creates a new Resolver.
func NewResolver(store PolicyStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the policy for a work order of priority at facilityID.
// The error wraps ErrNoActivePolicy when nothing is configured.
func (r *Resolver) Resolve(ctx context.Context, priority model.Priority, facilityID int64) (*model.SLAPolicy, error) {
	policies, err := r.store.ActivePolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load SLA policies: %w", err)
	}
	p, err := Select(policies, priority, facilityID)
	if err != nil {
		return nil, fmt.Errorf("resolve SLA for %s priority at facility %d: %w", priority, facilityID, err)
	}
	return p, nil
}
