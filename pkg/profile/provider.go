// Package profile links accounts to their role-specific records. A
// provider is registered per role at startup, so callers never switch
// on the role tag themselves.
package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// Provider creates and fetches the profile record for one role.
type Provider interface {
	Role() domain.Role
	CreateTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, displayName string) error
	Get(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error)
}

// Registry resolves providers by role. It is populated once during
// startup and read-only afterwards.
type Registry struct {
	providers map[domain.Role]Provider
}

// NewRegistry creates a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.Role]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Role()] = p
	}
	return r
}

// Resolve returns the provider for a role.
func (r *Registry) Resolve(role domain.Role) (Provider, error) {
	p, ok := r.providers[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRole, role)
	}
	return p, nil
}
