package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Principal is a user's representation inside a tenant, keyed by
// (tenant, username). UserID is the external identity; empty until linked.
type Principal struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Username       string
	UserID         string
	ServiceAccount bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByUsername(ctx context.Context, tenantID uuid.UUID, username string) (*Principal, error)
	GetByOrgUsername(ctx context.Context, orgID, username string) (*Principal, error)
	SetUserID(ctx context.Context, id uuid.UUID, userID string) error
	// ListByTenantsAndUsernames is the bulk-import prefetch: all
	// principals in any of the tenants whose username is in usernames.
	ListByTenantsAndUsernames(ctx context.Context, tenantIDs []uuid.UUID, usernames []string) ([]*Principal, error)
	SetUserIDBulk(ctx context.Context, principals []*Principal) error
	Delete(ctx context.Context, id uuid.UUID) error
}
