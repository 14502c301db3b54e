package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Group struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	PlatformDefault bool
	AdminDefault    bool
	System          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type GroupRepository interface {
	// DefaultPolicyID resolves the policy attached to the public tenant's
	// system default group (admin or non-admin). Returns ErrNotFound when
	// the group or its policy does not exist.
	DefaultPolicyID(ctx context.Context, admin bool) (uuid.UUID, error)
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*Group, error)
	RemoveMember(ctx context.Context, groupID, principalID uuid.UUID) error
}
