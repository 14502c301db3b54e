package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PublicTenantName is the reserved name of the platform-wide tenant that
// owns system groups and default policies. It is never bootstrapped.
const PublicTenantName = "public"

type Tenant struct {
	ID        uuid.UUID
	OrgID     string
	AccountID string // externally assigned, may be empty
	Name      string
	Ready     bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Mapping and CustomDefaultGroup are populated only by prefetching
	// list queries (ListByOrgIDs); nil otherwise.
	Mapping            *TenantMapping
	CustomDefaultGroup *Group
}

// NewTenant builds a ready tenant named after its org id.
func NewTenant(orgID, accountID string) *Tenant {
	now := time.Now()
	return &Tenant{
		ID:        uuid.New(),
		OrgID:     orgID,
		AccountID: accountID,
		Name:      "org" + orgID,
		Ready:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Tenant) IsPublic() bool {
	return t.Name == PublicTenantName
}

// TenantMapping holds the generated identifiers for a tenant's default
// groups and role bindings. Its existence marks the tenant as
// bootstrapped; it is created exactly once and never updated.
type TenantMapping struct {
	ID                        uuid.UUID
	TenantID                  uuid.UUID
	DefaultGroupID            uuid.UUID
	DefaultAdminGroupID       uuid.UUID
	DefaultRoleBindingID      uuid.UUID
	DefaultAdminRoleBindingID uuid.UUID
	CreatedAt                 time.Time
}

// NewTenantMapping generates all four default identifiers up front so
// tuples can be built before anything is persisted.
func NewTenantMapping(tenantID uuid.UUID) *TenantMapping {
	return &TenantMapping{
		ID:                        uuid.New(),
		TenantID:                  tenantID,
		DefaultGroupID:            uuid.New(),
		DefaultAdminGroupID:       uuid.New(),
		DefaultRoleBindingID:      uuid.New(),
		DefaultAdminRoleBindingID: uuid.New(),
		CreatedAt:                 time.Now(),
	}
}

type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	CreateBulk(ctx context.Context, tenants []*Tenant) error
	GetByOrgID(ctx context.Context, orgID string) (*Tenant, error)
	// GetOrCreate returns the tenant for orgID, inserting a ready tenant
	// named "org<orgID>" if none exists. The bool reports whether a row
	// was created.
	GetOrCreate(ctx context.Context, orgID, accountID string) (*Tenant, bool, error)
	// ListByOrgIDs returns tenants with Mapping and CustomDefaultGroup
	// prefetched where present.
	ListByOrgIDs(ctx context.Context, orgIDs []string) ([]*Tenant, error)
}

type TenantMappingRepository interface {
	// Create returns ErrConflict if a mapping already exists for the
	// tenant, aborting the surrounding transaction.
	Create(ctx context.Context, m *TenantMapping) error
	CreateBulk(ctx context.Context, mappings []*TenantMapping) error
	Get(ctx context.Context, tenantID uuid.UUID) (*TenantMapping, error)
	GetByOrgID(ctx context.Context, orgID string) (*TenantMapping, error)
}

// Transactor runs fn inside a single atomic transaction. Repository calls
// made with the ctx passed to fn join that transaction. A non-nil error
// from fn rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
