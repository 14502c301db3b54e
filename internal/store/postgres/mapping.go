package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/tenantgraph/internal/domain"
)

type TenantMappingRepo struct {
	store *Store
}

const mappingColumns = `id, tenant_id, default_group_id, default_admin_group_id,
	default_role_binding_id, default_admin_role_binding_id, created_at`

// Create inserts the per-tenant singleton mapping. A concurrent bootstrap
// that got there first surfaces as domain.ErrConflict via the unique
// constraint on tenant_id.
func (r *TenantMappingRepo) Create(ctx context.Context, m *domain.TenantMapping) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO tenant_mappings (`+mappingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.TenantID, m.DefaultGroupID, m.DefaultAdminGroupID,
		m.DefaultRoleBindingID, m.DefaultAdminRoleBindingID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mappingRepo.Create: %w", mapError(err))
	}

	return nil
}

func (r *TenantMappingRepo) CreateBulk(ctx context.Context, mappings []*domain.TenantMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range mappings {
		batch.Queue(
			`INSERT INTO tenant_mappings (`+mappingColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.TenantID, m.DefaultGroupID, m.DefaultAdminGroupID,
			m.DefaultRoleBindingID, m.DefaultAdminRoleBindingID, m.CreatedAt,
		)
	}

	results := r.store.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range mappings {
		_, err := results.Exec()
		if err != nil {
			return fmt.Errorf("mappingRepo.CreateBulk: %w", mapError(err))
		}
	}

	return nil
}

func (r *TenantMappingRepo) Get(ctx context.Context, tenantID uuid.UUID) (*domain.TenantMapping, error) {
	var m domain.TenantMapping

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM tenant_mappings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&m.ID, &m.TenantID, &m.DefaultGroupID, &m.DefaultAdminGroupID,
		&m.DefaultRoleBindingID, &m.DefaultAdminRoleBindingID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mappingRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mappingRepo.Get: %w", err)
	}

	return &m, nil
}

func (r *TenantMappingRepo) GetByOrgID(ctx context.Context, orgID string) (*domain.TenantMapping, error) {
	var m domain.TenantMapping

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT m.id, m.tenant_id, m.default_group_id, m.default_admin_group_id,
		        m.default_role_binding_id, m.default_admin_role_binding_id, m.created_at
		 FROM tenant_mappings m
		 JOIN tenants t ON t.id = m.tenant_id
		 WHERE t.org_id = $1`,
		orgID,
	).Scan(&m.ID, &m.TenantID, &m.DefaultGroupID, &m.DefaultAdminGroupID,
		&m.DefaultRoleBindingID, &m.DefaultAdminRoleBindingID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mappingRepo.GetByOrgID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mappingRepo.GetByOrgID: %w", err)
	}

	return &m, nil
}
