package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/tenantgraph/internal/domain"
)

type TenantRepo struct {
	store *Store
}

const tenantColumns = `id, org_id, account_id, name, ready, created_at, updated_at`

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.OrgID, t.AccountID, t.Name, t.Ready, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", mapError(err))
	}

	return nil
}

func (r *TenantRepo) CreateBulk(ctx context.Context, tenants []*domain.Tenant) error {
	if len(tenants) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range tenants {
		batch.Queue(
			`INSERT INTO tenants (`+tenantColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.OrgID, t.AccountID, t.Name, t.Ready, t.CreatedAt, t.UpdatedAt,
		)
	}

	results := r.store.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range tenants {
		_, err := results.Exec()
		if err != nil {
			return fmt.Errorf("tenantRepo.CreateBulk: %w", mapError(err))
		}
	}

	return nil
}

func (r *TenantRepo) GetByOrgID(ctx context.Context, orgID string) (*domain.Tenant, error) {
	var t domain.Tenant

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE org_id = $1`,
		orgID,
	).Scan(&t.ID, &t.OrgID, &t.AccountID, &t.Name, &t.Ready, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetByOrgID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetByOrgID: %w", err)
	}

	return &t, nil
}

func (r *TenantRepo) GetOrCreate(ctx context.Context, orgID, accountID string) (*domain.Tenant, bool, error) {
	t := domain.NewTenant(orgID, accountID)

	tag, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (org_id) DO NOTHING`,
		t.ID, t.OrgID, t.AccountID, t.Name, t.Ready, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("tenantRepo.GetOrCreate: %w", mapError(err))
	}

	if tag.RowsAffected() == 1 {
		return t, true, nil
	}

	existing, err := r.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, false, fmt.Errorf("tenantRepo.GetOrCreate: %w", err)
	}

	return existing, false, nil
}

// ListByOrgIDs returns the tenants for orgIDs with their mapping and
// custom platform-default group prefetched in one query.
func (r *TenantRepo) ListByOrgIDs(ctx context.Context, orgIDs []string) ([]*domain.Tenant, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT t.id, t.org_id, t.account_id, t.name, t.ready, t.created_at, t.updated_at,
		        m.id, m.default_group_id, m.default_admin_group_id,
		        m.default_role_binding_id, m.default_admin_role_binding_id, m.created_at,
		        g.id, g.name, g.created_at, g.updated_at
		 FROM tenants t
		 LEFT JOIN tenant_mappings m ON m.tenant_id = t.id
		 LEFT JOIN LATERAL (
		     SELECT id, name, created_at, updated_at
		     FROM groups
		     WHERE tenant_id = t.id AND platform_default AND NOT system
		     ORDER BY created_at
		     LIMIT 1
		 ) g ON TRUE
		 WHERE t.org_id = ANY($1)`,
		orgIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListByOrgIDs: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var (
			t domain.Tenant

			mID, mGroup, mAdminGroup, mBinding, mAdminBinding uuid.NullUUID
			mCreatedAt                                        sql.NullTime

			gID                    uuid.NullUUID
			gName                  sql.NullString
			gCreatedAt, gUpdatedAt sql.NullTime
		)

		err = rows.Scan(
			&t.ID, &t.OrgID, &t.AccountID, &t.Name, &t.Ready, &t.CreatedAt, &t.UpdatedAt,
			&mID, &mGroup, &mAdminGroup, &mBinding, &mAdminBinding, &mCreatedAt,
			&gID, &gName, &gCreatedAt, &gUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("tenantRepo.ListByOrgIDs: scan: %w", err)
		}

		if mID.Valid {
			t.Mapping = &domain.TenantMapping{
				ID:                        mID.UUID,
				TenantID:                  t.ID,
				DefaultGroupID:            mGroup.UUID,
				DefaultAdminGroupID:       mAdminGroup.UUID,
				DefaultRoleBindingID:      mBinding.UUID,
				DefaultAdminRoleBindingID: mAdminBinding.UUID,
				CreatedAt:                 mCreatedAt.Time,
			}
		}

		if gID.Valid {
			t.CustomDefaultGroup = &domain.Group{
				ID:              gID.UUID,
				TenantID:        t.ID,
				Name:            gName.String,
				PlatformDefault: true,
				CreatedAt:       gCreatedAt.Time,
				UpdatedAt:       gUpdatedAt.Time,
			}
		}

		tenants = append(tenants, &t)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListByOrgIDs: rows: %w", err)
	}

	return tenants, nil
}
