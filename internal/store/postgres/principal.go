package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/tenantgraph/internal/domain"
)

type PrincipalRepo struct {
	store *Store
}

const principalColumns = `id, tenant_id, username, user_id, service_account, created_at, updated_at`

func (r *PrincipalRepo) Create(ctx context.Context, p *domain.Principal) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO principals (`+principalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.TenantID, p.Username, p.UserID, p.ServiceAccount, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("principalRepo.Create: %w", mapError(err))
	}

	return nil
}

func (r *PrincipalRepo) GetByUsername(ctx context.Context, tenantID uuid.UUID, username string) (*domain.Principal, error) {
	var p domain.Principal

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE tenant_id = $1 AND username = $2`,
		tenantID, username,
	).Scan(&p.ID, &p.TenantID, &p.Username, &p.UserID, &p.ServiceAccount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("principalRepo.GetByUsername: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("principalRepo.GetByUsername: %w", err)
	}

	return &p, nil
}

func (r *PrincipalRepo) GetByOrgUsername(ctx context.Context, orgID, username string) (*domain.Principal, error) {
	var p domain.Principal

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT p.id, p.tenant_id, p.username, p.user_id, p.service_account, p.created_at, p.updated_at
		 FROM principals p
		 JOIN tenants t ON t.id = p.tenant_id
		 WHERE t.org_id = $1 AND p.username = $2`,
		orgID, username,
	).Scan(&p.ID, &p.TenantID, &p.Username, &p.UserID, &p.ServiceAccount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("principalRepo.GetByOrgUsername: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("principalRepo.GetByOrgUsername: %w", err)
	}

	return &p, nil
}

func (r *PrincipalRepo) SetUserID(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE principals SET user_id = $1, updated_at = now() WHERE id = $2`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("principalRepo.SetUserID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("principalRepo.SetUserID: %w", domain.ErrNotFound)
	}

	return nil
}

// ListByTenantsAndUsernames is the bulk-import prefetch: all principals in
// any of the given tenants matching any of the usernames.
func (r *PrincipalRepo) ListByTenantsAndUsernames(ctx context.Context, tenantIDs []uuid.UUID, usernames []string) ([]*domain.Principal, error) {
	if len(tenantIDs) == 0 || len(usernames) == 0 {
		return nil, nil
	}

	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+principalColumns+`
		 FROM principals
		 WHERE tenant_id = ANY($1) AND username = ANY($2)`,
		tenantIDs, usernames,
	)
	if err != nil {
		return nil, fmt.Errorf("principalRepo.ListByTenantsAndUsernames: %w", err)
	}
	defer rows.Close()

	var principals []*domain.Principal
	for rows.Next() {
		var p domain.Principal

		err = rows.Scan(&p.ID, &p.TenantID, &p.Username, &p.UserID, &p.ServiceAccount, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("principalRepo.ListByTenantsAndUsernames: scan: %w", err)
		}

		principals = append(principals, &p)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("principalRepo.ListByTenantsAndUsernames: rows: %w", err)
	}

	return principals, nil
}

func (r *PrincipalRepo) SetUserIDBulk(ctx context.Context, principals []*domain.Principal) error {
	if len(principals) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range principals {
		batch.Queue(
			`UPDATE principals SET user_id = $1, updated_at = now() WHERE id = $2`,
			p.UserID, p.ID,
		)
	}

	results := r.store.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range principals {
		_, err := results.Exec()
		if err != nil {
			return fmt.Errorf("principalRepo.SetUserIDBulk: %w", err)
		}
	}

	return nil
}

func (r *PrincipalRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`DELETE FROM principals WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("principalRepo.Delete: %w", err)
	}

	return nil
}
