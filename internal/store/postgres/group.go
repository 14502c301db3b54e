package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/tenantgraph/internal/domain"
)

type GroupRepo struct {
	store *Store
}

// DefaultPolicyID resolves the policy attached to the public tenant's
// system default group (admin or non-admin flavor).
func (r *GroupRepo) DefaultPolicyID(ctx context.Context, admin bool) (uuid.UUID, error) {
	flag := "g.platform_default"
	if admin {
		flag = "g.admin_default"
	}

	var id uuid.UUID

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT p.id
		 FROM policies p
		 JOIN groups g ON g.id = p.group_id
		 JOIN tenants t ON t.id = g.tenant_id
		 WHERE t.name = $1 AND g.system AND `+flag+`
		 LIMIT 1`,
		domain.PublicTenantName,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("groupRepo.DefaultPolicyID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("groupRepo.DefaultPolicyID: %w", err)
	}

	return id, nil
}

func (r *GroupRepo) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*domain.Group, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT g.id, g.tenant_id, g.name, g.platform_default, g.admin_default, g.system,
		        g.created_at, g.updated_at
		 FROM groups g
		 JOIN group_principals gp ON gp.group_id = g.id
		 WHERE gp.principal_id = $1
		 ORDER BY g.created_at`,
		principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.ListByPrincipal: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		var g domain.Group

		err = rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.PlatformDefault, &g.AdminDefault,
			&g.System, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("groupRepo.ListByPrincipal: scan: %w", err)
		}

		groups = append(groups, &g)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("groupRepo.ListByPrincipal: rows: %w", err)
	}

	return groups, nil
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`DELETE FROM group_principals WHERE group_id = $1 AND principal_id = $2`,
		groupID, principalID,
	)
	if err != nil {
		return fmt.Errorf("groupRepo.RemoveMember: %w", err)
	}

	return nil
}
