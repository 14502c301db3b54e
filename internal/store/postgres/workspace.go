package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/tenantgraph/internal/domain"
)

type WorkspaceRepo struct {
	store *Store
}

const workspaceColumns = `id, tenant_id, parent_id, type, name, created_at, updated_at`

func (r *WorkspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO workspaces (`+workspaceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.TenantID, w.ParentID, w.Type, w.Name, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("workspaceRepo.Create: %w", mapError(err))
	}

	return nil
}

func (r *WorkspaceRepo) CreateBulk(ctx context.Context, workspaces []*domain.Workspace) error {
	if len(workspaces) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range workspaces {
		batch.Queue(
			`INSERT INTO workspaces (`+workspaceColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			w.ID, w.TenantID, w.ParentID, w.Type, w.Name, w.CreatedAt, w.UpdatedAt,
		)
	}

	results := r.store.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range workspaces {
		_, err := results.Exec()
		if err != nil {
			return fmt.Errorf("workspaceRepo.CreateBulk: %w", mapError(err))
		}
	}

	return nil
}

func (r *WorkspaceRepo) GetByType(ctx context.Context, tenantID uuid.UUID, wsType domain.WorkspaceType) (*domain.Workspace, error) {
	var w domain.Workspace

	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE tenant_id = $1 AND type = $2`,
		tenantID, wsType,
	).Scan(&w.ID, &w.TenantID, &w.ParentID, &w.Type, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workspaceRepo.GetByType: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("workspaceRepo.GetByType: %w", err)
	}

	return &w, nil
}
