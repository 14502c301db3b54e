package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WorkspaceType string

const (
	WorkspaceTypeRoot     WorkspaceType = "root"
	WorkspaceTypeDefault  WorkspaceType = "default"
	WorkspaceTypeStandard WorkspaceType = "standard"
)

// Workspace is a hierarchical container within a tenant. Parent links form
// a tree: the root workspace has no parent, every other workspace has one.
type Workspace struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ParentID  *uuid.UUID
	Type      WorkspaceType
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WorkspaceRepository interface {
	Create(ctx context.Context, w *Workspace) error
	CreateBulk(ctx context.Context, workspaces []*Workspace) error
	GetByType(ctx context.Context, tenantID uuid.UUID, wsType WorkspaceType) (*Workspace, error)
}
