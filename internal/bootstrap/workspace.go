package bootstrap

import (
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/tenantgraph/internal/domain"
	"github.com/gosuda/tenantgraph/internal/relations"
)

// builtInWorkspaces constructs the two mandatory workspaces for a tenant
// and the tuples anchoring them in the graph: default→root parent,
// root→tenant parent, tenant→platform. Pure construction, no I/O.
func (s *Service) builtInWorkspaces(tenant *domain.Tenant) (root, def *domain.Workspace, tuples []relations.Tuple) {
	now := time.Now()

	root = &domain.Workspace{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Type:      domain.WorkspaceTypeRoot,
		Name:      "Root Workspace",
		CreatedAt: now,
		UpdatedAt: now,
	}

	rootID := root.ID
	def = &domain.Workspace{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		ParentID:  &rootID,
		Type:      domain.WorkspaceTypeDefault,
		Name:      "Default Workspace",
		CreatedAt: now,
		UpdatedAt: now,
	}

	tenantSubject := s.tenantSubject(tenant.OrgID)
	tuples = []relations.Tuple{
		relations.WorkspaceParent(def.ID.String(), root.ID.String()),
		relations.WorkspaceTenantParent(root.ID.String(), tenantSubject),
		relations.TenantPlatform(tenantSubject, s.environment),
	}

	return root, def, tuples
}
