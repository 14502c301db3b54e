package bootstrap

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tenantgraph/internal/domain"
	"github.com/gosuda/tenantgraph/internal/relations"
)

// defaultAccess computes the role-binding tuples granting the tenant's
// default groups the platform-wide default policies on its default
// workspace. A missing policy is logged and that half is omitted.
func (s *Service) defaultAccess(ctx context.Context, tenant *domain.Tenant, mapping *domain.TenantMapping, defaultWorkspaceID string) ([]relations.Tuple, error) {
	platformPolicyID, havePlatform, err := s.platformDefaultPolicy(ctx)
	if err != nil {
		return nil, err
	}

	adminPolicyID, haveAdmin, err := s.adminDefaultPolicy(ctx)
	if err != nil {
		return nil, err
	}

	if !havePlatform {
		log.Warn().Str("org_id", tenant.OrgID).
			Msg("no platform default policy found; user default access will not be set up")
	}
	if !haveAdmin {
		log.Warn().Str("org_id", tenant.OrgID).
			Msg("no admin default policy found; admin default access will not be set up")
	}

	var tuples []relations.Tuple

	// The user binding is skipped when the tenant already has a custom
	// platform-default group: that group's own bootstrap path owns the
	// binding. The check is serialized against concurrent group creation
	// by the mapping's unique constraint.
	if havePlatform && tenant.CustomDefaultGroup == nil {
		tuples = append(tuples, relations.RoleBinding(
			defaultWorkspaceID,
			mapping.DefaultRoleBindingID.String(),
			platformPolicyID.String(),
			mapping.DefaultGroupID.String(),
		)...)
	}

	// Admin access is not customizable.
	if haveAdmin {
		tuples = append(tuples, relations.RoleBinding(
			defaultWorkspaceID,
			mapping.DefaultAdminRoleBindingID.String(),
			adminPolicyID.String(),
			mapping.DefaultAdminGroupID.String(),
		)...)
	}

	return tuples, nil
}

func (s *Service) platformDefaultPolicy(ctx context.Context) (uuid.UUID, bool, error) {
	return s.cachedPolicy(ctx, &s.platformPolicyID, false)
}

func (s *Service) adminDefaultPolicy(ctx context.Context) (uuid.UUID, bool, error) {
	return s.cachedPolicy(ctx, &s.adminPolicyID, true)
}

// cachedPolicy resolves a default policy id once per Service lifetime.
// A miss is not cached: a policy created later is picked up on the next
// bootstrap.
func (s *Service) cachedPolicy(ctx context.Context, slot *uuid.UUID, admin bool) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if *slot != uuid.Nil {
		return *slot, true, nil
	}

	id, err := s.groups.DefaultPolicyID(ctx, admin)
	if errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	*slot = id
	return id, true, nil
}
