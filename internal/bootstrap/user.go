package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tenantgraph/internal/domain"
	"github.com/gosuda/tenantgraph/internal/relations"
)

// UpdateUser reconciles one external user record. It ensures the user's
// tenant is bootstrapped (reusing bootstrapped when supplied), links the
// local principal to the external user id (creating it when upsert is
// set), and replicates the membership edits for the default and admin
// groups. An inactive user takes the disable path instead and the result
// is nil.
func (s *Service) UpdateUser(ctx context.Context, user domain.User, upsert bool, bootstrapped *BootstrappedTenant) (*BootstrappedTenant, error) {
	if user.OrgID == "" {
		return nil, fmt.Errorf("bootstrap.UpdateUser: username=%s has no org id: %w", user.Username, domain.ErrInvalidUser)
	}

	if !user.Active {
		if err := s.disableUser(ctx, user); err != nil {
			return nil, fmt.Errorf("bootstrap.UpdateUser: %w", err)
		}
		return nil, nil
	}

	if user.UserID == "" {
		return nil, fmt.Errorf("bootstrap.UpdateUser: username=%s has no user id: %w", user.Username, domain.ErrInvalidUser)
	}

	var (
		bt      = bootstrapped
		btEvent *relations.ReplicationEvent
		add     []relations.Tuple
		remove  []relations.Tuple
	)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if bt == nil {
			bt, btEvent, err = s.getOrBootstrapTenant(ctx, user.OrgID, user.AccountID)
			if err != nil {
				return err
			}
		}
		if bt.Mapping == nil {
			return fmt.Errorf("org_id=%s: %w", user.OrgID, domain.ErrMappingMissing)
		}

		// Service accounts get no principal record and no group edges.
		if user.ServiceAccount {
			return nil
		}

		if err := s.ensurePrincipal(ctx, user, bt.Tenant, upsert); err != nil {
			return err
		}

		add, remove, err = s.defaultGroupTupleEdits(user, bt.Mapping)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap.UpdateUser: %w", err)
	}

	event := &relations.ReplicationEvent{
		Type:         relations.EventExternalUserUpdate,
		Info:         map[string]any{"user_id": user.UserID},
		PartitionKey: s.partition(),
		Add:          add,
		Remove:       remove,
	}

	if err := s.replicate(ctx, btEvent, event); err != nil {
		return nil, fmt.Errorf("bootstrap.UpdateUser: %w", err)
	}

	return bt, nil
}

// ImportBulkUsers reconciles a batch of user records in one transaction.
// Inactive and org-less records are skipped with a warning; the rest share
// the tuple logic of the single-user path and are emitted as one bulk
// event.
func (s *Service) ImportBulkUsers(ctx context.Context, users []domain.User) error {
	var orgIDs []string
	seenOrg := make(map[string]bool)
	for _, user := range users {
		if !user.Active {
			continue
		}
		if user.OrgID == "" {
			log.Warn().Str("username", user.Username).Msg("skipping user without org id")
			continue
		}
		if !seenOrg[user.OrgID] {
			seenOrg[user.OrgID] = true
			orgIDs = append(orgIDs, user.OrgID)
		}
	}

	var (
		btEvent *relations.ReplicationEvent
		add     []relations.Tuple
		remove  []relations.Tuple
	)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		bootstrapped, event, err := s.getOrBootstrapTenants(ctx, orgIDs)
		if err != nil {
			return err
		}
		btEvent = event

		byOrg := make(map[string]*BootstrappedTenant, len(bootstrapped))
		tenantIDs := make([]uuid.UUID, 0, len(bootstrapped))
		for _, bt := range bootstrapped {
			byOrg[bt.Tenant.OrgID] = bt
			tenantIDs = append(tenantIDs, bt.Tenant.ID)
		}

		usernames := make([]string, 0, len(users))
		for _, user := range users {
			usernames = append(usernames, user.Username)
		}

		existing, err := s.principals.ListByTenantsAndUsernames(ctx, tenantIDs, usernames)
		if err != nil {
			return err
		}

		type principalKey struct {
			tenantID uuid.UUID
			username string
		}
		byKey := make(map[principalKey]*domain.Principal, len(existing))
		for _, p := range existing {
			byKey[principalKey{p.TenantID, p.Username}] = p
		}

		var toUpdate []*domain.Principal
		for _, user := range users {
			if !user.Active || user.OrgID == "" {
				continue
			}

			bt := byOrg[user.OrgID]
			if bt.Mapping == nil {
				return fmt.Errorf("org_id=%s: %w", user.OrgID, domain.ErrMappingMissing)
			}

			if p, ok := byKey[principalKey{bt.Tenant.ID, user.Username}]; ok && p.UserID != user.UserID {
				p.UserID = user.UserID
				toUpdate = append(toUpdate, p)
			}

			userAdd, userRemove, err := s.defaultGroupTupleEdits(user, bt.Mapping)
			if err != nil {
				return err
			}
			add = append(add, userAdd...)
			remove = append(remove, userRemove...)
		}

		if len(toUpdate) > 0 {
			if err := s.principals.SetUserIDBulk(ctx, toUpdate); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap.ImportBulkUsers: %w", err)
	}

	info := map[string]any{"num_users": len(users)}
	if len(users) > 0 {
		info["first_user_id"] = users[0].UserID
	}
	event := &relations.ReplicationEvent{
		Type:         relations.EventBulkExternalUserUpdate,
		Info:         info,
		PartitionKey: s.partition(),
		Add:          add,
		Remove:       remove,
	}

	if err := s.replicate(ctx, btEvent, event); err != nil {
		return fmt.Errorf("bootstrap.ImportBulkUsers: %w", err)
	}

	return nil
}

// disableUser removes a deactivated user's graph edges and principal.
// Mapping and principal lookups are best effort: whichever exists is
// cleaned up, absence of either is tolerated.
func (s *Service) disableUser(ctx context.Context, user domain.User) error {
	if user.UserID == "" {
		return fmt.Errorf("disable username=%s has no user id: %w", user.Username, domain.ErrInvalidUser)
	}

	subject := s.principalSubject(user.UserID)

	var remove []relations.Tuple

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		mapping, err := s.mappings.GetByOrgID(ctx, user.OrgID)
		switch {
		case err == nil:
			remove = append(remove, relations.GroupMembership(mapping.DefaultGroupID.String(), subject))
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		principal, err := s.principals.GetByOrgUsername(ctx, user.OrgID, user.Username)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		memberships, err := s.groups.ListByPrincipal(ctx, principal.ID)
		if err != nil {
			return err
		}
		for _, group := range memberships {
			if err := s.groups.RemoveMember(ctx, group.ID, principal.ID); err != nil {
				return err
			}
			remove = append(remove, relations.GroupMembership(group.ID.String(), subject))
		}

		return s.principals.Delete(ctx, principal.ID)
	})
	if err != nil {
		return fmt.Errorf("disable user: %w", err)
	}

	return s.replicate(ctx, &relations.ReplicationEvent{
		Type:         relations.EventExternalUserUpdate,
		Info:         map[string]any{"user_id": user.UserID},
		PartitionKey: s.partition(),
		Remove:       remove,
	})
}

// ensurePrincipal links the (tenant, username) principal to the external
// user id, creating the record when upsert is set.
func (s *Service) ensurePrincipal(ctx context.Context, user domain.User, tenant *domain.Tenant, upsert bool) error {
	principal, err := s.principals.GetByUsername(ctx, tenant.ID, user.Username)
	if errors.Is(err, domain.ErrNotFound) {
		if !upsert {
			return nil
		}
		now := time.Now()
		return s.principals.Create(ctx, &domain.Principal{
			ID:        uuid.New(),
			TenantID:  tenant.ID,
			Username:  user.Username,
			UserID:    user.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return err
	}

	if principal.UserID != user.UserID {
		return s.principals.SetUserID(ctx, principal.ID, user.UserID)
	}

	return nil
}

// defaultGroupTupleEdits computes the membership edits for an active user.
// Default-group membership is always added. Admin membership is fully
// re-asserted on every call (added or removed) because prior state is not
// known to the caller.
func (s *Service) defaultGroupTupleEdits(user domain.User, mapping *domain.TenantMapping) (add, remove []relations.Tuple, err error) {
	if user.UserID == "" {
		return nil, nil, fmt.Errorf("username=%s has no user id: %w", user.Username, domain.ErrInvalidUser)
	}

	subject := s.principalSubject(user.UserID)

	add = append(add, relations.GroupMembership(mapping.DefaultGroupID.String(), subject))

	if user.Admin {
		add = append(add, relations.GroupMembership(mapping.DefaultAdminGroupID.String(), subject))
	} else {
		remove = append(remove, relations.GroupMembership(mapping.DefaultAdminGroupID.String(), subject))
	}

	return add, remove, nil
}
