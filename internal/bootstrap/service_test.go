package bootstrap_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/tenantgraph/internal/bootstrap"
	"github.com/gosuda/tenantgraph/internal/domain"
	"github.com/gosuda/tenantgraph/internal/relations"
)

// ---------------------------------------------------------------------------
// 1. Single-tenant bootstrap.
// ---------------------------------------------------------------------------

func TestBootstrap_CreatesHierarchyAndReplicates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenant := env.addTenant("12345")

	bt, err := env.svc.Bootstrap(context.Background(), tenant)
	require.NoError(t, err)
	require.NotNil(t, bt)

	// Two workspaces, parent edge from default to root.
	require.Len(t, env.workspaces.created, 2)
	assert.Equal(t, domain.WorkspaceTypeRoot, bt.RootWorkspace.Type)
	assert.Equal(t, domain.WorkspaceTypeDefault, bt.DefaultWorkspace.Type)
	require.NotNil(t, bt.DefaultWorkspace.ParentID)
	assert.Equal(t, bt.RootWorkspace.ID, *bt.DefaultWorkspace.ParentID)
	assert.Nil(t, bt.RootWorkspace.ParentID)

	// Mapping persisted for the tenant.
	require.NotNil(t, bt.Mapping)
	assert.Equal(t, tenant.ID, bt.Mapping.TenantID)
	assert.Equal(t, 1, env.mappings.creates)

	// One event after commit, nine tuples, environment partition.
	assert.Equal(t, 1, env.tx.committed)
	require.Len(t, env.replicator.events, 1)

	event := env.replicator.events[0]
	assert.Equal(t, relations.EventBootstrapTenant, event.Type)
	assert.Equal(t, testEnvironment, event.PartitionKey)
	assert.Equal(t, "12345", event.Info["org_id"])
	assert.Equal(t, bt.DefaultWorkspace.ID.String(), event.Info["default_workspace_id"])
	assert.Empty(t, event.Remove)
	require.Len(t, event.Add, 9)

	tenantSubject := testUserDomain + "/12345"
	assert.Equal(t, relations.WorkspaceParent(bt.DefaultWorkspace.ID.String(), bt.RootWorkspace.ID.String()), event.Add[0])
	assert.Equal(t, relations.WorkspaceTenantParent(bt.RootWorkspace.ID.String(), tenantSubject), event.Add[1])
	assert.Equal(t, relations.TenantPlatform(tenantSubject, testEnvironment), event.Add[2])

	userBinding := relations.RoleBinding(
		bt.DefaultWorkspace.ID.String(),
		bt.Mapping.DefaultRoleBindingID.String(),
		env.groups.policies[false].String(),
		bt.Mapping.DefaultGroupID.String(),
	)
	adminBinding := relations.RoleBinding(
		bt.DefaultWorkspace.ID.String(),
		bt.Mapping.DefaultAdminRoleBindingID.String(),
		env.groups.policies[true].String(),
		bt.Mapping.DefaultAdminGroupID.String(),
	)
	assert.Equal(t, userBinding, event.Add[3:6])
	assert.Equal(t, adminBinding, event.Add[6:9])
}

func TestBootstrap_AlreadyBootstrapped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenant := env.addTenant("12345")
	mapping := env.addMapping(tenant)

	bt, err := env.svc.Bootstrap(context.Background(), tenant)
	require.NoError(t, err)

	// Fast path: the existing mapping comes back, nothing is written and
	// nothing is replicated.
	assert.Equal(t, mapping, bt.Mapping)
	assert.Nil(t, bt.RootWorkspace)
	assert.Nil(t, bt.DefaultWorkspace)
	assert.Empty(t, env.workspaces.created)
	assert.Equal(t, 0, env.mappings.creates)
	assert.Empty(t, env.replicator.events)
}

func TestBootstrap_PublicTenantRefused(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenant := &domain.Tenant{ID: uuid.New(), Name: domain.PublicTenantName}

	_, err := env.svc.Bootstrap(context.Background(), tenant)
	require.ErrorIs(t, err, domain.ErrPublicTenant)
	assert.Empty(t, env.workspaces.created)
	assert.Empty(t, env.replicator.events)
}

func TestBootstrap_ConflictAbortsThenRetrySucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenant := env.addTenant("12345")
	env.mappings.conflictOnce = true

	_, err := env.svc.Bootstrap(context.Background(), tenant)
	require.ErrorIs(t, err, domain.ErrConflict)

	// The losing transaction rolls back and replicates nothing.
	assert.Equal(t, 1, env.tx.aborted)
	assert.Empty(t, env.replicator.events)

	// The winner's mapping is now visible; the retry takes the fast path.
	winner := env.addMapping(tenant)

	bt, err := env.svc.Bootstrap(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, winner, bt.Mapping)
	assert.Empty(t, env.replicator.events)
}

func TestBootstrap_MissingPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		policies   map[bool]uuid.UUID
		wantTuples int
	}{
		{"both missing", map[bool]uuid.UUID{}, 3},
		{"admin missing", map[bool]uuid.UUID{false: uuid.New()}, 6},
		{"platform missing", map[bool]uuid.UUID{true: uuid.New()}, 6},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.groups.policies = tt.policies
			tenant := env.addTenant("12345")

			_, err := env.svc.Bootstrap(context.Background(), tenant)
			require.NoError(t, err)

			// Bootstrap still succeeds; only the affected bindings are
			// omitted from the event.
			require.Len(t, env.replicator.events, 1)
			assert.Len(t, env.replicator.events[0].Add, tt.wantTuples)
		})
	}
}

func TestBootstrap_CustomDefaultGroup(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenant := env.addTenant("12345")

	custom := &domain.Group{ID: uuid.New(), TenantID: tenant.ID, Name: "Custom default access", PlatformDefault: true}
	tenant.CustomDefaultGroup = custom

	bt, err := env.svc.Bootstrap(context.Background(), tenant)
	require.NoError(t, err)

	// The mapping names the pre-existing group and the user binding is
	// left to that group's own setup; only the admin binding is emitted.
	assert.Equal(t, custom.ID, bt.Mapping.DefaultGroupID)
	require.Len(t, env.replicator.events, 1)
	event := env.replicator.events[0]
	require.Len(t, event.Add, 6)
	assert.Equal(t, relations.RoleBinding(
		bt.DefaultWorkspace.ID.String(),
		bt.Mapping.DefaultAdminRoleBindingID.String(),
		env.groups.policies[true].String(),
		bt.Mapping.DefaultAdminGroupID.String(),
	), event.Add[3:6])
}

func TestBootstrap_ReplicationFailureFailsOperation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.replicator.err = assert.AnError
	tenant := env.addTenant("12345")

	_, err := env.svc.Bootstrap(context.Background(), tenant)
	require.ErrorIs(t, err, assert.AnError)
}

func TestNewBootstrappedTenant(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	bt, err := env.svc.NewBootstrappedTenant(context.Background(), "12345", "acct-1")
	require.NoError(t, err)

	assert.Equal(t, "12345", bt.Tenant.OrgID)
	assert.Equal(t, "acct-1", bt.Tenant.AccountID)
	assert.Equal(t, "org12345", bt.Tenant.Name)
	assert.True(t, bt.Tenant.Ready)
	assert.Equal(t, 1, env.tenants.creates)

	require.Len(t, env.replicator.events, 1)
	assert.Len(t, env.replicator.events[0].Add, 9)
}

func TestNewBootstrappedTenant_DuplicateOrg(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addTenant("12345")

	_, err := env.svc.NewBootstrappedTenant(context.Background(), "12345", "")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, env.tx.aborted)
	assert.Empty(t, env.replicator.events)
}

// ---------------------------------------------------------------------------
// 2. Bulk bootstrap.
// ---------------------------------------------------------------------------

func TestBootstrapTenants_MixedExistingAndNew(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	done := env.addTenant("org-done")
	doneMapping := env.addMapping(done)
	env.addTenant("org-pending") // exists but never bootstrapped

	bts, err := env.svc.BootstrapTenants(context.Background(), []string{"org-done", "org-pending", "org-new"})
	require.NoError(t, err)
	require.Len(t, bts, 3)

	byOrg := make(map[string]*bootstrap.BootstrappedTenant, len(bts))
	for _, bt := range bts {
		byOrg[bt.Tenant.OrgID] = bt
	}

	// The already-bootstrapped tenant keeps its mapping and gets no
	// workspaces in this call.
	assert.Equal(t, doneMapping, byOrg["org-done"].Mapping)
	assert.Nil(t, byOrg["org-done"].RootWorkspace)

	// The other two were bootstrapped: four workspaces, two mappings.
	assert.Len(t, env.workspaces.created, 4)
	assert.Equal(t, 2, env.mappings.creates)
	assert.Equal(t, 1, env.tenants.creates)

	// One bulk event; each tenant's nine tuples are contiguous.
	require.Len(t, env.replicator.events, 1)
	event := env.replicator.events[0]
	assert.Equal(t, relations.EventBulkBootstrapTenant, event.Type)
	assert.Equal(t, 2, event.Info["num_tenants"])
	assert.Equal(t, "org-pending", event.Info["first_org_id"])
	require.Len(t, event.Add, 18)

	for i, orgID := range []string{"org-pending", "org-new"} {
		bt := byOrg[orgID]
		block := event.Add[i*9 : i*9+9]
		assert.Equal(t, bt.DefaultWorkspace.ID.String(), block[0].ResourceID, orgID)
		assert.Equal(t, testUserDomain+"/"+orgID, block[2].ResourceID, orgID)
	}
}

func TestBootstrapTenants_AllExisting(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, orgID := range []string{"a", "b"} {
		env.addMapping(env.addTenant(orgID))
	}

	bts, err := env.svc.BootstrapTenants(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, bts, 2)

	// Nothing to bootstrap means no writes and no event at all.
	assert.Empty(t, env.workspaces.created)
	assert.Equal(t, 0, env.mappings.creates)
	assert.Empty(t, env.replicator.events)
}

func TestBootstrapTenants_DedupesOrgIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	bts, err := env.svc.BootstrapTenants(context.Background(), []string{"x", "x", "x"})
	require.NoError(t, err)
	assert.Len(t, bts, 1)
	assert.Equal(t, 1, env.tenants.creates)
	assert.Equal(t, 1, env.mappings.creates)
}

func TestBootstrapTenants_Empty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	bts, err := env.svc.BootstrapTenants(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, bts)
	assert.Empty(t, env.replicator.events)
}

// ---------------------------------------------------------------------------
// 3. Policy cache.
// ---------------------------------------------------------------------------

func TestDefaultPolicies_CachedAcrossBootstraps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	for _, orgID := range []string{"1", "2", "3"} {
		_, err := env.svc.Bootstrap(context.Background(), env.addTenant(orgID))
		require.NoError(t, err)
	}

	// Each policy is resolved exactly once per Service lifetime.
	assert.Equal(t, 1, env.groups.lookups[false])
	assert.Equal(t, 1, env.groups.lookups[true])
}

func TestDefaultPolicies_MissNotCached(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.groups.policies = map[bool]uuid.UUID{}

	_, err := env.svc.Bootstrap(context.Background(), env.addTenant("1"))
	require.NoError(t, err)

	// The policies appear later; the next bootstrap picks them up.
	env.groups.policies = map[bool]uuid.UUID{false: uuid.New(), true: uuid.New()}

	_, err = env.svc.Bootstrap(context.Background(), env.addTenant("2"))
	require.NoError(t, err)

	require.Len(t, env.replicator.events, 2)
	assert.Len(t, env.replicator.events[0].Add, 3)
	assert.Len(t, env.replicator.events[1].Add, 9)
	assert.Equal(t, 2, env.groups.lookups[false])
	assert.Equal(t, 2, env.groups.lookups[true])
}
