package bootstrap_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/gosuda/tenantgraph/internal/bootstrap"
	"github.com/gosuda/tenantgraph/internal/domain"
	"github.com/gosuda/tenantgraph/internal/relations"
)

const (
	testEnvironment = "test-env"
	testUserDomain  = "testdomain"
)

// testEnv wires a Service to in-memory fakes.
type testEnv struct {
	tx         *fakeTx
	tenants    *fakeTenants
	mappings   *fakeMappings
	workspaces *fakeWorkspaces
	groups     *fakeGroups
	principals *fakePrincipals
	replicator *fakeReplicator
	svc        *bootstrap.Service
}

// newTestEnv builds an environment where both default policies resolve.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		tx:         &fakeTx{},
		workspaces: &fakeWorkspaces{},
		groups: &fakeGroups{
			policies:    map[bool]uuid.UUID{false: uuid.New(), true: uuid.New()},
			lookups:     map[bool]int{},
			byPrincipal: map[uuid.UUID][]*domain.Group{},
		},
		principals: &fakePrincipals{byKey: map[principalKey]*domain.Principal{}},
		replicator: &fakeReplicator{},
	}
	env.tenants = &fakeTenants{byOrg: map[string]*domain.Tenant{}}
	env.mappings = &fakeMappings{byTenant: map[uuid.UUID]*domain.TenantMapping{}, tenants: env.tenants}
	env.tenants.mappings = env.mappings
	env.principals.tenants = env.tenants

	env.svc = bootstrap.NewService(
		env.tx,
		env.tenants,
		env.mappings,
		env.workspaces,
		env.groups,
		env.principals,
		env.replicator,
		testEnvironment,
		testUserDomain,
	)

	return env
}

// addTenant seeds an existing, not-yet-bootstrapped tenant.
func (e *testEnv) addTenant(orgID string) *domain.Tenant {
	tenant := domain.NewTenant(orgID, "")
	e.tenants.byOrg[orgID] = tenant
	return tenant
}

// addMapping marks a tenant as already bootstrapped.
func (e *testEnv) addMapping(tenant *domain.Tenant) *domain.TenantMapping {
	m := domain.NewTenantMapping(tenant.ID)
	e.mappings.byTenant[tenant.ID] = m
	return m
}

// --- transactor ---

type fakeTx struct {
	committed int
	aborted   int
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err != nil {
		f.aborted++
		return err
	}
	f.committed++
	return nil
}

// --- replicator ---

type fakeReplicator struct {
	events []relations.ReplicationEvent
	err    error
}

func (f *fakeReplicator) Replicate(_ context.Context, event relations.ReplicationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

// --- tenants ---

type fakeTenants struct {
	byOrg    map[string]*domain.Tenant
	mappings *fakeMappings
	creates  int
}

func (f *fakeTenants) Create(_ context.Context, t *domain.Tenant) error {
	if _, ok := f.byOrg[t.OrgID]; ok {
		return fmt.Errorf("org_id=%s: %w", t.OrgID, domain.ErrConflict)
	}
	f.byOrg[t.OrgID] = t
	f.creates++
	return nil
}

func (f *fakeTenants) CreateBulk(ctx context.Context, tenants []*domain.Tenant) error {
	for _, t := range tenants {
		if err := f.Create(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTenants) GetByOrgID(_ context.Context, orgID string) (*domain.Tenant, error) {
	t, ok := f.byOrg[orgID]
	if !ok {
		return nil, fmt.Errorf("org_id=%s: %w", orgID, domain.ErrNotFound)
	}
	return t, nil
}

func (f *fakeTenants) GetOrCreate(ctx context.Context, orgID, accountID string) (*domain.Tenant, bool, error) {
	if t, ok := f.byOrg[orgID]; ok {
		return t, false, nil
	}
	t := domain.NewTenant(orgID, accountID)
	if err := f.Create(ctx, t); err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (f *fakeTenants) ListByOrgIDs(_ context.Context, orgIDs []string) ([]*domain.Tenant, error) {
	var out []*domain.Tenant
	for _, orgID := range orgIDs {
		t, ok := f.byOrg[orgID]
		if !ok {
			continue
		}
		t.Mapping = f.mappings.byTenant[t.ID]
		out = append(out, t)
	}
	return out, nil
}

// --- mappings ---

type fakeMappings struct {
	byTenant     map[uuid.UUID]*domain.TenantMapping
	tenants      *fakeTenants
	conflictOnce bool
	creates      int
}

func (f *fakeMappings) Create(_ context.Context, m *domain.TenantMapping) error {
	if f.conflictOnce {
		f.conflictOnce = false
		return fmt.Errorf("constraint tenant_mappings_tenant_id_key: %w", domain.ErrConflict)
	}
	if _, ok := f.byTenant[m.TenantID]; ok {
		return fmt.Errorf("constraint tenant_mappings_tenant_id_key: %w", domain.ErrConflict)
	}
	f.byTenant[m.TenantID] = m
	f.creates++
	return nil
}

func (f *fakeMappings) CreateBulk(ctx context.Context, mappings []*domain.TenantMapping) error {
	for _, m := range mappings {
		if err := f.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMappings) Get(_ context.Context, tenantID uuid.UUID) (*domain.TenantMapping, error) {
	m, ok := f.byTenant[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant=%s: %w", tenantID, domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeMappings) GetByOrgID(ctx context.Context, orgID string) (*domain.TenantMapping, error) {
	t, err := f.tenants.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return f.Get(ctx, t.ID)
}

// --- workspaces ---

type fakeWorkspaces struct {
	created []*domain.Workspace
}

func (f *fakeWorkspaces) Create(_ context.Context, w *domain.Workspace) error {
	f.created = append(f.created, w)
	return nil
}

func (f *fakeWorkspaces) CreateBulk(ctx context.Context, workspaces []*domain.Workspace) error {
	for _, w := range workspaces {
		if err := f.Create(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeWorkspaces) GetByType(_ context.Context, tenantID uuid.UUID, wsType domain.WorkspaceType) (*domain.Workspace, error) {
	for _, w := range f.created {
		if w.TenantID == tenantID && w.Type == wsType {
			return w, nil
		}
	}
	return nil, fmt.Errorf("tenant=%s type=%s: %w", tenantID, wsType, domain.ErrNotFound)
}

// --- groups ---

type fakeGroups struct {
	policies    map[bool]uuid.UUID
	lookups     map[bool]int
	byPrincipal map[uuid.UUID][]*domain.Group
	removed     [][2]uuid.UUID // (groupID, principalID)
}

func (f *fakeGroups) DefaultPolicyID(_ context.Context, admin bool) (uuid.UUID, error) {
	f.lookups[admin]++
	id, ok := f.policies[admin]
	if !ok {
		return uuid.Nil, fmt.Errorf("admin=%t: %w", admin, domain.ErrNotFound)
	}
	return id, nil
}

func (f *fakeGroups) ListByPrincipal(_ context.Context, principalID uuid.UUID) ([]*domain.Group, error) {
	return f.byPrincipal[principalID], nil
}

func (f *fakeGroups) RemoveMember(_ context.Context, groupID, principalID uuid.UUID) error {
	f.removed = append(f.removed, [2]uuid.UUID{groupID, principalID})
	return nil
}

// --- principals ---

type principalKey struct {
	tenantID uuid.UUID
	username string
}

type fakePrincipals struct {
	byKey   map[principalKey]*domain.Principal
	created []*domain.Principal
	updated []*domain.Principal
	deleted []uuid.UUID
	tenants *fakeTenants
}

func (f *fakePrincipals) Create(_ context.Context, p *domain.Principal) error {
	key := principalKey{p.TenantID, p.Username}
	if _, ok := f.byKey[key]; ok {
		return fmt.Errorf("username=%s: %w", p.Username, domain.ErrConflict)
	}
	f.byKey[key] = p
	f.created = append(f.created, p)
	return nil
}

func (f *fakePrincipals) GetByUsername(_ context.Context, tenantID uuid.UUID, username string) (*domain.Principal, error) {
	p, ok := f.byKey[principalKey{tenantID, username}]
	if !ok {
		return nil, fmt.Errorf("username=%s: %w", username, domain.ErrNotFound)
	}
	return p, nil
}

func (f *fakePrincipals) GetByOrgUsername(ctx context.Context, orgID, username string) (*domain.Principal, error) {
	if f.tenants == nil {
		return nil, fmt.Errorf("org_id=%s: %w", orgID, domain.ErrNotFound)
	}
	t, err := f.tenants.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return f.GetByUsername(ctx, t.ID, username)
}

func (f *fakePrincipals) SetUserID(_ context.Context, id uuid.UUID, userID string) error {
	for _, p := range f.byKey {
		if p.ID == id {
			p.UserID = userID
			f.updated = append(f.updated, p)
			return nil
		}
	}
	return fmt.Errorf("principal=%s: %w", id, domain.ErrNotFound)
}

func (f *fakePrincipals) ListByTenantsAndUsernames(_ context.Context, tenantIDs []uuid.UUID, usernames []string) ([]*domain.Principal, error) {
	inTenants := make(map[uuid.UUID]bool, len(tenantIDs))
	for _, id := range tenantIDs {
		inTenants[id] = true
	}
	inNames := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		inNames[name] = true
	}

	var out []*domain.Principal
	for _, p := range f.byKey {
		if inTenants[p.TenantID] && inNames[p.Username] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrincipals) SetUserIDBulk(_ context.Context, principals []*domain.Principal) error {
	f.updated = append(f.updated, principals...)
	return nil
}

func (f *fakePrincipals) Delete(_ context.Context, id uuid.UUID) error {
	for key, p := range f.byKey {
		if p.ID == id {
			delete(f.byKey, key)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return fmt.Errorf("principal=%s: %w", id, domain.ErrNotFound)
}
