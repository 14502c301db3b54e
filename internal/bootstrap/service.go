// Package bootstrap coordinates tenant bootstrapping: for every tenant it
// creates the built-in workspace hierarchy, the tenant mapping, and the
// default access role bindings exactly once, and reflects users as
// membership edges in the external authorization graph.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/tenantgraph/internal/domain"
	"github.com/gosuda/tenantgraph/internal/relations"
)

// BootstrappedTenant is the result of a bootstrap: the tenant, its mapping,
// and (when the bootstrap ran in this call) the created workspaces.
type BootstrappedTenant struct {
	Tenant           *domain.Tenant
	Mapping          *domain.TenantMapping
	RootWorkspace    *domain.Workspace
	DefaultWorkspace *domain.Workspace
}

// Service bootstraps tenants and reconciles users into the authorization
// graph. All mutating operations run inside a single transaction; the
// resulting replication events are emitted only after the transaction
// commits.
//
// Concurrent bootstraps of the same tenant race on the unique constraint
// of the tenant mapping: the loser's transaction aborts with
// domain.ErrConflict and the caller is expected to retry, at which point
// the fast path returns the winner's mapping.
type Service struct {
	tx          domain.Transactor
	tenants     domain.TenantRepository
	mappings    domain.TenantMappingRepository
	workspaces  domain.WorkspaceRepository
	groups      domain.GroupRepository
	principals  domain.PrincipalRepository
	replicator  relations.Replicator
	environment string
	userDomain  string

	// Default policy ids are process-wide constants; resolved once per
	// Service lifetime. Construct a fresh Service to reset.
	mu               sync.Mutex
	platformPolicyID uuid.UUID
	adminPolicyID    uuid.UUID
}

func NewService(
	tx domain.Transactor,
	tenants domain.TenantRepository,
	mappings domain.TenantMappingRepository,
	workspaces domain.WorkspaceRepository,
	groups domain.GroupRepository,
	principals domain.PrincipalRepository,
	replicator relations.Replicator,
	environment, userDomain string,
) *Service {
	return &Service{
		tx:          tx,
		tenants:     tenants,
		mappings:    mappings,
		workspaces:  workspaces,
		groups:      groups,
		principals:  principals,
		replicator:  replicator,
		environment: environment,
		userDomain:  userDomain,
	}
}

// NewBootstrappedTenant creates a brand-new tenant for orgID and runs the
// full bootstrap on it.
func (s *Service) NewBootstrappedTenant(ctx context.Context, orgID, accountID string) (*BootstrappedTenant, error) {
	var (
		bt    *BootstrappedTenant
		event *relations.ReplicationEvent
	)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		tenant := domain.NewTenant(orgID, accountID)

		err := s.tenants.Create(ctx, tenant)
		if err != nil {
			return err
		}

		bt, event, err = s.bootstrapTenant(ctx, tenant)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap.NewBootstrappedTenant: %w", err)
	}

	if err := s.replicate(ctx, event); err != nil {
		return nil, fmt.Errorf("bootstrap.NewBootstrappedTenant: %w", err)
	}

	return bt, nil
}

// Bootstrap ensures an existing tenant is bootstrapped. If a mapping
// already exists it returns immediately with zero writes and zero
// replication.
func (s *Service) Bootstrap(ctx context.Context, tenant *domain.Tenant) (*BootstrappedTenant, error) {
	var (
		bt    *BootstrappedTenant
		event *relations.ReplicationEvent
	)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		mapping, err := s.mappings.Get(ctx, tenant.ID)
		if err == nil {
			bt = &BootstrappedTenant{Tenant: tenant, Mapping: mapping}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		bt, event, err = s.bootstrapTenant(ctx, tenant)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap.Bootstrap: %w", err)
	}

	if err := s.replicate(ctx, event); err != nil {
		return nil, fmt.Errorf("bootstrap.Bootstrap: %w", err)
	}

	return bt, nil
}

// BootstrapTenants ensures every org id is bootstrapped in one pass,
// emitting a single bulk event for the tenants that needed it.
func (s *Service) BootstrapTenants(ctx context.Context, orgIDs []string) ([]*BootstrappedTenant, error) {
	var (
		bts   []*BootstrappedTenant
		event *relations.ReplicationEvent
	)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		bts, event, err = s.getOrBootstrapTenants(ctx, dedupe(orgIDs))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap.BootstrapTenants: %w", err)
	}

	if err := s.replicate(ctx, event); err != nil {
		return nil, fmt.Errorf("bootstrap.BootstrapTenants: %w", err)
	}

	return bts, nil
}

// getOrBootstrapTenant resolves one tenant by org id, creating and
// bootstrapping it as needed. Runs inside the caller's transaction; the
// returned event, if any, must be replicated after commit.
func (s *Service) getOrBootstrapTenant(ctx context.Context, orgID, accountID string) (*BootstrappedTenant, *relations.ReplicationEvent, error) {
	tenant, _, err := s.tenants.GetOrCreate(ctx, orgID, accountID)
	if err != nil {
		return nil, nil, err
	}

	mapping, err := s.mappings.Get(ctx, tenant.ID)
	if err == nil {
		return &BootstrappedTenant{Tenant: tenant, Mapping: mapping}, nil, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	return s.bootstrapTenant(ctx, tenant)
}

// bootstrapTenant persists the workspace hierarchy and mapping for one
// tenant and returns the event describing the new tuples.
func (s *Service) bootstrapTenant(ctx context.Context, tenant *domain.Tenant) (*BootstrappedTenant, *relations.ReplicationEvent, error) {
	bt, tuples, err := s.buildTenant(ctx, tenant)
	if err != nil {
		return nil, nil, err
	}

	err = s.workspaces.CreateBulk(ctx, []*domain.Workspace{bt.RootWorkspace, bt.DefaultWorkspace})
	if err != nil {
		return nil, nil, err
	}

	// The single uniqueness-constrained insert. A concurrent bootstrap
	// that already inserted a mapping makes this fail with ErrConflict,
	// aborting the whole transaction.
	err = s.mappings.Create(ctx, bt.Mapping)
	if err != nil {
		return nil, nil, err
	}

	event := &relations.ReplicationEvent{
		Type: relations.EventBootstrapTenant,
		Info: map[string]any{
			"org_id":               tenant.OrgID,
			"default_workspace_id": bt.DefaultWorkspace.ID.String(),
		},
		PartitionKey: s.partition(),
		Add:          tuples,
	}

	return bt, event, nil
}

// getOrBootstrapTenants is the bulk variant: tenants that already have a
// mapping are returned as-is, the rest are created and bootstrapped with
// bulk inserts and a single bulk event. Each tenant's tuples stay
// contiguous within the event.
func (s *Service) getOrBootstrapTenants(ctx context.Context, orgIDs []string) ([]*BootstrappedTenant, *relations.ReplicationEvent, error) {
	if len(orgIDs) == 0 {
		return nil, nil, nil
	}

	existing, err := s.tenants.ListByOrgIDs(ctx, orgIDs)
	if err != nil {
		return nil, nil, err
	}

	var (
		bootstrapped []*BootstrappedTenant
		toBootstrap  []*domain.Tenant
	)

	seen := make(map[string]bool, len(existing))
	for _, tenant := range existing {
		seen[tenant.OrgID] = true
		if tenant.Mapping != nil {
			bootstrapped = append(bootstrapped, &BootstrappedTenant{Tenant: tenant, Mapping: tenant.Mapping})
		} else {
			toBootstrap = append(toBootstrap, tenant)
		}
	}

	var created []*domain.Tenant
	for _, orgID := range orgIDs {
		if !seen[orgID] {
			created = append(created, domain.NewTenant(orgID, ""))
		}
	}
	if len(created) > 0 {
		if err := s.tenants.CreateBulk(ctx, created); err != nil {
			return nil, nil, err
		}
		toBootstrap = append(toBootstrap, created...)
	}

	if len(toBootstrap) == 0 {
		return bootstrapped, nil, nil
	}

	var (
		workspaces []*domain.Workspace
		mappings   []*domain.TenantMapping
		tuples     []relations.Tuple
	)

	for _, tenant := range toBootstrap {
		bt, tenantTuples, err := s.buildTenant(ctx, tenant)
		if err != nil {
			return nil, nil, err
		}

		workspaces = append(workspaces, bt.RootWorkspace, bt.DefaultWorkspace)
		mappings = append(mappings, bt.Mapping)
		tuples = append(tuples, tenantTuples...)
		bootstrapped = append(bootstrapped, bt)
	}

	if err := s.workspaces.CreateBulk(ctx, workspaces); err != nil {
		return nil, nil, err
	}
	if err := s.mappings.CreateBulk(ctx, mappings); err != nil {
		return nil, nil, err
	}

	event := &relations.ReplicationEvent{
		Type: relations.EventBulkBootstrapTenant,
		Info: map[string]any{
			"num_tenants":  len(toBootstrap),
			"first_org_id": toBootstrap[0].OrgID,
		},
		PartitionKey: s.partition(),
		Add:          tuples,
	}

	return bootstrapped, event, nil
}

// buildTenant constructs the workspaces, mapping, and full tuple set for a
// tenant without writing anything. Identifiers are generated here so bulk
// callers can pre-allocate before a single round trip.
func (s *Service) buildTenant(ctx context.Context, tenant *domain.Tenant) (*BootstrappedTenant, []relations.Tuple, error) {
	if tenant.IsPublic() {
		return nil, nil, fmt.Errorf("org_id=%s: %w", tenant.OrgID, domain.ErrPublicTenant)
	}

	root, def, tuples := s.builtInWorkspaces(tenant)

	mapping := domain.NewTenantMapping(tenant.ID)
	if g := tenant.CustomDefaultGroup; g != nil {
		// A custom platform-default group predates bootstrap; the mapping
		// names it as the tenant's default group.
		mapping.DefaultGroupID = g.ID
	}

	access, err := s.defaultAccess(ctx, tenant, mapping, def.ID.String())
	if err != nil {
		return nil, nil, err
	}
	tuples = append(tuples, access...)

	bt := &BootstrappedTenant{
		Tenant:           tenant,
		Mapping:          mapping,
		RootWorkspace:    root,
		DefaultWorkspace: def,
	}

	return bt, tuples, nil
}

// replicate emits events in order, skipping nils. Called only after the
// producing transaction has committed.
func (s *Service) replicate(ctx context.Context, events ...*relations.ReplicationEvent) error {
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := s.replicator.Replicate(ctx, *event); err != nil {
			return fmt.Errorf("replicate %s: %w", event.Type, err)
		}
	}
	return nil
}

func (s *Service) partition() string {
	return relations.EnvironmentPartition(s.environment)
}

// tenantSubject is the tenant's identity in the graph: "<domain>/<org id>".
func (s *Service) tenantSubject(orgID string) string {
	return s.userDomain + "/" + orgID
}

// principalSubject is a user's identity in the graph: "<domain>/<user id>".
func (s *Service) principalSubject(userID string) string {
	return s.userDomain + "/" + userID
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
