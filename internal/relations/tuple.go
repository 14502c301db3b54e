// Package relations defines the relationship tuples and replication
// events this service emits to the external authorization graph.
package relations

// Namespace and type names used on the wire. These are stable identifiers
// shared with the relations service schema.
const (
	NamespaceRBAC = "rbac"

	TypeWorkspace   = "workspace"
	TypeTenant      = "tenant"
	TypePlatform    = "platform"
	TypeRoleBinding = "role_binding"
	TypeRole        = "role"
	TypeGroup       = "group"
	TypePrincipal   = "principal"

	RelationParent   = "parent"
	RelationPlatform = "platform"
	RelationBinding  = "binding"
	RelationRole     = "role"
	RelationSubject  = "subject"
	RelationMember   = "member"

	SubjectRelationMember = "member"
)

// Tuple is an immutable authorization-graph edge:
// (resource) --relation--> (subject[, subject_relation]).
type Tuple struct {
	ResourceNamespace string `json:"resource_namespace"`
	ResourceType      string `json:"resource_type"`
	ResourceID        string `json:"resource_id"`
	Relation          string `json:"relation"`
	SubjectNamespace  string `json:"subject_namespace"`
	SubjectType       string `json:"subject_type"`
	SubjectID         string `json:"subject_id"`
	SubjectRelation   string `json:"subject_relation,omitempty"`
}

func newTuple(resourceType, resourceID, relation, subjectType, subjectID, subjectRelation string) Tuple {
	return Tuple{
		ResourceNamespace: NamespaceRBAC,
		ResourceType:      resourceType,
		ResourceID:        resourceID,
		Relation:          relation,
		SubjectNamespace:  NamespaceRBAC,
		SubjectType:       subjectType,
		SubjectID:         subjectID,
		SubjectRelation:   subjectRelation,
	}
}

// WorkspaceParent links a workspace to its parent workspace.
func WorkspaceParent(workspaceID, parentID string) Tuple {
	return newTuple(TypeWorkspace, workspaceID, RelationParent, TypeWorkspace, parentID, "")
}

// WorkspaceTenantParent links a root workspace to the tenant owning it.
func WorkspaceTenantParent(rootWorkspaceID, tenantID string) Tuple {
	return newTuple(TypeWorkspace, rootWorkspaceID, RelationParent, TypeTenant, tenantID, "")
}

// TenantPlatform links a tenant to its deployment platform.
func TenantPlatform(tenantID, platform string) Tuple {
	return newTuple(TypeTenant, tenantID, RelationPlatform, TypePlatform, platform, "")
}

// RoleBinding expresses one role binding as its three edges: the workspace
// it applies to, the role it grants, and the group whose members hold it.
func RoleBinding(workspaceID, bindingID, roleID, groupID string) []Tuple {
	return []Tuple{
		newTuple(TypeWorkspace, workspaceID, RelationBinding, TypeRoleBinding, bindingID, ""),
		newTuple(TypeRoleBinding, bindingID, RelationRole, TypeRole, roleID, ""),
		newTuple(TypeRoleBinding, bindingID, RelationSubject, TypeGroup, groupID, SubjectRelationMember),
	}
}

// GroupMembership links a group to one of its member principals.
func GroupMembership(groupID, principalID string) Tuple {
	return newTuple(TypeGroup, groupID, RelationMember, TypePrincipal, principalID, "")
}
