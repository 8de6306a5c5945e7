package auth

import "strings"

// Role is the closed set of authorization tiers. There is no hierarchy:
// what a role may do is spelled out in the capability table and nowhere
// else.
type Role string

const (
	// RoleAdmin manages the organization: any project, users, audit trail.
	RoleAdmin Role = "admin"

	// RoleEditor creates projects and tags, and mutates only what it owns.
	RoleEditor Role = "editor"

	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
)

// ValidRoles lists the roles a user account may hold.
var ValidRoles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	for _, v := range ValidRoles {
		if r == v {
			return r, true
		}
	}
	return "", false
}

// Action is a permission category evaluated against the capability table.
type Action string

const (
	ActionRead        Action = "read"
	ActionCreate      Action = "create"
	ActionCreateTag   Action = "create-tag"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionManageUsers Action = "manage-users"
	ActionViewAudit   Action = "view-audit"
)

// Scope qualifies how far an action reaches within the principal's tenant.
type Scope int

const (
	// ScopeNone means the role lacks the action entirely.
	ScopeNone Scope = iota
	// ScopeOwn restricts the action to resources the principal owns.
	ScopeOwn
	// ScopeAny allows the action on any in-tenant resource.
	ScopeAny
)

// capabilities is the fixed role-to-action table. Admin's ScopeAny on
// update/delete is granted here explicitly, not derived from any role
// ordering, so the whole policy is auditable by reading this table.
var capabilities = map[Role]map[Action]Scope{
	RoleAdmin: {
		ActionRead:        ScopeAny,
		ActionCreate:      ScopeAny,
		ActionCreateTag:   ScopeAny,
		ActionUpdate:      ScopeAny,
		ActionDelete:      ScopeAny,
		ActionManageUsers: ScopeAny,
		ActionViewAudit:   ScopeAny,
	},
	RoleEditor: {
		ActionRead:      ScopeAny,
		ActionCreate:    ScopeAny,
		ActionCreateTag: ScopeAny,
		ActionUpdate:    ScopeOwn,
		ActionDelete:    ScopeOwn,
	},
	RoleViewer: {
		ActionRead: ScopeAny,
	},
}

// CapabilityScope returns the scope the role holds for an action.
func CapabilityScope(role Role, action Action) Scope {
	return capabilities[role][action]
}
