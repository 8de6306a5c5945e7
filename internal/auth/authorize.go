package auth

import "devfolio.org/internal/obs"

// Principal is the authenticated identity attached to one request. It is
// rebuilt from the access token on every call and never cached across
// requests.
type Principal struct {
	UserID string
	OrgID  string
	Role   Role
}

// ResourceMeta is the ownership record a tenant-scoped entity exposes to
// the evaluator. OwnerID may be empty for entities without a single
// owner (tags, audit entries); such entities are never guarded by
// own-scoped actions.
type ResourceMeta struct {
	OrgID   string
	OwnerID string
}

// TenantMeta returns metadata for an operation that targets the tenant
// itself rather than a single owned resource (create, list, manage-users).
func TenantMeta(orgID string) ResourceMeta {
	return ResourceMeta{OrgID: orgID}
}

// Guard evaluates Authorize and records the decision metric. Services
// call Guard on every operation; Authorize stays pure for direct use in
// tests.
func Guard(principal Principal, action Action, meta ResourceMeta) error {
	err := Authorize(principal, action, meta)
	obs.ObserveAuthzDecision(string(action), err == nil)
	return err
}

// Authorize decides whether principal may perform action on the resource
// described by meta. The decision is total and deterministic:
//
//  1. tenant mismatch denies unconditionally, admin included;
//  2. the capability table decides whether the role holds the action;
//  3. own-scoped capabilities additionally require ownership.
//
// Deny is returned as ErrForbidden and is terminal; callers must not
// downgrade it to partial access.
func Authorize(principal Principal, action Action, meta ResourceMeta) error {
	if meta.OrgID == "" || principal.OrgID == "" || meta.OrgID != principal.OrgID {
		return ErrForbidden
	}
	switch CapabilityScope(principal.Role, action) {
	case ScopeAny:
		return nil
	case ScopeOwn:
		if meta.OwnerID != "" && meta.OwnerID == principal.UserID {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}
