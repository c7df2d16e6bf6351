package authz

import "github.com/minerva-imaging/minervadb/pkg/store"

// The permission and membership levels each form a small implication
// lattice: a stored level satisfies a requested minimum when it sits at or
// above the minimum. These expansions are pure and static so checks can be
// pushed into SQL IN clauses.

// ImpliedPermissions returns every stored grant level that satisfies a
// request for minimum. Read is satisfied by any level, Admin only by Admin.
// An unknown level is satisfied by nothing.
func ImpliedPermissions(minimum store.Permission) []store.Permission {
	switch minimum {
	case store.PermissionRead:
		return []store.Permission{store.PermissionRead, store.PermissionWrite, store.PermissionAdmin}
	case store.PermissionWrite:
		return []store.Permission{store.PermissionWrite, store.PermissionAdmin}
	case store.PermissionAdmin:
		return []store.Permission{store.PermissionAdmin}
	}
	return nil
}

// ImpliedMemberships returns every stored membership level that satisfies a
// request for minimum. Owner is an elevation of Member, not a separate axis.
func ImpliedMemberships(minimum store.MembershipType) []store.MembershipType {
	switch minimum {
	case store.MembershipMember:
		return []store.MembershipType{store.MembershipMember, store.MembershipOwner}
	case store.MembershipOwner:
		return []store.MembershipType{store.MembershipOwner}
	}
	return nil
}
