// Package permissions provides utilities for checking a profile's
// permission strings against required permissions, with wildcard support,
// plus the role capability checks used by approval gates.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "checklists.*")
//   - "resource.action" - Specific action (e.g., "checklists.assign")
package permissions

import (
	"strings"
)

// Leader roles may approve training, manage accounts, and send invitations.
var leaderRoles = map[string]bool{
	"shift_leader": true,
	"manager":      true,
	"operator":     true,
}

// IsLeader reports whether the role grants the leader capability.
func IsLeader(role string) bool {
	return leaderRoles[role]
}

// CanManageAccounts reports whether the role may activate/deactivate
// accounts and send invitations. Shift leaders can approve training but
// not manage accounts.
func CanManageAccounts(role string) bool {
	return role == "manager" || role == "operator"
}

// HasPermission checks if the profile's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "checklists.*" matches "checklists.read", "checklists.assign", etc.
//   - Exact match for specific permissions
func HasPermission(perms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range perms {
		if p == "*" {
			return true // Full access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "checklists.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the profile has any of the required permissions.
func HasAnyPermission(perms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(perms, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the profile has all of the required permissions.
func HasAllPermissions(perms []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(perms, req) {
			return false
		}
	}
	return true
}

// FilterByPrefix returns all permissions that match a given prefix.
// Useful for getting all permissions in a category (e.g., "training").
func FilterByPrefix(perms []string, prefix string) []string {
	var matches []string
	for _, p := range perms {
		if strings.HasPrefix(p, prefix+".") || p == prefix {
			matches = append(matches, p)
		}
	}
	return matches
}

// MergePermissions merges multiple permission sets, removing duplicates.
// Useful for combining role defaults with per-profile overrides.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}
