package authz

import "context"

// PolicyRow is one (subject, resource-path-pattern, role) tuple.
type PolicyRow struct {
	Subject string
	Pattern string
	Role    Role
}

// PolicyQuery is the capability the authorization engine is given at
// request entry; the policy table itself is treated as opaque global
// mutable state owned outside the core.
type PolicyQuery interface {
	// RolesGranted returns every policy row whose pattern matches path
	// for any subject in subjects.
	RolesGranted(ctx context.Context, subjects []string, path string) ([]PolicyRow, error)
}

// HighestRole returns the strongest role any subject in subjects holds
// on path, and the matching rows (for DAV:acl projection).
func HighestRole(ctx context.Context, pq PolicyQuery, subjects []string, path string) (Role, []PolicyRow, error) {
	rows, err := pq.RolesGranted(ctx, subjects, path)
	if err != nil {
		return RoleNone, nil, err
	}
	best := RoleNone
	var matched []PolicyRow
	for _, row := range rows {
		if !MatchPattern(row.Pattern, path) {
			continue
		}
		matched = append(matched, row)
		if row.Role > best {
			best = row.Role
		}
	}
	return best, matched, nil
}

// SubjectImpliesRole reports whether the expanded subject set holds at
// least min on path.
func SubjectImpliesRole(ctx context.Context, pq PolicyQuery, subjects []string, path string, min Role) (bool, error) {
	highest, _, err := HighestRole(ctx, pq, subjects, path)
	if err != nil {
		return false, err
	}
	return highest.Implies(min), nil
}

// Allowed reports whether the expanded subject set may perform action on
// path.
func Allowed(ctx context.Context, pq PolicyQuery, subjects []string, path string, action Action) (bool, error) {
	return SubjectImpliesRole(ctx, pq, subjects, path, MinRole(action))
}
