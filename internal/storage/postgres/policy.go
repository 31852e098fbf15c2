package postgres

import (
	"context"

	"github.com/sonroyaalmerol/go-davcore/internal/authz"
)

// RolesGranted implements authz.PolicyQuery against acl_entries: every
// row whose principal_glob names a subject in the expanded set, for the
// authorization engine to pattern-match against path. The
// resource-path glob match itself happens in internal/authz, not in SQL,
// since "**"/"*" segment matching has no direct LIKE equivalent.
func (s *Store) RolesGranted(ctx context.Context, subjects []string, path string) ([]authz.PolicyRow, error) {
	rows, err := s.pool.Query(ctx, `
		select resource_path, principal_glob, role from acl_entries
		where principal_glob = any($1)
		order by ordinal
	`, subjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.PolicyRow
	for rows.Next() {
		var pattern, subject, role string
		if err := rows.Scan(&pattern, &subject, &role); err != nil {
			return nil, err
		}
		out = append(out, authz.PolicyRow{Subject: subject, Pattern: pattern, Role: authz.ParseRole(role)})
	}
	return out, rows.Err()
}
