package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

// GetPrincipal loads a user or group row by its stable id.
func (s *Store) GetPrincipal(ctx context.Context, id string) (*storage.Principal, error) {
	var p storage.Principal
	row := s.pool.QueryRow(ctx, `select id, display_name, password_hash, is_group from principals where id = $1`, id)
	if err := row.Scan(&p.ID, &p.DisplayName, &p.PasswordHash, &p.IsGroup); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SearchPrincipals returns principals whose display_name contains match
// case-insensitively, for principal-property-search REPORTs.
func (s *Store) SearchPrincipals(ctx context.Context, match string) ([]storage.Principal, error) {
	rows, err := s.pool.Query(ctx, `
		select id, display_name, password_hash, is_group from principals
		where position(lower($1) in lower(display_name)) > 0
		order by id`, match)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Principal
	for rows.Next() {
		var p storage.Principal
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.PasswordHash, &p.IsGroup); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GroupIDsForPrincipal returns every group id the principal belongs to,
// for subject-set expansion.
func (s *Store) GroupIDsForPrincipal(ctx context.Context, id string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `select group_id from group_members where member_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
