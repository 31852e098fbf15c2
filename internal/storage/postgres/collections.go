package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

const collectionCols = `id, owner_principal, type, slug, display_name, description, default_tzid,
	supported_component, sync_token, parent_id, updated_at, deleted_at`

func scanCollection(row pgx.Row) (*storage.Collection, error) {
	var c storage.Collection
	if err := row.Scan(&c.ID, &c.OwnerPrincipal, &c.Type, &c.Slug, &c.DisplayName, &c.Description,
		&c.DefaultTZID, &c.SupportedComponent, &c.SyncToken, &c.ParentID, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCollection(ctx context.Context, id uuid.UUID) (*storage.Collection, error) {
	row := s.pool.QueryRow(ctx, `select `+collectionCols+` from collections where id = $1 and deleted_at is null`, id)
	c, err := scanCollection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) GetCollectionByOwnerAndSlug(ctx context.Context, owner, slug string) (*storage.Collection, error) {
	row := s.pool.QueryRow(ctx, `select `+collectionCols+` from collections
		where owner_principal = $1 and slug = $2 and deleted_at is null`, owner, slug)
	c, err := scanCollection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) ListCollectionsByOwner(ctx context.Context, owner string) ([]storage.Collection, error) {
	rows, err := s.pool.Query(ctx, `select `+collectionCols+` from collections
		where owner_principal = $1 and deleted_at is null order by slug`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCollection(ctx context.Context, c storage.Collection) (*storage.Collection, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		insert into collections (id, owner_principal, type, slug, display_name, description,
			default_tzid, supported_component, sync_token, parent_id, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, now())
	`, c.ID, c.OwnerPrincipal, c.Type, c.Slug, c.DisplayName, c.Description, c.DefaultTZID, c.SupportedComponent, c.ParentID)
	if err != nil {
		return nil, err
	}
	return s.GetCollection(ctx, c.ID)
}

func (s *Store) UpdateCollectionProps(ctx context.Context, id uuid.UUID, displayName, description *string) error {
	_, err := s.pool.Exec(ctx, `
		update collections set
			display_name = coalesce($2, display_name),
			description  = coalesce($3, description),
			updated_at = now()
		where id = $1 and deleted_at is null
	`, id, displayName, description)
	return err
}

func (s *Store) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `update collections set deleted_at = now() where id = $1`, id)
	return err
}
