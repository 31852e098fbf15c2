// Package postgres implements storage.Store on top of pgxpool: a thin
// struct wrapping a pool, one method per operation, explicit SQL.
// Sync-token bumps run as a transactional UPDATE...RETURNING alongside
// the instance mutation they account for.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func New(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() { s.pool.Close() }
