package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sonroyaalmerol/go-davcore/internal/metrics"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

const instanceCols = `id, collection_id, entity_id, slug, content_type, etag, sync_revision, last_modified, deleted_at`

func scanInstance(row pgx.Row) (*storage.Instance, error) {
	var i storage.Instance
	if err := row.Scan(&i.ID, &i.CollectionID, &i.EntityID, &i.Slug, &i.ContentType, &i.ETag,
		&i.SyncRevision, &i.LastModified, &i.DeletedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// CreateInstance inserts a new live instance and bumps the collection's
// sync_token, all inside one transaction.
func (s *Store) CreateInstance(ctx context.Context, collectionID, entityID uuid.UUID, slug, contentType, etag string) (*storage.Instance, error) {
	defer metrics.ObserveStorageOp("create_instance", time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var token int64
	if err := tx.QueryRow(ctx, `
		update collections set sync_token = sync_token + 1, updated_at = now()
		where id = $1 and deleted_at is null returning sync_token
	`, collectionID).Scan(&token); err != nil {
		return nil, err
	}

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		insert into instances (id, collection_id, entity_id, slug, content_type, etag, sync_revision, last_modified)
		values ($1, $2, $3, $4, $5, $6, $7, now())
	`, id, collectionID, entityID, slug, contentType, etag, token)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &storage.ErrSlugConflict{CollectionID: collectionID, Slug: slug}
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.SyncTokenBumps.WithLabelValues("create").Inc()
	return s.GetInstanceBySlug(ctx, collectionID, slug)
}

// UpdateInstance rewrites an instance's entity pointer and ETag, bumping
// the collection's sync_token in the same transaction. A non-empty
// expectedETag makes the write conditional on the stored etag still
// matching it, closing the window between the handler's If-Match read
// and the write: the loser of a concurrent pair rolls back (no token
// bump) and gets *storage.ErrETagConflict, the same way CreateInstance's
// unique-violation path handles the create-side race.
func (s *Store) UpdateInstance(ctx context.Context, instanceID uuid.UUID, expectedETag string, newEntityID *uuid.UUID, newETag string) (*storage.Instance, error) {
	defer metrics.ObserveStorageOp("update_instance", time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var collectionID uuid.UUID
	if err := tx.QueryRow(ctx, `select collection_id from instances where id = $1`, instanceID).Scan(&collectionID); err != nil {
		return nil, err
	}

	var token int64
	if err := tx.QueryRow(ctx, `
		update collections set sync_token = sync_token + 1, updated_at = now()
		where id = $1 returning sync_token
	`, collectionID).Scan(&token); err != nil {
		return nil, err
	}

	q := `
		update instances set
			entity_id = coalesce($2, entity_id),
			etag = $3,
			sync_revision = $4,
			last_modified = now()
		where id = $1 and deleted_at is null`
	args := []any{instanceID, newEntityID, newETag, token}
	if expectedETag != "" {
		q += ` and etag = $5`
		args = append(args, expectedETag)
	}
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, &storage.ErrETagConflict{InstanceID: instanceID, ExpectedETag: expectedETag}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.SyncTokenBumps.WithLabelValues("update").Inc()
	row := s.pool.QueryRow(ctx, `select `+instanceCols+` from instances where id = $1`, instanceID)
	return scanInstance(row)
}

// DeleteInstance soft-deletes the instance and writes a tombstone, bumping
// sync_token once.
func (s *Store) DeleteInstance(ctx context.Context, instanceID uuid.UUID) error {
	defer metrics.ObserveStorageOp("delete_instance", time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var collectionID uuid.UUID
	var slug string
	if err := tx.QueryRow(ctx, `select collection_id, slug from instances where id = $1 and deleted_at is null`, instanceID).
		Scan(&collectionID, &slug); err != nil {
		return err
	}

	var token int64
	if err := tx.QueryRow(ctx, `
		update collections set sync_token = sync_token + 1, updated_at = now()
		where id = $1 returning sync_token
	`, collectionID).Scan(&token); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `update instances set deleted_at = now(), sync_revision = $2 where id = $1`, instanceID, token); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `insert into tombstones (collection_id, slug, sync_token) values ($1, $2, $3)`,
		collectionID, slug, token); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	metrics.SyncTokenBumps.WithLabelValues("delete").Inc()
	return nil
}

func (s *Store) GetInstanceBySlug(ctx context.Context, collectionID uuid.UUID, slug string) (*storage.Instance, error) {
	row := s.pool.QueryRow(ctx, `select `+instanceCols+` from instances
		where collection_id = $1 and slug = $2 and deleted_at is null`, collectionID, slug)
	i, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func (s *Store) ListCollection(ctx context.Context, collectionID uuid.UUID) ([]storage.Instance, error) {
	rows, err := s.pool.Query(ctx, `select `+instanceCols+` from instances
		where collection_id = $1 and deleted_at is null order by slug`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// ChangesSince backs sync-collection REPORTs: every instance mutated
// after sinceToken, every tombstone written after it, and the
// collection's current token.
func (s *Store) ChangesSince(ctx context.Context, collectionID uuid.UUID, sinceToken int64, limit int) (*storage.ChangeSet, error) {
	col, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, errors.New("collection not found")
	}

	q := `select ` + instanceCols + ` from instances
		where collection_id = $1 and deleted_at is null and sync_revision > $2 order by sync_revision`
	args := []any{collectionID, sinceToken}
	if limit > 0 {
		q += " limit $3"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var instances []storage.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		instances = append(instances, *i)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tombRows, err := s.pool.Query(ctx, `
		select collection_id, slug, sync_token from tombstones
		where collection_id = $1 and sync_token > $2 order by sync_token`, collectionID, sinceToken)
	if err != nil {
		return nil, err
	}
	defer tombRows.Close()
	var tombstones []storage.Tombstone
	for tombRows.Next() {
		var t storage.Tombstone
		if err := tombRows.Scan(&t.CollectionID, &t.Slug, &t.SyncToken); err != nil {
			return nil, err
		}
		tombstones = append(tombstones, t)
	}

	return &storage.ChangeSet{Instances: instances, Tombstones: tombstones, NewToken: col.SyncToken}, tombRows.Err()
}

// FindLiveInstanceByUID returns the live instance (if any) in
// collectionID whose entity carries logical_uid uid, for the
// validation gate's no-uid-conflict check.
func (s *Store) FindLiveInstanceByUID(ctx context.Context, collectionID uuid.UUID, uid string) (*storage.Instance, error) {
	row := s.pool.QueryRow(ctx, `
		select i.id, i.collection_id, i.entity_id, i.slug, i.content_type, i.etag, i.sync_revision, i.last_modified, i.deleted_at
		from instances i
		join entities e on e.id = i.entity_id
		where i.collection_id = $1 and i.deleted_at is null and e.logical_uid = $2
		limit 1
	`, collectionID, uid)
	i, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func (s *Store) UpdateSyncToken(ctx context.Context, collectionID uuid.UUID) (int64, error) {
	var token int64
	err := s.pool.QueryRow(ctx, `
		update collections set sync_token = sync_token + 1, updated_at = now() where id = $1 returning sync_token
	`, collectionID).Scan(&token)
	return token, err
}
