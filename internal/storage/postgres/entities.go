package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

// PutEntity persists a freshly decomposed shred.Tree plus its denormalized
// index rows, replacing any prior rows for the same entity id. The old
// tree is soft-deleted (parameters, then properties, then components) so
// historical reads stay stable; index rows are hard-replaced since they
// only serve live queries.
func (s *Store) PutEntity(ctx context.Context, e storage.Entity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		insert into entities (id, entity_type, logical_uid)
		values ($1, $2, $3)
		on conflict (id) do update set entity_type = excluded.entity_type, logical_uid = excluded.logical_uid
	`, e.ID, e.Type, e.UID); err != nil {
		return err
	}

	// Retire the old tree wholesale rather than diffing ordinals:
	// parameters first, then properties, then components.
	if _, err := tx.Exec(ctx, `
		update parameters pr set deleted_at = now()
		from properties p, components c
		where pr.property_id = p.id and p.component_id = c.id
			and c.entity_id = $1 and pr.deleted_at is null
	`, e.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		update properties p set deleted_at = now()
		from components c
		where p.component_id = c.id and c.entity_id = $1 and p.deleted_at is null
	`, e.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		update components set deleted_at = now()
		where entity_id = $1 and deleted_at is null
	`, e.ID); err != nil {
		return err
	}
	for _, c := range e.Tree.Components {
		if _, err := tx.Exec(ctx, `
			insert into components (id, entity_id, parent_id, name, ordinal) values ($1, $2, $3, $4, $5)
		`, c.ID, c.EntityID, c.ParentID, c.Name, c.Ordinal); err != nil {
			return err
		}
	}
	for _, p := range e.Tree.Properties {
		if _, err := tx.Exec(ctx, `
			insert into properties (id, component_id, name, prop_group, ordinal, value_type, value_kind, value_text,
				value_int, value_float, value_bool, value_date, value_datetime_utc, value_bytes)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, p.ID, p.ComponentID, p.Name, p.Group, p.Ordinal, p.ValueType, p.ValueKind, p.ValueText,
			p.ValueInt, p.ValueFloat, p.ValueBool, p.ValueDate, p.ValueDateTimeUTC, p.ValueBytes); err != nil {
			return err
		}
	}
	for _, pr := range e.Tree.Parameters {
		if _, err := tx.Exec(ctx, `
			insert into parameters (id, property_id, name, value, ordinal) values ($1, $2, $3, $4, $5)
		`, pr.ID, pr.PropertyID, pr.Name, pr.Value, pr.Ordinal); err != nil {
			return err
		}
	}

	if err := putIndexes(ctx, tx, e.ID, e.Indexes); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func putIndexes(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, idx shred.Indexes) error {
	if _, err := tx.Exec(ctx, `delete from event_index where entity_id = $1`, entityID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from card_index where entity_id = $1`, entityID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from card_email where entity_id = $1`, entityID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from card_phone where entity_id = $1`, entityID); err != nil {
		return err
	}

	if idx.Event != nil {
		e := idx.Event
		if _, err := tx.Exec(ctx, `
			insert into event_index (entity_id, master_component_id, dtstart_utc, dtend_utc,
				rrule_text, recurrence_id_utc, summary, location, status)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, entityID, e.MasterComponentID, e.DTStartUTC, e.DTEndUTC, e.RRuleText, e.RecurrenceIDUTC,
			e.Summary, e.Location, e.Status); err != nil {
			return err
		}
	}
	if idx.Card != nil {
		c := idx.Card
		if _, err := tx.Exec(ctx, `
			insert into card_index (entity_id, uid, fn, n, org, title, value_text_unicode_fold, value_text_ascii_fold)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
		`, entityID, c.UID, c.FN, c.N, c.Org, c.Title, c.ValueTextUnicodeFold, c.ValueTextASCIIFold); err != nil {
			return err
		}
	}
	for _, em := range idx.Emails {
		if _, err := tx.Exec(ctx, `insert into card_email (entity_id, value, original) values ($1, $2, $3)`,
			entityID, em.Value, em.Original); err != nil {
			return err
		}
	}
	for _, ph := range idx.Phones {
		if _, err := tx.Exec(ctx, `insert into card_phone (entity_id, value, original) values ($1, $2, $3)`,
			entityID, ph.Value, ph.Original); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*storage.Entity, error) {
	var e storage.Entity
	row := s.pool.QueryRow(ctx, `select id, entity_type, logical_uid from entities where id = $1`, id)
	if err := row.Scan(&e.ID, &e.Type, &e.UID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Tree.EntityID = e.ID
	e.Tree.EntityType = e.Type
	e.Tree.LogicalUID = e.UID

	compRows, err := s.pool.Query(ctx, `select id, entity_id, parent_id, name, ordinal from components
		where entity_id = $1 and deleted_at is null order by ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer compRows.Close()
	for compRows.Next() {
		var c shred.ComponentRow
		if err := compRows.Scan(&c.ID, &c.EntityID, &c.ParentID, &c.Name, &c.Ordinal); err != nil {
			return nil, err
		}
		e.Tree.Components = append(e.Tree.Components, c)
	}
	if err := compRows.Err(); err != nil {
		return nil, err
	}

	propRows, err := s.pool.Query(ctx, `
		select p.id, p.component_id, p.name, p.prop_group, p.ordinal, p.value_type, p.value_kind, p.value_text,
			p.value_int, p.value_float, p.value_bool, p.value_date, p.value_datetime_utc, p.value_bytes
		from properties p join components c on c.id = p.component_id
		where c.entity_id = $1 and p.deleted_at is null and c.deleted_at is null
		order by p.ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer propRows.Close()
	for propRows.Next() {
		var p shred.PropertyRow
		if err := propRows.Scan(&p.ID, &p.ComponentID, &p.Name, &p.Group, &p.Ordinal, &p.ValueType, &p.ValueKind, &p.ValueText,
			&p.ValueInt, &p.ValueFloat, &p.ValueBool, &p.ValueDate, &p.ValueDateTimeUTC, &p.ValueBytes); err != nil {
			return nil, err
		}
		e.Tree.Properties = append(e.Tree.Properties, p)
	}
	if err := propRows.Err(); err != nil {
		return nil, err
	}

	paramRows, err := s.pool.Query(ctx, `
		select pr.id, pr.property_id, pr.name, pr.value, pr.ordinal
		from parameters pr
		join properties p on p.id = pr.property_id
		join components c on c.id = p.component_id
		where c.entity_id = $1 and pr.deleted_at is null
			and p.deleted_at is null and c.deleted_at is null
		order by pr.ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer paramRows.Close()
	for paramRows.Next() {
		var pr shred.ParameterRow
		if err := paramRows.Scan(&pr.ID, &pr.PropertyID, &pr.Name, &pr.Value, &pr.Ordinal); err != nil {
			return nil, err
		}
		e.Tree.Parameters = append(e.Tree.Parameters, pr)
	}
	return &e, paramRows.Err()
}
