package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
)

// ListEventIndex returns event_index rows for every live instance in
// collectionID, backing calendar-query REPORT evaluation.
func (s *Store) ListEventIndex(ctx context.Context, collectionID uuid.UUID) ([]shred.EventIndexRow, error) {
	rows, err := s.pool.Query(ctx, `
		select e.entity_id, e.master_component_id, e.dtstart_utc, e.dtend_utc, e.rrule_text,
			e.recurrence_id_utc, e.summary, e.location, e.status
		from event_index e
		join instances i on i.entity_id = e.entity_id
		where i.collection_id = $1 and i.deleted_at is null
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []shred.EventIndexRow
	for rows.Next() {
		var r shred.EventIndexRow
		if err := rows.Scan(&r.EntityID, &r.MasterComponentID, &r.DTStartUTC, &r.DTEndUTC, &r.RRuleText,
			&r.RecurrenceIDUTC, &r.Summary, &r.Location, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCardIndex returns card_index rows for every live instance in
// collectionID, backing addressbook-query REPORT evaluation.
func (s *Store) ListCardIndex(ctx context.Context, collectionID uuid.UUID) ([]shred.CardIndexRow, error) {
	rows, err := s.pool.Query(ctx, `
		select c.entity_id, c.uid, c.fn, c.n, c.org, c.title, c.value_text_unicode_fold, c.value_text_ascii_fold
		from card_index c
		join instances i on i.entity_id = c.entity_id
		where i.collection_id = $1 and i.deleted_at is null
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []shred.CardIndexRow
	for rows.Next() {
		var r shred.CardIndexRow
		if err := rows.Scan(&r.EntityID, &r.UID, &r.FN, &r.N, &r.Org, &r.Title,
			&r.ValueTextUnicodeFold, &r.ValueTextASCIIFold); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCardEmails returns card_email rows for every live instance in
// collectionID, so the filter evaluator can dispatch EMAIL prop-filters
// per entity.
func (s *Store) ListCardEmails(ctx context.Context, collectionID uuid.UUID) ([]shred.CardEmailRow, error) {
	rows, err := s.pool.Query(ctx, `
		select e.entity_id, e.value, e.original
		from card_email e
		join instances i on i.entity_id = e.entity_id
		where i.collection_id = $1 and i.deleted_at is null
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []shred.CardEmailRow
	for rows.Next() {
		var r shred.CardEmailRow
		if err := rows.Scan(&r.EntityID, &r.Value, &r.Original); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCardPhones mirrors ListCardEmails for TEL prop-filters.
func (s *Store) ListCardPhones(ctx context.Context, collectionID uuid.UUID) ([]shred.CardPhoneRow, error) {
	rows, err := s.pool.Query(ctx, `
		select p.entity_id, p.value, p.original
		from card_phone p
		join instances i on i.entity_id = p.entity_id
		where i.collection_id = $1 and i.deleted_at is null
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []shred.CardPhoneRow
	for rows.Next() {
		var r shred.CardPhoneRow
		if err := rows.Scan(&r.EntityID, &r.Value, &r.Original); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
