// Package shred decomposes the canonical iCalendar/vCard model into a
// component/property/parameter tree plus denormalized index rows, and
// reassembles it back. Decompose→store→reassemble must be lossless:
// re-serializing a reassembled entity reproduces the same bytes and
// the same ETag.
package shred

import (
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// EntityType discriminates the two content kinds a shredded Entity holds.
type EntityType string

const (
	EntityICalendar EntityType = "ical"
	EntityVCard     EntityType = "vcard"
)

// ComponentRow is one node of the decomposed tree.
type ComponentRow struct {
	ID       uuid.UUID
	EntityID uuid.UUID
	ParentID *uuid.UUID // nil for the root
	Name     string     // uppercase
	Ordinal  int
}

// ValueKind selects which value_* column on PropertyRow is populated.
type ValueKind string

const (
	ValKindText     ValueKind = "text"
	ValKindInt      ValueKind = "int"
	ValKindFloat    ValueKind = "float"
	ValKindBool     ValueKind = "bool"
	ValKindDate     ValueKind = "date"
	ValKindDateTime ValueKind = "datetime_utc"
	ValKindBytes    ValueKind = "bytes"
	ValKindJSON     ValueKind = "json"
)

// PropertyRow is a typed value attached to a component.
// ValueType is the full value-type tag from the codec layer; ValueKind
// selects which value_* column the typed form lives in. Both are stored
// so reassembly restores the exact type (TEXT-LIST and structured vCard
// values would otherwise collapse into plain TEXT and re-escape
// differently, breaking the byte-stable ETag contract).
type PropertyRow struct {
	ID               uuid.UUID
	ComponentID      uuid.UUID
	Name             string
	Group            string // vCard group prefix, empty otherwise
	Ordinal          int
	ValueType        textcodec.ValueType
	ValueKind        ValueKind
	ValueText        string // always populated, for round-trip fidelity
	ValueInt         *int64
	ValueFloat       *float64
	ValueBool        *bool
	ValueDate        *time.Time
	ValueDateTimeUTC *time.Time
	ValueBytes       []byte
}

// ParameterRow is a name=value(s) pair on a property.
type ParameterRow struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	Name       string
	Value      string // multiple values joined by comma, as stored
	Ordinal    int
}

// Tree is the full decomposed form of one entity.
type Tree struct {
	EntityID   uuid.UUID
	EntityType EntityType
	LogicalUID string
	Components []ComponentRow
	Properties []PropertyRow
	Parameters []ParameterRow
}

// EventIndexRow mirrors the event_index table.
type EventIndexRow struct {
	EntityID          uuid.UUID
	MasterComponentID *uuid.UUID
	DTStartUTC        *time.Time
	DTEndUTC          *time.Time
	RRuleText         string
	RecurrenceIDUTC   *time.Time
	Summary           string
	Location          string
	Status            string
}

// CardIndexRow mirrors the card_index table.
type CardIndexRow struct {
	EntityID             uuid.UUID
	UID                  string
	FN                   string
	N                    string
	Org                  string
	Title                string
	ValueTextUnicodeFold string
	ValueTextASCIIFold   string
}

// CardEmailRow / CardPhoneRow mirror card_email / card_phone.
type CardEmailRow struct {
	EntityID uuid.UUID
	Value    string
	Original string
}

type CardPhoneRow struct {
	EntityID uuid.UUID
	Value    string
	Original string
}

// Indexes bundles every denormalized row produced for one entity.
type Indexes struct {
	Event  *EventIndexRow // nil for vCard entities
	Card   *CardIndexRow  // nil for iCalendar entities
	Emails []CardEmailRow
	Phones []CardPhoneRow
}
