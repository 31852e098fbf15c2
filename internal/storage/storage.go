// Package storage defines the persistence contract for collections,
// instances, and the shredded entity tree. Concrete
// backends live in subpackages; internal/storage/postgres is the only
// one shipped.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
)

// CollectionType discriminates calendar, address-book, and plain
// WebDAV container collections.
type CollectionType string

const (
	CollectionCalendar    CollectionType = "calendar"
	CollectionAddressBook CollectionType = "addressbook"
	CollectionPlain       CollectionType = "collection"
)

// Collection is a calendar, address book, or plain WebDAV container.
type Collection struct {
	ID                 uuid.UUID
	OwnerPrincipal     string
	Type               CollectionType
	Slug               string
	DisplayName        string
	Description        string
	DefaultTZID        string
	SupportedComponent []string // calendars only: VEVENT, VTODO, ...
	SyncToken          int64
	ParentID           *uuid.UUID
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// Instance is a named appearance of an entity inside a collection.
type Instance struct {
	ID            uuid.UUID
	CollectionID  uuid.UUID
	EntityID      uuid.UUID
	Slug          string
	ContentType   string // text/calendar or text/vcard
	ETag          string
	SyncRevision  int64
	LastModified  time.Time
	DeletedAt     *time.Time
}

// Tombstone records a deleted instance for sync-collection REPORT
// replies.
type Tombstone struct {
	CollectionID uuid.UUID
	Slug         string
	SyncToken    int64
}

// Entity is the shredded-tree payload stored alongside an Instance. An
// entity may be referenced by more than one Instance under COPY/MOVE
// shallow-copy semantics.
type Entity struct {
	ID      uuid.UUID
	Type    shred.EntityType
	UID     string
	Tree    shred.Tree
	Indexes shred.Indexes
}

// ErrSlugConflict is returned by CreateInstance when a live instance
// with the same slug already exists in the collection.
type ErrSlugConflict struct {
	CollectionID uuid.UUID
	Slug         string
}

func (e *ErrSlugConflict) Error() string {
	return "slug conflict: " + e.Slug + " in collection " + e.CollectionID.String()
}

// ErrETagConflict is returned by UpdateInstance when the conditional
// update's expected ETag no longer matches the stored row — a
// concurrent writer got there first. The transaction rolls back, so the
// loser leaves sync_token untouched and the handler answers 412.
type ErrETagConflict struct {
	InstanceID   uuid.UUID
	ExpectedETag string
}

func (e *ErrETagConflict) Error() string {
	return "etag conflict on instance " + e.InstanceID.String()
}

// ChangeSet is the result of ChangesSince: every instance mutated after
// since, every tombstone written after since, and the collection's
// current sync_token.
type ChangeSet struct {
	Instances  []Instance
	Tombstones []Tombstone
	NewToken   int64
}

// Principal is a user or group. Authentication secret material
// (PasswordHash) is opaque to the rest of the core; only internal/auth
// reads it.
type Principal struct {
	ID           string
	DisplayName  string
	PasswordHash string
	IsGroup      bool
}

// UIDConflict is returned by FindLiveInstanceByUID callers (via the
// validation gate) when a logical_uid already names a different live
// slug in the same collection.
type UIDConflict struct {
	CollectionID uuid.UUID
	Slug         string
	UID          string
}

func (e *UIDConflict) Error() string {
	return "uid conflict: " + e.UID + " already used by slug " + e.Slug
}

// Store is the full persistence contract. Every instance-mutating
// method (CreateInstance, UpdateInstance, DeleteInstance) bumps the
// owning collection's sync_token exactly once, in the same transaction
// as the mutation; collection and entity writes do not bump it.
type Store interface {
	Close()

	GetCollection(ctx context.Context, id uuid.UUID) (*Collection, error)
	GetCollectionByOwnerAndSlug(ctx context.Context, owner, slug string) (*Collection, error)
	ListCollectionsByOwner(ctx context.Context, owner string) ([]Collection, error)
	CreateCollection(ctx context.Context, c Collection) (*Collection, error)
	UpdateCollectionProps(ctx context.Context, id uuid.UUID, displayName, description *string) error
	DeleteCollection(ctx context.Context, id uuid.UUID) error

	GetEntity(ctx context.Context, id uuid.UUID) (*Entity, error)
	PutEntity(ctx context.Context, e Entity) error

	CreateInstance(ctx context.Context, collectionID, entityID uuid.UUID, slug, contentType, etag string) (*Instance, error)

	// UpdateInstance rewrites an instance's entity pointer and ETag.
	// A non-empty expectedETag makes the write conditional: the update
	// applies only while the stored etag still equals it, and a
	// mismatch returns *ErrETagConflict with nothing committed. An
	// empty expectedETag is unconditional (last writer wins).
	UpdateInstance(ctx context.Context, instanceID uuid.UUID, expectedETag string, newEntityID *uuid.UUID, newETag string) (*Instance, error)
	DeleteInstance(ctx context.Context, instanceID uuid.UUID) error
	GetInstanceBySlug(ctx context.Context, collectionID uuid.UUID, slug string) (*Instance, error)
	ListCollection(ctx context.Context, collectionID uuid.UUID) ([]Instance, error)
	ChangesSince(ctx context.Context, collectionID uuid.UUID, sinceToken int64, limit int) (*ChangeSet, error)
	UpdateSyncToken(ctx context.Context, collectionID uuid.UUID) (int64, error)

	// Index-backed query support for calendar-query/addressbook-query
	// REPORTs; the filter package consumes these.
	ListEventIndex(ctx context.Context, collectionID uuid.UUID) ([]shred.EventIndexRow, error)
	ListCardIndex(ctx context.Context, collectionID uuid.UUID) ([]shred.CardIndexRow, error)
	ListCardEmails(ctx context.Context, collectionID uuid.UUID) ([]shred.CardEmailRow, error)
	ListCardPhones(ctx context.Context, collectionID uuid.UUID) ([]shred.CardPhoneRow, error)

	// FindLiveInstanceByUID returns the live instance (if any) in
	// collectionID whose entity's logical_uid equals uid, for the
	// validation gate's UID-uniqueness check.
	FindLiveInstanceByUID(ctx context.Context, collectionID uuid.UUID, uid string) (*Instance, error)

	// Principal / group membership for subject expansion. Group
	// membership is flat: a group cannot contain another group.
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	GroupIDsForPrincipal(ctx context.Context, id string) ([]string, error)

	// SearchPrincipals returns principals whose display name contains
	// match case-insensitively, for the principal-property-search REPORT.
	SearchPrincipals(ctx context.Context, match string) ([]Principal, error)
}
