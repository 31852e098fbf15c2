package dav

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

// memStore is an in-memory storage.Store + authz.PolicyQuery used only
// by this package's tests, standing in for internal/storage/postgres so
// the HTTP handlers can be exercised without a database.
type memStore struct {
	mu          sync.Mutex
	principals  map[string]*storage.Principal
	groups      map[string][]string
	collections map[uuid.UUID]*storage.Collection
	entities    map[uuid.UUID]*storage.Entity
	instances   map[uuid.UUID]*storage.Instance
	tombstones  []storage.Tombstone
	policy      []authz.PolicyRow
}

func newMemStore() *memStore {
	return &memStore{
		principals:  map[string]*storage.Principal{},
		groups:      map[string][]string{},
		collections: map[uuid.UUID]*storage.Collection{},
		entities:    map[uuid.UUID]*storage.Entity{},
		instances:   map[uuid.UUID]*storage.Instance{},
	}
}

func (m *memStore) Close() {}

func (m *memStore) GetCollection(ctx context.Context, id uuid.UUID) (*storage.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetCollectionByOwnerAndSlug(ctx context.Context, owner, slug string) (*storage.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.collections {
		if c.OwnerPrincipal == owner && c.Slug == slug && c.DeletedAt == nil {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListCollectionsByOwner(ctx context.Context, owner string) ([]storage.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Collection
	for _, c := range m.collections {
		if c.OwnerPrincipal == owner && c.DeletedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) CreateCollection(ctx context.Context, c storage.Collection) (*storage.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.UpdatedAt = time.Now()
	m.collections[c.ID] = &c
	cp := c
	return &cp, nil
}

func (m *memStore) UpdateCollectionProps(ctx context.Context, id uuid.UUID, displayName, description *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return nil
	}
	if displayName != nil {
		c.DisplayName = *displayName
	}
	if description != nil {
		c.Description = *description
	}
	return nil
}

func (m *memStore) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[id]; ok {
		now := time.Now()
		c.DeletedAt = &now
	}
	return nil
}

func (m *memStore) GetEntity(ctx context.Context, id uuid.UUID) (*storage.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, nil
	}
	ep := *e
	return &ep, nil
}

func (m *memStore) PutEntity(ctx context.Context, e storage.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = &e
	return nil
}

func (m *memStore) bumpSyncTokenLocked(collectionID uuid.UUID) int64 {
	c, ok := m.collections[collectionID]
	if !ok {
		return 0
	}
	c.SyncToken++
	return c.SyncToken
}

func (m *memStore) CreateInstance(ctx context.Context, collectionID, entityID uuid.UUID, slug, contentType, etag string) (*storage.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.CollectionID == collectionID && inst.Slug == slug && inst.DeletedAt == nil {
			return nil, &storage.ErrSlugConflict{CollectionID: collectionID, Slug: slug}
		}
	}
	token := m.bumpSyncTokenLocked(collectionID)
	inst := &storage.Instance{
		ID:           uuid.New(),
		CollectionID: collectionID,
		EntityID:     entityID,
		Slug:         slug,
		ContentType:  contentType,
		ETag:         etag,
		SyncRevision: token,
		LastModified: time.Now(),
	}
	m.instances[inst.ID] = inst
	cp := *inst
	return &cp, nil
}

func (m *memStore) UpdateInstance(ctx context.Context, instanceID uuid.UUID, expectedETag string, newEntityID *uuid.UUID, newETag string) (*storage.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok || inst.DeletedAt != nil {
		return nil, nil
	}
	if expectedETag != "" && inst.ETag != expectedETag {
		return nil, &storage.ErrETagConflict{InstanceID: instanceID, ExpectedETag: expectedETag}
	}
	if newEntityID != nil {
		inst.EntityID = *newEntityID
	}
	inst.ETag = newETag
	inst.LastModified = time.Now()
	inst.SyncRevision = m.bumpSyncTokenLocked(inst.CollectionID)
	cp := *inst
	return &cp, nil
}

func (m *memStore) DeleteInstance(ctx context.Context, instanceID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok {
		return nil
	}
	now := time.Now()
	inst.DeletedAt = &now
	token := m.bumpSyncTokenLocked(inst.CollectionID)
	inst.SyncRevision = token
	m.tombstones = append(m.tombstones, storage.Tombstone{
		CollectionID: inst.CollectionID,
		Slug:         inst.Slug,
		SyncToken:    token,
	})
	return nil
}

func (m *memStore) GetInstanceBySlug(ctx context.Context, collectionID uuid.UUID, slug string) (*storage.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.CollectionID == collectionID && inst.Slug == slug && inst.DeletedAt == nil {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListCollection(ctx context.Context, collectionID uuid.UUID) ([]storage.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Instance
	for _, inst := range m.instances {
		if inst.CollectionID == collectionID && inst.DeletedAt == nil {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (m *memStore) ChangesSince(ctx context.Context, collectionID uuid.UUID, sinceToken int64, limit int) (*storage.ChangeSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := &storage.ChangeSet{}
	if c, ok := m.collections[collectionID]; ok {
		cs.NewToken = c.SyncToken
	}
	for _, inst := range m.instances {
		if inst.CollectionID == collectionID && inst.DeletedAt == nil && inst.SyncRevision > sinceToken {
			cs.Instances = append(cs.Instances, *inst)
		}
	}
	for _, t := range m.tombstones {
		if t.CollectionID == collectionID && t.SyncToken > sinceToken {
			cs.Tombstones = append(cs.Tombstones, t)
		}
	}
	return cs, nil
}

func (m *memStore) UpdateSyncToken(ctx context.Context, collectionID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bumpSyncTokenLocked(collectionID), nil
}

func (m *memStore) ListEventIndex(ctx context.Context, collectionID uuid.UUID) ([]shred.EventIndexRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shred.EventIndexRow
	for _, inst := range m.instances {
		if inst.CollectionID != collectionID || inst.DeletedAt != nil {
			continue
		}
		if e, ok := m.entities[inst.EntityID]; ok && e.Indexes.Event != nil {
			out = append(out, *e.Indexes.Event)
		}
	}
	return out, nil
}

func (m *memStore) ListCardIndex(ctx context.Context, collectionID uuid.UUID) ([]shred.CardIndexRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shred.CardIndexRow
	for _, inst := range m.instances {
		if inst.CollectionID != collectionID || inst.DeletedAt != nil {
			continue
		}
		if e, ok := m.entities[inst.EntityID]; ok && e.Indexes.Card != nil {
			out = append(out, *e.Indexes.Card)
		}
	}
	return out, nil
}

func (m *memStore) ListCardEmails(ctx context.Context, collectionID uuid.UUID) ([]shred.CardEmailRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shred.CardEmailRow
	for _, inst := range m.instances {
		if inst.CollectionID != collectionID || inst.DeletedAt != nil {
			continue
		}
		if e, ok := m.entities[inst.EntityID]; ok {
			out = append(out, e.Indexes.Emails...)
		}
	}
	return out, nil
}

func (m *memStore) ListCardPhones(ctx context.Context, collectionID uuid.UUID) ([]shred.CardPhoneRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shred.CardPhoneRow
	for _, inst := range m.instances {
		if inst.CollectionID != collectionID || inst.DeletedAt != nil {
			continue
		}
		if e, ok := m.entities[inst.EntityID]; ok {
			out = append(out, e.Indexes.Phones...)
		}
	}
	return out, nil
}

func (m *memStore) FindLiveInstanceByUID(ctx context.Context, collectionID uuid.UUID, uid string) (*storage.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.CollectionID != collectionID || inst.DeletedAt != nil {
			continue
		}
		if e, ok := m.entities[inst.EntityID]; ok && e.UID == uid {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetPrincipal(ctx context.Context, id string) (*storage.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GroupIDsForPrincipal(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.groups[id]...), nil
}

func (m *memStore) SearchPrincipals(ctx context.Context, match string) ([]storage.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Principal
	for _, p := range m.principals {
		if strings.Contains(strings.ToLower(p.DisplayName), strings.ToLower(match)) {
			out = append(out, *p)
		}
	}
	return out, nil
}

// RolesGranted implements authz.PolicyQuery: filter by subject, leaving
// pattern matching to the authz package (mirrors internal/storage/postgres/policy.go).
func (m *memStore) RolesGranted(ctx context.Context, subjects []string, path string) ([]authz.PolicyRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		set[s] = true
	}
	var out []authz.PolicyRow
	for _, row := range m.policy {
		if set[row.Subject] {
			out = append(out, row)
		}
	}
	return out, nil
}
