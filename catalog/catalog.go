// Package catalog implements the system catalog: the relation-name and
// relation-id indexes a database opens before it can plan or run
// anything against a table, persisted in the reserved catalog page
// (config.CatalogPageID) as one record per relation.
package catalog

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"sync"

	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/buffer"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/page"
	"github.com/malzahar/jindb/relation"
)

// Relation ties a relation's identity and schema to the heap holding
// its records.
type Relation struct {
	ID     uuid.UUID
	Name   string
	Schema *relation.Schema
	Heap   *relation.Heap
}

type catalogEntry struct {
	rel  *Relation
	slot uint32
}

// SystemCatalog maintains metadata about every relation in the
// database: the name -> id and id -> Relation indexes, backed by a
// single-page directory at config.CatalogPageID.
type SystemCatalog struct {
	mu          sync.RWMutex
	relations   map[uuid.UUID]*catalogEntry
	relationIDs map[string]uuid.UUID

	pool *buffer.Pool
	log  zerolog.Logger
}

// Open loads (or, on a brand-new database, initializes) the system
// catalog from config.CatalogPageID.
func Open(pool *buffer.Pool, logger zerolog.Logger) (*SystemCatalog, error) {
	c := &SystemCatalog{
		relations:   make(map[uuid.UUID]*catalogEntry),
		relationIDs: make(map[string]uuid.UUID),
		pool:        pool,
		log:         logger,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SystemCatalog) load() error {
	fh, err := c.pool.FetchPage(config.CatalogPageID)
	if err != nil {
		return err
	}
	defer func() { _ = fh.Unpin(false) }()

	fh.Lock()
	defer fh.Unlock()

	if page.ID(fh.Bytes()) != config.CatalogPageID {
		page.Init(fh.Bytes(), config.CatalogPageID, c.pool.PageSize())
		fh.SetDirty(true)
		return nil
	}

	numSlots := page.NumSlots(fh.Bytes())
	for slot := uint32(0); slot < numSlots; slot++ {
		raw, err := page.Read(fh.Bytes(), slot)
		if err != nil {
			continue // slot already deleted
		}
		meta, err := decodeRelationMeta(raw)
		if err != nil {
			return err
		}
		rel := &Relation{
			ID:     meta.id,
			Name:   meta.name,
			Schema: meta.schema,
			Heap:   relation.OpenHeap(c.pool, meta.headPageID),
		}
		c.relationIDs[rel.Name] = rel.ID
		c.relations[rel.ID] = &catalogEntry{rel: rel, slot: slot}
	}
	return nil
}

// CreateRelation allocates a new heap for name/schema, registers it in
// the catalog, persists its metadata to the catalog page, and returns
// it. Returns an error if name is already registered, or if the
// catalog page has no room for one more relation record.
func (c *SystemCatalog) CreateRelation(name string, schema *relation.Schema) (*Relation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.relationIDs[name]; exists {
		return nil, apperr.New(apperr.KindIoDecode, "catalog: relation %q already exists", name)
	}

	heap, err := relation.NewHeap(c.pool)
	if err != nil {
		return nil, err
	}

	rel := &Relation{
		ID:     uuid.New(),
		Name:   name,
		Schema: schema,
		Heap:   heap,
	}

	raw := encodeRelationMeta(relationMeta{id: rel.ID, headPageID: heap.HeadPageID(), name: name, schema: schema})

	fh, err := c.pool.FetchPage(config.CatalogPageID)
	if err != nil {
		return nil, err
	}
	fh.Lock()
	slot, insertErr := page.Insert(fh.Bytes(), raw)
	fh.Unlock()
	if unpinErr := fh.Unpin(insertErr == nil); unpinErr != nil {
		return nil, unpinErr
	}
	if insertErr != nil {
		return nil, apperr.Wrap(insertErr, "catalog: no room for another relation")
	}

	c.relationIDs[name] = rel.ID
	c.relations[rel.ID] = &catalogEntry{rel: rel, slot: slot}
	c.log.Debug().Str("relation", name).Str("id", rel.ID.String()).Msg("created relation")
	return rel, nil
}

// DropRelation removes name from the catalog and reclaims its record in
// the catalog page. It does not reclaim the relation's own heap pages;
// disk space reclamation there is out of scope per spec.
func (c *SystemCatalog) DropRelation(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.relationIDs[name]
	if !ok {
		return apperr.New(apperr.KindIoDecode, "catalog: relation %q not found", name)
	}
	entry := c.relations[id]

	fh, err := c.pool.FetchPage(config.CatalogPageID)
	if err != nil {
		return err
	}
	fh.Lock()
	flagErr := page.FlagDelete(fh.Bytes(), entry.slot)
	if flagErr == nil {
		flagErr = page.CommitDelete(fh.Bytes(), entry.slot)
	}
	fh.Unlock()
	if unpinErr := fh.Unpin(flagErr == nil); unpinErr != nil {
		return unpinErr
	}
	if flagErr != nil {
		return flagErr
	}

	delete(c.relationIDs, name)
	delete(c.relations, id)
	return nil
}

// GetRelation looks up a relation by name.
func (c *SystemCatalog) GetRelation(name string) (*Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.relationIDs[name]
	if !ok {
		return nil, false
	}
	entry, ok := c.relations[id]
	if !ok {
		return nil, false
	}
	return entry.rel, true
}

// GetRelationByID looks up a relation by its catalog-assigned id.
func (c *SystemCatalog) GetRelationByID(id uuid.UUID) (*Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.relations[id]
	if !ok {
		return nil, false
	}
	return entry.rel, true
}

// RelationNames returns every registered relation's name, in no
// particular order.
func (c *SystemCatalog) RelationNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.relationIDs))
	for name := range c.relationIDs {
		names = append(names, name)
	}
	return names
}
