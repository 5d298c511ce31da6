// Package store keeps the documents of an index, addressed both by the
// engine's internal id and by their uuid.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-search-core/internal/storage"
	"github.com/gcbaptista/go-search-core/model"
)

// nextIDKey holds the internal id high-water mark, so ids of deleted
// documents are never handed out again. Document keys are 4 bytes long.
var nextIDKey = []byte("next_id")

// namespaceIndex roots the per-index namespaces engine-assigned uuids are derived from.
var namespaceIndex = uuid.MustParse("6f1c8a52-3c0e-4e3b-9f0a-2d7b4c61a9e5")

// DocumentStore holds every document of one index in memory and writes
// through to a storage backend.
//
// Stored documents are never mutated; Put stores a copy, and readers share
// the stored value.
type DocumentStore struct {
	mu                     sync.RWMutex
	docs                   map[uint32]model.Document // Internal ID to full document
	externalIDtoInternalID map[string]uint32         // uuid to internal ID
	nextID                 uint32

	backend   storage.Storage
	namespace uuid.UUID
	markMu    sync.Mutex // orders high-water mark writes
}

// New creates an empty store for the named index on top of backend.
func New(indexName string, backend storage.Storage) *DocumentStore {
	return &DocumentStore{
		docs:                   make(map[uint32]model.Document),
		externalIDtoInternalID: make(map[string]uint32),
		nextID:                 1,
		backend:                backend,
		namespace:              uuid.NewSHA1(namespaceIndex, []byte(indexName)),
	}
}

func encodeKey(id uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, id)
	return key
}

// Load reads every stored document from the backend and calls fn for each,
// in internal id order. Documents already in memory are discarded. New
// internal ids continue after both the stored documents and the persisted
// high-water mark.
func (ds *DocumentStore) Load(fn func(id uint32, doc model.Document)) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.docs = make(map[uint32]model.Document)
	ds.externalIDtoInternalID = make(map[string]uint32)
	ds.nextID = 1

	return ds.backend.ForEach(func(k, v []byte) error {
		if string(k) == string(nextIDKey) {
			if len(v) != 4 {
				return fmt.Errorf("invalid id high-water mark %x", v)
			}
			if mark := binary.BigEndian.Uint32(v); mark > ds.nextID {
				ds.nextID = mark
			}
			return nil
		}
		if len(k) != 4 {
			return fmt.Errorf("invalid document key %x", k)
		}
		id := binary.BigEndian.Uint32(k)
		var doc model.Document
		if err := json.Unmarshal(v, &doc); err != nil {
			return fmt.Errorf("failed to decode document %d: %w", id, err)
		}
		ds.docs[id] = doc
		if ext, ok := doc.GetID(); ok {
			ds.externalIDtoInternalID[ext] = id
		}
		if id >= ds.nextID {
			ds.nextID = id + 1
		}
		if fn != nil {
			fn(id, doc)
		}
		return nil
	})
}

// AssignedID returns the uuid the store gives a document stored under the
// internal id without a uuid of its own.
func (ds *DocumentStore) AssignedID(id uint32) string {
	return uuid.NewSHA1(ds.namespace, encodeKey(id)).String()
}

// Put stores doc. A document whose uuid is already stored replaces it and
// keeps its internal id; previous is the replaced document. A document
// without a uuid is appended under a new internal id and gets an assigned
// uuid. The stored copy is returned as stored.
func (ds *DocumentStore) Put(doc model.Document) (id uint32, stored model.Document, previous model.Document, err error) {
	stored = doc.Clone()

	ds.mu.Lock()
	ext, hasExt := stored.GetID()
	existing, exists := ds.externalIDtoInternalID[ext]
	switch {
	case hasExt && exists:
		id = existing
		previous = ds.docs[id]
	default:
		id = ds.nextID
		ds.nextID++
		if !hasExt {
			ext = ds.AssignedID(id)
			stored[model.IDField] = ext
		}
		// Reserve the uuid so a concurrent Put of the same uuid reuses id
		ds.externalIDtoInternalID[ext] = id
	}
	ds.mu.Unlock()

	payload, err := json.Marshal(stored)
	if err == nil {
		err = ds.backend.Set(encodeKey(id), payload)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err != nil {
		if previous == nil && ds.externalIDtoInternalID[ext] == id {
			if _, committed := ds.docs[id]; !committed {
				delete(ds.externalIDtoInternalID, ext)
			}
		}
		return 0, nil, nil, fmt.Errorf("failed to store document %s: %w", ext, err)
	}
	ds.docs[id] = stored
	return id, stored, previous, nil
}

// Get returns the document stored under an internal id.
func (ds *DocumentStore) Get(id uint32) (model.Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	doc, ok := ds.docs[id]
	return doc, ok
}

// GetByExternalID returns the document with the given uuid and its internal id.
func (ds *DocumentStore) GetByExternalID(ext string) (uint32, model.Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	id, ok := ds.externalIDtoInternalID[ext]
	if !ok {
		return 0, nil, false
	}
	doc, ok := ds.docs[id]
	return id, doc, ok
}

// Delete removes the document with the given uuid and returns it.
func (ds *DocumentStore) Delete(ext string) (uint32, model.Document, bool, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	id, ok := ds.externalIDtoInternalID[ext]
	if !ok {
		return 0, nil, false, nil
	}
	doc, ok := ds.docs[id]
	if !ok {
		return 0, nil, false, nil
	}
	if err := ds.backend.Delete(encodeKey(id)); err != nil {
		return 0, nil, false, fmt.Errorf("failed to delete document %s: %w", ext, err)
	}
	delete(ds.docs, id)
	delete(ds.externalIDtoInternalID, ext)
	return id, doc, true, nil
}

// Clear removes every document. Internal ids keep increasing.
func (ds *DocumentStore) Clear() error {
	ds.mu.Lock()
	if err := ds.backend.Clear(); err != nil {
		ds.mu.Unlock()
		return fmt.Errorf("failed to clear document storage: %w", err)
	}
	ds.docs = make(map[uint32]model.Document)
	ds.externalIDtoInternalID = make(map[string]uint32)
	ds.mu.Unlock()
	return ds.saveNextID()
}

// Count returns the number of stored documents.
func (ds *DocumentStore) Count() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.docs)
}

// IDs returns every internal id in ascending order.
func (ds *DocumentStore) IDs() []uint32 {
	ds.mu.RLock()
	ids := make([]uint32, 0, len(ds.docs))
	for id := range ds.docs {
		ids = append(ids, id)
	}
	ds.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// List returns up to limit documents in internal id order, skipping offset.
func (ds *DocumentStore) List(offset, limit int) []model.Document {
	ids := ds.IDs()
	if offset >= len(ids) {
		return []model.Document{}
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()
	docs := make([]model.Document, 0, end-offset)
	for _, id := range ids[offset:end] {
		if doc, ok := ds.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// saveNextID writes the high-water mark. nextID only grows and writes are
// serialized, so the stored mark never goes down.
func (ds *DocumentStore) saveNextID() error {
	ds.markMu.Lock()
	defer ds.markMu.Unlock()

	ds.mu.RLock()
	next := ds.nextID
	ds.mu.RUnlock()

	if err := ds.backend.Set(nextIDKey, encodeKey(next)); err != nil {
		return fmt.Errorf("failed to store id high-water mark: %w", err)
	}
	return nil
}

// Flush persists the id high-water mark and makes pending backend writes
// durable.
func (ds *DocumentStore) Flush() error {
	if err := ds.saveNextID(); err != nil {
		return err
	}
	return ds.backend.Flush()
}

// Close persists the id high-water mark and closes the backend.
func (ds *DocumentStore) Close() error {
	markErr := ds.saveNextID()
	return errors.Join(markErr, ds.backend.Close())
}

// StoragePath is the file backing the store, empty when in memory.
func (ds *DocumentStore) StoragePath() string {
	return ds.backend.WALName()
}
