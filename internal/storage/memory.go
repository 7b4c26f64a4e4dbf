package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
)

type MemoryStoreConfig struct {
	Clock       func() time.Time
	IDProvider  documents.IDProvider
	KeyProvider documents.KeyProvider
}

// MemoryStore keeps documents in process memory. It backs tests and offline
// development.
type MemoryStore struct {
	clock       func() time.Time
	idProvider  documents.IDProvider
	keyProvider documents.KeyProvider

	mu   sync.RWMutex
	docs map[string]documents.Document
}

func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = documents.NewUUIDProvider()
	}
	keyProvider := cfg.KeyProvider
	if keyProvider == nil {
		keyProvider = documents.NewULIDKeyProvider()
	}
	return &MemoryStore{
		clock:       clock,
		idProvider:  idProvider,
		keyProvider: keyProvider,
		docs:        make(map[string]documents.Document),
	}
}

func (s *MemoryStore) List(ctx context.Context) ([]documents.Document, error) {
	s.mu.RLock()
	docs := make([]documents.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAtSeconds != docs[j].CreatedAtSeconds {
			return docs[i].CreatedAtSeconds > docs[j].CreatedAtSeconds
		}
		return docs[i].StorageKey > docs[j].StorageKey
	})
	return docs, nil
}

func (s *MemoryStore) Save(ctx context.Context, request SaveRequest) (documents.Document, error) {
	doc := request.Document
	now := s.clock().UTC()

	if doc.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return documents.Document{}, newPersistenceError(BackendMemory, "save", err)
		}
		doc.ID = id
	}
	if doc.StorageKey == "" {
		key, err := s.keyProvider.NewKey(now)
		if err != nil {
			return documents.Document{}, newPersistenceError(BackendMemory, "save", err)
		}
		doc.StorageKey = key
		if doc.CreatedAtSeconds <= 0 {
			doc.CreatedAtSeconds = now.Unix()
		}
	} else if doc.CreatedAtSeconds <= 0 {
		doc.CreatedAtSeconds = now.Unix()
	}
	doc.UpdatedAtSeconds = now.Unix()

	s.mu.Lock()
	s.docs[doc.StorageKey] = doc
	s.mu.Unlock()
	return doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, storageKey string) (bool, error) {
	key, err := documents.NewStorageKey(storageKey)
	if err != nil {
		return false, newPersistenceError(BackendMemory, "delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[key.String()]; !exists {
		return false, nil
	}
	delete(s.docs, key.String())
	return true, nil
}
