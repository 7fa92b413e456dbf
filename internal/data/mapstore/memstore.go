package mapstore

import (
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests. It deep-copies on both
// Load and Save so callers observe the same persistence boundary the
// file store has: in-memory mutations are invisible until saved.
type MemStore struct {
	mu    sync.Mutex
	doc   *Document
	saves int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{doc: NewDocument()}
}

// Load returns a copy of the stored document.
func (s *MemStore) Load() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Save stores a copy of the document and stamps LastSync.
func (s *MemStore) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.LastSync = time.Now().UnixMilli()
	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (s *MemStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
