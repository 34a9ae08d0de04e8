// Package document implements C13: the open-document store, the
// single authoritative source of text for any file currently open in
// the editor.
//
// Grounded on the teacher's internal/core/file_service.go single-writer
// discipline (a sync.RWMutex-guarded map, mutated only by the transport
// goroutine handling didOpen/didChange/didClose), narrowed to the
// text-plus-version record this project needs rather than the
// teacher's line-offset/hash/refcount FileContent.
package document

import (
	"sync"

	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// Document is one open file's current text, per spec §3 invariant 2
// the sole authoritative source for that file's content while open.
type Document struct {
	Text    []byte
	Version uint64
}

// Store holds every currently open document. Per spec §5, it is
// mutated only on the editor-transport goroutine; feature handlers and
// scheduler tasks read it concurrently but never write. Zero value is
// ready to use.
type Store struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]Document)}
}

// Open records id as open with the given initial text and version,
// replacing any previous record.
func (s *Store) Open(id types.FileID, text []byte, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id.String()] = Document{Text: text, Version: version}
}

// Change replaces id's text and version. The caller applies whatever
// incremental-edit resolution the transport protocol requires before
// calling this; Store itself only ever stores a full text snapshot.
func (s *Store) Change(id types.FileID, text []byte, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id.String()] = Document{Text: text, Version: version}
}

// Close removes id from the store.
func (s *Store) Close(id types.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id.String())
}

// Get returns id's current document, if open.
func (s *Store) Get(id types.FileID) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id.String()]
	return d, ok
}

// IsOpen reports whether id is currently open.
func (s *Store) IsOpen(id types.FileID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id.String()]
	return ok
}

// OpenIDs returns the string keys of every open document, the shape
// UpdateFromDisk's openDocs parameter expects.
func (s *Store) OpenIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.docs))
	for k := range s.docs {
		ids[k] = struct{}{}
	}
	return ids
}

// Len reports the number of open documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
