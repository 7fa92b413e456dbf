package mapstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// FileStore persists the mapping document as one JSON file.
//
// No cross-process locking is provided. Concurrent whole-document
// read-modify-write cycles are last-writer-wins; callers must not run
// two syncs for the same session at once.
type FileStore struct {
	path string
	log  zerolog.Logger
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{
		path: path,
		log:  log.With().Str("component", "mapstore").Logger(),
	}
}

// Load reads the document from disk. Any read or parse failure
// degrades to an empty document.
func (s *FileStore) Load() *Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("mapping file unreadable, starting empty")
		}
		return NewDocument()
	}
	if len(data) == 0 {
		return NewDocument()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("mapping file malformed, starting empty")
		return NewDocument()
	}

	doc.normalize()
	return &doc
}

// Save stamps LastSync and writes the document atomically via a temp
// file and rename, so a concurrent reader sees either the old or the
// new document, never a partial one.
func (s *FileStore) Save(doc *Document) error {
	doc.LastSync = time.Now().UnixMilli()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}
