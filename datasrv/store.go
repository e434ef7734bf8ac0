// Package datasrv serves the polling backend: one JSON document read with
// GET and replaced wholesale with POST.
package datasrv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eringen/bulletin/content"
)

// FileStore keeps the document in a single file.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored document, or the default empty snapshot when the
// file is missing or does not hold valid JSON.
func (s *FileStore) Load() json.RawMessage {
	s.mu.RLock()
	b, err := os.ReadFile(s.path)
	s.mu.RUnlock()
	if err != nil || !json.Valid(b) {
		def, _ := json.Marshal(content.Empty())
		return def
	}
	return b
}

// Save replaces the document with raw, indented for readability. The write
// goes to a temp file first so readers never see a partial document.
func (s *FileStore) Save(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("datasrv: indent: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("datasrv: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return fmt.Errorf("datasrv: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("datasrv: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("datasrv: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("datasrv: rename: %w", err)
	}
	return nil
}
