package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStorage is a Storage backed by a single JSON file. Every mutation
// rewrites the file through a temp-file rename, so a crash mid-write never
// leaves a torn store behind.
type FileStorage struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStorage opens or creates the store at path. A missing file is an
// empty store; an unreadable one is an error so the caller can decide
// whether to start over.
func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{
		path: path,
		data: make(map[string]string),
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read state file %s", path)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &s.data); err != nil {
			return nil, errors.Wrapf(err, "failed to parse state file %s", path)
		}
	}
	return s, nil
}

func (s *FileStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flush()
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.flush()
}

// flush must be called with the lock held.
func (s *FileStorage) flush() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize state")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace state file")
	}
	return nil
}
