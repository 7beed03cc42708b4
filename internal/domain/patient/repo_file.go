package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the collection as a JSON array in one file. Save rewrites
// the file in place; a crash mid-write can leave it truncated.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &StorageError{Op: "load", Err: fmt.Errorf("parse %s: %w", s.path, err)}
	}
	return c, nil
}

func (s *FileStore) Save(_ context.Context, c Collection) error {
	data, err := marshalCollection(c)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}

func (s *FileStore) Init(_ context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "init", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &StorageError{Op: "init", Err: err}
	}
	if err := os.WriteFile(s.path, []byte("[]"), 0o644); err != nil {
		return &StorageError{Op: "init", Err: err}
	}
	return nil
}

// marshalCollection encodes c as a JSON array, never as null.
func marshalCollection(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	return json.Marshal(c)
}
