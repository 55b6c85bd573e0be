package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FilesystemStore keeps wallet state under a root directory, one file per key. Writes go
// through a temp file and a rename so a crash never leaves a half-written checkpoint list
// behind.
type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: root}
}

func (s *FilesystemStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FilesystemStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "read file")
	}

	return data, nil
}

func (s *FilesystemStore) Write(ctx context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "make dirs")
	}

	temp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return errors.Wrap(err, "write temp")
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return errors.Wrap(err, "sync temp")
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return errors.Wrap(err, "close temp")
	}

	if err := os.Rename(temp.Name(), path); err != nil {
		os.Remove(temp.Name())
		return errors.Wrap(err, "rename")
	}

	return nil
}

func (s *FilesystemStore) Remove(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return errors.Wrap(err, "remove file")
	}

	return nil
}

func (s *FilesystemStore) List(ctx context.Context, prefix string) ([]string, error) {
	base := s.path(prefix)

	var keys []string
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // nothing stored under the prefix yet
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(relative))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk")
	}

	return keys, nil
}
