package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"infradesk/internal/domain"
)

// FSBlobStore keeps each blob as a file in one directory of an afero
// filesystem. Tests use afero.NewMemMapFs; production uses afero.NewOsFs.
type FSBlobStore struct {
	fs  afero.Fs
	dir string
}

// NewFSBlobStore creates a blob store rooted at dir, creating it if needed.
func NewFSBlobStore(fsys afero.Fs, dir string) (*FSBlobStore, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FSBlobStore{fs: fsys, dir: dir}, nil
}

// Dir returns the root directory.
func (s *FSBlobStore) Dir() string { return s.dir }

func (s *FSBlobStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func notFound(err error, name string) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, name)
	}
	return err
}

func (s *FSBlobStore) Read(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		return nil, notFound(err, name)
	}
	return data, nil
}

// Write replaces the blob through a temp file and rename so readers never
// observe a partial file.
func (s *FSBlobStore) Write(name string, data []byte) error {
	tmp := s.path("." + name + ".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, s.path(name)); err != nil {
		s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *FSBlobStore) Stat(name string) (domain.BlobInfo, error) {
	fi, err := s.fs.Stat(s.path(name))
	if err != nil {
		return domain.BlobInfo{}, notFound(err, name)
	}
	return domain.BlobInfo{Name: name, Size: fi.Size(), ModifiedAt: fi.ModTime().UTC()}, nil
}

func (s *FSBlobStore) List() ([]domain.BlobInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	var result []domain.BlobInfo
	for _, fi := range entries {
		if fi.IsDir() || fi.Name()[0] == '.' {
			continue
		}
		result = append(result, domain.BlobInfo{Name: fi.Name(), Size: fi.Size(), ModifiedAt: fi.ModTime().UTC()})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *FSBlobStore) Delete(name string) error {
	if _, err := s.fs.Stat(s.path(name)); err != nil {
		return notFound(err, name)
	}
	return s.fs.Remove(s.path(name))
}

var _ domain.BlobStore = (*FSBlobStore)(nil)
