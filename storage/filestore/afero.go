// Package filestore keeps uploaded file contents on an afero filesystem.
package filestore

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/metalearn/core/file"
)

type store struct {
	fs afero.Fs
}

var _ file.BlobStore = (*store)(nil) // interface compliance check

// New returns a BlobStore rooted at dir on the OS filesystem.
func New(dir string) (file.BlobStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating uploads directory")
	}
	return &store{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewMem returns a BlobStore kept in memory.
func NewMem() file.BlobStore {
	return &store{fs: afero.NewMemMapFs()}
}

func cleanPath(p string) (string, error) {
	p = path.Clean("/" + p)
	if p == "/" || strings.Contains(p, "..") {
		return "", errors.Errorf("invalid blob path %q", p)
	}
	return filepath.FromSlash(p), nil
}

func (s *store) Save(p string, r io.Reader) (int64, error) {
	name, err := cleanPath(p)
	if err != nil {
		return 0, err
	}
	if err = s.fs.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return 0, errors.Wrap(err, "creating blob directory")
	}

	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, errors.Wrap(err, "creating blob")
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(name)
		return 0, errors.Wrap(err, "writing blob")
	}
	return n, nil
}

func (s *store) Open(p string) (io.ReadCloser, error) {
	name, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "opening blob")
	}
	return f, nil
}

// Remove does not fail when the blob is already gone.
func (s *store) Remove(p string) error {
	name, err := cleanPath(p)
	if err != nil {
		return err
	}
	if err = s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing blob")
	}
	return nil
}
