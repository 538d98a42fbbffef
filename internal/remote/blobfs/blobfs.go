// Package blobfs stores uploaded images as files in a local directory and
// serves them under a public base URL. It backs the object store when the
// remote backend is a plain SQL database.
package blobfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tbourn/go-merchant-directory/internal/remote"
)

// ErrInvalidPath is returned for object paths that would escape the root.
var ErrInvalidPath = errors.New("blobfs: invalid object path")

// Store implements remote.Blobs on a directory.
type Store struct {
	root    string
	baseURL string
}

var _ remote.Blobs = (*Store)(nil)

// New creates root if needed. baseURL is the address the directory is served
// from, e.g. "http://localhost:8080/media".
func New(root, baseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobfs: create root: %w", err)
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory holding the objects.
func (s *Store) Root() string { return s.root }

// Put writes r to path. Existing objects are not overwritten.
func (s *Store) Put(_ context.Context, p string, r io.Reader, _ string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("blobfs: %s already exists: %w", p, err)
		}
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return err
	}
	return f.Close()
}

// PublicURL returns the address path is served from.
func (s *Store) PublicURL(p string) string {
	clean := strings.TrimLeft(path.Clean("/"+p), "/")
	parts := strings.Split(clean, "/")
	for i, seg := range parts {
		parts[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Delete removes the objects at paths. Missing objects are ignored.
func (s *Store) Delete(_ context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		full, err := s.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
