// Package remote describes the backend the directory synchronizes with: a
// relational store reachable through paged list, get by id, insert, update and
// delete, plus an object store for uploaded images. Concrete backends live in
// the rest (PostgREST + storage over HTTP), sqlstore (GORM) and blobfs
// (filesystem objects) subpackages.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("remote: not found")

// StatusError is a non-2xx answer from an HTTP backend.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// Backend is the relational half of the remote capability set. Lists are
// ordered by creation time ascending. Ranges are inclusive row offsets.
type Backend interface {
	ListMerchants(ctx context.Context, from, to int) ([]MerchantRow, error)
	GetMerchant(ctx context.Context, id domain.ID) (MerchantRow, error)
	InsertMerchant(ctx context.Context, in MerchantInsert) (MerchantRow, error)
	UpdateMerchant(ctx context.Context, id domain.ID, u MerchantUpdate) error
	DeleteMerchant(ctx context.Context, id domain.ID) error

	InsertMenuItem(ctx context.Context, in MenuItemInsert) (MenuItemRow, error)
	UpdateMenuItem(ctx context.Context, id domain.ID, u MenuItemUpdate) error
	DeleteMenuItem(ctx context.Context, id domain.ID) error

	InsertMenuImage(ctx context.Context, in MenuImageInsert) (MenuImageRow, error)
	DeleteMenuImage(ctx context.Context, id domain.ID) error

	ListRecommendations(ctx context.Context, limit int) ([]RecommendationRow, error)
	InsertRecommendation(ctx context.Context, in RecommendationInsert) (RecommendationRow, error)
	SetRecommendationDone(ctx context.Context, id domain.ID, done bool) error
	DeleteRecommendation(ctx context.Context, id domain.ID) error
}

// Blobs is the object store half of the remote capability set. Paths are
// relative to the configured bucket.
type Blobs interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	PublicURL(path string) string
	Delete(ctx context.Context, paths ...string) error
}

// ObjectPath derives the storage path of an uploaded object from its public
// URL: the last non-empty path segment. It returns "" when there is none.
func ObjectPath(publicURL string) string {
	p := publicURL
	if u, err := url.Parse(publicURL); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return p
}
