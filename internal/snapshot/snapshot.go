// Package snapshot is the local key/value store the directory falls back to
// when the remote backend cannot be reached. Values are JSON documents.
//
// Reads never fail: a missing key, an unreadable store or a document that no
// longer decodes all yield the caller's default. Writes are best effort and
// report failures to the caller, which usually just logs them.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Well known keys.
const (
	KeyMerchants       = "merchants"
	KeyRecommendations = "reco"
	KeyUser            = "user"
	KeyTheme           = "theme"

	reviewsPrefix = "reviews_"
)

// ReviewsKey returns the key holding the reviews of merchantID.
func ReviewsKey(merchantID string) string { return reviewsPrefix + merchantID }

// ErrNotFound is returned by KV implementations for a missing key.
var ErrNotFound = errors.New("snapshot: key not found")

// KV is the raw storage behind a Store.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// Store reads and writes JSON documents through a KV.
type Store struct {
	kv  KV
	log zerolog.Logger
}

// New returns a Store over kv. A nil kv gets an in-memory map.
func New(kv KV, log zerolog.Logger) *Store {
	if kv == nil {
		kv = NewMemory()
	}
	return &Store{kv: kv, log: log}
}

// Get decodes the document stored under key into a T, or returns def when the
// key is missing or unreadable.
func Get[T any](ctx context.Context, s *Store, key string, def T) T {
	b, err := s.kv.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		}
		return def
	}
	if len(b) == 0 {
		return def
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("snapshot document is corrupt")
		return def
	}
	return v
}

// Set encodes value and stores it under key, replacing any previous document.
func Set[T any](ctx context.Context, s *Store, key string, value T) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", key, err)
	}
	if err := s.kv.Save(ctx, key, b); err != nil {
		return fmt.Errorf("snapshot: save %s: %w", key, err)
	}
	return nil
}
