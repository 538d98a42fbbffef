package services

import (
	"time"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// Status describes how the current state was obtained.
type Status struct {
	// Online is true after a successful full sync with the remote backend.
	Online bool `json:"online"`
	// Loading is true while a full sync is running.
	Loading bool `json:"loading"`
	// Error holds the message of the last failed sync, "" otherwise.
	Error string `json:"error,omitempty"`
	// LastSyncedAt is the completion time of the last successful sync or
	// remote merchant write.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	// Mode is "remote" or "local".
	Mode string `json:"mode"`
}

// State is an immutable view of everything the Directory holds. A new State is
// produced for every change; readers may keep a *State for as long as they
// like but must not modify it.
type State struct {
	Merchants       []domain.Merchant
	Recommendations []domain.Recommendation
	Reviews         map[domain.ID][]domain.Review
	Status          Status
	// Version increases by one with every committed change.
	Version uint64
	// generation increases each time a full sync or snapshot fallback
	// replaces the collection.
	generation uint64
}

// Merchant returns the merchant with id.
func (s *State) Merchant(id domain.ID) (domain.Merchant, bool) {
	if i := s.merchantIndex(id); i >= 0 {
		return s.Merchants[i], true
	}
	return domain.Merchant{}, false
}

// Recommendation returns the recommendation with id.
func (s *State) Recommendation(id domain.ID) (domain.Recommendation, bool) {
	if i := s.recommendationIndex(id); i >= 0 {
		return s.Recommendations[i], true
	}
	return domain.Recommendation{}, false
}

func (s *State) merchantIndex(id domain.ID) int {
	for i := range s.Merchants {
		if s.Merchants[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) recommendationIndex(id domain.ID) int {
	for i := range s.Recommendations {
		if s.Recommendations[i].ID == id {
			return i
		}
	}
	return -1
}

// clone returns a shallow copy of s whose slices and map can be replaced or
// appended to without touching s. Elements that a change modifies must be
// cloned by the caller.
func (s *State) clone() *State {
	next := *s
	next.Merchants = append(make([]domain.Merchant, 0, len(s.Merchants)+1), s.Merchants...)
	next.Recommendations = append(make([]domain.Recommendation, 0, len(s.Recommendations)+1), s.Recommendations...)
	next.Reviews = make(map[domain.ID][]domain.Review, len(s.Reviews))
	for k, v := range s.Reviews {
		next.Reviews[k] = v
	}
	return &next
}

// replaceMerchant swaps in m at the position of the merchant with the same id.
// It reports false when that merchant no longer exists.
func (s *State) replaceMerchant(m domain.Merchant) bool {
	i := s.merchantIndex(m.ID)
	if i < 0 {
		return false
	}
	s.Merchants[i] = m
	return true
}

func (s *State) removeMerchant(id domain.ID) {
	if i := s.merchantIndex(id); i >= 0 {
		s.Merchants = append(s.Merchants[:i], s.Merchants[i+1:]...)
	}
}
