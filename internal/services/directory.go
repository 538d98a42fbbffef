package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/remote"
	"github.com/tbourn/go-merchant-directory/internal/reviews"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// WriteMode selects how the Directory applies mutations.
type WriteMode int

const (
	// RemoteFirst writes to the remote backend and mirrors the change locally
	// only after the backend confirmed it.
	RemoteFirst WriteMode = iota
	// LocalOnly applies changes to memory and the local snapshot directly,
	// with locally generated ids.
	LocalOnly
)

func (m WriteMode) String() string {
	if m == RemoteFirst {
		return "remote"
	}
	return "local"
}

// Defaults used when DirectoryOptions leaves a field zero.
const (
	DefaultPageSize            = 1000
	DefaultRecommendationLimit = 1000
	DefaultRemoteTimeout       = 15 * time.Second
)

// DirectoryOptions configures a Directory.
type DirectoryOptions struct {
	// Backend is nil when no remote is configured; the Directory then runs in
	// LocalOnly mode.
	Backend remote.Backend
	// Blobs is optional and only needed for uploads and asset deletion.
	Blobs remote.Blobs
	Store *snapshot.Store
	// Mode overrides the write strategy. It is forced to LocalOnly without a
	// Backend.
	Mode *WriteMode

	PageSize            int
	RecommendationLimit int
	// Timeout bounds every single remote call (one page, one write).
	Timeout time.Duration

	Logger zerolog.Logger
	Clock  func() time.Time
}

// Directory is the data service: the single owner of the in-memory merchant
// collection, recommendation list and review cache.
type Directory struct {
	backend remote.Backend
	blobs   remote.Blobs
	store   *snapshot.Store
	mode    WriteMode
	engine  *SyncEngine

	recoLimit int
	timeout   time.Duration
	ids       *domain.IDGenerator
	now       func() time.Time
	log       zerolog.Logger

	mu    sync.Mutex // serializes writers
	state atomic.Pointer[State]

	// toggleMu is held from reading a recommendation's done flag until the
	// flipped value is committed.
	toggleMu sync.Mutex

	syncs      singleflight.Group
	hydrations singleflight.Group
}

// NewDirectory builds a Directory with an empty state. Call LoadAll to
// populate it.
func NewDirectory(opts DirectoryOptions) *Directory {
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	recoLimit := opts.RecommendationLimit
	if recoLimit <= 0 {
		recoLimit = DefaultRecommendationLimit
	}
	store := opts.Store
	if store == nil {
		store = snapshot.New(nil, opts.Logger)
	}

	mode := LocalOnly
	if opts.Backend != nil {
		mode = RemoteFirst
		if opts.Mode != nil {
			mode = *opts.Mode
		}
	}

	d := &Directory{
		backend:   opts.Backend,
		blobs:     opts.Blobs,
		store:     store,
		mode:      mode,
		recoLimit: recoLimit,
		timeout:   timeout,
		ids:       domain.NewIDGenerator(clock),
		now:       clock,
		log:       opts.Logger.With().Str("component", "directory").Logger(),
	}
	if opts.Backend != nil {
		d.engine = &SyncEngine{Backend: opts.Backend, PageSize: opts.PageSize, PageTimeout: timeout}
	}
	d.state.Store(&State{
		Merchants:       []domain.Merchant{},
		Recommendations: []domain.Recommendation{},
		Reviews:         map[domain.ID][]domain.Review{},
		Status:          Status{Loading: true, Mode: mode.String()},
	})
	return d
}

// Mode returns the write strategy in use.
func (d *Directory) Mode() WriteMode { return d.mode }

// HasRemote reports whether a remote backend is configured.
func (d *Directory) HasRemote() bool { return d.backend != nil }

// HasBlobs reports whether uploads are possible.
func (d *Directory) HasBlobs() bool { return d.blobs != nil }

// Snapshot returns the current immutable state.
func (d *Directory) Snapshot() *State { return d.state.Load() }

// Merchants returns the current collection. The slice must not be modified.
func (d *Directory) Merchants() []domain.Merchant { return d.Snapshot().Merchants }

// Merchant returns the merchant with id as currently held, without hydrating.
func (d *Directory) Merchant(id domain.ID) (domain.Merchant, bool) {
	return d.Snapshot().Merchant(id)
}

// Recommendations returns the current recommendation list.
func (d *Directory) Recommendations() []domain.Recommendation {
	return d.Snapshot().Recommendations
}

// Status returns the current sync status.
func (d *Directory) Status() Status { return d.Snapshot().Status }

// Reviews returns the locally held reviews of merchantID.
func (d *Directory) Reviews(merchantID domain.ID) []domain.Review {
	return d.Snapshot().Reviews[merchantID]
}

// Rating returns the review summary of merchantID.
func (d *Directory) Rating(merchantID domain.ID) reviews.Summary {
	return reviews.Summarize(d.Reviews(merchantID))
}

// commit builds the next state from the current one under the writer lock.
// fn receives a private clone it may modify freely. With persist set, the new
// state is written to the local snapshot before the lock is released so that
// snapshot writes land in commit order.
func (d *Directory) commit(ctx context.Context, persist bool, fn func(next *State)) *State {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.state.Load().clone()
	fn(next)
	next.Version++
	d.state.Store(next)
	merchantsGauge.Set(float64(len(next.Merchants)))
	if persist {
		d.persist(ctx, next)
	}
	return next
}

// persist mirrors merchants and recommendations of st into the local
// snapshot. Failures are logged; the in-memory state stays authoritative.
func (d *Directory) persist(ctx context.Context, st *State) {
	ctx = context.WithoutCancel(ctx)
	if err := snapshot.Set(ctx, d.store, snapshot.KeyMerchants, st.Merchants); err != nil {
		d.log.Warn().Err(err).Msg("persist merchants")
	}
	if err := snapshot.Set(ctx, d.store, snapshot.KeyRecommendations, st.Recommendations); err != nil {
		d.log.Warn().Err(err).Msg("persist recommendations")
	}
}

// loadReviews reads the locally held reviews of every merchant in ms.
func (d *Directory) loadReviews(ctx context.Context, ms []domain.Merchant) map[domain.ID][]domain.Review {
	cache := make(map[domain.ID][]domain.Review, len(ms))
	for _, m := range ms {
		cache[m.ID] = snapshot.Get(ctx, d.store, snapshot.ReviewsKey(m.ID.String()), []domain.Review{})
	}
	return cache
}
