package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/observability"
	"github.com/tbourn/go-merchant-directory/internal/remote"
	"github.com/tbourn/go-merchant-directory/internal/sanitize"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// SyncEngine pages through the remote merchant collection.
type SyncEngine struct {
	Backend     remote.Backend
	PageSize    int
	PageTimeout time.Duration
}

// FetchAll requests pages [k*size, k*size+size-1] for k = 0, 1, ... until a
// page comes back short or empty, and returns every row in order. Any page
// failure aborts the whole fetch; no partial result is returned. So does an id
// seen on an earlier page, which happens when the backend reorders rows
// between page requests.
func (e *SyncEngine) FetchAll(ctx context.Context) ([]remote.MerchantRow, error) {
	size := e.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	tr := observability.Tracer("services/SyncEngine")

	var all []remote.MerchantRow
	seen := make(map[domain.ID]struct{})
	for page := 0; ; page++ {
		from := page * size
		to := from + size - 1

		rows, err := e.fetchPage(ctx, tr, page, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w: %w", page, ErrRemoteRequestFailed, err)
		}
		syncPages.Inc()
		for _, r := range rows {
			if _, dup := seen[r.ID]; dup {
				return nil, fmt.Errorf("fetch page %d: %w: %w: id %s", page, ErrRemoteRequestFailed, ErrDuplicateRow, r.ID)
			}
			seen[r.ID] = struct{}{}
		}
		all = append(all, rows...)
		if len(rows) < size {
			return all, nil
		}
	}
}

func (e *SyncEngine) fetchPage(ctx context.Context, tr trace.Tracer, page, from, to int) ([]remote.MerchantRow, error) {
	ctx, span := tr.Start(ctx, "FetchPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("range.from", from),
			attribute.Int("range.to", to),
		),
	)
	defer span.End()

	if e.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.PageTimeout)
		defer cancel()
	}
	rows, err := e.Backend.ListMerchants(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list merchants")
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

// LoadAll runs a full sync and returns the resulting collection and status.
// Concurrent callers share one sync.
//
// Without a remote backend, or when any page fails, the collection is taken
// from the local snapshot instead and the status says offline; a failed sync
// also keeps its error message in Status.Error. LoadAll never fails.
func (d *Directory) LoadAll(ctx context.Context) ([]domain.Merchant, Status) {
	_, _, _ = d.syncs.Do("sync", func() (any, error) {
		d.loadAll(ctx)
		return nil, nil
	})
	st := d.Snapshot()
	return st.Merchants, st.Status
}

func (d *Directory) loadAll(ctx context.Context) {
	tr := observability.Tracer("services/Directory")
	ctx, span := tr.Start(ctx, "LoadAll",
		trace.WithAttributes(attribute.String("mode", d.mode.String())),
	)
	defer span.End()

	start := time.Now()
	defer func() { syncDuration.Observe(time.Since(start).Seconds()) }()

	d.commit(ctx, false, func(next *State) { next.Status.Loading = true })

	if d.engine == nil {
		d.fallbackToLocal(ctx, "")
		syncTotal.WithLabelValues("offline").Inc()
		return
	}

	rows, err := d.engine.FetchAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		d.log.Warn().Err(err).Msg("sync failed, using local snapshot")
		d.fallbackToLocal(ctx, syncErrorMessage(err))
		syncTotal.WithLabelValues("fallback").Inc()
		return
	}

	merchants := make([]domain.Merchant, len(rows))
	for i, row := range rows {
		merchants[i] = row.ToMerchant(false)
	}
	cache := d.loadReviews(ctx, merchants)
	now := d.now()

	d.commit(ctx, true, func(next *State) {
		next.generation++
		next.Merchants = merchants
		next.Reviews = cache
		next.Status.Online = true
		next.Status.Loading = false
		next.Status.Error = ""
		next.Status.LastSyncedAt = &now
	})
	span.SetAttributes(attribute.Int("merchants", len(merchants)))
	syncTotal.WithLabelValues("online").Inc()
	d.log.Info().Int("merchants", len(merchants)).Dur("took", time.Since(start)).Msg("sync complete")

	d.syncRecommendations(ctx)
}

// fallbackToLocal replaces the state with the local snapshot.
func (d *Directory) fallbackToLocal(ctx context.Context, errMsg string) {
	merchants := snapshot.Get(ctx, d.store, snapshot.KeyMerchants, []domain.Merchant{})
	if merchants == nil {
		merchants = []domain.Merchant{}
	}
	recos := sanitize.Recommendations(
		snapshot.Get(ctx, d.store, snapshot.KeyRecommendations, []domain.Recommendation{}),
	)
	cache := d.loadReviews(ctx, merchants)

	d.commit(ctx, false, func(next *State) {
		next.generation++
		next.Merchants = merchants
		next.Recommendations = recos
		next.Reviews = cache
		next.Status.Online = false
		next.Status.Loading = false
		next.Status.Error = errMsg
	})
}

// syncRecommendations refreshes the recommendation list. A failure keeps the
// current list.
func (d *Directory) syncRecommendations(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	rows, err := d.backend.ListRecommendations(rctx, d.recoLimit)
	if err != nil {
		d.log.Warn().Err(err).Msg("fetch recommendations failed")
		return
	}
	recos := make([]domain.Recommendation, len(rows))
	for i, r := range rows {
		recos[i] = sanitize.Recommendation(r.ToRecommendation())
	}
	d.commit(ctx, true, func(next *State) { next.Recommendations = recos })
}

// syncErrorMessage is the message shown in Status.Error: the backend's own
// message when there is one.
func syncErrorMessage(err error) string {
	var se *remote.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "remote backend timed out"
	}
	return err.Error()
}
