package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/observability"
)

// Hydrate returns the merchant with id, fetching its full detail from the
// remote backend the first time it is asked for after a sync.
//
// The fetch is skipped when the record is already hydrated or no backend is
// configured. Unknown ids yield ErrMerchantNotFound. When the fetch fails the
// summary record is returned unchanged (and a later call retries). Concurrent
// calls for the same id share one fetch.
func (d *Directory) Hydrate(ctx context.Context, id domain.ID) (domain.Merchant, error) {
	tr := observability.Tracer("services/Directory")
	ctx, span := tr.Start(ctx, "Hydrate",
		trace.WithAttributes(attribute.String("merchant.id", id.String())),
	)
	defer span.End()

	m, ok := d.Merchant(id)
	if !ok {
		return domain.Merchant{}, ErrMerchantNotFound
	}
	if m.DetailFetched {
		hydrations.WithLabelValues("cached").Inc()
		return m, nil
	}
	if d.backend == nil {
		hydrations.WithLabelValues("offline").Inc()
		return m, nil
	}

	ch := d.hydrations.DoChan(id.String(), func() (any, error) {
		return d.fetchDetail(ctx, id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return m, nil
		}
		span.SetAttributes(attribute.Bool("shared", res.Shared))
		return res.Val.(domain.Merchant), nil
	case <-ctx.Done():
		return m, ctx.Err()
	}
}

// fetchDetail performs the single-record fetch. It runs detached from the
// caller's cancellation because other callers may be waiting on it. A full
// sync committed while the fetch was in flight wins: the detail is returned
// to the callers but not stored, so the record stays unhydrated.
func (d *Directory) fetchDetail(ctx context.Context, id domain.ID) (domain.Merchant, error) {
	gen := d.Snapshot().generation
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	row, err := d.backend.GetMerchant(fctx, id)
	if err != nil {
		hydrations.WithLabelValues("failed").Inc()
		d.log.Warn().Err(err).Str("merchant_id", id.String()).Msg("hydrate failed, serving summary")
		return domain.Merchant{}, err
	}
	full := row.ToMerchant(true)
	// The row is addressed by id; keep the key we asked for.
	full.ID = id

	stale := false
	d.commit(fctx, true, func(next *State) {
		if next.generation != gen {
			stale = true
			return
		}
		next.replaceMerchant(full)
	})
	if stale {
		hydrations.WithLabelValues("stale").Inc()
		d.log.Debug().Str("merchant_id", id.String()).Msg("sync replaced collection during hydrate, detail not stored")
		return full, nil
	}
	hydrations.WithLabelValues("fetched").Inc()
	return full, nil
}
