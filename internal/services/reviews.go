package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/observability"
	"github.com/tbourn/go-merchant-directory/internal/reviews"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// AddReview appends a rating to the merchant's local review list and persists
// the list. Reviews never reach the remote backend and prior reviews are never
// rewritten.
func (d *Directory) AddReview(ctx context.Context, merchantID domain.ID, rating int) (domain.Review, error) {
	tr := observability.Tracer("services/Directory")
	ctx, span := tr.Start(ctx, "AddReview",
		trace.WithAttributes(
			attribute.String("merchant.id", merchantID.String()),
			attribute.Int("rating", rating),
		),
	)
	defer span.End()

	if !reviews.ValidRating(rating) {
		return domain.Review{}, ErrInvalidRating
	}
	if _, ok := d.Merchant(merchantID); !ok {
		return domain.Review{}, ErrMerchantNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := snapshot.ReviewsKey(merchantID.String())
	cur := d.state.Load()
	prior, ok := cur.Reviews[merchantID]
	if !ok {
		prior = snapshot.Get(ctx, d.store, key, []domain.Review{})
	}
	id := d.ids.Next()
	list := reviews.Append(prior, id, rating)
	if err := snapshot.Set(ctx, d.store, key, list); err != nil {
		return domain.Review{}, err
	}

	next := cur.clone()
	next.Reviews[merchantID] = list
	next.Version++
	d.state.Store(next)
	return domain.Review{ID: id, Rating: rating}, nil
}
