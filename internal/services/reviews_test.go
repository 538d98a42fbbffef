package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

func TestAddReview(t *testing.T) {
	d, store := newLocalDirectory(t, []domain.Merchant{{ID: "1", Name: "A"}})
	ctx := context.Background()

	for _, r := range []int{5, 4, 4} {
		if _, err := d.AddReview(ctx, "1", r); err != nil {
			t.Fatalf("AddReview(%d): %v", r, err)
		}
	}
	sum := d.Rating("1")
	if sum.Count != 3 || sum.Average == nil || *sum.Average != 4.3 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	persisted := snapshot.Get(ctx, store, snapshot.ReviewsKey("1"), []domain.Review{})
	if len(persisted) != 3 || persisted[0].Rating != 5 {
		t.Fatalf("reviews not persisted: %+v", persisted)
	}
	ids := map[domain.ID]bool{}
	for _, r := range persisted {
		if ids[r.ID] {
			t.Fatalf("duplicate review id %s", r.ID)
		}
		ids[r.ID] = true
	}
}

func TestAddReview_Validation(t *testing.T) {
	d, store := newLocalDirectory(t, []domain.Merchant{{ID: "1", Name: "A"}})
	ctx := context.Background()

	tests := []struct {
		name   string
		id     domain.ID
		rating int
		want   error
	}{
		{"zero", "1", 0, ErrInvalidRating},
		{"too high", "1", 6, ErrInvalidRating},
		{"unknown merchant", "2", 3, ErrMerchantNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.AddReview(ctx, tc.id, tc.rating); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if got := snapshot.Get(ctx, store, snapshot.ReviewsKey("1"), []domain.Review(nil)); got != nil {
		t.Fatalf("invalid review persisted: %+v", got)
	}
}

func TestAddReview_NeverReachesRemote(t *testing.T) {
	d, b, _ := syncedRemote(t)
	if _, err := d.AddReview(context.Background(), "m1", 5); err != nil {
		t.Fatal(err)
	}
	if b.callCount() != 0 {
		t.Fatalf("review written remotely: %v", b.calls)
	}
}

func TestRating_NoReviews(t *testing.T) {
	d, _ := newLocalDirectory(t, []domain.Merchant{{ID: "1", Name: "A"}})
	if sum := d.Rating("1"); sum.Count != 0 || sum.Average != nil {
		t.Fatalf("unexpected summary %+v", sum)
	}
}
