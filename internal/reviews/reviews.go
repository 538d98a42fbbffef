// Package reviews aggregates the star ratings visitors leave on merchants.
// Reviews are local-only data; this package is pure and does no I/O.
package reviews

import (
	"math"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// Summary is the display form of a merchant's reviews.
type Summary struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
}

// Average returns the arithmetic mean of the ratings, or false when there are
// no reviews.
func Average(rs []domain.Review) (float64, bool) {
	if len(rs) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range rs {
		sum += r.Rating
	}
	return float64(sum) / float64(len(rs)), true
}

// Summarize returns the count and the average rounded to one decimal.
func Summarize(rs []domain.Review) Summary {
	s := Summary{Count: len(rs)}
	if avg, ok := Average(rs); ok {
		rounded := math.Round(avg*10) / 10
		s.Average = &rounded
	}
	return s
}

// ValidRating reports whether rating is within [domain.MinRating, domain.MaxRating].
func ValidRating(rating int) bool {
	return rating >= domain.MinRating && rating <= domain.MaxRating
}

// Append returns a new slice holding rs followed by a review with id and
// rating. rs itself is never modified.
func Append(rs []domain.Review, id domain.ID, rating int) []domain.Review {
	out := make([]domain.Review, 0, len(rs)+1)
	out = append(out, rs...)
	return append(out, domain.Review{ID: id, Rating: rating})
}
