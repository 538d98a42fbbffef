// Review HTTP handlers.
//
//   - GET  /merchants/{id}/reviews   (reviews and rating summary)
//   - POST /merchants/{id}/reviews   (leave a star rating; Idempotency-Key aware)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/reviews"
	"github.com/tbourn/go-merchant-directory/internal/services"
)

// PostReviewRequest is the JSON payload for a new review.
type PostReviewRequest struct {
	Rating int `json:"rating" binding:"required" example:"5"`
}

// ReviewsResponse lists a merchant's reviews with the rating summary.
type ReviewsResponse struct {
	Reviews []domain.Review `json:"reviews"`
	Rating  reviews.Summary `json:"rating"`
}

// PostReviewResponse is returned for a new review.
type PostReviewResponse struct {
	Review domain.Review   `json:"review"`
	Rating reviews.Summary `json:"rating"`
}

// ListReviews godoc
// @ID          listReviews
// @Summary     Reviews of a merchant
// @Tags        Reviews
// @Produce     json
// @Param       id   path  string  true  "Merchant ID"
// @Success     200  {object}  handlers.ReviewsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Router      /merchants/{id}/reviews [get]
func (h *Handlers) ListReviews(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if _, found := h.dir.Snapshot().Merchant(id); !found {
		failService(c, services.ErrMerchantNotFound, http.StatusNotFound, ErrCodeNotFound)
		return
	}
	rs := h.dir.Reviews(id)
	if rs == nil {
		rs = []domain.Review{}
	}
	ok(c, http.StatusOK, ReviewsResponse{Reviews: rs, Rating: h.dir.Rating(id)})
}

// PostReview godoc
// @ID          postReview
// @Summary     Leave a review
// @Description Reviews are kept locally and never sent to the remote backend.
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        Reviews
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                      false  "Idempotency key for safe retries"
// @Param       id               path    string                      true   "Merchant ID"
// @Param       body             body    handlers.PostReviewRequest  true   "Rating 1..5"
// @Success     201  {object}  handlers.PostReviewResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Rating out of range"
// @Router      /merchants/{id}/reviews [post]
func (h *Handlers) PostReview(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req PostReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rating required")
		return
	}
	rv, err := h.dir.AddReview(c.Request.Context(), id, req.Rating)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	h.created(c, rv.ID.String(), PostReviewResponse{Review: rv, Rating: h.dir.Rating(id)})
}
