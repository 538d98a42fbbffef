// Recommendation HTTP handlers.
//
// Public:
//   - POST   /recommendations             (Idempotency-Key aware)
//
// Admin:
//   - GET    /recommendations             (ETag support)
//   - PATCH  /recommendations/{id}/done   (toggle)
//   - DELETE /recommendations/{id}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// RecommendationsResponse lists visitor recommendations, oldest first.
type RecommendationsResponse struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// PostRecommendation godoc
// @ID          postRecommendation
// @Summary     Recommend a merchant
// @Description Text is sanitized before it is stored. Supports idempotency
// @Description via the Idempotency-Key header.
// @Tags        Recommendations
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                      false  "Idempotency key for safe retries"
// @Param       body             body    domain.RecommendationInput  true   "Recommendation"
// @Success     201  {object}  domain.Recommendation
// @Failure     422  {object}  handlers.ErrorResponse  "Empty message"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote write failed"
// @Router      /recommendations [post]
func (h *Handlers) PostRecommendation(c *gin.Context) {
	var in domain.RecommendationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid recommendation payload")
		return
	}
	r, err := h.dir.CreateRecommendation(c.Request.Context(), in)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	h.created(c, r.ID.String(), r)
}

// ListRecommendations godoc
// @ID          listRecommendations
// @Summary     List recommendations
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.RecommendationsResponse
// @Success     304  "Not modified"
// @Router      /recommendations [get]
func (h *Handlers) ListRecommendations(c *gin.Context) {
	st := h.dir.Snapshot()
	if notModified(c, versionETag("recommendations", st.Version)) {
		return
	}
	ok(c, http.StatusOK, RecommendationsResponse{Recommendations: st.Recommendations})
}

// ToggleRecommendation godoc
// @ID          toggleRecommendation
// @Summary     Flip the done flag of a recommendation
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Recommendation ID"
// @Success     200  {object}  domain.Recommendation
// @Failure     404  {object}  handlers.ErrorResponse  "Recommendation not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote write failed"
// @Router      /recommendations/{id}/done [patch]
func (h *Handlers) ToggleRecommendation(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	r, err := h.dir.ToggleRecommendationDone(c.Request.Context(), id)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// DeleteRecommendation godoc
// @ID          deleteRecommendation
// @Summary     Delete a recommendation
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Recommendation ID"
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "Recommendation not found"
// @Router      /recommendations/{id} [delete]
func (h *Handlers) DeleteRecommendation(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.dir.RemoveRecommendation(c.Request.Context(), id); err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	noContent(c)
}
