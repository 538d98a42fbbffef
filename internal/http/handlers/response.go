// Package handlers implements the directory's HTTP endpoints on Gin.
//
// Every error leaves through fail, so clients always see the same envelope:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "merchant not found"
//	}
//
// Creates go through created, which also records the response for
// Idempotency-Key replays.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/http/middleware"
)

// ErrorResponse is the body of every non-2xx response. Code is one of the
// ErrCode constants; Message is safe to show to a visitor.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"merchant not found"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request logger; 401 responses carry a Bearer challenge.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="admin"`)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute and NoMethod in the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

// okRaw writes an already encoded JSON body.
func okRaw(c *gin.Context, status int, body []byte) {
	c.Data(status, "application/json; charset=utf-8", body)
}

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// created writes a 201 response and, when the request carried an
// Idempotency-Key, records it so a retry is answered with the same body.
// Recording is best effort.
func (h *Handlers) created(c *gin.Context, resourceID string, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "encode response")
		return
	}
	if key, has := middleware.GetIdempotencyKey(c); has && h.idem != nil {
		err := h.idem(c.Request.Context(), middleware.IdempotencyClient(c), middleware.IdempotencyScope(c),
			key, resourceID, http.StatusCreated, b)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("resource_id", resourceID).Msg("idempotency record not saved")
		}
	}
	okRaw(c, http.StatusCreated, b)
}
