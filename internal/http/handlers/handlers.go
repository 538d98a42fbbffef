// Package handlers implements the HTTP endpoints of the merchant directory.
//
// Handlers are transport-thin: they parse and validate input, call the
// Directory and Auth services, and translate results (and service errors)
// into JSON responses with the envelope defined in response.go.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/reviews"
	"github.com/tbourn/go-merchant-directory/internal/services"
)

//
// Service contracts (context-aware)
//

// DirectoryService is the data facade consumed by the handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type DirectoryService interface {
	// Snapshot returns the current immutable state.
	Snapshot() *services.State
	// HasRemote reports whether a remote backend is configured.
	HasRemote() bool
	// LoadAll runs a full sync (or a local reload when offline).
	LoadAll(ctx context.Context) ([]domain.Merchant, services.Status)
	// Hydrate returns the merchant with its menu and images fetched.
	Hydrate(ctx context.Context, id domain.ID) (domain.Merchant, error)

	Reviews(merchantID domain.ID) []domain.Review
	Rating(merchantID domain.ID) reviews.Summary
	AddReview(ctx context.Context, merchantID domain.ID, rating int) (domain.Review, error)

	CreateMerchant(ctx context.Context, in domain.MerchantInput) (domain.Merchant, error)
	UpdateMerchant(ctx context.Context, id domain.ID, patch domain.MerchantPatch) (domain.Merchant, error)
	RemoveMerchant(ctx context.Context, id domain.ID) error
	RemoveLogo(ctx context.Context, merchantID domain.ID) (domain.Merchant, error)
	UploadLogo(ctx context.Context, merchantID domain.ID, up services.Upload) (domain.Merchant, error)

	AddMenuItem(ctx context.Context, merchantID domain.ID, in domain.MenuItemInput) (domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, merchantID, itemID domain.ID, patch domain.MenuItemPatch) (domain.MenuItem, error)
	RemoveMenuItem(ctx context.Context, merchantID, itemID domain.ID) error
	AddMenuImage(ctx context.Context, merchantID domain.ID, imageURL string) (domain.MenuImage, error)
	UploadMenuImage(ctx context.Context, merchantID domain.ID, up services.Upload) (domain.MenuImage, error)
	RemoveMenuImage(ctx context.Context, merchantID, imageID domain.ID) error

	CreateRecommendation(ctx context.Context, in domain.RecommendationInput) (domain.Recommendation, error)
	ToggleRecommendationDone(ctx context.Context, id domain.ID) (domain.Recommendation, error)
	RemoveRecommendation(ctx context.Context, id domain.ID) error
}

// AuthService manages the admin session and the theme preference.
type AuthService interface {
	Login(ctx context.Context, username, password string) (services.Session, error)
	Logout(ctx context.Context) error
	Current() (services.Session, bool)
	Theme(ctx context.Context) string
	SetTheme(ctx context.Context, theme string) error
	ToggleTheme(ctx context.Context) (string, error)
}

// IdempotencyRecorder stores the response of a public write under the
// caller's Idempotency-Key so a retry is answered from the record.
type IdempotencyRecorder func(ctx context.Context, client, scope, key, resourceID string, status int, body []byte) error

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	dir            DirectoryService
	auth           AuthService
	idem           IdempotencyRecorder
	maxUploadBytes int64
}

// New constructs a Handlers instance. idem may be nil to disable response
// recording; maxUploadBytes <= 0 selects DefaultMaxUploadBytes.
func New(dir DirectoryService, auth AuthService, idem IdempotencyRecorder, maxUploadBytes int64) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handlers{dir: dir, auth: auth, idem: idem, maxUploadBytes: maxUploadBytes}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page" example:"1"`
	PageSize   int  `json:"page_size" example:"20"`
	Total      int  `json:"total" example:"42"`
	TotalPages int  `json:"total_pages" example:"3"`
	HasNext    bool `json:"has_next" example:"true"`
}

func newPagination(page, size, total int) Pagination {
	pages := (total + size - 1) / size
	return Pagination{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// pathID reads a trimmed id path parameter.
func pathID(c *gin.Context, name string) (domain.ID, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" is required")
		return "", false
	}
	return domain.ID(id), true
}
