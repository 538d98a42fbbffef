// Merchant HTTP handlers.
//
// Public:
//   - GET    /status                (sync status of the directory)
//   - GET    /merchants             (search, paginated, ETag support)
//   - GET    /merchants/top         (highest rated merchants)
//   - GET    /merchants/{id}        (hydrated detail)
//   - GET    /categories            (categories in first-seen order)
//
// Admin:
//   - POST   /sync
//   - POST   /merchants
//   - PATCH  /merchants/{id}
//   - DELETE /merchants/{id}
//   - PUT    /merchants/{id}/logo   (multipart upload)
//   - DELETE /merchants/{id}/logo
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/reviews"
	"github.com/tbourn/go-merchant-directory/internal/search"
	"github.com/tbourn/go-merchant-directory/internal/services"
	"github.com/tbourn/go-merchant-directory/internal/sysutil"
	"github.com/tbourn/go-merchant-directory/internal/utils"
)

//
// DTOs
//

// MerchantView is a merchant together with its rating summary.
type MerchantView struct {
	domain.Merchant
	Rating reviews.Summary `json:"rating"`
}

// RankedMerchant is an entry of the top rated list.
type RankedMerchant struct {
	MerchantView
	Score float64 `json:"score" example:"4.5"`
}

// ListMerchantsResponse contains a page of merchants and pagination metadata.
type ListMerchantsResponse struct {
	Merchants  []MerchantView `json:"merchants"`
	Pagination Pagination     `json:"pagination"`
}

// TopMerchantsResponse lists the highest rated merchants, best first.
type TopMerchantsResponse struct {
	Merchants []RankedMerchant `json:"merchants"`
}

// CategoriesResponse lists the distinct merchant categories.
type CategoriesResponse struct {
	Categories []string `json:"categories" example:"Makanan,Minuman"`
}

// StatusResponse describes how the current collection was obtained.
type StatusResponse struct {
	services.Status
	Version         uint64 `json:"version" example:"12"`
	Merchants       int    `json:"merchants" example:"42"`
	Recommendations int    `json:"recommendations" example:"3"`
	Remote          bool   `json:"remote" example:"true"`
}

func (h *Handlers) view(m domain.Merchant) MerchantView {
	return MerchantView{Merchant: m, Rating: h.dir.Rating(m.ID)}
}

func (h *Handlers) statusResponse(st *services.State) StatusResponse {
	return StatusResponse{
		Status:          st.Status,
		Version:         st.Version,
		Merchants:       len(st.Merchants),
		Recommendations: len(st.Recommendations),
		Remote:          h.dir.HasRemote(),
	}
}

// versionETag derives a weak ETag from the state version. Every committed
// change bumps the version, so an unchanged ETag means an unchanged listing.
func versionETag(kind string, version uint64) string {
	return fmt.Sprintf(`W/"%s:%d"`, kind, version)
}

// notModified sets the ETag header and reports whether the client copy is
// still current, in which case a 304 has been written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

//
// Public handlers
//

// GetStatus godoc
// @ID          getStatus
// @Summary     Directory sync status
// @Tags        Directory
// @Produce     json
// @Success     200  {object}  handlers.StatusResponse
// @Router      /status [get]
func (h *Handlers) GetStatus(c *gin.Context) {
	ok(c, http.StatusOK, h.statusResponse(h.dir.Snapshot()))
}

// ListMerchants godoc
// @ID          listMerchants
// @Summary     Search merchants
// @Description Filters by category and by a case-insensitive match on name,
// @Description category and menu item names. Supports If-None-Match.
// @Tags        Merchants
// @Produce     json
// @Param       q          query  string  false "Search text"
// @Param       category   query  string  false "Category, 'all' for any"
// @Param       sort       query  string  false "'relevance' ranks by shared words with q"  Enums(relevance)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMerchantsResponse
// @Success     304  "Not modified"
// @Router      /merchants [get]
func (h *Handlers) ListMerchants(c *gin.Context) {
	st := h.dir.Snapshot()
	if notModified(c, versionETag("merchants", st.Version)) {
		return
	}

	q := search.Query{
		Text:     sysutil.FirstNonEmpty(c.Query("q"), c.Query("search")),
		Category: c.Query("category"),
	}
	var matches []domain.Merchant
	if c.Query("sort") == "relevance" && strings.TrimSpace(q.Text) != "" {
		// Token overlap instead of substring: "kopi susu" also finds "Es Kopi".
		pool := search.Filter(st.Merchants, search.Query{Category: q.Category})
		ranked := search.NewIndex(pool, search.WithStopwords(search.DefaultStopwords...)).Rank(q.Text, 0)
		matches = make([]domain.Merchant, len(ranked))
		for i, r := range ranked {
			matches[i] = r.Merchant
		}
	} else {
		matches = search.Filter(st.Merchants, q)
	}
	page, size := utils.PageParams(c.Query("page"), c.Query("page_size"))

	items := utils.Paginate(matches, page, size)
	views := make([]MerchantView, 0, len(items))
	for _, m := range items {
		views = append(views, h.view(m))
	}
	ok(c, http.StatusOK, ListMerchantsResponse{
		Merchants:  views,
		Pagination: newPagination(page, size, len(matches)),
	})
}

// TopMerchants godoc
// @ID          topMerchants
// @Summary     Highest rated merchants
// @Tags        Merchants
// @Produce     json
// @Param       limit  query  int  false "Number of merchants"  minimum(1) default(8)
// @Success     200  {object}  handlers.TopMerchantsResponse
// @Router      /merchants/top [get]
func (h *Handlers) TopMerchants(c *gin.Context) {
	k := utils.AtoiDefault(c.Query("limit"), search.DefaultTopK)
	if k > utils.MaxPageSize {
		k = utils.MaxPageSize
	}
	score := func(m domain.Merchant) float64 {
		if avg := h.dir.Rating(m.ID).Average; avg != nil {
			return *avg
		}
		return 0
	}
	ranked := search.Top(h.dir.Snapshot().Merchants, score, k)
	out := make([]RankedMerchant, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, RankedMerchant{MerchantView: h.view(r.Merchant), Score: r.Score})
	}
	ok(c, http.StatusOK, TopMerchantsResponse{Merchants: out})
}

// ListCategories godoc
// @ID          listCategories
// @Summary     Merchant categories
// @Tags        Merchants
// @Produce     json
// @Success     200  {object}  handlers.CategoriesResponse
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	ok(c, http.StatusOK, CategoriesResponse{Categories: search.Categories(h.dir.Snapshot().Merchants)})
}

// GetMerchant godoc
// @ID          getMerchant
// @Summary     Merchant detail
// @Description Returns the merchant with its menu and menu images, fetching
// @Description them from the remote backend on first access.
// @Tags        Merchants
// @Produce     json
// @Param       id   path  string  true  "Merchant ID"
// @Success     200  {object}  handlers.MerchantView
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Router      /merchants/{id} [get]
func (h *Handlers) GetMerchant(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	m, err := h.dir.Hydrate(c.Request.Context(), id)
	if errors.Is(err, services.ErrMerchantNotFound) {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	// Any other error still comes with the summary record.
	ok(c, http.StatusOK, h.view(m))
}

//
// Admin handlers
//

// Sync godoc
// @ID          syncDirectory
// @Summary     Re-sync with the remote backend
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StatusResponse
// @Failure     409  {object}  handlers.ErrorResponse  "No remote backend configured"
// @Router      /sync [post]
func (h *Handlers) Sync(c *gin.Context) {
	if !h.dir.HasRemote() {
		failService(c, services.ErrRemoteUnavailable, http.StatusConflict, ErrCodeRemoteUnavailable)
		return
	}
	h.dir.LoadAll(c.Request.Context())
	ok(c, http.StatusOK, h.statusResponse(h.dir.Snapshot()))
}

// CreateMerchant godoc
// @ID          createMerchant
// @Summary     Create a merchant
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  domain.MerchantInput  true  "Merchant"
// @Success     201  {object}  handlers.MerchantView
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote write failed"
// @Router      /merchants [post]
func (h *Handlers) CreateMerchant(c *gin.Context) {
	var in domain.MerchantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid merchant payload")
		return
	}
	m, err := h.dir.CreateMerchant(c.Request.Context(), in)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, h.view(m))
}

// UpdateMerchant godoc
// @ID          updateMerchant
// @Summary     Update a merchant
// @Description Partial update. Omitted fields are kept; null clears logo,
// @Description phone and whatsapp.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                true  "Merchant ID"
// @Param       body  body  domain.MerchantPatch  true  "Changes"
// @Success     200  {object}  handlers.MerchantView
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote write failed"
// @Router      /merchants/{id} [patch]
func (h *Handlers) UpdateMerchant(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var patch domain.MerchantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid merchant patch")
		return
	}
	m, err := h.dir.UpdateMerchant(c.Request.Context(), id, patch)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, h.view(m))
}

// DeleteMerchant godoc
// @ID          deleteMerchant
// @Summary     Delete a merchant
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Merchant ID"
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote write failed"
// @Router      /merchants/{id} [delete]
func (h *Handlers) DeleteMerchant(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.dir.RemoveMerchant(c.Request.Context(), id); err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	noContent(c)
}

// UploadLogo godoc
// @ID          uploadLogo
// @Summary     Upload a merchant logo
// @Tags        Admin
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string  true  "Merchant ID"
// @Param       file  formData  file    true  "Logo image"
// @Success     200  {object}  handlers.MerchantView
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     503  {object}  handlers.ErrorResponse  "No object store"
// @Router      /merchants/{id}/logo [put]
func (h *Handlers) UploadLogo(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	up, closeFn, good := h.readUpload(c)
	if !good {
		return
	}
	defer closeFn()

	m, err := h.dir.UploadLogo(c.Request.Context(), id, up)
	if err != nil {
		failService(c, err, http.StatusBadGateway, ErrCodeUploadFailed)
		return
	}
	ok(c, http.StatusOK, h.view(m))
}

// RemoveLogo godoc
// @ID          removeLogo
// @Summary     Remove a merchant logo
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Merchant ID"
// @Success     200  {object}  handlers.MerchantView
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Router      /merchants/{id}/logo [delete]
func (h *Handlers) RemoveLogo(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	m, err := h.dir.RemoveLogo(c.Request.Context(), id)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, h.view(m))
}
