// Menu HTTP handlers (admin only).
//
//   - POST   /merchants/{id}/menu              (add item)
//   - PATCH  /merchants/{id}/menu/{itemId}     (update item)
//   - DELETE /merchants/{id}/menu/{itemId}     (remove item)
//   - POST   /merchants/{id}/images            (JSON url or multipart file)
//   - DELETE /merchants/{id}/images/{imageId}  (remove image and its file)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// AddMenuImageRequest registers an image that is already hosted.
type AddMenuImageRequest struct {
	ImageURL string `json:"image_url" binding:"required" example:"https://cdn.example.com/menu-images/menu.jpg"`
}

// AddMenuItem godoc
// @ID          addMenuItem
// @Summary     Add a menu item
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                true  "Merchant ID"
// @Param       body  body  domain.MenuItemInput  true  "Menu item"
// @Success     201  {object}  domain.MenuItem
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote write failed"
// @Router      /merchants/{id}/menu [post]
func (h *Handlers) AddMenuItem(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in domain.MenuItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid menu item payload")
		return
	}
	it, err := h.dir.AddMenuItem(c.Request.Context(), id, in)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, it)
}

// UpdateMenuItem godoc
// @ID          updateMenuItem
// @Summary     Update a menu item
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path  string                true  "Merchant ID"
// @Param       itemId  path  string                true  "Menu item ID"
// @Param       body    body  domain.MenuItemPatch  true  "Changes"
// @Success     200  {object}  domain.MenuItem
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant or item not found"
// @Router      /merchants/{id}/menu/{itemId} [patch]
func (h *Handlers) UpdateMenuItem(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	itemID, valid := pathID(c, "itemId")
	if !valid {
		return
	}
	var patch domain.MenuItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid menu item patch")
		return
	}
	it, err := h.dir.UpdateMenuItem(c.Request.Context(), id, itemID, patch)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, it)
}

// DeleteMenuItem godoc
// @ID          deleteMenuItem
// @Summary     Remove a menu item
// @Tags        Admin
// @Security    BearerAuth
// @Param       id      path  string  true  "Merchant ID"
// @Param       itemId  path  string  true  "Menu item ID"
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant or item not found"
// @Router      /merchants/{id}/menu/{itemId} [delete]
func (h *Handlers) DeleteMenuItem(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	itemID, valid := pathID(c, "itemId")
	if !valid {
		return
	}
	if err := h.dir.RemoveMenuItem(c.Request.Context(), id, itemID); err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	noContent(c)
}

// AddMenuImage godoc
// @ID          addMenuImage
// @Summary     Add a menu image
// @Description Accepts either a JSON body with image_url or a multipart
// @Description upload in the "file" field.
// @Tags        Admin
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                        true   "Merchant ID"
// @Param       body  body      handlers.AddMenuImageRequest  false  "Hosted image"
// @Param       file  formData  file                          false  "Image file"
// @Success     201  {object}  domain.MenuImage
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not found"
// @Failure     503  {object}  handlers.ErrorResponse  "No object store"
// @Router      /merchants/{id}/images [post]
func (h *Handlers) AddMenuImage(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		up, closeFn, good := h.readUpload(c)
		if !good {
			return
		}
		defer closeFn()
		img, err := h.dir.UploadMenuImage(c.Request.Context(), id, up)
		if err != nil {
			failService(c, err, http.StatusBadGateway, ErrCodeUploadFailed)
			return
		}
		ok(c, http.StatusCreated, img)
		return
	}

	var req AddMenuImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ImageURL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image_url required")
		return
	}
	img, err := h.dir.AddMenuImage(c.Request.Context(), id, strings.TrimSpace(req.ImageURL))
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, img)
}

// DeleteMenuImage godoc
// @ID          deleteMenuImage
// @Summary     Remove a menu image
// @Tags        Admin
// @Security    BearerAuth
// @Param       id       path  string  true  "Merchant ID"
// @Param       imageId  path  string  true  "Menu image ID"
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant or image not found"
// @Router      /merchants/{id}/images/{imageId} [delete]
func (h *Handlers) DeleteMenuImage(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	imageID, valid := pathID(c, "imageId")
	if !valid {
		return
	}
	if err := h.dir.RemoveMenuImage(c.Request.Context(), id, imageID); err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	noContent(c)
}
