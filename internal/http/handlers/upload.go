package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/services"
)

// DefaultMaxUploadBytes caps image uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 5 << 20

// uploadField is the multipart field carrying the image.
const uploadField = "file"

// readUpload opens the multipart image of the request. On failure the error
// response has been written and good is false; otherwise the caller must run
// closeFn once the upload has been consumed.
func (h *Handlers) readUpload(c *gin.Context) (up services.Upload, closeFn func(), good bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file too large")
			return services.Upload{}, nil, false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return services.Upload{}, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return services.Upload{}, nil, false
	}
	up = services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}
	return up, func() { _ = f.Close() }, true
}
