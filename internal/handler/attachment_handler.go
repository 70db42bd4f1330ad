package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"taskboard/internal/apperr"
	"taskboard/internal/storage"

	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	store storage.Store
}

func NewAttachmentHandler(store storage.Store) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// Download streams a stored attachment by key.
func (h *AttachmentHandler) Download(c *gin.Context) {
	key := c.Param("key")
	rc, obj, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			respondError(c, apperr.NotFound("Attachment not found"))
			return
		}
		respondError(c, apperr.Internal("Failed to read attachment", err))
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%s", strconv.Quote(key)),
		"Cache-Control":       "public, max-age=86400",
	})
}
