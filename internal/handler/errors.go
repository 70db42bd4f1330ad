package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/apperr"
)

// respondError writes err as {"success": false, "message": ..., "errors": ...}
// with the status of its kind.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
	}

	body := gin.H{"success": false, "message": apperr.Message(err)}
	if fields := apperr.FieldErrors(err); len(fields) > 0 {
		body["errors"] = fields
	}
	c.JSON(status, body)
}
