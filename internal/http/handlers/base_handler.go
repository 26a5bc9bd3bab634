// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"homefix/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps the shared error taxonomy onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrInvalidTransition), errors.Is(err, types.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// bindJSON decodes the body into v. An empty body leaves v untouched.
func bindJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing "+name)
		return "", false
	}
	return types.ID(id), true
}

func trimID(v string) types.ID {
	return types.ID(strings.TrimSpace(v))
}

func optionalID(v string) *types.ID {
	return types.IDPtr(trimID(v))
}
