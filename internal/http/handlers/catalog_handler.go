// README: Catalog handlers; service and technician directory lookups.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homefix/internal/modules/catalog"
)

type CatalogHandler struct {
	catalog *catalog.Directory
}

func NewCatalogHandler(dir *catalog.Directory) *CatalogHandler {
	return &CatalogHandler{catalog: dir}
}

func (h *CatalogHandler) ListServices(c *gin.Context) {
	out, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if out == nil {
		out = []catalog.Service{}
	}
	writeJSON(c, http.StatusOK, gin.H{"services": out})
}

func (h *CatalogHandler) GetService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	svc, err := h.catalog.GetService(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, svc)
}

func (h *CatalogHandler) ListTechnicians(c *gin.Context) {
	out, err := h.catalog.ListTechnicians(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if out == nil {
		out = []catalog.Technician{}
	}
	writeJSON(c, http.StatusOK, gin.H{"technicians": out})
}
