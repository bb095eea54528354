// internal/handlers/health.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/i18n"
	"github.com/javajoker/nearby-market/internal/utils"
)

const Version = "1.0.0"

type HealthHandler struct {
	index *geo.Index
}

func NewHealthHandler(index *geo.Index) *HealthHandler {
	return &HealthHandler{index: index}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"message":        i18n.T(lang, i18n.KeyServiceHealthy),
		"version":        Version,
		"indexedVendors": h.index.Len(),
	})
}
