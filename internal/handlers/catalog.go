package handlers

import (
	"net/http"

	"github.com/couplinglab/coupling-monitor/internal/services"
	"github.com/gin-gonic/gin"
)

// ActiveServices returns services currently known to the trace backend.
func ActiveServices(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Catalog.Active(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "services": list})
	}
}

// RecordedServices returns services present in any persisted graph
// version.
func RecordedServices(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Catalog.Recorded(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "services": list})
	}
}
