// Package handlers provides HTTP handlers for the coupling monitor API.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/services"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadyCheck reports whether the backing stores are reachable.
func ReadyCheck(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// respondError maps the error taxonomy to HTTP status codes. Every
// failure crossing the API boundary carries a machine-distinguishable
// status and a human-readable message.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coupling.ErrInvalidTimeRange), errors.Is(err, coupling.ErrInvalidMetric):
		status = http.StatusBadRequest
	case errors.Is(err, coupling.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, coupling.ErrStorage):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"status": "error", "message": err.Error()})
}

// defaultWindow fills a zero start/end with the last 24 hours, epoch
// microseconds.
func defaultWindow(startUs, endUs int64) (int64, int64) {
	if endUs == 0 {
		endUs = time.Now().UnixMicro()
	}
	if startUs == 0 {
		startUs = endUs - 24*time.Hour.Microseconds()
	}
	return startUs, endUs
}
