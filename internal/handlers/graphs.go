package handlers

import (
	"net/http"
	"strconv"

	"github.com/couplinglab/coupling-monitor/internal/graph"
	"github.com/couplinglab/coupling-monitor/internal/services"
	"github.com/gin-gonic/gin"
)

// BuildRequest parameterizes a graph build. Timestamps are epoch
// microseconds; zeros default to the last 24 hours. An absent
// weight_type falls back to the configured scheme.
type BuildRequest struct {
	Start      int64  `json:"start" form:"start"`
	End        int64  `json:"end" form:"end"`
	WeightType string `json:"weight_type" form:"weight_type"`
}

// BuildGraph runs the full pipeline for a window and persists the
// result as a new version.
func BuildGraph(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BuildRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		scheme := svc.Graph.DefaultScheme()
		if req.WeightType != "" {
			parsed, err := graph.ParseWeightScheme(req.WeightType)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
				return
			}
			scheme = parsed
		}

		start, end := defaultWindow(req.Start, req.End)
		version, err := svc.Graph.BuildAndVersion(c.Request.Context(), start, end, scheme)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Dependency graph built and versioned successfully.",
			"version": version,
		})
	}
}

// GetWeightedGraph derives the weighted graph for a window in memory
// and returns it without persisting.
func GetWeightedGraph(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BuildRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		scheme := svc.Graph.DefaultScheme()
		if req.WeightType != "" {
			parsed, err := graph.ParseWeightScheme(req.WeightType)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
				return
			}
			scheme = parsed
		}

		start, end := defaultWindow(req.Start, req.End)
		g, err := svc.Graph.BuildWindow(c.Request.Context(), start, end, scheme)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":          "success",
			"weight_type":     string(scheme),
			"coupling_factor": g.CouplingFactor(),
			"data":            g,
		})
	}
}

// FetchGraph returns the latest aggregated graph view.
func FetchGraph(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, err := svc.Graph.FetchGraph(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "graph": g})
	}
}

// ListVersions returns all persisted graph versions, ascending.
func ListVersions(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		versions, err := svc.Graph.ListVersions(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "versions": versions})
	}
}

// RetrieveVersion returns the snapshot stored under a version id. An
// unknown version yields empty node and edge lists.
func RetrieveVersion(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		version, err := strconv.ParseInt(c.Param("version"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "version must be an integer"})
			return
		}

		snap, err := svc.Graph.RetrieveVersion(c.Request.Context(), version)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "version": version, "graph": snap})
	}
}
