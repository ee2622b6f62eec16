package handlers

import (
	"net/http"

	"github.com/couplinglab/coupling-monitor/internal/changepoint"
	"github.com/couplinglab/coupling-monitor/internal/series"
	"github.com/couplinglab/coupling-monitor/internal/services"
	"github.com/gin-gonic/gin"
)

// ChangePointQuery holds change-point analysis parameters. Metric is
// one of absolute_importance, absolute_dependence (nodes) or
// frequency, latency, co_execution (edges). Node, or source plus
// target, narrows the analysis to a single entity; otherwise the
// aggregate series is analyzed.
type ChangePointQuery struct {
	Start     int64   `form:"start"`
	End       int64   `form:"end"`
	Metric    string  `form:"metric"`
	Node      string  `form:"node"`
	Source    string  `form:"source"`
	Target    string  `form:"target"`
	Algorithm string  `form:"algorithm"`
	Model     string  `form:"model"`
	Penalty   float64 `form:"penalty"`
	Threshold float64 `form:"threshold"`
}

func (q ChangePointQuery) options(base changepoint.Options) (changepoint.Options, error) {
	algo, err := changepoint.ParseAlgorithm(q.Algorithm)
	if err != nil {
		return base, err
	}
	if q.Algorithm != "" {
		base.Algorithm = algo
	}
	if q.Model != "" {
		model, err := changepoint.ParseCostModel(q.Model)
		if err != nil {
			return base, err
		}
		base.Model = model
	}
	if q.Penalty > 0 {
		base.Penalty = q.Penalty
	}
	if q.Threshold > 0 {
		base.Threshold = q.Threshold
	}
	return base, nil
}

// AnalyzeChangePoints detects change points for one metric over a
// snapshot window, for a single entity or the aggregate series.
func AnalyzeChangePoints(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query ChangePointQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		opts, err := query.options(svc.Analysis.DefaultOptions(false))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		filter := series.Filter{Node: query.Node, Source: query.Source, Target: query.Target}
		result, err := svc.Analysis.AnalyzeChangePoints(c.Request.Context(), query.Start, query.End, query.Metric, filter, opts)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"metric":        result.Metric,
			"series":        result.Series,
			"change_points": result.ChangePoints,
		})
	}
}

// AnalyzeFleet detects change points for every observed node or every
// candidate service pair over a snapshot window.
func AnalyzeFleet(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query ChangePointQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		opts, err := query.options(svc.Analysis.DefaultOptions(true))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		result, err := svc.Analysis.AnalyzeFleet(c.Request.Context(), query.Start, query.End, query.Metric, opts)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "metric": query.Metric, "result": result})
	}
}
