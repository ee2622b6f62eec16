package services

import (
	"context"
	"fmt"

	"github.com/couplinglab/coupling-monitor/internal/changepoint"
	"github.com/couplinglab/coupling-monitor/internal/config"
	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/series"
	"github.com/couplinglab/coupling-monitor/internal/storage"
	"go.uber.org/zap"
)

// AnalysisService extracts metric time series from persisted snapshots
// and runs change-point detection over them.
type AnalysisService struct {
	config   *config.Config
	logger   *zap.Logger
	postgres *storage.PostgresClient
}

func NewAnalysisService(cfg *config.Config, logger *zap.Logger, pg *storage.PostgresClient) *AnalysisService {
	return &AnalysisService{config: cfg, logger: logger, postgres: pg}
}

// ChangePointAnalysis is the result of a single-entity or aggregate
// analysis: the extracted series and the detected boundary timestamps.
type ChangePointAnalysis struct {
	Metric       string        `json:"metric"`
	Series       series.Series `json:"series"`
	ChangePoints []int64       `json:"change_points"`
}

// AnalyzeChangePoints runs detection for one metric over a snapshot
// window, either for a single entity (when the filter names one) or
// for the fleet-wide aggregate series. Validation failures surface
// before any snapshot is read.
func (s *AnalysisService) AnalyzeChangePoints(ctx context.Context, startUs, endUs int64, metric string, filter series.Filter, opts changepoint.Options) (*ChangePointAnalysis, error) {
	if err := validateWindow(startUs, endUs, s.config.Analysis.MaxWindow); err != nil {
		return nil, err
	}
	if _, err := series.Classify(metric); err != nil {
		return nil, err
	}

	snaps, err := s.postgres.GetSnapshotsInWindow(ctx, startUs, endUs)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: no snapshots between %d and %d", coupling.ErrNoData, startUs, endUs)
	}

	ser, err := series.Extract(snaps, metric, filter)
	if err != nil {
		return nil, err
	}
	if len(ser) == 0 {
		return nil, fmt.Errorf("%w: no series for metric %q", coupling.ErrNoData, metric)
	}

	indices := changepoint.Detect(ser.Values(), opts)
	result := &ChangePointAnalysis{
		Metric:       metric,
		Series:       ser,
		ChangePoints: ser.Timestamps(indices),
	}

	s.logger.Info("Change-point analysis complete",
		zap.String("metric", metric),
		zap.Int("points", len(ser)),
		zap.Int("change_points", len(result.ChangePoints)),
	)
	return result, nil
}

// AnalyzeFleet runs detection for every observed node or every
// candidate edge over the snapshot window, concurrently up to the
// configured worker limit.
func (s *AnalysisService) AnalyzeFleet(ctx context.Context, startUs, endUs int64, metric string, opts changepoint.Options) (*changepoint.FleetResult, error) {
	if err := validateWindow(startUs, endUs, s.config.Analysis.MaxWindow); err != nil {
		return nil, err
	}
	if _, err := series.Classify(metric); err != nil {
		return nil, err
	}

	snaps, err := s.postgres.GetSnapshotsInWindow(ctx, startUs, endUs)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: no snapshots between %d and %d", coupling.ErrNoData, startUs, endUs)
	}

	edgeMode, err := changepoint.ParseEdgeMode(s.config.Analysis.EdgeMode)
	if err != nil {
		return nil, err
	}
	analyzer := changepoint.NewAnalyzer(s.logger, s.config.Analysis.Workers, edgeMode)
	return analyzer.AnalyzeFleet(ctx, snaps, metric, opts)
}

// DefaultOptions builds detection options from configuration, applied
// when a request does not override them. Fleet analysis uses the
// lower per-entity penalty.
func (s *AnalysisService) DefaultOptions(fleet bool) changepoint.Options {
	penalty := s.config.Analysis.Penalty
	if fleet {
		penalty = s.config.Analysis.FleetPenalty
	}
	return changepoint.Options{
		Algorithm: changepoint.AlgoPelt,
		Model:     changepoint.CostModel(s.config.Analysis.CostModel),
		Penalty:   penalty,
		Threshold: s.config.Analysis.CusumThreshold,
	}
}
