package services

import (
	"context"
	"fmt"

	"github.com/couplinglab/coupling-monitor/internal/config"
	"github.com/couplinglab/coupling-monitor/internal/graph"
	"github.com/couplinglab/coupling-monitor/internal/jaeger"
	"github.com/couplinglab/coupling-monitor/internal/storage"
	"github.com/couplinglab/coupling-monitor/internal/trace"
	"go.uber.org/zap"
)

const (
	cacheKeyLatestGraph = "coupling:graph:latest"
	cacheKeyVersions    = "coupling:graph:versions"
)

// GraphService runs the build pipeline (fetch traces, normalize,
// aggregate, weight) and owns graph persistence and retrieval.
type GraphService struct {
	config     *config.Config
	logger     *zap.Logger
	jaeger     *jaeger.Client
	clickhouse *storage.ClickHouseClient
	postgres   *storage.PostgresClient
	redis      *storage.RedisClient
}

func NewGraphService(cfg *config.Config, logger *zap.Logger, jc *jaeger.Client, ch *storage.ClickHouseClient, pg *storage.PostgresClient, rc *storage.RedisClient) *GraphService {
	return &GraphService{
		config:     cfg,
		logger:     logger,
		jaeger:     jc,
		clickhouse: ch,
		postgres:   pg,
		redis:      rc,
	}
}

// DefaultScheme returns the configured weight scheme, applied when a
// request does not name one. An unknown configured name falls back to
// co_execution rather than failing every request.
func (s *GraphService) DefaultScheme() graph.WeightScheme {
	scheme, err := graph.ParseWeightScheme(s.config.Analysis.WeightScheme)
	if err != nil {
		s.logger.Warn("Unknown configured weight scheme, using co_execution",
			zap.String("scheme", s.config.Analysis.WeightScheme),
		)
		return graph.WeightCoExecution
	}
	return scheme
}

// BuildWindow fetches the trace batch for a window and derives the
// weighted graph in memory, without persisting.
func (s *GraphService) BuildWindow(ctx context.Context, startUs, endUs int64, scheme graph.WeightScheme) (graph.Graph, error) {
	if err := validateWindow(startUs, endUs, s.config.Analysis.MaxWindow); err != nil {
		return graph.Graph{}, err
	}

	traces, err := s.jaeger.TracesInWindow(ctx, startUs, endUs)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("fetch traces: %w", err)
	}

	calls := trace.Normalize(traces)
	builder := graph.NewBuilder()
	builder.AddAll(calls)
	g := builder.Build(scheme)

	s.logger.Info("Graph built",
		zap.Int64("start_us", startUs),
		zap.Int64("end_us", endUs),
		zap.Int("traces", len(traces)),
		zap.Int("calls", len(calls)),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	return g, nil
}

// BuildAndVersion runs the full pipeline for a window and persists the
// result as a new version (the end-of-window timestamp) in both the
// graph store and the snapshot document store. Returns the version id.
func (s *GraphService) BuildAndVersion(ctx context.Context, startUs, endUs int64, scheme graph.WeightScheme) (int64, error) {
	g, err := s.BuildWindow(ctx, startUs, endUs, scheme)
	if err != nil {
		return 0, err
	}

	version, err := s.clickhouse.SaveGraph(ctx, g, startUs, endUs)
	if err != nil {
		return 0, err
	}

	snap := graph.Snapshot{
		Version:     version,
		WindowStart: startUs,
		WindowEnd:   endUs,
		Nodes:       g.Nodes,
		Edges:       g.Edges,
	}
	if err := s.postgres.SaveSnapshot(ctx, snap); err != nil {
		return 0, err
	}

	s.invalidateCache(ctx)
	return version, nil
}

// FetchGraph returns the latest aggregated graph view, served from
// cache when fresh.
func (s *GraphService) FetchGraph(ctx context.Context) (graph.Graph, error) {
	var cached graph.Graph
	if s.cacheGet(ctx, cacheKeyLatestGraph, &cached) {
		return cached, nil
	}

	g, err := s.clickhouse.LatestGraph(ctx)
	if err != nil {
		return g, err
	}
	s.cacheSet(ctx, cacheKeyLatestGraph, g)
	return g, nil
}

// RetrieveVersion returns the snapshot persisted under a version id.
// The document store is preferred because it carries the window bounds;
// the graph store serves as fallback for rows written before a
// document existed.
func (s *GraphService) RetrieveVersion(ctx context.Context, version int64) (graph.Snapshot, error) {
	snap, ok, err := s.postgres.GetSnapshot(ctx, version)
	if err != nil {
		return graph.Snapshot{}, err
	}
	if ok {
		return snap, nil
	}

	g, err := s.clickhouse.RetrieveVersion(ctx, version)
	if err != nil {
		return graph.Snapshot{}, err
	}
	return graph.Snapshot{Version: version, Nodes: g.Nodes, Edges: g.Edges}, nil
}

// ListVersions returns all persisted version ids, ascending.
func (s *GraphService) ListVersions(ctx context.Context) ([]int64, error) {
	var cached []int64
	if s.cacheGet(ctx, cacheKeyVersions, &cached) {
		return cached, nil
	}

	versions, err := s.clickhouse.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKeyVersions, versions)
	return versions, nil
}

func (s *GraphService) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.redis == nil {
		return false
	}
	hit, err := s.redis.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *GraphService) cacheSet(ctx context.Context, key string, value any) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.config.Storage.Redis.TTL); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *GraphService) invalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Delete(ctx, cacheKeyLatestGraph, cacheKeyVersions); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Error(err))
	}
}
