// Package services provides business logic and data access for the
// coupling monitor: graph building and versioning, change-point
// analysis, and the service catalog.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couplinglab/coupling-monitor/internal/config"
	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/jaeger"
	"github.com/couplinglab/coupling-monitor/internal/storage"
	"go.uber.org/zap"
)

// Services holds all service instances.
type Services struct {
	config     *config.Config
	logger     *zap.Logger
	clickhouse *storage.ClickHouseClient
	postgres   *storage.PostgresClient
	redis      *storage.RedisClient

	Graph    *GraphService
	Analysis *AnalysisService
	Catalog  *CatalogService
}

// New creates a new Services instance. ClickHouse and Postgres are
// required; Redis is optional and the cache degrades to pass-through
// when unavailable.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	s := &Services{
		config: cfg,
		logger: logger,
	}

	ch, err := storage.NewClickHouseClient(storage.ClickHouseConfig{
		Host:     cfg.Storage.ClickHouse.Host,
		Port:     cfg.Storage.ClickHouse.Port,
		Database: cfg.Storage.ClickHouse.Database,
		Username: cfg.Storage.ClickHouse.Username,
		Password: cfg.Storage.ClickHouse.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	s.clickhouse = ch
	if err := ch.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	pg, err := storage.NewPostgresClient(ctx, storage.PostgresConfig{
		DSN: cfg.Storage.Postgres.DSN,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	s.postgres = pg
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	if cfg.Storage.Redis.Enabled {
		rc, err := storage.NewRedisClient(storage.RedisConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, caching disabled", zap.Error(err))
		} else {
			s.redis = rc
		}
	}

	jc := jaeger.NewClient(jaeger.Config{
		URL:            cfg.Jaeger.URL,
		TraceLimit:     cfg.Jaeger.TraceLimit,
		RequestsPerSec: cfg.Jaeger.RequestsPerSec,
		Timeout:        cfg.Jaeger.Timeout,
	}, logger)

	s.Graph = NewGraphService(cfg, logger, jc, ch, pg, s.redis)
	s.Analysis = NewAnalysisService(cfg, logger, pg)
	s.Catalog = NewCatalogService(logger, jc, ch)

	return s, nil
}

// HealthCheck pings the required backing stores. Redis is excluded:
// the cache is optional and its absence degrades to pass-through.
func (s *Services) HealthCheck(ctx context.Context) error {
	if err := s.clickhouse.Conn().Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	if err := s.postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// Close closes all service connections.
func (s *Services) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.postgres != nil {
		s.postgres.Close()
	}
	if s.clickhouse != nil {
		errs = append(errs, s.clickhouse.Close())
	}
	return errors.Join(errs...)
}

// validateWindow checks a [startUs, endUs] window in epoch
// microseconds against the configured maximum span.
func validateWindow(startUs, endUs int64, maxWindow time.Duration) error {
	if startUs <= 0 || endUs <= 0 {
		return fmt.Errorf("%w: start and end must be positive epoch microseconds", coupling.ErrInvalidTimeRange)
	}
	if startUs >= endUs {
		return fmt.Errorf("%w: start %d is not before end %d", coupling.ErrInvalidTimeRange, startUs, endUs)
	}
	if maxWindow > 0 && endUs-startUs > maxWindow.Microseconds() {
		return fmt.Errorf("%w: window exceeds maximum span of %s", coupling.ErrInvalidTimeRange, maxWindow)
	}
	return nil
}

// CatalogService lists known services from the trace backend and the
// graph store.
type CatalogService struct {
	logger     *zap.Logger
	jaeger     *jaeger.Client
	clickhouse *storage.ClickHouseClient
}

func NewCatalogService(logger *zap.Logger, jc *jaeger.Client, ch *storage.ClickHouseClient) *CatalogService {
	return &CatalogService{logger: logger, jaeger: jc, clickhouse: ch}
}

// Active returns services currently known to the trace backend.
func (s *CatalogService) Active(ctx context.Context) ([]string, error) {
	return s.jaeger.Services(ctx)
}

// Recorded returns services present in any persisted graph version.
func (s *CatalogService) Recorded(ctx context.Context) ([]string, error) {
	return s.clickhouse.RecordedServices(ctx)
}
