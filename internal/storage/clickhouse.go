// Package storage provides database clients for the coupling monitor:
// ClickHouse as the versioned graph store, Postgres as the snapshot
// document store, and Redis as a short-lived cache.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/graph"
	"go.uber.org/zap"
)

// ClickHouseConfig holds ClickHouse connection configuration.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// ClickHouseClient is the graph version store adapter. Every node and
// edge row is scoped to a version (the end-of-window timestamp in
// epoch microseconds), so identically named services in different
// snapshots never collide.
type ClickHouseClient struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseClient creates a new ClickHouse client and verifies the
// connection.
func NewClickHouseClient(cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouseClient, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("Connected to ClickHouse", zap.String("host", cfg.Host), zap.String("database", cfg.Database))

	return &ClickHouseClient{
		conn:   conn,
		logger: logger,
	}, nil
}

// Close closes the ClickHouse connection.
func (c *ClickHouseClient) Close() error {
	return c.conn.Close()
}

// Conn returns the underlying connection for direct queries.
func (c *ClickHouseClient) Conn() driver.Conn {
	return c.conn
}

// EnsureSchema creates the graph tables if they do not exist.
// ReplacingMergeTree keyed by (version, id) makes a retried save an
// overwrite, not a duplicate.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			version Int64,
			id String,
			absolute_importance Int32,
			absolute_dependence Int32,
			window_start Int64,
			window_end Int64
		) ENGINE = ReplacingMergeTree()
		ORDER BY (version, id)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			version Int64,
			source String,
			target String,
			latency Float64,
			frequency Int64,
			co_execution Float64,
			window_start Int64,
			window_end Int64
		) ENGINE = ReplacingMergeTree()
		ORDER BY (version, source, target)`,
	}
	for _, stmt := range ddl {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create graph tables: %v", coupling.ErrStorage, err)
		}
	}
	return nil
}

// SaveGraph persists a weighted graph scoped to version = windowEnd
// and returns that version. Rows for the version are cleared first so
// a retried save converges instead of duplicating.
func (c *ClickHouseClient) SaveGraph(ctx context.Context, g graph.Graph, windowStart, windowEnd int64) (int64, error) {
	if windowStart == 0 || windowEnd == 0 {
		return 0, fmt.Errorf("%w: window start and end must be provided", coupling.ErrStorage)
	}
	version := windowEnd

	for _, table := range []string{"graph_nodes", "graph_edges"} {
		if err := c.conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s DELETE WHERE version = ?", table), version); err != nil {
			return 0, fmt.Errorf("%w: clear version %d: %v", coupling.ErrStorage, version, err)
		}
	}

	nodeBatch, err := c.conn.PrepareBatch(ctx, "INSERT INTO graph_nodes (version, id, absolute_importance, absolute_dependence, window_start, window_end)")
	if err != nil {
		return 0, fmt.Errorf("%w: prepare node batch: %v", coupling.ErrStorage, err)
	}
	for _, n := range g.Nodes {
		if err := nodeBatch.Append(version, n.ID, int32(n.AbsoluteImportance), int32(n.AbsoluteDependence), windowStart, windowEnd); err != nil {
			return 0, fmt.Errorf("%w: append node %s: %v", coupling.ErrStorage, n.ID, err)
		}
	}
	if err := nodeBatch.Send(); err != nil {
		return 0, fmt.Errorf("%w: write nodes: %v", coupling.ErrStorage, err)
	}

	edgeBatch, err := c.conn.PrepareBatch(ctx, "INSERT INTO graph_edges (version, source, target, latency, frequency, co_execution, window_start, window_end)")
	if err != nil {
		return 0, fmt.Errorf("%w: prepare edge batch: %v", coupling.ErrStorage, err)
	}
	for _, e := range g.Edges {
		if err := edgeBatch.Append(version, e.Source, e.Target, e.Latency, int64(e.Frequency), e.CoExecution, windowStart, windowEnd); err != nil {
			return 0, fmt.Errorf("%w: append edge %s->%s: %v", coupling.ErrStorage, e.Source, e.Target, err)
		}
	}
	if err := edgeBatch.Send(); err != nil {
		return 0, fmt.Errorf("%w: write edges: %v", coupling.ErrStorage, err)
	}

	c.logger.Info("Graph saved",
		zap.Int64("version", version),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	return version, nil
}

// RetrieveVersion returns the exact snapshot scoped to a version. A
// version that does not exist yields empty node and edge lists, not an
// error.
func (c *ClickHouseClient) RetrieveVersion(ctx context.Context, version int64) (graph.Graph, error) {
	g := graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}

	rows, err := c.conn.Query(ctx, `
		SELECT id, absolute_importance, absolute_dependence
		FROM graph_nodes FINAL
		WHERE version = ?
		ORDER BY id`, version)
	if err != nil {
		return g, fmt.Errorf("%w: query nodes: %v", coupling.ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		var n graph.Node
		var imp, dep int32
		if err := rows.Scan(&n.ID, &imp, &dep); err != nil {
			return g, fmt.Errorf("%w: scan node: %v", coupling.ErrStorage, err)
		}
		n.AbsoluteImportance = int(imp)
		n.AbsoluteDependence = int(dep)
		g.Nodes = append(g.Nodes, n)
	}

	edgeRows, err := c.conn.Query(ctx, `
		SELECT source, target, latency, frequency, co_execution
		FROM graph_edges FINAL
		WHERE version = ?
		ORDER BY source, target`, version)
	if err != nil {
		return g, fmt.Errorf("%w: query edges: %v", coupling.ErrStorage, err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e graph.Edge
		var freq int64
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Latency, &freq, &e.CoExecution); err != nil {
			return g, fmt.Errorf("%w: scan edge: %v", coupling.ErrStorage, err)
		}
		e.Frequency = int(freq)
		g.Edges = append(g.Edges, e)
	}

	return g, nil
}

// ListVersions returns all distinct persisted versions, ascending.
func (c *ClickHouseClient) ListVersions(ctx context.Context) ([]int64, error) {
	rows, err := c.conn.Query(ctx, `SELECT DISTINCT version FROM graph_nodes ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("%w: list versions: %v", coupling.ErrStorage, err)
	}
	defer rows.Close()

	versions := []int64{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan version: %v", coupling.ErrStorage, err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// LatestGraph returns the aggregated graph view across all versions:
// every service ever recorded and every distinct call relationship,
// each carrying its most recent metric values.
func (c *ClickHouseClient) LatestGraph(ctx context.Context) (graph.Graph, error) {
	g := graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}

	rows, err := c.conn.Query(ctx, `
		SELECT id,
			argMax(absolute_importance, version),
			argMax(absolute_dependence, version)
		FROM graph_nodes
		GROUP BY id
		ORDER BY id`)
	if err != nil {
		return g, fmt.Errorf("%w: query nodes: %v", coupling.ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		var n graph.Node
		var imp, dep int32
		if err := rows.Scan(&n.ID, &imp, &dep); err != nil {
			return g, fmt.Errorf("%w: scan node: %v", coupling.ErrStorage, err)
		}
		n.AbsoluteImportance = int(imp)
		n.AbsoluteDependence = int(dep)
		g.Nodes = append(g.Nodes, n)
	}

	edgeRows, err := c.conn.Query(ctx, `
		SELECT source, target,
			argMax(latency, version),
			argMax(frequency, version),
			argMax(co_execution, version)
		FROM graph_edges
		GROUP BY source, target
		ORDER BY source, target`)
	if err != nil {
		return g, fmt.Errorf("%w: query edges: %v", coupling.ErrStorage, err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e graph.Edge
		var freq int64
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Latency, &freq, &e.CoExecution); err != nil {
			return g, fmt.Errorf("%w: scan edge: %v", coupling.ErrStorage, err)
		}
		e.Frequency = int(freq)
		g.Edges = append(g.Edges, e)
	}

	return g, nil
}

// RecordedServices returns every distinct service id ever persisted.
func (c *ClickHouseClient) RecordedServices(ctx context.Context) ([]string, error) {
	rows, err := c.conn.Query(ctx, `SELECT DISTINCT id FROM graph_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list services: %v", coupling.ErrStorage, err)
	}
	defer rows.Close()

	services := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: scan service: %v", coupling.ErrStorage, err)
		}
		services = append(services, s)
	}
	return services, nil
}
