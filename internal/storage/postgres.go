package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/graph"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Snapshot reads are paginated; a page must never be returned as the
// whole window.
const snapshotPageSize = 100

// PostgresConfig holds Postgres connection configuration.
type PostgresConfig struct {
	DSN string
}

// PostgresClient is the snapshot document store: one JSONB document
// per graph version, queried by time window for metric series
// extraction.
type PostgresClient struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresClient creates a pooled Postgres client and verifies the
// connection.
func NewPostgresClient(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresClient, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	logger.Info("Connected to Postgres")
	return &PostgresClient{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (p *PostgresClient) Close() {
	p.pool.Close()
}

// Ping verifies the pool can reach the database.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// EnsureSchema creates the snapshot table if it does not exist.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS graph_snapshots (
			version      BIGINT PRIMARY KEY,
			window_start BIGINT NOT NULL,
			window_end   BIGINT NOT NULL,
			data         JSONB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("%w: create snapshot table: %v", coupling.ErrStorage, err)
	}
	return nil
}

// SaveSnapshot upserts one snapshot document keyed by version, so a
// retried save for the same window overwrites rather than duplicates.
func (p *PostgresClient) SaveSnapshot(ctx context.Context, snap graph.Snapshot) error {
	if snap.WindowStart == 0 || snap.WindowEnd == 0 {
		return fmt.Errorf("%w: window start and end must be provided", coupling.ErrStorage)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", coupling.ErrStorage, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO graph_snapshots (version, window_start, window_end, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (version) DO UPDATE
		SET window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			data = EXCLUDED.data`,
		snap.Version, snap.WindowStart, snap.WindowEnd, data)
	if err != nil {
		return fmt.Errorf("%w: write snapshot %d: %v", coupling.ErrStorage, snap.Version, err)
	}

	p.logger.Info("Snapshot saved", zap.Int64("version", snap.Version))
	return nil
}

// GetSnapshot returns one snapshot by version. The boolean reports
// whether the version exists.
func (p *PostgresClient) GetSnapshot(ctx context.Context, version int64) (graph.Snapshot, bool, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM graph_snapshots WHERE version = $1`, version).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return graph.Snapshot{}, false, nil
		}
		return graph.Snapshot{}, false, fmt.Errorf("%w: read snapshot %d: %v", coupling.ErrStorage, version, err)
	}

	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return graph.Snapshot{}, false, fmt.Errorf("%w: decode snapshot %d: %v", coupling.ErrStorage, version, err)
	}
	return snap, true, nil
}

// GetSnapshotsInWindow returns every snapshot whose window overlaps
// [start, end], ordered by version ascending. Pages are read with
// keyset pagination and exhausted before returning.
func (p *PostgresClient) GetSnapshotsInWindow(ctx context.Context, start, end int64) ([]graph.Snapshot, error) {
	var snaps []graph.Snapshot
	after := int64(-1)

	for {
		rows, err := p.pool.Query(ctx, `
			SELECT data FROM graph_snapshots
			WHERE window_end >= $1 AND window_start <= $2 AND version > $3
			ORDER BY version
			LIMIT $4`,
			start, end, after, snapshotPageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: query snapshots: %v", coupling.ErrStorage, err)
		}

		count := 0
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&data); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scan snapshot: %v", coupling.ErrStorage, err)
			}
			var snap graph.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: decode snapshot: %v", coupling.ErrStorage, err)
			}
			snaps = append(snaps, snap)
			after = snap.Version
			count++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: iterate snapshots: %v", coupling.ErrStorage, err)
		}

		if count < snapshotPageSize {
			return snaps, nil
		}
	}
}
