// Package coupling defines the error taxonomy shared across the
// analytical pipeline. Handlers map these to HTTP status codes;
// everything else wraps them with context via fmt.Errorf and %w.
package coupling

import "errors"

var (
	// ErrInvalidTimeRange reports start >= end or a window wider than
	// the configured maximum span.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrInvalidMetric reports an unrecognized metric name or an
	// entity filter that does not match the metric's kind.
	ErrInvalidMetric = errors.New("invalid metric")

	// ErrNoData reports a query window with no matching snapshots or
	// an entity with no series data.
	ErrNoData = errors.New("no data for requested range")

	// ErrStorage reports a backing-store failure. Writes are
	// idempotent, so callers may safely retry.
	ErrStorage = errors.New("storage error")
)
