// Package series extracts chronologically ordered metric time series
// from persisted graph snapshots.
package series

import (
	"fmt"
	"sort"

	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/graph"
)

// EntityKind is the kind of graph entity a metric applies to.
type EntityKind string

const (
	KindNode EntityKind = "nodes"
	KindEdge EntityKind = "edges"
)

// Node metric names match the persisted snapshot schema.
const (
	MetricAbsoluteImportance = "absolute_importance"
	MetricAbsoluteDependence = "absolute_dependence"
	MetricFrequency          = "frequency"
	MetricLatency            = "latency"
	MetricCoExecution        = "co_execution"
)

// Classify maps a metric name to its entity kind. Unrecognized names
// fail with ErrInvalidMetric.
func Classify(metric string) (EntityKind, error) {
	switch metric {
	case MetricAbsoluteImportance, MetricAbsoluteDependence:
		return KindNode, nil
	case MetricFrequency, MetricLatency, MetricCoExecution:
		return KindEdge, nil
	}
	return "", fmt.Errorf("%w: %q", coupling.ErrInvalidMetric, metric)
}

// Point is one (timestamp, value) sample. Timestamps are the snapshot
// versions, epoch microseconds.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Series is a metric time series sorted ascending by timestamp. It may
// contain gaps: a snapshot without data for the entity contributes no
// point, not a zero.
type Series []Point

// Filter restricts extraction to a single entity. A Node ID selects a
// node series; Source and Target together select an edge series. Empty
// filter aggregates across all entities per snapshot.
type Filter struct {
	Node   string
	Source string
	Target string
}

func (f Filter) empty() bool {
	return f.Node == "" && f.Source == "" && f.Target == ""
}

// Extract produces the metric series for one entity, or the aggregate
// across all entities when the filter is empty. The aggregate reduction
// mirrors the one used when building weights: sum for frequency, mean
// for everything else.
func Extract(snaps []graph.Snapshot, metric string, filter Filter) (Series, error) {
	kind, err := Classify(metric)
	if err != nil {
		return nil, err
	}
	if !filter.empty() {
		if kind == KindNode && filter.Node == "" {
			return nil, fmt.Errorf("%w: metric %q needs a node filter", coupling.ErrInvalidMetric, metric)
		}
		if kind == KindEdge && (filter.Source == "" || filter.Target == "") {
			return nil, fmt.Errorf("%w: metric %q needs a source and target filter", coupling.ErrInvalidMetric, metric)
		}
	}

	var out Series
	for _, snap := range snaps {
		var values []float64
		switch kind {
		case KindNode:
			values = nodeValues(snap.Nodes, metric, filter.Node)
		case KindEdge:
			values = edgeValues(snap.Edges, metric, filter.Source, filter.Target)
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, Point{Timestamp: snap.Version, Value: reduce(metric, values)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func nodeValues(nodes []graph.Node, metric, id string) []float64 {
	var values []float64
	for _, n := range nodes {
		if id != "" && n.ID != id {
			continue
		}
		switch metric {
		case MetricAbsoluteImportance:
			values = append(values, float64(n.AbsoluteImportance))
		case MetricAbsoluteDependence:
			values = append(values, float64(n.AbsoluteDependence))
		}
	}
	return values
}

func edgeValues(edges []graph.Edge, metric, source, target string) []float64 {
	var values []float64
	for _, e := range edges {
		if source != "" && (e.Source != source || e.Target != target) {
			continue
		}
		switch metric {
		case MetricFrequency:
			values = append(values, float64(e.Frequency))
		case MetricLatency:
			values = append(values, e.Latency)
		case MetricCoExecution:
			values = append(values, e.CoExecution)
		}
	}
	return values
}

func reduce(metric string, values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if metric == MetricFrequency {
		return sum
	}
	return sum / float64(len(values))
}

// Values returns the scalar signal for the change-point engine.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Timestamps maps boundary indices back to snapshot timestamps.
func (s Series) Timestamps(indices []int) []int64 {
	out := make([]int64, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(s) {
			out = append(out, s[idx].Timestamp)
		}
	}
	return out
}
