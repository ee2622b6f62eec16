// Package graph builds the weighted service-dependency graph from
// normalized call observations and computes the coupling metrics.
package graph

import (
	"fmt"
	"sort"
)

// WeightScheme selects which derived value becomes the canonical edge
// weight. All three values are computed and stored on every edge
// regardless of the active scheme.
type WeightScheme string

const (
	WeightFrequency   WeightScheme = "frequency"
	WeightLatency     WeightScheme = "latency"
	WeightCoExecution WeightScheme = "co_execution"
)

// ParseWeightScheme validates a weight scheme name. An empty name
// yields the default, co_execution.
func ParseWeightScheme(s string) (WeightScheme, error) {
	switch WeightScheme(s) {
	case "":
		return WeightCoExecution, nil
	case WeightFrequency, WeightLatency, WeightCoExecution:
		return WeightScheme(s), nil
	}
	return "", fmt.Errorf("unknown weight scheme %q", s)
}

// Node is a service with its structural coupling metrics:
// absolute_importance is the distinct in-degree, absolute_dependence
// the distinct out-degree.
type Node struct {
	ID                 string `json:"id"`
	AbsoluteImportance int    `json:"absolute_importance"`
	AbsoluteDependence int    `json:"absolute_dependence"`
}

// Edge is an aggregated directed call relationship between two
// services. Weight mirrors one of the three derived values, selected
// by the active WeightScheme.
type Edge struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Weight      float64 `json:"weight"`
	Latency     float64 `json:"latency"`
	Frequency   int     `json:"frequency"`
	CoExecution float64 `json:"co_execution"`
}

// Graph is the weighted service-dependency graph. Nodes and edges are
// sorted by ID and (source, target) so repeated builds over the same
// input produce identical output.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Snapshot is a persisted, versioned copy of a Graph. The version is
// the end-of-window timestamp in epoch microseconds.
type Snapshot struct {
	Version     int64  `json:"version"`
	WindowStart int64  `json:"window_start"`
	WindowEnd   int64  `json:"window_end"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// CouplingFactor is the ratio of realized edges to the maximum
// possible directed edges N*(N-1). Zero for graphs with fewer than
// two nodes.
func (g Graph) CouplingFactor() float64 {
	n := len(g.Nodes)
	if n < 2 {
		return 0
	}
	return round4(float64(len(g.Edges)) / float64(n*(n-1)))
}

func sortGraph(g *Graph) {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
}
