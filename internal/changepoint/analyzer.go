package changepoint

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/couplinglab/coupling-monitor/internal/graph"
	"github.com/couplinglab/coupling-monitor/internal/series"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Algorithm selects the detection procedure.
type Algorithm string

const (
	AlgoPelt  Algorithm = "pelt"
	AlgoCusum Algorithm = "cusum"
)

// ParseAlgorithm validates an algorithm name; empty defaults to pelt.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "":
		return AlgoPelt, nil
	case AlgoPelt, AlgoCusum:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// EdgeMode controls which service pairs fleet-wide analysis visits.
type EdgeMode string

const (
	// EdgeModeAll enumerates every ordered pair of observed nodes,
	// including pairs with no observed calls.
	EdgeModeAll EdgeMode = "all"
	// EdgeModeObserved restricts analysis to realized edges.
	EdgeModeObserved EdgeMode = "observed"
)

// ParseEdgeMode validates an edge enumeration mode; empty defaults to all.
func ParseEdgeMode(s string) (EdgeMode, error) {
	switch EdgeMode(s) {
	case "":
		return EdgeModeAll, nil
	case EdgeModeAll, EdgeModeObserved:
		return EdgeMode(s), nil
	}
	return "", fmt.Errorf("unknown edge mode %q", s)
}

// Options parameterize one detection run.
type Options struct {
	Algorithm Algorithm
	Model     CostModel
	Penalty   float64
	Threshold float64
}

// Detect runs the selected algorithm and returns boundary indices with
// the terminal sentinel dropped. Signals shorter than two points yield
// no change points without invoking the algorithm.
func Detect(signal []float64, opts Options) []int {
	if len(signal) < 2 {
		return nil
	}
	if opts.Algorithm == AlgoCusum {
		return Cusum(signal, opts.Threshold)
	}
	bkps := Pelt(signal, opts.Model, opts.Penalty)
	return bkps[:len(bkps)-1]
}

// Analyzer runs fleet-wide change-point analysis with a bounded worker
// pool. Each (entity, series) pair is independent.
type Analyzer struct {
	logger   *zap.Logger
	workers  int
	edgeMode EdgeMode
}

// NewAnalyzer creates an analyzer. Workers below 1 are clamped to 1.
func NewAnalyzer(logger *zap.Logger, workers int, edgeMode EdgeMode) *Analyzer {
	if workers < 1 {
		workers = 1
	}
	if edgeMode == "" {
		edgeMode = EdgeModeAll
	}
	return &Analyzer{logger: logger, workers: workers, edgeMode: edgeMode}
}

// FleetResult maps entity keys to their ordered change-point
// timestamps. Edge keys are "source->target". Entities with no series
// data map to an empty list.
type FleetResult struct {
	Nodes map[string][]int64 `json:"nodes,omitempty"`
	Edges map[string][]int64 `json:"edges,omitempty"`
}

// AnalyzeFleet extracts the metric series for every observed node or
// every candidate edge (per the edge mode) and detects change points
// for each, concurrently up to the worker limit. Result content is
// deterministic for identical input.
func (a *Analyzer) AnalyzeFleet(ctx context.Context, snaps []graph.Snapshot, metric string, opts Options) (*FleetResult, error) {
	kind, err := series.Classify(metric)
	if err != nil {
		return nil, err
	}

	result := &FleetResult{}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	switch kind {
	case series.KindNode:
		result.Nodes = make(map[string][]int64)
		for _, id := range observedNodes(snaps) {
			id := id
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				s, err := series.Extract(snaps, metric, series.Filter{Node: id})
				if err != nil {
					return err
				}
				ts := s.Timestamps(Detect(s.Values(), opts))
				mu.Lock()
				result.Nodes[id] = ts
				mu.Unlock()
				return nil
			})
		}
	case series.KindEdge:
		result.Edges = make(map[string][]int64)
		for _, pair := range a.candidateEdges(snaps) {
			pair := pair
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				s, err := series.Extract(snaps, metric, series.Filter{Source: pair[0], Target: pair[1]})
				if err != nil {
					return err
				}
				ts := s.Timestamps(Detect(s.Values(), opts))
				mu.Lock()
				result.Edges[pair[0]+"->"+pair[1]] = ts
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// observedNodes returns the sorted union of node IDs across snapshots.
func observedNodes(snaps []graph.Snapshot) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, snap := range snaps {
		for _, n := range snap.Nodes {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// candidateEdges enumerates the service pairs to analyze. In "all"
// mode this is every ordered pair of observed nodes (i != j), because
// the candidate set represents which pairs could co-occur, not only
// the realized edges.
func (a *Analyzer) candidateEdges(snaps []graph.Snapshot) [][2]string {
	if a.edgeMode == EdgeModeObserved {
		seen := make(map[[2]string]struct{})
		var pairs [][2]string
		for _, snap := range snaps {
			for _, e := range snap.Edges {
				key := [2]string{e.Source, e.Target}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, key)
			}
		}
		return pairs
	}

	ids := observedNodes(snaps)
	var pairs [][2]string
	for _, src := range ids {
		for _, tgt := range ids {
			if src == tgt {
				continue
			}
			pairs = append(pairs, [2]string{src, tgt})
		}
	}
	return pairs
}
